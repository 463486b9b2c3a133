package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cutover/cutover/pkg/migration"
	"github.com/cutover/cutover/pkg/stores"
	"github.com/cutover/cutover/pkg/telemetry"
)

// backupRiskThreshold is the per-backup size above which a recovery is
// graded high risk for data loss.
const backupRiskThreshold = 10 * 1024 * 1024

// StepRunner performs one recovery step. The default runner only logs;
// real restore logic is injected by the caller.
type StepRunner func(ctx context.Context, point *RecoveryPoint, step RecoveryStep) error

// Service creates recovery points and derives and executes recovery
// plans from them.
type Service struct {
	store       stores.Store
	snapshotter Snapshotter
	stepRunner  StepRunner
	logger      *telemetry.Logger
	metrics     *telemetry.Metrics
	tracer      *telemetry.Tracer
	events      *telemetry.EventPublisher
}

// Option configures a Service.
type Option func(*Service)

// WithSnapshotter replaces the simulated snapshotter.
func WithSnapshotter(s Snapshotter) Option {
	return func(svc *Service) { svc.snapshotter = s }
}

// WithStepRunner replaces the default logging step runner.
func WithStepRunner(r StepRunner) Option {
	return func(svc *Service) { svc.stepRunner = r }
}

// New creates a recovery service backed by the given store.
func New(store stores.Store, tel *telemetry.Telemetry, opts ...Option) *Service {
	svc := &Service{
		store:       store,
		snapshotter: &SimulatedSnapshotter{},
		logger:      tel.Logger,
		metrics:     tel.Metrics,
		tracer:      tel.Tracer,
		events:      tel.Events,
	}
	svc.stepRunner = func(_ context.Context, point *RecoveryPoint, step RecoveryStep) error {
		svc.logger.WithPlanID(point.PlanID).
			WithField("recovery_point_id", point.ID).
			WithField("step_id", step.ID).
			WithField("kind", step.Kind).
			Info("executing recovery step")
		return nil
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateRecoveryPoint snapshots system state before risky work on the
// given phase. The returned point always carries at least one backup
// and at least one data-integrity validation step.
func (s *Service) CreateRecoveryPoint(ctx context.Context, planID, phaseID string) (*RecoveryPoint, error) {
	return s.createPoint(ctx, planID, phaseID, "")
}

// CreateTaskRecoveryPoint scopes a recovery point to a single task
// within the phase. Only that task's validation steps are attached on
// top of the default integrity checks.
func (s *Service) CreateTaskRecoveryPoint(ctx context.Context, planID, phaseID, taskID string) (*RecoveryPoint, error) {
	if taskID == "" {
		return nil, migration.NewValidationError("task ID is required", nil).
			WithPhase(planID, phaseID)
	}
	return s.createPoint(ctx, planID, phaseID, taskID)
}

func (s *Service) createPoint(ctx context.Context, planID, phaseID, taskID string) (*RecoveryPoint, error) {
	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	phase, _ := plan.FindPhase(phaseID)
	if phase == nil {
		return nil, migration.NewNotFoundError(
			fmt.Sprintf("phase not found: %s (plan %s)", phaseID, planID), nil).
			WithPhase(planID, phaseID)
	}

	steps := defaultValidationSteps(phase)
	if taskID != "" {
		task := phase.FindTask(taskID)
		if task == nil {
			return nil, migration.NewNotFoundError(
				fmt.Sprintf("task not found: %s (phase %s, plan %s)", taskID, phaseID, planID), nil).
				WithTask(planID, phaseID, taskID)
		}
		steps = taskValidationSteps(task)
	}

	snap, backups, err := s.snapshotter.Snapshot(ctx, plan, phase)
	if err != nil {
		return nil, migration.NewExecutionError(
			fmt.Sprintf("snapshot failed for phase %s", phaseID), err).
			WithPhase(planID, phaseID)
	}
	if snap == nil || len(backups) == 0 {
		return nil, migration.NewExecutionError(
			fmt.Sprintf("snapshotter returned an empty snapshot for phase %s", phaseID), nil).
			WithPhase(planID, phaseID)
	}

	point := &RecoveryPoint{
		ID:              uuid.New().String(),
		PlanID:          planID,
		PhaseID:         phaseID,
		TaskID:          taskID,
		SystemState:     *snap,
		Backups:         backups,
		ValidationSteps: steps,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.savePoint(ctx, point); err != nil {
		return nil, err
	}

	logger := s.logger.WithPlanID(planID).WithPhaseID(phaseID)
	if taskID != "" {
		logger = logger.WithTaskID(taskID)
	}
	logger.WithField("recovery_point_id", point.ID).
		WithField("backups", len(point.Backups)).
		Info("recovery point created")
	s.metrics.RecordRecoveryPoint()
	s.events.PublishPhaseEvent(telemetry.EventRecoveryPoint, planID, phaseID,
		fmt.Sprintf("recovery point %s created", point.ID))

	return point, nil
}

// GetRecoveryPoint loads a recovery point by ID.
func (s *Service) GetRecoveryPoint(ctx context.Context, id string) (*RecoveryPoint, error) {
	rec, err := s.store.GetRecoveryPoint(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodePoint(rec)
}

// ListRecoveryPoints loads all recovery points for a plan, newest first.
func (s *Service) ListRecoveryPoints(ctx context.Context, planID string) ([]*RecoveryPoint, error) {
	recs, err := s.store.ListRecoveryPoints(ctx, planID)
	if err != nil {
		return nil, err
	}
	points := make([]*RecoveryPoint, 0, len(recs))
	for _, rec := range recs {
		point, err := decodePoint(rec)
		if err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	return points, nil
}

// CreateRecoveryPlan derives an ordered restoration plan from a
// recovery point. Steps restore data first, then schema, then validate
// the system, and are returned sorted ascending by Order.
func (s *Service) CreateRecoveryPlan(ctx context.Context, recoveryPointID string) (*RecoveryPlan, error) {
	point, err := s.GetRecoveryPoint(ctx, recoveryPointID)
	if err != nil {
		return nil, err
	}

	var steps []RecoveryStep
	order := 1
	for _, backup := range point.Backups {
		steps = append(steps, RecoveryStep{
			ID:          uuid.New().String(),
			Kind:        StepRestoreData,
			Order:       order,
			Description: fmt.Sprintf("restore data from backup %s (%s)", backup.ID, backup.Source),
			Parameters: map[string]interface{}{
				"backup_id": backup.ID,
				"source":    backup.Source,
				"checksum":  backup.Checksum,
			},
		})
		order++
	}
	steps = append(steps, RecoveryStep{
		ID:          uuid.New().String(),
		Kind:        StepRestoreSchema,
		Order:       order,
		Description: fmt.Sprintf("restore schema for phase %s", point.PhaseID),
		Parameters:  map[string]interface{}{"phase_id": point.PhaseID},
	})
	order++
	for _, vs := range point.ValidationSteps {
		steps = append(steps, RecoveryStep{
			ID:          uuid.New().String(),
			Kind:        StepValidateSystem,
			Order:       order,
			Description: fmt.Sprintf("run validation %s (%s)", vs.Name, vs.Type),
			Parameters:  map[string]interface{}{"validation_step_id": vs.ID},
		})
		order++
	}

	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })

	return &RecoveryPlan{
		ID:              uuid.New().String(),
		RecoveryPointID: point.ID,
		PlanID:          point.PlanID,
		Steps:           steps,
		Risk:            assessRisk(point),
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// ExecuteRecoveryPlan runs every step of a recovery plan in order.
// Restoration is best-effort: a failed step is recorded in the result
// and later steps still run. The returned error is non-nil only for
// problems outside step execution.
func (s *Service) ExecuteRecoveryPlan(ctx context.Context, plan *RecoveryPlan) (*ExecutionResult, error) {
	point, err := s.GetRecoveryPoint(ctx, plan.RecoveryPointID)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.StartRollbackSpan(ctx, point.PlanID, point.PhaseID)
	defer span.End()

	result := &ExecutionResult{
		RecoveryPlanID: plan.ID,
		Success:        true,
		StepResults:    make([]StepResult, 0, len(plan.Steps)),
		StartedAt:      time.Now().UTC(),
	}

	for _, step := range sortedSteps(plan.Steps) {
		stepResult := StepResult{StepID: step.ID, Success: true}
		if err := s.stepRunner(ctx, point, step); err != nil {
			stepResult.Success = false
			stepResult.Error = err.Error()
			result.Success = false
			s.logger.WithPlanID(point.PlanID).WithError(err).
				WithField("step_id", step.ID).
				WithField("kind", step.Kind).
				Error("recovery step failed")
		}
		result.StepResults = append(result.StepResults, stepResult)
	}

	result.CompletedAt = time.Now().UTC()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)

	if result.Success {
		telemetry.RecordSuccess(span)
	} else {
		telemetry.RecordError(span, migration.NewRollbackError(
			fmt.Sprintf("recovery plan %s completed with failures", plan.ID), nil))
	}
	s.events.PublishPhaseEvent(telemetry.EventRollbackDone, point.PlanID, point.PhaseID,
		fmt.Sprintf("recovery plan %s executed", plan.ID))
	s.audit(ctx, "recovery.executed", point.PlanID)

	return result, nil
}

// ValidateSystemState re-captures a snapshot for the phase a recovery
// point was taken on and compares it against the recorded state. One
// finding is produced per check so all drift is reported at once.
func (s *Service) ValidateSystemState(ctx context.Context, recoveryPointID string) ([]migration.ValidationResult, error) {
	point, err := s.GetRecoveryPoint(ctx, recoveryPointID)
	if err != nil {
		return nil, err
	}
	plan, err := s.store.GetPlan(ctx, point.PlanID)
	if err != nil {
		return nil, err
	}
	phase, _ := plan.FindPhase(point.PhaseID)
	if phase == nil {
		return nil, migration.NewNotFoundError(
			fmt.Sprintf("phase not found: %s (plan %s)", point.PhaseID, point.PlanID), nil).
			WithPhase(point.PlanID, point.PhaseID)
	}

	current, _, err := s.snapshotter.Snapshot(ctx, plan, phase)
	if err != nil {
		return nil, migration.NewExecutionError("snapshot failed during validation", err).
			WithPhase(point.PlanID, point.PhaseID)
	}

	var results []migration.ValidationResult
	for source, want := range point.SystemState.Checksums {
		got, ok := current.Checksums[source]
		res := migration.ValidationResult{
			StepID:  fmt.Sprintf("checksum-%s", source),
			Success: ok && got == want,
			Message: fmt.Sprintf("checksum match for %s", source),
		}
		if !res.Success {
			res.Message = fmt.Sprintf("checksum mismatch for %s", source)
		}
		results = append(results, res)
	}
	results = append(results, migration.ValidationResult{
		StepID:  "relationships",
		Success: current.RelationshipsValid,
		Message: "referential integrity check",
	})
	results = append(results, migration.ValidationResult{
		StepID:  "business-rules",
		Success: current.BusinessRulesValid,
		Message: "business rule conformance check",
	})
	return results, nil
}

// DeleteRecoveryPoint removes a recovery point.
func (s *Service) DeleteRecoveryPoint(ctx context.Context, id string) error {
	return s.store.DeleteRecoveryPoint(ctx, id)
}

func (s *Service) savePoint(ctx context.Context, point *RecoveryPoint) error {
	doc, err := json.Marshal(point)
	if err != nil {
		return fmt.Errorf("marshaling recovery point %s: %w", point.ID, err)
	}
	return s.store.SaveRecoveryPoint(ctx, &stores.RecoveryPointRecord{
		ID:        point.ID,
		PlanID:    point.PlanID,
		PhaseID:   point.PhaseID,
		Document:  string(doc),
		CreatedAt: point.CreatedAt,
	})
}

func (s *Service) audit(ctx context.Context, action, planID string) {
	entry := &stores.AuditEntry{Action: action, PlanID: planID, Timestamp: time.Now().UTC()}
	if err := s.store.CreateAuditEntry(ctx, entry); err != nil {
		s.logger.WithPlanID(planID).WithError(err).Warn("failed to record audit entry")
	}
}

func decodePoint(rec *stores.RecoveryPointRecord) (*RecoveryPoint, error) {
	var point RecoveryPoint
	if err := json.Unmarshal([]byte(rec.Document), &point); err != nil {
		return nil, fmt.Errorf("decoding recovery point %s: %w", rec.ID, err)
	}
	return &point, nil
}

// baseValidationSteps are attached to every recovery point. The first
// step is always a data-integrity check.
func baseValidationSteps() []migration.ValidationStep {
	return []migration.ValidationStep{
		{
			ID:   "data-integrity",
			Name: "verify checksums and record counts",
			Type: migration.ValidationTypeDataIntegrity,
			Criteria: migration.ValidationCriteria{
				RequiredFields: []string{"checksums", "record_counts"},
			},
		},
		{
			ID:   "connectivity",
			Name: "verify data source reachability",
			Type: migration.ValidationTypeConnectivity,
		},
	}
}

func defaultValidationSteps(phase *migration.Phase) []migration.ValidationStep {
	steps := baseValidationSteps()
	for _, task := range phase.Tasks {
		steps = append(steps, task.ValidationSteps...)
	}
	return steps
}

// taskValidationSteps narrows the checks to a single task.
func taskValidationSteps(task *migration.Task) []migration.ValidationStep {
	return append(baseValidationSteps(), task.ValidationSteps...)
}

func assessRisk(point *RecoveryPoint) RiskAssessment {
	risk := RiskAssessment{DataLossRisk: migration.RiskLevelLow}

	var totalBytes int64
	for _, backup := range point.Backups {
		totalBytes += backup.SizeBytes
	}

	if !point.SystemState.RelationshipsValid || !point.SystemState.BusinessRulesValid {
		risk.DataLossRisk = migration.RiskLevelHigh
		risk.Factors = append(risk.Factors, "snapshot captured with integrity violations")
	} else if totalBytes > backupRiskThreshold {
		risk.DataLossRisk = migration.RiskLevelMedium
		risk.Factors = append(risk.Factors, "large backup volume")
	}
	if len(point.Backups) > 1 {
		risk.Factors = append(risk.Factors, fmt.Sprintf("%d backups must restore consistently", len(point.Backups)))
	}

	// One minute per backup restore plus validation overhead.
	risk.EstimatedDowntimeMinutes = len(point.Backups) + 2
	return risk
}

func sortedSteps(steps []RecoveryStep) []RecoveryStep {
	out := make([]RecoveryStep, len(steps))
	copy(out, steps)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
