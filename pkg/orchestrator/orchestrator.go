package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cutover/cutover/pkg/engine"
	"github.com/cutover/cutover/pkg/migration"
	"github.com/cutover/cutover/pkg/stores"
	"github.com/cutover/cutover/pkg/telemetry"
)

// PolicyGate checks a phase against safety policies before it is
// allowed to execute.
type PolicyGate interface {
	CheckPhase(ctx context.Context, plan *migration.Plan, phaseID string) error
}

// RollbackStepRunner performs a single rollback step. The default
// runner only logs; deployments inject real step logic here.
type RollbackStepRunner func(ctx context.Context, phase *migration.Phase, step migration.RollbackStep) error

// Orchestrator drives plan creation, validation, execution and
// rollback. All operations on the same plan ID are serialized through
// a per-plan mutex.
type Orchestrator struct {
	store   stores.Store
	engine  *engine.Engine
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	events  *telemetry.EventPublisher

	gate       PolicyGate
	stepRunner RollbackStepRunner

	defaultTimeout    time.Duration
	defaultMaxRetries int

	mu        sync.Mutex
	locks     map[string]*sync.Mutex
	paused    map[string]bool
	cancelled map[string]bool
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithPolicyGate installs a safety-policy gate checked before each
// phase execution.
func WithPolicyGate(gate PolicyGate) Option {
	return func(o *Orchestrator) { o.gate = gate }
}

// WithRollbackStepRunner replaces the default no-op rollback step
// runner.
func WithRollbackStepRunner(runner RollbackStepRunner) Option {
	return func(o *Orchestrator) { o.stepRunner = runner }
}

// WithDefaultTimeout sets the per-attempt timeout applied to tasks
// that do not carry their own.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) { o.defaultTimeout = timeout }
}

// WithDefaultMaxRetries sets the retry budget applied to each task.
func WithDefaultMaxRetries(maxRetries int) Option {
	return func(o *Orchestrator) { o.defaultMaxRetries = maxRetries }
}

// New creates an orchestrator backed by the given store and engine.
func New(store stores.Store, eng *engine.Engine, tel *telemetry.Telemetry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:             store,
		engine:            eng,
		logger:            tel.Logger.NewComponentLogger("orchestrator"),
		metrics:           tel.Metrics,
		tracer:            tel.Tracer,
		events:            tel.Events,
		defaultTimeout:    30 * time.Minute,
		defaultMaxRetries: 3,
		locks:             make(map[string]*sync.Mutex),
		paused:            make(map[string]bool),
		cancelled:         make(map[string]bool),
	}
	o.stepRunner = func(_ context.Context, phase *migration.Phase, step migration.RollbackStep) error {
		o.logger.WithPhaseID(phase.ID).WithField("step", step.ID).
			Infof("rollback step %s (%s)", step.Name, step.Action)
		return nil
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// planLock returns the mutex for a plan, creating it on first use.
func (o *Orchestrator) planLock(planID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[planID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[planID] = lock
	}
	return lock
}

// CreatePlan fills in defaults, computes the duration estimate, and
// persists the plan. Missing optional fields never cause failure.
func (o *Orchestrator) CreatePlan(ctx context.Context, plan *migration.Plan) (*migration.Plan, error) {
	p := plan.Clone()
	if p == nil {
		p = &migration.Plan{}
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = migration.PlanStatusDraft
	}
	if p.Phases == nil {
		p.Phases = []migration.Phase{}
	}
	if p.Dependencies == nil {
		p.Dependencies = []migration.Dependency{}
	}
	if p.RollbackStrategies == nil {
		p.RollbackStrategies = []migration.RollbackStrategy{}
	}
	for i := range p.Phases {
		phase := &p.Phases[i]
		if phase.ID == "" {
			phase.ID = uuid.New().String()
		}
		if phase.Status == "" {
			phase.Status = migration.PhaseStatusPending
		}
		for j := range phase.Tasks {
			task := &phase.Tasks[j]
			if task.ID == "" {
				task.ID = uuid.New().String()
			}
			if task.Status == "" {
				task.Status = migration.TaskStatusPending
			}
		}
	}

	p.EstimatedDuration = migration.EstimateDuration(p.Phases)

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	if err := o.store.SavePlan(ctx, p); err != nil {
		return nil, fmt.Errorf("persisting plan %s: %w", p.ID, err)
	}

	o.audit(ctx, "plan.created", p.ID)
	o.metrics.RecordPlanCreated()
	o.events.PublishPlanEvent(telemetry.EventPlanCreated, p.ID,
		fmt.Sprintf("created plan %s with %d phases", p.Name, len(p.Phases)))
	o.logger.WithPlanID(p.ID).Infof("created plan %q (%d phases, est. %d min)",
		p.Name, len(p.Phases), p.EstimatedDuration)

	return p, nil
}

// GetPlan returns the stored plan.
func (o *Orchestrator) GetPlan(ctx context.Context, planID string) (*migration.Plan, error) {
	return o.store.GetPlan(ctx, planID)
}

// Pause requests that execution of the plan stop at the next task
// boundary. The in-flight task is not interrupted.
func (o *Orchestrator) Pause(ctx context.Context, planID string) error {
	if _, err := o.store.GetPlan(ctx, planID); err != nil {
		return err
	}
	o.mu.Lock()
	o.paused[planID] = true
	o.mu.Unlock()
	o.events.PublishPlanEvent(telemetry.EventPlanPaused, planID, "execution paused")
	o.logger.WithPlanID(planID).Info("execution paused")
	return nil
}

// Resume clears a previous pause request.
func (o *Orchestrator) Resume(ctx context.Context, planID string) error {
	if _, err := o.store.GetPlan(ctx, planID); err != nil {
		return err
	}
	o.mu.Lock()
	o.paused[planID] = false
	o.mu.Unlock()
	o.events.PublishPlanEvent(telemetry.EventPlanResumed, planID, "execution resumed")
	o.logger.WithPlanID(planID).Info("execution resumed")
	return nil
}

// Cancel requests that execution of the plan stop. Like Pause this is
// cooperative: the signal is observed at the next task boundary.
func (o *Orchestrator) Cancel(ctx context.Context, planID string) error {
	if _, err := o.store.GetPlan(ctx, planID); err != nil {
		return err
	}
	o.mu.Lock()
	o.cancelled[planID] = true
	o.paused[planID] = false
	o.mu.Unlock()
	o.events.PublishPlanEvent(telemetry.EventPlanCancelled, planID, "cancellation requested")
	o.logger.WithPlanID(planID).Info("cancellation requested")
	return nil
}

func (o *Orchestrator) isPaused(planID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused[planID]
}

func (o *Orchestrator) isCancelled(planID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled[planID]
}

// waitWhilePaused blocks until the pause flag clears, the plan is
// cancelled, or the context ends.
func (o *Orchestrator) waitWhilePaused(ctx context.Context, planID string) error {
	for o.isPaused(planID) && !o.isCancelled(planID) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}

// EstimateDuration computes the buffered duration estimate for a
// plan's phases in minutes.
func (o *Orchestrator) EstimateDuration(plan *migration.Plan) int {
	return migration.EstimateDuration(plan.Phases)
}

func (o *Orchestrator) audit(ctx context.Context, action, planID string) {
	entry := &stores.AuditEntry{
		Action:    action,
		PlanID:    planID,
		Timestamp: time.Now().UTC(),
	}
	if err := o.store.CreateAuditEntry(ctx, entry); err != nil {
		o.logger.WithPlanID(planID).WithError(err).Warn("failed to record audit entry")
	}
}

func (o *Orchestrator) persist(ctx context.Context, plan *migration.Plan) error {
	plan.UpdatedAt = time.Now().UTC()
	if err := o.store.SavePlan(ctx, plan); err != nil {
		return fmt.Errorf("persisting plan %s: %w", plan.ID, err)
	}
	return nil
}
