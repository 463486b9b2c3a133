package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cutover/cutover/pkg/migration"
	"github.com/cutover/cutover/pkg/stores"
	"github.com/cutover/cutover/pkg/telemetry"
)

func testTelemetry(t *testing.T) *telemetry.Telemetry {
	t.Helper()
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = "error"
	cfg.Events.EnableAsync = false
	tel, err := telemetry.New(cfg)
	if err != nil {
		t.Fatalf("telemetry.New: %v", err)
	}
	return tel
}

func seedPlan(t *testing.T, store stores.Store) *migration.Plan {
	t.Helper()
	plan := &migration.Plan{
		ID:     "plan-1",
		Name:   "checkout cutover",
		Status: migration.PlanStatusDraft,
		Phases: []migration.Phase{
			{
				ID:     "phase-1",
				Name:   "backup",
				Status: migration.PhaseStatusPending,
				Tasks: []migration.Task{
					{ID: "task-1", Name: "dump orders", Type: migration.TaskTypeBackup, Status: migration.TaskStatusPending},
					{ID: "task-2", Name: "dump users", Type: migration.TaskTypeBackup, Status: migration.TaskStatusPending},
				},
			},
		},
	}
	if err := store.SavePlan(context.Background(), plan); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	return plan
}

func newTestService(t *testing.T, opts ...Option) (*Service, stores.Store) {
	t.Helper()
	store := stores.NewMemoryStore()
	svc := New(store, testTelemetry(t), opts...)
	return svc, store
}

func TestCreateRecoveryPoint_NonEmptyContract(t *testing.T) {
	svc, store := newTestService(t)
	seedPlan(t, store)

	point, err := svc.CreateRecoveryPoint(context.Background(), "plan-1", "phase-1")
	if err != nil {
		t.Fatalf("CreateRecoveryPoint: %v", err)
	}

	if len(point.Backups) == 0 {
		t.Fatal("expected at least one backup")
	}
	if len(point.ValidationSteps) == 0 {
		t.Fatal("expected at least one validation step")
	}
	hasIntegrity := false
	for _, vs := range point.ValidationSteps {
		if vs.Type == migration.ValidationTypeDataIntegrity {
			hasIntegrity = true
		}
	}
	if !hasIntegrity {
		t.Error("expected a data_integrity validation step")
	}
	if len(point.SystemState.Checksums) != len(point.Backups) {
		t.Errorf("checksum count = %d, backups = %d", len(point.SystemState.Checksums), len(point.Backups))
	}
	for _, backup := range point.Backups {
		if backup.Checksum == "" {
			t.Errorf("backup %s has empty checksum", backup.ID)
		}
	}
}

func TestCreateRecoveryPoint_Persisted(t *testing.T) {
	svc, store := newTestService(t)
	seedPlan(t, store)

	point, err := svc.CreateRecoveryPoint(context.Background(), "plan-1", "phase-1")
	if err != nil {
		t.Fatalf("CreateRecoveryPoint: %v", err)
	}

	loaded, err := svc.GetRecoveryPoint(context.Background(), point.ID)
	if err != nil {
		t.Fatalf("GetRecoveryPoint: %v", err)
	}
	if loaded.PlanID != "plan-1" || loaded.PhaseID != "phase-1" {
		t.Errorf("loaded point = %s/%s, want plan-1/phase-1", loaded.PlanID, loaded.PhaseID)
	}
	if len(loaded.Backups) != len(point.Backups) {
		t.Errorf("loaded %d backups, want %d", len(loaded.Backups), len(point.Backups))
	}

	points, err := svc.ListRecoveryPoints(context.Background(), "plan-1")
	if err != nil {
		t.Fatalf("ListRecoveryPoints: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("listed %d points, want 1", len(points))
	}
}

func TestCreateRecoveryPoint_NotFound(t *testing.T) {
	svc, store := newTestService(t)
	seedPlan(t, store)

	_, err := svc.CreateRecoveryPoint(context.Background(), "ghost-plan", "phase-1")
	if !migration.IsNotFound(err) {
		t.Fatalf("expected not-found error for missing plan, got %v", err)
	}

	_, err = svc.CreateRecoveryPoint(context.Background(), "plan-1", "ghost-phase")
	if !migration.IsNotFound(err) {
		t.Fatalf("expected not-found error for missing phase, got %v", err)
	}
}

type emptySnapshotter struct{}

func (emptySnapshotter) Snapshot(context.Context, *migration.Plan, *migration.Phase) (*SystemSnapshot, []DataBackup, error) {
	return &SystemSnapshot{CapturedAt: time.Now()}, nil, nil
}

func TestCreateRecoveryPoint_EmptySnapshotRejected(t *testing.T) {
	svc, store := newTestService(t, WithSnapshotter(emptySnapshotter{}))
	seedPlan(t, store)

	_, err := svc.CreateRecoveryPoint(context.Background(), "plan-1", "phase-1")
	if !migration.IsExecution(err) {
		t.Fatalf("expected execution error for empty snapshot, got %v", err)
	}
}

func TestCreateRecoveryPlan_StepShapeAndOrder(t *testing.T) {
	svc, store := newTestService(t)
	seedPlan(t, store)

	point, err := svc.CreateRecoveryPoint(context.Background(), "plan-1", "phase-1")
	if err != nil {
		t.Fatalf("CreateRecoveryPoint: %v", err)
	}
	plan, err := svc.CreateRecoveryPlan(context.Background(), point.ID)
	if err != nil {
		t.Fatalf("CreateRecoveryPlan: %v", err)
	}

	counts := map[string]int{}
	for _, step := range plan.Steps {
		counts[step.Kind]++
	}
	if counts[StepRestoreData] < 1 {
		t.Error("expected at least one restore_data step")
	}
	if counts[StepRestoreSchema] < 1 {
		t.Error("expected at least one restore_schema step")
	}
	if counts[StepValidateSystem] < 1 {
		t.Error("expected at least one validate_system step")
	}

	for i := 1; i < len(plan.Steps); i++ {
		if plan.Steps[i].Order < plan.Steps[i-1].Order {
			t.Fatalf("steps not sorted ascending by order: %d before %d",
				plan.Steps[i-1].Order, plan.Steps[i].Order)
		}
	}

	// Data restores come before schema restore, validation comes last.
	lastData, firstValidate := -1, len(plan.Steps)
	schemaIdx := -1
	for i, step := range plan.Steps {
		switch step.Kind {
		case StepRestoreData:
			lastData = i
		case StepRestoreSchema:
			schemaIdx = i
		case StepValidateSystem:
			if i < firstValidate {
				firstValidate = i
			}
		}
	}
	if lastData > schemaIdx || schemaIdx > firstValidate {
		t.Errorf("step ordering data=%d schema=%d validate=%d", lastData, schemaIdx, firstValidate)
	}

	if err := plan.Risk.DataLossRisk.Validate(); err != nil {
		t.Errorf("risk level %q invalid: %v", plan.Risk.DataLossRisk, err)
	}
}

func TestExecuteRecoveryPlan_BestEffort(t *testing.T) {
	var executed []string
	runner := func(_ context.Context, _ *RecoveryPoint, step RecoveryStep) error {
		executed = append(executed, step.Kind)
		if step.Kind == StepRestoreData {
			return errors.New("restore failed")
		}
		return nil
	}
	svc, store := newTestService(t, WithStepRunner(runner))
	seedPlan(t, store)

	point, err := svc.CreateRecoveryPoint(context.Background(), "plan-1", "phase-1")
	if err != nil {
		t.Fatalf("CreateRecoveryPoint: %v", err)
	}
	plan, err := svc.CreateRecoveryPlan(context.Background(), point.ID)
	if err != nil {
		t.Fatalf("CreateRecoveryPlan: %v", err)
	}

	result, err := svc.ExecuteRecoveryPlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("ExecuteRecoveryPlan: %v", err)
	}

	if result.Success {
		t.Error("expected result.Success = false after step failures")
	}
	if len(executed) != len(plan.Steps) {
		t.Errorf("executed %d steps, want all %d despite failures", len(executed), len(plan.Steps))
	}
	if len(result.StepResults) != len(plan.Steps) {
		t.Errorf("recorded %d step results, want %d", len(result.StepResults), len(plan.Steps))
	}
	failures := 0
	for _, sr := range result.StepResults {
		if !sr.Success {
			failures++
			if sr.Error == "" {
				t.Error("failed step result has empty error")
			}
		}
	}
	if failures == 0 {
		t.Error("expected failed step results to be recorded")
	}
}

func TestExecuteRecoveryPlan_AllSucceed(t *testing.T) {
	svc, store := newTestService(t)
	seedPlan(t, store)

	point, err := svc.CreateRecoveryPoint(context.Background(), "plan-1", "phase-1")
	if err != nil {
		t.Fatalf("CreateRecoveryPoint: %v", err)
	}
	plan, err := svc.CreateRecoveryPlan(context.Background(), point.ID)
	if err != nil {
		t.Fatalf("CreateRecoveryPlan: %v", err)
	}
	result, err := svc.ExecuteRecoveryPlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("ExecuteRecoveryPlan: %v", err)
	}
	if !result.Success {
		t.Error("expected success with default step runner")
	}
	if result.CompletedAt.Before(result.StartedAt) {
		t.Error("completed before started")
	}
}

func TestValidateSystemState_Unchanged(t *testing.T) {
	svc, store := newTestService(t)
	seedPlan(t, store)

	point, err := svc.CreateRecoveryPoint(context.Background(), "plan-1", "phase-1")
	if err != nil {
		t.Fatalf("CreateRecoveryPoint: %v", err)
	}

	results, err := svc.ValidateSystemState(context.Background(), point.ID)
	if err != nil {
		t.Fatalf("ValidateSystemState: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected validation findings")
	}
	for _, res := range results {
		if !res.Success {
			t.Errorf("step %s failed on unchanged system: %s", res.StepID, res.Message)
		}
	}
}

func TestValidateSystemState_DetectsDrift(t *testing.T) {
	svc, store := newTestService(t)
	plan := seedPlan(t, store)

	point, err := svc.CreateRecoveryPoint(context.Background(), "plan-1", "phase-1")
	if err != nil {
		t.Fatalf("CreateRecoveryPoint: %v", err)
	}

	// Mutating the plan changes the simulated checksums.
	plan.Phases[0].Tasks[0].Status = migration.TaskStatusCompleted
	if err := store.SavePlan(context.Background(), plan); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}

	results, err := svc.ValidateSystemState(context.Background(), point.ID)
	if err != nil {
		t.Fatalf("ValidateSystemState: %v", err)
	}
	drift := false
	for _, res := range results {
		if !res.Success {
			drift = true
		}
	}
	if !drift {
		t.Error("expected drift to be reported after plan mutation")
	}
}

func TestDeleteRecoveryPoint(t *testing.T) {
	svc, store := newTestService(t)
	seedPlan(t, store)

	point, err := svc.CreateRecoveryPoint(context.Background(), "plan-1", "phase-1")
	if err != nil {
		t.Fatalf("CreateRecoveryPoint: %v", err)
	}
	if err := svc.DeleteRecoveryPoint(context.Background(), point.ID); err != nil {
		t.Fatalf("DeleteRecoveryPoint: %v", err)
	}
	if _, err := svc.GetRecoveryPoint(context.Background(), point.ID); !migration.IsNotFound(err) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
}

func TestCreateTaskRecoveryPoint_ScopesToTask(t *testing.T) {
	svc, store := newTestService(t)
	plan := &migration.Plan{
		ID:     "plan-1",
		Name:   "checkout cutover",
		Status: migration.PlanStatusDraft,
		Phases: []migration.Phase{
			{
				ID:     "phase-1",
				Name:   "backup",
				Status: migration.PhaseStatusPending,
				Tasks: []migration.Task{
					{
						ID: "task-1", Name: "dump orders", Type: migration.TaskTypeBackup, Status: migration.TaskStatusPending,
						ValidationSteps: []migration.ValidationStep{
							{ID: "orders-check", Name: "verify order dump", Type: migration.ValidationTypeDataIntegrity},
						},
					},
					{
						ID: "task-2", Name: "dump users", Type: migration.TaskTypeBackup, Status: migration.TaskStatusPending,
						ValidationSteps: []migration.ValidationStep{
							{ID: "users-check", Name: "verify user dump", Type: migration.ValidationTypeDataIntegrity},
						},
					},
				},
			},
		},
	}
	if err := store.SavePlan(context.Background(), plan); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}

	point, err := svc.CreateTaskRecoveryPoint(context.Background(), "plan-1", "phase-1", "task-1")
	if err != nil {
		t.Fatalf("CreateTaskRecoveryPoint: %v", err)
	}
	if point.TaskID != "task-1" {
		t.Errorf("expected task scope task-1, got %q", point.TaskID)
	}

	stepIDs := make(map[string]bool, len(point.ValidationSteps))
	for _, vs := range point.ValidationSteps {
		stepIDs[vs.ID] = true
	}
	if !stepIDs["data-integrity"] || !stepIDs["connectivity"] {
		t.Errorf("expected default checks, got %v", stepIDs)
	}
	if !stepIDs["orders-check"] {
		t.Error("expected the scoped task's validation step")
	}
	if stepIDs["users-check"] {
		t.Error("validation steps from other tasks should be excluded")
	}

	// Scope survives persistence.
	loaded, err := svc.GetRecoveryPoint(context.Background(), point.ID)
	if err != nil {
		t.Fatalf("GetRecoveryPoint: %v", err)
	}
	if loaded.TaskID != "task-1" {
		t.Errorf("expected persisted task scope task-1, got %q", loaded.TaskID)
	}
}

func TestCreateTaskRecoveryPoint_Invalid(t *testing.T) {
	svc, store := newTestService(t)
	seedPlan(t, store)

	_, err := svc.CreateTaskRecoveryPoint(context.Background(), "plan-1", "phase-1", "ghost-task")
	if !migration.IsNotFound(err) {
		t.Fatalf("expected not-found error for missing task, got %v", err)
	}

	_, err = svc.CreateTaskRecoveryPoint(context.Background(), "plan-1", "phase-1", "")
	if !migration.IsValidation(err) {
		t.Fatalf("expected validation error for empty task ID, got %v", err)
	}
}
