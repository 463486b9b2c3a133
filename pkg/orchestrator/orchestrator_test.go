package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cutover/cutover/pkg/engine"
	"github.com/cutover/cutover/pkg/migration"
	"github.com/cutover/cutover/pkg/stores"
	"github.com/cutover/cutover/pkg/telemetry"
)

// recordingExecutor tracks executed task IDs and fails the ones
// listed in failTasks.
type recordingExecutor struct {
	mu        sync.Mutex
	executed  []string
	failTasks map[string]bool
}

func (r *recordingExecutor) CanExecute(migration.TaskType) bool { return true }

func (r *recordingExecutor) Execute(_ context.Context, task *migration.Task, _ *migration.ExecutionContext) (*migration.ExecutionResult, error) {
	r.mu.Lock()
	r.executed = append(r.executed, task.ID)
	fail := r.failTasks[task.ID]
	r.mu.Unlock()
	if fail {
		return nil, errors.New("task blew up")
	}
	now := time.Now()
	return &migration.ExecutionResult{TaskID: task.ID, Success: true, StartedAt: now, CompletedAt: now}, nil
}

func (r *recordingExecutor) Validate(context.Context, *migration.Task, *migration.ExecutionContext) ([]migration.ValidationResult, error) {
	return nil, nil
}

func (r *recordingExecutor) Rollback(_ context.Context, task *migration.Task, execCtx *migration.ExecutionContext) (*migration.RollbackResult, error) {
	now := time.Now().UTC()
	return &migration.RollbackResult{PlanID: execCtx.PlanID, Success: true, StartedAt: now, CompletedAt: now}, nil
}

func (r *recordingExecutor) executedTasks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.executed...)
}

func newTestOrchestrator(t *testing.T, executor engine.Executor, opts ...Option) (*Orchestrator, stores.Store) {
	t.Helper()
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = "error"
	cfg.Events.EnableAsync = false
	tel, err := telemetry.New(cfg)
	if err != nil {
		t.Fatalf("telemetry: %v", err)
	}

	registry := engine.NewRegistry()
	if executor != nil {
		for _, taskType := range migration.TaskTypes() {
			registry.Register(taskType, executor)
		}
	} else {
		engine.RegisterDefaults(registry)
	}

	store := stores.NewMemoryStore()
	eng := engine.New(registry, tel)
	opts = append([]Option{WithDefaultMaxRetries(0), WithDefaultTimeout(5 * time.Second)}, opts...)
	return New(store, eng, tel, opts...), store
}

func twoPhasePlan() *migration.Plan {
	return &migration.Plan{
		ID:   "plan-1",
		Name: "db cutover",
		Phases: []migration.Phase{
			{
				ID:   "phase-1",
				Name: "prepare",
				Tasks: []migration.Task{
					{ID: "task-1", Name: "backup", Type: migration.TaskTypeBackup},
				},
				EstimatedDuration: 60,
				Rollback: migration.RollbackProcedure{
					ID: "rb-1",
					Steps: []migration.RollbackStep{
						{ID: "rb-1-step", Action: "restore_data", Order: 1},
					},
				},
			},
			{
				ID:   "phase-2",
				Name: "migrate",
				Tasks: []migration.Task{
					{ID: "task-2", Name: "copy rows", Type: migration.TaskTypeDataMigration},
					{ID: "task-3", Name: "verify", Type: migration.TaskTypeValidation},
				},
				EstimatedDuration: 120,
				Rollback: migration.RollbackProcedure{
					ID: "rb-2",
					Steps: []migration.RollbackStep{
						{ID: "rb-2-second", Action: "restore_schema", Order: 2},
						{ID: "rb-2-first", Action: "restore_data", Order: 1},
					},
				},
			},
		},
	}
}

func TestCreatePlanDefaultsAndEstimate(t *testing.T) {
	orch, _ := newTestOrchestrator(t, nil)

	created, err := orch.CreatePlan(context.Background(), twoPhasePlan())
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	if created.Status != migration.PlanStatusDraft {
		t.Errorf("expected draft status, got %s", created.Status)
	}
	// ceil((60+120) * 1.2) = 216
	if created.EstimatedDuration != 216 {
		t.Errorf("expected estimated duration 216, got %d", created.EstimatedDuration)
	}
	if created.Dependencies == nil || created.RollbackStrategies == nil {
		t.Error("expected empty collections, not nil")
	}
	for _, phase := range created.Phases {
		if phase.Status != migration.PhaseStatusPending {
			t.Errorf("phase %s should default to pending, got %s", phase.ID, phase.Status)
		}
		for _, task := range phase.Tasks {
			if task.Status != migration.TaskStatusPending {
				t.Errorf("task %s should default to pending, got %s", task.ID, task.Status)
			}
		}
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestCreatePlanEmptyPlanSucceeds(t *testing.T) {
	orch, _ := newTestOrchestrator(t, nil)

	created, err := orch.CreatePlan(context.Background(), &migration.Plan{Name: "empty"})
	if err != nil {
		t.Fatalf("create plan with no phases should succeed: %v", err)
	}
	if created.ID == "" {
		t.Error("expected generated plan ID")
	}
	if created.EstimatedDuration != 0 {
		t.Errorf("expected 0 estimate for empty plan, got %d", created.EstimatedDuration)
	}
}

func TestExecutePhaseSuccess(t *testing.T) {
	executor := &recordingExecutor{}
	orch, store := newTestOrchestrator(t, executor)
	ctx := context.Background()

	plan, err := orch.CreatePlan(ctx, twoPhasePlan())
	if err != nil {
		t.Fatal(err)
	}

	if err := orch.ExecutePhase(ctx, plan.ID, "phase-1"); err != nil {
		t.Fatalf("execute phase-1: %v", err)
	}
	if err := orch.ExecutePhase(ctx, plan.ID, "phase-2"); err != nil {
		t.Fatalf("execute phase-2: %v", err)
	}

	// Tasks ran strictly in list order.
	if got := executor.executedTasks(); len(got) != 3 || got[0] != "task-1" || got[1] != "task-2" || got[2] != "task-3" {
		t.Errorf("expected tasks in list order, got %v", got)
	}

	stored, err := store.GetPlan(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != migration.PlanStatusCompleted {
		t.Errorf("expected plan completed, got %s", stored.Status)
	}
	if stored.CompletedAt == nil || stored.StartedAt == nil {
		t.Error("expected started and completed timestamps")
	}
	for _, phase := range stored.Phases {
		if phase.Status != migration.PhaseStatusCompleted {
			t.Errorf("phase %s should be completed, got %s", phase.ID, phase.Status)
		}
	}

	results, err := store.ListExecutionResults(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 execution results persisted, got %d", len(results))
	}
}

func TestExecutePhaseAbortsOnFirstFailure(t *testing.T) {
	executor := &recordingExecutor{failTasks: map[string]bool{"task-2": true}}
	orch, store := newTestOrchestrator(t, executor)
	ctx := context.Background()

	plan, err := orch.CreatePlan(ctx, twoPhasePlan())
	if err != nil {
		t.Fatal(err)
	}

	err = orch.ExecutePhase(ctx, plan.ID, "phase-2")
	if err == nil {
		t.Fatal("expected failure to propagate")
	}

	// task-3 must not run after task-2 failed.
	for _, id := range executor.executedTasks() {
		if id == "task-3" {
			t.Error("phase should abort on first task failure")
		}
	}

	stored, err := store.GetPlan(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	phase, _ := stored.FindPhase("phase-2")
	if phase.Status != migration.PhaseStatusFailed {
		t.Errorf("expected phase failed, got %s", phase.Status)
	}
	if phase.Error == "" {
		t.Error("expected failure message recorded on phase")
	}
	if stored.Status != migration.PlanStatusFailed {
		t.Errorf("expected plan failed, got %s", stored.Status)
	}
	if task := phase.FindTask("task-2"); task.Status != migration.TaskStatusFailed {
		t.Errorf("expected task-2 failed, got %s", task.Status)
	}
	if task := phase.FindTask("task-3"); task.Status != migration.TaskStatusPending {
		t.Errorf("expected task-3 untouched, got %s", task.Status)
	}
}

func TestExecutePhaseNotFoundPlan(t *testing.T) {
	orch, _ := newTestOrchestrator(t, nil)

	err := orch.ExecutePhase(context.Background(), "ghost-plan", "phase-1")
	if !migration.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if !strings.Contains(err.Error(), "ghost-plan") {
		t.Errorf("error should name the plan id, got %q", err.Error())
	}
}

func TestExecuteTaskNotFound(t *testing.T) {
	orch, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()

	if err := orch.ExecuteTask(ctx, "ghost-plan", "phase-1", "task-1"); !migration.IsNotFound(err) {
		t.Errorf("expected not-found for missing plan, got %v", err)
	}

	plan, err := orch.CreatePlan(ctx, twoPhasePlan())
	if err != nil {
		t.Fatal(err)
	}
	if err := orch.ExecuteTask(ctx, plan.ID, "phase-1", "ghost-task"); !migration.IsNotFound(err) {
		t.Errorf("expected not-found for missing task, got %v", err)
	}
}

func TestExecutePhasePrerequisiteUnmet(t *testing.T) {
	orch, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()

	p := twoPhasePlan()
	p.Phases[1].Prerequisites = []string{"phase-1"}
	plan, err := orch.CreatePlan(ctx, p)
	if err != nil {
		t.Fatal(err)
	}

	err = orch.ExecutePhase(ctx, plan.ID, "phase-2")
	if !migration.IsValidation(err) {
		t.Fatalf("expected validation error for unmet prerequisite, got %v", err)
	}
	if !strings.Contains(err.Error(), "phase-1") {
		t.Errorf("error should name the prerequisite, got %q", err.Error())
	}
}

func TestCancelStopsAtTaskBoundary(t *testing.T) {
	executor := &recordingExecutor{}
	orch, store := newTestOrchestrator(t, executor)
	ctx := context.Background()

	plan, err := orch.CreatePlan(ctx, twoPhasePlan())
	if err != nil {
		t.Fatal(err)
	}

	if err := orch.Cancel(ctx, plan.ID); err != nil {
		t.Fatal(err)
	}

	err = orch.ExecutePhase(ctx, plan.ID, "phase-1")
	if err == nil {
		t.Fatal("expected cancellation error")
	}

	if len(executor.executedTasks()) != 0 {
		t.Error("no task should run after cancellation")
	}
	stored, err := store.GetPlan(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != migration.PlanStatusCancelled {
		t.Errorf("expected cancelled plan, got %s", stored.Status)
	}
}

func TestPauseOnMissingPlan(t *testing.T) {
	orch, _ := newTestOrchestrator(t, nil)
	if err := orch.Pause(context.Background(), "ghost"); !migration.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

type rejectingGate struct{}

func (rejectingGate) CheckPhase(context.Context, *migration.Plan, string) error {
	return errors.New("phase lacks a verified backup")
}

func TestPolicyGateBlocksPhase(t *testing.T) {
	executor := &recordingExecutor{}
	orch, _ := newTestOrchestrator(t, executor, WithPolicyGate(rejectingGate{}))
	ctx := context.Background()

	plan, err := orch.CreatePlan(ctx, twoPhasePlan())
	if err != nil {
		t.Fatal(err)
	}

	err = orch.ExecutePhase(ctx, plan.ID, "phase-1")
	if !migration.IsValidation(err) {
		t.Fatalf("expected validation error from policy gate, got %v", err)
	}
	if len(executor.executedTasks()) != 0 {
		t.Error("no task should run when the policy gate rejects")
	}
}
