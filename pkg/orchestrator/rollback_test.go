package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cutover/cutover/pkg/migration"
)

// stepRecorder captures rollback step invocations in order.
type stepRecorder struct {
	mu    sync.Mutex
	steps []string
	fail  map[string]bool
}

func (r *stepRecorder) run(_ context.Context, _ *migration.Phase, step migration.RollbackStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step.ID)
	if r.fail[step.ID] {
		return errors.New("restore failed")
	}
	return nil
}

func (r *stepRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

func completedThreePhasePlan() *migration.Plan {
	phase := func(id string, steps ...migration.RollbackStep) migration.Phase {
		return migration.Phase{
			ID:     id,
			Name:   id,
			Status: migration.PhaseStatusCompleted,
			Tasks: []migration.Task{
				{ID: id + "-task", Type: migration.TaskTypeDataMigration, Status: migration.TaskStatusCompleted},
			},
			Rollback: migration.RollbackProcedure{ID: "rb-" + id, Steps: steps},
		}
	}
	return &migration.Plan{
		ID:     "plan-1",
		Name:   "cutover",
		Status: migration.PlanStatusFailed,
		Phases: []migration.Phase{
			phase("phase-1", migration.RollbackStep{ID: "p1-step", Order: 1}),
			phase("phase-2",
				migration.RollbackStep{ID: "p2-second", Order: 2},
				migration.RollbackStep{ID: "p2-first", Order: 1},
			),
			phase("phase-3", migration.RollbackStep{ID: "p3-step", Order: 1}),
		},
	}
}

func TestRollbackToPhaseReverseOrder(t *testing.T) {
	recorder := &stepRecorder{}
	orch, store := newTestOrchestrator(t, nil, WithRollbackStepRunner(recorder.run))
	ctx := context.Background()

	plan := completedThreePhasePlan()
	if err := store.SavePlan(ctx, plan); err != nil {
		t.Fatal(err)
	}

	result, err := orch.RollbackToPhase(ctx, "plan-1", "phase-1")
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if !result.Success {
		t.Errorf("expected successful rollback, got %+v", result)
	}

	// Phases after the target are processed in reverse plan order.
	if len(result.RolledBackPhases) != 2 ||
		result.RolledBackPhases[0] != "phase-3" ||
		result.RolledBackPhases[1] != "phase-2" {
		t.Errorf("expected [phase-3 phase-2], got %v", result.RolledBackPhases)
	}

	// Steps within phase-2 run in ascending Order: list position is
	// [order:2, order:1], execution must be [order:1, order:2].
	steps := recorder.recorded()
	if len(steps) != 3 || steps[0] != "p3-step" || steps[1] != "p2-first" || steps[2] != "p2-second" {
		t.Errorf("expected [p3-step p2-first p2-second], got %v", steps)
	}

	stored, err := store.GetPlan(ctx, "plan-1")
	if err != nil {
		t.Fatal(err)
	}
	for _, phase := range stored.Phases {
		switch phase.ID {
		case "phase-1":
			if phase.Status != migration.PhaseStatusCompleted {
				t.Errorf("target phase must not be rolled back, got %s", phase.Status)
			}
		default:
			if phase.Status != migration.PhaseStatusRolledBack {
				t.Errorf("phase %s should be rolled back, got %s", phase.ID, phase.Status)
			}
			if phase.Tasks[0].Status != migration.TaskStatusRolledBack {
				t.Errorf("tasks in %s should be rolled back, got %s", phase.ID, phase.Tasks[0].Status)
			}
		}
	}

	saved, err := store.ListRollbackResults(ctx, "plan-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 1 {
		t.Errorf("expected rollback result persisted, got %d", len(saved))
	}
}

func TestRollbackStepFailureRecordedNotThrown(t *testing.T) {
	recorder := &stepRecorder{fail: map[string]bool{"p2-first": true}}
	orch, store := newTestOrchestrator(t, nil, WithRollbackStepRunner(recorder.run))
	ctx := context.Background()

	if err := store.SavePlan(ctx, completedThreePhasePlan()); err != nil {
		t.Fatal(err)
	}

	result, err := orch.RollbackToPhase(ctx, "plan-1", "phase-1")
	if err != nil {
		t.Fatalf("rollback failures must not be re-thrown, got %v", err)
	}
	if result.Success {
		t.Error("expected failed rollback result")
	}
	if !strings.Contains(result.Error, "p2-first") {
		t.Errorf("result should name the failed step, got %q", result.Error)
	}

	// Later steps still ran (best-effort restoration).
	steps := recorder.recorded()
	if len(steps) != 3 {
		t.Errorf("expected all steps attempted, got %v", steps)
	}

	// The failed step must not appear in the executed list.
	for _, id := range result.StepsExecuted {
		if id == "p2-first" {
			t.Error("failed step should not be recorded as executed")
		}
	}

	// The plan is persisted in whatever partial state was reached.
	stored, err := store.GetPlan(ctx, "plan-1")
	if err != nil {
		t.Fatal(err)
	}
	phase, _ := stored.FindPhase("phase-2")
	if phase.Status != migration.PhaseStatusRolledBack {
		t.Errorf("processed phase should still be marked rolled back, got %s", phase.Status)
	}
}

func TestRollbackToPhaseNotFound(t *testing.T) {
	orch, store := newTestOrchestrator(t, nil)
	ctx := context.Background()

	if _, err := orch.RollbackToPhase(ctx, "ghost-plan", "phase-1"); !migration.IsNotFound(err) {
		t.Errorf("expected not-found for missing plan, got %v", err)
	}

	if err := store.SavePlan(ctx, completedThreePhasePlan()); err != nil {
		t.Fatal(err)
	}
	_, err := orch.RollbackToPhase(ctx, "plan-1", "ghost-phase")
	if !migration.IsNotFound(err) {
		t.Errorf("expected not-found for missing phase, got %v", err)
	}
	if !strings.Contains(err.Error(), "ghost-phase") {
		t.Errorf("error should name the phase, got %q", err.Error())
	}
}

func TestRollbackToLastPhaseIsNoop(t *testing.T) {
	recorder := &stepRecorder{}
	orch, store := newTestOrchestrator(t, nil, WithRollbackStepRunner(recorder.run))
	ctx := context.Background()

	if err := store.SavePlan(ctx, completedThreePhasePlan()); err != nil {
		t.Fatal(err)
	}

	result, err := orch.RollbackToPhase(ctx, "plan-1", "phase-3")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success || len(result.RolledBackPhases) != 0 || len(recorder.recorded()) != 0 {
		t.Errorf("rolling back to the last phase should touch nothing, got %+v", result)
	}
}

func TestAutomaticRollbackOnPhaseFailure(t *testing.T) {
	executor := &recordingExecutor{failTasks: map[string]bool{"task-2": true}}
	recorder := &stepRecorder{}
	orch, store := newTestOrchestrator(t, executor, WithRollbackStepRunner(recorder.run))
	ctx := context.Background()

	p := twoPhasePlan()
	p.RollbackStrategies = []migration.RollbackStrategy{
		{ID: "strat-1", Name: "auto on failure", Trigger: migration.TriggerOnPhaseFailure, Automatic: true},
	}
	plan, err := orch.CreatePlan(ctx, p)
	if err != nil {
		t.Fatal(err)
	}

	if err := orch.ExecutePhase(ctx, plan.ID, "phase-1"); err != nil {
		t.Fatalf("execute phase-1: %v", err)
	}
	if err := orch.ExecutePhase(ctx, plan.ID, "phase-2"); err == nil {
		t.Fatal("expected phase-2 failure to propagate")
	}

	stored, err := store.GetPlan(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != migration.PlanStatusFailed {
		t.Errorf("expected plan failed, got %s", stored.Status)
	}
	phase1, _ := stored.FindPhase("phase-1")
	if phase1.Status != migration.PhaseStatusRolledBack {
		t.Errorf("completed phase should be rolled back automatically, got %s", phase1.Status)
	}
	if phase1.Tasks[0].Status != migration.TaskStatusRolledBack {
		t.Errorf("completed task should be rolled back, got %s", phase1.Tasks[0].Status)
	}
	phase2, _ := stored.FindPhase("phase-2")
	if phase2.Status != migration.PhaseStatusFailed {
		t.Errorf("failed phase stays failed, got %s", phase2.Status)
	}

	// Phase-1's procedure ran.
	if steps := recorder.recorded(); len(steps) != 1 || steps[0] != "rb-1-step" {
		t.Errorf("expected [rb-1-step], got %v", steps)
	}

	saved, err := store.ListRollbackResults(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 1 {
		t.Fatalf("expected one rollback result persisted, got %d", len(saved))
	}
	if got := saved[0].RolledBackPhases; len(got) != 1 || got[0] != "phase-1" {
		t.Errorf("expected [phase-1] rolled back, got %v", got)
	}
}

func TestNoAutomaticRollbackWithoutStrategy(t *testing.T) {
	executor := &recordingExecutor{failTasks: map[string]bool{"task-2": true}}
	recorder := &stepRecorder{}
	orch, store := newTestOrchestrator(t, executor, WithRollbackStepRunner(recorder.run))
	ctx := context.Background()

	// A manual strategy must not fire on its own.
	p := twoPhasePlan()
	p.RollbackStrategies = []migration.RollbackStrategy{
		{ID: "strat-1", Trigger: migration.TriggerManual, Automatic: false},
	}
	plan, err := orch.CreatePlan(ctx, p)
	if err != nil {
		t.Fatal(err)
	}

	if err := orch.ExecutePhase(ctx, plan.ID, "phase-1"); err != nil {
		t.Fatal(err)
	}
	if err := orch.ExecutePhase(ctx, plan.ID, "phase-2"); err == nil {
		t.Fatal("expected phase-2 failure to propagate")
	}

	stored, err := store.GetPlan(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	phase1, _ := stored.FindPhase("phase-1")
	if phase1.Status != migration.PhaseStatusCompleted {
		t.Errorf("phase-1 must stay completed without an automatic strategy, got %s", phase1.Status)
	}
	if len(recorder.recorded()) != 0 {
		t.Errorf("no rollback steps should run, got %v", recorder.recorded())
	}
	saved, err := store.ListRollbackResults(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 0 {
		t.Errorf("expected no rollback results, got %d", len(saved))
	}
}

func TestRollbackTask(t *testing.T) {
	executor := &recordingExecutor{}
	orch, store := newTestOrchestrator(t, executor)
	ctx := context.Background()

	plan := completedThreePhasePlan()
	if err := store.SavePlan(ctx, plan); err != nil {
		t.Fatal(err)
	}

	result, err := orch.RollbackTask(ctx, "plan-1", "phase-2", "phase-2-task")
	if err != nil {
		t.Fatalf("rollback task: %v", err)
	}
	if !result.Success {
		t.Errorf("expected successful task rollback, got %+v", result)
	}

	stored, err := store.GetPlan(ctx, "plan-1")
	if err != nil {
		t.Fatal(err)
	}
	phase, _ := stored.FindPhase("phase-2")
	if task := phase.FindTask("phase-2-task"); task.Status != migration.TaskStatusRolledBack {
		t.Errorf("expected task rolled back, got %s", task.Status)
	}
}
