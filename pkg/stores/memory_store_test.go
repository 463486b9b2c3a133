package stores

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cutover/cutover/pkg/migration"
)

func samplePlan(id string) *migration.Plan {
	now := time.Now().UTC()
	return &migration.Plan{
		ID:      id,
		Name:    "db cutover",
		Version: "1.0.0",
		Status:  migration.PlanStatusDraft,
		Phases: []migration.Phase{
			{
				ID:     "phase-1",
				Name:   "prepare",
				Status: migration.PhaseStatusPending,
				Tasks: []migration.Task{
					{ID: "task-1", Name: "backup", Type: migration.TaskTypeBackup, Status: migration.TaskStatusPending},
				},
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryStorePlanRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	plan := samplePlan("plan-1")
	if err := store.SavePlan(ctx, plan); err != nil {
		t.Fatalf("save plan: %v", err)
	}

	got, err := store.GetPlan(ctx, "plan-1")
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if got.Name != plan.Name || len(got.Phases) != 1 {
		t.Errorf("plan round trip mismatch: %+v", got)
	}
}

func TestMemoryStoreGetPlanNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetPlan(context.Background(), "missing-plan")
	if err == nil {
		t.Fatal("expected error for missing plan")
	}
	if !migration.IsNotFound(err) {
		t.Errorf("expected not-found classification, got %v", err)
	}
	if want := "missing-plan"; !strings.Contains(err.Error(), want) {
		t.Errorf("error should name the missing id, got %q", err.Error())
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	plan := samplePlan("plan-1")
	if err := store.SavePlan(ctx, plan); err != nil {
		t.Fatalf("save plan: %v", err)
	}

	// Mutating the original after save must not affect the store.
	plan.Phases[0].Status = migration.PhaseStatusFailed

	got, err := store.GetPlan(ctx, "plan-1")
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if got.Phases[0].Status != migration.PhaseStatusPending {
		t.Error("store should hold a copy, not share caller state")
	}

	// Mutating a read result must not affect subsequent reads.
	got.Status = migration.PlanStatusFailed
	again, err := store.GetPlan(ctx, "plan-1")
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if again.Status != migration.PlanStatusDraft {
		t.Error("reads should return independent copies")
	}
}

func TestMemoryStoreListPlansOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	older := samplePlan("plan-old")
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := samplePlan("plan-new")

	if err := store.SavePlan(ctx, older); err != nil {
		t.Fatal(err)
	}
	if err := store.SavePlan(ctx, newer); err != nil {
		t.Fatal(err)
	}

	plans, err := store.ListPlans(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list plans: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(plans))
	}
	if plans[0].ID != "plan-new" {
		t.Errorf("expected newest first, got %s", plans[0].ID)
	}
}

func TestMemoryStoreDeletePlanCascades(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.SavePlan(ctx, samplePlan("plan-1")); err != nil {
		t.Fatal(err)
	}
	res := &migration.ExecutionResult{TaskID: "task-1", Success: true}
	if err := store.SaveExecutionResult(ctx, "plan-1", "phase-1", res); err != nil {
		t.Fatal(err)
	}

	if err := store.DeletePlan(ctx, "plan-1"); err != nil {
		t.Fatalf("delete plan: %v", err)
	}

	results, err := store.ListExecutionResults(ctx, "plan-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected execution results removed with plan, got %d", len(results))
	}
}

func TestMemoryStoreRollbackResults(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	result := &migration.RollbackResult{
		PlanID:           "plan-1",
		TargetPhaseID:    "phase-1",
		Success:          true,
		RolledBackPhases: []string{"phase-3", "phase-2"},
		StepsExecuted:    []string{"step-a", "step-b"},
	}
	if err := store.SaveRollbackResult(ctx, result); err != nil {
		t.Fatalf("save rollback result: %v", err)
	}

	// Mutating caller slices must not leak into the store.
	result.RolledBackPhases[0] = "mutated"

	got, err := store.ListRollbackResults(ctx, "plan-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 rollback result, got %d", len(got))
	}
	if got[0].RolledBackPhases[0] != "phase-3" {
		t.Error("rollback result should be copied on save")
	}
}

func TestMemoryStoreRecoveryPoints(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := &RecoveryPointRecord{
		ID:        "rp-1",
		PlanID:    "plan-1",
		PhaseID:   "phase-1",
		Document:  `{"snapshot":{}}`,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SaveRecoveryPoint(ctx, rec); err != nil {
		t.Fatalf("save recovery point: %v", err)
	}

	got, err := store.GetRecoveryPoint(ctx, "rp-1")
	if err != nil {
		t.Fatalf("get recovery point: %v", err)
	}
	if got.PlanID != "plan-1" {
		t.Errorf("unexpected record: %+v", got)
	}

	if err := store.DeleteRecoveryPoint(ctx, "rp-1"); err != nil {
		t.Fatalf("delete recovery point: %v", err)
	}
	if _, err := store.GetRecoveryPoint(ctx, "rp-1"); !migration.IsNotFound(err) {
		t.Errorf("expected not-found after delete, got %v", err)
	}
}

func TestMemoryStoreAuditEntries(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, action := range []string{"plan.created", "phase.executed"} {
		entry := &AuditEntry{Action: action, PlanID: "plan-1", Timestamp: time.Now()}
		if err := store.CreateAuditEntry(ctx, entry); err != nil {
			t.Fatalf("create audit entry: %v", err)
		}
		if entry.ID == 0 {
			t.Error("expected assigned audit entry ID")
		}
	}

	planID := "plan-1"
	entries, err := store.ListAuditEntries(ctx, &planID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].Action != "phase.executed" {
		t.Errorf("expected newest entry first, got %s", entries[0].Action)
	}
}
