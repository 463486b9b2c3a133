package migration

import "testing"

func TestClone_PartialPlan(t *testing.T) {
	// A plan fresh from a caller has no statuses yet. Clone must accept
	// it unchanged; defaults are the orchestrator's job.
	plan := &Plan{
		Name: "partial",
		Phases: []Phase{
			{Name: "prepare", Tasks: []Task{{Name: "backup", Type: TaskTypeBackup}}},
		},
	}

	clone := plan.Clone()
	if clone == nil {
		t.Fatal("expected clone of partial plan")
	}
	if clone.Status != "" {
		t.Errorf("expected empty status preserved, got %q", clone.Status)
	}
	if len(clone.Phases) != 1 || clone.Phases[0].Tasks[0].Name != "backup" {
		t.Errorf("expected phases copied, got %+v", clone.Phases)
	}
}

func TestClone_IsDeep(t *testing.T) {
	plan := &Plan{
		ID:     "plan-1",
		Status: PlanStatusDraft,
		Phases: []Phase{
			{ID: "phase-1", Status: PhaseStatusPending, Tasks: []Task{{ID: "task-1", Status: TaskStatusPending}}},
		},
	}

	clone := plan.Clone()
	clone.Phases[0].Tasks[0].Status = TaskStatusCompleted
	clone.Phases[0].Status = PhaseStatusCompleted

	if plan.Phases[0].Status != PhaseStatusPending {
		t.Error("mutating the clone must not touch the original phase")
	}
	if plan.Phases[0].Tasks[0].Status != TaskStatusPending {
		t.Error("mutating the clone must not touch the original task")
	}
}

func TestClone_Nil(t *testing.T) {
	var plan *Plan
	if plan.Clone() != nil {
		t.Error("cloning a nil plan should return nil")
	}
}
