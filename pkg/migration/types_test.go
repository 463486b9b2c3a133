package migration

import "testing"

func testPlan() *Plan {
	return &Plan{
		ID:   "plan-1",
		Name: "test migration",
		Phases: []Phase{
			{
				ID:    "phase-1",
				Tasks: []Task{{ID: "task-1"}, {ID: "task-2"}},
			},
			{
				ID:    "phase-2",
				Tasks: []Task{{ID: "task-3"}},
			},
		},
	}
}

func TestPlan_Executable(t *testing.T) {
	plan := testPlan()
	if !plan.Executable() {
		t.Error("Expected plan with phases and tasks to be executable")
	}

	empty := &Plan{ID: "empty"}
	if empty.Executable() {
		t.Error("Expected plan without phases to not be executable")
	}

	phaseless := &Plan{
		ID:     "no-tasks",
		Phases: []Phase{{ID: "phase-1"}},
	}
	if phaseless.Executable() {
		t.Error("Expected plan with an empty phase to not be executable")
	}
}

func TestPlan_FindPhase(t *testing.T) {
	plan := testPlan()

	phase, idx := plan.FindPhase("phase-2")
	if phase == nil {
		t.Fatal("Expected to find phase-2")
	}
	if idx != 1 {
		t.Errorf("Expected index 1, got %d", idx)
	}

	// Returned pointer aliases the plan so status transitions stick.
	phase.Status = PhaseStatusInProgress
	if plan.Phases[1].Status != PhaseStatusInProgress {
		t.Error("Expected FindPhase to return a pointer into the plan")
	}

	if missing, idx := plan.FindPhase("nope"); missing != nil || idx != -1 {
		t.Error("Expected nil and -1 for missing phase")
	}
}

func TestPhase_FindTask(t *testing.T) {
	plan := testPlan()

	task := plan.Phases[0].FindTask("task-2")
	if task == nil {
		t.Fatal("Expected to find task-2")
	}

	if plan.Phases[0].FindTask("task-3") != nil {
		t.Error("Expected task-3 to be absent from phase-1")
	}
}

func TestPlan_TaskCount(t *testing.T) {
	if got := testPlan().TaskCount(); got != 3 {
		t.Errorf("Expected 3 tasks, got %d", got)
	}

	if got := (&Plan{}).TaskCount(); got != 0 {
		t.Errorf("Expected 0 tasks for empty plan, got %d", got)
	}
}
