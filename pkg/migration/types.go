package migration

import (
	"time"
)

// Plan represents a complete staged migration: an ordered sequence of
// phases plus the dependency and rollback metadata needed to execute,
// validate, and reverse them.
type Plan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"id"`

	// Name is the human-readable plan name.
	Name string `json:"name"`

	// Version is the plan version string (e.g., "1.0.0").
	Version string `json:"version"`

	// Phases are the migration phases, executed strictly in list order.
	Phases []Phase `json:"phases"`

	// Dependencies are cross-phase dependency records. They are validated
	// structurally but do not reorder execution.
	Dependencies []Dependency `json:"dependencies,omitempty"`

	// RollbackStrategies describe when and how the plan may be reversed.
	RollbackStrategies []RollbackStrategy `json:"rollback_strategies,omitempty"`

	// EstimatedDuration is the buffered duration estimate in minutes,
	// recomputed from phase durations at creation time.
	EstimatedDuration int `json:"estimated_duration"`

	// Status is the current plan status.
	Status PlanStatus `json:"status"`

	// CreatedAt is when the plan was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the plan was last modified.
	UpdatedAt time.Time `json:"updated_at"`

	// StartedAt is when execution of the plan began.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the plan reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Metadata contains additional plan metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Phase is a group of tasks executed together with shared prerequisites,
// success criteria, and a single rollback procedure.
type Phase struct {
	// ID is the unique identifier for this phase.
	ID string `json:"id"`

	// Name is the human-readable phase name.
	Name string `json:"name"`

	// Tasks are executed strictly in list order.
	Tasks []Task `json:"tasks"`

	// Prerequisites are identifiers of conditions that must hold before
	// the phase may start.
	Prerequisites []string `json:"prerequisites,omitempty"`

	// SuccessCriteria are identifiers of conditions checked after the
	// last task completes.
	SuccessCriteria []string `json:"success_criteria,omitempty"`

	// Rollback is the procedure that reverses this phase.
	Rollback RollbackProcedure `json:"rollback"`

	// EstimatedDuration is the expected phase duration in minutes.
	EstimatedDuration int `json:"estimated_duration"`

	// Status is the current phase status.
	Status PhaseStatus `json:"status"`

	// Error is the failure message when Status is failed.
	Error string `json:"error,omitempty"`

	// StartedAt is when the phase started executing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the phase reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Task is the smallest executable unit of a migration, typed by its kind
// and carrying its own validation and rollback steps.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`

	// Name is the human-readable task name.
	Name string `json:"name"`

	// Type selects the executor responsible for this task.
	Type TaskType `json:"type"`

	// Parameters is the free-form parameter map passed to the executor.
	Parameters map[string]interface{} `json:"parameters,omitempty"`

	// DependsOn lists task IDs this task depends on. Informational only;
	// execution order follows list position within the phase.
	DependsOn []string `json:"depends_on,omitempty"`

	// ValidationSteps are run after the task executes.
	ValidationSteps []ValidationStep `json:"validation_steps,omitempty"`

	// RollbackSteps reverse this individual task.
	RollbackSteps []RollbackStep `json:"rollback_steps,omitempty"`

	// Status is the current task status.
	Status TaskStatus `json:"status"`

	// Result is the output payload from the last execution, if any.
	Result map[string]interface{} `json:"result,omitempty"`

	// Error is the failure message when Status is failed.
	Error string `json:"error,omitempty"`
}

// Dependency records a relationship between two phases of a plan.
type Dependency struct {
	// ID is the unique identifier for this dependency record.
	ID string `json:"id"`

	// Source is the ID of the dependent phase.
	Source string `json:"source"`

	// Target is the ID of the phase being depended on.
	Target string `json:"target"`

	// Kind describes the relationship (e.g., "data", "schema", "service").
	Kind string `json:"kind,omitempty"`
}

// Rollback strategy triggers.
const (
	// TriggerOnPhaseFailure activates the strategy when a phase fails.
	TriggerOnPhaseFailure = "on_phase_failure"

	// TriggerOnTaskFailure activates the strategy when a task fails.
	TriggerOnTaskFailure = "on_task_failure"

	// TriggerManual leaves rollback to an operator.
	TriggerManual = "manual"
)

// RollbackStrategy describes when a plan-level rollback is triggered.
type RollbackStrategy struct {
	// ID is the unique identifier for this strategy.
	ID string `json:"id"`

	// Name is the human-readable strategy name.
	Name string `json:"name"`

	// Trigger names the condition that activates the strategy
	// (e.g., "on_phase_failure", "manual").
	Trigger string `json:"trigger"`

	// Automatic indicates the orchestrator should apply the strategy
	// without operator intervention.
	Automatic bool `json:"automatic"`
}

// RollbackProcedure is the ordered, validated undo path for a phase.
type RollbackProcedure struct {
	// ID is the unique identifier for this procedure.
	ID string `json:"id"`

	// Name is the human-readable procedure name.
	Name string `json:"name"`

	// Steps are the rollback steps. Execution follows each step's Order
	// field in ascending order, not list position.
	Steps []RollbackStep `json:"steps"`

	// ValidationChecks are run after the steps complete.
	ValidationChecks []ValidationStep `json:"validation_checks,omitempty"`

	// SafetyChecks are free-text identifiers of preconditions verified
	// before the procedure runs.
	SafetyChecks []string `json:"safety_checks,omitempty"`
}

// RollbackStep is a single unit of undo work within a procedure.
type RollbackStep struct {
	// ID is the unique identifier for this step.
	ID string `json:"id"`

	// Name is the human-readable step name.
	Name string `json:"name"`

	// Action names the operation to perform (e.g., "restore_data").
	Action string `json:"action"`

	// Order is the authoritative sequencing key within the procedure.
	Order int `json:"order"`

	// Parameters is the free-form parameter map for the action.
	Parameters map[string]interface{} `json:"parameters,omitempty"`

	// Timeout is the maximum duration allowed for the step.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// ValidationStep describes a single check with its pass criteria.
type ValidationStep struct {
	// ID is the unique identifier for this step.
	ID string `json:"id"`

	// Name is the human-readable step name.
	Name string `json:"name"`

	// Type is the kind of validation performed.
	Type ValidationType `json:"type"`

	// Criteria are the pass conditions for the check.
	Criteria ValidationCriteria `json:"criteria"`

	// TimeoutSeconds is the maximum time the check may take.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// ValidationCriteria captures the expected outcome of a validation step.
type ValidationCriteria struct {
	// Expected is the expected result value, if any.
	Expected interface{} `json:"expected,omitempty"`

	// Thresholds are named numeric limits (e.g., "max_latency_ms": 200).
	Thresholds map[string]float64 `json:"thresholds,omitempty"`

	// RequiredFields are field names that must be present in the result.
	RequiredFields []string `json:"required_fields,omitempty"`
}

// ValidationResult is a single validation finding. Validation functions
// return the full list of findings rather than stopping at the first
// failure so multiple problems can be reported at once.
type ValidationResult struct {
	// StepID identifies the check that produced this finding.
	StepID string `json:"step_id"`

	// Success indicates whether the check passed.
	Success bool `json:"success"`

	// Message is a human-readable description of the finding.
	Message string `json:"message"`

	// Details contains additional check-specific data.
	Details map[string]interface{} `json:"details,omitempty"`

	// Timestamp is when the check ran.
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionContext carries the per-dispatch parameters passed to an
// executor. A fresh context is created for every task dispatch;
// RetryCount is mutated in place across retry attempts.
type ExecutionContext struct {
	// PlanID is the plan being executed.
	PlanID string `json:"plan_id"`

	// PhaseID is the phase containing the task.
	PhaseID string `json:"phase_id"`

	// TaskID is the task being executed.
	TaskID string `json:"task_id"`

	// Parameters is the merged parameter map for this dispatch.
	Parameters map[string]interface{} `json:"parameters,omitempty"`

	// Environment tags the target environment (e.g., "staging", "prod").
	Environment string `json:"environment,omitempty"`

	// DryRun indicates the executor should simulate without side effects.
	DryRun bool `json:"dry_run"`

	// Timeout is the maximum duration for a single execution attempt.
	Timeout time.Duration `json:"timeout"`

	// RetryCount is the number of attempts already made.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the retry budget for this task.
	MaxRetries int `json:"max_retries"`
}

// ExecutionResult is the outcome of a single task execution.
type ExecutionResult struct {
	// TaskID is the task this result belongs to.
	TaskID string `json:"task_id"`

	// Success indicates whether the execution succeeded.
	Success bool `json:"success"`

	// StartedAt is when the execution started.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the execution finished.
	CompletedAt time.Time `json:"completed_at"`

	// Duration is the total execution time.
	Duration time.Duration `json:"duration"`

	// Output contains the executor's output payload.
	Output map[string]interface{} `json:"output,omitempty"`

	// Logs are log lines captured during execution.
	Logs []string `json:"logs,omitempty"`

	// Metrics are resource-usage measurements recorded by the executor.
	Metrics map[string]float64 `json:"metrics,omitempty"`

	// Error is the failure message when Success is false.
	Error string `json:"error,omitempty"`
}

// Progress is a point-in-time view of how far a plan has advanced.
type Progress struct {
	// PlanID is the plan this progress belongs to.
	PlanID string `json:"plan_id"`

	// OverallProgress is the completed-task percentage across the whole
	// plan, in [0, 100]. Zero when the plan has no tasks.
	OverallProgress float64 `json:"overall_progress"`

	// PhaseProgress is the completed-task percentage within the phase
	// currently in progress, in [0, 100].
	PhaseProgress float64 `json:"phase_progress"`

	// CurrentPhase is the ID of the phase currently in progress, if any.
	CurrentPhase string `json:"current_phase,omitempty"`

	// TotalTasks is the total task count across all phases.
	TotalTasks int `json:"total_tasks"`

	// CompletedTasks lists the IDs of completed tasks.
	CompletedTasks []string `json:"completed_tasks"`

	// FailedTasks lists the IDs of failed tasks.
	FailedTasks []string `json:"failed_tasks"`

	// Elapsed is wall-clock time since the plan started.
	Elapsed time.Duration `json:"elapsed"`

	// EstimatedRemaining extrapolates time left from elapsed time and the
	// current progress fraction. Zero while progress is zero.
	EstimatedRemaining time.Duration `json:"estimated_remaining"`
}

// RollbackResult is the outcome of a plan-, phase- or task-level rollback.
type RollbackResult struct {
	// PlanID is the plan the rollback ran against.
	PlanID string `json:"plan_id"`

	// TargetPhaseID is the phase the plan was rolled back to, if any.
	TargetPhaseID string `json:"target_phase_id,omitempty"`

	// Success indicates whether every processed phase rolled back cleanly.
	Success bool `json:"success"`

	// RolledBackPhases lists phase IDs processed, in processing order.
	RolledBackPhases []string `json:"rolled_back_phases"`

	// StepsExecuted lists the IDs of rollback steps that ran, in
	// execution order.
	StepsExecuted []string `json:"steps_executed"`

	// Error is the first failure encountered, if any.
	Error string `json:"error,omitempty"`

	// StartedAt is when the rollback started.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the rollback finished.
	CompletedAt time.Time `json:"completed_at"`

	// Duration is the total rollback time.
	Duration time.Duration `json:"duration"`
}

// Report aggregates the durable record of a plan: status, progress,
// validation findings and rollback outcomes.
type Report struct {
	// Plan is a snapshot of the plan at report time.
	Plan Plan `json:"plan"`

	// Progress is the derived progress view.
	Progress Progress `json:"progress"`

	// ValidationResults are all recorded validation findings.
	ValidationResults []ValidationResult `json:"validation_results,omitempty"`

	// RollbackResults are all recorded rollback outcomes.
	RollbackResults []RollbackResult `json:"rollback_results,omitempty"`

	// GeneratedAt is when the report was built.
	GeneratedAt time.Time `json:"generated_at"`
}

// Executable reports whether the plan satisfies the structural minimum
// for execution: at least one phase, each with at least one task.
func (p *Plan) Executable() bool {
	if len(p.Phases) == 0 {
		return false
	}
	for i := range p.Phases {
		if len(p.Phases[i].Tasks) == 0 {
			return false
		}
	}
	return true
}

// FindPhase returns the phase with the given ID and its index in plan
// order, or nil and -1 when absent.
func (p *Plan) FindPhase(phaseID string) (*Phase, int) {
	for i := range p.Phases {
		if p.Phases[i].ID == phaseID {
			return &p.Phases[i], i
		}
	}
	return nil, -1
}

// FindTask returns the task with the given ID within the phase, or nil
// when absent.
func (ph *Phase) FindTask(taskID string) *Task {
	for i := range ph.Tasks {
		if ph.Tasks[i].ID == taskID {
			return &ph.Tasks[i]
		}
	}
	return nil
}

// TaskCount returns the total number of tasks across all phases.
func (p *Plan) TaskCount() int {
	n := 0
	for i := range p.Phases {
		n += len(p.Phases[i].Tasks)
	}
	return n
}
