package config

import (
	"time"
)

// PlanManifest is the operator-facing YAML form of a migration plan.
type PlanManifest struct {
	// Name is the plan name.
	Name string `yaml:"name" validate:"required"`

	// Description is a human-readable summary of the migration.
	Description string `yaml:"description,omitempty"`

	// Version is the manifest version string.
	Version string `yaml:"version,omitempty"`

	// Phases are the staged groups of work, executed in list order.
	Phases []PhaseManifest `yaml:"phases" validate:"dive"`

	// Dependencies are phase-to-phase relationships.
	Dependencies []DependencyManifest `yaml:"dependencies,omitempty" validate:"dive"`

	// RollbackStrategy describes when plan-level rollback triggers.
	RollbackStrategy *RollbackStrategyManifest `yaml:"rollback_strategy,omitempty"`

	// Metadata contains additional plan metadata.
	Metadata map[string]interface{} `yaml:"metadata,omitempty"`
}

// PhaseManifest describes one phase of a plan.
type PhaseManifest struct {
	// ID is the phase identifier. Generated when empty.
	ID string `yaml:"id,omitempty"`

	// Name is the human-readable phase name.
	Name string `yaml:"name" validate:"required"`

	// Tasks are executed strictly in list order.
	Tasks []TaskManifest `yaml:"tasks" validate:"dive"`

	// Prerequisites are condition identifiers checked before the phase
	// starts. Phase IDs listed here must be completed first.
	Prerequisites []string `yaml:"prerequisites,omitempty"`

	// SuccessCriteria are condition identifiers checked after the last
	// task completes.
	SuccessCriteria []string `yaml:"success_criteria,omitempty"`

	// EstimatedDuration is the expected phase duration (e.g., "90m").
	EstimatedDuration string `yaml:"estimated_duration,omitempty"`

	// Rollback is the procedure that reverses this phase.
	Rollback *RollbackProcedureManifest `yaml:"rollback,omitempty"`
}

// TaskManifest describes one task within a phase.
type TaskManifest struct {
	// ID is the task identifier. Generated when empty.
	ID string `yaml:"id,omitempty"`

	// Name is the human-readable task name.
	Name string `yaml:"name" validate:"required"`

	// Type selects the executor responsible for this task.
	Type string `yaml:"type" validate:"required,oneof=data_migration schema_migration code_deployment infrastructure_update validation cleanup backup configuration"`

	// Parameters is the free-form parameter map passed to the executor.
	Parameters map[string]interface{} `yaml:"parameters,omitempty"`

	// DependsOn lists task IDs this task depends on.
	DependsOn []string `yaml:"depends_on,omitempty"`

	// Validation steps run after the task executes.
	Validation []ValidationStepManifest `yaml:"validation,omitempty" validate:"dive"`

	// Rollback steps reverse this individual task.
	Rollback []RollbackStepManifest `yaml:"rollback,omitempty" validate:"dive"`
}

// DependencyManifest records a relationship between two phases.
type DependencyManifest struct {
	// ID is the dependency identifier. Generated when empty.
	ID string `yaml:"id,omitempty"`

	// Source is the ID of the dependent phase.
	Source string `yaml:"source" validate:"required"`

	// Target is the ID of the phase being depended on.
	Target string `yaml:"target" validate:"required"`

	// Kind describes the relationship (e.g., "data", "schema").
	Kind string `yaml:"kind,omitempty"`
}

// RollbackStrategyManifest describes the plan-level rollback trigger.
type RollbackStrategyManifest struct {
	Name      string `yaml:"name" validate:"required"`
	Trigger   string `yaml:"trigger" validate:"required,oneof=on_phase_failure on_task_failure manual"`
	Automatic bool   `yaml:"automatic,omitempty"`
}

// RollbackProcedureManifest is the undo path for a phase.
type RollbackProcedureManifest struct {
	Name             string                   `yaml:"name,omitempty"`
	Steps            []RollbackStepManifest   `yaml:"steps" validate:"dive"`
	ValidationChecks []ValidationStepManifest `yaml:"validation_checks,omitempty" validate:"dive"`
	SafetyChecks     []string                 `yaml:"safety_checks,omitempty"`
}

// RollbackStepManifest is a single unit of undo work.
type RollbackStepManifest struct {
	// ID is the step identifier. Generated when empty.
	ID string `yaml:"id,omitempty"`

	// Name is the human-readable step name.
	Name string `yaml:"name,omitempty"`

	// Action names the operation to perform.
	Action string `yaml:"action" validate:"required"`

	// Order is the sequencing key. Steps run ascending by Order.
	Order int `yaml:"order"`

	// Parameters is the free-form parameter map for the action.
	Parameters map[string]interface{} `yaml:"parameters,omitempty"`

	// Timeout bounds the step (e.g., "5m").
	Timeout string `yaml:"timeout,omitempty"`
}

// ValidationStepManifest describes one check with its pass criteria.
type ValidationStepManifest struct {
	// ID is the step identifier. Generated when empty.
	ID string `yaml:"id,omitempty"`

	// Name is the human-readable step name.
	Name string `yaml:"name" validate:"required"`

	// Type is the kind of validation performed.
	Type string `yaml:"type" validate:"required,oneof=data_integrity functionality performance security connectivity custom"`

	// Expected is the expected result value, if any.
	Expected interface{} `yaml:"expected,omitempty"`

	// Thresholds are named numeric limits.
	Thresholds map[string]float64 `yaml:"thresholds,omitempty"`

	// RequiredFields are field names that must be present in the result.
	RequiredFields []string `yaml:"required_fields,omitempty"`

	// TimeoutSeconds is the maximum time the check may take.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
}

// ValidationError is a manifest problem with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Path is the field path to the error (e.g., "phases[0].tasks[2].type").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning).
	Severity string `json:"severity"`
}

// ParsedManifest is the outcome of loading a manifest. Errors are
// collected rather than returned one at a time so a single parse
// reports every problem in the file.
type ParsedManifest struct {
	// Manifest is the decoded manifest. Nil when the YAML itself could
	// not be decoded.
	Manifest *PlanManifest `json:"manifest,omitempty"`

	// SourceFile is the file the manifest was loaded from.
	SourceFile string `json:"source_file,omitempty"`

	// ParsedAt is when the manifest was parsed.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors lists every validation problem found.
	Errors []ValidationError `json:"errors,omitempty"`
}

// Valid reports whether the manifest parsed without errors.
func (p *ParsedManifest) Valid() bool {
	for _, e := range p.Errors {
		if e.Severity == SeverityError {
			return false
		}
	}
	return p.Manifest != nil
}

// Error severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)
