package migration

import (
	"encoding/json"
	"fmt"
)

// PlanStatus represents the lifecycle status of a migration plan.
type PlanStatus string

const (
	// PlanStatusDraft indicates the plan has been created but not started.
	PlanStatusDraft PlanStatus = "draft"

	// PlanStatusInProgress indicates at least one phase is executing.
	PlanStatusInProgress PlanStatus = "in_progress"

	// PlanStatusCompleted indicates every phase completed successfully.
	PlanStatusCompleted PlanStatus = "completed"

	// PlanStatusFailed indicates a phase failed and the plan stopped.
	PlanStatusFailed PlanStatus = "failed"

	// PlanStatusCancelled indicates the plan was cancelled by the caller.
	PlanStatusCancelled PlanStatus = "cancelled"
)

// IsTerminal returns true if the plan status represents a final state.
func (s PlanStatus) IsTerminal() bool {
	return s == PlanStatusCompleted || s == PlanStatusFailed || s == PlanStatusCancelled
}

// IsActive returns true if the plan is draft or currently executing.
func (s PlanStatus) IsActive() bool {
	return s == PlanStatusDraft || s == PlanStatusInProgress
}

// Validate checks if the plan status is valid.
func (s PlanStatus) Validate() error {
	switch s {
	case PlanStatusDraft, PlanStatusInProgress, PlanStatusCompleted,
		PlanStatusFailed, PlanStatusCancelled:
		return nil
	default:
		return fmt.Errorf("invalid plan status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s PlanStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
// The empty string is accepted so plans built without a status survive
// a round trip; Validate still rejects it where a concrete status is
// required.
func (s *PlanStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = PlanStatus(str)
	if str == "" {
		return nil
	}
	return s.Validate()
}

// PhaseStatus represents the lifecycle status of a migration phase.
type PhaseStatus string

const (
	// PhaseStatusPending indicates the phase has not started.
	PhaseStatusPending PhaseStatus = "pending"

	// PhaseStatusInProgress indicates the phase is executing.
	PhaseStatusInProgress PhaseStatus = "in_progress"

	// PhaseStatusCompleted indicates the phase completed successfully.
	PhaseStatusCompleted PhaseStatus = "completed"

	// PhaseStatusFailed indicates a task in the phase failed.
	PhaseStatusFailed PhaseStatus = "failed"

	// PhaseStatusRolledBack indicates the phase was reversed.
	PhaseStatusRolledBack PhaseStatus = "rolled_back"
)

// IsTerminal returns true if the phase status represents a final state.
func (s PhaseStatus) IsTerminal() bool {
	return s == PhaseStatusCompleted || s == PhaseStatusFailed || s == PhaseStatusRolledBack
}

// Validate checks if the phase status is valid.
func (s PhaseStatus) Validate() error {
	switch s {
	case PhaseStatusPending, PhaseStatusInProgress, PhaseStatusCompleted,
		PhaseStatusFailed, PhaseStatusRolledBack:
		return nil
	default:
		return fmt.Errorf("invalid phase status: %s", s)
	}
}

// TaskStatus represents the lifecycle status of a migration task.
// Tasks share the phase lifecycle.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusInProgress indicates the task is executing.
	TaskStatusInProgress TaskStatus = "in_progress"

	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"

	// TaskStatusRolledBack indicates the task was reversed.
	TaskStatusRolledBack TaskStatus = "rolled_back"
)

// IsTerminal returns true if the task status represents a final state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusRolledBack
}

// Validate checks if the task status is valid.
func (s TaskStatus) Validate() error {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusRolledBack:
		return nil
	default:
		return fmt.Errorf("invalid task status: %s", s)
	}
}

// TaskType classifies a task and selects the executor responsible for it.
type TaskType string

const (
	// TaskTypeDataMigration moves or transforms data between systems.
	TaskTypeDataMigration TaskType = "data_migration"

	// TaskTypeSchemaMigration applies schema changes.
	TaskTypeSchemaMigration TaskType = "schema_migration"

	// TaskTypeCodeDeployment deploys application code.
	TaskTypeCodeDeployment TaskType = "code_deployment"

	// TaskTypeInfrastructureUpdate changes infrastructure components.
	TaskTypeInfrastructureUpdate TaskType = "infrastructure_update"

	// TaskTypeValidation runs standalone verification work.
	TaskTypeValidation TaskType = "validation"

	// TaskTypeCleanup removes temporary or legacy artifacts.
	TaskTypeCleanup TaskType = "cleanup"

	// TaskTypeBackup captures data or state backups.
	TaskTypeBackup TaskType = "backup"

	// TaskTypeConfiguration applies configuration changes.
	TaskTypeConfiguration TaskType = "configuration"
)

// Validate checks if the task type is valid.
func (t TaskType) Validate() error {
	switch t {
	case TaskTypeDataMigration, TaskTypeSchemaMigration, TaskTypeCodeDeployment,
		TaskTypeInfrastructureUpdate, TaskTypeValidation, TaskTypeCleanup,
		TaskTypeBackup, TaskTypeConfiguration:
		return nil
	default:
		return fmt.Errorf("invalid task type: %s", t)
	}
}

// TaskTypes returns all valid task types.
func TaskTypes() []TaskType {
	return []TaskType{
		TaskTypeDataMigration,
		TaskTypeSchemaMigration,
		TaskTypeCodeDeployment,
		TaskTypeInfrastructureUpdate,
		TaskTypeValidation,
		TaskTypeCleanup,
		TaskTypeBackup,
		TaskTypeConfiguration,
	}
}

// ValidationType classifies the kind of check a validation step performs.
type ValidationType string

const (
	// ValidationTypeDataIntegrity verifies checksums, counts and relationships.
	ValidationTypeDataIntegrity ValidationType = "data_integrity"

	// ValidationTypeFunctionality verifies application behavior.
	ValidationTypeFunctionality ValidationType = "functionality"

	// ValidationTypePerformance verifies latency and throughput thresholds.
	ValidationTypePerformance ValidationType = "performance"

	// ValidationTypeSecurity verifies security posture.
	ValidationTypeSecurity ValidationType = "security"

	// ValidationTypeConnectivity verifies network reachability.
	ValidationTypeConnectivity ValidationType = "connectivity"

	// ValidationTypeCustom is an executor-defined check.
	ValidationTypeCustom ValidationType = "custom"
)

// Validate checks if the validation type is valid.
func (t ValidationType) Validate() error {
	switch t {
	case ValidationTypeDataIntegrity, ValidationTypeFunctionality,
		ValidationTypePerformance, ValidationTypeSecurity,
		ValidationTypeConnectivity, ValidationTypeCustom:
		return nil
	default:
		return fmt.Errorf("invalid validation type: %s", t)
	}
}

// RiskLevel grades the data-loss risk of a recovery or rollback.
type RiskLevel string

const (
	// RiskLevelLow indicates minimal data-loss exposure.
	RiskLevelLow RiskLevel = "low"

	// RiskLevelMedium indicates bounded, recoverable exposure.
	RiskLevelMedium RiskLevel = "medium"

	// RiskLevelHigh indicates potential unrecoverable loss.
	RiskLevelHigh RiskLevel = "high"
)

// Validate checks if the risk level is valid.
func (r RiskLevel) Validate() error {
	switch r {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh:
		return nil
	default:
		return fmt.Errorf("invalid risk level: %s", r)
	}
}
