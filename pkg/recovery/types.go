package recovery

import (
	"time"

	"github.com/cutover/cutover/pkg/migration"
)

// Recovery step kinds, in their natural restoration order.
const (
	StepRestoreData    = "restore_data"
	StepRestoreSchema  = "restore_schema"
	StepValidateSystem = "validate_system"
)

// SystemSnapshot captures the consistency state of the system at the
// moment a recovery point is taken.
type SystemSnapshot struct {
	// Checksums maps data sources to their content checksums.
	Checksums map[string]string `json:"checksums"`

	// RecordCounts maps data sources to their record counts.
	RecordCounts map[string]int64 `json:"record_counts"`

	// RelationshipsValid reports referential integrity at capture time.
	RelationshipsValid bool `json:"relationships_valid"`

	// BusinessRulesValid reports business-rule conformance at capture time.
	BusinessRulesValid bool `json:"business_rules_valid"`

	// CapturedAt is when the snapshot was taken.
	CapturedAt time.Time `json:"captured_at"`
}

// DataBackup describes one restorable data backup.
type DataBackup struct {
	// ID is the unique identifier for this backup.
	ID string `json:"id"`

	// Source names the data source that was backed up.
	Source string `json:"source"`

	// Checksum is the content checksum of the backup.
	Checksum string `json:"checksum"`

	// RecordCount is the number of records captured.
	RecordCount int64 `json:"record_count"`

	// SizeBytes is the backup size.
	SizeBytes int64 `json:"size_bytes"`

	// CreatedAt is when the backup was taken.
	CreatedAt time.Time `json:"created_at"`
}

// RecoveryPoint is a restorable snapshot of system state plus data
// backups taken before risky work. A valid recovery point always
// carries at least one backup and at least one validation step.
type RecoveryPoint struct {
	ID      string `json:"id"`
	PlanID  string `json:"plan_id"`
	PhaseID string `json:"phase_id"`
	TaskID  string `json:"task_id,omitempty"`

	SystemState     SystemSnapshot             `json:"system_state"`
	Backups         []DataBackup               `json:"backups"`
	ValidationSteps []migration.ValidationStep `json:"validation_steps"`

	CreatedAt time.Time `json:"created_at"`
}

// RecoveryStep is a single unit of restoration work.
type RecoveryStep struct {
	// ID is the unique identifier for this step.
	ID string `json:"id"`

	// Kind is one of restore_data, restore_schema, validate_system.
	Kind string `json:"kind"`

	// Order is the authoritative sequencing key.
	Order int `json:"order"`

	// Description is a human-readable summary of the step.
	Description string `json:"description"`

	// Parameters carries step inputs such as the backup ID to restore.
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// RiskAssessment estimates the danger of executing a recovery plan.
type RiskAssessment struct {
	// DataLossRisk is the assessed risk of losing data during recovery.
	DataLossRisk migration.RiskLevel `json:"data_loss_risk"`

	// Factors lists the conditions that informed the assessment.
	Factors []string `json:"factors,omitempty"`

	// EstimatedDowntimeMinutes is the expected service interruption.
	EstimatedDowntimeMinutes int `json:"estimated_downtime_minutes"`
}

// RecoveryPlan is the ordered set of restoration steps derived from a
// recovery point. Steps are sorted by Order, ascending.
type RecoveryPlan struct {
	ID              string         `json:"id"`
	RecoveryPointID string         `json:"recovery_point_id"`
	PlanID          string         `json:"plan_id"`
	Steps           []RecoveryStep `json:"steps"`
	Risk            RiskAssessment `json:"risk"`
	CreatedAt       time.Time      `json:"created_at"`
}

// StepResult records the outcome of one recovery step execution.
type StepResult struct {
	StepID  string `json:"step_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ExecutionResult is the outcome of executing a recovery plan.
// Restoration is best-effort: step failures are recorded and later
// steps still run.
type ExecutionResult struct {
	RecoveryPlanID string        `json:"recovery_plan_id"`
	Success        bool          `json:"success"`
	StepResults    []StepResult  `json:"step_results"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    time.Time     `json:"completed_at"`
	Duration       time.Duration `json:"duration"`
}
