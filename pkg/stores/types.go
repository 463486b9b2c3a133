package stores

import (
	"context"
	"time"

	"github.com/cutover/cutover/pkg/migration"
)

// RecoveryPointRecord is the persisted form of a recovery point. The
// snapshot itself is stored as an opaque JSON document so the store
// does not depend on the recovery package's types.
type RecoveryPointRecord struct {
	ID        string    `json:"id"`
	PlanID    string    `json:"plan_id"`
	PhaseID   string    `json:"phase_id"`
	Document  string    `json:"document"` // JSON blob
	CreatedAt time.Time `json:"created_at"`
}

// AuditEntry represents an audit trail entry for plan operations.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"` // e.g. "plan.created", "phase.executed", "plan.rolled_back"
	PlanID    string    `json:"plan_id"`
	Details   *string   `json:"details,omitempty"` // JSON blob
	Timestamp time.Time `json:"timestamp"`
}

// Store defines the interface for the persistence layer. All reads
// return copies that callers may mutate freely.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Plan operations
	SavePlan(ctx context.Context, plan *migration.Plan) error
	GetPlan(ctx context.Context, id string) (*migration.Plan, error)
	ListPlans(ctx context.Context, limit, offset int) ([]*migration.Plan, error)
	DeletePlan(ctx context.Context, id string) error

	// Execution results
	SaveExecutionResult(ctx context.Context, planID, phaseID string, result *migration.ExecutionResult) error
	ListExecutionResults(ctx context.Context, planID string) ([]*migration.ExecutionResult, error)

	// Validation results
	SaveValidationResult(ctx context.Context, planID string, result *migration.ValidationResult) error
	ListValidationResults(ctx context.Context, planID string) ([]*migration.ValidationResult, error)

	// Rollback results
	SaveRollbackResult(ctx context.Context, result *migration.RollbackResult) error
	ListRollbackResults(ctx context.Context, planID string) ([]*migration.RollbackResult, error)

	// Recovery points
	SaveRecoveryPoint(ctx context.Context, rec *RecoveryPointRecord) error
	GetRecoveryPoint(ctx context.Context, id string) (*RecoveryPointRecord, error)
	ListRecoveryPoints(ctx context.Context, planID string) ([]*RecoveryPointRecord, error)
	DeleteRecoveryPoint(ctx context.Context, id string) error

	// Audit operations
	CreateAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, planID *string, limit, offset int) ([]*AuditEntry, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
