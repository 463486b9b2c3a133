package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/cutover/cutover/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance. Connection pool
// settings left at their zero value fall back to sensible defaults.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		cfg: cfg,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// SavePlan inserts or updates a plan. The full phase tree is stored
// as a JSON document alongside the indexed columns.
func (s *SQLiteStore) SavePlan(ctx context.Context, plan *migration.Plan) error {
	document, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	query := `
		INSERT INTO plans (id, name, version, status, estimated_duration, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			status = excluded.status,
			estimated_duration = excluded.estimated_duration,
			document = excluded.document,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		plan.ID,
		plan.Name,
		plan.Version,
		string(plan.Status),
		plan.EstimatedDuration,
		string(document),
		plan.CreatedAt,
		plan.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}

	return nil
}

// GetPlan retrieves a plan by ID
func (s *SQLiteStore) GetPlan(ctx context.Context, id string) (*migration.Plan, error) {
	query := `SELECT document FROM plans WHERE id = ?`

	var document string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&document)
	if err == sql.ErrNoRows {
		return nil, migration.NewNotFoundError(fmt.Sprintf("plan not found: %s", id), nil).WithPlan(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	plan := &migration.Plan{}
	if err := json.Unmarshal([]byte(document), plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
	}

	return plan, nil
}

// ListPlans lists plans with pagination
func (s *SQLiteStore) ListPlans(ctx context.Context, limit, offset int) ([]*migration.Plan, error) {
	query := `
		SELECT document
		FROM plans
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := []*migration.Plan{}
	for rows.Next() {
		var document string
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plan := &migration.Plan{}
		if err := json.Unmarshal([]byte(document), plan); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
		}
		plans = append(plans, plan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plans: %w", err)
	}

	return plans, nil
}

// DeletePlan deletes a plan by ID
func (s *SQLiteStore) DeletePlan(ctx context.Context, id string) error {
	query := `DELETE FROM plans WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return migration.NewNotFoundError(fmt.Sprintf("plan not found: %s", id), nil).WithPlan(id)
	}

	return nil
}

// SaveExecutionResult records the outcome of a task execution.
func (s *SQLiteStore) SaveExecutionResult(ctx context.Context, planID, phaseID string, result *migration.ExecutionResult) error {
	output, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal execution result: %w", err)
	}

	query := `
		INSERT INTO execution_results (plan_id, phase_id, task_id, success, duration_ms, error, document, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		planID,
		phaseID,
		result.TaskID,
		result.Success,
		result.Duration.Milliseconds(),
		result.Error,
		string(output),
		result.StartedAt,
		result.CompletedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save execution result: %w", err)
	}

	return nil
}

// ListExecutionResults lists execution results for a plan in insertion order.
func (s *SQLiteStore) ListExecutionResults(ctx context.Context, planID string) ([]*migration.ExecutionResult, error) {
	query := `
		SELECT document
		FROM execution_results
		WHERE plan_id = ?
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution results: %w", err)
	}
	defer rows.Close()

	results := []*migration.ExecutionResult{}
	for rows.Next() {
		var document string
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan execution result: %w", err)
		}
		result := &migration.ExecutionResult{}
		if err := json.Unmarshal([]byte(document), result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution result: %w", err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution results: %w", err)
	}

	return results, nil
}

// SaveValidationResult records a validation finding for a plan.
func (s *SQLiteStore) SaveValidationResult(ctx context.Context, planID string, result *migration.ValidationResult) error {
	details, err := json.Marshal(result.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal validation details: %w", err)
	}

	query := `
		INSERT INTO validation_results (plan_id, step_id, success, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		planID,
		result.StepID,
		result.Success,
		result.Message,
		string(details),
		result.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to save validation result: %w", err)
	}

	return nil
}

// ListValidationResults lists validation results for a plan.
func (s *SQLiteStore) ListValidationResults(ctx context.Context, planID string) ([]*migration.ValidationResult, error) {
	query := `
		SELECT step_id, success, message, details, timestamp
		FROM validation_results
		WHERE plan_id = ?
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list validation results: %w", err)
	}
	defer rows.Close()

	results := []*migration.ValidationResult{}
	for rows.Next() {
		result := &migration.ValidationResult{}
		var details string
		err := rows.Scan(
			&result.StepID,
			&result.Success,
			&result.Message,
			&details,
			&result.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan validation result: %w", err)
		}
		if details != "" && details != "null" {
			if err := json.Unmarshal([]byte(details), &result.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal validation details: %w", err)
			}
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating validation results: %w", err)
	}

	return results, nil
}

// SaveRollbackResult records the outcome of a rollback operation.
func (s *SQLiteStore) SaveRollbackResult(ctx context.Context, result *migration.RollbackResult) error {
	document, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal rollback result: %w", err)
	}

	query := `
		INSERT INTO rollback_results (plan_id, target_phase_id, success, document, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		result.PlanID,
		result.TargetPhaseID,
		result.Success,
		string(document),
		result.StartedAt,
		result.CompletedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save rollback result: %w", err)
	}

	return nil
}

// ListRollbackResults lists rollback results for a plan.
func (s *SQLiteStore) ListRollbackResults(ctx context.Context, planID string) ([]*migration.RollbackResult, error) {
	query := `
		SELECT document
		FROM rollback_results
		WHERE plan_id = ?
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rollback results: %w", err)
	}
	defer rows.Close()

	results := []*migration.RollbackResult{}
	for rows.Next() {
		var document string
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan rollback result: %w", err)
		}
		result := &migration.RollbackResult{}
		if err := json.Unmarshal([]byte(document), result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rollback result: %w", err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rollback results: %w", err)
	}

	return results, nil
}

// SaveRecoveryPoint persists a recovery point record.
func (s *SQLiteStore) SaveRecoveryPoint(ctx context.Context, rec *RecoveryPointRecord) error {
	query := `
		INSERT INTO recovery_points (id, plan_id, phase_id, document, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.PlanID,
		rec.PhaseID,
		rec.Document,
		rec.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save recovery point: %w", err)
	}

	return nil
}

// GetRecoveryPoint retrieves a recovery point by ID
func (s *SQLiteStore) GetRecoveryPoint(ctx context.Context, id string) (*RecoveryPointRecord, error) {
	query := `
		SELECT id, plan_id, phase_id, document, created_at
		FROM recovery_points
		WHERE id = ?
	`

	rec := &RecoveryPointRecord{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.PlanID,
		&rec.PhaseID,
		&rec.Document,
		&rec.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, migration.NewNotFoundError(fmt.Sprintf("recovery point not found: %s", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recovery point: %w", err)
	}

	return rec, nil
}

// ListRecoveryPoints lists recovery points for a plan, newest first.
func (s *SQLiteStore) ListRecoveryPoints(ctx context.Context, planID string) ([]*RecoveryPointRecord, error) {
	query := `
		SELECT id, plan_id, phase_id, document, created_at
		FROM recovery_points
		WHERE plan_id = ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recovery points: %w", err)
	}
	defer rows.Close()

	recs := []*RecoveryPointRecord{}
	for rows.Next() {
		rec := &RecoveryPointRecord{}
		err := rows.Scan(
			&rec.ID,
			&rec.PlanID,
			&rec.PhaseID,
			&rec.Document,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recovery point: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recovery points: %w", err)
	}

	return recs, nil
}

// DeleteRecoveryPoint deletes a recovery point by ID
func (s *SQLiteStore) DeleteRecoveryPoint(ctx context.Context, id string) error {
	query := `DELETE FROM recovery_points WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete recovery point: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return migration.NewNotFoundError(fmt.Sprintf("recovery point not found: %s", id), nil)
	}

	return nil
}

// CreateAuditEntry creates a new audit log entry
func (s *SQLiteStore) CreateAuditEntry(ctx context.Context, entry *AuditEntry) error {
	query := `
		INSERT INTO audit (action, plan_id, details, timestamp)
		VALUES (?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		entry.Action,
		entry.PlanID,
		entry.Details,
		entry.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit entry ID: %w", err)
	}

	entry.ID = id
	return nil
}

// ListAuditEntries lists audit entries with optional plan filter and pagination
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, planID *string, limit, offset int) ([]*AuditEntry, error) {
	query := `
		SELECT id, action, plan_id, details, timestamp
		FROM audit
		WHERE (? IS NULL OR plan_id = ?)
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, planID, planID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*AuditEntry{}
	for rows.Next() {
		entry := &AuditEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.PlanID,
			&entry.Details,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
