package stores

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cutover/cutover/pkg/migration"
)

// MemoryStore implements the Store interface in memory. It is used by
// tests and by the CLI when no database path is configured. All reads
// and writes copy plan data so callers never share state with the
// store.
type MemoryStore struct {
	mu                sync.RWMutex
	plans             map[string]*migration.Plan
	executionResults  map[string][]*migration.ExecutionResult
	validationResults map[string][]*migration.ValidationResult
	rollbackResults   map[string][]*migration.RollbackResult
	recoveryPoints    map[string]*RecoveryPointRecord
	auditEntries      []*AuditEntry
	nextAuditID       int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans:             make(map[string]*migration.Plan),
		executionResults:  make(map[string][]*migration.ExecutionResult),
		validationResults: make(map[string][]*migration.ValidationResult),
		rollbackResults:   make(map[string][]*migration.RollbackResult),
		recoveryPoints:    make(map[string]*RecoveryPointRecord),
		nextAuditID:       1,
	}
}

// Init is a no-op for the in-memory store.
func (s *MemoryStore) Init(_ context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// Migrate is a no-op for the in-memory store.
func (s *MemoryStore) Migrate(_ context.Context) error { return nil }

// SavePlan inserts or replaces a plan.
func (s *MemoryStore) SavePlan(_ context.Context, plan *migration.Plan) error {
	if plan.ID == "" {
		return fmt.Errorf("plan ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = plan.Clone()
	return nil
}

// GetPlan retrieves a plan by ID.
func (s *MemoryStore) GetPlan(_ context.Context, id string) (*migration.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[id]
	if !ok {
		return nil, migration.NewNotFoundError(fmt.Sprintf("plan not found: %s", id), nil).WithPlan(id)
	}
	return plan.Clone(), nil
}

// ListPlans lists plans ordered by creation time, newest first.
func (s *MemoryStore) ListPlans(_ context.Context, limit, offset int) ([]*migration.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plans := make([]*migration.Plan, 0, len(s.plans))
	for _, plan := range s.plans {
		plans = append(plans, plan)
	}
	sort.Slice(plans, func(i, j int) bool {
		return plans[i].CreatedAt.After(plans[j].CreatedAt)
	})

	if offset >= len(plans) {
		return []*migration.Plan{}, nil
	}
	plans = plans[offset:]
	if limit > 0 && limit < len(plans) {
		plans = plans[:limit]
	}

	out := make([]*migration.Plan, len(plans))
	for i, plan := range plans {
		out[i] = plan.Clone()
	}
	return out, nil
}

// DeletePlan deletes a plan by ID.
func (s *MemoryStore) DeletePlan(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[id]; !ok {
		return migration.NewNotFoundError(fmt.Sprintf("plan not found: %s", id), nil).WithPlan(id)
	}
	delete(s.plans, id)
	delete(s.executionResults, id)
	delete(s.validationResults, id)
	delete(s.rollbackResults, id)
	return nil
}

// SaveExecutionResult records the outcome of a task execution.
func (s *MemoryStore) SaveExecutionResult(_ context.Context, planID, _ string, result *migration.ExecutionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *result
	s.executionResults[planID] = append(s.executionResults[planID], &copied)
	return nil
}

// ListExecutionResults lists execution results for a plan in insertion order.
func (s *MemoryStore) ListExecutionResults(_ context.Context, planID string) ([]*migration.ExecutionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := s.executionResults[planID]
	out := make([]*migration.ExecutionResult, len(results))
	for i, r := range results {
		copied := *r
		out[i] = &copied
	}
	return out, nil
}

// SaveValidationResult records a validation finding for a plan.
func (s *MemoryStore) SaveValidationResult(_ context.Context, planID string, result *migration.ValidationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *result
	s.validationResults[planID] = append(s.validationResults[planID], &copied)
	return nil
}

// ListValidationResults lists validation results for a plan.
func (s *MemoryStore) ListValidationResults(_ context.Context, planID string) ([]*migration.ValidationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := s.validationResults[planID]
	out := make([]*migration.ValidationResult, len(results))
	for i, r := range results {
		copied := *r
		out[i] = &copied
	}
	return out, nil
}

// SaveRollbackResult records the outcome of a rollback operation.
func (s *MemoryStore) SaveRollbackResult(_ context.Context, result *migration.RollbackResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *result
	copied.RolledBackPhases = append([]string(nil), result.RolledBackPhases...)
	copied.StepsExecuted = append([]string(nil), result.StepsExecuted...)
	s.rollbackResults[result.PlanID] = append(s.rollbackResults[result.PlanID], &copied)
	return nil
}

// ListRollbackResults lists rollback results for a plan.
func (s *MemoryStore) ListRollbackResults(_ context.Context, planID string) ([]*migration.RollbackResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := s.rollbackResults[planID]
	out := make([]*migration.RollbackResult, len(results))
	for i, r := range results {
		copied := *r
		copied.RolledBackPhases = append([]string(nil), r.RolledBackPhases...)
		copied.StepsExecuted = append([]string(nil), r.StepsExecuted...)
		out[i] = &copied
	}
	return out, nil
}

// SaveRecoveryPoint persists a recovery point record.
func (s *MemoryStore) SaveRecoveryPoint(_ context.Context, rec *RecoveryPointRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *rec
	s.recoveryPoints[rec.ID] = &copied
	return nil
}

// GetRecoveryPoint retrieves a recovery point by ID.
func (s *MemoryStore) GetRecoveryPoint(_ context.Context, id string) (*RecoveryPointRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recoveryPoints[id]
	if !ok {
		return nil, migration.NewNotFoundError(fmt.Sprintf("recovery point not found: %s", id), nil)
	}
	copied := *rec
	return &copied, nil
}

// ListRecoveryPoints lists recovery points for a plan, newest first.
func (s *MemoryStore) ListRecoveryPoints(_ context.Context, planID string) ([]*RecoveryPointRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := []*RecoveryPointRecord{}
	for _, rec := range s.recoveryPoints {
		if rec.PlanID == planID {
			copied := *rec
			recs = append(recs, &copied)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	return recs, nil
}

// DeleteRecoveryPoint deletes a recovery point by ID.
func (s *MemoryStore) DeleteRecoveryPoint(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recoveryPoints[id]; !ok {
		return migration.NewNotFoundError(fmt.Sprintf("recovery point not found: %s", id), nil)
	}
	delete(s.recoveryPoints, id)
	return nil
}

// CreateAuditEntry creates a new audit log entry.
func (s *MemoryStore) CreateAuditEntry(_ context.Context, entry *AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextAuditID
	s.nextAuditID++
	copied := *entry
	s.auditEntries = append(s.auditEntries, &copied)
	return nil
}

// ListAuditEntries lists audit entries with optional plan filter and pagination.
func (s *MemoryStore) ListAuditEntries(_ context.Context, planID *string, limit, offset int) ([]*AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := []*AuditEntry{}
	for i := len(s.auditEntries) - 1; i >= 0; i-- {
		entry := s.auditEntries[i]
		if planID != nil && entry.PlanID != *planID {
			continue
		}
		copied := *entry
		entries = append(entries, &copied)
	}

	if offset >= len(entries) {
		return []*AuditEntry{}, nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

// HealthCheck always succeeds for the in-memory store.
func (s *MemoryStore) HealthCheck(_ context.Context) error { return nil }
