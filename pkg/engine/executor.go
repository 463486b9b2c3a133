package engine

import (
	"context"
	"sync"

	"github.com/cutover/cutover/pkg/migration"
)

// Executor is the plugin contract for task-type-specific logic. The
// actual work (data movement, schema changes, deployments) is injected
// through this interface and is outside the engine's responsibility.
type Executor interface {
	// CanExecute reports whether this executor handles the given task type.
	CanExecute(taskType migration.TaskType) bool

	// Execute performs the task and returns its result. The engine
	// enforces the timeout; implementations should still honor ctx
	// cancellation where practical.
	Execute(ctx context.Context, task *migration.Task, execCtx *migration.ExecutionContext) (*migration.ExecutionResult, error)

	// Validate runs task-level validation steps. Used both before
	// execution (failures abort) and after (failures are warnings).
	Validate(ctx context.Context, task *migration.Task, execCtx *migration.ExecutionContext) ([]migration.ValidationResult, error)

	// Rollback reverses a previously executed task.
	Rollback(ctx context.Context, task *migration.Task, execCtx *migration.ExecutionContext) (*migration.RollbackResult, error)
}

// Registry maps task types to their executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[migration.TaskType]Executor
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[migration.TaskType]Executor),
	}
}

// Register binds an executor to a task type, replacing any previous
// binding for that type.
func (r *Registry) Register(taskType migration.TaskType, executor Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[taskType] = executor
}

// Resolve returns the executor for a task type, or nil if none is
// registered or the executor declines the type.
func (r *Registry) Resolve(taskType migration.TaskType) Executor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	executor, ok := r.executors[taskType]
	if !ok || !executor.CanExecute(taskType) {
		return nil
	}
	return executor
}

// Types returns the task types with a registered executor.
func (r *Registry) Types() []migration.TaskType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]migration.TaskType, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	return types
}
