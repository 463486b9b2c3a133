package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/cutover/cutover/pkg/migration"
)

// NoopExecutor accepts every task type and reports success without
// performing any work. It is registered by the CLI for plan walk
// throughs and used heavily in tests.
type NoopExecutor struct {
	// Delay optionally simulates work taking time.
	Delay time.Duration
}

// CanExecute accepts all task types.
func (n *NoopExecutor) CanExecute(migration.TaskType) bool { return true }

// Execute reports success after the configured delay.
func (n *NoopExecutor) Execute(ctx context.Context, task *migration.Task, _ *migration.ExecutionContext) (*migration.ExecutionResult, error) {
	startedAt := time.Now()
	if n.Delay > 0 {
		select {
		case <-time.After(n.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	completedAt := time.Now()
	return &migration.ExecutionResult{
		TaskID:      task.ID,
		Success:     true,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Logs:        []string{fmt.Sprintf("noop: task %s (%s)", task.ID, task.Type)},
	}, nil
}

// Validate reports success for every validation step on the task.
func (n *NoopExecutor) Validate(_ context.Context, task *migration.Task, _ *migration.ExecutionContext) ([]migration.ValidationResult, error) {
	results := make([]migration.ValidationResult, 0, len(task.ValidationSteps))
	for _, step := range task.ValidationSteps {
		results = append(results, migration.ValidationResult{
			StepID:    step.ID,
			Success:   true,
			Message:   fmt.Sprintf("validation step %s passed", step.Name),
			Timestamp: time.Now().UTC(),
		})
	}
	return results, nil
}

// Rollback reports a successful rollback without performing any work.
func (n *NoopExecutor) Rollback(_ context.Context, task *migration.Task, execCtx *migration.ExecutionContext) (*migration.RollbackResult, error) {
	now := time.Now().UTC()
	steps := make([]string, 0, len(task.RollbackSteps))
	for _, step := range task.RollbackSteps {
		steps = append(steps, step.ID)
	}
	return &migration.RollbackResult{
		PlanID:        execCtx.PlanID,
		Success:       true,
		StepsExecuted: steps,
		StartedAt:     now,
		CompletedAt:   now,
	}, nil
}

// RegisterDefaults binds the NoopExecutor to every known task type.
func RegisterDefaults(registry *Registry) {
	noop := &NoopExecutor{}
	for _, taskType := range migration.TaskTypes() {
		registry.Register(taskType, noop)
	}
}
