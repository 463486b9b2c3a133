package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cutover/cutover/pkg/migration"
	"github.com/cutover/cutover/pkg/telemetry"
)

// Engine executes migration tasks through registered executors with
// per-task timeout and retry enforcement.
type Engine struct {
	registry *Registry
	logger   *telemetry.Logger
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	events   *telemetry.EventPublisher

	mu        sync.Mutex
	queue     []*queuedTask
	busy      bool
	cancelled map[string]bool
}

type queuedTask struct {
	task    *migration.Task
	execCtx *migration.ExecutionContext
}

// New creates an engine wired to the given registry and telemetry.
func New(registry *Registry, tel *telemetry.Telemetry) *Engine {
	return &Engine{
		registry:  registry,
		logger:    tel.Logger.NewComponentLogger("engine"),
		metrics:   tel.Metrics,
		tracer:    tel.Tracer,
		events:    tel.Events,
		cancelled: make(map[string]bool),
	}
}

// Registry returns the engine's executor registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// ExecuteTask runs a task through its registered executor. Failed
// attempts are retried until the budget in execCtx.MaxRetries is
// exhausted; execCtx.RetryCount is incremented in place across
// attempts. Only the final exhausted failure propagates.
func (e *Engine) ExecuteTask(ctx context.Context, task *migration.Task, execCtx *migration.ExecutionContext) (*migration.ExecutionResult, error) {
	executor := e.registry.Resolve(task.Type)
	if executor == nil {
		return nil, migration.NewExecutionError(
			fmt.Sprintf("no executor registered for task type %s (task %s)", task.Type, task.ID), nil).
			WithCode(migration.ErrCodeNoExecutor).
			WithTask(execCtx.PlanID, execCtx.PhaseID, task.ID)
	}

	e.events.PublishTaskEvent(telemetry.EventTaskStarted, execCtx.PlanID, execCtx.PhaseID, task.ID,
		fmt.Sprintf("started task %s", task.Name), nil)

	var result *migration.ExecutionResult
	var err error

	for {
		attempt := execCtx.RetryCount + 1
		spanCtx, span := e.tracer.StartTaskSpan(ctx, execCtx.PlanID, execCtx.PhaseID, task.ID, string(task.Type), attempt)

		result, err = e.executeAttempt(spanCtx, executor, task, execCtx)
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.RecordSuccess(span)
		}
		span.End()

		if err == nil {
			break
		}

		if execCtx.RetryCount >= execCtx.MaxRetries {
			break
		}
		execCtx.RetryCount++

		e.metrics.RecordTaskRetry(string(task.Type))
		e.events.PublishTaskEvent(telemetry.EventTaskRetried, execCtx.PlanID, execCtx.PhaseID, task.ID,
			fmt.Sprintf("retrying task %s (attempt %d/%d)", task.Name, execCtx.RetryCount+1, execCtx.MaxRetries+1), nil)
		e.logger.WithTaskID(task.ID).WithError(err).
			Warnf("task attempt %d failed, retrying", attempt)
	}

	if err != nil {
		e.metrics.RecordTaskExecution(string(task.Type), "failed", resultDuration(result))
		e.events.PublishTaskEvent(telemetry.EventTaskFailed, execCtx.PlanID, execCtx.PhaseID, task.ID,
			fmt.Sprintf("task %s failed: %v", task.Name, err), nil)
		return result, err
	}

	e.metrics.RecordTaskExecution(string(task.Type), "completed", result.Duration)
	e.events.PublishTaskEvent(telemetry.EventTaskCompleted, execCtx.PlanID, execCtx.PhaseID, task.ID,
		fmt.Sprintf("completed task %s", task.Name), nil)

	return result, nil
}

// executeAttempt runs one execution attempt: pre-validation, the
// timed execution itself, then post-validation.
func (e *Engine) executeAttempt(ctx context.Context, executor Executor, task *migration.Task, execCtx *migration.ExecutionContext) (*migration.ExecutionResult, error) {
	findings, err := executor.Validate(ctx, task, execCtx)
	if err != nil {
		return nil, migration.NewValidationError(
			fmt.Sprintf("pre-execution validation errored for task %s", task.ID), err).
			WithTask(execCtx.PlanID, execCtx.PhaseID, task.ID)
	}
	for _, finding := range findings {
		if !finding.Success {
			return nil, migration.NewValidationError(
				fmt.Sprintf("pre-execution validation failed for task %s: %s", task.ID, finding.Message), nil).
				WithTask(execCtx.PlanID, execCtx.PhaseID, task.ID)
		}
	}

	result, err := e.executeWithTimeout(ctx, executor, task, execCtx)
	if err != nil {
		return result, err
	}

	// Post-execution validation is advisory only.
	postFindings, postErr := executor.Validate(ctx, task, execCtx)
	if postErr != nil {
		e.logger.WithTaskID(task.ID).WithError(postErr).Warn("post-execution validation errored")
	}
	for _, finding := range postFindings {
		if !finding.Success {
			e.logger.WithTaskID(task.ID).
				Warnf("post-execution validation failed: %s", finding.Message)
		}
	}

	return result, nil
}

// executeWithTimeout races the executor against the attempt timeout.
// On timeout the wait is abandoned and a timeout error returned; the
// executor's work is not cancelled, matching the advisory-cancellation
// model.
func (e *Engine) executeWithTimeout(ctx context.Context, executor Executor, task *migration.Task, execCtx *migration.ExecutionContext) (*migration.ExecutionResult, error) {
	startedAt := time.Now()

	if execCtx.DryRun {
		return e.simulateDryRun(task, startedAt), nil
	}

	type outcome struct {
		result *migration.ExecutionResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := executor.Execute(ctx, task, execCtx)
		done <- outcome{result, err}
	}()

	var timeout <-chan time.Time
	if execCtx.Timeout > 0 {
		timer := time.NewTimer(execCtx.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case out := <-done:
		if out.err != nil {
			return out.result, migration.NewExecutionError(
				fmt.Sprintf("task %s execution failed", task.ID), out.err).
				WithTask(execCtx.PlanID, execCtx.PhaseID, task.ID)
		}
		if out.result == nil {
			return nil, migration.NewExecutionError(
				fmt.Sprintf("task %s executor returned no result", task.ID), nil).
				WithTask(execCtx.PlanID, execCtx.PhaseID, task.ID)
		}
		if !out.result.Success {
			return out.result, migration.NewExecutionError(
				fmt.Sprintf("task %s execution failed: %s", task.ID, out.result.Error), nil).
				WithTask(execCtx.PlanID, execCtx.PhaseID, task.ID)
		}
		return out.result, nil
	case <-timeout:
		return nil, migration.NewTimeoutError(
			fmt.Sprintf("task %s timed out after %s", task.ID, execCtx.Timeout), nil).
			WithTask(execCtx.PlanID, execCtx.PhaseID, task.ID)
	case <-ctx.Done():
		return nil, migration.NewExecutionError(
			fmt.Sprintf("task %s execution cancelled", task.ID), ctx.Err()).
			WithTask(execCtx.PlanID, execCtx.PhaseID, task.ID)
	}
}

func (e *Engine) simulateDryRun(task *migration.Task, startedAt time.Time) *migration.ExecutionResult {
	completedAt := time.Now()
	return &migration.ExecutionResult{
		TaskID:      task.ID,
		Success:     true,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Logs:        []string{fmt.Sprintf("dry run: task %s (%s) simulated", task.ID, task.Type)},
	}
}

// RollbackTask reverses a previously executed task through its
// registered executor.
func (e *Engine) RollbackTask(ctx context.Context, task *migration.Task, execCtx *migration.ExecutionContext) (*migration.RollbackResult, error) {
	executor := e.registry.Resolve(task.Type)
	if executor == nil {
		return nil, migration.NewRollbackError(
			fmt.Sprintf("no executor registered for task type %s (task %s)", task.Type, task.ID), nil).
			WithCode(migration.ErrCodeNoExecutor).
			WithTask(execCtx.PlanID, execCtx.PhaseID, task.ID)
	}

	result, err := executor.Rollback(ctx, task, execCtx)
	if err != nil {
		return result, migration.NewRollbackError(
			fmt.Sprintf("rollback of task %s failed", task.ID), err).
			WithTask(execCtx.PlanID, execCtx.PhaseID, task.ID)
	}
	return result, nil
}

// QueueTask appends a task to the FIFO queue for asynchronous
// processing and starts the drain loop if it is not already running.
// Unlike ExecuteTask, failures on this path are logged and swallowed
// so the queue keeps draining.
func (e *Engine) QueueTask(task *migration.Task, execCtx *migration.ExecutionContext) {
	e.mu.Lock()
	e.queue = append(e.queue, &queuedTask{task: task, execCtx: execCtx})
	e.metrics.SetQueuedTasks(float64(len(e.queue)))
	start := !e.busy
	if start {
		e.busy = true
	}
	e.mu.Unlock()

	if start {
		go e.drainQueue()
	}
}

// drainQueue processes queued tasks strictly one at a time.
func (e *Engine) drainQueue() {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.busy = false
			e.metrics.SetQueuedTasks(0)
			e.mu.Unlock()
			return
		}
		next := e.queue[0]
		e.queue = e.queue[1:]
		skip := e.cancelled[next.task.ID]
		delete(e.cancelled, next.task.ID)
		e.metrics.SetQueuedTasks(float64(len(e.queue)))
		e.mu.Unlock()

		if skip {
			e.logger.WithTaskID(next.task.ID).Debug("skipping cancelled task")
			continue
		}

		if _, err := e.ExecuteTask(context.Background(), next.task, next.execCtx); err != nil {
			e.logger.WithTaskID(next.task.ID).WithError(err).
				Warn("queued task failed, continuing drain")
		}
	}
}

// CancelTask marks a queued task as cancelled. This is bookkeeping
// only: a task already handed to its executor is not interrupted.
func (e *Engine) CancelTask(taskID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelled[taskID] = true
}

// QueueDepth returns the number of tasks waiting in the queue.
func (e *Engine) QueueDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

func resultDuration(result *migration.ExecutionResult) time.Duration {
	if result == nil {
		return 0
	}
	return result.Duration
}
