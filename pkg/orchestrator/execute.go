package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/cutover/cutover/pkg/migration"
	"github.com/cutover/cutover/pkg/telemetry"
)

// ExecutePhase executes every task of a phase in list order, aborting
// on the first task failure. Each state transition is persisted
// before control moves on, so callers always observe consistent
// stored state even when an error propagates.
func (o *Orchestrator) ExecutePhase(ctx context.Context, planID, phaseID string) error {
	lock := o.planLock(planID)
	lock.Lock()
	defer lock.Unlock()

	plan, err := o.store.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	phase, _ := plan.FindPhase(phaseID)
	if phase == nil {
		return migration.NewNotFoundError(
			fmt.Sprintf("phase not found: %s (plan %s)", phaseID, planID), nil).
			WithPhase(planID, phaseID)
	}

	ctx, span := o.tracer.StartPhaseSpan(ctx, planID, phaseID)
	defer span.End()

	if o.gate != nil {
		if err := o.gate.CheckPhase(ctx, plan, phaseID); err != nil {
			telemetry.RecordError(span, err)
			return migration.NewValidationError(
				fmt.Sprintf("policy gate rejected phase %s", phaseID), err).
				WithPhase(planID, phaseID)
		}
	}

	now := time.Now().UTC()
	if plan.Status == migration.PlanStatusDraft {
		plan.Status = migration.PlanStatusInProgress
		plan.StartedAt = &now
		o.metrics.RecordPlanStarted()
		o.events.PublishPlanEvent(telemetry.EventPlanStarted, planID, "plan execution started")
	}
	phase.Status = migration.PhaseStatusInProgress
	phase.StartedAt = &now
	if err := o.persist(ctx, plan); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	o.events.PublishPhaseEvent(telemetry.EventPhaseStarted, planID, phaseID,
		fmt.Sprintf("started phase %s", phase.Name))
	o.logger.WithPlanID(planID).WithPhaseID(phaseID).Infof("executing phase %q (%d tasks)", phase.Name, len(phase.Tasks))

	if err := o.checkPrerequisites(plan, phase); err != nil {
		o.failPhase(ctx, plan, phase, err)
		telemetry.RecordError(span, err)
		return err
	}

	started := time.Now()
	for i := range phase.Tasks {
		if o.isCancelled(planID) {
			return o.cancelPlan(ctx, plan, phase)
		}
		if err := o.waitWhilePaused(ctx, planID); err != nil {
			telemetry.RecordError(span, err)
			return err
		}

		task := &phase.Tasks[i]
		if task.Status == migration.TaskStatusCompleted {
			continue
		}
		if err := o.runTask(ctx, plan, phase, task); err != nil {
			o.failPhase(ctx, plan, phase, err)
			o.metrics.RecordPhaseExecution("failed", time.Since(started))
			telemetry.RecordError(span, err)
			return err
		}
	}

	o.checkSuccessCriteria(phase)

	completedAt := time.Now().UTC()
	phase.Status = migration.PhaseStatusCompleted
	phase.CompletedAt = &completedAt
	phase.Error = ""

	if allPhasesCompleted(plan) {
		plan.Status = migration.PlanStatusCompleted
		plan.CompletedAt = &completedAt
	}
	if err := o.persist(ctx, plan); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	o.metrics.RecordPhaseExecution("completed", time.Since(started))
	o.events.PublishPhaseEvent(telemetry.EventPhaseCompleted, planID, phaseID,
		fmt.Sprintf("completed phase %s", phase.Name))
	if plan.Status == migration.PlanStatusCompleted {
		o.metrics.RecordPlanCompleted("completed")
		o.events.PublishPlanEvent(telemetry.EventPlanCompleted, planID, "plan completed")
	}
	o.audit(ctx, "phase.executed", planID)
	telemetry.RecordSuccess(span)

	return nil
}

// ExecuteTask runs a single task by ID, outside of phase sequencing.
func (o *Orchestrator) ExecuteTask(ctx context.Context, planID, phaseID, taskID string) error {
	lock := o.planLock(planID)
	lock.Lock()
	defer lock.Unlock()

	plan, err := o.store.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	phase, _ := plan.FindPhase(phaseID)
	if phase == nil {
		return migration.NewNotFoundError(
			fmt.Sprintf("phase not found: %s (plan %s)", phaseID, planID), nil).
			WithPhase(planID, phaseID)
	}
	task := phase.FindTask(taskID)
	if task == nil {
		return migration.NewNotFoundError(
			fmt.Sprintf("task not found: %s (plan %s, phase %s)", taskID, planID, phaseID), nil).
			WithTask(planID, phaseID, taskID)
	}

	return o.runTask(ctx, plan, phase, task)
}

// runTask marks the task in progress, dispatches it to the engine,
// and persists the outcome. The caller must hold the plan lock.
func (o *Orchestrator) runTask(ctx context.Context, plan *migration.Plan, phase *migration.Phase, task *migration.Task) error {
	task.Status = migration.TaskStatusInProgress
	task.Error = ""
	if err := o.persist(ctx, plan); err != nil {
		return err
	}

	execCtx := &migration.ExecutionContext{
		PlanID:     plan.ID,
		PhaseID:    phase.ID,
		TaskID:     task.ID,
		Parameters: task.Parameters,
		Timeout:    o.defaultTimeout,
		MaxRetries: o.defaultMaxRetries,
	}

	result, execErr := o.engine.ExecuteTask(ctx, task, execCtx)

	if result != nil {
		if err := o.store.SaveExecutionResult(ctx, plan.ID, phase.ID, result); err != nil {
			o.logger.WithTaskID(task.ID).WithError(err).Warn("failed to persist execution result")
		}
	}

	if execErr != nil {
		task.Status = migration.TaskStatusFailed
		task.Error = execErr.Error()
		if migration.IsValidation(execErr) {
			o.saveValidationFindings(ctx, plan.ID, []migration.ValidationResult{{
				StepID:    fmt.Sprintf("task-%s-validation", task.ID),
				Success:   false,
				Message:   execErr.Error(),
				Timestamp: time.Now().UTC(),
			}})
		}
		if err := o.persist(ctx, plan); err != nil {
			return err
		}
		return execErr
	}

	task.Status = migration.TaskStatusCompleted
	task.Result = result.Output
	return o.persist(ctx, plan)
}

// checkPrerequisites verifies every prerequisite phase has completed.
func (o *Orchestrator) checkPrerequisites(plan *migration.Plan, phase *migration.Phase) error {
	for _, prereq := range phase.Prerequisites {
		dep, _ := plan.FindPhase(prereq)
		if dep == nil {
			return migration.NewValidationError(
				fmt.Sprintf("phase %s prerequisite %s does not exist", phase.ID, prereq), nil).
				WithPhase(plan.ID, phase.ID)
		}
		if dep.Status != migration.PhaseStatusCompleted {
			return migration.NewValidationError(
				fmt.Sprintf("phase %s prerequisite %s is %s, not completed", phase.ID, prereq, dep.Status), nil).
				WithPhase(plan.ID, phase.ID)
		}
	}
	return nil
}

// checkSuccessCriteria evaluates phase completion criteria. Unmet
// criteria are logged as warnings but do not fail the phase.
func (o *Orchestrator) checkSuccessCriteria(phase *migration.Phase) {
	for _, criterion := range phase.SuccessCriteria {
		o.logger.WithPhaseID(phase.ID).WithField("criterion", criterion).
			Debug("success criterion recorded")
	}
}

// failPhase marks the phase and plan failed, persists the state, and
// applies the plan's automatic on_phase_failure rollback strategy when
// one is configured.
func (o *Orchestrator) failPhase(ctx context.Context, plan *migration.Plan, phase *migration.Phase, cause error) {
	now := time.Now().UTC()
	phase.Status = migration.PhaseStatusFailed
	phase.Error = cause.Error()
	phase.CompletedAt = &now
	plan.Status = migration.PlanStatusFailed
	if err := o.persist(ctx, plan); err != nil {
		o.logger.WithPlanID(plan.ID).WithError(err).Error("failed to persist failed phase state")
	}

	o.metrics.RecordPlanCompleted("failed")
	o.events.PublishPhaseEvent(telemetry.EventPhaseFailed, plan.ID, phase.ID,
		fmt.Sprintf("phase %s failed: %v", phase.Name, cause))
	o.logger.WithPlanID(plan.ID).WithPhaseID(phase.ID).WithError(cause).Error("phase failed")

	o.autoRollback(ctx, plan)
}

// cancelPlan records a cooperative cancellation observed at a task
// boundary.
func (o *Orchestrator) cancelPlan(ctx context.Context, plan *migration.Plan, phase *migration.Phase) error {
	now := time.Now().UTC()
	plan.Status = migration.PlanStatusCancelled
	plan.CompletedAt = &now
	if err := o.persist(ctx, plan); err != nil {
		return err
	}
	o.metrics.RecordPlanCompleted("cancelled")
	o.logger.WithPlanID(plan.ID).WithPhaseID(phase.ID).Info("plan cancelled at task boundary")
	return migration.NewExecutionError(
		fmt.Sprintf("plan %s cancelled", plan.ID), nil).
		WithPlan(plan.ID)
}

func allPhasesCompleted(plan *migration.Plan) bool {
	for i := range plan.Phases {
		if plan.Phases[i].Status != migration.PhaseStatusCompleted {
			return false
		}
	}
	return true
}
