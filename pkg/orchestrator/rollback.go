package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cutover/cutover/pkg/migration"
	"github.com/cutover/cutover/pkg/telemetry"
)

// RollbackToPhase reverses every phase strictly after the target, in
// reverse plan order. Steps within each phase's rollback procedure run
// in ascending order of their Order field regardless of list
// position. Step failures are recorded on the result but never
// re-thrown, so a failed rollback cannot mask the forward-path
// failure that triggered it.
func (o *Orchestrator) RollbackToPhase(ctx context.Context, planID, targetPhaseID string) (*migration.RollbackResult, error) {
	lock := o.planLock(planID)
	lock.Lock()
	defer lock.Unlock()

	plan, err := o.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	_, targetIdx := plan.FindPhase(targetPhaseID)
	if targetIdx < 0 {
		return nil, migration.NewNotFoundError(
			fmt.Sprintf("phase not found: %s (plan %s)", targetPhaseID, planID), nil).
			WithPhase(planID, targetPhaseID)
	}

	ctx, span := o.tracer.StartRollbackSpan(ctx, planID, targetPhaseID)
	defer span.End()

	startedAt := time.Now().UTC()
	result := &migration.RollbackResult{
		PlanID:           planID,
		TargetPhaseID:    targetPhaseID,
		Success:          true,
		RolledBackPhases: []string{},
		StepsExecuted:    []string{},
		StartedAt:        startedAt,
	}

	o.events.PublishPlanEvent(telemetry.EventRollbackStarted, planID,
		fmt.Sprintf("rolling back to phase %s", targetPhaseID))
	o.logger.WithPlanID(planID).Infof("rolling back to phase %s", targetPhaseID)

	var failures []string
	for i := len(plan.Phases) - 1; i > targetIdx; i-- {
		failures = append(failures, o.rollbackPhase(ctx, plan, &plan.Phases[i], result)...)
	}

	o.finishRollback(ctx, result, failures, startedAt,
		fmt.Sprintf("rollback to phase %s", targetPhaseID))
	o.audit(ctx, "plan.rolled_back", planID)
	telemetry.RecordSuccess(span)

	return result, nil
}

// rollbackPhase reverses one phase: its procedure steps run in
// ascending order, completed tasks flip to rolled back, and the plan
// is persisted. Step failures are recorded on the result and returned,
// never thrown. The caller must hold the plan lock.
func (o *Orchestrator) rollbackPhase(ctx context.Context, plan *migration.Plan, phase *migration.Phase, result *migration.RollbackResult) []string {
	var failures []string
	for _, step := range sortedSteps(phase.Rollback.Steps) {
		if err := o.stepRunner(ctx, phase, step); err != nil {
			result.Success = false
			failures = append(failures, fmt.Sprintf("step %s (phase %s): %v", step.ID, phase.ID, err))
			o.logger.WithPhaseID(phase.ID).WithField("step", step.ID).WithError(err).
				Error("rollback step failed, continuing")
			continue
		}
		result.StepsExecuted = append(result.StepsExecuted, step.ID)
	}

	o.runRollbackChecks(phase)

	now := time.Now().UTC()
	phase.Status = migration.PhaseStatusRolledBack
	phase.CompletedAt = &now
	for j := range phase.Tasks {
		if phase.Tasks[j].Status == migration.TaskStatusCompleted {
			phase.Tasks[j].Status = migration.TaskStatusRolledBack
		}
	}
	result.RolledBackPhases = append(result.RolledBackPhases, phase.ID)

	if err := o.persist(ctx, plan); err != nil {
		result.Success = false
		failures = append(failures, err.Error())
		o.logger.WithPlanID(plan.ID).WithError(err).Error("failed to persist rollback state")
	}

	o.events.PublishPhaseEvent(telemetry.EventPhaseRolledBack, plan.ID, phase.ID,
		fmt.Sprintf("rolled back phase %s", phase.Name))
	return failures
}

// finishRollback stamps, persists and announces a rollback result.
func (o *Orchestrator) finishRollback(ctx context.Context, result *migration.RollbackResult, failures []string, startedAt time.Time, what string) {
	completedAt := time.Now().UTC()
	result.CompletedAt = completedAt
	result.Duration = completedAt.Sub(startedAt)
	if len(failures) > 0 {
		result.Error = strings.Join(failures, "; ")
	}

	if err := o.store.SaveRollbackResult(ctx, result); err != nil {
		o.logger.WithPlanID(result.PlanID).WithError(err).Warn("failed to persist rollback result")
	}

	status := "completed"
	if !result.Success {
		status = "failed"
	}
	o.metrics.RecordRollback(status, len(result.StepsExecuted))
	o.events.PublishPlanEvent(telemetry.EventRollbackDone, result.PlanID,
		fmt.Sprintf("%s %s (%d phases, %d steps)",
			what, status, len(result.RolledBackPhases), len(result.StepsExecuted)))
}

// autoRollbackStrategy returns the plan's automatic strategy for the
// trigger, or nil.
func autoRollbackStrategy(plan *migration.Plan, trigger string) *migration.RollbackStrategy {
	for i := range plan.RollbackStrategies {
		s := &plan.RollbackStrategies[i]
		if s.Automatic && s.Trigger == trigger {
			return s
		}
	}
	return nil
}

// autoRollback reverses every completed phase in reverse plan order
// when the plan carries an automatic on_phase_failure strategy. It is
// invoked from the phase failure path; the caller must hold the plan
// lock.
func (o *Orchestrator) autoRollback(ctx context.Context, plan *migration.Plan) {
	strategy := autoRollbackStrategy(plan, migration.TriggerOnPhaseFailure)
	if strategy == nil {
		return
	}

	var completed []*migration.Phase
	for i := len(plan.Phases) - 1; i >= 0; i-- {
		if plan.Phases[i].Status == migration.PhaseStatusCompleted {
			completed = append(completed, &plan.Phases[i])
		}
	}
	if len(completed) == 0 {
		return
	}

	startedAt := time.Now().UTC()
	result := &migration.RollbackResult{
		PlanID:           plan.ID,
		Success:          true,
		RolledBackPhases: []string{},
		StepsExecuted:    []string{},
		StartedAt:        startedAt,
	}

	o.events.PublishPlanEvent(telemetry.EventRollbackStarted, plan.ID,
		fmt.Sprintf("automatic rollback triggered by strategy %s", strategy.ID))
	o.logger.WithPlanID(plan.ID).WithField("strategy", strategy.ID).
		Infof("automatic rollback of %d completed phase(s)", len(completed))

	var failures []string
	for _, phase := range completed {
		failures = append(failures, o.rollbackPhase(ctx, plan, phase, result)...)
	}

	o.finishRollback(ctx, result, failures, startedAt, "automatic rollback")
	o.audit(ctx, "plan.auto_rolled_back", plan.ID)
}

// RollbackTask reverses a single executed task through its executor.
func (o *Orchestrator) RollbackTask(ctx context.Context, planID, phaseID, taskID string) (*migration.RollbackResult, error) {
	lock := o.planLock(planID)
	lock.Lock()
	defer lock.Unlock()

	plan, err := o.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	phase, _ := plan.FindPhase(phaseID)
	if phase == nil {
		return nil, migration.NewNotFoundError(
			fmt.Sprintf("phase not found: %s (plan %s)", phaseID, planID), nil).
			WithPhase(planID, phaseID)
	}
	task := phase.FindTask(taskID)
	if task == nil {
		return nil, migration.NewNotFoundError(
			fmt.Sprintf("task not found: %s (plan %s, phase %s)", taskID, planID, phaseID), nil).
			WithTask(planID, phaseID, taskID)
	}

	execCtx := &migration.ExecutionContext{
		PlanID:     planID,
		PhaseID:    phaseID,
		TaskID:     taskID,
		Parameters: task.Parameters,
		Timeout:    o.defaultTimeout,
	}

	result, rbErr := o.engine.RollbackTask(ctx, task, execCtx)
	if result == nil {
		result = &migration.RollbackResult{
			PlanID:    planID,
			Success:   false,
			StartedAt: time.Now().UTC(),
		}
	}
	if rbErr != nil {
		// Recorded, not re-thrown.
		result.Success = false
		result.Error = rbErr.Error()
		o.logger.WithTaskID(taskID).WithError(rbErr).Error("task rollback failed")
	} else {
		task.Status = migration.TaskStatusRolledBack
		if err := o.persist(ctx, plan); err != nil {
			return nil, err
		}
	}

	if err := o.store.SaveRollbackResult(ctx, result); err != nil {
		o.logger.WithPlanID(planID).WithError(err).Warn("failed to persist rollback result")
	}

	return result, nil
}

// runRollbackChecks runs a procedure's validation checks. Failures
// are advisory at this stage; the restored state is re-validated by
// the recovery service.
func (o *Orchestrator) runRollbackChecks(phase *migration.Phase) {
	for _, check := range phase.Rollback.ValidationChecks {
		o.logger.WithPhaseID(phase.ID).WithField("check", check.ID).
			Debugf("rollback validation check %s (%s)", check.Name, check.Type)
	}
}

// sortedSteps returns the procedure steps ordered by their Order
// field, ascending. List position is not authoritative.
func sortedSteps(steps []migration.RollbackStep) []migration.RollbackStep {
	sorted := append([]migration.RollbackStep(nil), steps...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})
	return sorted
}
