package orchestrator

import (
	"context"
	"time"

	"github.com/cutover/cutover/pkg/migration"
)

// GetProgress derives a point-in-time progress view for a plan.
// Percentages are zero when there is nothing to count, never NaN.
func (o *Orchestrator) GetProgress(ctx context.Context, planID string) (*migration.Progress, error) {
	plan, err := o.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	return computeProgress(plan), nil
}

func computeProgress(plan *migration.Plan) *migration.Progress {
	progress := &migration.Progress{
		PlanID:         plan.ID,
		CompletedTasks: []string{},
		FailedTasks:    []string{},
	}

	for i := range plan.Phases {
		phase := &plan.Phases[i]
		for j := range phase.Tasks {
			task := &phase.Tasks[j]
			progress.TotalTasks++
			switch task.Status {
			case migration.TaskStatusCompleted:
				progress.CompletedTasks = append(progress.CompletedTasks, task.ID)
			case migration.TaskStatusFailed:
				progress.FailedTasks = append(progress.FailedTasks, task.ID)
			}
		}
		if phase.Status == migration.PhaseStatusInProgress && progress.CurrentPhase == "" {
			progress.CurrentPhase = phase.ID
			progress.PhaseProgress = taskPercentage(phase)
		}
	}

	if progress.TotalTasks > 0 {
		progress.OverallProgress = float64(len(progress.CompletedTasks)) / float64(progress.TotalTasks) * 100
	}

	if plan.StartedAt != nil {
		end := time.Now()
		if plan.CompletedAt != nil {
			end = *plan.CompletedAt
		}
		progress.Elapsed = end.Sub(*plan.StartedAt)

		if progress.OverallProgress > 0 {
			fraction := progress.OverallProgress / 100
			total := time.Duration(float64(progress.Elapsed) / fraction)
			if remaining := total - progress.Elapsed; remaining > 0 {
				progress.EstimatedRemaining = remaining
			}
		}
	}

	return progress
}

func taskPercentage(phase *migration.Phase) float64 {
	if len(phase.Tasks) == 0 {
		return 0
	}
	completed := 0
	for i := range phase.Tasks {
		if phase.Tasks[i].Status == migration.TaskStatusCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(phase.Tasks)) * 100
}

// GenerateReport assembles a plan snapshot with its derived progress
// and all recorded validation and rollback outcomes.
func (o *Orchestrator) GenerateReport(ctx context.Context, planID string) (*migration.Report, error) {
	plan, err := o.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	report := &migration.Report{
		Plan:        *plan,
		Progress:    *computeProgress(plan),
		GeneratedAt: time.Now().UTC(),
	}

	validations, err := o.store.ListValidationResults(ctx, planID)
	if err != nil {
		return nil, err
	}
	for _, v := range validations {
		report.ValidationResults = append(report.ValidationResults, *v)
	}

	rollbacks, err := o.store.ListRollbackResults(ctx, planID)
	if err != nil {
		return nil, err
	}
	for _, r := range rollbacks {
		report.RollbackResults = append(report.RollbackResults, *r)
	}

	return report, nil
}
