package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cutover/cutover/pkg/migration"
	"github.com/cutover/cutover/pkg/telemetry"
)

func newExecuteCommand() *cobra.Command {
	var phaseID string

	cmd := &cobra.Command{
		Use:   "execute <plan-id>",
		Short: "Execute a migration plan or a single phase",
		Long: `Execute a migration plan phase by phase, or one phase with --phase.

Each phase is checked against policies and prerequisites before it
starts. Execution stops at the first failed phase; completed phases
stay completed so the run can be resumed after the problem is fixed.`,
		Example: `  # Execute all remaining phases
  cutover execute 4f9d2c

  # Execute one phase
  cutover execute 4f9d2c --phase phase-backup`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			planID := args[0]

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if !jsonOutput {
				a.tel.Events.Subscribe(func(e telemetry.Event) {
					if e.TaskID != "" {
						fmt.Printf("  [%s] task %s: %s\n", e.Type, e.TaskID, e.Message)
					}
				})
			}

			if phaseID != "" {
				if err := a.orch.ExecutePhase(ctx, planID, phaseID); err != nil {
					return err
				}
				fmt.Printf("Phase %s completed\n", phaseID)
				return nil
			}

			plan, err := a.orch.GetPlan(ctx, planID)
			if err != nil {
				return err
			}
			for i := range plan.Phases {
				phase := &plan.Phases[i]
				if phase.Status == migration.PhaseStatusCompleted {
					continue
				}
				fmt.Printf("Executing phase %s (%s)...\n", phase.ID, phase.Name)
				if err := a.orch.ExecutePhase(ctx, planID, phase.ID); err != nil {
					return fmt.Errorf("phase %s failed: %w", phase.ID, err)
				}
			}

			final, err := a.orch.GetPlan(ctx, planID)
			if err != nil {
				return err
			}
			return printResult(final, func() {
				fmt.Printf("Plan %s finished with status %s\n", planID, final.Status)
			})
		},
	}

	cmd.Flags().StringVar(&phaseID, "phase", "", "execute only this phase")

	return cmd
}

func newTaskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task <plan-id> <phase-id> <task-id>",
		Short: "Execute a single task",
		Long: `Execute one task of a phase, with the same validation, retry and
timeout handling as a full phase run.`,
		Example: `  # Re-run a failed task
  cutover task 4f9d2c phase-migrate task-copy`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if err := a.orch.ExecuteTask(ctx, args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Printf("Task %s completed\n", args[2])
			return nil
		},
	}
	return cmd
}
