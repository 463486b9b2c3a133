package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRollbackCommand() *cobra.Command {
	var taskID string

	cmd := &cobra.Command{
		Use:   "rollback <plan-id> <phase-id>",
		Short: "Roll back a plan to a target phase",
		Long: `Roll back every phase after the target, in reverse execution order.
The target phase itself is not touched.

Rollback is best-effort: a failed step is recorded in the result and
the remaining phases are still processed. With --task only the named
task of the given phase is rolled back.`,
		Example: `  # Roll back everything after phase-backup
  cutover rollback 4f9d2c phase-backup

  # Roll back a single task
  cutover rollback 4f9d2c phase-migrate --task task-copy`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			planID, phaseID := args[0], args[1]

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if taskID != "" {
				result, err := a.orch.RollbackTask(ctx, planID, phaseID, taskID)
				if err != nil {
					return err
				}
				return printResult(result, func() {
					if result.Success {
						fmt.Printf("Task %s rolled back\n", taskID)
					} else {
						fmt.Printf("Task %s rollback failed: %s\n", taskID, result.Error)
					}
				})
			}

			result, err := a.orch.RollbackToPhase(ctx, planID, phaseID)
			if err != nil {
				return err
			}
			return printResult(result, func() {
				fmt.Printf("Rolled back %d phase(s): %s\n",
					len(result.RolledBackPhases), strings.Join(result.RolledBackPhases, ", "))
				fmt.Printf("  Steps executed: %d\n", len(result.StepsExecuted))
				if !result.Success {
					fmt.Printf("  Failures: %s\n", result.Error)
				}
			})
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "roll back only this task")

	return cmd
}
