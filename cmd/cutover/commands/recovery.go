package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cutover/cutover/pkg/recovery"
)

func newRecoveryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recovery",
		Short: "Manage recovery points and recovery plans",
		Long: `Capture recovery points before risky phases, derive recovery plans
from them, and execute or validate those plans.`,
	}

	cmd.AddCommand(newRecoveryPointCommand())
	cmd.AddCommand(newRecoveryPlanCommand())
	cmd.AddCommand(newRecoveryExecuteCommand())
	cmd.AddCommand(newRecoveryValidateCommand())

	return cmd
}

func newRecoveryPointCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "point",
		Short: "Manage recovery points",
	}

	var taskID string
	create := &cobra.Command{
		Use:   "create <plan-id> <phase-id>",
		Short: "Capture a recovery point before a phase runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			var point *recovery.RecoveryPoint
			if taskID != "" {
				point, err = a.recovery.CreateTaskRecoveryPoint(ctx, args[0], args[1], taskID)
			} else {
				point, err = a.recovery.CreateRecoveryPoint(ctx, args[0], args[1])
			}
			if err != nil {
				return err
			}
			return printResult(point, func() {
				fmt.Printf("Recovery point created: %s\n", point.ID)
				fmt.Printf("  Plan:    %s\n", point.PlanID)
				fmt.Printf("  Phase:   %s\n", point.PhaseID)
				if point.TaskID != "" {
					fmt.Printf("  Task:    %s\n", point.TaskID)
				}
				fmt.Printf("  Backups: %d\n", len(point.Backups))
			})
		},
	}
	create.Flags().StringVar(&taskID, "task", "", "scope the recovery point to a single task")

	list := &cobra.Command{
		Use:   "list <plan-id>",
		Short: "List recovery points for a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			points, err := a.recovery.ListRecoveryPoints(ctx, args[0])
			if err != nil {
				return err
			}
			return printResult(points, func() {
				if len(points) == 0 {
					fmt.Println("No recovery points found")
					return
				}
				for _, p := range points {
					fmt.Printf("%s  phase=%s  backups=%d  created=%s\n",
						p.ID, p.PhaseID, len(p.Backups), p.CreatedAt.Format("2006-01-02 15:04:05"))
				}
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <recovery-point-id>",
		Short: "Delete a recovery point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if err := a.recovery.DeleteRecoveryPoint(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Recovery point %s deleted\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(create, list, del)
	return cmd
}

func newRecoveryPlanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <recovery-point-id>",
		Short: "Build a recovery plan from a recovery point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			plan, err := a.recovery.CreateRecoveryPlan(ctx, args[0])
			if err != nil {
				return err
			}
			return printResult(plan, func() {
				fmt.Printf("Recovery plan created: %s\n", plan.ID)
				fmt.Printf("  Data loss risk:      %s\n", plan.Risk.DataLossRisk)
				fmt.Printf("  Estimated downtime:  %dm\n", plan.Risk.EstimatedDowntimeMinutes)
				fmt.Printf("  Steps:\n")
				for _, step := range plan.Steps {
					fmt.Printf("    %2d. [%s] %s\n", step.Order, step.Kind, step.Description)
				}
			})
		},
	}
}

func newRecoveryExecuteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "execute <recovery-point-id>",
		Short: "Build and execute a recovery plan from a recovery point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			plan, err := a.recovery.CreateRecoveryPlan(ctx, args[0])
			if err != nil {
				return err
			}
			result, err := a.recovery.ExecuteRecoveryPlan(ctx, plan)
			if err != nil {
				return err
			}
			return printResult(result, func() {
				if result.Success {
					fmt.Printf("Recovery completed in %s\n", result.Duration)
				} else {
					fmt.Printf("Recovery completed with failures in %s\n", result.Duration)
				}
				for _, sr := range result.StepResults {
					status := "ok"
					if !sr.Success {
						status = "FAILED: " + sr.Error
					}
					fmt.Printf("  %s  %s\n", sr.StepID, status)
				}
			})
		},
	}
}

func newRecoveryValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <recovery-point-id>",
		Short: "Compare current system state against a recovery point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			results, err := a.recovery.ValidateSystemState(ctx, args[0])
			if err != nil {
				return err
			}
			return printResult(results, func() {
				failed := 0
				for _, r := range results {
					status := "pass"
					if !r.Success {
						status = "FAIL"
						failed++
					}
					fmt.Printf("  [%s] %s: %s\n", status, r.StepID, r.Message)
				}
				if failed > 0 {
					fmt.Printf("%d of %d checks failed\n", failed, len(results))
				} else {
					fmt.Printf("All %d checks passed\n", len(results))
				}
			})
		},
	}
}
