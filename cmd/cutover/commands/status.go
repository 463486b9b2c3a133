package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <plan-id>",
		Short: "Show plan progress",
		Long: `Show the progress of a migration plan: overall and current-phase
completion, elapsed time and the extrapolated time remaining.`,
		Example: `  # Show progress
  cutover status 4f9d2c

  # Machine-readable progress
  cutover status 4f9d2c --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			plan, err := a.orch.GetPlan(ctx, args[0])
			if err != nil {
				return err
			}
			progress, err := a.orch.GetProgress(ctx, args[0])
			if err != nil {
				return err
			}

			return printResult(progress, func() {
				fmt.Printf("Plan %s (%s)\n", plan.ID, plan.Name)
				fmt.Printf("  Status:    %s\n", plan.Status)
				fmt.Printf("  Progress:  %.1f%% (%d/%d tasks)\n",
					progress.OverallProgress, len(progress.CompletedTasks), progress.TotalTasks)
				if progress.CurrentPhase != "" {
					fmt.Printf("  Phase:     %s (%.1f%%)\n", progress.CurrentPhase, progress.PhaseProgress)
				}
				if len(progress.FailedTasks) > 0 {
					fmt.Printf("  Failed:    %s\n", strings.Join(progress.FailedTasks, ", "))
				}
				if progress.Elapsed > 0 {
					fmt.Printf("  Elapsed:   %s\n", progress.Elapsed.Round(time.Second))
				}
				if progress.EstimatedRemaining > 0 {
					fmt.Printf("  Remaining: %s (estimated)\n", progress.EstimatedRemaining.Round(time.Second))
				}
			})
		},
	}
	return cmd
}

func newListCommand() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List migration plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			plans, err := a.store.ListPlans(ctx, limit, offset)
			if err != nil {
				return err
			}

			return printResult(plans, func() {
				if len(plans) == 0 {
					fmt.Println("No plans found")
					return
				}
				for _, p := range plans {
					fmt.Printf("%s  %-12s  %-24s  %d phases\n", p.ID, p.Status, p.Name, len(p.Phases))
				}
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of plans to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of plans to skip")

	return cmd
}

func newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <plan-id>",
		Short: "Generate a migration report",
		Long: `Generate the durable record of a plan: its final state, progress,
validation findings and rollback outcomes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			report, err := a.orch.GenerateReport(ctx, args[0])
			if err != nil {
				return err
			}

			return printResult(report, func() {
				fmt.Printf("Migration report for %s (%s)\n", report.Plan.ID, report.Plan.Name)
				fmt.Printf("  Status:      %s\n", report.Plan.Status)
				fmt.Printf("  Progress:    %.1f%%\n", report.Progress.OverallProgress)
				fmt.Printf("  Validations: %d findings\n", len(report.ValidationResults))
				fmt.Printf("  Rollbacks:   %d\n", len(report.RollbackResults))
				fmt.Printf("  Generated:   %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))
			})
		},
	}
	return cmd
}

func newEstimateCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the duration of a plan manifest",
		Long: `Compute the buffered duration estimate for a manifest without
creating a plan. The estimate is the sum of phase durations with a
safety buffer applied.`,
		Example: `  cutover estimate -f plan.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			parsed, err := a.parser.ParseFile(file)
			if err != nil {
				return err
			}
			if !parsed.Valid() {
				printFindings(parsed)
				return fmt.Errorf("manifest %s is invalid", file)
			}
			plan, err := a.parser.ToPlan(parsed.Manifest)
			if err != nil {
				return err
			}

			minutes := a.orch.EstimateDuration(plan)
			return printResult(map[string]int{"estimated_minutes": minutes}, func() {
				fmt.Printf("Estimated duration: %d minutes (%d phases)\n", minutes, len(plan.Phases))
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "plan manifest path")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
