package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCreateCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a migration plan from a manifest",
		Long: `Create a migration plan from a YAML manifest.

The manifest is validated structurally before the plan is created.
Missing IDs are generated, the duration estimate is computed from the
phase durations, and the plan is persisted in draft status.`,
		Example: `  # Create a plan from a manifest
  cutover create -f plan.yaml

  # Create against an in-memory store (for dry runs)
  cutover create -f plan.yaml --memory`,
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
			created, err := a.orch.CreatePlan(ctx, plan)
			if err != nil {
				return err
			}

			return printResult(created, func() {
				fmt.Printf("Plan %q created\n", created.Name)
				fmt.Printf("  ID:         %s\n", created.ID)
				fmt.Printf("  Phases:     %d\n", len(created.Phases))
				fmt.Printf("  Estimated:  %d minutes\n", created.EstimatedDuration)
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "plan manifest path")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
