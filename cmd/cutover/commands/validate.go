package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cutover/cutover/pkg/config"
)

func newValidateCommand() *cobra.Command {
	var (
		file  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a plan manifest",
		Long: `Validate a plan manifest without creating a plan.

This command checks:
  - YAML syntax and manifest structure
  - Phase and task shape (every phase needs tasks)
  - Dependency references and cycles
  - Policy compliance (OPA/Rego)

All findings are reported at once rather than stopping at the first
problem.`,
		Example: `  # Validate a manifest
  cutover validate -f plan.yaml

  # Re-validate on every save
  cutover validate -f plan.yaml --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if watch {
				watcher := config.NewWatcher(a.parser, a.tel.Logger)
				err := watcher.Watch(ctx, file, func(parsed *config.ParsedManifest) {
					_ = validateManifest(cmd, a, parsed)
				})
				if err == ctx.Err() {
					return nil
				}
				return err
			}

			parsed, err := a.parser.ParseFile(file)
			if err != nil {
				return err
			}
			if failed := validateManifest(cmd, a, parsed); failed != nil {
				return failed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "plan manifest path")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-validate whenever the file changes")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// validateManifest runs the manifest, plan and policy checks and
// prints every finding.
func validateManifest(cmd *cobra.Command, a *app, parsed *config.ParsedManifest) error {
	printFindings(parsed)
	if !parsed.Valid() {
		return fmt.Errorf("manifest %s is invalid", parsed.SourceFile)
	}

	plan, err := a.parser.ToPlan(parsed.Manifest)
	if err != nil {
		return err
	}

	findings := a.orch.ValidatePlan(cmd.Context(), plan)
	failed := false
	for _, f := range findings {
		if f.Success {
			continue
		}
		failed = true
		fmt.Printf("  [error] %s: %s\n", f.StepID, f.Message)
	}

	policyResult, err := a.policies.EvaluatePlan(cmd.Context(), plan)
	if err != nil {
		return err
	}
	for _, v := range policyResult.Violations {
		fmt.Printf("  [%s] policy %s: %s\n", v.Severity, v.Policy, v.Message)
	}
	if !policyResult.Allowed {
		failed = true
	}

	if failed {
		return fmt.Errorf("plan validation failed")
	}
	fmt.Printf("Manifest %s is valid\n", parsed.SourceFile)
	return nil
}

// printFindings prints manifest-level findings.
func printFindings(parsed *config.ParsedManifest) {
	for _, e := range parsed.Errors {
		if e.Path != "" {
			fmt.Printf("  [%s] %s: %s\n", e.Severity, e.Path, e.Message)
		} else {
			fmt.Printf("  [%s] %s\n", e.Severity, e.Message)
		}
	}
}
