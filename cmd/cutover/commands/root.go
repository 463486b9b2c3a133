package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	dbPath      string
	memoryStore bool
	logLevel    string
	logFormat   string
	jsonOutput  bool
	environment string
	metricsAddr string
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cutover",
		Short: "Cutover - Staged Migration Orchestration Engine",
		Long: `Cutover orchestrates staged system migrations: it executes plans
phase by phase, validates the result of every task, and keeps the
rollback path ready at each step.

Features:
  - Plan manifests in YAML with structural validation
  - Phase execution with per-task retry and timeout control
  - Policy enforcement (OPA/Rego) before every phase
  - Recovery points with data backups and integrity checks
  - Phase-level rollback in reverse order
  - Progress tracking and migration reports`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "cutover.db", "SQLite database path")
	rootCmd.PersistentFlags().BoolVar(&memoryStore, "memory", false, "use an in-memory store instead of SQLite")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&environment, "environment", "development", "environment reported to policies")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(newCreateCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newExecuteCommand())
	rootCmd.AddCommand(newTaskCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newPauseCommand())
	rootCmd.AddCommand(newResumeCommand())
	rootCmd.AddCommand(newCancelCommand())
	rootCmd.AddCommand(newRollbackCommand())
	rootCmd.AddCommand(newRecoveryCommand())
	rootCmd.AddCommand(newReportCommand())
	rootCmd.AddCommand(newEstimateCommand())

	return rootCmd
}
