package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPauseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <plan-id>",
		Short: "Pause plan execution",
		Long: `Pause a running plan. The task currently executing finishes; no
further tasks start until the plan is resumed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if err := a.orch.Pause(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Plan %s paused\n", args[0])
			return nil
		},
	}
}

func newResumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <plan-id>",
		Short: "Resume a paused plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if err := a.orch.Resume(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Plan %s resumed\n", args[0])
			return nil
		},
	}
}

func newCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <plan-id>",
		Short: "Cancel plan execution",
		Long: `Cancel a plan. The task currently executing finishes; the plan is
then marked cancelled and no further tasks start. Cancellation is
terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if err := a.orch.Cancel(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Plan %s cancelled\n", args[0])
			return nil
		},
	}
}
