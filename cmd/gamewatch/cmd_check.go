package main

import (
	"context"

	"gamewatch/internal/app"

	"github.com/spf13/cobra"
)

func newCheckCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run one monitor cycle and print its summary as JSON",
		Long: "Run one monitor cycle and print its summary as JSON.\n\n" +
			"Per-player problems are reported in the summary only; the exit code is 1\n" +
			"only when the cycle itself failed (registry unreadable).",
		Args: cobra.NoArgs,
		RunE: runWithApp(open, func(ctx context.Context, a *app.App, cmd *cobra.Command) error {
			s := a.RunOnce(ctx)
			if err := writeJSON(cmd.OutOrStdout(), s); err != nil {
				return err
			}
			if s.Failed() {
				return errCycleFailed
			}
			return nil
		}),
	}
}
