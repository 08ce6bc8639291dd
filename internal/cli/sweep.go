package cli

import (
	"context"
	"fmt"

	"squares/internal/board"

	"github.com/spf13/cobra"
)

func newSweepCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one reconciliation pass",
		Long: `Run one reconciliation pass for external schedulers.

  expire    return reserved squares whose hold has elapsed to available
  autolock  lock open games whose close time has passed`,
	}
	cmd.AddCommand(newSweepPassCommand(opts, "expire", "Release expired reservations", (*board.Engine).ReleaseExpiredReservations))
	cmd.AddCommand(newSweepPassCommand(opts, "autolock", "Lock games past their close time", (*board.Engine).LockGamesAtCloseTime))
	return cmd
}

func newSweepPassCommand(opts *RootOptions, use, short string, pass func(*board.Engine, context.Context) (board.SweepResult, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd, func(ctx context.Context, engine *board.Engine) error {
				result, err := pass(engine, ctx)
				if err != nil {
					return err
				}
				if err := opts.output(cmd.OutOrStdout()).emit(result, fmt.Sprintf(
					"%s: scanned=%d applied=%d skipped=%d failed=%d",
					use, result.Scanned, result.Applied, result.Skipped, result.Failed)); err != nil {
					return err
				}
				if result.Failed > 0 {
					return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%s sweep had %d failure(s)", use, result.Failed)}
				}
				return nil
			})
		},
	}
}
