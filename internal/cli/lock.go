package cli

import (
	"context"
	"fmt"

	"squares/internal/board"

	"github.com/spf13/cobra"
)

func newLockCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lock <game-id>",
		Short: "Lock a game and draw its grid digits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd, func(ctx context.Context, engine *board.Engine) error {
				game, err := engine.LockGame(ctx, opts.admin(), args[0])
				if err != nil {
					return err
				}
				return opts.output(cmd.OutOrStdout()).emit(game,
					fmt.Sprintf("locked game %s rows=%v cols=%v", game.ID, game.RowDigits, game.ColDigits))
			})
		},
	}
}

func newScoreCommand(opts *RootOptions) *cobra.Command {
	var in board.ScoreInput
	cmd := &cobra.Command{
		Use:   "score <game-id>",
		Short: "Record a period score and resolve its winning square",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd, func(ctx context.Context, engine *board.Engine) error {
				result, err := engine.SubmitScore(ctx, opts.admin(), args[0], in)
				if err != nil {
					return err
				}
				line := fmt.Sprintf("%s %d-%d: square %s row=%d col=%d user=%q",
					result.Period, result.Winner.HomeScore, result.Winner.AwayScore,
					result.Winner.SquareID, result.Winner.Row, result.Winner.Col, result.Winner.UserID)
				if result.Duplicate {
					line += " (already recorded)"
				}
				return opts.output(cmd.OutOrStdout()).emit(result, line)
			})
		},
	}
	cmd.Flags().StringVar(&in.Period, "period", "", "scoring period, e.g. Q1 (required)")
	cmd.Flags().IntVar(&in.HomeScore, "home", 0, "home team score")
	cmd.Flags().IntVar(&in.AwayScore, "away", 0, "away team score")
	_ = cmd.MarkFlagRequired("period")
	_ = cmd.MarkFlagRequired("home")
	_ = cmd.MarkFlagRequired("away")
	return cmd
}
