package cli

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"squares/internal/board"

	"github.com/spf13/cobra"
)

func newGamesCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "games",
		Short: "Create, load and inspect games",
	}
	cmd.AddCommand(newGamesCreateCommand(opts))
	cmd.AddCommand(newGamesLoadCommand(opts))
	cmd.AddCommand(newGamesShowCommand(opts))
	return cmd
}

func newGamesCreateCommand(opts *RootOptions) *cobra.Command {
	var name, closesAt string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an open game with an empty 10x10 grid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			closes, err := time.Parse(time.RFC3339, strings.TrimSpace(closesAt))
			if err != nil {
				return WrapExitError(ExitCommandError, "--closes-at must be RFC 3339", err)
			}
			return opts.withBackend(cmd, func(ctx context.Context, engine *board.Engine) error {
				game, err := engine.CreateGame(ctx, opts.admin(), name, closes)
				if err != nil {
					return err
				}
				return opts.output(cmd.OutOrStdout()).emit(game,
					fmt.Sprintf("created game %s (%s), closes %s", game.ID, game.Name, game.ClosesAt.Format(time.RFC3339)))
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "game name (required)")
	cmd.Flags().StringVar(&closesAt, "closes-at", "", "close time, RFC 3339 (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("closes-at")
	return cmd
}

type gameRecord struct {
	Line     int
	Name     string
	ClosesAt time.Time
}

type loadResult struct {
	Created []board.Game `json:"created"`
	Failed  []string     `json:"failed,omitempty"`
}

func newGamesLoadCommand(opts *RootOptions) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Create games from a CSV file with columns name,closes_at",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(path)
			if err != nil {
				return WrapExitError(ExitCommandError, "open games file", err)
			}
			defer file.Close()
			records, err := readGames(file)
			if err != nil {
				return WrapExitError(ExitCommandError, "read games file", err)
			}
			return opts.withBackend(cmd, func(ctx context.Context, engine *board.Engine) error {
				result := loadResult{}
				lines := make([]string, 0, len(records)+1)
				for _, record := range records {
					game, err := engine.CreateGame(ctx, opts.admin(), record.Name, record.ClosesAt)
					if err != nil {
						msg := fmt.Sprintf("line %d: %s", record.Line, board.Message(err))
						result.Failed = append(result.Failed, msg)
						lines = append(lines, msg)
						continue
					}
					result.Created = append(result.Created, game)
					lines = append(lines, fmt.Sprintf("created game %s (%s)", game.ID, game.Name))
				}
				lines = append(lines, fmt.Sprintf("%d created, %d failed", len(result.Created), len(result.Failed)))
				if err := opts.output(cmd.OutOrStdout()).emit(result, lines...); err != nil {
					return err
				}
				if len(result.Failed) > 0 {
					return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d game(s) failed to load", len(result.Failed))}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "path to the games CSV (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// readGames parses name,closes_at rows. A first row whose second column is
// not a timestamp is taken as a header; blank lines are ignored.
func readGames(r io.Reader) ([]gameRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var records []gameRecord
	first := true
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)
		header := first
		first = false
		if len(row) < 2 {
			return nil, fmt.Errorf("line %d: expected name,closes_at", line)
		}
		closesAt, err := time.Parse(time.RFC3339, strings.TrimSpace(row[1]))
		if err != nil {
			if header {
				continue
			}
			return nil, fmt.Errorf("line %d: closes_at: %w", line, err)
		}
		records = append(records, gameRecord{Line: line, Name: strings.TrimSpace(row[0]), ClosesAt: closesAt})
	}
	if len(records) == 0 {
		return nil, errors.New("no games found")
	}
	return records, nil
}

func newGamesShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <game-id>",
		Short: "Print a game and its grid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd, func(ctx context.Context, engine *board.Engine) error {
				game, err := engine.GetGame(ctx, args[0])
				if err != nil {
					return err
				}
				squares, err := engine.ListSquares(ctx, game.ID)
				if err != nil {
					return err
				}
				lines := []string{fmt.Sprintf("%s %s status=%s closes=%s", game.ID, game.Name, game.Status, game.ClosesAt.Format(time.RFC3339))}
				if len(game.RowDigits) > 0 {
					lines = append(lines, fmt.Sprintf("rows=%v cols=%v", game.RowDigits, game.ColDigits))
				}
				claimed := 0
				for _, square := range squares {
					if square.State != board.SquareAvailable {
						claimed++
					}
				}
				lines = append(lines, fmt.Sprintf("%d of %d squares claimed", claimed, len(squares)))
				for _, period := range slices.Sorted(maps.Keys(game.WinnerSnapshot)) {
					winner := game.WinnerSnapshot[period]
					lines = append(lines, fmt.Sprintf("%s: %d-%d row=%d col=%d user=%q", period, winner.HomeScore, winner.AwayScore, winner.Row, winner.Col, winner.UserID))
				}
				return opts.output(cmd.OutOrStdout()).emit(map[string]any{"game": game, "squares": squares}, lines...)
			})
		},
	}
}
