package cli

import (
	"context"
	"fmt"
	"io"
	"slices"

	"squares/internal/board"

	"github.com/spf13/cobra"
)

// Backend is what commands operate on. Close releases the connections
// behind the engine.
type Backend struct {
	Engine *board.Engine
	Close  func() error
}

// Opener builds a Backend. Tests substitute an in-memory one.
type Opener func(ctx context.Context) (*Backend, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string
	Actor  string
	Open   Opener
}

var validFormats = []string{"text", "json"}

// NewRootCommand creates the squaresctl root command. A nil opener connects
// to the configured database.
func NewRootCommand(open Opener) *cobra.Command {
	if open == nil {
		open = OpenDatabase
	}
	opts := &RootOptions{Open: open}

	cmd := &cobra.Command{
		Use:   "squaresctl",
		Short: "Operate squares boards",
		Long:  "Administer squares games: create and load games, lock grids, record scores and run reconciliation sweeps.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Actor, "actor", "squaresctl", "administrator user id recorded in the audit log")

	cmd.AddCommand(newGamesCommand(opts))
	cmd.AddCommand(newLockCommand(opts))
	cmd.AddCommand(newScoreCommand(opts))
	cmd.AddCommand(newSweepCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))
	cmd.AddCommand(newMigrateCommand())
	return cmd
}

func (o *RootOptions) admin() board.Caller {
	return board.Caller{UserID: o.Actor, Admin: true}
}

// withBackend opens the backend, runs fn and closes it again.
func (o *RootOptions) withBackend(cmd *cobra.Command, fn func(ctx context.Context, engine *board.Engine) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	backend, err := o.Open(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "open backend", err)
	}
	defer func() {
		if backend.Close != nil {
			_ = backend.Close()
		}
	}()
	return fn(ctx, backend.Engine)
}

func (o *RootOptions) output(w io.Writer) *outputFormatter {
	return &outputFormatter{format: o.Format, w: w}
}
