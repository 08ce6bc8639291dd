package cli

import (
	"fmt"
	"time"

	"squares/internal/config"
	"squares/internal/db"

	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage SQL schema migrations",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", db.MigrationsDir, "migrations directory")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := databaseURL()
			if err != nil {
				return err
			}
			if err := db.MigrateUp(dsn, dir); err != nil {
				return WrapExitError(ExitCommandError, "migrate up", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database migrations applied")
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := databaseURL()
			if err != nil {
				return err
			}
			if err := db.MigrateDown(dsn, dir, steps); err != nil {
				return WrapExitError(ExitCommandError, "migrate down", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an empty up/down migration pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			upPath, downPath, err := db.CreateMigration(dir, name, time.Now())
			if err != nil {
				return WrapExitError(ExitCommandError, "create migration", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s and %s\n", upPath, downPath)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "migration name (required)")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(up, down, create)
	return cmd
}

func databaseURL() (string, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return "", WrapExitError(ExitCommandError, "load .env", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return "", WrapExitError(ExitCommandError, "load config", err)
	}
	if cfg.DatabaseURL == "" {
		return "", WrapExitError(ExitCommandError, "migrate", db.ErrNoDatabase)
	}
	return cfg.DatabaseURL, nil
}
