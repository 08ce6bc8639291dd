package cli

import (
	"time"

	"squares/internal/config"
	"squares/internal/server"

	"github.com/spf13/cobra"
)

func newTokenCommand(opts *RootOptions) *cobra.Command {
	var (
		userID string
		admin  bool
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with AUTH_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(".env"); err != nil {
				return WrapExitError(ExitCommandError, "load .env", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "load config", err)
			}
			token, err := server.NewAuthenticator(cfg.AuthSecret, nil).Issue(userID, admin, ttl)
			if err != nil {
				return WrapExitError(ExitCommandError, "issue token", err)
			}
			return opts.output(cmd.OutOrStdout()).emit(map[string]any{"token": token}, token)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id carried as the token subject (required)")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant administrator role")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
