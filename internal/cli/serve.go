package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	appLog "timetrack/internal/log"
	"timetrack/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen   string
	Database string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the events server",
		Long: `Serve the /events REST collection the tracker syncs against, stored in
a SQLite database (created if it doesn't exist).

Example:
  timetrack serve --listen 127.0.0.1:3001 --db ./var/timetrack.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)
	cfg, err := loadConfig(opts.RootOptions, cmd, out)
	if err != nil {
		return err
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	if opts.Database != "" {
		cfg.DBPath = opts.Database
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		return out.Fail(ExitCommandError, ErrCodeIO, err)
	}

	appLog.Info("opening database", "path", cfg.DBPath)
	repo, err := server.OpenSQLite(cfg.DBPath)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeIO, err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			appLog.Error("error closing database", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s := server.NewServer(repo, cfg.DefaultTitle)
	if err := server.ListenAndServe(ctx, cfg.Listen, s); err != nil {
		return out.Fail(ExitFailure, ErrCodeServer, err)
	}
	return nil
}
