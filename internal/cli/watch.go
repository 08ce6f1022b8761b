package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	appLog "timetrack/internal/log"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Schedule string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload and redraw the day groups on a schedule",
		Long: `Load the events now and again on every tick of the reload schedule
(a standard 5-field cron expression, "reload" in the config file), printing
the day groups after each load. A failed reload keeps the previous events
and shows the error message above them.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schedule, "schedule", "", "cron schedule (overrides config)")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	a, err := setup(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	spec := a.cfg.ReloadCron
	if opts.Schedule != "" {
		spec = opts.Schedule
	}

	reload := func() {
		if _, err := a.manager.Load(ctx); err != nil && ctx.Err() != nil {
			return
		}
		err := a.out.Success(dayViews(a.manager.Groups()), func(w io.Writer) error {
			fmt.Fprintf(w, "== %s ==\n", time.Now().UTC().Format(time.RFC3339))
			return renderState(w, a.manager)
		})
		if err != nil {
			appLog.Error("watch: render failed", err)
		}
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(spec, reload); err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeConfig, fmt.Errorf("invalid reload schedule %q: %w", spec, err))
	}

	reload()

	appLog.Info("watch scheduler started", "schedule", spec)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("watch stopped")
	return nil
}
