package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"timetrack/internal/calendar"
	"timetrack/internal/recorder"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	Duration time.Duration
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a new event",
		Long: `Start the recorder and show the elapsed time every second. Press Enter
or Ctrl-C to stop; the recorded interval is then created remotely as an event
with the default title.

Example:
  timetrack record
  timetrack record --for 25m`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Duration, "for", 0, "stop automatically after this long")

	return cmd
}

func runRecord(opts *RecordOptions, cmd *cobra.Command) error {
	a, err := setup(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	since := a.manager.Start()
	a.out.VerboseLog("recording since %s", since.UTC().Format(time.RFC3339))
	fmt.Fprintln(a.out.GetErrWriter(), "Recording. Press Enter or Ctrl-C to stop.")

	waitForStop(ctx, cmd.InOrStdin(), opts.Duration, a.manager.Recorder(), a.out.GetErrWriter())

	// The interrupt that ended the recording must not cancel the create.
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Timeout)
	defer cancel()

	created, err := a.manager.Stop(stopCtx)
	if err != nil {
		return a.out.SyncFail(err)
	}

	return a.out.Success(created, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Created %d: %s\n", created.ID, calendar.EventLine(created))
		return err
	})
}

// waitForStop ticks the elapsed time once per second until a line is read
// from in, ctx is done or limit (if positive) has passed. EOF on in is not a
// stop request.
func waitForStop(ctx context.Context, in io.Reader, limit time.Duration, rec *recorder.Recorder, tick io.Writer) {
	enter := make(chan struct{})
	go func() {
		if _, err := bufio.NewReader(in).ReadString('\n'); err == nil {
			close(enter)
		}
	}()

	var deadline <-chan time.Time
	if limit > 0 {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fmt.Fprintf(tick, "\r%s", recorder.FormatElapsed(rec.ElapsedSeconds()))
		case <-enter:
			fmt.Fprintln(tick)
			return
		case <-deadline:
			fmt.Fprintln(tick)
			return
		case <-ctx.Done():
			fmt.Fprintln(tick)
			return
		}
	}
}
