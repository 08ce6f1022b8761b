package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"timetrack/internal/ics"
	"timetrack/internal/model"
)

const dateLayout = "2006-01-02"

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export events as iCalendar",
		Long: `Load every event and write it as an iCalendar VEVENT. Without --out the
calendar is written to stdout.

Example:
  timetrack export --out tracked.ics`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "out", "o", "", "output file path")

	return cmd
}

type exportSummary struct {
	Path     string  `json:"path"`
	Exported int     `json:"exported"`
	Skipped  []int64 `json:"skipped,omitempty"`
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	a, err := setup(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	list, err := a.manager.Load(cmd.Context())
	if err != nil {
		return a.out.SyncFail(err)
	}

	var buf bytes.Buffer
	skipped, err := ics.Export(&buf, list, time.Now())
	if err != nil {
		return a.out.Fail(ExitFailure, ErrCodeIO, err)
	}

	if opts.Output == "" {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}

	if err := os.WriteFile(opts.Output, buf.Bytes(), 0o644); err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeIO, err)
	}

	summary := exportSummary{Path: opts.Output, Exported: len(list) - len(skipped), Skipped: skipped}
	return a.out.Success(summary, func(w io.Writer) error {
		fmt.Fprintf(w, "Exported %d event(s) to %s\n", summary.Exported, summary.Path)
		if len(skipped) > 0 {
			fmt.Fprintf(w, "Skipped %d event(s) with unreadable timestamps: %v\n", len(skipped), skipped)
		}
		return nil
	})
}

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	From       string
	To         string
	DryRun     bool
	WithAllDay bool
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file.ics|url>",
		Short: "Create events from an iCalendar file or feed",
		Long: `Parse an iCalendar file (or http(s) feed), expand recurring events
between --from and --to (UTC dates, inclusive) and create one event per
occurrence. Occurrences identical to an existing event are skipped, so
importing the same calendar twice is harmless.

Example:
  timetrack import work.ics --from 2024-01-01 --to 2024-01-31
  timetrack import https://example.com/cal.ics --dry-run`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "first day to import, YYYY-MM-DD (default: 30 days ago)")
	cmd.Flags().StringVar(&opts.To, "to", "", "last day to import, YYYY-MM-DD (default: today)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the events without creating them")
	cmd.Flags().BoolVar(&opts.WithAllDay, "all-day", false, "also import all-day events")

	return cmd
}

type importSummary struct {
	Created   []model.Event `json:"created"`
	Planned   []model.Draft `json:"planned,omitempty"`
	Duplicate int           `json:"duplicate"`
	Truncated []string      `json:"truncated,omitempty"`
}

func runImport(opts *ImportOptions, cmd *cobra.Command, src string) error {
	a, err := setup(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	from, to, err := importWindow(opts.From, opts.To, time.Now())
	if err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeUsage, err)
	}

	ctx := cmd.Context()
	body, err := ics.NewReader(nil).Read(ctx, src)
	if err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeIO, err)
	}
	parsed, err := ics.Parse(body)
	if err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeIO, fmt.Errorf("parse %s: %w", src, err))
	}
	res, err := ics.Expand(parsed, ics.ExpandConfig{
		RangeStart: from,
		RangeEnd:   to,
		SkipAllDay: !opts.WithAllDay,
	})
	if err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeUsage, err)
	}

	existing, err := a.manager.Load(ctx)
	if err != nil {
		return a.out.SyncFail(err)
	}
	seen := make(map[model.Draft]bool, len(existing))
	for _, e := range existing {
		seen[e.Draft()] = true
	}

	summary := importSummary{Created: []model.Event{}, Truncated: res.TruncatedEvents}
	for _, occ := range res.Occurrences {
		d := occ.Draft(a.cfg.DefaultTitle)
		if seen[d] {
			summary.Duplicate++
			continue
		}
		seen[d] = true

		if opts.DryRun {
			summary.Planned = append(summary.Planned, d)
			continue
		}
		created, err := a.manager.CreateDraft(ctx, d)
		if err != nil {
			return a.out.SyncFail(err)
		}
		summary.Created = append(summary.Created, created)
	}

	return a.out.Success(summary, func(w io.Writer) error {
		for _, d := range summary.Planned {
			fmt.Fprintf(w, "would create: %s  %s - %s\n", d.Title, d.DateStart, d.DateEnd)
		}
		fmt.Fprintf(w, "Imported %d event(s), %d already present\n", len(summary.Created), summary.Duplicate)
		if len(summary.Truncated) > 0 {
			fmt.Fprintf(w, "Recurrences truncated for: %v\n", summary.Truncated)
		}
		return nil
	})
}

// importWindow resolves --from/--to into [from 00:00, to 24:00) UTC.
func importWindow(rawFrom, rawTo string, now time.Time) (time.Time, time.Time, error) {
	today := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)

	from := today.AddDate(0, 0, -30)
	if rawFrom != "" {
		t, err := time.Parse(dateLayout, rawFrom)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from %q: want YYYY-MM-DD", rawFrom)
		}
		from = t
	}

	to := today
	if rawTo != "" {
		t, err := time.Parse(dateLayout, rawTo)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to %q: want YYYY-MM-DD", rawTo)
		}
		to = t
	}

	end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	if end.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", to.Format(dateLayout), from.Format(dateLayout))
	}
	return from, end, nil
}
