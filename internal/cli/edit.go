package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"timetrack/internal/calendar"
)

// NewRenameCommand creates the rename command.
func NewRenameCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Change the title of an event",
		Long: `Load the events, then replace the event with the given id using the
new title. Remaining arguments are joined with spaces.

Example:
  timetrack rename 12 Code review`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRename(rootOpts, cmd, args[0], strings.Join(args[1:], " "))
		},
	}
}

func runRename(opts *RootOptions, cmd *cobra.Command, rawID, title string) error {
	a, err := setup(opts, cmd)
	if err != nil {
		return err
	}
	id, err := parseEventID(rawID)
	if err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeUsage, err)
	}

	ctx := cmd.Context()
	if _, err := a.manager.Load(ctx); err != nil {
		return a.out.SyncFail(err)
	}

	updated, err := a.manager.Rename(ctx, id, title)
	if err != nil {
		return a.out.SyncFail(err)
	}

	return a.out.Success(updated, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Renamed %d: %s\n", updated.ID, calendar.EventLine(updated))
		return err
	})
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete an event",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, cmd, args[0])
		},
	}
}

func runDelete(opts *RootOptions, cmd *cobra.Command, rawID string) error {
	a, err := setup(opts, cmd)
	if err != nil {
		return err
	}
	id, err := parseEventID(rawID)
	if err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeUsage, err)
	}

	if err := a.manager.Delete(cmd.Context(), id); err != nil {
		return a.out.SyncFail(err)
	}

	return a.out.Success(map[string]int64{"deleted": id}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Deleted %d\n", id)
		return err
	})
}

func parseEventID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid event id %q", raw)
	}
	return id, nil
}
