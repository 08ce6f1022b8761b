package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show recorded events grouped by day",
		Long: `Load every event from the remote store and print them grouped by
UTC day, most recent day first. An event crossing midnight is listed under
both of its days.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	a, err := setup(opts, cmd)
	if err != nil {
		return err
	}

	if _, err := a.manager.Load(cmd.Context()); err != nil {
		return a.out.SyncFail(err)
	}

	return a.out.Success(dayViews(a.manager.Groups()), func(w io.Writer) error {
		return renderState(w, a.manager)
	})
}
