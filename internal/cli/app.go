package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"timetrack/internal/calendar"
	"timetrack/internal/config"
	appLog "timetrack/internal/log"
	"timetrack/internal/model"
	"timetrack/internal/remote"
	"timetrack/internal/tracker"
)

// app is the per-invocation wiring shared by the commands.
type app struct {
	cfg     *config.Config
	out     *OutputFormatter
	manager *tracker.Manager
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// loadConfig resolves the config file, applies flag overrides and sets up
// logging on the command's stderr.
func loadConfig(opts *RootOptions, cmd *cobra.Command, out *OutputFormatter) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, out.Fail(ExitCommandError, ErrCodeConfig, err)
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}

	appLog.SetOutput(cmd.ErrOrStderr())
	if opts.Verbose {
		appLog.SetLevel(appLog.LevelDebug)
	} else {
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	}
	appLog.Debug("effective config",
		"config_path", path,
		"base_url", cfg.BaseURL,
		"timeout", cfg.Timeout,
		"reload", cfg.ReloadCron,
	)
	return cfg, nil
}

func setup(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	out := newFormatter(opts, cmd)
	cfg, err := loadConfig(opts, cmd, out)
	if err != nil {
		return nil, err
	}

	client := remote.NewClient(cfg.BaseURL, cfg.Timeout)
	m := tracker.New(nil, client, nil, tracker.Options{
		Title: cfg.DefaultTitle,
		Hooks: tracker.Hooks{
			OnRequest: func(r tracker.Request) {
				out.VerboseLog("-> %s %s", r.Op, r.ID)
			},
			OnOutcome: func(o tracker.Outcome) {
				if o.Err != nil {
					out.VerboseLog("<- %s %s failed: %v", o.Op, o.ID, o.Err)
					return
				}
				out.VerboseLog("<- %s %s ok", o.Op, o.ID)
			},
		},
	})

	return &app{cfg: cfg, out: out, manager: m}, nil
}

// dayView is the JSON shape of one day group.
type dayView struct {
	Day    string        `json:"day"`
	Label  string        `json:"label"`
	Events []model.Event `json:"events"`
}

func dayViews(groups []calendar.DayGroup) []dayView {
	views := make([]dayView, 0, len(groups))
	for _, g := range groups {
		views = append(views, dayView{
			Day:    g.Key,
			Label:  calendar.DayLabel(g),
			Events: g.Events,
		})
	}
	return views
}

// renderState writes what the display layer shows for the manager: a
// loading indicator until the first load succeeded, then the last error
// message, if any, followed by the day groups and a note for events whose
// timestamps could not be read.
func renderState(w io.Writer, m *tracker.Manager) error {
	if !m.Loaded() {
		_, err := io.WriteString(w, "Loading...\n")
		return err
	}
	if msg := m.LastError(); msg != "" {
		if _, err := io.WriteString(w, msg+"\n"); err != nil {
			return err
		}
	}

	rep := m.GroupReport()
	switch {
	case len(rep.Groups) > 0:
		if err := calendar.Render(w, rep.Groups); err != nil {
			return err
		}
	case len(rep.Skipped) == 0:
		_, err := io.WriteString(w, "No events recorded.\n")
		return err
	}
	if len(rep.Skipped) > 0 {
		_, err := fmt.Fprintf(w, "%d event(s) with unreadable timestamps: %v\n", len(rep.Skipped), rep.Skipped)
		return err
	}
	return nil
}
