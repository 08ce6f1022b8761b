package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrack/internal/model"
	"timetrack/internal/server"
)

type backend struct {
	url  string
	repo *server.SQLiteRepository
}

func newBackend(t *testing.T, seed ...model.Draft) *backend {
	t.Helper()
	repo, err := server.OpenSQLite(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	for _, d := range seed {
		_, err := repo.Create(context.Background(), d)
		require.NoError(t, err)
	}

	ts := httptest.NewServer(server.NewServer(repo, "").Handler())
	t.Cleanup(ts.Close)
	return &backend{url: ts.URL, repo: repo}
}

func (b *backend) events(t *testing.T) []model.Event {
	t.Helper()
	list, err := b.repo.List(context.Background())
	require.NoError(t, err)
	return list
}

type result struct {
	stdout string
	stderr string
	err    error
}

func execute(ctx context.Context, t *testing.T, baseURL, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer

	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{
		"--config", filepath.Join(t.TempDir(), "config.yaml"),
		"--base-url", baseURL,
	}, args...))

	err := cmd.ExecuteContext(ctx)
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func run(t *testing.T, baseURL string, args ...string) result {
	t.Helper()
	return execute(context.Background(), t, baseURL, "", args...)
}

var (
	standup   = model.Draft{Title: "Standup", DateStart: "2023-02-01T09:00:00.000Z", DateEnd: "2023-02-01T09:15:30.000Z"}
	lateNight = model.Draft{Title: "Late night", DateStart: "2023-01-31T23:00:00.000Z", DateEnd: "2023-02-01T01:00:00.000Z"}
	review    = model.Draft{Title: "Review", DateStart: "2023-01-30T14:00:00.000Z", DateEnd: "2023-01-30T15:30:00.000Z"}
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "timetrack", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"list", "record", "rename", "delete", "watch", "serve", "export", "import"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("base-url"))
}

func TestInvalidFormat(t *testing.T) {
	b := newBackend(t)
	res := run(t, b.url, "--format", "xml", "list")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "invalid format")
	assert.False(t, IsReported(res.err))
}

func TestList_Empty(t *testing.T) {
	b := newBackend(t)
	res := run(t, b.url, "list")
	require.NoError(t, res.err)
	assert.Equal(t, "No events recorded.\n", res.stdout)
}

func TestList_GroupsByDay(t *testing.T) {
	b := newBackend(t, review, lateNight, standup)

	res := run(t, b.url, "list")
	require.NoError(t, res.err)

	want := `1 February
  23:00 - 01:00  Late night (02:00:00)
  09:00 - 09:15  Standup (00:15:30)

31 January
  23:00 - 01:00  Late night (02:00:00)

30 January
  14:00 - 15:30  Review (01:30:00)
`
	assert.Equal(t, want, res.stdout)
}

func TestList_JSON(t *testing.T) {
	b := newBackend(t, review, lateNight)

	res := run(t, b.url, "--format", "json", "list")
	require.NoError(t, res.err)

	var resp struct {
		Status string    `json:"status"`
		Data   []dayView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "ok", resp.Status)

	var days []string
	for _, d := range resp.Data {
		days = append(days, d.Day)
	}
	assert.Equal(t, []string{"2023-02-01", "2023-01-31", "2023-01-30"}, days)
	assert.Equal(t, "30 January", resp.Data[2].Label)
}

func TestList_RemoteDown(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	res := run(t, url, "list")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Contains(t, res.stderr, "Error [LOAD_FAILED]: Failed to load events.")
}

func TestList_ISO8601TimestampsAndUnreadable(t *testing.T) {
	b := newBackend(t,
		model.Draft{Title: "All day", DateStart: "2023-02-01", DateEnd: "2023-02-01"},
		model.Draft{Title: "Broken", DateStart: "soon", DateEnd: "later"},
		model.Draft{Title: "Offset", DateStart: "2023-01-30T14:00:00+0000", DateEnd: "2023-01-30T15:00:00+0000"},
	)

	res := run(t, b.url, "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "1 February")
	assert.Contains(t, res.stdout, "All day")
	assert.Contains(t, res.stdout, "30 January")
	assert.Contains(t, res.stdout, "14:00 - 15:00  Offset")
	assert.NotContains(t, res.stdout, "Broken")
	assert.Contains(t, res.stdout, "1 event(s) with unreadable timestamps: [2]\n")
}

func TestRecord_StopsOnEnter(t *testing.T) {
	b := newBackend(t)

	res := execute(context.Background(), t, b.url, "\n", "record")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Created 1:")
	assert.Contains(t, res.stderr, "Recording.")

	list := b.events(t)
	require.Len(t, list, 1)
	assert.Equal(t, "New event", list[0].Title)
	start, err := list[0].Start()
	require.NoError(t, err)
	end, err := list[0].End()
	require.NoError(t, err)
	assert.False(t, end.Before(start))
}

func TestRecord_StopsOnInterrupt(t *testing.T) {
	b := newBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res := execute(ctx, t, b.url, "", "record")
	require.NoError(t, res.err, "a cancelled recording is still created")
	assert.Len(t, b.events(t), 1)
}

func TestRecord_CreateFailure(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	res := execute(context.Background(), t, url, "\n", "record")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "Error [CREATE_FAILED]: Cannot create event.")
}

func TestRename(t *testing.T) {
	b := newBackend(t, review, standup)

	res := run(t, b.url, "rename", "2", "Daily", "sync")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Renamed 2:")

	list := b.events(t)
	assert.Equal(t, "Review", list[0].Title)
	assert.Equal(t, "Daily sync", list[1].Title)
	assert.Equal(t, standup.DateStart, list[1].DateStart)
}

func TestRename_UnknownEvent(t *testing.T) {
	b := newBackend(t, review)

	res := run(t, b.url, "rename", "99", "x")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
}

func TestDelete(t *testing.T) {
	b := newBackend(t, review, standup)

	res := run(t, b.url, "delete", "1")
	require.NoError(t, res.err)
	assert.Equal(t, "Deleted 1\n", res.stdout)

	list := b.events(t)
	require.Len(t, list, 1)
	assert.Equal(t, "Standup", list[0].Title)
}

func TestDelete_Errors(t *testing.T) {
	b := newBackend(t)

	res := run(t, b.url, "delete", "7")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Contains(t, res.stderr, "Error [DELETE_FAILED]: Could not delete event.")

	res = run(t, b.url, "delete", "abc")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
}

func TestExport(t *testing.T) {
	b := newBackend(t, review, standup)
	out := filepath.Join(t.TempDir(), "tracked.ics")

	res := run(t, b.url, "export", "--out", out)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Exported 2 event(s)")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "BEGIN:VEVENT"))
	assert.Contains(t, string(data), "SUMMARY:Review")
}

func TestExport_Stdout(t *testing.T) {
	b := newBackend(t, review)

	res := run(t, b.url, "export")
	require.NoError(t, res.err)
	assert.True(t, strings.HasPrefix(res.stdout, "BEGIN:VCALENDAR"))
}

const dailyICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:focus@test\r\n" +
	"SUMMARY:Focus\r\n" +
	"DTSTART:20240108T080000Z\r\n" +
	"DTEND:20240108T100000Z\r\n" +
	"RRULE:FREQ=DAILY;COUNT=3\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestImport(t *testing.T) {
	b := newBackend(t)
	path := filepath.Join(t.TempDir(), "work.ics")
	require.NoError(t, os.WriteFile(path, []byte(dailyICS), 0o600))

	res := run(t, b.url, "import", path, "--from", "2024-01-01", "--to", "2024-01-31", "--dry-run")
	require.NoError(t, res.err)
	assert.Equal(t, 3, strings.Count(res.stdout, "would create: Focus"))
	assert.Empty(t, b.events(t))

	res = run(t, b.url, "import", path, "--from", "2024-01-01", "--to", "2024-01-31")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Imported 3 event(s), 0 already present")

	list := b.events(t)
	require.Len(t, list, 3)
	assert.Equal(t, "2024-01-09T08:00:00.000Z", list[1].DateStart)
	assert.Equal(t, "2024-01-09T10:00:00.000Z", list[1].DateEnd)

	res = run(t, b.url, "import", path, "--from", "2024-01-01", "--to", "2024-01-31")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Imported 0 event(s), 3 already present")
}

func TestImport_WindowLimitsOccurrences(t *testing.T) {
	b := newBackend(t)
	path := filepath.Join(t.TempDir(), "work.ics")
	require.NoError(t, os.WriteFile(path, []byte(dailyICS), 0o600))

	res := run(t, b.url, "import", path, "--from", "2024-01-09", "--to", "2024-01-09")
	require.NoError(t, res.err)
	assert.Len(t, b.events(t), 1)
}

func TestImport_BadInput(t *testing.T) {
	b := newBackend(t)

	res := run(t, b.url, "import", filepath.Join(t.TempDir(), "missing.ics"))
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))

	res = run(t, b.url, "import", "x.ics", "--from", "January")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
}

func TestImportWindow(t *testing.T) {
	now := time.Date(2024, 3, 15, 17, 30, 0, 0, time.UTC)

	from, to, err := importWindow("", "", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), to)

	_, _, err = importWindow("2024-03-10", "2024-03-01", now)
	assert.Error(t, err)
}

func TestWatch_InvalidSchedule(t *testing.T) {
	b := newBackend(t)

	res := run(t, b.url, "watch", "--schedule", "every tuesday")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Contains(t, res.stderr, "invalid reload schedule")
}

func TestWatch_RendersUntilCancelled(t *testing.T) {
	b := newBackend(t, review)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res := execute(ctx, t, b.url, "", "watch")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "== ")
	assert.Contains(t, res.stdout, "30 January")
}

func TestWatch_RemoteDownStaysLoading(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res := execute(ctx, t, url, "", "watch")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Loading...\n")
	assert.NotContains(t, res.stdout, "Failed to load events.")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "events.db")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res := execute(ctx, t, "", "", "serve", "--listen", "127.0.0.1:0", "--db", dbPath)
	require.NoError(t, res.err)

	_, err := os.Stat(dbPath)
	assert.NoError(t, err)
}
