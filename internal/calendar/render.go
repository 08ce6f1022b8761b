package calendar

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"timetrack/internal/model"
	"timetrack/internal/recorder"
)

// Render writes one block per day: a "<day> <Month>" label followed by an
// indented line per event. Times are shown in UTC, matching the day keys.
func Render(w io.Writer, groups []DayGroup) error {
	bw := bufio.NewWriter(w)
	for i, g := range groups {
		if i > 0 {
			bw.WriteString("\n")
		}
		bw.WriteString(DayLabel(g) + "\n")
		for _, e := range g.Events {
			bw.WriteString("  " + EventLine(e) + "\n")
		}
	}
	return bw.Flush()
}

// DayLabel is the heading of a day group, e.g. "31 January".
func DayLabel(g DayGroup) string {
	return fmt.Sprintf("%d %s", g.Date.Day(), g.Date.Month())
}

// EventLine formats a single event as "HH:MM - HH:MM  title (hh:mm:ss)".
// Unparseable timestamps are shown as "--:--".
func EventLine(e model.Event) string {
	start, errStart := e.Start()
	end, errEnd := e.End()

	startLabel, endLabel := "--:--", "--:--"
	if errStart == nil {
		startLabel = start.UTC().Format("15:04")
	}
	if errEnd == nil {
		endLabel = end.UTC().Format("15:04")
	}

	var seconds int64
	if errStart == nil && errEnd == nil {
		seconds = int64(end.Sub(start) / time.Second)
	}
	return fmt.Sprintf("%s - %s  %s (%s)", startLabel, endLabel, e.Title, recorder.FormatElapsed(seconds))
}
