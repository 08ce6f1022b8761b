package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout matches JavaScript's Date.toISOString output, which is
// what the remote collection stores for dateStart/dateEnd.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Event is one completed time-tracking interval as stored by the remote
// collection. DateStart and DateEnd are ISO-8601 strings and are passed
// through to the remote store verbatim.
type Event struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	DateStart string `json:"dateStart"`
	DateEnd   string `json:"dateEnd"`
}

// Draft is an event that has not been assigned an id yet. It is the body
// of a create request.
type Draft struct {
	Title     string `json:"title"`
	DateStart string `json:"dateStart"`
	DateEnd   string `json:"dateEnd"`
}

// WithID attaches a remote-assigned id to the draft.
func (d Draft) WithID(id int64) Event {
	return Event{
		ID:        id,
		Title:     d.Title,
		DateStart: d.DateStart,
		DateEnd:   d.DateEnd,
	}
}

// Draft strips the id from the event.
func (e Event) Draft() Draft {
	return Draft{
		Title:     e.Title,
		DateStart: e.DateStart,
		DateEnd:   e.DateEnd,
	}
}

// Start parses DateStart.
func (e Event) Start() (time.Time, error) {
	return ParseTimestamp(e.DateStart)
}

// End parses DateEnd.
func (e Event) End() (time.Time, error) {
	return ParseTimestamp(e.DateEnd)
}

// Duration returns End - Start. Either timestamp failing to parse yields
// an error; a negative duration is returned as-is.
func (e Event) Duration() (time.Duration, error) {
	start, err := e.Start()
	if err != nil {
		return 0, err
	}
	end, err := e.End()
	if err != nil {
		return 0, err
	}
	return end.Sub(start), nil
}

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// timestampLayouts are the ISO-8601 forms accepted by ParseTimestamp, most
// common first. Fractional seconds are accepted after any seconds field.
// Forms without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 timestamps and the other ISO-8601 forms
// the remote collection may hold: basic offsets (+0000), minute precision,
// no zone designator, and a bare date (midnight UTC).
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
