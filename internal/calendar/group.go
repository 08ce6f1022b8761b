package calendar

import (
	"fmt"
	"sort"
	"time"

	"timetrack/internal/model"
)

// DayGroup is the derived bucket of events touching one UTC calendar day.
// It is recomputed on every read and never persisted.
type DayGroup struct {
	// Key is the UTC date as YYYY-MM-DD.
	Key string
	// Date is midnight UTC of Key.
	Date time.Time
	// Events keeps the order in which events were bucketed.
	Events []model.Event
}

// Report is the full result of a grouping pass.
type Report struct {
	Groups []DayGroup
	// Skipped lists ids of events whose timestamps could not be parsed.
	Skipped []int64
}

// DayKey formats the UTC calendar date of t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%04d-%02d-%02d", u.Year(), int(u.Month()), u.Day())
}

// GroupByDay buckets events by the UTC days they touch, most recent day
// first. See GroupByDayReport.
func GroupByDay(list []model.Event) []DayGroup {
	return GroupByDayReport(list).Groups
}

// GroupByDayReport buckets each event under its start day and, when it
// differs, its end day. Only populated days appear. Days are sorted
// descending; events inside a day keep input order.
func GroupByDayReport(list []model.Event) Report {
	var rep Report
	buckets := make(map[string]*DayGroup)

	add := func(day time.Time, e model.Event) {
		key := DayKey(day)
		g, ok := buckets[key]
		if !ok {
			u := day.UTC()
			g = &DayGroup{
				Key:  key,
				Date: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC),
			}
			buckets[key] = g
		}
		g.Events = append(g.Events, e)
	}

	for _, e := range list {
		start, err := e.Start()
		if err != nil {
			rep.Skipped = append(rep.Skipped, e.ID)
			continue
		}
		end, err := e.End()
		if err != nil {
			rep.Skipped = append(rep.Skipped, e.ID)
			continue
		}

		add(start, e)
		if DayKey(end) != DayKey(start) {
			add(end, e)
		}
	}

	rep.Groups = make([]DayGroup, 0, len(buckets))
	for _, g := range buckets {
		rep.Groups = append(rep.Groups, *g)
	}
	sort.Slice(rep.Groups, func(i, j int) bool {
		return rep.Groups[i].Date.After(rep.Groups[j].Date)
	})
	return rep
}
