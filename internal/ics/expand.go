package ics

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "timetrack/internal/log"
	"timetrack/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// RangeStart / RangeEnd define the inclusive window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single UID's expansion. Zero means 5000.
	MaxOccurrencesPerEvent int

	// SkipAllDay drops all-day occurrences, which rarely describe tracked
	// time.
	SkipAllDay bool
}

// Occurrence is one concrete instance of a parsed event.
type Occurrence struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
	AllDay  bool
}

// Draft converts the occurrence into an event draft. An empty summary gets
// placeholder.
func (o Occurrence) Draft(placeholder string) model.Draft {
	title := strings.TrimSpace(o.Summary)
	if title == "" {
		title = placeholder
	}
	return model.Draft{
		Title:     title,
		DateStart: model.FormatTimestamp(o.Start),
		DateEnd:   model.FormatTimestamp(o.End),
	}
}

// ExpandResult holds occurrences sorted by start time and the UIDs whose
// expansion hit the cap.
type ExpandResult struct {
	Occurrences     []Occurrence
	TruncatedEvents []string
}

// Expand turns parsed events into the occurrences inside the configured
// window. It handles single events, RRULE recurrence, EXDATE removal and
// RECURRENCE-ID overrides.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: range end is before range start")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	uids := make([]string, 0)

	for _, ev := range events {
		if ev.IsOverride() {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	out := make([]Occurrence, 0)
	for _, uid := range uids {
		ov := overridesByUID[uid]
		truncated := false

		for _, ev := range baseByUID[uid] {
			var occ []Occurrence
			var hitCap bool
			if ev.RawRRule == "" {
				occ = expandSingle(ev, ov, cfg)
			} else {
				occ, hitCap = expandRecurring(ev, ov, cfg)
			}
			truncated = truncated || hitCap
			out = append(out, occ...)
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	if cfg.SkipAllDay {
		kept := out[:0]
		for _, o := range out {
			if !o.AllDay {
				kept = append(kept, o)
			}
		}
		out = kept
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})

	result.Occurrences = out
	return result, nil
}

func expandSingle(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []Occurrence {
	if !overlaps(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	if o, ok := findOverride(overrides, ev.Start); ok {
		ev = o
	}
	return []Occurrence{makeOccurrence(ev, ev.Start, ev.End)}
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]Occurrence, bool) {
	out := make([]Occurrence, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	starts := set.Between(cfg.RangeStart.In(loc), cfg.RangeEnd.In(loc), true)

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)
	for _, start := range starts {
		end := start.Add(dur)
		if ev.AllDay {
			day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
			start, end = day, day.AddDate(0, 0, 1)
		}

		if o, ok := findOverride(overrides, start); ok {
			out = append(out, makeOccurrence(o, o.Start, o.End))
			continue
		}
		out = append(out, makeOccurrence(ev, start, end))
	}

	return out, hitCap
}

// findOverride returns the override whose RECURRENCE-ID equals start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func makeOccurrence(ev ParsedEvent, start, end time.Time) Occurrence {
	return Occurrence{
		UID:     ev.UID,
		Summary: ev.Summary,
		Start:   start.UTC(),
		End:     end.UTC(),
		AllDay:  ev.AllDay,
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
