package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "timetrack/internal/log"
	"timetrack/internal/model"
)

const productID = "-//timetrack//timetrack//EN"

// UID is the stable iCalendar UID of a tracked event.
func UID(id int64) string {
	return fmt.Sprintf("event-%d@timetrack", id)
}

// Export writes list as a VCALENDAR with one VEVENT per event. Events whose
// timestamps do not parse are left out and their ids returned.
func Export(w io.Writer, list []model.Event, now time.Time) ([]int64, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	var skipped []int64
	for _, e := range list {
		start, err := e.Start()
		if err != nil {
			appLog.Error("ics export: skipping event", err, "event_id", e.ID)
			skipped = append(skipped, e.ID)
			continue
		}
		end, err := e.End()
		if err != nil {
			appLog.Error("ics export: skipping event", err, "event_id", e.ID)
			skipped = append(skipped, e.ID)
			continue
		}

		ve := cal.AddEvent(UID(e.ID))
		ve.SetDtStampTime(now.UTC())
		ve.SetStartAt(start.UTC())
		ve.SetEndAt(end.UTC())
		ve.SetSummary(e.Title)
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return skipped, fmt.Errorf("write ics: %w", err)
	}
	appLog.Debug("ics export completed", "events", len(list)-len(skipped), "skipped", len(skipped))
	return skipped, nil
}
