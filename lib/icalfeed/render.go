package icalfeed

import (
	ical "github.com/arran4/golang-ical"
)

const prodId = "-//iutcal//iutcal-backend//FR"

// RenderFeed materializes the calendar feed text for a set of events. The
// input order is preserved, so callers should hand in a stable ordering.
func RenderFeed(events []Event) string {
	cal := ical.NewCalendar()
	cal.SetProductId(prodId)
	cal.SetMethod(ical.MethodPublish)

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		ve.SetStartAt(ev.Start.UTC())
		ve.SetEndAt(ev.End.UTC())
		ve.SetSummary(ev.Summary)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
	}

	return cal.Serialize()
}
