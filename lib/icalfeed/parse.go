package icalfeed

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// Event is one scheduled session taken from the upstream export. Only the
// fields the feed re-serves are kept, everything else in the VEVENT is
// ignored. Start/End are always UTC.
type Event struct {
	ID          string
	Start       time.Time
	End         time.Time
	Summary     string
	Description string
}

// ParseResult carries the retained events along with the number of event
// blocks that were dropped because they were malformed or incomplete.
type ParseResult struct {
	Events  []Event
	Skipped int
}

// ParseEvents parses a raw ICS payload into discrete event records. An event
// is retained only if it has a UID and both a start and an end timestamp;
// anything else is skipped and counted, never fatal. Only a calendar that
// cannot be parsed at all produces an error.
func ParseEvents(raw string) (ParseResult, error) {
	cal, err := ical.ParseCalendar(strings.NewReader(raw))
	if err != nil {
		return ParseResult{}, fmt.Errorf("parse calendar: %w", err)
	}

	var out ParseResult
	for _, ve := range cal.Events() {
		ev, ok := parseVEvent(ve)
		if !ok {
			out.Skipped++
			continue
		}
		out.Events = append(out.Events, ev)
	}
	return out, nil
}

func parseVEvent(ve *ical.VEvent) (Event, bool) {
	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return Event{}, false
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return Event{}, false
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return Event{}, false
	}
	start = start.UTC()
	end = end.UTC()
	if end.Before(start) {
		return Event{}, false
	}

	ev := Event{
		ID:    uid.Value,
		Start: start,
		End:   end,
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev.Description = p.Value
	}
	return ev, true
}
