package icalfeed

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const wellFormed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//ADE/version 6.0
BEGIN:VEVENT
UID:ADE60-1001
DTSTART:20260112T080000Z
DTEND:20260112T100000Z
SUMMARY:Réseaux - TD
DESCRIPTION:Groupe A1\nSalle 204
END:VEVENT
BEGIN:VEVENT
UID:ADE60-1002
DTSTART:20260112T101500Z
DTEND:20260112T121500Z
SUMMARY:Anglais
END:VEVENT
END:VCALENDAR
`

func TestParseEvents(t *testing.T) {
	res, err := ParseEvents(wellFormed)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 0, res.Skipped)
	require.Len(t, res.Events, 2)

	first := res.Events[0]
	require.Equal(t, "ADE60-1001", first.ID)
	require.Equal(t, time.Date(2026, time.January, 12, 8, 0, 0, 0, time.UTC), first.Start)
	require.Equal(t, time.Date(2026, time.January, 12, 10, 0, 0, 0, time.UTC), first.End)
	require.Equal(t, "Réseaux - TD", first.Summary)
	require.Contains(t, first.Description, "Groupe A1")

	second := res.Events[1]
	require.Equal(t, "ADE60-1002", second.ID)
	require.Empty(t, second.Description)
}

const partiallyMalformed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//ADE/version 6.0
BEGIN:VEVENT
UID:keep-1
DTSTART:20260112T080000Z
DTEND:20260112T100000Z
SUMMARY:Kept
END:VEVENT
BEGIN:VEVENT
UID:no-end
DTSTART:20260112T080000Z
SUMMARY:Missing end
END:VEVENT
BEGIN:VEVENT
UID:no-start
DTEND:20260112T100000Z
SUMMARY:Missing start
END:VEVENT
BEGIN:VEVENT
DTSTART:20260113T080000Z
DTEND:20260113T100000Z
SUMMARY:Missing uid
END:VEVENT
BEGIN:VEVENT
UID:keep-2
DTSTART:20260114T080000Z
DTEND:20260114T100000Z
SUMMARY:Also kept
END:VEVENT
END:VCALENDAR
`

func TestParseEventsSkipsMalformed(t *testing.T) {
	res, err := ParseEvents(partiallyMalformed)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 3, res.Skipped)
	require.Len(t, res.Events, 2)
	require.Equal(t, "keep-1", res.Events[0].ID)
	require.Equal(t, "keep-2", res.Events[1].ID)
}

func TestParseEventsDropsInvertedRange(t *testing.T) {
	raw := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//
BEGIN:VEVENT
UID:inverted
DTSTART:20260112T100000Z
DTEND:20260112T080000Z
SUMMARY:Ends before it starts
END:VEVENT
END:VCALENDAR
`
	res, err := ParseEvents(raw)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 1, res.Skipped)
	require.Empty(t, res.Events)
}

func TestRenderFeed(t *testing.T) {
	events := []Event{
		{
			ID:          "ADE60-1001",
			Start:       time.Date(2026, time.January, 12, 8, 0, 0, 0, time.UTC),
			End:         time.Date(2026, time.January, 12, 10, 0, 0, 0, time.UTC),
			Summary:     "Réseaux - TD",
			Description: "Salle 204",
		},
	}

	feed := RenderFeed(events)
	require.Contains(t, feed, "BEGIN:VCALENDAR")
	require.Contains(t, feed, "VERSION:2.0")
	require.Contains(t, feed, "PRODID:"+prodId)
	require.Contains(t, feed, "UID:ADE60-1001")
	require.Contains(t, feed, "DTSTART:20260112T080000Z")
	require.Contains(t, feed, "DTEND:20260112T100000Z")
	require.Contains(t, feed, "END:VCALENDAR")
}

func TestRenderParseRoundTrip(t *testing.T) {
	events := []Event{
		{
			ID:      "rt-1",
			Start:   time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC),
			End:     time.Date(2026, time.March, 2, 11, 0, 0, 0, time.UTC),
			Summary: "Maths",
		},
	}
	res, err := ParseEvents(RenderFeed(events))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 0, res.Skipped)
	require.Len(t, res.Events, 1)
	require.Equal(t, events[0].ID, res.Events[0].ID)
	require.True(t, events[0].Start.Equal(res.Events[0].Start))
	require.True(t, events[0].End.Equal(res.Events[0].End))

	// the feed must not fold two serializations of the same instant into
	// different strings
	require.True(t, strings.Contains(RenderFeed(events), "20260302T090000Z"))
}
