package timetable

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"iutcal-backend/lib/icalfeed"
	"iutcal-backend/services/timetable/db"
)

// PersistenceError wraps a store read/write failure so callers can tell it
// apart from scrape failures.
type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("event store: %s: %s", e.Op, e.Err)
}

func (e PersistenceError) Unwrap() error {
	return e.Err
}

// Store owns the events table. Timestamps are stored as RFC3339 UTC strings,
// so equality of the stored form implies equality of the instant.
type Store struct {
	db  *sql.DB
	qry *db.Queries
}

func NewStore(database *sql.DB) Store {
	return Store{
		db:  database,
		qry: db.New(database),
	}
}

// ReplaceGroupEvents discards all previously stored events for the group and
// inserts the new set, in one transaction. A duplicate id inside `events`
// resolves to the later element, since inserts upsert on (group, id).
func (s Store) ReplaceGroupEvents(ctx context.Context, group string, events []icalfeed.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return PersistenceError{Op: "begin replace", Err: err}
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	err = txqry.DeleteGroupEvents(ctx, group)
	if err != nil {
		return PersistenceError{Op: "delete group events", Err: err}
	}

	for _, ev := range events {
		err = txqry.CreateEvent(ctx, db.CreateEventParams{
			Grp:         group,
			ID:          ev.ID,
			StartAt:     ev.Start.UTC().Format(time.RFC3339),
			EndAt:       ev.End.UTC().Format(time.RFC3339),
			Summary:     ev.Summary,
			Description: ev.Description,
		})
		if err != nil {
			return PersistenceError{Op: "insert event", Err: err}
		}
	}

	err = tx.Commit()
	if err != nil {
		return PersistenceError{Op: "commit replace", Err: err}
	}
	return nil
}

// ListEvents returns the group's events ordered by start time then id, so
// rendered feeds are stable across calls.
func (s Store) ListEvents(ctx context.Context, group string) ([]icalfeed.Event, error) {
	rows, err := s.qry.ListGroupEvents(ctx, group)
	if err != nil {
		return nil, PersistenceError{Op: "list group events", Err: err}
	}

	out := make([]icalfeed.Event, 0, len(rows))
	for _, r := range rows {
		start, err := time.Parse(time.RFC3339, r.StartAt)
		if err != nil {
			return nil, PersistenceError{Op: "parse stored start", Err: err}
		}
		end, err := time.Parse(time.RFC3339, r.EndAt)
		if err != nil {
			return nil, PersistenceError{Op: "parse stored end", Err: err}
		}
		out = append(out, icalfeed.Event{
			ID:          r.ID,
			Start:       start,
			End:         end,
			Summary:     r.Summary,
			Description: r.Description,
		})
	}
	return out, nil
}

// GroupHasAnyEvents distinguishes "never seen this group" from "seen but
// currently empty".
func (s Store) GroupHasAnyEvents(ctx context.Context, group string) (bool, error) {
	count, err := s.qry.CountGroupEvents(ctx, group)
	if err != nil {
		return false, PersistenceError{Op: "count group events", Err: err}
	}
	return count > 0, nil
}
