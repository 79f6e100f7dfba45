package db

import (
	"context"
	"database/sql"
	"errors"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Event struct {
	Grp         string
	ID          string
	StartAt     string
	EndAt       string
	Summary     string
	Description string
}

const deleteGroupEvents = `
DELETE FROM events WHERE grp = ?
`

func (q *Queries) DeleteGroupEvents(ctx context.Context, grp string) error {
	_, err := q.db.ExecContext(ctx, deleteGroupEvents, grp)
	return err
}

const createEvent = `
INSERT INTO events (grp, id, start_at, end_at, summary, description)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (grp, id) DO UPDATE SET
    start_at = excluded.start_at,
    end_at = excluded.end_at,
    summary = excluded.summary,
    description = excluded.description
`

type CreateEventParams struct {
	Grp         string
	ID          string
	StartAt     string
	EndAt       string
	Summary     string
	Description string
}

func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) error {
	_, err := q.db.ExecContext(ctx, createEvent,
		arg.Grp,
		arg.ID,
		arg.StartAt,
		arg.EndAt,
		arg.Summary,
		arg.Description,
	)
	return err
}

const listGroupEvents = `
SELECT grp, id, start_at, end_at, summary, description
FROM events
WHERE grp = ?
ORDER BY start_at, id
`

func (q *Queries) ListGroupEvents(ctx context.Context, grp string) ([]Event, error) {
	rows, err := q.db.QueryContext(ctx, listGroupEvents, grp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		err = rows.Scan(&e.Grp, &e.ID, &e.StartAt, &e.EndAt, &e.Summary, &e.Description)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const countGroupEvents = `
SELECT COUNT(*) FROM events WHERE grp = ?
`

func (q *Queries) CountGroupEvents(ctx context.Context, grp string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countGroupEvents, grp).Scan(&count)
	return count, err
}

const getMeta = `
SELECT value FROM meta WHERE key = ?
`

// GetMeta returns an empty string for a missing key.
func (q *Queries) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := q.db.QueryRowContext(ctx, getMeta, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

const setMeta = `
INSERT INTO meta (key, value) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value
`

func (q *Queries) SetMeta(ctx context.Context, key, value string) error {
	_, err := q.db.ExecContext(ctx, setMeta, key, value)
	return err
}
