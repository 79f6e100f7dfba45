package timetable

import (
	"context"
	"database/sql"
	"encoding/json"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"iutcal-backend/services/timetable/db"
)

const knownGroupsKey = "known_groups"
const refreshKeyPrefix = "refresh:"

// RefreshState is the per-group statistics blob kept in the meta table.
type RefreshState struct {
	// epoch millis of the last successful refresh, monotonically
	// non-decreasing
	LastRefreshAt int64 `json:"last_refresh_at"`
	EventCount    int64 `json:"event_count"`
	SkippedEvents int64 `json:"skipped_events"`
}

// Coordinator owns the refresh metadata, the known groups registry and the
// rendered feed cache. It decides when stored data is fresh enough to skip
// browser automation.
type Coordinator struct {
	db        *sql.DB
	qry       *db.Queries
	feedCache *expirable.LRU[string, string]
}

func NewCoordinator(database *sql.DB, feedTTL time.Duration) *Coordinator {
	return &Coordinator{
		db:        database,
		qry:       db.New(database),
		feedCache: expirable.NewLRU[string, string](1024, nil, feedTTL),
	}
}

// GetRefreshState returns the group's refresh metadata and whether the group
// has ever been successfully refreshed.
func (c *Coordinator) GetRefreshState(ctx context.Context, group string) (RefreshState, bool, error) {
	return c.refreshStateTx(ctx, c.qry, group)
}

func (c *Coordinator) refreshStateTx(ctx context.Context, qry *db.Queries, group string) (RefreshState, bool, error) {
	raw, err := qry.GetMeta(ctx, refreshKeyPrefix+group)
	if err != nil {
		return RefreshState{}, false, PersistenceError{Op: "read refresh state", Err: err}
	}
	if raw == "" {
		return RefreshState{}, false, nil
	}

	var state RefreshState
	err = json.Unmarshal([]byte(raw), &state)
	if err != nil {
		return RefreshState{}, false, PersistenceError{Op: "decode refresh state", Err: err}
	}
	return state, true, nil
}

// ShouldRefresh reports whether the group's stored data is older than the
// validity window. A group that has never been refreshed always needs one.
func (c *Coordinator) ShouldRefresh(ctx context.Context, group string, now time.Time, window time.Duration) (bool, error) {
	state, known, err := c.GetRefreshState(ctx, group)
	if err != nil {
		return false, err
	}
	if !known {
		return true, nil
	}
	return now.UnixMilli()-state.LastRefreshAt > window.Milliseconds(), nil
}

// RecordSuccessfulRefresh advances the group's refresh timestamp, stores the
// derived statistics, registers the group and drops any cached feed. A
// failed refresh must never reach this method, so prior state survives
// failures untouched.
func (c *Coordinator) RecordSuccessfulRefresh(ctx context.Context, group string, now time.Time, eventCount, skipped int64) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return PersistenceError{Op: "begin refresh record", Err: err}
	}
	defer tx.Rollback()
	txqry := c.qry.WithTx(tx)

	prev, known, err := c.refreshStateTx(ctx, txqry, group)
	if err != nil {
		return err
	}
	state := RefreshState{
		LastRefreshAt: max(now.UnixMilli(), prev.LastRefreshAt),
		EventCount:    eventCount,
		SkippedEvents: skipped,
	}
	encoded, err := json.Marshal(state)
	if err != nil {
		return PersistenceError{Op: "encode refresh state", Err: err}
	}
	err = txqry.SetMeta(ctx, refreshKeyPrefix+group, string(encoded))
	if err != nil {
		return PersistenceError{Op: "write refresh state", Err: err}
	}

	if !known {
		groups, err := c.knownGroupsTx(ctx, txqry)
		if err != nil {
			return err
		}
		if !slices.Contains(groups, group) {
			groups = append(groups, group)
			slices.Sort(groups)
			encoded, err := json.Marshal(groups)
			if err != nil {
				return PersistenceError{Op: "encode known groups", Err: err}
			}
			err = txqry.SetMeta(ctx, knownGroupsKey, string(encoded))
			if err != nil {
				return PersistenceError{Op: "write known groups", Err: err}
			}
		}
	}

	err = tx.Commit()
	if err != nil {
		return PersistenceError{Op: "commit refresh record", Err: err}
	}

	c.InvalidateFeed(group)
	return nil
}

// KnownGroups lists every group that has ever been successfully refreshed.
func (c *Coordinator) KnownGroups(ctx context.Context) ([]string, error) {
	return c.knownGroupsTx(ctx, c.qry)
}

func (c *Coordinator) knownGroupsTx(ctx context.Context, qry *db.Queries) ([]string, error) {
	raw, err := qry.GetMeta(ctx, knownGroupsKey)
	if err != nil {
		return nil, PersistenceError{Op: "read known groups", Err: err}
	}
	if raw == "" {
		return nil, nil
	}
	var groups []string
	err = json.Unmarshal([]byte(raw), &groups)
	if err != nil {
		return nil, PersistenceError{Op: "decode known groups", Err: err}
	}
	return groups, nil
}

// CachedFeed returns the rendered feed for the group, if a fresh enough one
// is in the output cache. The cache is a disposable projection: dropping it
// only costs a re-render from the store.
func (c *Coordinator) CachedFeed(group string) (string, bool) {
	return c.feedCache.Get(group)
}

func (c *Coordinator) StoreFeed(group, feed string) {
	c.feedCache.Add(group, feed)
}

func (c *Coordinator) InvalidateFeed(group string) {
	c.feedCache.Remove(group)
}
