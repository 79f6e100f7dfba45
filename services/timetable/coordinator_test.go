package timetable

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"iutcal-backend/lib/telemetry"
	"iutcal-backend/services/timetable/db"
)

func setupCoordinator(t testing.TB) (*Coordinator, func()) {
	cleanup := telemetry.SetupForTesting("test:services/timetable")

	sqlite, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	_, err = sqlite.Exec(db.Schema)
	if err != nil {
		t.Fatal(err)
	}
	return NewCoordinator(sqlite, time.Minute), cleanup
}

func TestShouldRefreshUnknownGroup(t *testing.T) {
	coord, cleanup := setupCoordinator(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	due, err := coord.ShouldRefresh(ctx, "INFO1-A1", time.Now(), time.Hour*12)
	if err != nil {
		t.Fatal(err)
	}
	require.True(t, due)
}

func TestShouldRefreshWindowBoundary(t *testing.T) {
	coord, cleanup := setupCoordinator(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	window := time.Hour * 12
	refreshedAt := time.Date(2026, time.January, 12, 8, 0, 0, 0, time.UTC)
	err := coord.RecordSuccessfulRefresh(ctx, "INFO1-A1", refreshedAt, 10, 0)
	if err != nil {
		t.Fatal(err)
	}

	justInside := refreshedAt.Add(window - time.Millisecond)
	due, err := coord.ShouldRefresh(ctx, "INFO1-A1", justInside, window)
	if err != nil {
		t.Fatal(err)
	}
	require.False(t, due)

	justOutside := refreshedAt.Add(window + time.Millisecond)
	due, err = coord.ShouldRefresh(ctx, "INFO1-A1", justOutside, window)
	if err != nil {
		t.Fatal(err)
	}
	require.True(t, due)
}

func TestRecordSuccessfulRefreshMonotonicTimestamp(t *testing.T) {
	coord, cleanup := setupCoordinator(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	later := time.Date(2026, time.January, 12, 10, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	err := coord.RecordSuccessfulRefresh(ctx, "INFO1-A1", later, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	// a racing refresh that started earlier finishes second, the
	// timestamp must not move backwards
	err = coord.RecordSuccessfulRefresh(ctx, "INFO1-A1", earlier, 12, 1)
	if err != nil {
		t.Fatal(err)
	}

	state, known, err := coord.GetRefreshState(ctx, "INFO1-A1")
	if err != nil {
		t.Fatal(err)
	}
	require.True(t, known)
	require.Equal(t, later.UnixMilli(), state.LastRefreshAt)
	require.Equal(t, int64(12), state.EventCount)
	require.Equal(t, int64(1), state.SkippedEvents)
}

func TestKnownGroupsRegistry(t *testing.T) {
	coord, cleanup := setupCoordinator(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	groups, err := coord.KnownGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Empty(t, groups)

	now := time.Now()
	for _, g := range []string{"INFO1-B2", "INFO1-A1", "INFO1-B2"} {
		err = coord.RecordSuccessfulRefresh(ctx, g, now, 1, 0)
		if err != nil {
			t.Fatal(err)
		}
		now = now.Add(time.Minute)
	}

	groups, err = coord.KnownGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, []string{"INFO1-A1", "INFO1-B2"}, groups)
}

func TestFeedCacheInvalidation(t *testing.T) {
	coord, cleanup := setupCoordinator(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	_, hit := coord.CachedFeed("INFO1-A1")
	require.False(t, hit)

	coord.StoreFeed("INFO1-A1", "BEGIN:VCALENDAR...")
	feed, hit := coord.CachedFeed("INFO1-A1")
	require.True(t, hit)
	require.Contains(t, feed, "VCALENDAR")

	err := coord.RecordSuccessfulRefresh(ctx, "INFO1-A1", time.Now(), 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	_, hit = coord.CachedFeed("INFO1-A1")
	require.False(t, hit)
}
