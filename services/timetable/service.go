package timetable

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"iutcal-backend/lib/icalfeed"
	"iutcal-backend/lib/scrapers/planning"
	"iutcal-backend/lib/timezone"
)

// Automator is the scrape contract the service depends on. The production
// implementation is *planning.Client; tests substitute a fake.
type Automator interface {
	FetchRawCalendar(ctx context.Context, creds planning.Credentials, group, rangeStart, rangeEnd string) (string, error)
}

const portalDateFormat = "02/01/2006"

type ServiceOptions struct {
	Credentials planning.Credentials

	// PublicWindow is the validity window applied to anonymous callers,
	// TrustedWindow the shorter one applied to callers presenting the
	// access token. The gap is a cost-control knob: browser automation
	// is expensive, so public traffic tolerates more staleness.
	PublicWindow  time.Duration
	TrustedWindow time.Duration

	// FeedTTL bounds the rendered feed cache.
	FeedTTL time.Duration
}

func (o ServiceOptions) withDefaults() ServiceOptions {
	if o.PublicWindow == 0 {
		o.PublicWindow = time.Hour * 12
	}
	if o.TrustedWindow == 0 {
		o.TrustedWindow = time.Hour * 2
	}
	if o.FeedTTL == 0 {
		o.FeedTTL = time.Minute * 5
	}
	return o
}

// Service ties the automator, normalizer, store and coordinator together
// into the request-driven refresh cycle.
type Service struct {
	store     Store
	coord     *Coordinator
	automator Automator
	opts      ServiceOptions

	// collapses concurrent refreshes of the same group into one
	// automation run
	refreshes singleflight.Group
}

func NewService(database *sql.DB, automator Automator, opts ServiceOptions) *Service {
	opts = opts.withDefaults()
	return &Service{
		store:     NewStore(database),
		coord:     NewCoordinator(database, opts.FeedTTL),
		automator: automator,
		opts:      opts,
	}
}

func (s *Service) Window(trusted bool) time.Duration {
	if trusted {
		return s.opts.TrustedWindow
	}
	return s.opts.PublicWindow
}

// GetFeed returns the rendered calendar feed for a group, refreshing it
// through browser automation first when the stored data is older than the
// caller's validity window. A failing refresh falls back to whatever the
// store already holds; the error only surfaces when there is no prior data
// at all.
func (s *Service) GetFeed(ctx context.Context, group string, trusted bool) (string, error) {
	ctx, span := tracer.Start(ctx, "service:GetFeed")
	defer span.End()

	now := timezone.Now()
	due, err := s.coord.ShouldRefresh(ctx, group, now, s.Window(trusted))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if !due {
		if feed, hit := s.coord.CachedFeed(group); hit {
			return feed, nil
		}
		return s.materializeFeed(ctx, group)
	}

	refreshErr := s.Refresh(ctx, group)
	if refreshErr != nil {
		// stale-if-error: the failure is observable here and in the
		// diagnostics, but callers with prior data still get a feed
		slog.WarnContext(
			ctx, "refresh failed, falling back to stored events",
			"group", group,
			"err", refreshErr,
		)
		span.RecordError(refreshErr)

		hasAny, err := s.store.GroupHasAnyEvents(ctx, group)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}
		if !hasAny {
			span.SetStatus(codes.Error, refreshErr.Error())
			return "", refreshErr
		}
	}

	return s.materializeFeed(ctx, group)
}

func (s *Service) materializeFeed(ctx context.Context, group string) (string, error) {
	events, err := s.store.ListEvents(ctx, group)
	if err != nil {
		return "", err
	}
	feed := icalfeed.RenderFeed(events)
	s.coord.StoreFeed(group, feed)
	return feed, nil
}

// Refresh runs one end-to-end automation + parse + store cycle for a group.
// Overlapping calls for the same group share a single run.
func (s *Service) Refresh(ctx context.Context, group string) error {
	_, err, _ := s.refreshes.Do(group, func() (any, error) {
		return nil, s.refresh(ctx, group)
	})
	return err
}

func (s *Service) refresh(ctx context.Context, group string) error {
	ctx, span := tracer.Start(ctx, "service:refresh")
	defer span.End()

	now := timezone.Now()
	_, known, err := s.coord.GetRefreshState(ctx, group)
	if err != nil {
		return err
	}

	// bootstrap an unknown group with a full academic year of history,
	// afterwards a short rolling window is enough since the store
	// already holds the rest
	var rangeStart, rangeEnd time.Time
	if known {
		rangeStart, rangeEnd = timezone.RollingWindow(now)
	} else {
		rangeStart, rangeEnd = timezone.AcademicYear(now)
	}
	slog.InfoContext(
		ctx, "refreshing group",
		"group", group,
		"known", known,
		"range_start", rangeStart.Format(portalDateFormat),
		"range_end", rangeEnd.Format(portalDateFormat),
	)

	raw, err := s.automator.FetchRawCalendar(
		ctx,
		s.opts.Credentials,
		group,
		rangeStart.Format(portalDateFormat),
		rangeEnd.Format(portalDateFormat),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "automation failed")
		return fmt.Errorf("fetch raw calendar: %w", err)
	}

	parsed, err := icalfeed.ParseEvents(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return fmt.Errorf("parse raw calendar: %w", err)
	}
	if parsed.Skipped > 0 {
		slog.WarnContext(
			ctx, "skipped malformed events during refresh",
			"group", group,
			"skipped", parsed.Skipped,
		)
	}

	err = s.store.ReplaceGroupEvents(ctx, group, parsed.Events)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return err
	}

	return s.coord.RecordSuccessfulRefresh(
		ctx, group, timezone.Now(),
		int64(len(parsed.Events)), int64(parsed.Skipped),
	)
}

// Diagnostics is the operator-facing view of one group's cache state.
type Diagnostics struct {
	Group         string   `json:"group"`
	Known         bool     `json:"known"`
	LastRefreshAt int64    `json:"last_refresh_at"`
	EventCount    int64    `json:"event_count"`
	SkippedEvents int64    `json:"skipped_events"`
	Stale         bool     `json:"stale"`
	KnownGroups   []string `json:"known_groups"`
}

func (s *Service) GetDiagnostics(ctx context.Context, group string, trusted bool) (Diagnostics, error) {
	ctx, span := tracer.Start(ctx, "service:GetDiagnostics")
	defer span.End()

	state, known, err := s.coord.GetRefreshState(ctx, group)
	if err != nil {
		return Diagnostics{}, err
	}
	groups, err := s.coord.KnownGroups(ctx)
	if err != nil {
		return Diagnostics{}, err
	}
	stale, err := s.coord.ShouldRefresh(ctx, group, timezone.Now(), s.Window(trusted))
	if err != nil {
		return Diagnostics{}, err
	}

	return Diagnostics{
		Group:         group,
		Known:         known,
		LastRefreshAt: state.LastRefreshAt,
		EventCount:    state.EventCount,
		SkippedEvents: state.SkippedEvents,
		Stale:         stale,
		KnownGroups:   groups,
	}, nil
}

// ListEvents exposes the stored events for a group, mainly for the operator
// CLI.
func (s *Service) ListEvents(ctx context.Context, group string) ([]icalfeed.Event, error) {
	return s.store.ListEvents(ctx, group)
}

// KnownGroups exposes the registry for discovery endpoints and the CLI.
func (s *Service) KnownGroups(ctx context.Context) ([]string, error) {
	return s.coord.KnownGroups(ctx)
}
