package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"

	"iutcal-backend/lib/telemetry"
	"iutcal-backend/services/timetable"
)

var tracer = telemetry.Tracer("iutcal.services.timetable.server")

type Options struct {
	// AllowedGroups restricts the public surface to a fixed set of group
	// identifiers. Empty means any group may be requested, which lets a
	// single deployment serve a whole department.
	AllowedGroups []string

	// AccessToken, when set, marks bearers of it as trusted callers. The
	// diagnostics endpoint also requires it.
	AccessToken string

	// CacheMaxAge is advertised to downstream calendar clients through
	// Cache-Control.
	CacheMaxAge time.Duration
}

func (o Options) withDefaults() Options {
	if o.CacheMaxAge == 0 {
		o.CacheMaxAge = time.Minute * 5
	}
	return o
}

// Server exposes the timetable service over plain HTTP. Calendar apps only
// speak GET + text/calendar, so there is no rpc layer here.
type Server struct {
	svc  *timetable.Service
	opts Options
}

func NewServer(svc *timetable.Service, opts Options) *Server {
	return &Server{svc: svc, opts: opts.withDefaults()}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /calendar/{file}", s.handleCalendar)
	mux.HandleFunc("GET /diag/{group}", s.handleDiagnostics)
}

func (s *Server) trusted(r *http.Request) bool {
	if s.opts.AccessToken == "" {
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && token == s.opts.AccessToken
}

func (s *Server) allowed(group string) bool {
	return len(s.opts.AllowedGroups) == 0 ||
		slices.Contains(s.opts.AllowedGroups, group)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handleCalendar")
	defer span.End()

	group, ok := strings.CutSuffix(r.PathValue("file"), ".ics")
	if !ok || group == "" {
		http.NotFound(w, r)
		return
	}
	if !s.allowed(group) {
		slog.WarnContext(ctx, "rejected group outside allowlist", "group", group)
		http.NotFound(w, r)
		return
	}

	feed, err := s.svc.GetFeed(ctx, group, s.trusted(r))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.ErrorContext(ctx, "failed to serve calendar", "group", group, "err", err)
		http.Error(w, "upstream timetable unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set(
		"Cache-Control",
		fmt.Sprintf("public, max-age=%d", int(s.opts.CacheMaxAge.Seconds())),
	)
	fmt.Fprint(w, feed)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handleDiagnostics")
	defer span.End()

	if !s.trusted(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	group := r.PathValue("group")
	if !s.allowed(group) {
		http.NotFound(w, r)
		return
	}

	diag, err := s.svc.GetDiagnostics(ctx, group, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	err = json.NewEncoder(w).Encode(diag)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode diagnostics", "err", err)
	}
}
