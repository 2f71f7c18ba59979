// Package web serves the published calendar and the state of the last
// update over HTTP.
package web

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"dutycal/internal/config"
	appLog "dutycal/internal/log"
	"dutycal/internal/model"
	"dutycal/internal/pipeline"
	"dutycal/internal/updater"
)

// Refresher runs an update on demand.
type Refresher interface {
	RunOnce(ctx context.Context) (updater.Snapshot, error)
}

// Server provides the calendar feed and a small JSON API.
type Server struct {
	cfg       *config.Config
	mux       *http.ServeMux
	refresher Refresher
	now       func() time.Time

	// Latest successful update, set by the updater callback.
	snapMu sync.RWMutex
	snap   *snapshot
}

type snapshot struct {
	updater.Snapshot
	etag string
}

// NewServer constructs a new Server. refresher may be nil, which disables
// POST /api/refresh.
func NewServer(cfg *config.Config, refresher Refresher) *Server {
	s := &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		refresher: refresher,
		now:       time.Now,
	}
	s.registerRoutes()
	return s
}

// SetSnapshot replaces the served state.
func (s *Server) SetSnapshot(snap updater.Snapshot) {
	sum := sha256.Sum256(snap.Calendar)
	s.snapMu.Lock()
	s.snap = &snapshot{Snapshot: snap, etag: `"` + hex.EncodeToString(sum[:8]) + `"`}
	s.snapMu.Unlock()
}

func (s *Server) current() *snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. Empty
// credentials count as disabled.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="dutycal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/calendar.ics", s.handleCalendar)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/warnings", s.handleWarnings)
	s.mux.HandleFunc("/api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleCalendar serves the last published calendar with an ETag so
// calendar clients can poll cheaply.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	snap := s.current()
	if snap == nil {
		http.Error(w, "calendar not ready", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("ETag", snap.etag)
	w.Header().Set("Last-Modified", snap.UpdatedAt.UTC().Format(http.TimeFormat))
	if r.Header.Get("If-None-Match") == snap.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(snap.Calendar)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(snap.Calendar)
	}
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events     []model.ComposedEvent `json:"events"`
	RangeStart time.Time             `json:"range_start"`
	RangeEnd   time.Time             `json:"range_end"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// handleEvents returns composed events overlapping a window around now.
//
// GET /api/events?days=30&backfill=1
//   - days:     how many days ahead (default 30)
//   - backfill: how many days back (default 1)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	snap := s.current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no update has completed yet")
		return
	}

	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), 30)
	if days <= 0 {
		days = 30
	}
	backfill := parseIntDefault(q.Get("backfill"), 1)
	if backfill < 0 {
		backfill = 0
	}

	now := s.now()
	rangeStart := now.AddDate(0, 0, -backfill)
	rangeEnd := now.AddDate(0, 0, days)

	events := make([]model.ComposedEvent, 0)
	for _, ev := range snap.Events {
		if ev.End.After(rangeStart) && ev.Start.Before(rangeEnd) {
			events = append(events, ev)
		}
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Events:     events,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		UpdatedAt:  snap.UpdatedAt,
	})
}

// warningsResponse is the JSON response shape for /api/warnings.
type warningsResponse struct {
	Warnings  []model.Warning  `json:"warnings"`
	Changes   pipeline.Changes `json:"changes"`
	FromCache bool             `json:"from_cache"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (s *Server) handleWarnings(w http.ResponseWriter, _ *http.Request) {
	snap := s.current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no update has completed yet")
		return
	}
	warnings := snap.Warnings
	if warnings == nil {
		warnings = []model.Warning{}
	}
	writeJSON(w, http.StatusOK, warningsResponse{
		Warnings:  warnings,
		Changes:   snap.Changes,
		FromCache: snap.FromCache,
		UpdatedAt: snap.UpdatedAt,
	})
}

// handleRefresh runs an update immediately. POST only.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.refresher == nil {
		writeError(w, http.StatusNotImplemented, "refresh not available")
		return
	}

	snap, err := s.refresher.RunOnce(r.Context())
	if err != nil && snap.UpdatedAt.IsZero() {
		appLog.Error("api refresh failed", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	resp := warningsResponse{
		Warnings:  snap.Warnings,
		Changes:   snap.Changes,
		FromCache: snap.FromCache,
		UpdatedAt: snap.UpdatedAt,
	}
	if resp.Warnings == nil {
		resp.Warnings = []model.Warning{}
	}
	if err != nil {
		// Published partially; the snapshot is still current.
		appLog.Error("api refresh: publish incomplete", err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
