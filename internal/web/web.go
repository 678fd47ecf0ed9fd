package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"poolcal/internal/config"
	"poolcal/internal/ics"
	appLog "poolcal/internal/log"
	"poolcal/internal/model"
	"poolcal/internal/schedule"
)

var calendarID = regexp.MustCompile(`^[\p{L}\p{N}_.]+$`)

// Server serves the generated calendars for subscription and exposes the
// facts of the last run as JSON.
type Server struct {
	cfg *config.Config
	mux *http.ServeMux

	mu        sync.RWMutex
	results   map[string]schedule.Result
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		results: map[string]schedule.Result{},
	}
	s.registerRoutes()
	return s
}

// Publish replaces the snapshot for the given facilities. Facilities not
// mentioned keep their previous result.
func (s *Server) Publish(results ...schedule.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		s.results[r.Facility.ID] = r
	}
	s.updatedAt = time.Now()
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
			w.Header().Set("WWW-Authenticate", `Basic realm="poolcal", charset="UTF-8"`)
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

// Serve listens on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("HTTP shutdown failed", err)
		}
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /calendars/{file}", s.handleCalendar)
	s.mux.HandleFunc("GET /api/facilities", s.handleFacilities)
	s.mux.HandleFunc("GET /api/occurrences", s.handleOccurrences)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleCalendar serves /calendars/{id}.ics from the output directory.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	const ext = ".ics"
	if len(file) <= len(ext) || file[len(file)-len(ext):] != ext {
		http.NotFound(w, r)
		return
	}
	id := file[:len(file)-len(ext)]
	if !calendarID.MatchString(id) {
		http.NotFound(w, r)
		return
	}

	sink := ics.FileSink{Dir: s.cfg.OutputDir}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	http.ServeFile(w, r, sink.Path(id))
}

type facilityDTO struct {
	ID    string               `json:"id"`
	Name  string               `json:"name"`
	URL   string               `json:"url"`
	Facts []model.ScheduleFact `json:"facts"`
}

type facilitiesResponse struct {
	UpdatedAt  time.Time     `json:"updated_at"`
	Facilities []facilityDTO `json:"facilities"`
}

func (s *Server) handleFacilities(w http.ResponseWriter, _ *http.Request) {
	results, updatedAt := s.snapshot()
	resp := facilitiesResponse{UpdatedAt: updatedAt, Facilities: make([]facilityDTO, 0, len(results))}
	for _, r := range results {
		facts := r.Facts
		if facts == nil {
			facts = []model.ScheduleFact{}
		}
		resp.Facilities = append(resp.Facilities, facilityDTO{
			ID:    r.Facility.ID,
			Name:  r.Facility.Name,
			URL:   r.Facility.URL,
			Facts: facts,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type occurrencesResponse struct {
	Instances       []ics.Instance `json:"instances"`
	TruncatedUIDs   []string       `json:"truncated_uids,omitempty"`
	RangeStart      time.Time      `json:"range_start"`
	RangeEnd        time.Time      `json:"range_end"`
	DisplayTimeZone string         `json:"display_timezone"`
}

// handleOccurrences expands the last run's occurrences.
//
// GET /api/occurrences?days=7&facility=<id>
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), 7)
	if days <= 0 || days > 366 {
		days = 7
	}
	only := q.Get("facility")

	loc := resolveLocationOrLocal(s.cfg.Timezone)
	now := time.Now().In(loc)
	rangeStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	rangeEnd := rangeStart.AddDate(0, 0, days)

	results, _ := s.snapshot()
	var occurrences []model.CalendarOccurrence
	for _, res := range results {
		if only != "" && res.Facility.ID != only {
			continue
		}
		occurrences = append(occurrences, res.Occurrences...)
	}

	expanded, err := ics.Expand(occurrences, ics.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
	})
	if err != nil {
		appLog.Error("api occurrences: expand failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand occurrences")
		return
	}

	writeJSON(w, http.StatusOK, occurrencesResponse{
		Instances:       expanded.Instances,
		TruncatedUIDs:   expanded.TruncatedEvents,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
		DisplayTimeZone: loc.String(),
	})
}

// snapshot returns the published results ordered by facility id.
func (s *Server) snapshot() ([]schedule.Result, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schedule.Result, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Facility.ID < out[j].Facility.ID })
	return out, s.updatedAt
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

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
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
