// Package web serves the generated site plus a small JSON API over the
// last completed aggregation run.
package web

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"jigdule/internal/config"
	"jigdule/internal/log"
	"jigdule/internal/model"
	"jigdule/internal/pipeline"
)

// Server provides HTTP access to the rendered output and the timeline API.
type Server struct {
	cfg *config.Config
	mux *http.ServeMux

	// Last completed run, swapped in whole by SetResult.
	resultMu sync.RWMutex
	result   *pipeline.Result
}

// NewServer constructs a Server serving static files out of cfg.OutDir.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg: cfg,
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// SetResult publishes the outcome of a completed pipeline run to the API.
func (s *Server) SetResult(res *pipeline.Result) {
	s.resultMu.Lock()
	s.result = res
	s.resultMu.Unlock()
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		log.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Treat empty username or password as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health is always exposed without auth.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="jigdule", charset="UTF-8"`)
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

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/timeline", s.handleTimeline)

	// Everything else is the generated static site (index.html, assets,
	// timeline.ics, preview.png).
	s.mux.Handle("/", http.FileServer(http.Dir(s.cfg.OutDir)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// timelineResponse is the JSON response shape for /api/timeline.
type timelineResponse struct {
	Days      []dayGroupDTO `json:"days"`
	Failures  []failureDTO  `json:"failures,omitempty"`
	FetchedAt time.Time     `json:"fetched_at"`
	Timezone  string        `json:"timezone"`
}

type dayGroupDTO struct {
	Date   string     `json:"date"`
	Events []eventDTO `json:"events"`
}

type eventDTO struct {
	Platform     string    `json:"platform"`
	CreatorID    string    `json:"creator_id"`
	Kind         string    `json:"kind"`
	Title        string    `json:"title"`
	Permalink    string    `json:"permalink,omitempty"`
	OccursAt     time.Time `json:"occurs_at"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	SourceItemID string    `json:"source_item_id"`
}

type failureDTO struct {
	CreatorID string `json:"creator_id"`
	Platform  string `json:"platform"`
	Call      string `json:"call"`
	Error     string `json:"error"`
}

// handleTimeline returns the grouped timeline from the last completed run.
// Before the first run completes it responds 503.
func (s *Server) handleTimeline(w http.ResponseWriter, _ *http.Request) {
	s.resultMu.RLock()
	res := s.result
	s.resultMu.RUnlock()

	if res == nil {
		writeError(w, http.StatusServiceUnavailable, "no completed run yet")
		return
	}

	resp := timelineResponse{
		Days:      make([]dayGroupDTO, 0, len(res.Groups)),
		FetchedAt: res.FetchedAt,
		Timezone:  s.cfg.Timezone,
	}
	for _, g := range res.Groups {
		dto := dayGroupDTO{
			Date:   g.LocalDate.Format("2006-01-02"),
			Events: make([]eventDTO, 0, len(g.Events)),
		}
		for _, ev := range g.Events {
			dto.Events = append(dto.Events, toEventDTO(ev))
		}
		resp.Days = append(resp.Days, dto)
	}
	for _, f := range res.Failures {
		resp.Failures = append(resp.Failures, failureDTO{
			CreatorID: f.CreatorID,
			Platform:  string(f.Platform),
			Call:      f.Call,
			Error:     f.Err.Error(),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func toEventDTO(ev model.Event) eventDTO {
	return eventDTO{
		Platform:     string(ev.Platform),
		CreatorID:    ev.CreatorID,
		Kind:         string(ev.Kind),
		Title:        ev.Title,
		Permalink:    ev.Permalink,
		OccursAt:     ev.OccursAt,
		ThumbnailURL: ev.ThumbnailURL,
		SourceItemID: ev.SourceItemID,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
