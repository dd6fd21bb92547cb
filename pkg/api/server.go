// Package api implements the Public API surface (C8): the HTTP routes in
// the external interfaces section, wired to the Run Scheduler and Session
// Store, plus the /ws streaming gateway mount point.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-research/deepresearch/pkg/apperr"
	"github.com/go-research/deepresearch/pkg/config"
	"github.com/go-research/deepresearch/pkg/logger"
	"github.com/go-research/deepresearch/pkg/session"
	"github.com/go-research/deepresearch/pkg/stream"
	"github.com/go-research/deepresearch/pkg/telemetry"
)

const maxQueryLength = 1000

// SessionScheduler is the subset of *scheduler.Scheduler the API needs.
type SessionScheduler interface {
	Start(query string) (string, error)
	Cancel(id string) error
	NewChat()
}

// Server builds the http.Handler serving every route in the external
// interfaces section.
type Server struct {
	cfg       *config.OrchestratorConfig
	store     *session.Store
	bus       *stream.Bus
	scheduler SessionScheduler
	logger    logger.Logger
	version   string
	startedAt time.Time
}

// New constructs a Server. version is surfaced verbatim on /health.
func New(cfg *config.OrchestratorConfig, store *session.Store, bus *stream.Bus, sched SessionScheduler, log logger.Logger, version string) *Server {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Server{cfg: cfg, store: store, bus: bus, scheduler: sched, logger: log, version: version, startedAt: time.Now()}
}

// Handler builds the routed http.Handler, with wsHandler (typically
// *stream.WebSocketHandler) mounted at /ws and CORS applied to every route.
func (s *Server) Handler(wsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/search", s.handleStartSearch)
	mux.HandleFunc("GET /api/v1/search/{id}/status", s.handleSearchStatus)
	mux.HandleFunc("GET /api/v1/search/{id}", s.handleGetSearch)
	mux.HandleFunc("POST /api/v1/search/{id}/cancel", s.handleCancelSearch)
	mux.HandleFunc("POST /api/v1/new-chat", s.handleNewChat)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)
	if wsHandler != nil {
		mux.Handle("/ws", wsHandler)
	}

	correlated := telemetry.CorrelationMiddleware(corsMiddleware(s.cfg.CORSOrigins)(mux))
	return telemetry.HTTPTracingMiddleware("research-server", "/health", "/stats")(correlated)
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchStartedResponse struct {
	SearchID string `json:"search_id"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

func (s *Server) handleStartSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be valid JSON", apperr.KindInvalidQuery, "")
		return
	}

	length := utf8.RuneCountInString(req.Query)
	if length == 0 || length > maxQueryLength {
		writeError(w, http.StatusBadRequest, "query must be 1..1000 characters", apperr.KindInvalidQuery, "")
		return
	}

	id, err := s.scheduler.Start(req.Query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), kindOf(err), "")
		return
	}

	writeJSON(w, http.StatusOK, searchStartedResponse{SearchID: id, Status: "started", Message: "research started"})
}

type statusResponse struct {
	SearchID    string `json:"search_id"`
	Status      string `json:"status"`
	CurrentStep string `json:"current_step,omitempty"`
	Progress    int    `json:"progress,omitempty"`
}

func (s *Server) handleSearchStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown search_id", apperr.KindSessionNotFound, id)
		return
	}

	resp := statusResponse{SearchID: sess.ID, Status: string(sess.Status)}
	if n := len(sess.Steps); n > 0 {
		resp.CurrentStep = sess.Steps[n-1].Title
		resp.Progress = n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSearch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown search_id", apperr.KindSessionNotFound, id)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type simpleStatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleCancelSearch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.scheduler.Cancel(id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, simpleStatusResponse{Status: "cancelled", Message: "session cancelled"})
	case errors.Is(err, apperr.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "unknown search_id", apperr.KindSessionNotFound, id)
	case errors.Is(err, apperr.ErrSessionNotActive):
		writeError(w, http.StatusConflict, "session is not active", apperr.KindSessionNotActive, id)
	default:
		writeError(w, http.StatusInternalServerError, err.Error(), kindOf(err), id)
	}
}

func (s *Server) handleNewChat(w http.ResponseWriter, r *http.Request) {
	s.scheduler.NewChat()
	writeJSON(w, http.StatusOK, simpleStatusResponse{Status: "reset", Message: "conversation reset"})
}

type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Timestamp     string  `json:"timestamp"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Version:       s.version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	})
}

type statsResponse struct {
	Sessions       int `json:"sessions"`
	Connections    int `json:"connections"`
	RunningTasks   int `json:"running_tasks"`
	ActiveSearches int `json:"active_searches"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.store.Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		Sessions:       st.TotalSessions,
		Connections:    s.bus.Count(),
		RunningTasks:   st.ActiveSessions,
		ActiveSearches: st.ActiveSessions,
	})
}

type errorBody struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code"`
	Timestamp string `json:"timestamp"`
	SearchID  string `json:"search_id,omitempty"`
}

func writeError(w http.ResponseWriter, status int, detail, errorCode, searchID string) {
	writeJSON(w, status, errorBody{
		Detail:    detail,
		ErrorCode: errorCode,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		SearchID:  searchID,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func kindOf(err error) string {
	var oe *apperr.OrchestratorError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return apperr.KindToolCallTransport
}
