// Package server exposes the HTTP surfaces of the system: the query API
// and the encoder service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kxddry/wikirag/internal/domain"
	"github.com/kxddry/wikirag/internal/searchstore"
	"github.com/kxddry/wikirag/internal/service"
)

// API serves the query pipeline entry point and liveness.
type API struct {
	orch  *service.Orchestrator
	store searchstore.Storage
	log   *slog.Logger
}

// NewAPI creates the query API.
func NewAPI(orch *service.Orchestrator, store searchstore.Storage, log *slog.Logger) *API {
	return &API{orch: orch, store: store, log: log}
}

// Routes builds the router for the query API.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Post("/query", a.handleQuery)
	r.Get("/health", a.handleHealth)

	return r
}

type queryRequest struct {
	UserQuery string `json:"user_query"`
	TopK      int    `json:"top_k"`
}

// handleQuery validates the payload, then hands the request to the
// orchestrator and streams its output. Validation failures and encoder
// unavailability are rejected before any frame is written.
func (a *API) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}
	if strings.TrimSpace(req.UserQuery) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: user_query must not be empty", domain.ErrInvalidRequest))
		return
	}
	if req.TopK < 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: top_k must be positive", domain.ErrInvalidRequest))
		return
	}

	q := domain.Query{Text: req.UserQuery, TopK: req.TopK}

	// Buffer nothing: set the streaming headers and let the orchestrator
	// write frames directly. Encode runs first and fails before any write.
	sw := &streamWriter{w: w}
	err := a.orch.Answer(r.Context(), q, sw)
	if err == nil {
		return
	}
	if sw.started {
		// frames are on the wire already, nothing sane to send
		a.log.Error("query failed mid-stream", "error", err)
		return
	}
	switch {
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		a.log.Error("query pipeline failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

// streamWriter defers the event-stream headers until the first write so a
// pre-stream failure can still change the status code.
type streamWriter struct {
	w       http.ResponseWriter
	started bool
}

func (s *streamWriter) Write(p []byte) (int, error) {
	if !s.started {
		s.started = true
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.WriteHeader(http.StatusOK)
	}
	return s.w.Write(p)
}

// Flush implements http.Flusher.
func (s *streamWriter) Flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}

// handleHealth reports process liveness and backing-store connectivity.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "connected"
	if err := a.store.Ping(ctx); err != nil {
		status = "disconnected"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "up",
		"elasticsearch": status,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"detail": err.Error()})
}

// NewServer wraps a handler in an http.Server with timeouts suited to a
// streaming API: generation is unbounded, so there is no write timeout.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:        addr,
		Handler:     handler,
		IdleTimeout: time.Minute,
		ReadTimeout: 10 * time.Second,
	}
}
