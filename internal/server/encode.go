package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kxddry/wikirag/internal/domain"
	"github.com/kxddry/wikirag/internal/sparse"
)

// EncodeAPI serves the sparse-encoder service surface.
type EncodeAPI struct {
	encoder *sparse.Encoder
	log     *slog.Logger
}

// NewEncodeAPI creates the encoder service.
func NewEncodeAPI(encoder *sparse.Encoder, log *slog.Logger) *EncodeAPI {
	return &EncodeAPI{encoder: encoder, log: log}
}

// Routes builds the router for the encoder service.
func (e *EncodeAPI) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/encode", e.handleEncode)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

type encodeRequest struct {
	Text string `json:"text"`
}

func (e *EncodeAPI) handleEncode(w http.ResponseWriter, r *http.Request) {
	var req encodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: text must not be empty", domain.ErrInvalidRequest))
		return
	}

	vec, err := e.encoder.Encode(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		e.log.Error("encode failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sparse_vector": vec})
}
