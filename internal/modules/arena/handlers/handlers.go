// Package handlers provides HTTP handlers for the strategy comparison view.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/modules/arena"
)

// SummaryProvider exposes the cross-strategy standings.
type SummaryProvider interface {
	Summary() []arena.StrategyStanding
	Names() []string
}

// Handler handles arena HTTP requests
type Handler struct {
	arena SummaryProvider
	log   zerolog.Logger
}

// NewHandler creates a new arena handler
func NewHandler(provider SummaryProvider, log zerolog.Logger) *Handler {
	return &Handler{
		arena: provider,
		log:   log.With().Str("handler", "arena").Logger(),
	}
}

// HandleSummary handles GET /api/arena/summary
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	standings := h.arena.Summary()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": standings,
		"metadata": map[string]interface{}{
			"strategies": len(standings),
			"timestamp":  time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
