// Package handlers provides HTTP handlers for portfolio operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/modules/portfolio"
)

// PortfolioProvider exposes the portfolios managed by the arena coordinator.
type PortfolioProvider interface {
	Portfolio(name string) (*portfolio.Manager, bool)
	Names() []string
}

// Handler handles portfolio HTTP requests
type Handler struct {
	portfolios PortfolioProvider
	snapshots  *portfolio.SnapshotRepository
	log        zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(portfolios PortfolioProvider, snapshots *portfolio.SnapshotRepository, log zerolog.Logger) *Handler {
	return &Handler{
		portfolios: portfolios,
		snapshots:  snapshots,
		log:        log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleList handles GET /api/portfolios
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	names := h.portfolios.Names()
	summaries := make([]map[string]interface{}, 0, len(names))

	for _, name := range names {
		m, ok := h.portfolios.Portfolio(name)
		if !ok {
			continue
		}
		summaries = append(summaries, map[string]interface{}{
			"name":        name,
			"total_value": m.TotalValue(),
			"cash":        m.Cash(),
			"positions":   len(m.Positions()),
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": summaries,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetSummary handles GET /api/portfolios/{name}
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"name":                 m.Name(),
			"total_value":          m.TotalValue(),
			"cash":                 m.Cash(),
			"available_cash":       m.AvailableCash(),
			"initial_capital":      m.InitialCapital(),
			"positions":            len(m.Positions()),
			"strategy_allocations": m.StrategyAllocations(),
			"current_allocations":  m.CurrentAllocations(),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetPositions handles GET /api/portfolios/{name}/positions
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	positions := m.Positions()
	if strategy := r.URL.Query().Get("strategy"); strategy != "" {
		positions = m.PositionsByStrategy(strategy)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": positions,
		"metadata": map[string]interface{}{
			"count":     len(positions),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetTrades handles GET /api/portfolios/{name}/trades
func (h *Handler) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	strategy := r.URL.Query().Get("strategy")
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	trades := m.TradeHistory(strategy, limit)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": trades,
		"metadata": map[string]interface{}{
			"count":     len(trades),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetMetrics handles GET /api/portfolios/{name}/metrics
func (h *Handler) HandleGetMetrics(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			days = parsed
		}
	}

	since := time.Now().AddDate(0, 0, -days)
	metrics, err := h.snapshots.Metrics(m.Name(), since, m.InitialCapital())
	if err != nil {
		h.log.Error().Err(err).Str("portfolio", m.Name()).Msg("Failed to calculate metrics")
		http.Error(w, "Failed to calculate metrics", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": metrics,
		"metadata": map[string]interface{}{
			"days":      days,
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetSnapshots handles GET /api/portfolios/{name}/snapshots
func (h *Handler) HandleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			days = parsed
		}
	}

	history, err := h.snapshots.History(m.Name(), time.Now().AddDate(0, 0, -days))
	if err != nil {
		h.log.Error().Err(err).Str("portfolio", m.Name()).Msg("Failed to load snapshot history")
		http.Error(w, "Failed to load snapshot history", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": history,
		"metadata": map[string]interface{}{
			"count":     len(history),
			"days":      days,
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) manager(w http.ResponseWriter, r *http.Request) (*portfolio.Manager, bool) {
	name := chi.URLParam(r, "name")
	m, ok := h.portfolios.Portfolio(name)
	if !ok {
		http.Error(w, "Portfolio not found", http.StatusNotFound)
		return nil, false
	}
	return m, true
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
