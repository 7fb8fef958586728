// Package handlers provides HTTP handlers for risk metrics operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/domain"
	"github.com/aristath/arena/internal/modules/portfolio"
	"github.com/aristath/arena/internal/modules/risk"
)

// PortfolioProvider exposes the portfolios managed by the arena coordinator.
type PortfolioProvider interface {
	Portfolio(name string) (*portfolio.Manager, bool)
}

// MarketProvider supplies the current market snapshot.
type MarketProvider interface {
	Snapshot() *domain.MarketSnapshot
}

// Handler handles risk metrics HTTP requests
type Handler struct {
	riskManager *risk.Manager
	portfolios  PortfolioProvider
	market      MarketProvider
	confidence  float64
	log         zerolog.Logger
}

// NewHandler creates a new risk metrics handler
func NewHandler(riskManager *risk.Manager, portfolios PortfolioProvider, market MarketProvider, confidence float64, log zerolog.Logger) *Handler {
	return &Handler{
		riskManager: riskManager,
		portfolios:  portfolios,
		market:      market,
		confidence:  confidence,
		log:         log.With().Str("handler", "risk").Logger(),
	}
}

// HandleGetPortfolioVaR handles GET /api/risk/{name}/var
func (h *Handler) HandleGetPortfolioVaR(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	positions := m.Positions()
	totalValue := m.TotalValue()
	varFraction := h.riskManager.CalculatePortfolioVaR(positions, totalValue, h.market.Snapshot(), h.confidence)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"var_1d":          varFraction * totalValue,
			"var_pct":         varFraction * 100,
			"portfolio_value": totalValue,
			"confidence":      h.confidence,
			"method":          "parametric",
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetAlerts handles GET /api/risk/{name}/alerts
func (h *Handler) HandleGetAlerts(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	alerts := h.riskManager.MonitorRiskLimits(m.Positions(), m.TotalValue(), h.market.Snapshot(), time.Now())

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": alerts,
		"metadata": map[string]interface{}{
			"count":     len(alerts),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetPositionRisks handles GET /api/risk/{name}/positions
func (h *Handler) HandleGetPositionRisks(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	risks := h.riskManager.PositionRisks(m.Positions(), m.TotalValue(), h.market.Snapshot(), time.Now())

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": risks,
		"metadata": map[string]interface{}{
			"count":     len(risks),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetSectorExposures handles GET /api/risk/{name}/sectors
func (h *Handler) HandleGetSectorExposures(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	exposures := h.riskManager.SectorExposures(m.Positions(), h.market.Snapshot())

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": exposures,
		"metadata": map[string]interface{}{
			"portfolio_value": m.TotalValue(),
			"timestamp":       time.Now().Format(time.RFC3339),
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
