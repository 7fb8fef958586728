// Package handlers provides HTTP handlers for rebalancing operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/modules/rebalancing"
)

// RebalancerProvider exposes the rebalancers managed by the arena coordinator.
type RebalancerProvider interface {
	Rebalancer(name string) (*rebalancing.Rebalancer, bool)
}

// CycleRunner triggers a full cycle through the coordinator, which owns the
// strategy recommendations a cycle needs.
type CycleRunner interface {
	RunCycleNow(name string) (*rebalancing.CycleReport, error)
}

// Handler handles rebalancing HTTP requests
type Handler struct {
	rebalancers RebalancerProvider
	runner      CycleRunner
	reports     *rebalancing.ReportRepository
	log         zerolog.Logger
}

// NewHandler creates a new rebalancing handler
func NewHandler(rebalancers RebalancerProvider, runner CycleRunner, reports *rebalancing.ReportRepository, log zerolog.Logger) *Handler {
	return &Handler{
		rebalancers: rebalancers,
		runner:      runner,
		reports:     reports,
		log:         log.With().Str("handler", "rebalancing").Logger(),
	}
}

// HandleGetStatus handles GET /api/rebalancing/{name}/status
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	rb, ok := h.rebalancer(w, r)
	if !ok {
		return
	}

	year, week := rb.LastCycle()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"state":           rb.State(),
			"last_cycle_year": year,
			"last_cycle_week": week,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetReports handles GET /api/rebalancing/{name}/reports
func (h *Handler) HandleGetReports(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := h.rebalancers.Rebalancer(name); !ok {
		http.Error(w, "Portfolio not found", http.StatusNotFound)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	reports, err := h.reports.List(name, limit)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio", name).Msg("Failed to list cycle reports")
		http.Error(w, "Failed to list cycle reports", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": reports,
		"metadata": map[string]interface{}{
			"count":     len(reports),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleTriggerCycle handles POST /api/rebalancing/{name}/run
//
// Runs a cycle immediately, bypassing the weekly schedule gate. Intended for
// manual intervention; the cycle itself still validates and can abort.
func (h *Handler) HandleTriggerCycle(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := h.rebalancers.Rebalancer(name); !ok {
		http.Error(w, "Portfolio not found", http.StatusNotFound)
		return
	}

	report, err := h.runner.RunCycleNow(name)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio", name).Msg("Failed to run rebalance cycle")
		http.Error(w, "Failed to run rebalance cycle", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": report,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) rebalancer(w http.ResponseWriter, r *http.Request) (*rebalancing.Rebalancer, bool) {
	name := chi.URLParam(r, "name")
	rb, ok := h.rebalancers.Rebalancer(name)
	if !ok {
		http.Error(w, "Portfolio not found", http.StatusNotFound)
		return nil, false
	}
	return rb, true
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
