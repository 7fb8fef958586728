// Package handlers provides HTTP handlers for market data ingestion.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/modules/marketdata"
)

// Handler handles market data HTTP requests
type Handler struct {
	market *marketdata.Service
	log    zerolog.Logger
}

// NewHandler creates a new market data handler
func NewHandler(market *marketdata.Service, log zerolog.Logger) *Handler {
	return &Handler{
		market: market,
		log:    log.With().Str("handler", "marketdata").Logger(),
	}
}

// barUpdate is one ticker's daily bar in an ingest request.
type barUpdate struct {
	Ticker string  `json:"ticker"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Sector string  `json:"sector,omitempty"`
}

// HandleIngestBars handles POST /api/market/bars
func (h *Handler) HandleIngestBars(w http.ResponseWriter, r *http.Request) {
	var bars []barUpdate
	if err := json.NewDecoder(r.Body).Decode(&bars); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	accepted := 0
	for _, bar := range bars {
		if bar.Ticker == "" || bar.Close <= 0 {
			h.log.Warn().Str("ticker", bar.Ticker).Float64("close", bar.Close).Msg("Skipping invalid bar")
			continue
		}
		h.market.AppendBar(bar.Ticker, bar.Close, bar.Volume)
		if bar.Sector != "" {
			h.market.SetSector(bar.Ticker, bar.Sector)
		}
		accepted++
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"accepted": accepted,
			"rejected": len(bars) - accepted,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetSnapshot handles GET /api/market/snapshot
func (h *Handler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := h.market.Snapshot()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": snap,
		"metadata": map[string]interface{}{
			"tickers":   len(snap.Prices),
			"timestamp": time.Now().Format(time.RFC3339),
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
