// Package handlers provides HTTP handlers for the trade ledger.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/domain"
	"github.com/aristath/arena/internal/modules/trading"
)

// Handler handles trade ledger HTTP requests
type Handler struct {
	trades *trading.TradeRepository
	clock  domain.Clock
	log    zerolog.Logger
}

// NewHandler creates a new trade ledger handler
func NewHandler(trades *trading.TradeRepository, clock domain.Clock, log zerolog.Logger) *Handler {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Handler{
		trades: trades,
		clock:  clock,
		log:    log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleGetTrades handles GET /api/ledger/trades
//
// Optional query parameters: ticker, strategy, limit.
func (h *Handler) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var (
		trades []domain.Trade
		err    error
	)
	switch {
	case r.URL.Query().Get("ticker") != "":
		trades, err = h.trades.GetByTicker(r.URL.Query().Get("ticker"), limit)
	case r.URL.Query().Get("strategy") != "":
		trades, err = h.trades.GetByStrategy(r.URL.Query().Get("strategy"), limit)
	default:
		trades, err = h.trades.GetHistory(limit)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query trades")
		http.Error(w, "Failed to query trades", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": trades,
		"metadata": map[string]interface{}{
			"count":     len(trades),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetStats handles GET /api/ledger/stats
func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := midnight.AddDate(0, 0, -int((now.Weekday()+6)%7)) // back to Monday

	today, err := h.trades.CountSince(midnight)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count trades today")
		http.Error(w, "Failed to query ledger", http.StatusInternalServerError)
		return
	}
	thisWeek, err := h.trades.CountSince(weekStart)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count trades this week")
		http.Error(w, "Failed to query ledger", http.StatusInternalServerError)
		return
	}
	last, err := h.trades.LastTradeTime()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read last trade time")
		http.Error(w, "Failed to query ledger", http.StatusInternalServerError)
		return
	}

	data := map[string]interface{}{
		"trades_today":     today,
		"trades_this_week": thisWeek,
	}
	if last != nil {
		data["last_trade_at"] = last.Format(time.RFC3339)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
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
