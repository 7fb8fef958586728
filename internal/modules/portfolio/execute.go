package portfolio

import (
	"fmt"

	"github.com/aristath/arena/internal/domain"
)

// RecommendationError pairs a failed recommendation with its order-level
// error. Failures never abort the batch; each recommendation is an
// independent unit of work.
type RecommendationError struct {
	Ticker string
	Action domain.Action
	Err    error
}

func (e RecommendationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Action, e.Ticker, e.Err)
}

func (e RecommendationError) Unwrap() error { return e.Err }

// ExecuteRecommendations applies a strategy's BUY/SELL recommendations
// directly against the ledger at snapshot prices. HOLDs are skipped. Tickers
// without a quoted price are excluded with DataUnavailable. Order-level
// failures are collected and returned alongside the executed trades.
func (m *Manager) ExecuteRecommendations(strategy string, recs []domain.TradingRecommendation, market *domain.MarketSnapshot) ([]domain.Trade, []RecommendationError) {
	var trades []domain.Trade
	var failures []RecommendationError

	for _, rec := range recs {
		if rec.Action == domain.ActionHold {
			continue
		}
		if err := rec.Validate(); err != nil {
			failures = append(failures, RecommendationError{Ticker: rec.Ticker, Action: rec.Action, Err: err})
			continue
		}

		price, ok := market.Price(rec.Ticker)
		if !ok || price <= 0 {
			failures = append(failures, RecommendationError{
				Ticker: rec.Ticker, Action: rec.Action,
				Err: fmt.Errorf("no price for %s: %w", rec.Ticker, domain.ErrDataUnavailable),
			})
			continue
		}

		var trade domain.Trade
		var err error
		switch rec.Action {
		case domain.ActionBuy:
			var maxDays *int
			if rec.MaxHoldingDays > 0 {
				d := rec.MaxHoldingDays
				maxDays = &d
			}
			trade, err = m.Buy(strategy, rec.Ticker, rec.Quantity, price, rec.StopLoss, rec.ProfitTarget, maxDays, rec.Reasoning)
		case domain.ActionSell:
			trade, err = m.Sell(strategy, rec.Ticker, rec.Quantity, price, rec.Reasoning)
		}

		if err != nil {
			failures = append(failures, RecommendationError{Ticker: rec.Ticker, Action: rec.Action, Err: err})
			continue
		}
		trades = append(trades, trade)
	}

	return trades, failures
}
