package trading

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/config"
	"github.com/aristath/arena/internal/domain"
)

// ExecutionGuard runs layered pre-execution checks against the trade ledger:
// a daily trade cap and a re-entry cooldown that blocks buying back a ticker
// shortly after selling it. Any failed layer blocks the order.
type ExecutionGuard struct {
	trades *TradeRepository
	cfg    config.TradingConfig
	clock  domain.Clock
	log    zerolog.Logger
}

// NewExecutionGuard creates a new execution guard.
func NewExecutionGuard(trades *TradeRepository, cfg config.TradingConfig, clock domain.Clock, log zerolog.Logger) *ExecutionGuard {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &ExecutionGuard{
		trades: trades,
		cfg:    cfg,
		clock:  clock,
		log:    log.With().Str("service", "execution_guard").Logger(),
	}
}

// Check validates one order against all layers. A nil error means the order
// may be dispatched.
func (g *ExecutionGuard) Check(order domain.Order) error {
	if err := g.checkDailyCap(); err != nil {
		return err
	}
	if err := g.checkReentryCooldown(order); err != nil {
		return err
	}
	return nil
}

// checkDailyCap blocks the order once today's trade count reaches the cap.
// A runaway strategy loop must not burn through the whole ledger in a day.
func (g *ExecutionGuard) checkDailyCap() error {
	if g.cfg.MaxTradesPerDay <= 0 {
		return nil
	}
	now := g.clock.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	count, err := g.trades.CountSince(midnight)
	if err != nil {
		return fmt.Errorf("failed to check daily trade cap: %w", err)
	}
	if count >= g.cfg.MaxTradesPerDay {
		g.log.Warn().Int("count", count).Int("cap", g.cfg.MaxTradesPerDay).Msg("Daily trade cap reached")
		return fmt.Errorf("daily trade cap reached (%d trades)", count)
	}
	return nil
}

// checkReentryCooldown blocks a BUY for a ticker sold within the cooldown
// window. Churn from a strategy flip-flopping on a ticker costs fees twice.
func (g *ExecutionGuard) checkReentryCooldown(order domain.Order) error {
	if order.Quantity <= 0 || g.cfg.ReentryCooldownHours <= 0 {
		return nil
	}
	since := g.clock.Now().Add(-time.Duration(g.cfg.ReentryCooldownHours) * time.Hour)
	recent, err := g.trades.HasRecentSell(order.Ticker, since)
	if err != nil {
		return fmt.Errorf("failed to check re-entry cooldown: %w", err)
	}
	if recent {
		g.log.Info().Str("ticker", order.Ticker).Msg("Re-entry blocked by cooldown")
		return fmt.Errorf("ticker %s sold within the last %dh, re-entry blocked", order.Ticker, g.cfg.ReentryCooldownHours)
	}
	return nil
}
