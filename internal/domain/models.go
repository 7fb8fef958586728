// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"time"
)

// Action represents the direction of a trading recommendation
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// PositionAction represents what a strategy wants done with an open position
type PositionAction string

const (
	PositionHold     PositionAction = "HOLD"
	PositionSell     PositionAction = "SELL"
	PositionIncrease PositionAction = "INCREASE"
	PositionDecrease PositionAction = "DECREASE"
)

// Severity classifies risk alerts
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// ExitReason tags a forced position exit
type ExitReason string

const (
	ExitStopLoss         ExitReason = "STOP_LOSS"
	ExitProfitTarget     ExitReason = "PROFIT_TARGET"
	ExitMaxHoldingPeriod ExitReason = "MAX_HOLDING_PERIOD"
)

// Position represents a single open position inside a portfolio.
// MarketValue and UnrealizedPnL are derived fields; Revalue keeps them
// consistent with Quantity and CurrentPrice. Positions are mutated only
// through the portfolio manager's buy/sell path and are removed when
// quantity reaches zero.
type Position struct {
	EntryDate        time.Time  `json:"entry_date"`
	ReEvaluationDate *time.Time `json:"re_evaluation_date,omitempty"`
	Ticker           string     `json:"ticker"`
	Strategy         string     `json:"strategy"`
	Quantity         int64      `json:"quantity"`
	EntryPrice       float64    `json:"entry_price"`
	CurrentPrice     float64    `json:"current_price"`
	MarketValue      float64    `json:"market_value"`
	UnrealizedPnL    float64    `json:"unrealized_pnl"`
	StopLoss         *float64   `json:"stop_loss,omitempty"`
	ProfitTarget     *float64   `json:"profit_target,omitempty"`
	MaxHoldingDays   *int       `json:"max_holding_days,omitempty"`
}

// Revalue updates the derived fields for a new market price.
func (p *Position) Revalue(price float64) {
	p.CurrentPrice = price
	p.MarketValue = float64(p.Quantity) * price
	p.UnrealizedPnL = (price - p.EntryPrice) * float64(p.Quantity)
}

// AgeDays returns the number of whole days the position has been open.
func (p *Position) AgeDays(now time.Time) int {
	if now.Before(p.EntryDate) {
		return 0
	}
	return int(now.Sub(p.EntryDate).Hours() / 24)
}

// Expired reports whether the position has exceeded its maximum holding period.
func (p *Position) Expired(now time.Time) bool {
	return p.MaxHoldingDays != nil && p.AgeDays(now) > *p.MaxHoldingDays
}

// PortfolioSnapshot is an immutable point-in-time capture of portfolio state.
// The position map is copied at creation and must never be aliased back into
// the live ledger. Snapshots form an append-only history.
type PortfolioSnapshot struct {
	Timestamp           time.Time           `json:"timestamp"`
	Positions           map[string]Position `json:"positions"`
	StrategyAllocations map[string]float64  `json:"strategy_allocations"`
	TotalValue          float64             `json:"total_value"`
	Cash                float64             `json:"cash"`
	DailyPnL            float64             `json:"daily_pnl"`
	TotalPnL            float64             `json:"total_pnl"`
}

// TradingRecommendation is the standardized output of a strategy for one
// ticker in one cycle. Stop loss and profit target are absolute price levels;
// when nil, the risk manager derives them from volatility.
type TradingRecommendation struct {
	ReEvaluationDate *time.Time `json:"re_evaluation_date,omitempty"`
	Ticker           string     `json:"ticker"`
	Action           Action     `json:"action"`
	Strategy         string     `json:"strategy"`
	Reasoning        string     `json:"reasoning,omitempty"`
	Quantity         int64      `json:"quantity"`
	Confidence       float64    `json:"confidence"`
	StopLoss         *float64   `json:"stop_loss,omitempty"`
	ProfitTarget     *float64   `json:"profit_target,omitempty"`
	MaxHoldingDays   int        `json:"max_holding_days"`
}

// Validate checks recommendation invariants before the rebalancer consumes it.
func (r TradingRecommendation) Validate() error {
	if r.Ticker == "" {
		return &ValidationError{Field: "ticker", Reason: "must not be empty"}
	}
	switch r.Action {
	case ActionBuy, ActionSell, ActionHold:
	default:
		return &ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", r.Action)}
	}
	if r.Action != ActionHold && r.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be positive for BUY/SELL"}
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return &ValidationError{Field: "confidence", Reason: "must be in [0,1]"}
	}
	if r.StopLoss != nil && *r.StopLoss <= 0 {
		return &ValidationError{Field: "stop_loss", Reason: "must be positive"}
	}
	return nil
}

// PositionEvaluation is a strategy's verdict on one of its own open positions.
type PositionEvaluation struct {
	Ticker            string         `json:"ticker"`
	RecommendedAction PositionAction `json:"recommended_action"`
	TriggerReason     string         `json:"trigger_reason"`
	CurrentQuantity   int64          `json:"current_quantity"`
	TargetQuantity    int64          `json:"target_quantity"`
	Urgency           float64        `json:"urgency"`
}

// Validate checks evaluation invariants.
func (e PositionEvaluation) Validate() error {
	if e.Ticker == "" {
		return &ValidationError{Field: "ticker", Reason: "must not be empty"}
	}
	if e.TargetQuantity < 0 {
		return &ValidationError{Field: "target_quantity", Reason: "must be non-negative"}
	}
	if e.Urgency < 0 || e.Urgency > 1 {
		return &ValidationError{Field: "urgency", Reason: "must be in [0,1]"}
	}
	return nil
}

// RiskParameters holds the per-strategy risk configuration. Immutable per
// strategy instance.
type RiskParameters struct {
	MaxPositionSize      float64 `json:"max_position_size"`
	StopLossMin          float64 `json:"stop_loss_min"`
	StopLossMax          float64 `json:"stop_loss_max"`
	ProfitMultiplier     float64 `json:"profit_multiplier"`
	MaxPortfolioExposure float64 `json:"max_portfolio_exposure"`
	VolatilityLookback   int     `json:"volatility_lookback"`
}

// DefaultRiskParameters returns the baseline risk configuration used when a
// strategy does not provide its own.
func DefaultRiskParameters() RiskParameters {
	return RiskParameters{
		MaxPositionSize:      0.10,
		StopLossMin:          0.10,
		StopLossMax:          0.30,
		ProfitMultiplier:     2.0,
		MaxPortfolioExposure: 0.95,
		VolatilityLookback:   20,
	}
}

// RiskAlert reports a risk limit violation or concern. Alerts are ephemeral:
// generated per evaluation call and collected into the cycle report.
type RiskAlert struct {
	Timestamp         time.Time `json:"timestamp"`
	Type              string    `json:"type"`
	Severity          Severity  `json:"severity"`
	Message           string    `json:"message"`
	Ticker            string    `json:"ticker,omitempty"`
	Strategy          string    `json:"strategy,omitempty"`
	RecommendedAction string    `json:"recommended_action,omitempty"`
}

// PositionRisk is a read-only projection of per-position risk metrics,
// recomputed every cycle.
type PositionRisk struct {
	Ticker            string  `json:"ticker"`
	DaysToExpiry      *int    `json:"days_to_expiry,omitempty"`
	PositionSize      float64 `json:"position_size"`
	VaR1D             float64 `json:"var_1d"`
	MaxLoss           float64 `json:"max_loss"`
	Volatility        float64 `json:"volatility"`
	CorrelationRisk   float64 `json:"correlation_risk"`
	ConcentrationRisk float64 `json:"concentration_risk"`
}

// Order is a concrete instruction for the execution collaborator. Quantity is
// signed: positive buys, negative sells.
type Order struct {
	ID         string   `json:"id"`
	Ticker     string   `json:"ticker"`
	Strategy   string   `json:"strategy"`
	OrderType  string   `json:"order_type"`
	Reason     string   `json:"reason,omitempty"`
	Quantity   int64    `json:"quantity"`
	LimitPrice *float64 `json:"limit_price,omitempty"`
}

// IsExit reports whether the order reduces or closes an existing position.
func (o Order) IsExit() bool {
	return o.Quantity < 0
}

// ExecutionResult is the broker collaborator's verdict on one order.
type ExecutionResult struct {
	OrderID        string  `json:"order_id"`
	Ticker         string  `json:"ticker"`
	Error          string  `json:"error,omitempty"`
	FillPrice      float64 `json:"fill_price"`
	FilledQuantity int64   `json:"filled_quantity"`
	Filled         bool    `json:"filled"`
}

// Trade records a completed fill for the audit trail and trade history.
type Trade struct {
	ExecutedAt time.Time `json:"executed_at"`
	ID         string    `json:"id"`
	Ticker     string    `json:"ticker"`
	Side       Action    `json:"side"`
	Strategy   string    `json:"strategy"`
	Reason     string    `json:"reason,omitempty"`
	Quantity   int64     `json:"quantity"`
	Price      float64   `json:"price"`
	Value      float64   `json:"value"`
	Cost       float64   `json:"cost"`
}

// Clock supplies the current time. Cycle code takes a Clock instead of
// calling time.Now directly so tests can run against fixed dates.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock is a Clock pinned to a single instant, for tests and replays.
type FixedClock struct {
	Time time.Time
}

// Now returns the pinned instant.
func (c FixedClock) Now() time.Time { return c.Time }
