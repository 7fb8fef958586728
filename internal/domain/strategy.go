package domain

import "context"

// Strategy is the capability set every trading strategy must provide. The
// engine never looks past this interface: a strategy owns its name, its risk
// configuration, and its opinions about candidates and its own open positions.
type Strategy interface {
	// Name returns the unique strategy identifier used for position ownership.
	Name() string

	// RiskParams returns the strategy's risk configuration.
	RiskParams() RiskParameters

	// GenerateRecommendations produces trade ideas for the candidate tickers
	// given current market state and the strategy's open positions.
	GenerateRecommendations(ctx context.Context, market *MarketSnapshot, positions map[string]Position, candidates []string) ([]TradingRecommendation, error)

	// EvaluatePositions reviews the strategy's open positions and returns a
	// verdict per ticker.
	EvaluatePositions(ctx context.Context, market *MarketSnapshot, positions map[string]Position) ([]PositionEvaluation, error)
}
