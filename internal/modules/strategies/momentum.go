package strategies

import (
	"context"
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/domain"
)

// MomentumConfig tunes the momentum strategy's indicators.
type MomentumConfig struct {
	ROCLookback   int     // rate-of-change lookback in bars
	FastMA        int     // fast simple moving average
	SlowMA        int     // slow simple moving average
	ROCThreshold  float64 // minimum ROC percent to enter
	TradeNotional float64 // desired position value per entry
}

// DefaultMomentumConfig returns the standard 20/50 trend-following setup.
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		ROCLookback:   20,
		FastMA:        20,
		SlowMA:        50,
		ROCThreshold:  2.0,
		TradeNotional: 10000,
	}
}

// Momentum buys strength: positive rate of change with the fast moving
// average above the slow one. It exits when momentum turns negative.
type Momentum struct {
	history HistoryProvider
	cfg     MomentumConfig
	params  domain.RiskParameters
	log     zerolog.Logger
}

// NewMomentum creates a momentum strategy.
func NewMomentum(history HistoryProvider, cfg MomentumConfig, params domain.RiskParameters, log zerolog.Logger) *Momentum {
	return &Momentum{
		history: history,
		cfg:     cfg,
		params:  params,
		log:     log.With().Str("strategy", "momentum").Logger(),
	}
}

// Name returns the unique strategy identifier.
func (s *Momentum) Name() string { return "momentum" }

// RiskParams returns the strategy's risk configuration.
func (s *Momentum) RiskParams() domain.RiskParameters { return s.params }

// GenerateRecommendations emits BUYs for candidates in an uptrend and SELLs
// for held positions whose momentum has turned.
func (s *Momentum) GenerateRecommendations(
	ctx context.Context,
	market *domain.MarketSnapshot,
	positions map[string]domain.Position,
	candidates []string,
) ([]domain.TradingRecommendation, error) {
	var recs []domain.TradingRecommendation

	for _, ticker := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, held := positions[ticker]; held {
			continue
		}
		roc, fast, slow, ok := s.indicators(ticker)
		if !ok {
			continue
		}
		price, hasPrice := market.Price(ticker)
		if !hasPrice || price <= 0 {
			continue
		}
		if roc < s.cfg.ROCThreshold || fast <= slow {
			continue
		}

		quantity := int64(math.Floor(s.cfg.TradeNotional / price))
		if quantity <= 0 {
			continue
		}
		confidence := clamp(0.5+roc/100, 0.5, 0.95)
		recs = append(recs, domain.TradingRecommendation{
			Ticker:     ticker,
			Action:     domain.ActionBuy,
			Strategy:   s.Name(),
			Quantity:   quantity,
			Confidence: confidence,
			Reasoning:  fmt.Sprintf("ROC %.1f%% with fast MA above slow", roc),
		})
	}

	for ticker, pos := range positions {
		roc, fast, slow, ok := s.indicators(ticker)
		if !ok {
			continue
		}
		if roc < 0 || fast < slow {
			recs = append(recs, domain.TradingRecommendation{
				Ticker:     ticker,
				Action:     domain.ActionSell,
				Strategy:   s.Name(),
				Quantity:   pos.Quantity,
				Confidence: clamp(0.5-roc/100, 0.5, 0.95),
				Reasoning:  fmt.Sprintf("momentum reversal, ROC %.1f%%", roc),
			})
		}
	}
	return recs, nil
}

// EvaluatePositions reviews open positions against the trend indicators.
func (s *Momentum) EvaluatePositions(
	ctx context.Context,
	market *domain.MarketSnapshot,
	positions map[string]domain.Position,
) ([]domain.PositionEvaluation, error) {
	var evals []domain.PositionEvaluation
	for ticker, pos := range positions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		eval := domain.PositionEvaluation{
			Ticker:            ticker,
			RecommendedAction: domain.PositionHold,
			CurrentQuantity:   pos.Quantity,
			TargetQuantity:    pos.Quantity,
		}
		roc, fast, slow, ok := s.indicators(ticker)
		switch {
		case !ok:
			eval.TriggerReason = "insufficient history"
		case roc < 0:
			eval.RecommendedAction = domain.PositionSell
			eval.TargetQuantity = 0
			eval.TriggerReason = fmt.Sprintf("negative momentum, ROC %.1f%%", roc)
			eval.Urgency = clamp(-roc/10, 0.3, 1.0)
		case fast < slow:
			eval.RecommendedAction = domain.PositionDecrease
			eval.TargetQuantity = pos.Quantity / 2
			eval.TriggerReason = "fast MA crossed below slow MA"
			eval.Urgency = 0.5
		default:
			eval.TriggerReason = "trend intact"
		}
		evals = append(evals, eval)
	}
	return evals, nil
}

// indicators returns the latest ROC and moving averages for a ticker, or
// ok=false when history is too short.
func (s *Momentum) indicators(ticker string) (roc, fast, slow float64, ok bool) {
	closes := s.history.History(ticker)
	if len(closes) <= s.cfg.SlowMA {
		return 0, 0, 0, false
	}
	rocSeries := talib.Roc(closes, s.cfg.ROCLookback)
	fastSeries := talib.Sma(closes, s.cfg.FastMA)
	slowSeries := talib.Sma(closes, s.cfg.SlowMA)
	return rocSeries[len(rocSeries)-1], fastSeries[len(fastSeries)-1], slowSeries[len(slowSeries)-1], true
}
