package strategies

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/domain"
	"github.com/aristath/arena/pkg/formulas"
)

// MeanReversionConfig tunes the RSI thresholds.
type MeanReversionConfig struct {
	RSIPeriod     int
	Oversold      float64 // RSI at or below enters
	Overbought    float64 // RSI at or above exits
	TradeNotional float64 // desired position value per entry
}

// DefaultMeanReversionConfig returns the standard 14-period 30/70 setup.
func DefaultMeanReversionConfig() MeanReversionConfig {
	return MeanReversionConfig{
		RSIPeriod:     14,
		Oversold:      30,
		Overbought:    70,
		TradeNotional: 10000,
	}
}

// MeanReversion buys oversold tickers and sells them back once the RSI
// recovers into overbought territory.
type MeanReversion struct {
	history HistoryProvider
	cfg     MeanReversionConfig
	params  domain.RiskParameters
	log     zerolog.Logger
}

// NewMeanReversion creates a mean reversion strategy.
func NewMeanReversion(history HistoryProvider, cfg MeanReversionConfig, params domain.RiskParameters, log zerolog.Logger) *MeanReversion {
	return &MeanReversion{
		history: history,
		cfg:     cfg,
		params:  params,
		log:     log.With().Str("strategy", "meanrev").Logger(),
	}
}

// Name returns the unique strategy identifier.
func (s *MeanReversion) Name() string { return "meanrev" }

// RiskParams returns the strategy's risk configuration.
func (s *MeanReversion) RiskParams() domain.RiskParameters { return s.params }

// GenerateRecommendations emits BUYs for oversold candidates and SELLs for
// held positions that have reverted.
func (s *MeanReversion) GenerateRecommendations(
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
		rsi := formulas.CalculateRSI(s.history.History(ticker), s.cfg.RSIPeriod)
		if rsi == nil || *rsi > s.cfg.Oversold {
			continue
		}
		price, hasPrice := market.Price(ticker)
		if !hasPrice || price <= 0 {
			continue
		}
		quantity := int64(math.Floor(s.cfg.TradeNotional / price))
		if quantity <= 0 {
			continue
		}
		confidence := clamp(0.5+(s.cfg.Oversold-*rsi)/100, 0.5, 0.95)
		recs = append(recs, domain.TradingRecommendation{
			Ticker:     ticker,
			Action:     domain.ActionBuy,
			Strategy:   s.Name(),
			Quantity:   quantity,
			Confidence: confidence,
			Reasoning:  fmt.Sprintf("RSI %.1f oversold", *rsi),
		})
	}

	for ticker, pos := range positions {
		rsi := formulas.CalculateRSI(s.history.History(ticker), s.cfg.RSIPeriod)
		if rsi == nil || *rsi < s.cfg.Overbought {
			continue
		}
		recs = append(recs, domain.TradingRecommendation{
			Ticker:     ticker,
			Action:     domain.ActionSell,
			Strategy:   s.Name(),
			Quantity:   pos.Quantity,
			Confidence: clamp(0.5+(*rsi-s.cfg.Overbought)/100, 0.5, 0.95),
			Reasoning:  fmt.Sprintf("RSI %.1f overbought", *rsi),
		})
	}
	return recs, nil
}

// EvaluatePositions reviews open positions against the RSI.
func (s *MeanReversion) EvaluatePositions(
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
		rsi := formulas.CalculateRSI(s.history.History(ticker), s.cfg.RSIPeriod)
		switch {
		case rsi == nil:
			eval.TriggerReason = "insufficient history"
		case *rsi >= s.cfg.Overbought:
			eval.RecommendedAction = domain.PositionSell
			eval.TargetQuantity = 0
			eval.TriggerReason = fmt.Sprintf("RSI %.1f overbought", *rsi)
			eval.Urgency = clamp((*rsi-s.cfg.Overbought)/30, 0.3, 1.0)
		case *rsi <= s.cfg.Oversold:
			eval.RecommendedAction = domain.PositionIncrease
			eval.TargetQuantity = pos.Quantity + pos.Quantity/2
			eval.TriggerReason = fmt.Sprintf("RSI %.1f still oversold", *rsi)
			eval.Urgency = 0.4
		default:
			eval.TriggerReason = "within neutral band"
		}
		evals = append(evals, eval)
	}
	return evals, nil
}
