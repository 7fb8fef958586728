// Package risk implements the risk evaluation layer: trade validation with
// downsize-before-reject, volatility-normalized position sizing, parametric
// portfolio VaR and the risk limit scan feeding cycle reports. The manager
// holds no portfolio state; positions are borrowed per call.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/arena/internal/config"
	"github.com/aristath/arena/internal/domain"
	"github.com/aristath/arena/pkg/formulas"
)

// tradingDaysPerYear converts annualized volatility to the 1-day horizon.
const tradingDaysPerYear = 252

// Manager evaluates trades and portfolios against the configured hard limits.
type Manager struct {
	cfg config.RiskConfig
	log zerolog.Logger
}

// NewManager creates a risk manager.
func NewManager(cfg config.RiskConfig, log zerolog.Logger) *Manager {
	return &Manager{
		cfg: cfg,
		log: log.With().Str("service", "risk").Logger(),
	}
}

// ValidateRecommendation checks a BUY against the hard limits in order:
// position size, sector exposure, correlation, portfolio VaR. Breaches are
// resolved by downsizing where feasible; a breach that survives downsizing
// rejects the trade with a HIGH alert. SELLs reduce exposure and pass
// through untouched. The possibly downsized recommendation is returned with
// the acceptance verdict and any alerts raised.
func (m *Manager) ValidateRecommendation(
	rec domain.TradingRecommendation,
	positions map[string]domain.Position,
	portfolioValue float64,
	market *domain.MarketSnapshot,
	params domain.RiskParameters,
	now time.Time,
) (domain.TradingRecommendation, bool, []domain.RiskAlert) {
	var alerts []domain.RiskAlert

	if rec.Action != domain.ActionBuy {
		return rec, true, nil
	}
	if portfolioValue <= 0 {
		return rec, false, []domain.RiskAlert{m.alert(now, "INVALID_PORTFOLIO", domain.SeverityHigh,
			"portfolio value is not positive", rec.Ticker, rec.Strategy, "reject trade")}
	}

	price, ok := market.Price(rec.Ticker)
	if !ok || price <= 0 {
		return rec, false, []domain.RiskAlert{m.alert(now, "DATA_UNAVAILABLE", domain.SeverityHigh,
			fmt.Sprintf("no price for %s", rec.Ticker), rec.Ticker, rec.Strategy, "exclude ticker this cycle")}
	}

	// (a) Position size: existing value plus the proposed lot must stay within
	// the strategy's max position fraction. Downsize when feasible.
	existing := 0.0
	if pos, held := positions[rec.Ticker]; held {
		existing = pos.MarketValue
	}
	maxValue := params.MaxPositionSize * portfolioValue
	if existing+float64(rec.Quantity)*price > maxValue+1e-9 {
		allowed := int64(math.Floor((maxValue - existing) / price))
		if allowed <= 0 {
			alerts = append(alerts, m.alert(now, "POSITION_SIZE", domain.SeverityHigh,
				fmt.Sprintf("%s already at position size limit", rec.Ticker), rec.Ticker, rec.Strategy, "reject trade"))
			return rec, false, alerts
		}
		alerts = append(alerts, m.alert(now, "POSITION_SIZE", domain.SeverityMedium,
			fmt.Sprintf("downsized %s from %d to %d shares", rec.Ticker, rec.Quantity, allowed),
			rec.Ticker, rec.Strategy, "downsize"))
		rec.Quantity = allowed
	}

	// (b) Sector exposure after the trade.
	sector := market.Sector(rec.Ticker)
	sectorValue := 0.0
	for _, pos := range positions {
		if market.Sector(pos.Ticker) == sector && pos.Ticker != rec.Ticker {
			sectorValue += pos.MarketValue
		}
	}
	sectorValue += existing
	maxSector := m.cfg.MaxSectorExposure * portfolioValue
	if sectorValue+float64(rec.Quantity)*price > maxSector+1e-9 {
		allowed := int64(math.Floor((maxSector - sectorValue) / price))
		if allowed <= 0 {
			alerts = append(alerts, m.alert(now, "SECTOR_EXPOSURE", domain.SeverityHigh,
				fmt.Sprintf("sector %s at exposure limit", sector), rec.Ticker, rec.Strategy, "reject trade"))
			return rec, false, alerts
		}
		alerts = append(alerts, m.alert(now, "SECTOR_EXPOSURE", domain.SeverityMedium,
			fmt.Sprintf("downsized %s to %d shares to respect %s sector limit", rec.Ticker, allowed, sector),
			rec.Ticker, rec.Strategy, "downsize"))
		rec.Quantity = allowed
	}

	// (c) Correlation with existing long positions. Flagged, not rejected.
	for _, pos := range positions {
		if pos.Ticker == rec.Ticker {
			continue
		}
		if corr, known := market.Correlation(rec.Ticker, pos.Ticker); known && math.Abs(corr) > m.cfg.MaxCorrelation {
			alerts = append(alerts, m.alert(now, "CORRELATION_CONCENTRATION", domain.SeverityMedium,
				fmt.Sprintf("%s correlates %.2f with held %s", rec.Ticker, corr, pos.Ticker),
				rec.Ticker, rec.Strategy, "review concentration"))
		}
	}

	// (d) Portfolio VaR ceiling after the trade, with one downsizing pass.
	for attempt := 0; ; attempt++ {
		varAfter := m.varWithTrade(positions, portfolioValue, market, rec.Ticker, rec.Quantity, price)
		if varAfter <= m.cfg.MaxPortfolioVaR+1e-12 {
			break
		}
		if attempt > 0 {
			alerts = append(alerts, m.alert(now, "PORTFOLIO_VAR", domain.SeverityHigh,
				fmt.Sprintf("trade keeps portfolio VaR at %.4f above limit %.4f", varAfter, m.cfg.MaxPortfolioVaR),
				rec.Ticker, rec.Strategy, "reject trade"))
			return rec, false, alerts
		}
		scaled := int64(math.Floor(float64(rec.Quantity) * m.cfg.MaxPortfolioVaR / varAfter))
		if scaled <= 0 {
			alerts = append(alerts, m.alert(now, "PORTFOLIO_VAR", domain.SeverityHigh,
				fmt.Sprintf("portfolio VaR %.4f leaves no room for %s", varAfter, rec.Ticker),
				rec.Ticker, rec.Strategy, "reject trade"))
			return rec, false, alerts
		}
		alerts = append(alerts, m.alert(now, "PORTFOLIO_VAR", domain.SeverityMedium,
			fmt.Sprintf("downsized %s to %d shares to respect VaR limit", rec.Ticker, scaled),
			rec.Ticker, rec.Strategy, "downsize"))
		rec.Quantity = scaled
	}

	return rec, true, alerts
}

// CalculateOptimalPositionSize sizes a new entry as the smaller of the
// volatility-normalized budget and the plain budget cap:
//
//	risk_budget = max_position_size * portfolio_value
//	shares_vol  = floor(risk_budget / (price * max(volatility, floor)))
//	shares_cap  = floor(risk_budget / price)
//
// Zero or missing volatility falls back to the configured floor.
func (m *Manager) CalculateOptimalPositionSize(ticker string, portfolioValue float64, market *domain.MarketSnapshot, params domain.RiskParameters) int64 {
	price, ok := market.Price(ticker)
	if !ok || price <= 0 || portfolioValue <= 0 {
		return 0
	}

	vol := m.volatilityOrFloor(market, ticker)
	riskBudget := params.MaxPositionSize * portfolioValue

	sharesVol := int64(math.Floor(riskBudget / (price * vol)))
	sharesCap := int64(math.Floor(riskBudget / price))
	if sharesVol < sharesCap {
		return maxInt64(sharesVol, 0)
	}
	return maxInt64(sharesCap, 0)
}

// CalculatePortfolioVaR computes the 1-day parametric VaR as a fraction of
// portfolio value using the quadratic form z * sqrt(w' Sigma w). Weights are
// position market values over portfolio value (cash carries no risk).
// Missing correlation pairs count as independent.
func (m *Manager) CalculatePortfolioVaR(positions map[string]domain.Position, portfolioValue float64, market *domain.MarketSnapshot, confidence float64) float64 {
	if len(positions) == 0 || portfolioValue <= 0 {
		return 0
	}

	tickers := make([]string, 0, len(positions))
	for t := range positions {
		tickers = append(tickers, t)
	}

	n := len(tickers)
	weights := mat.NewVecDense(n, nil)
	sigma := mat.NewSymDense(n, nil)

	for i, ti := range tickers {
		weights.SetVec(i, positions[ti].MarketValue/portfolioValue)
		volI := m.volatilityOrFloor(market, ti) / math.Sqrt(tradingDaysPerYear)
		for j := i; j < n; j++ {
			tj := tickers[j]
			volJ := m.volatilityOrFloor(market, tj) / math.Sqrt(tradingDaysPerYear)
			corr := 0.0
			if i == j {
				corr = 1.0
			} else if c, known := market.Correlation(ti, tj); known {
				corr = c
			}
			sigma.SetSym(i, j, corr*volI*volJ)
		}
	}

	quad := mat.Inner(weights, sigma, weights)
	if quad < 0 {
		quad = 0
	}
	return zScore(confidence) * math.Sqrt(quad)
}

// CalculateStopLossPrice derives the stop from entry price and volatility:
// entry * (1 - clamp(k*volatility, stop_loss_min, stop_loss_max)).
func (m *Manager) CalculateStopLossPrice(entry, volatility float64, params domain.RiskParameters) float64 {
	distance := clamp(m.cfg.VolatilityMultiplier*volatility, params.StopLossMin, params.StopLossMax)
	return entry * (1 - distance)
}

// CalculateProfitTarget places the target at profit_multiplier times the
// stop distance above entry.
func (m *Manager) CalculateProfitTarget(entry, stopLoss float64, params domain.RiskParameters) float64 {
	return entry + params.ProfitMultiplier*(entry-stopLoss)
}

// ShouldTriggerStopLoss is the authoritative stop trigger for long positions.
func (m *Manager) ShouldTriggerStopLoss(pos domain.Position, price float64) bool {
	return pos.StopLoss != nil && price <= *pos.StopLoss
}

// RecalculateStops suggests raised trailing stops for positions whose price
// has advanced. A stop never moves down. Advisory; the caller applies them.
func (m *Manager) RecalculateStops(positions map[string]domain.Position, market *domain.MarketSnapshot, params domain.RiskParameters) map[string]float64 {
	updated := make(map[string]float64)
	for ticker, pos := range positions {
		price, ok := market.Price(ticker)
		if !ok || price <= 0 {
			continue
		}
		candidate := m.CalculateStopLossPrice(price, m.volatilityOrFloor(market, ticker), params)
		if pos.StopLoss == nil || candidate > *pos.StopLoss {
			updated[ticker] = candidate
		}
	}
	return updated
}

// KellyAdvisoryCap derives the Kelly position fraction from realized trade
// statistics, clamped to [0, max_position_size]. Advisory only; never the
// sole sizing input.
func (m *Manager) KellyAdvisoryCap(winRate, avgWin, avgLoss float64, params domain.RiskParameters) float64 {
	return formulas.ClampedKellyFraction(winRate, avgWin, avgLoss, params.MaxPositionSize)
}

// MonitorRiskLimits scans the whole portfolio and returns the alert list for
// reporting. Mutates nothing.
func (m *Manager) MonitorRiskLimits(positions map[string]domain.Position, portfolioValue float64, market *domain.MarketSnapshot, now time.Time) []domain.RiskAlert {
	var alerts []domain.RiskAlert
	if portfolioValue <= 0 {
		return alerts
	}

	if v := m.CalculatePortfolioVaR(positions, portfolioValue, market, m.cfg.VaRConfidence); v > m.cfg.MaxPortfolioVaR {
		alerts = append(alerts, m.alert(now, "PORTFOLIO_VAR", domain.SeverityHigh,
			fmt.Sprintf("portfolio VaR %.4f exceeds limit %.4f", v, m.cfg.MaxPortfolioVaR), "", "", "reduce exposure"))
	}

	for sector, value := range m.SectorExposures(positions, market) {
		if value/portfolioValue > m.cfg.MaxSectorExposure {
			alerts = append(alerts, m.alert(now, "SECTOR_EXPOSURE", domain.SeverityHigh,
				fmt.Sprintf("sector %s at %.1f%% of portfolio", sector, value/portfolioValue*100), "", "", "reduce sector exposure"))
		}
	}

	for ticker, pos := range positions {
		if pos.MarketValue/portfolioValue > m.cfg.MaxSectorExposure {
			alerts = append(alerts, m.alert(now, "CONCENTRATION", domain.SeverityMedium,
				fmt.Sprintf("%s alone is %.1f%% of portfolio", ticker, pos.MarketValue/portfolioValue*100),
				ticker, pos.Strategy, "trim position"))
		}
	}

	for a, posA := range positions {
		for b := range positions {
			if a >= b {
				continue
			}
			if corr, known := market.Correlation(a, b); known && math.Abs(corr) > m.cfg.MaxCorrelation {
				alerts = append(alerts, m.alert(now, "CORRELATION_CONCENTRATION", domain.SeverityLow,
					fmt.Sprintf("held pair %s/%s correlates %.2f", a, b, corr), a, posA.Strategy, "review concentration"))
			}
		}
	}

	return alerts
}

// SectorExposures sums position market values per sector.
func (m *Manager) SectorExposures(positions map[string]domain.Position, market *domain.MarketSnapshot) map[string]float64 {
	out := make(map[string]float64)
	for _, pos := range positions {
		out[market.Sector(pos.Ticker)] += pos.MarketValue
	}
	return out
}

// PositionRisks recomputes the read-only per-position risk projection.
func (m *Manager) PositionRisks(positions map[string]domain.Position, portfolioValue float64, market *domain.MarketSnapshot, now time.Time) []domain.PositionRisk {
	risks := make([]domain.PositionRisk, 0, len(positions))
	z := zScore(m.cfg.VaRConfidence)

	for ticker, pos := range positions {
		vol := m.volatilityOrFloor(market, ticker)
		dailyVol := vol / math.Sqrt(tradingDaysPerYear)

		r := domain.PositionRisk{
			Ticker:     ticker,
			Volatility: vol,
			VaR1D:      z * dailyVol * pos.MarketValue,
		}
		if portfolioValue > 0 {
			r.PositionSize = pos.MarketValue / portfolioValue
			r.ConcentrationRisk = r.PositionSize / m.cfg.MaxSectorExposure
		}
		if pos.StopLoss != nil && pos.Quantity > 0 {
			r.MaxLoss = (pos.CurrentPrice - *pos.StopLoss) * float64(pos.Quantity)
		}
		if pos.MaxHoldingDays != nil {
			remaining := *pos.MaxHoldingDays - pos.AgeDays(now)
			r.DaysToExpiry = &remaining
		}

		// Correlation risk: highest absolute correlation with any other holding.
		for other := range positions {
			if other == ticker {
				continue
			}
			if corr, known := market.Correlation(ticker, other); known {
				if abs := math.Abs(corr); abs > r.CorrelationRisk {
					r.CorrelationRisk = abs
				}
			}
		}

		risks = append(risks, r)
	}
	return risks
}

// varWithTrade computes portfolio VaR as if the proposed lot were held.
func (m *Manager) varWithTrade(positions map[string]domain.Position, portfolioValue float64, market *domain.MarketSnapshot, ticker string, quantity int64, price float64) float64 {
	combined := make(map[string]domain.Position, len(positions)+1)
	for k, v := range positions {
		combined[k] = v
	}
	pos := combined[ticker]
	pos.Ticker = ticker
	pos.Quantity += quantity
	pos.MarketValue += float64(quantity) * price
	combined[ticker] = pos

	return m.CalculatePortfolioVaR(combined, portfolioValue, market, m.cfg.VaRConfidence)
}

func (m *Manager) volatilityOrFloor(market *domain.MarketSnapshot, ticker string) float64 {
	if vol, ok := market.Volatility(ticker); ok && vol > m.cfg.VolatilityFloor {
		return vol
	}
	return m.cfg.VolatilityFloor
}

func (m *Manager) alert(now time.Time, alertType string, severity domain.Severity, message, ticker, strategy, action string) domain.RiskAlert {
	return domain.RiskAlert{
		Timestamp:         now,
		Type:              alertType,
		Severity:          severity,
		Message:           message,
		Ticker:            ticker,
		Strategy:          strategy,
		RecommendedAction: action,
	}
}

// zScore maps a confidence level to the standard normal quantile used by the
// parametric VaR. Levels between the anchors round down to the nearest one.
func zScore(confidence float64) float64 {
	switch {
	case confidence >= 0.99:
		return 2.326
	case confidence >= 0.975:
		return 1.960
	case confidence >= 0.95:
		return 1.645
	case confidence >= 0.90:
		return 1.282
	default:
		return 1.645
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
