package domain

import (
	"fmt"
	"time"
)

// MarketSnapshot is an immutable view of market state for one cycle.
// Correlations use "A:B" composite keys stored under both orderings so lookup
// never depends on argument order. The maps must not be mutated after
// construction; the rebalancer treats a snapshot as read-only for the whole
// cycle.
type MarketSnapshot struct {
	AsOf          time.Time          `json:"as_of"`
	Prices        map[string]float64 `json:"prices"`
	Volatilities  map[string]float64 `json:"volatilities"`
	Correlations  map[string]float64 `json:"correlations"`
	Sectors       map[string]string  `json:"sectors"`
	AverageVolume map[string]float64 `json:"average_volume"`
}

// CorrelationKey builds the composite map key for a ticker pair.
func CorrelationKey(a, b string) string {
	return fmt.Sprintf("%s:%s", a, b)
}

// Price returns the quoted price for a ticker.
func (m *MarketSnapshot) Price(ticker string) (float64, bool) {
	p, ok := m.Prices[ticker]
	return p, ok
}

// Volatility returns the annualized volatility for a ticker.
func (m *MarketSnapshot) Volatility(ticker string) (float64, bool) {
	v, ok := m.Volatilities[ticker]
	return v, ok
}

// Correlation returns the pairwise correlation for two tickers. Self
// correlation is always 1. A missing pair returns ok=false; callers decide
// the fallback.
func (m *MarketSnapshot) Correlation(a, b string) (float64, bool) {
	if a == b {
		return 1.0, true
	}
	if c, ok := m.Correlations[CorrelationKey(a, b)]; ok {
		return c, true
	}
	c, ok := m.Correlations[CorrelationKey(b, a)]
	return c, ok
}

// Sector returns the sector for a ticker, or "UNKNOWN" when unmapped.
func (m *MarketSnapshot) Sector(ticker string) string {
	if s, ok := m.Sectors[ticker]; ok && s != "" {
		return s
	}
	return "UNKNOWN"
}
