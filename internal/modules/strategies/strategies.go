// Package strategies provides the rule-based trading strategies competing in
// the arena. Each strategy implements domain.Strategy and owns its risk
// configuration; the engine never depends on concrete strategy types.
package strategies

// HistoryProvider supplies closing price history for indicator calculations.
// Implemented by the market data service; declared here so strategies do not
// import it.
type HistoryProvider interface {
	History(ticker string) []float64
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
