package formulas

import (
	"math"
)

// CalculateSharpeRatio calculates the annualized Sharpe Ratio
//
// Sharpe Ratio Formula:
//
//	Sharpe = (Portfolio Return - Risk-free Rate) / Standard Deviation of Returns
//	Annualized: Sharpe * sqrt(252) for daily returns
//
// Args:
//
//	returns: Array of periodic returns (daily, monthly, etc.)
//	riskFreeRate: Risk-free rate (annual, as decimal, e.g., 0.02 for 2%)
//	periodsPerYear: Number of periods per year (252 for daily, 12 for monthly)
//
// Returns:
//
//	Sharpe ratio or nil if insufficient data
func CalculateSharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) *float64 {
	if len(returns) < 2 {
		return nil
	}

	meanReturn := Mean(returns)

	stdDev := StdDev(returns)
	if stdDev == 0 {
		return nil
	}

	periodicRiskFree := riskFreeRate / float64(periodsPerYear)

	sharpe := (meanReturn - periodicRiskFree) / stdDev
	annualizedSharpe := sharpe * math.Sqrt(float64(periodsPerYear))

	return &annualizedSharpe
}

// CalculateSharpeFromValues is a convenience function that calculates the
// Sharpe ratio directly from a daily portfolio value series
func CalculateSharpeFromValues(values []float64, riskFreeRate float64) *float64 {
	if len(values) < 2 {
		return nil
	}

	returns := CalculateReturns(values)

	return CalculateSharpeRatio(returns, riskFreeRate, 252)
}
