package formulas

// KellyFraction calculates the Kelly criterion position fraction
//
// Kelly Formula:
//
//	f = W - (1 - W) / R
//	where W = win rate and R = avg win / avg loss
//
// The raw Kelly fraction is aggressive, so callers clamp it to their own
// position-size cap. Returns 0 when inputs are degenerate (no losses
// observed, non-positive ratio).
func KellyFraction(winRate, avgWin, avgLoss float64) float64 {
	if winRate <= 0 || winRate >= 1 {
		return 0
	}
	if avgWin <= 0 || avgLoss <= 0 {
		return 0
	}

	ratio := avgWin / avgLoss
	f := winRate - (1-winRate)/ratio
	if f < 0 {
		return 0
	}
	return f
}

// ClampedKellyFraction applies an upper cap to the Kelly fraction.
func ClampedKellyFraction(winRate, avgWin, avgLoss, cap float64) float64 {
	f := KellyFraction(winRate, avgWin, avgLoss)
	if f > cap {
		return cap
	}
	return f
}
