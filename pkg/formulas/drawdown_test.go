package formulas

import (
	"math"
	"testing"
)

func TestCalculateDrawdownMetrics(t *testing.T) {
	values := []float64{100, 120, 90, 110, 80}
	m := CalculateDrawdownMetrics(values)
	if m == nil {
		t.Fatal("expected metrics, got nil")
	}

	// Peak 120 on day 1, closing at the trough.
	if math.Abs(m.MaxDrawdown-40.0/120.0) > 1e-9 {
		t.Errorf("expected max drawdown %v, got %v", 40.0/120.0, m.MaxDrawdown)
	}
	if math.Abs(m.CurrentDrawdown-40.0/120.0) > 1e-9 {
		t.Errorf("expected current drawdown %v, got %v", 40.0/120.0, m.CurrentDrawdown)
	}
	if m.DaysInDrawdown != 3 {
		t.Errorf("expected 3 days in drawdown, got %d", m.DaysInDrawdown)
	}
	if m.PeakValue != 120 {
		t.Errorf("expected peak 120, got %v", m.PeakValue)
	}
	if m.CurrentValue != 80 {
		t.Errorf("expected current value 80, got %v", m.CurrentValue)
	}
}

func TestCalculateDrawdownMetricsAtFreshPeak(t *testing.T) {
	// A new high clears the current drawdown but keeps the historical max.
	m := CalculateDrawdownMetrics([]float64{100, 80, 120})
	if m == nil {
		t.Fatal("expected metrics, got nil")
	}
	if math.Abs(m.MaxDrawdown-0.2) > 1e-9 {
		t.Errorf("expected max drawdown 0.2, got %v", m.MaxDrawdown)
	}
	if m.CurrentDrawdown != 0 {
		t.Errorf("expected zero current drawdown, got %v", m.CurrentDrawdown)
	}
	if m.DaysInDrawdown != 0 {
		t.Errorf("expected 0 days in drawdown, got %d", m.DaysInDrawdown)
	}

	if CalculateDrawdownMetrics([]float64{100}) != nil {
		t.Error("expected nil for a single value")
	}
}

func TestCalculateVolatility(t *testing.T) {
	vol := CalculateVolatility([]float64{100, 110, 99})
	if vol == nil {
		t.Fatal("expected volatility, got nil")
	}
	// Returns +10% then -10%: sample stddev sqrt(0.02), annualized.
	want := math.Sqrt(0.02 * 252)
	if math.Abs(*vol-want) > 1e-9 {
		t.Errorf("expected volatility %v, got %v", want, *vol)
	}

	if CalculateVolatility([]float64{100}) != nil {
		t.Error("expected nil for a single price")
	}
}
