package formulas

import (
	"math"
	"testing"
)

func TestKellyFraction(t *testing.T) {
	tests := []struct {
		name    string
		winRate float64
		avgWin  float64
		avgLoss float64
		want    float64
	}{
		{"even odds even payoff", 0.5, 1.0, 1.0, 0.0},
		{"favorable", 0.6, 1.0, 1.0, 0.2},
		{"favorable payoff ratio", 0.5, 2.0, 1.0, 0.25},
		{"negative edge clamps to zero", 0.4, 1.0, 1.0, 0.0},
		{"no losses observed", 0.6, 1.0, 0.0, 0.0},
		{"degenerate win rate", 1.0, 2.0, 1.0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KellyFraction(tt.winRate, tt.avgWin, tt.avgLoss)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("KellyFraction(%v, %v, %v) = %v, want %v", tt.winRate, tt.avgWin, tt.avgLoss, got, tt.want)
			}
		})
	}
}

func TestClampedKellyFraction(t *testing.T) {
	got := ClampedKellyFraction(0.7, 3.0, 1.0, 0.10)
	if got != 0.10 {
		t.Errorf("expected clamp to 0.10, got %v", got)
	}

	got = ClampedKellyFraction(0.55, 1.0, 1.0, 0.10)
	if math.Abs(got-0.1) > 1e-9 {
		t.Errorf("expected 0.1, got %v", got)
	}
}

func TestCalculateReturns(t *testing.T) {
	prices := []float64{100, 110, 99}
	returns := CalculateReturns(prices)

	if len(returns) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(returns))
	}
	if math.Abs(returns[0]-0.10) > 1e-9 {
		t.Errorf("expected first return 0.10, got %v", returns[0])
	}
	if math.Abs(returns[1]-(-0.10)) > 1e-9 {
		t.Errorf("expected second return -0.10, got %v", returns[1])
	}
}

func TestCalculateMaxDrawdown(t *testing.T) {
	values := []float64{100, 120, 90, 110, 80}
	dd := CalculateMaxDrawdown(values)
	if dd == nil {
		t.Fatal("expected drawdown, got nil")
	}
	// Peak 120, trough 80.
	want := (120.0 - 80.0) / 120.0
	if math.Abs(*dd-want) > 1e-9 {
		t.Errorf("expected max drawdown %v, got %v", want, *dd)
	}
}
