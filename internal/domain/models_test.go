package domain

import (
	"errors"
	"testing"
	"time"
)

func TestPositionRevalue(t *testing.T) {
	p := Position{Ticker: "AAPL", Quantity: 10, EntryPrice: 100.0}
	p.Revalue(110.0)

	if p.CurrentPrice != 110.0 {
		t.Errorf("expected current price 110.0, got %f", p.CurrentPrice)
	}
	if p.MarketValue != 1100.0 {
		t.Errorf("expected market value 1100.0, got %f", p.MarketValue)
	}
	if p.UnrealizedPnL != 100.0 {
		t.Errorf("expected unrealized PnL 100.0, got %f", p.UnrealizedPnL)
	}

	p.Revalue(90.0)
	if p.UnrealizedPnL != -100.0 {
		t.Errorf("expected unrealized PnL -100.0 after drop, got %f", p.UnrealizedPnL)
	}
}

func TestPositionAgeAndExpiry(t *testing.T) {
	entry := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)
	maxDays := 30
	p := Position{Ticker: "MSFT", Quantity: 5, EntryPrice: 400, EntryDate: entry, MaxHoldingDays: &maxDays}

	tests := []struct {
		name    string
		now     time.Time
		age     int
		expired bool
	}{
		{"same day", entry.Add(2 * time.Hour), 0, false},
		{"ten days", entry.AddDate(0, 0, 10), 10, false},
		{"at limit", entry.AddDate(0, 0, 30), 30, false},
		{"past limit", entry.AddDate(0, 0, 31), 31, true},
		{"before entry", entry.AddDate(0, 0, -1), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.AgeDays(tt.now); got != tt.age {
				t.Errorf("AgeDays = %d, want %d", got, tt.age)
			}
			if got := p.Expired(tt.now); got != tt.expired {
				t.Errorf("Expired = %v, want %v", got, tt.expired)
			}
		})
	}
}

func TestPositionExpiredWithoutLimit(t *testing.T) {
	p := Position{Ticker: "GOOG", EntryDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
	if p.Expired(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("position without MaxHoldingDays should never expire")
	}
}

func TestTradingRecommendationValidate(t *testing.T) {
	negStop := -5.0
	tests := []struct {
		name    string
		rec     TradingRecommendation
		wantErr bool
		field   string
	}{
		{
			name:    "valid buy",
			rec:     TradingRecommendation{Ticker: "AAPL", Action: ActionBuy, Quantity: 10, Confidence: 0.8, Strategy: "momentum"},
			wantErr: false,
		},
		{
			name:    "valid hold with zero quantity",
			rec:     TradingRecommendation{Ticker: "AAPL", Action: ActionHold, Confidence: 0.5, Strategy: "momentum"},
			wantErr: false,
		},
		{
			name:    "empty ticker",
			rec:     TradingRecommendation{Action: ActionBuy, Quantity: 10, Confidence: 0.8},
			wantErr: true,
			field:   "ticker",
		},
		{
			name:    "unknown action",
			rec:     TradingRecommendation{Ticker: "AAPL", Action: "SHORT", Quantity: 10, Confidence: 0.8},
			wantErr: true,
			field:   "action",
		},
		{
			name:    "zero quantity buy",
			rec:     TradingRecommendation{Ticker: "AAPL", Action: ActionBuy, Quantity: 0, Confidence: 0.8},
			wantErr: true,
			field:   "quantity",
		},
		{
			name:    "confidence above one",
			rec:     TradingRecommendation{Ticker: "AAPL", Action: ActionBuy, Quantity: 10, Confidence: 1.2},
			wantErr: true,
			field:   "confidence",
		},
		{
			name:    "negative stop loss",
			rec:     TradingRecommendation{Ticker: "AAPL", Action: ActionBuy, Quantity: 10, Confidence: 0.8, StopLoss: &negStop},
			wantErr: true,
			field:   "stop_loss",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected ValidationError, got %T", err)
				}
				if ve.Field != tt.field {
					t.Errorf("expected field %q, got %q", tt.field, ve.Field)
				}
			}
		})
	}
}

func TestMarketSnapshotCorrelation(t *testing.T) {
	m := &MarketSnapshot{
		Correlations: map[string]float64{
			CorrelationKey("AAPL", "MSFT"): 0.82,
		},
	}

	if c, ok := m.Correlation("AAPL", "MSFT"); !ok || c != 0.82 {
		t.Errorf("forward lookup: got %f, %v", c, ok)
	}
	if c, ok := m.Correlation("MSFT", "AAPL"); !ok || c != 0.82 {
		t.Errorf("reverse lookup: got %f, %v", c, ok)
	}
	if c, ok := m.Correlation("AAPL", "AAPL"); !ok || c != 1.0 {
		t.Errorf("self correlation: got %f, %v", c, ok)
	}
	if _, ok := m.Correlation("AAPL", "TSLA"); ok {
		t.Error("missing pair should return ok=false")
	}
}

func TestMarketSnapshotSector(t *testing.T) {
	m := &MarketSnapshot{Sectors: map[string]string{"AAPL": "Technology"}}
	if got := m.Sector("AAPL"); got != "Technology" {
		t.Errorf("expected Technology, got %s", got)
	}
	if got := m.Sector("XOM"); got != "UNKNOWN" {
		t.Errorf("expected UNKNOWN for unmapped ticker, got %s", got)
	}
}

func TestExecutionFailureUnwrap(t *testing.T) {
	inner := errors.New("broker timeout")
	err := &ExecutionFailure{OrderID: "abc", Ticker: "AAPL", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("ExecutionFailure should unwrap to the broker error")
	}
}

func TestDefaultRiskParameters(t *testing.T) {
	rp := DefaultRiskParameters()
	if rp.MaxPositionSize != 0.10 {
		t.Errorf("expected max position size 0.10, got %f", rp.MaxPositionSize)
	}
	if rp.StopLossMin != 0.10 || rp.StopLossMax != 0.30 {
		t.Errorf("unexpected stop loss bounds: %f, %f", rp.StopLossMin, rp.StopLossMax)
	}
	if rp.ProfitMultiplier != 2.0 {
		t.Errorf("expected profit multiplier 2.0, got %f", rp.ProfitMultiplier)
	}
}
