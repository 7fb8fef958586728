package risk

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/config"
	"github.com/aristath/arena/internal/domain"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxPortfolioVaR:      0.02,
		MaxSectorExposure:    0.25,
		MaxCorrelation:       0.70,
		VaRConfidence:        0.95,
		VolatilityMultiplier: 2.0,
		VolatilityFloor:      0.05,
	}
}

func newTestManager() *Manager {
	return NewManager(testRiskConfig(), zerolog.Nop())
}

func testNow() time.Time {
	return time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)
}

func buyRec(ticker string, qty int64, confidence float64) domain.TradingRecommendation {
	return domain.TradingRecommendation{
		Ticker:     ticker,
		Action:     domain.ActionBuy,
		Strategy:   "momentum",
		Quantity:   qty,
		Confidence: confidence,
	}
}

func singleTickerMarket(ticker string, price, vol float64) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Prices:       map[string]float64{ticker: price},
		Volatilities: map[string]float64{ticker: vol},
		Sectors:      map[string]string{ticker: "Technology"},
		Correlations: map[string]float64{},
	}
}

func TestValidateAcceptsTradeExactlyAtSizeBoundary(t *testing.T) {
	m := newTestManager()
	market := singleTickerMarket("AAPL", 150.0, 0.20)
	params := domain.DefaultRiskParameters()
	params.MaxPositionSize = 0.15

	// 100 * 150 = 15000 = exactly 15% of 100000.
	rec, accepted, alerts := m.ValidateRecommendation(buyRec("AAPL", 100, 0.8), nil, 100000, market, params, testNow())

	if !accepted {
		t.Fatalf("trade at the boundary must be accepted, alerts: %+v", alerts)
	}
	if rec.Quantity != 100 {
		t.Errorf("trade at the boundary must not be downsized, got %d", rec.Quantity)
	}
	for _, a := range alerts {
		if a.Type == "POSITION_SIZE" {
			t.Errorf("unexpected position size alert: %+v", a)
		}
	}
}

func TestValidateDownsizesOversizedBuy(t *testing.T) {
	m := newTestManager()
	market := singleTickerMarket("AAPL", 150.0, 0.20)
	params := domain.DefaultRiskParameters() // max position size 0.10

	// 200 * 150 = 30000 = 30% of 100000; limit is 10% = 66 shares.
	rec, accepted, alerts := m.ValidateRecommendation(buyRec("AAPL", 200, 0.8), nil, 100000, market, params, testNow())

	if !accepted {
		t.Fatalf("oversized buy should be downsized, not rejected, alerts: %+v", alerts)
	}
	if rec.Quantity != 66 {
		t.Errorf("expected downsize to 66 shares, got %d", rec.Quantity)
	}

	found := false
	for _, a := range alerts {
		if a.Type == "POSITION_SIZE" && a.Severity == domain.SeverityMedium {
			found = true
		}
	}
	if !found {
		t.Error("expected a MEDIUM position size alert for the downsize")
	}
}

func TestValidateRejectsWhenAlreadyAtLimit(t *testing.T) {
	m := newTestManager()
	market := singleTickerMarket("AAPL", 150.0, 0.20)
	params := domain.DefaultRiskParameters()

	positions := map[string]domain.Position{
		"AAPL": {Ticker: "AAPL", Strategy: "momentum", Quantity: 67, MarketValue: 10050, CurrentPrice: 150},
	}

	_, accepted, alerts := m.ValidateRecommendation(buyRec("AAPL", 10, 0.8), positions, 100000, market, params, testNow())

	if accepted {
		t.Fatal("buy at an exhausted position limit must be rejected")
	}
	if len(alerts) == 0 || alerts[len(alerts)-1].Severity != domain.SeverityHigh {
		t.Errorf("rejection must carry a HIGH alert, got %+v", alerts)
	}
}

func TestValidateSectorExposure(t *testing.T) {
	m := newTestManager()
	market := &domain.MarketSnapshot{
		Prices:       map[string]float64{"AAPL": 100.0, "MSFT": 100.0},
		Volatilities: map[string]float64{"AAPL": 0.2, "MSFT": 0.2},
		Sectors:      map[string]string{"AAPL": "Technology", "MSFT": "Technology"},
		Correlations: map[string]float64{},
	}
	params := domain.DefaultRiskParameters()

	// Sector already holds 20% of a 100k portfolio; limit is 25%.
	positions := map[string]domain.Position{
		"MSFT": {Ticker: "MSFT", Strategy: "momentum", Quantity: 200, MarketValue: 20000, CurrentPrice: 100},
	}

	// 100 shares would take the sector to 30%; expect downsize to 50.
	rec, accepted, _ := m.ValidateRecommendation(buyRec("AAPL", 100, 0.8), positions, 100000, market, params, testNow())
	if !accepted {
		t.Fatal("sector breach resolvable by downsizing must not reject")
	}
	if rec.Quantity != 50 {
		t.Errorf("expected downsize to 50 shares for sector limit, got %d", rec.Quantity)
	}
}

func TestValidateFlagsHighCorrelation(t *testing.T) {
	m := newTestManager()
	market := &domain.MarketSnapshot{
		Prices:       map[string]float64{"AAPL": 100.0, "MSFT": 100.0},
		Volatilities: map[string]float64{"AAPL": 0.2, "MSFT": 0.2},
		Sectors:      map[string]string{"AAPL": "Technology", "MSFT": "Software"},
		Correlations: map[string]float64{domain.CorrelationKey("AAPL", "MSFT"): 0.9},
	}
	params := domain.DefaultRiskParameters()

	positions := map[string]domain.Position{
		"MSFT": {Ticker: "MSFT", Strategy: "momentum", Quantity: 50, MarketValue: 5000, CurrentPrice: 100},
	}

	_, accepted, alerts := m.ValidateRecommendation(buyRec("AAPL", 50, 0.8), positions, 100000, market, params, testNow())
	if !accepted {
		t.Fatal("high correlation flags but does not reject")
	}

	found := false
	for _, a := range alerts {
		if a.Type == "CORRELATION_CONCENTRATION" {
			found = true
		}
	}
	if !found {
		t.Error("expected a correlation concentration alert")
	}
}

func TestValidateRejectsOnUnresolvableVaR(t *testing.T) {
	cfg := testRiskConfig()
	cfg.MaxPortfolioVaR = 1e-9
	m := NewManager(cfg, zerolog.Nop())

	market := singleTickerMarket("AAPL", 150.0, 0.40)
	params := domain.DefaultRiskParameters()

	_, accepted, alerts := m.ValidateRecommendation(buyRec("AAPL", 10, 0.8), nil, 100000, market, params, testNow())
	if accepted {
		t.Fatal("trade must be rejected when no quantity satisfies the VaR limit")
	}
	high := false
	for _, a := range alerts {
		if a.Type == "PORTFOLIO_VAR" && a.Severity == domain.SeverityHigh {
			high = true
		}
	}
	if !high {
		t.Errorf("expected HIGH VaR alert, got %+v", alerts)
	}
}

func TestValidatePassesSellsThrough(t *testing.T) {
	m := newTestManager()
	market := singleTickerMarket("AAPL", 150.0, 0.40)
	rec := domain.TradingRecommendation{Ticker: "AAPL", Action: domain.ActionSell, Strategy: "momentum", Quantity: 1000, Confidence: 0.9}

	out, accepted, alerts := m.ValidateRecommendation(rec, nil, 100000, market, domain.DefaultRiskParameters(), testNow())
	if !accepted || out.Quantity != 1000 || len(alerts) != 0 {
		t.Errorf("sells must pass through untouched: %+v %v %+v", out, accepted, alerts)
	}
}

func TestValidateRejectsMissingPrice(t *testing.T) {
	m := newTestManager()
	market := &domain.MarketSnapshot{Prices: map[string]float64{}}

	_, accepted, alerts := m.ValidateRecommendation(buyRec("GHOST", 10, 0.8), nil, 100000, market, domain.DefaultRiskParameters(), testNow())
	if accepted {
		t.Fatal("missing price must reject the ticker for this cycle")
	}
	if len(alerts) != 1 || alerts[0].Type != "DATA_UNAVAILABLE" {
		t.Errorf("expected DATA_UNAVAILABLE alert, got %+v", alerts)
	}
}

func TestCalculateOptimalPositionSize(t *testing.T) {
	m := newTestManager()
	params := domain.DefaultRiskParameters() // max position size 0.10

	tests := []struct {
		name string
		vol  float64
		want int64
	}{
		// budget 10000 at price 100; cap = 100 shares
		{"low volatility hits the cap", 0.50, 100},
		{"high volatility shrinks the size", 2.00, 50},
		{"zero volatility uses the floor", 0.0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			market := singleTickerMarket("AAPL", 100.0, tt.vol)
			got := m.CalculateOptimalPositionSize("AAPL", 100000, market, params)
			if got != tt.want {
				t.Errorf("got %d shares, want %d", got, tt.want)
			}
		})
	}

	if got := m.CalculateOptimalPositionSize("GHOST", 100000, &domain.MarketSnapshot{}, params); got != 0 {
		t.Errorf("missing price must size to 0, got %d", got)
	}
}

func TestPortfolioVaRProperties(t *testing.T) {
	m := newTestManager()

	positions := map[string]domain.Position{
		"AAPL": {Ticker: "AAPL", MarketValue: 20000},
		"MSFT": {Ticker: "MSFT", MarketValue: 20000},
	}
	marketAt := func(vol float64) *domain.MarketSnapshot {
		return &domain.MarketSnapshot{
			Prices:       map[string]float64{"AAPL": 100, "MSFT": 100},
			Volatilities: map[string]float64{"AAPL": vol, "MSFT": 0.2},
			Correlations: map[string]float64{domain.CorrelationKey("AAPL", "MSFT"): 0.5},
		}
	}

	low := m.CalculatePortfolioVaR(positions, 100000, marketAt(0.2), 0.95)
	high := m.CalculatePortfolioVaR(positions, 100000, marketAt(0.4), 0.95)

	if low < 0 || high < 0 {
		t.Fatalf("VaR must be non-negative: %f, %f", low, high)
	}
	if high <= low {
		t.Errorf("VaR must not decrease as volatility rises: %f vs %f", low, high)
	}

	if v := m.CalculatePortfolioVaR(nil, 100000, marketAt(0.2), 0.95); v != 0 {
		t.Errorf("empty portfolio has zero VaR, got %f", v)
	}
}

func TestPortfolioVaRMissingCorrelationTreatedIndependent(t *testing.T) {
	m := newTestManager()
	positions := map[string]domain.Position{
		"AAPL": {Ticker: "AAPL", MarketValue: 20000},
		"MSFT": {Ticker: "MSFT", MarketValue: 20000},
	}

	correlated := &domain.MarketSnapshot{
		Volatilities: map[string]float64{"AAPL": 0.3, "MSFT": 0.3},
		Correlations: map[string]float64{domain.CorrelationKey("AAPL", "MSFT"): 1.0},
	}
	uncorrelated := &domain.MarketSnapshot{
		Volatilities: map[string]float64{"AAPL": 0.3, "MSFT": 0.3},
		Correlations: map[string]float64{},
	}

	vc := m.CalculatePortfolioVaR(positions, 100000, correlated, 0.95)
	vu := m.CalculatePortfolioVaR(positions, 100000, uncorrelated, 0.95)

	if vu >= vc {
		t.Errorf("independent positions must diversify: %f should be below %f", vu, vc)
	}
	// Perfect correlation makes VaR additive: sqrt((w1+w2)^2 sigma^2).
	dailyVol := 0.3 / math.Sqrt(252)
	want := 1.645 * 0.4 * dailyVol
	if math.Abs(vc-want) > 1e-9 {
		t.Errorf("expected additive VaR %f, got %f", want, vc)
	}
}

func TestStopLossAndProfitTarget(t *testing.T) {
	m := newTestManager()
	params := domain.DefaultRiskParameters() // band [0.10, 0.30], multiplier 2

	tests := []struct {
		name       string
		vol        float64
		wantStop   float64
		wantTarget float64
	}{
		// k=2: distance = clamp(2*vol, 0.10, 0.30)
		{"clamped to min band", 0.04, 90.0, 120.0},
		{"inside band", 0.10, 80.0, 140.0},
		{"clamped to max band", 0.25, 70.0, 160.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stop := m.CalculateStopLossPrice(100.0, tt.vol, params)
			if math.Abs(stop-tt.wantStop) > 1e-9 {
				t.Errorf("stop: got %f, want %f", stop, tt.wantStop)
			}
			target := m.CalculateProfitTarget(100.0, stop, params)
			if math.Abs(target-tt.wantTarget) > 1e-9 {
				t.Errorf("target: got %f, want %f", target, tt.wantTarget)
			}
		})
	}
}

func TestShouldTriggerStopLoss(t *testing.T) {
	m := newTestManager()
	stop := 90.0
	pos := domain.Position{Ticker: "AAPL", EntryPrice: 100, StopLoss: &stop}

	if !m.ShouldTriggerStopLoss(pos, 89.0) {
		t.Error("price below stop must trigger")
	}
	if !m.ShouldTriggerStopLoss(pos, 90.0) {
		t.Error("price at stop must trigger")
	}
	if m.ShouldTriggerStopLoss(pos, 91.0) {
		t.Error("price above stop must not trigger")
	}
	if m.ShouldTriggerStopLoss(domain.Position{Ticker: "AAPL"}, 1.0) {
		t.Error("position without a stop never triggers")
	}
}

func TestRecalculateStopsNeverLowers(t *testing.T) {
	m := newTestManager()
	params := domain.DefaultRiskParameters()

	highStop := 95.0
	lowStop := 50.0
	positions := map[string]domain.Position{
		"HIGH": {Ticker: "HIGH", StopLoss: &highStop},
		"LOW":  {Ticker: "LOW", StopLoss: &lowStop},
	}
	market := &domain.MarketSnapshot{
		Prices:       map[string]float64{"HIGH": 100.0, "LOW": 100.0},
		Volatilities: map[string]float64{"HIGH": 0.05, "LOW": 0.05},
	}

	updated := m.RecalculateStops(positions, market, params)

	// Candidate stop at price 100, vol 0.05 -> distance 0.10 -> 90.
	if _, ok := updated["HIGH"]; ok {
		t.Error("stop must never be lowered")
	}
	if got, ok := updated["LOW"]; !ok || math.Abs(got-90.0) > 1e-9 {
		t.Errorf("expected raised stop 90.0, got %f (%v)", got, ok)
	}
}

func TestKellyAdvisoryCapClamps(t *testing.T) {
	m := newTestManager()
	params := domain.DefaultRiskParameters()

	if got := m.KellyAdvisoryCap(0.7, 3.0, 1.0, params); got != params.MaxPositionSize {
		t.Errorf("raw Kelly above the cap must clamp to %f, got %f", params.MaxPositionSize, got)
	}
	if got := m.KellyAdvisoryCap(0.4, 1.0, 1.0, params); got != 0 {
		t.Errorf("negative edge must clamp to 0, got %f", got)
	}
}

func TestMonitorRiskLimits(t *testing.T) {
	m := newTestManager()
	market := &domain.MarketSnapshot{
		Prices:       map[string]float64{"AAPL": 100, "MSFT": 100},
		Volatilities: map[string]float64{"AAPL": 3.0, "MSFT": 3.0},
		Sectors:      map[string]string{"AAPL": "Technology", "MSFT": "Technology"},
		Correlations: map[string]float64{domain.CorrelationKey("AAPL", "MSFT"): 0.95},
	}
	positions := map[string]domain.Position{
		"AAPL": {Ticker: "AAPL", Strategy: "momentum", MarketValue: 30000, Quantity: 300, CurrentPrice: 100},
		"MSFT": {Ticker: "MSFT", Strategy: "momentum", MarketValue: 20000, Quantity: 200, CurrentPrice: 100},
	}

	alerts := m.MonitorRiskLimits(positions, 100000, market, testNow())

	types := make(map[string]bool)
	for _, a := range alerts {
		types[a.Type] = true
	}
	for _, want := range []string{"PORTFOLIO_VAR", "SECTOR_EXPOSURE", "CONCENTRATION", "CORRELATION_CONCENTRATION"} {
		if !types[want] {
			t.Errorf("expected %s alert, got %+v", want, alerts)
		}
	}

	if got := m.MonitorRiskLimits(nil, 0, market, testNow()); len(got) != 0 {
		t.Errorf("empty portfolio yields no alerts, got %+v", got)
	}
}

func TestPositionRisks(t *testing.T) {
	m := newTestManager()
	stop := 90.0
	maxDays := 30
	positions := map[string]domain.Position{
		"AAPL": {
			Ticker: "AAPL", Strategy: "momentum", Quantity: 100,
			CurrentPrice: 100, MarketValue: 10000,
			StopLoss: &stop, MaxHoldingDays: &maxDays,
			EntryDate: testNow().AddDate(0, 0, -10),
		},
	}
	market := singleTickerMarket("AAPL", 100.0, 0.25)

	risks := m.PositionRisks(positions, 100000, market, testNow())
	if len(risks) != 1 {
		t.Fatalf("expected one risk entry, got %d", len(risks))
	}

	r := risks[0]
	if math.Abs(r.PositionSize-0.10) > 1e-9 {
		t.Errorf("expected position size 0.10, got %f", r.PositionSize)
	}
	if math.Abs(r.MaxLoss-1000.0) > 1e-9 {
		t.Errorf("expected max loss to stop 1000, got %f", r.MaxLoss)
	}
	if r.DaysToExpiry == nil || *r.DaysToExpiry != 20 {
		t.Errorf("expected 20 days to expiry, got %v", r.DaysToExpiry)
	}
	if r.VaR1D <= 0 {
		t.Errorf("expected positive 1-day VaR, got %f", r.VaR1D)
	}
}
