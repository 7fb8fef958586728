package marketdata

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/domain"
)

func testClock() domain.Clock {
	return domain.FixedClock{Time: time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)}
}

func linearPrices(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestSnapshotPricesAndVolatility(t *testing.T) {
	svc := NewService(20, testClock(), zerolog.Nop())
	svc.SetHistory("AAPL", []float64{100, 102, 101, 103, 105}, []float64{1e6, 1.2e6, 0.9e6, 1.1e6, 1e6})
	svc.SetSector("AAPL", "Technology")

	snap := svc.Snapshot()

	if p, ok := snap.Price("AAPL"); !ok || p != 105 {
		t.Errorf("expected last close 105, got %f (%v)", p, ok)
	}
	if v, ok := snap.Volatility("AAPL"); !ok || v <= 0 {
		t.Errorf("expected positive volatility, got %f (%v)", v, ok)
	}
	if snap.Sector("AAPL") != "Technology" {
		t.Errorf("expected Technology sector, got %s", snap.Sector("AAPL"))
	}
	if av := snap.AverageVolume["AAPL"]; av <= 0 {
		t.Errorf("expected positive average volume, got %f", av)
	}
	if !snap.AsOf.Equal(testClock().Now()) {
		t.Errorf("snapshot timestamp should come from the injected clock")
	}
}

func TestSnapshotSingleBarHasNoVolatility(t *testing.T) {
	svc := NewService(20, testClock(), zerolog.Nop())
	svc.SetHistory("NEW", []float64{50}, nil)

	snap := svc.Snapshot()

	if _, ok := snap.Price("NEW"); !ok {
		t.Error("single bar should still yield a price")
	}
	if _, ok := snap.Volatility("NEW"); ok {
		t.Error("single bar must not yield a volatility entry")
	}
}

func TestSnapshotCorrelationsBothOrderings(t *testing.T) {
	svc := NewService(20, testClock(), zerolog.Nop())
	// Perfectly correlated series.
	svc.SetHistory("A", linearPrices(100, 1, 10), nil)
	svc.SetHistory("B", linearPrices(200, 2, 10), nil)

	snap := svc.Snapshot()

	ab, ok := snap.Correlation("A", "B")
	if !ok {
		t.Fatal("expected correlation entry for A/B")
	}
	ba, ok := snap.Correlation("B", "A")
	if !ok {
		t.Fatal("expected correlation entry for B/A")
	}
	if math.Abs(ab-ba) > 1e-12 {
		t.Errorf("correlation must be symmetric: %f vs %f", ab, ba)
	}
	if ab < 0.99 {
		t.Errorf("expected near-perfect correlation, got %f", ab)
	}
}

func TestSnapshotIsIsolatedFromLaterUpdates(t *testing.T) {
	svc := NewService(20, testClock(), zerolog.Nop())
	svc.SetHistory("AAPL", []float64{100, 101}, nil)

	snap := svc.Snapshot()
	svc.AppendBar("AAPL", 200, 1e6)

	if p := snap.Prices["AAPL"]; p != 101 {
		t.Errorf("snapshot must not see updates made after it was built, got %f", p)
	}
}

func TestAppendBarExtendsHistory(t *testing.T) {
	svc := NewService(20, testClock(), zerolog.Nop())
	svc.SetHistory("MSFT", []float64{400}, []float64{1e6})
	svc.AppendBar("MSFT", 405, 1.5e6)

	h := svc.History("MSFT")
	if len(h) != 2 || h[1] != 405 {
		t.Errorf("unexpected history after append: %v", h)
	}
}
