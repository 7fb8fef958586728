// Package marketdata maintains price history and derives the per-cycle
// market snapshot consumed by the risk manager and rebalancer.
package marketdata

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/domain"
	"github.com/aristath/arena/pkg/formulas"
)

// Service ingests daily bars and exposes an immutable MarketSnapshot.
// History updates and snapshot builds are serialized by a mutex; the
// returned snapshot itself is never mutated after construction.
type Service struct {
	mu sync.Mutex

	prices  map[string][]float64 // daily closes, oldest first
	volumes map[string][]float64 // daily volumes, oldest first
	sectors map[string]string

	lookback int // trading days used for volatility and correlation
	clock    domain.Clock
	log      zerolog.Logger
}

// NewService creates a market data service.
func NewService(lookback int, clock domain.Clock, log zerolog.Logger) *Service {
	if lookback <= 1 {
		lookback = 20
	}
	return &Service{
		prices:   make(map[string][]float64),
		volumes:  make(map[string][]float64),
		sectors:  make(map[string]string),
		lookback: lookback,
		clock:    clock,
		log:      log.With().Str("service", "marketdata").Logger(),
	}
}

// SetHistory replaces the full price/volume history for a ticker.
func (s *Service) SetHistory(ticker string, closes, volumes []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[ticker] = append([]float64(nil), closes...)
	if volumes != nil {
		s.volumes[ticker] = append([]float64(nil), volumes...)
	}
}

// AppendBar appends one daily close (and volume) to a ticker's history.
func (s *Service) AppendBar(ticker string, close, volume float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[ticker] = append(s.prices[ticker], close)
	s.volumes[ticker] = append(s.volumes[ticker], volume)
}

// SetSector maps a ticker to its sector.
func (s *Service) SetSector(ticker, sector string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sectors[ticker] = sector
}

// History returns a copy of the close history for a ticker.
func (s *Service) History(ticker string) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.prices[ticker]...)
}

// Tickers returns all tickers with at least one bar.
func (s *Service) Tickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.prices))
	for t := range s.prices {
		out = append(out, t)
	}
	return out
}

// Snapshot builds an immutable market snapshot from current history.
// Tickers with fewer than two closes get no volatility entry; pairs without
// enough overlapping history get no correlation entry. Consumers decide the
// fallback for missing data.
func (s *Service) Snapshot() *domain.MarketSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &domain.MarketSnapshot{
		AsOf:          s.now(),
		Prices:        make(map[string]float64),
		Volatilities:  make(map[string]float64),
		Correlations:  make(map[string]float64),
		Sectors:       make(map[string]string),
		AverageVolume: make(map[string]float64),
	}

	returns := make(map[string][]float64)

	for ticker, closes := range s.prices {
		if len(closes) == 0 {
			continue
		}
		snap.Prices[ticker] = closes[len(closes)-1]

		window := tail(closes, s.lookback+1)
		if len(window) >= 2 {
			returns[ticker] = formulas.CalculateReturns(window)
			if vol := formulas.CalculateVolatility(window); vol != nil {
				snap.Volatilities[ticker] = *vol
			}
		}

		if vols := s.volumes[ticker]; len(vols) > 0 {
			snap.AverageVolume[ticker] = formulas.Mean(tail(vols, s.lookback))
		}
	}

	for ticker, sector := range s.sectors {
		snap.Sectors[ticker] = sector
	}

	// Pairwise correlations over the shared return window, stored under both
	// key orderings so lookups are order independent.
	tickers := make([]string, 0, len(returns))
	for t := range returns {
		tickers = append(tickers, t)
	}
	for i := 0; i < len(tickers); i++ {
		for j := i + 1; j < len(tickers); j++ {
			a, b := tickers[i], tickers[j]
			ra, rb := alignTails(returns[a], returns[b])
			if len(ra) < 2 {
				continue
			}
			corr := formulas.Correlation(ra, rb)
			snap.Correlations[domain.CorrelationKey(a, b)] = corr
			snap.Correlations[domain.CorrelationKey(b, a)] = corr
		}
	}

	s.log.Debug().
		Int("tickers", len(snap.Prices)).
		Int("pairs", len(snap.Correlations)/2).
		Msg("built market snapshot")

	return snap
}

func (s *Service) now() time.Time {
	if s.clock != nil {
		return s.clock.Now()
	}
	return time.Now()
}

// tail returns the last n elements of xs (or all of xs when shorter).
func tail(xs []float64, n int) []float64 {
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}

// alignTails trims both series to their common trailing length.
func alignTails(a, b []float64) ([]float64, []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	return tail(a, n), tail(b, n)
}
