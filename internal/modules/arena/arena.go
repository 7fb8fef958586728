// Package arena coordinates the competing strategy portfolios: one portfolio
// manager and one rebalancer per strategy, processed independently so a
// misbehaving strategy cannot touch another's ledger.
package arena

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/config"
	"github.com/aristath/arena/internal/domain"
	"github.com/aristath/arena/internal/events"
	"github.com/aristath/arena/internal/modules/marketdata"
	"github.com/aristath/arena/internal/modules/portfolio"
	"github.com/aristath/arena/internal/modules/rebalancing"
	"github.com/aristath/arena/internal/modules/risk"
)

// Entrant is one strategy competing in the arena with its own portfolio and
// rebalancer.
type Entrant struct {
	Strategy   domain.Strategy
	Portfolio  *portfolio.Manager
	Rebalancer *rebalancing.Rebalancer
}

// StrategyStanding is one row of the comparison summary.
type StrategyStanding struct {
	Strategy   string  `json:"strategy"`
	TotalValue float64 `json:"total_value"`
	Cash       float64 `json:"cash"`
	Positions  int     `json:"positions"`
	TotalPnL   float64 `json:"total_pnl"`
	ReturnPct  float64 `json:"return_pct"`
	State      string  `json:"state"`
}

// Arena owns the entrants and drives their cycles.
type Arena struct {
	cfg    *config.Config
	market *marketdata.Service
	risk   *risk.Manager
	broker rebalancing.Broker
	bus    *events.Bus
	clock  domain.Clock
	log    zerolog.Logger

	tradeRecorder portfolio.TradeRecorder
	snapshotStore portfolio.SnapshotStore
	reportStore   rebalancing.ReportStore

	mu       sync.RWMutex
	entrants map[string]*Entrant
}

// NewArena creates an empty arena. bus is optional.
func NewArena(
	cfg *config.Config,
	market *marketdata.Service,
	riskManager *risk.Manager,
	broker rebalancing.Broker,
	bus *events.Bus,
	clock domain.Clock,
	log zerolog.Logger,
) *Arena {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Arena{
		cfg:      cfg,
		market:   market,
		risk:     riskManager,
		broker:   broker,
		bus:      bus,
		clock:    clock,
		log:      log.With().Str("service", "arena").Logger(),
		entrants: make(map[string]*Entrant),
	}
}

// SetTradeRecorder wires trade persistence for entrants added afterwards.
func (a *Arena) SetTradeRecorder(r portfolio.TradeRecorder) { a.tradeRecorder = r }

// SetSnapshotStore wires snapshot persistence for entrants added afterwards.
func (a *Arena) SetSnapshotStore(s portfolio.SnapshotStore) { a.snapshotStore = s }

// SetReportStore wires cycle report persistence for entrants added afterwards.
func (a *Arena) SetReportStore(s rebalancing.ReportStore) { a.reportStore = s }

// AddStrategy enters a strategy into the arena with a fresh portfolio at the
// configured initial capital.
func (a *Arena) AddStrategy(s domain.Strategy) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	name := s.Name()
	if _, exists := a.entrants[name]; exists {
		return fmt.Errorf("strategy %s already entered", name)
	}

	pm := portfolio.NewManager(name, a.cfg.Portfolio, a.clock, a.log)
	if err := pm.SetStrategyAllocation(name, 1.0); err != nil {
		return fmt.Errorf("failed to allocate portfolio to %s: %w", name, err)
	}
	if a.tradeRecorder != nil {
		pm.SetTradeRecorder(a.tradeRecorder)
	}
	if a.snapshotStore != nil {
		pm.SetSnapshotStore(a.snapshotStore)
	}

	rb := rebalancing.NewRebalancer(pm, a.risk, a.broker, a.cfg.Rebalance, a.cfg.Portfolio.TransactionCostPct, a.clock, a.log)
	if a.reportStore != nil {
		rb.SetReportStore(a.reportStore)
	}

	a.entrants[name] = &Entrant{Strategy: s, Portfolio: pm, Rebalancer: rb}
	a.log.Info().Str("strategy", name).Msg("Strategy entered the arena")
	return nil
}

// Portfolio returns the manager for one strategy's portfolio.
func (a *Arena) Portfolio(name string) (*portfolio.Manager, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.entrants[name]
	if !ok {
		return nil, false
	}
	return e.Portfolio, true
}

// Rebalancer returns the rebalancer for one strategy's portfolio.
func (a *Arena) Rebalancer(name string) (*rebalancing.Rebalancer, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.entrants[name]
	if !ok {
		return nil, false
	}
	return e.Rebalancer, true
}

// Names returns the entered strategy names, sorted.
func (a *Arena) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.entrants))
	for name := range a.entrants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UpdatePrices revalues every portfolio against a fresh market snapshot.
func (a *Arena) UpdatePrices() {
	snap := a.market.Snapshot()
	for _, e := range a.list() {
		e.Portfolio.UpdatePositions(snap)
	}
	a.publish(&events.PricesUpdatedData{Tickers: len(snap.Prices)})
}

// RunDueCycles runs a rebalance cycle for every entrant whose schedule or
// drift gate is open. Entrants run in parallel; their ledgers share nothing.
func (a *Arena) RunDueCycles(ctx context.Context) map[string]*rebalancing.CycleReport {
	snap := a.market.Snapshot()
	now := a.clock.Now()

	reports := make(map[string]*rebalancing.CycleReport)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, e := range a.list() {
		due, reason := e.Rebalancer.ShouldRebalance(now)
		if !due {
			a.log.Debug().Str("strategy", e.Strategy.Name()).Str("reason", reason).Msg("Cycle not due")
			continue
		}
		wg.Add(1)
		go func(e *Entrant) {
			defer wg.Done()
			report := a.runCycle(ctx, e, snap)
			mu.Lock()
			reports[e.Strategy.Name()] = report
			mu.Unlock()
		}(e)
	}
	wg.Wait()
	return reports
}

// RunCycleNow runs one entrant's cycle immediately, bypassing the schedule
// gate. Used by the manual trigger endpoint.
func (a *Arena) RunCycleNow(name string) (*rebalancing.CycleReport, error) {
	a.mu.RLock()
	e, ok := a.entrants[name]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no such strategy: %s", name)
	}
	return a.runCycle(context.Background(), e, a.market.Snapshot()), nil
}

func (a *Arena) runCycle(ctx context.Context, e *Entrant, snap *domain.MarketSnapshot) *rebalancing.CycleReport {
	name := e.Strategy.Name()
	positions := e.Portfolio.PositionsByStrategy(name)

	recs, err := e.Strategy.GenerateRecommendations(ctx, snap, positions, a.market.Tickers())
	if err != nil {
		// The cycle still runs so forced exits are not blocked by a
		// broken signal source.
		a.log.Error().Err(err).Str("strategy", name).Msg("Strategy failed to generate recommendations")
		recs = nil
	}

	evals, err := e.Strategy.EvaluatePositions(ctx, snap, positions)
	if err != nil {
		a.log.Error().Err(err).Str("strategy", name).Msg("Strategy failed to evaluate positions")
		evals = nil
	}

	report := e.Rebalancer.RunCycle(ctx,
		map[string][]domain.TradingRecommendation{name: recs},
		map[string][]domain.PositionEvaluation{name: evals},
		map[string]domain.RiskParameters{name: e.Strategy.RiskParams()},
		snap,
	)
	a.publishCycleEvents(report)
	return report
}

// CreateSnapshots records an end-of-day snapshot per portfolio.
func (a *Arena) CreateSnapshots() []domain.PortfolioSnapshot {
	var snaps []domain.PortfolioSnapshot
	for _, e := range a.list() {
		snap := e.Portfolio.CreateSnapshot()
		snaps = append(snaps, snap)
		a.publish(&events.SnapshotCreatedData{
			Portfolio:  e.Portfolio.Name(),
			TotalValue: snap.TotalValue,
			DailyPnL:   snap.DailyPnL,
		})
	}
	return snaps
}

// ScanRiskAlerts runs the risk monitor over every portfolio and publishes
// the alerts. Advisory; nothing is executed from here.
func (a *Arena) ScanRiskAlerts() map[string][]domain.RiskAlert {
	snap := a.market.Snapshot()
	now := a.clock.Now()

	out := make(map[string][]domain.RiskAlert)
	for _, e := range a.list() {
		alerts := a.risk.MonitorRiskLimits(e.Portfolio.Positions(), e.Portfolio.TotalValue(), snap, now)
		if len(alerts) == 0 {
			continue
		}
		out[e.Portfolio.Name()] = alerts
		for _, alert := range alerts {
			a.publish(&events.RiskAlertData{
				Portfolio: e.Portfolio.Name(),
				AlertType: alert.Type,
				Severity:  string(alert.Severity),
				Ticker:    alert.Ticker,
				Message:   alert.Message,
			})
		}
	}
	return out
}

// Summary returns the comparison table, best return first.
func (a *Arena) Summary() []StrategyStanding {
	var standings []StrategyStanding
	for _, e := range a.list() {
		total := e.Portfolio.TotalValue()
		initial := e.Portfolio.InitialCapital()
		standings = append(standings, StrategyStanding{
			Strategy:   e.Strategy.Name(),
			TotalValue: total,
			Cash:       e.Portfolio.Cash(),
			Positions:  len(e.Portfolio.Positions()),
			TotalPnL:   total - initial,
			ReturnPct:  (total - initial) / initial * 100,
			State:      string(e.Rebalancer.State()),
		})
	}
	sort.Slice(standings, func(i, j int) bool {
		return standings[i].ReturnPct > standings[j].ReturnPct
	})
	return standings
}

// ExportStates serializes every portfolio's state bundle for backup, each
// stamped with its rebalancer's last cycle time.
func (a *Arena) ExportStates() (map[string][]byte, error) {
	out := make(map[string][]byte)
	for _, e := range a.list() {
		data, err := e.Portfolio.ExportState(e.Rebalancer.LastRebalance())
		if err != nil {
			return nil, fmt.Errorf("failed to export %s state: %w", e.Portfolio.Name(), err)
		}
		out[e.Portfolio.Name()] = data
	}
	return out, nil
}

// ImportState restores one portfolio from a backup bundle and reinstates the
// rebalancer's week marker from the bundle's last rebalance date. A bundle
// exported before any cycle ran leaves the current week due.
func (a *Arena) ImportState(name string, data []byte) error {
	a.mu.RLock()
	e, ok := a.entrants[name]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no such strategy: %s", name)
	}
	lastRebalance, err := e.Portfolio.ImportState(data)
	if err != nil {
		return err
	}
	e.Rebalancer.RestoreCycleMarker(lastRebalance, e.Portfolio.CurrentAllocations())
	return nil
}

func (a *Arena) list() []*Entrant {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.entrants))
	for name := range a.entrants {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Entrant, 0, len(names))
	for _, name := range names {
		out = append(out, a.entrants[name])
	}
	return out
}

func (a *Arena) publish(data events.EventData) {
	if a.bus == nil {
		return
	}
	a.bus.Publish(events.NewEvent(data))
}

func (a *Arena) publishCycleEvents(report *rebalancing.CycleReport) {
	if a.bus == nil {
		return
	}
	a.publish(&events.CycleCompletedData{
		Portfolio:      report.Portfolio,
		FinalState:     string(report.FinalState),
		Executed:       report.Executed,
		OrdersExecuted: report.OrdersExecuted,
		OrdersFailed:   report.OrdersFailed,
		Turnover:       report.Turnover,
	})
	for _, outcome := range report.Outcomes {
		if !outcome.Filled {
			continue
		}
		side := "BUY"
		quantity := outcome.Order.Quantity
		if quantity < 0 {
			side = "SELL"
			quantity = -quantity
		}
		a.publish(&events.TradeExecutedData{
			Ticker:   outcome.Order.Ticker,
			Side:     side,
			Strategy: outcome.Order.Strategy,
			Quantity: quantity,
			Price:    outcome.FillPrice,
			OrderID:  outcome.Order.ID,
		})
	}
}
