// Package portfolio implements the position and cash ledger for one paper
// portfolio. All mutations go through the Manager, which serializes access
// with a mutex so rebalance cycles and API reads never interleave.
package portfolio

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/config"
	"github.com/aristath/arena/internal/domain"
)

// ForcedExit marks a position whose exit condition has triggered. The ledger
// only reports these; the rebalancer decides when to act on them.
type ForcedExit struct {
	Ticker   string            `json:"ticker"`
	Strategy string            `json:"strategy"`
	Reason   domain.ExitReason `json:"reason"`
	Price    float64           `json:"price"`
	Level    float64           `json:"level"`
}

// TradeRecorder persists executed trades. Optional; nil disables persistence.
type TradeRecorder interface {
	Record(trade domain.Trade) error
}

// SnapshotStore persists portfolio snapshots. Optional; nil disables persistence.
type SnapshotStore interface {
	Save(strategy string, snap domain.PortfolioSnapshot) error
}

// Manager owns the cash balance and open positions of one portfolio.
// Positions are keyed by ticker; each ticker has exactly one owning strategy.
// The mutex guards cash, positions, allocations and trade history.
type Manager struct {
	mu sync.Mutex

	cash              float64
	initialCapital    float64
	positions         map[string]domain.Position
	allocations       map[string]float64
	trades            []domain.Trade
	lastSnapshotValue float64
	lastSnapshotAt    time.Time

	name  string
	cfg   config.PortfolioConfig
	clock domain.Clock
	log   zerolog.Logger

	tradeRecorder TradeRecorder
	snapshotStore SnapshotStore
}

// NewManager creates a portfolio ledger seeded with the initial capital.
func NewManager(name string, cfg config.PortfolioConfig, clock domain.Clock, log zerolog.Logger) *Manager {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Manager{
		cash:              cfg.InitialCapital,
		initialCapital:    cfg.InitialCapital,
		positions:         make(map[string]domain.Position),
		allocations:       make(map[string]float64),
		lastSnapshotValue: cfg.InitialCapital,
		name:              name,
		cfg:               cfg,
		clock:             clock,
		log:               log.With().Str("service", "portfolio").Str("portfolio", name).Logger(),
	}
}

// SetTradeRecorder wires trade persistence.
func (m *Manager) SetTradeRecorder(r TradeRecorder) { m.tradeRecorder = r }

// SetSnapshotStore wires snapshot persistence.
func (m *Manager) SetSnapshotStore(s SnapshotStore) { m.snapshotStore = s }

// Name returns the portfolio identifier.
func (m *Manager) Name() string { return m.name }

// Buy opens or adds to a position. Adding to an existing position blends the
// entry price volume-weighted and keeps the original entry date. The stop
// loss and profit target are replaced only when the caller provides them.
func (m *Manager) Buy(strategy, ticker string, quantity int64, price float64, stopLoss, profitTarget *float64, maxHoldingDays *int, reason string) (domain.Trade, error) {
	if quantity <= 0 || price <= 0 {
		return domain.Trade{}, &domain.ValidationError{Field: "quantity/price", Reason: "must be positive"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	value := float64(quantity) * price
	fee := m.transactionCost(value)

	if value+fee > m.availableCashLocked() {
		return domain.Trade{}, fmt.Errorf("buy %d %s at %.2f: %w", quantity, ticker, price, domain.ErrInsufficientCapital)
	}

	pos, exists := m.positions[ticker]
	if !exists {
		if err := m.checkPositionLimitsLocked(strategy); err != nil {
			return domain.Trade{}, err
		}
		pos = domain.Position{
			Ticker:     ticker,
			Strategy:   strategy,
			EntryDate:  m.clock.Now(),
			EntryPrice: price,
		}
	} else if pos.Strategy != strategy {
		return domain.Trade{}, &domain.ValidationError{
			Field:  "strategy",
			Reason: fmt.Sprintf("%s is owned by %s", ticker, pos.Strategy),
		}
	} else {
		// Volume-weighted entry price on adds.
		totalQty := pos.Quantity + quantity
		pos.EntryPrice = (pos.EntryPrice*float64(pos.Quantity) + value) / float64(totalQty)
	}

	pos.Quantity += quantity
	if stopLoss != nil {
		pos.StopLoss = stopLoss
	}
	if profitTarget != nil {
		pos.ProfitTarget = profitTarget
	}
	if maxHoldingDays != nil {
		pos.MaxHoldingDays = maxHoldingDays
	}
	pos.Revalue(price)

	m.positions[ticker] = pos
	m.cash -= value + fee

	trade := m.recordTradeLocked(ticker, domain.ActionBuy, strategy, quantity, price, value, fee, reason)

	m.log.Info().
		Str("ticker", ticker).
		Str("strategy", strategy).
		Int64("quantity", quantity).
		Float64("price", price).
		Float64("cash", m.cash).
		Msg("bought")

	return trade, nil
}

// Sell reduces or closes a position. Selling more shares than held fails the
// order. The position is removed when quantity reaches zero.
func (m *Manager) Sell(strategy, ticker string, quantity int64, price float64, reason string) (domain.Trade, error) {
	if quantity <= 0 || price <= 0 {
		return domain.Trade{}, &domain.ValidationError{Field: "quantity/price", Reason: "must be positive"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pos, exists := m.positions[ticker]
	if !exists {
		return domain.Trade{}, fmt.Errorf("sell %s: %w", ticker, domain.ErrNoSuchPosition)
	}

	if quantity > pos.Quantity {
		return domain.Trade{}, fmt.Errorf("sell %d %s with only %d held: %w",
			quantity, ticker, pos.Quantity, domain.ErrNoSuchPosition)
	}

	value := float64(quantity) * price
	fee := m.transactionCost(value)

	pos.Quantity -= quantity
	if pos.Quantity == 0 {
		delete(m.positions, ticker)
	} else {
		pos.Revalue(price)
		m.positions[ticker] = pos
	}
	m.cash += value - fee

	trade := m.recordTradeLocked(ticker, domain.ActionSell, strategy, quantity, price, value, fee, reason)

	m.log.Info().
		Str("ticker", ticker).
		Str("strategy", strategy).
		Int64("quantity", quantity).
		Float64("price", price).
		Float64("cash", m.cash).
		Msg("sold")

	return trade, nil
}

// UpdatePositions revalues every position against current market prices.
// Tickers missing from the snapshot keep their last known price.
func (m *Manager) UpdatePositions(market *domain.MarketSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for ticker, pos := range m.positions {
		if price, ok := market.Price(ticker); ok && price > 0 {
			pos.Revalue(price)
			m.positions[ticker] = pos
		}
	}
}

// CheckStopLossesAndTargets scans positions for triggered exit conditions.
// The scan is advisory: it mutates nothing and reports at most one exit per
// ticker, stop loss taking precedence over profit target, which takes
// precedence over holding-period expiry.
func (m *Manager) CheckStopLossesAndTargets(market *domain.MarketSnapshot) []ForcedExit {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	var exits []ForcedExit

	for ticker, pos := range m.positions {
		price, ok := market.Price(ticker)
		if !ok {
			price = pos.CurrentPrice
		}

		switch {
		case pos.StopLoss != nil && price <= *pos.StopLoss:
			exits = append(exits, ForcedExit{
				Ticker: ticker, Strategy: pos.Strategy,
				Reason: domain.ExitStopLoss, Price: price, Level: *pos.StopLoss,
			})
		case pos.ProfitTarget != nil && price >= *pos.ProfitTarget:
			exits = append(exits, ForcedExit{
				Ticker: ticker, Strategy: pos.Strategy,
				Reason: domain.ExitProfitTarget, Price: price, Level: *pos.ProfitTarget,
			})
		case pos.Expired(now):
			exits = append(exits, ForcedExit{
				Ticker: ticker, Strategy: pos.Strategy,
				Reason: domain.ExitMaxHoldingPeriod, Price: price,
			})
		}
	}

	return exits
}

// CalculateAvailableCapital returns the capital a strategy may still deploy:
// its allocation fraction of total value minus its current exposure, floored
// at zero.
func (m *Manager) CalculateAvailableCapital(strategy string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	exposure := 0.0
	for _, pos := range m.positions {
		if pos.Strategy == strategy {
			exposure += pos.MarketValue
		}
	}
	available := m.allocations[strategy]*m.totalValueLocked() - exposure
	return math.Max(0, available)
}

// AvailableCash returns the cash deployable after the reserve, floored at zero.
func (m *Manager) AvailableCash() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.availableCashLocked()
}

// TotalValue returns cash plus the market value of all positions.
func (m *Manager) TotalValue() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalValueLocked()
}

// InitialCapital returns the capital the portfolio was seeded with.
func (m *Manager) InitialCapital() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialCapital
}

// Cash returns the current cash balance.
func (m *Manager) Cash() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cash
}

// Positions returns a copy of all open positions keyed by ticker.
func (m *Manager) Positions() map[string]domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyPositionsLocked()
}

// Position returns one position by ticker.
func (m *Manager) Position(ticker string) (domain.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[ticker]
	return pos, ok
}

// PositionsByStrategy returns a copy of the positions owned by one strategy.
func (m *Manager) PositionsByStrategy(strategy string) map[string]domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]domain.Position)
	for ticker, pos := range m.positions {
		if pos.Strategy == strategy {
			out[ticker] = pos
		}
	}
	return out
}

// SetStrategyAllocation assigns a capital fraction to a strategy. The sum of
// all allocations must stay at or below 1.
func (m *Manager) SetStrategyAllocation(strategy string, fraction float64) error {
	if fraction < 0 || fraction > 1 {
		return &domain.ValidationError{Field: "fraction", Reason: "must be in [0,1]"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sum := fraction
	for name, f := range m.allocations {
		if name != strategy {
			sum += f
		}
	}
	if sum > 1+1e-9 {
		return &domain.ValidationError{
			Field:  "fraction",
			Reason: fmt.Sprintf("allocations would sum to %.4f", sum),
		}
	}

	m.allocations[strategy] = fraction
	return nil
}

// StrategyAllocations returns a copy of the configured capital fractions.
func (m *Manager) StrategyAllocations() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]float64, len(m.allocations))
	for k, v := range m.allocations {
		out[k] = v
	}
	return out
}

// CurrentAllocations returns each strategy's realized share of total value.
func (m *Manager) CurrentAllocations() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.totalValueLocked()
	out := make(map[string]float64)
	if total <= 0 {
		return out
	}
	for _, pos := range m.positions {
		out[pos.Strategy] += pos.MarketValue / total
	}
	return out
}

// CreateSnapshot captures current state and persists it when a store is
// wired. Daily P&L is measured against the previous snapshot's total value;
// total P&L is the unrealized P&L summed over open positions.
func (m *Manager) CreateSnapshot() domain.PortfolioSnapshot {
	m.mu.Lock()

	total := m.totalValueLocked()
	unrealized := 0.0
	for _, pos := range m.positions {
		unrealized += pos.UnrealizedPnL
	}
	snap := domain.PortfolioSnapshot{
		Timestamp:           m.clock.Now(),
		Positions:           m.copyPositionsLocked(),
		StrategyAllocations: make(map[string]float64, len(m.allocations)),
		TotalValue:          total,
		Cash:                m.cash,
		DailyPnL:            total - m.lastSnapshotValue,
		TotalPnL:            unrealized,
	}
	for k, v := range m.allocations {
		snap.StrategyAllocations[k] = v
	}

	m.lastSnapshotValue = total
	m.lastSnapshotAt = snap.Timestamp
	m.mu.Unlock()

	if m.snapshotStore != nil {
		if err := m.snapshotStore.Save(m.name, snap); err != nil {
			m.log.Error().Err(err).Msg("failed to persist snapshot")
		}
	}

	return snap
}

// TradeHistory returns executed trades, newest first, optionally filtered by
// strategy and capped at limit (0 means no cap).
func (m *Manager) TradeHistory(strategy string, limit int) []domain.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Trade
	for i := len(m.trades) - 1; i >= 0; i-- {
		t := m.trades[i]
		if strategy != "" && t.Strategy != strategy {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// transactionCost applies the percentage fee with a minimum.
func (m *Manager) transactionCost(value float64) float64 {
	fee := value * m.cfg.TransactionCostPct
	if fee < m.cfg.TransactionCostMin {
		fee = m.cfg.TransactionCostMin
	}
	return fee
}

func (m *Manager) availableCashLocked() float64 {
	available := m.cash - m.cfg.CashReservePct*m.totalValueLocked()
	return math.Max(0, available)
}

func (m *Manager) totalValueLocked() float64 {
	total := m.cash
	for _, pos := range m.positions {
		total += pos.MarketValue
	}
	return total
}

func (m *Manager) checkPositionLimitsLocked(strategy string) error {
	if len(m.positions) >= m.cfg.MaxTotalPositions {
		return fmt.Errorf("portfolio holds %d positions: %w", len(m.positions), domain.ErrPositionLimitExceeded)
	}
	count := 0
	for _, pos := range m.positions {
		if pos.Strategy == strategy {
			count++
		}
	}
	if count >= m.cfg.MaxPositionsPerStrategy {
		return fmt.Errorf("strategy %s holds %d positions: %w", strategy, count, domain.ErrPositionLimitExceeded)
	}
	return nil
}

func (m *Manager) copyPositionsLocked() map[string]domain.Position {
	out := make(map[string]domain.Position, len(m.positions))
	for k, v := range m.positions {
		out[k] = v
	}
	return out
}

func (m *Manager) recordTradeLocked(ticker string, side domain.Action, strategy string, quantity int64, price, value, fee float64, reason string) domain.Trade {
	trade := domain.Trade{
		ID:         uuid.New().String(),
		ExecutedAt: m.clock.Now(),
		Ticker:     ticker,
		Side:       side,
		Strategy:   strategy,
		Quantity:   quantity,
		Price:      price,
		Value:      value,
		Cost:       fee,
		Reason:     reason,
	}
	m.trades = append(m.trades, trade)

	if m.tradeRecorder != nil {
		if err := m.tradeRecorder.Record(trade); err != nil {
			m.log.Error().Err(err).Str("trade_id", trade.ID).Msg("failed to persist trade")
		}
	}
	return trade
}
