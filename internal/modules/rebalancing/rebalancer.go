// Package rebalancing drives the weekly rebalance cycle: it merges strategy
// recommendations, sizes and validates orders through the risk manager, and
// applies fills to the portfolio ledger.
package rebalancing

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/config"
	"github.com/aristath/arena/internal/domain"
	"github.com/aristath/arena/internal/modules/portfolio"
	"github.com/aristath/arena/internal/modules/risk"
)

// State is the rebalancer's cycle state.
type State string

const (
	StateIdle       State = "IDLE"
	StateDue        State = "DUE"
	StateResolving  State = "RESOLVING"
	StateSizing     State = "SIZING"
	StateValidating State = "VALIDATING"
	StateExecuting  State = "EXECUTING"
	StateReported   State = "REPORTED"
	StateAborted    State = "ABORTED"
)

// Order classes, in execution priority order.
const (
	classExit = iota
	classReduction
	classEntry
)

// Broker places one order and reports the fill. Implemented by the paper
// broker; declared here so this package does not import trading.
type Broker interface {
	Execute(ctx context.Context, order domain.Order, price float64) domain.ExecutionResult
}

// ReportStore persists cycle reports. Optional; nil disables persistence.
type ReportStore interface {
	Save(report *CycleReport) error
}

// OrderOutcome records what happened to one planned order.
type OrderOutcome struct {
	Order     domain.Order `json:"order"`
	Filled    bool         `json:"filled"`
	FillPrice float64      `json:"fill_price,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// DroppedRecommendation records a recommendation that lost conflict
// resolution or failed validation, with the reason it was dropped.
type DroppedRecommendation struct {
	Recommendation domain.TradingRecommendation `json:"recommendation"`
	Reason         string                       `json:"reason"`
}

// CycleReport is the structured result of one rebalance cycle. Every failure
// path produces a report; nothing escapes the rebalancer as an error.
type CycleReport struct {
	StartedAt      time.Time               `json:"started_at"`
	FinishedAt     time.Time               `json:"finished_at"`
	Portfolio      string                  `json:"portfolio"`
	FinalState     State                   `json:"final_state"`
	Executed       bool                    `json:"executed"`
	Drift          float64                 `json:"drift"`
	Turnover       float64                 `json:"turnover"`
	EstimatedCost  float64                 `json:"estimated_cost"`
	OrdersPlanned  int                     `json:"orders_planned"`
	OrdersExecuted int                     `json:"orders_executed"`
	OrdersFailed   int                     `json:"orders_failed"`
	OrdersDeferred int                     `json:"orders_deferred"`
	Outcomes       []OrderOutcome          `json:"outcomes,omitempty"`
	Dropped        []DroppedRecommendation `json:"dropped,omitempty"`
	Alerts         []domain.RiskAlert      `json:"alerts,omitempty"`
}

// plannedOrder carries an order through sizing, validation and execution.
// Entries keep their source recommendation so stops and confidence survive
// liquidity deferral into the next cycle.
type plannedOrder struct {
	order domain.Order
	class int
	rec   domain.TradingRecommendation
	exit  *portfolio.ForcedExit
}

// Rebalancer runs the weekly cycle for one portfolio:
// IDLE → DUE → RESOLVING → SIZING → VALIDATING → EXECUTING → REPORTED,
// with ABORTED reachable from VALIDATING and EXECUTING. A risk-invalid plan
// aborts before any order is dispatched; once execution starts there is no
// rollback, each order is an independent unit of work.
type Rebalancer struct {
	portfolio *portfolio.Manager
	risk      *risk.Manager
	broker    Broker
	reports   ReportStore
	cfg       config.RebalanceConfig
	costPct   float64
	clock     domain.Clock
	log       zerolog.Logger

	mu              sync.Mutex
	state           State
	lastCycleYear   int
	lastCycleWeek   int
	lastCycleAt     time.Time
	lastAllocations map[string]float64
	deferred        []plannedOrder
}

// NewRebalancer creates a rebalancer bound to one portfolio manager.
func NewRebalancer(
	pm *portfolio.Manager,
	rm *risk.Manager,
	broker Broker,
	cfg config.RebalanceConfig,
	transactionCostPct float64,
	clock domain.Clock,
	log zerolog.Logger,
) *Rebalancer {
	return &Rebalancer{
		portfolio:       pm,
		risk:            rm,
		broker:          broker,
		cfg:             cfg,
		costPct:         transactionCostPct,
		clock:           clock,
		log:             log.With().Str("service", "rebalancer").Str("portfolio", pm.Name()).Logger(),
		state:           StateIdle,
		lastAllocations: make(map[string]float64),
	}
}

// SetReportStore wires cycle report persistence. Optional.
func (rb *Rebalancer) SetReportStore(s ReportStore) { rb.reports = s }

// State returns the current cycle state.
func (rb *Rebalancer) State() State {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.state
}

// LastCycle returns the ISO year and week of the last completed cycle.
// Both are zero before the first cycle.
func (rb *Rebalancer) LastCycle() (year, week int) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.lastCycleYear, rb.lastCycleWeek
}

// LastRebalance returns when the last cycle ran, zero before the first cycle.
// Exported state bundles carry this so a restore keeps the weekly dedup honest.
func (rb *Rebalancer) LastRebalance() time.Time {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.lastCycleAt
}

// RestoreCycleMarker reinstates the last-cycle bookkeeping after a state
// restore, so a restart does not trigger a duplicate cycle in the week the
// bundle's last rebalance ran. A zero lastRebalance clears nothing; a cycle
// stays due.
func (rb *Rebalancer) RestoreCycleMarker(lastRebalance time.Time, allocations map[string]float64) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if !lastRebalance.IsZero() {
		rb.lastCycleYear, rb.lastCycleWeek = lastRebalance.ISOWeek()
		rb.lastCycleAt = lastRebalance
	}
	rb.lastAllocations = make(map[string]float64, len(allocations))
	for k, v := range allocations {
		rb.lastAllocations[k] = v
	}
}

// ShouldRebalance reports whether a cycle is due: the scheduled weekday, and
// either no cycle has run this ISO week yet or allocation drift since the
// last cycle has reached the threshold. A true result moves IDLE to DUE.
func (rb *Rebalancer) ShouldRebalance(now time.Time) (bool, string) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if int(now.Weekday()) != rb.cfg.Weekday {
		return false, "not the scheduled weekday"
	}

	year, week := now.ISOWeek()
	if year == rb.lastCycleYear && week == rb.lastCycleWeek {
		drift := rb.allocationDriftLocked()
		if drift < rb.cfg.DriftThreshold {
			return false, fmt.Sprintf("already rebalanced this week, drift %.4f below threshold %.4f", drift, rb.cfg.DriftThreshold)
		}
		rb.state = StateDue
		return true, fmt.Sprintf("allocation drift %.4f at or above threshold %.4f", drift, rb.cfg.DriftThreshold)
	}

	rb.state = StateDue
	return true, "scheduled weekday, no cycle this week"
}

// RunCycle executes one full rebalance cycle against the given per-strategy
// recommendations and market snapshot. It always returns a report; order and
// plan failures are recorded in it, never raised.
func (rb *Rebalancer) RunCycle(
	ctx context.Context,
	recommendations map[string][]domain.TradingRecommendation,
	evaluations map[string][]domain.PositionEvaluation,
	riskParams map[string]domain.RiskParameters,
	market *domain.MarketSnapshot,
) *CycleReport {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	now := rb.clock.Now()
	report := &CycleReport{
		Portfolio: rb.portfolio.Name(),
		StartedAt: now,
		Drift:     rb.allocationDriftLocked(),
	}

	rb.state = StateResolving
	rb.portfolio.UpdatePositions(market)
	// Pre-trade value at fresh marks; targets and turnover price off this.
	preValue := rb.portfolio.TotalValue()
	exits := rb.portfolio.CheckStopLossesAndTargets(market)
	winners := rb.resolveConflicts(recommendations, report)

	rb.state = StateSizing
	plan := rb.buildPlan(exits, evaluations, winners, market, preValue, report)

	rb.state = StateValidating
	plan, ok := rb.validatePlan(plan, riskParams, market, now, report)
	if !ok {
		rb.log.Warn().Int("alerts", len(report.Alerts)).Msg("Plan failed risk validation, aborting cycle")
		return rb.finishLocked(report, StateAborted, false, 0)
	}

	sortForExecution(plan)
	plan = rb.adjustForLiquidity(plan, market, report)
	report.OrdersPlanned = len(plan)

	rb.state = StateExecuting
	executedValue, aborted := rb.executePlan(ctx, plan, riskParams, market, report)
	report.EstimatedCost = executedValue * rb.costPct

	finalState := StateReported
	if aborted {
		finalState = StateAborted
	}
	rb.lastCycleYear, rb.lastCycleWeek = now.ISOWeek()
	rb.lastCycleAt = now
	rb.lastAllocations = rb.portfolio.CurrentAllocations()
	return rb.finishLocked(report, finalState, true, executedValue/math.Max(preValue, 1e-9))
}

func (rb *Rebalancer) finishLocked(report *CycleReport, final State, executed bool, turnover float64) *CycleReport {
	report.FinalState = final
	report.Executed = executed
	report.Turnover = turnover
	report.FinishedAt = rb.clock.Now()
	rb.state = StateIdle

	if rb.reports != nil {
		if err := rb.reports.Save(report); err != nil {
			rb.log.Error().Err(err).Msg("Failed to persist cycle report")
		}
	}
	rb.log.Info().
		Str("final_state", string(final)).
		Int("executed", report.OrdersExecuted).
		Int("failed", report.OrdersFailed).
		Int("deferred", report.OrdersDeferred).
		Float64("turnover", report.Turnover).
		Msg("Rebalance cycle finished")
	return report
}

// resolveConflicts merges per-strategy recommendations into one winner per
// ticker. An explicit SELL from the position's owning strategy always wins;
// otherwise highest confidence, ties broken by lowest quantity. Losers are
// dropped and logged, never merged.
func (rb *Rebalancer) resolveConflicts(
	recommendations map[string][]domain.TradingRecommendation,
	report *CycleReport,
) []domain.TradingRecommendation {
	byTicker := make(map[string][]domain.TradingRecommendation)
	for strategy, recs := range recommendations {
		for _, rec := range recs {
			if rec.Action == domain.ActionHold {
				continue
			}
			if rec.Strategy == "" {
				rec.Strategy = strategy
			}
			if err := rec.Validate(); err != nil {
				report.Dropped = append(report.Dropped, DroppedRecommendation{Recommendation: rec, Reason: err.Error()})
				rb.log.Warn().Err(err).Str("ticker", rec.Ticker).Str("strategy", rec.Strategy).Msg("Dropped invalid recommendation")
				continue
			}
			byTicker[rec.Ticker] = append(byTicker[rec.Ticker], rec)
		}
	}

	tickers := make([]string, 0, len(byTicker))
	for t := range byTicker {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	winners := make([]domain.TradingRecommendation, 0, len(tickers))
	for _, ticker := range tickers {
		group := byTicker[ticker]
		win := rb.pickWinner(ticker, group)
		for i, rec := range group {
			if i == win {
				continue
			}
			report.Dropped = append(report.Dropped, DroppedRecommendation{Recommendation: rec, Reason: "lost conflict resolution"})
			rb.log.Info().
				Str("ticker", ticker).
				Str("losing_strategy", rec.Strategy).
				Str("winning_strategy", group[win].Strategy).
				Msg("Dropped conflicting recommendation")
		}
		winners = append(winners, group[win])
	}
	return winners
}

func (rb *Rebalancer) pickWinner(ticker string, group []domain.TradingRecommendation) int {
	if pos, held := rb.portfolio.Position(ticker); held {
		for i, rec := range group {
			if rec.Action == domain.ActionSell && rec.Strategy == pos.Strategy {
				return i
			}
		}
	}
	best := 0
	for i := 1; i < len(group); i++ {
		if group[i].Confidence > group[best].Confidence ||
			(group[i].Confidence == group[best].Confidence && group[i].Quantity < group[best].Quantity) {
			best = i
		}
	}
	return best
}

// buildPlan turns forced exits, position evaluations, winning recommendations
// and last cycle's deferred remainders into planned orders. BUY targets are
// confidence weighted within the owning strategy's allocation; deltas below
// the minimum trade value are suppressed.
func (rb *Rebalancer) buildPlan(
	exits []portfolio.ForcedExit,
	evaluations map[string][]domain.PositionEvaluation,
	winners []domain.TradingRecommendation,
	market *domain.MarketSnapshot,
	portfolioValue float64,
	report *CycleReport,
) []plannedOrder {
	var plan []plannedOrder
	planned := make(map[string]bool)

	for i := range exits {
		e := exits[i]
		pos, held := rb.portfolio.Position(e.Ticker)
		if !held || pos.Quantity <= 0 {
			continue
		}
		plan = append(plan, plannedOrder{
			order: domain.Order{
				Ticker:    e.Ticker,
				Strategy:  e.Strategy,
				OrderType: "MARKET",
				Reason:    string(e.Reason),
				Quantity:  -pos.Quantity,
			},
			class: classExit,
			exit:  &exits[i],
		})
		planned[e.Ticker] = true
	}

	// Strategy verdicts on their own open positions. Forced exits already in
	// the plan take precedence over a verdict for the same ticker.
	plan = rb.appendEvaluationOrders(plan, evaluations, planned)

	// Deferred remainders from the previous cycle re-enter ahead of new
	// sizing so they are not starved by fresh recommendations.
	for _, po := range rb.deferred {
		if planned[po.order.Ticker] {
			continue
		}
		plan = append(plan, po)
		planned[po.order.Ticker] = true
	}
	rb.deferred = nil

	allocations := rb.portfolio.StrategyAllocations()
	confidenceDenom := make(map[string]float64)
	for _, rec := range winners {
		if rec.Action == domain.ActionBuy {
			confidenceDenom[rec.Strategy] += rec.Confidence
		}
	}

	for _, rec := range winners {
		if planned[rec.Ticker] {
			continue
		}
		price, ok := market.Price(rec.Ticker)
		if !ok || price <= 0 {
			report.Dropped = append(report.Dropped, DroppedRecommendation{Recommendation: rec, Reason: domain.ErrDataUnavailable.Error()})
			rb.log.Warn().Str("ticker", rec.Ticker).Msg("No price for ticker, excluded this cycle")
			continue
		}

		switch rec.Action {
		case domain.ActionSell:
			pos, held := rb.portfolio.Position(rec.Ticker)
			if !held || rec.Quantity > pos.Quantity {
				report.Dropped = append(report.Dropped, DroppedRecommendation{Recommendation: rec, Reason: domain.ErrNoSuchPosition.Error()})
				continue
			}
			class := classReduction
			if rec.Quantity == pos.Quantity {
				class = classExit
			}
			plan = append(plan, plannedOrder{
				order: domain.Order{
					Ticker:    rec.Ticker,
					Strategy:  rec.Strategy,
					OrderType: "MARKET",
					Reason:    rec.Reasoning,
					Quantity:  -rec.Quantity,
				},
				class: class,
				rec:   rec,
			})
			planned[rec.Ticker] = true

		case domain.ActionBuy:
			alloc, ok := allocations[rec.Strategy]
			if !ok || alloc <= 0 {
				report.Dropped = append(report.Dropped, DroppedRecommendation{Recommendation: rec, Reason: "no allocation for strategy"})
				continue
			}
			denom := math.Max(confidenceDenom[rec.Strategy], 1.0)
			target := alloc * portfolioValue * (rec.Confidence / denom)

			current := 0.0
			if pos, held := rb.portfolio.Position(rec.Ticker); held {
				current = pos.MarketValue
			}
			delta := target - current
			shares := int64(math.Floor(math.Abs(delta) / price))
			if rec.Quantity > 0 && shares > rec.Quantity {
				shares = rec.Quantity
			}
			if shares == 0 || math.Abs(delta) < rb.cfg.MinTradeValue {
				continue
			}

			po := plannedOrder{
				order: domain.Order{
					Ticker:    rec.Ticker,
					Strategy:  rec.Strategy,
					OrderType: "MARKET",
					Reason:    rec.Reasoning,
					Quantity:  shares,
				},
				class: classEntry,
				rec:   rec,
			}
			if delta < 0 {
				pos, held := rb.portfolio.Position(rec.Ticker)
				if !held {
					continue
				}
				if shares > pos.Quantity {
					shares = pos.Quantity
				}
				po.order.Quantity = -shares
				po.class = classReduction
			}
			plan = append(plan, po)
			planned[rec.Ticker] = true
		}
	}
	return plan
}

// appendEvaluationOrders turns SELL and DECREASE verdicts into exit and
// reduction orders. Only verdicts from the position's owning strategy count;
// INCREASE flows through recommendations instead, where sizing and risk
// validation apply.
func (rb *Rebalancer) appendEvaluationOrders(
	plan []plannedOrder,
	evaluations map[string][]domain.PositionEvaluation,
	planned map[string]bool,
) []plannedOrder {
	strategies := make([]string, 0, len(evaluations))
	for s := range evaluations {
		strategies = append(strategies, s)
	}
	sort.Strings(strategies)

	for _, strategy := range strategies {
		for _, ev := range evaluations[strategy] {
			if planned[ev.Ticker] {
				continue
			}
			if err := ev.Validate(); err != nil {
				rb.log.Warn().Err(err).Str("ticker", ev.Ticker).Str("strategy", strategy).Msg("Dropped invalid position evaluation")
				continue
			}
			pos, held := rb.portfolio.Position(ev.Ticker)
			if !held || pos.Strategy != strategy {
				continue
			}

			var quantity int64
			class := classExit
			switch ev.RecommendedAction {
			case domain.PositionSell:
				quantity = pos.Quantity
			case domain.PositionDecrease:
				if ev.TargetQuantity >= pos.Quantity {
					continue
				}
				quantity = pos.Quantity - ev.TargetQuantity
				class = classReduction
			default:
				continue
			}

			plan = append(plan, plannedOrder{
				order: domain.Order{
					Ticker:    ev.Ticker,
					Strategy:  strategy,
					OrderType: "MARKET",
					Reason:    ev.TriggerReason,
					Quantity:  -quantity,
				},
				class: class,
			})
			planned[ev.Ticker] = true
		}
	}
	return plan
}

// validatePlan runs every entry order through the risk manager. Automatic
// downsizing is applied in place; missing market data drops that order only.
// Any surviving HIGH severity alert invalidates the whole plan.
func (rb *Rebalancer) validatePlan(
	plan []plannedOrder,
	riskParams map[string]domain.RiskParameters,
	market *domain.MarketSnapshot,
	now time.Time,
	report *CycleReport,
) ([]plannedOrder, bool) {
	positions := rb.portfolio.Positions()
	totalValue := rb.portfolio.TotalValue()

	kept := plan[:0]
	for _, po := range plan {
		if po.order.Quantity <= 0 {
			kept = append(kept, po)
			continue
		}

		rec := po.rec
		rec.Quantity = po.order.Quantity
		adjusted, ok, alerts := rb.risk.ValidateRecommendation(rec, positions, totalValue, market, rb.paramsFor(rec.Strategy, riskParams), now)
		report.Alerts = append(report.Alerts, alerts...)
		if !ok {
			if dataOnly(alerts) {
				report.Dropped = append(report.Dropped, DroppedRecommendation{Recommendation: rec, Reason: domain.ErrDataUnavailable.Error()})
				continue
			}
			return nil, false
		}
		if hasHigh(alerts) {
			return nil, false
		}
		if adjusted.Quantity <= 0 {
			report.Dropped = append(report.Dropped, DroppedRecommendation{Recommendation: rec, Reason: "downsized to zero"})
			continue
		}
		po.order.Quantity = adjusted.Quantity
		po.rec = adjusted
		kept = append(kept, po)
	}
	return kept, true
}

// adjustForLiquidity caps each order at the configured fraction of the
// ticker's average daily volume. The remainder is deferred to the next
// cycle, not dropped.
func (rb *Rebalancer) adjustForLiquidity(plan []plannedOrder, market *domain.MarketSnapshot, report *CycleReport) []plannedOrder {
	if rb.cfg.LiquidityCapPct <= 0 {
		return plan
	}
	for i := range plan {
		po := &plan[i]
		adv, ok := market.AverageVolume[po.order.Ticker]
		if !ok || adv <= 0 {
			continue
		}
		maxShares := int64(math.Floor(adv * rb.cfg.LiquidityCapPct))
		if maxShares <= 0 {
			maxShares = 1
		}
		qty := po.order.Quantity
		if absInt64(qty) <= maxShares {
			continue
		}

		remainder := *po
		remainder.order.Quantity = signInt64(qty) * (absInt64(qty) - maxShares)
		rb.deferred = append(rb.deferred, remainder)
		report.OrdersDeferred++

		po.order.Quantity = signInt64(qty) * maxShares
		rb.log.Info().
			Str("ticker", po.order.Ticker).
			Int64("capped_to", po.order.Quantity).
			Int64("deferred", remainder.order.Quantity).
			Msg("Order capped by liquidity, remainder deferred to next cycle")
	}
	return plan
}

// executePlan dispatches orders in priority order and applies fills to the
// ledger. Each order is independent: a failure is recorded and the rest
// proceed. Context cancellation stops dispatching further orders but never
// unwinds executed ones.
func (rb *Rebalancer) executePlan(
	ctx context.Context,
	plan []plannedOrder,
	riskParams map[string]domain.RiskParameters,
	market *domain.MarketSnapshot,
	report *CycleReport,
) (executedValue float64, aborted bool) {
	for _, po := range plan {
		if ctx.Err() != nil {
			report.Outcomes = append(report.Outcomes, OrderOutcome{Order: po.order, Error: "EXECUTION_TIMEOUT"})
			report.OrdersFailed++
			aborted = true
			continue
		}

		price, ok := market.Price(po.order.Ticker)
		if !ok || price <= 0 {
			report.Outcomes = append(report.Outcomes, OrderOutcome{Order: po.order, Error: domain.ErrDataUnavailable.Error()})
			report.OrdersFailed++
			continue
		}

		result := rb.broker.Execute(ctx, po.order, price)
		if !result.Filled {
			report.Outcomes = append(report.Outcomes, OrderOutcome{Order: po.order, Error: result.Error})
			report.OrdersFailed++
			rb.log.Warn().Str("ticker", po.order.Ticker).Str("error", result.Error).Msg("Order execution failed")
			continue
		}

		if err := rb.applyFill(po, result, market, riskParams); err != nil {
			report.Outcomes = append(report.Outcomes, OrderOutcome{Order: po.order, Error: err.Error()})
			report.OrdersFailed++
			rb.log.Warn().Err(err).Str("ticker", po.order.Ticker).Msg("Fill rejected by ledger")
			continue
		}

		report.Outcomes = append(report.Outcomes, OrderOutcome{Order: po.order, Filled: true, FillPrice: result.FillPrice})
		report.OrdersExecuted++
		executedValue += math.Abs(float64(po.order.Quantity)) * result.FillPrice
	}
	return executedValue, aborted
}

func (rb *Rebalancer) applyFill(po plannedOrder, result domain.ExecutionResult, market *domain.MarketSnapshot, riskParams map[string]domain.RiskParameters) error {
	if po.order.Quantity < 0 {
		_, err := rb.portfolio.Sell(po.order.Strategy, po.order.Ticker, -po.order.Quantity, result.FillPrice, po.order.Reason)
		return err
	}

	params := rb.paramsFor(po.order.Strategy, riskParams)
	stop := po.rec.StopLoss
	target := po.rec.ProfitTarget
	if stop == nil {
		vol, _ := market.Volatility(po.order.Ticker)
		s := rb.risk.CalculateStopLossPrice(result.FillPrice, vol, params)
		stop = &s
	}
	if target == nil {
		t := rb.risk.CalculateProfitTarget(result.FillPrice, *stop, params)
		target = &t
	}
	var maxHold *int
	if po.rec.MaxHoldingDays > 0 {
		d := po.rec.MaxHoldingDays
		maxHold = &d
	}
	_, err := rb.portfolio.Buy(po.order.Strategy, po.order.Ticker, po.order.Quantity, result.FillPrice, stop, target, maxHold, po.order.Reason)
	return err
}

func (rb *Rebalancer) paramsFor(strategy string, riskParams map[string]domain.RiskParameters) domain.RiskParameters {
	if p, ok := riskParams[strategy]; ok {
		return p
	}
	return domain.DefaultRiskParameters()
}

// allocationDriftLocked sums absolute differences between current strategy
// allocations and those recorded at the last cycle.
func (rb *Rebalancer) allocationDriftLocked() float64 {
	current := rb.portfolio.CurrentAllocations()
	seen := make(map[string]bool, len(current))
	drift := 0.0
	for strategy, alloc := range current {
		drift += math.Abs(alloc - rb.lastAllocations[strategy])
		seen[strategy] = true
	}
	for strategy, alloc := range rb.lastAllocations {
		if !seen[strategy] {
			drift += math.Abs(alloc)
		}
	}
	return drift
}

// sortForExecution orders the plan exits first, then reductions, then
// entries, with ticker order stable within each class.
func sortForExecution(plan []plannedOrder) {
	sort.SliceStable(plan, func(i, j int) bool {
		if plan[i].class != plan[j].class {
			return plan[i].class < plan[j].class
		}
		return plan[i].order.Ticker < plan[j].order.Ticker
	})
}

func dataOnly(alerts []domain.RiskAlert) bool {
	if len(alerts) == 0 {
		return false
	}
	for _, a := range alerts {
		if a.Type != "DATA_UNAVAILABLE" {
			return false
		}
	}
	return true
}

func hasHigh(alerts []domain.RiskAlert) bool {
	for _, a := range alerts {
		if a.Severity == domain.SeverityHigh {
			return true
		}
	}
	return false
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func signInt64(v int64) int64 {
	if v < 0 {
		return -1
	}
	return 1
}
