package portfolio

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/domain"
	"github.com/aristath/arena/pkg/formulas"
)

// SnapshotRepository persists portfolio snapshots to portfolio.db.
// Snapshots are append-only; positions and allocations are stored as JSON
// blobs since they are read back whole, never queried by field.
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a snapshot repository.
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// Save appends one snapshot for a portfolio.
func (r *SnapshotRepository) Save(strategy string, snap domain.PortfolioSnapshot) error {
	positionsJSON, err := json.Marshal(snap.Positions)
	if err != nil {
		return fmt.Errorf("failed to marshal positions: %w", err)
	}
	allocationsJSON, err := json.Marshal(snap.StrategyAllocations)
	if err != nil {
		return fmt.Errorf("failed to marshal allocations: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO snapshots (strategy, taken_at, total_value, cash, daily_pnl, total_pnl, positions_json, allocations_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		strategy, snap.Timestamp, snap.TotalValue, snap.Cash, snap.DailyPnL, snap.TotalPnL,
		string(positionsJSON), string(allocationsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// History returns snapshots for a portfolio taken at or after since, oldest first.
func (r *SnapshotRepository) History(strategy string, since time.Time) ([]domain.PortfolioSnapshot, error) {
	rows, err := r.db.Query(`
		SELECT taken_at, total_value, cash, daily_pnl, total_pnl, positions_json, allocations_json
		FROM snapshots
		WHERE strategy = ? AND taken_at >= ?
		ORDER BY taken_at ASC`,
		strategy, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.PortfolioSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Latest returns the most recent snapshot for a portfolio, or nil when none exists.
func (r *SnapshotRepository) Latest(strategy string) (*domain.PortfolioSnapshot, error) {
	rows, err := r.db.Query(`
		SELECT taken_at, total_value, cash, daily_pnl, total_pnl, positions_json, allocations_json
		FROM snapshots
		WHERE strategy = ?
		ORDER BY taken_at DESC
		LIMIT 1`,
		strategy,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	snap, err := scanSnapshot(rows)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Metrics summarizes portfolio performance from snapshot history.
type Metrics struct {
	CurrentValue float64                   `json:"current_value"`
	TotalReturn  float64                   `json:"total_return"`
	PeriodReturn float64                   `json:"period_return"`
	Drawdown     *formulas.DrawdownMetrics `json:"drawdown,omitempty"`
	SharpeRatio  *float64                  `json:"sharpe_ratio,omitempty"`
	Snapshots    int                       `json:"snapshots"`
}

// Metrics computes performance over the trailing window for a portfolio.
// Returns nil when there is no history.
func (r *SnapshotRepository) Metrics(strategy string, since time.Time, initialCapital float64) (*Metrics, error) {
	history, err := r.History(strategy, since)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}

	values := make([]float64, len(history))
	for i, snap := range history {
		values[i] = snap.TotalValue
	}

	current := values[len(values)-1]
	m := &Metrics{
		CurrentValue: current,
		Snapshots:    len(history),
	}
	if initialCapital > 0 {
		m.TotalReturn = (current - initialCapital) / initialCapital
	}
	if values[0] > 0 {
		m.PeriodReturn = (current - values[0]) / values[0]
	}
	m.Drawdown = formulas.CalculateDrawdownMetrics(values)
	m.SharpeRatio = formulas.CalculateSharpeFromValues(values, 0)

	return m, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (domain.PortfolioSnapshot, error) {
	var snap domain.PortfolioSnapshot
	var positionsJSON, allocationsJSON string

	if err := row.Scan(&snap.Timestamp, &snap.TotalValue, &snap.Cash, &snap.DailyPnL, &snap.TotalPnL, &positionsJSON, &allocationsJSON); err != nil {
		return snap, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(positionsJSON), &snap.Positions); err != nil {
		return snap, fmt.Errorf("failed to unmarshal positions: %w", err)
	}
	if err := json.Unmarshal([]byte(allocationsJSON), &snap.StrategyAllocations); err != nil {
		return snap, fmt.Errorf("failed to unmarshal allocations: %w", err)
	}
	return snap, nil
}
