package trading

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arena/internal/domain"
)

// tradesColumns is the list of columns for the trades table.
// Used to avoid SELECT * which can break when schema changes.
// Column order must match scanTrade().
const tradesColumns = `id, executed_at, ticker, side, strategy, quantity, price, value, cost, reason`

// TradeRepository persists executed trades to the ledger database. It is the
// append-only audit trail; the in-memory trade history on the portfolio
// manager is a per-process cache of the same fills.
type TradeRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTradeRepository creates a new trade repository over ledger.db.
func NewTradeRepository(db *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		db:  db,
		log: log.With().Str("repo", "trade").Logger(),
	}
}

// Record inserts one executed trade. A duplicate trade ID is skipped, not an
// error, so replays after a crash cannot double-book fills.
func (r *TradeRepository) Record(trade domain.Trade) error {
	if trade.ID == "" {
		return fmt.Errorf("failed to record trade: missing trade ID")
	}
	if trade.Quantity <= 0 || trade.Price <= 0 {
		return fmt.Errorf("failed to record trade %s: non-positive quantity or price", trade.ID)
	}

	exists, err := r.Exists(trade.ID)
	if err != nil {
		return fmt.Errorf("failed to check for existing trade: %w", err)
	}
	if exists {
		r.log.Debug().Str("trade_id", trade.ID).Msg("Trade already recorded, skipping")
		return nil
	}

	_, err = r.db.Exec(`
		INSERT INTO trades (id, executed_at, ticker, side, strategy, quantity, price, value, cost, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.ID,
		trade.ExecutedAt.UTC().Format(time.RFC3339),
		trade.Ticker,
		string(trade.Side),
		trade.Strategy,
		trade.Quantity,
		trade.Price,
		trade.Value,
		trade.Cost,
		trade.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// Exists checks whether a trade with the given ID has been recorded.
func (r *TradeRepository) Exists(id string) (bool, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM trades WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query trade existence: %w", err)
	}
	return count > 0, nil
}

// GetHistory returns the most recent trades across all strategies, newest
// first.
func (r *TradeRepository) GetHistory(limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(
		"SELECT "+tradesColumns+" FROM trades ORDER BY executed_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade history: %w", err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

// GetByTicker returns recent trades for one ticker, newest first.
func (r *TradeRepository) GetByTicker(ticker string, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(
		"SELECT "+tradesColumns+" FROM trades WHERE ticker = ? ORDER BY executed_at DESC LIMIT ?",
		ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades by ticker: %w", err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

// GetByStrategy returns recent trades for one strategy, newest first.
func (r *TradeRepository) GetByStrategy(strategy string, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(
		"SELECT "+tradesColumns+" FROM trades WHERE strategy = ? ORDER BY executed_at DESC LIMIT ?",
		strategy, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades by strategy: %w", err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

// GetAllInRange returns all trades executed in [start, end), oldest first.
func (r *TradeRepository) GetAllInRange(start, end time.Time) ([]domain.Trade, error) {
	rows, err := r.db.Query(
		"SELECT "+tradesColumns+" FROM trades WHERE executed_at >= ? AND executed_at < ? ORDER BY executed_at ASC",
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query trades in range: %w", err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

// CountSince returns the number of trades executed at or after the given
// instant. Used by the execution guard's daily cap.
func (r *TradeRepository) CountSince(since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM trades WHERE executed_at >= ?",
		since.UTC().Format(time.RFC3339)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return count, nil
}

// HasRecentSell reports whether the ticker was sold at or after the given
// instant. Used by the execution guard's re-entry cooldown.
func (r *TradeRepository) HasRecentSell(ticker string, since time.Time) (bool, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM trades WHERE ticker = ? AND side = 'SELL' AND executed_at >= ?",
		ticker, since.UTC().Format(time.RFC3339)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query recent sells: %w", err)
	}
	return count > 0, nil
}

// LastTradeTime returns the execution time of the most recent trade, or nil
// when the ledger is empty.
func (r *TradeRepository) LastTradeTime() (*time.Time, error) {
	var raw sql.NullString
	err := r.db.QueryRow("SELECT MAX(executed_at) FROM trades").Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("failed to query last trade time: %w", err)
	}
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last trade time: %w", err)
	}
	return &t, nil
}

func collectTrades(rows *sql.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

func scanTrade(rows *sql.Rows) (domain.Trade, error) {
	var (
		trade      domain.Trade
		executedAt string
		side       string
		reason     sql.NullString
	)
	err := rows.Scan(
		&trade.ID,
		&executedAt,
		&trade.Ticker,
		&side,
		&trade.Strategy,
		&trade.Quantity,
		&trade.Price,
		&trade.Value,
		&trade.Cost,
		&reason,
	)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("failed to scan trade: %w", err)
	}
	trade.Side = domain.Action(side)
	trade.Reason = reason.String
	if t, err := time.Parse(time.RFC3339, executedAt); err == nil {
		trade.ExecutedAt = t
	}
	return trade, nil
}
