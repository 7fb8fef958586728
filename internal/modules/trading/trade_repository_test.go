package trading

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arena/internal/domain"
)

func newLedgerDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE trades (
			id TEXT PRIMARY KEY,
			executed_at TIMESTAMP NOT NULL,
			ticker TEXT NOT NULL,
			side TEXT NOT NULL CHECK (side IN ('BUY', 'SELL')),
			strategy TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price REAL NOT NULL,
			value REAL NOT NULL,
			cost REAL NOT NULL DEFAULT 0,
			reason TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	require.NoError(t, err)
	return db
}

func ledgerTrade(id, ticker string, side domain.Action, strategy string, at time.Time) domain.Trade {
	return domain.Trade{
		ID:         id,
		ExecutedAt: at,
		Ticker:     ticker,
		Side:       side,
		Strategy:   strategy,
		Quantity:   10,
		Price:      100,
		Value:      1000,
		Cost:       2,
		Reason:     "test",
	}
}

func TestRecordAndQuery(t *testing.T) {
	repo := NewTradeRepository(newLedgerDB(t), zerolog.Nop())
	base := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Record(ledgerTrade("t1", "AAPL", domain.ActionBuy, "momentum", base)))
	require.NoError(t, repo.Record(ledgerTrade("t2", "MSFT", domain.ActionBuy, "meanrev", base.Add(time.Hour))))
	require.NoError(t, repo.Record(ledgerTrade("t3", "AAPL", domain.ActionSell, "momentum", base.Add(2*time.Hour))))

	history, err := repo.GetHistory(10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "t3", history[0].ID, "history should be newest first")
	assert.Equal(t, domain.ActionSell, history[0].Side)
	assert.Equal(t, "test", history[0].Reason)

	byTicker, err := repo.GetByTicker("AAPL", 10)
	require.NoError(t, err)
	assert.Len(t, byTicker, 2)

	byStrategy, err := repo.GetByStrategy("meanrev", 10)
	require.NoError(t, err)
	require.Len(t, byStrategy, 1)
	assert.Equal(t, "t2", byStrategy[0].ID)

	inRange, err := repo.GetAllInRange(base, base.Add(90*time.Minute))
	require.NoError(t, err)
	require.Len(t, inRange, 2)
	assert.Equal(t, "t1", inRange[0].ID, "range query should be oldest first")
}

func TestRecordDuplicateSkipped(t *testing.T) {
	repo := NewTradeRepository(newLedgerDB(t), zerolog.Nop())
	trade := ledgerTrade("dup", "AAPL", domain.ActionBuy, "momentum", time.Now().UTC())

	require.NoError(t, repo.Record(trade))
	require.NoError(t, repo.Record(trade), "re-recording the same trade ID must not error")

	history, err := repo.GetHistory(10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRecordRejectsInvalidTrades(t *testing.T) {
	repo := NewTradeRepository(newLedgerDB(t), zerolog.Nop())
	now := time.Now().UTC()

	missing := ledgerTrade("", "AAPL", domain.ActionBuy, "momentum", now)
	assert.Error(t, repo.Record(missing))

	zeroQty := ledgerTrade("z1", "AAPL", domain.ActionBuy, "momentum", now)
	zeroQty.Quantity = 0
	assert.Error(t, repo.Record(zeroQty))

	badPrice := ledgerTrade("z2", "AAPL", domain.ActionBuy, "momentum", now)
	badPrice.Price = -1
	assert.Error(t, repo.Record(badPrice))
}

func TestCountSinceAndRecentSells(t *testing.T) {
	repo := NewTradeRepository(newLedgerDB(t), zerolog.Nop())
	base := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Record(ledgerTrade("t1", "AAPL", domain.ActionBuy, "momentum", base.Add(-48*time.Hour))))
	require.NoError(t, repo.Record(ledgerTrade("t2", "AAPL", domain.ActionSell, "momentum", base)))

	count, err := repo.CountSince(base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	recent, err := repo.HasRecentSell("AAPL", base.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, recent)

	recent, err = repo.HasRecentSell("MSFT", base.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, recent)
}

func TestLastTradeTime(t *testing.T) {
	repo := NewTradeRepository(newLedgerDB(t), zerolog.Nop())

	last, err := repo.LastTradeTime()
	require.NoError(t, err)
	assert.Nil(t, last, "empty ledger has no last trade")

	at := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Record(ledgerTrade("t1", "AAPL", domain.ActionBuy, "momentum", at)))

	last, err = repo.LastTradeTime()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(at))
}
