package trading

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arena/internal/config"
	"github.com/aristath/arena/internal/domain"
)

func TestExecuteFillsAtQuote(t *testing.T) {
	broker := NewPaperBroker(time.Second, nil, zerolog.Nop())
	order := domain.Order{Ticker: "AAPL", Strategy: "momentum", Quantity: 10}

	result := broker.Execute(context.Background(), order, 150.0)

	require.True(t, result.Filled)
	assert.Equal(t, 150.0, result.FillPrice)
	assert.Equal(t, int64(10), result.FilledQuantity)
	assert.NotEmpty(t, result.OrderID, "broker assigns an order ID when missing")
}

func TestExecuteRejectsBadOrders(t *testing.T) {
	broker := NewPaperBroker(time.Second, nil, zerolog.Nop())

	result := broker.Execute(context.Background(), domain.Order{Ticker: "AAPL"}, 150.0)
	assert.False(t, result.Filled)
	assert.Contains(t, result.Error, "quantity")

	result = broker.Execute(context.Background(), domain.Order{Ticker: "AAPL", Quantity: 10}, 0)
	assert.False(t, result.Filled)
	assert.Contains(t, result.Error, "price")
}

func TestLimitOrderMarketability(t *testing.T) {
	broker := NewPaperBroker(time.Second, nil, zerolog.Nop())
	limit := 100.0

	tests := []struct {
		name     string
		quantity int64
		quote    float64
		filled   bool
	}{
		{"buy limit above quote fills", 10, 95, true},
		{"buy limit below quote rejected", 10, 105, false},
		{"sell limit below quote fills", -10, 105, true},
		{"sell limit above quote rejected", -10, 95, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := domain.Order{Ticker: "AAPL", Quantity: tt.quantity, LimitPrice: &limit}
			result := broker.Execute(context.Background(), order, tt.quote)
			assert.Equal(t, tt.filled, result.Filled)
		})
	}
}

func TestTransientVenueErrorRetriedOnce(t *testing.T) {
	broker := NewPaperBroker(5*time.Second, nil, zerolog.Nop())
	attempts := 0
	broker.SetFillFunc(func(domain.Order, float64) error {
		attempts++
		if attempts == 1 {
			return errors.New("venue busy")
		}
		return nil
	})

	result := broker.Execute(context.Background(), domain.Order{Ticker: "AAPL", Quantity: 5}, 100)

	require.True(t, result.Filled, "second attempt should fill")
	assert.Equal(t, 2, attempts)
}

func TestCancelledContextMapsToTimeout(t *testing.T) {
	broker := NewPaperBroker(time.Second, nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := broker.Execute(ctx, domain.Order{Ticker: "AAPL", Quantity: 5}, 100)

	assert.False(t, result.Filled)
	assert.Equal(t, "EXECUTION_TIMEOUT", result.Error)
}

func TestGuardBlocksOverCapAndCooldown(t *testing.T) {
	repo := NewTradeRepository(newLedgerDB(t), zerolog.Nop())
	now := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	clock := &domain.FixedClock{Time: now}

	require.NoError(t, repo.Record(ledgerTrade("t1", "XYZ", domain.ActionSell, "momentum", now.Add(-time.Hour))))

	guard := NewExecutionGuard(repo, config.TradingConfig{
		MaxTradesPerDay:      5,
		ReentryCooldownHours: 24,
	}, clock, zerolog.Nop())
	broker := NewPaperBroker(time.Second, guard, zerolog.Nop())

	// Buying back a ticker sold an hour ago is blocked.
	result := broker.Execute(context.Background(), domain.Order{Ticker: "XYZ", Quantity: 5}, 100)
	assert.False(t, result.Filled)
	assert.Contains(t, result.Error, "re-entry blocked")

	// A different ticker passes, and sells are exempt from the cooldown.
	result = broker.Execute(context.Background(), domain.Order{Ticker: "AAPL", Quantity: 5}, 100)
	assert.True(t, result.Filled)

	// Cap of one trade per day: the ledger already holds today's sell.
	tight := NewExecutionGuard(repo, config.TradingConfig{MaxTradesPerDay: 1}, clock, zerolog.Nop())
	broker = NewPaperBroker(time.Second, tight, zerolog.Nop())
	result = broker.Execute(context.Background(), domain.Order{Ticker: "AAPL", Quantity: 5}, 100)
	assert.False(t, result.Filled)
	assert.Contains(t, result.Error, "daily trade cap")
}
