package events

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestPublishDispatchesToTypeAndWildcard(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var typed, wildcard, other int
	bus.Subscribe(TradeExecuted, func(*Event) { typed++ })
	bus.Subscribe(Wildcard, func(*Event) { wildcard++ })
	bus.Subscribe(CycleCompleted, func(*Event) { other++ })

	bus.Publish(NewEvent(&TradeExecutedData{Ticker: "AAPL", Side: "BUY", Quantity: 10, Price: 150}))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 1, wildcard)
	assert.Equal(t, 0, other)
}

func TestPanickingHandlerDoesNotStopDispatch(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var delivered int
	bus.Subscribe(CycleCompleted, func(*Event) { panic("bad handler") })
	bus.Subscribe(CycleCompleted, func(*Event) { delivered++ })

	bus.Publish(NewEvent(&CycleCompletedData{Portfolio: "momentum", FinalState: "REPORTED"}))

	assert.Equal(t, 1, delivered)
}

func TestEventCarriesTypeAndTimestamp(t *testing.T) {
	event := NewEvent(&RiskAlertData{Portfolio: "meanrev", AlertType: "VAR_LIMIT", Severity: "HIGH"})

	assert.Equal(t, RiskAlertRaised, event.Type)
	assert.False(t, event.Timestamp.IsZero())
}
