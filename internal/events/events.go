// Package events provides the in-process event bus connecting the engine to
// observers such as the websocket stream.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies a class of engine event.
type EventType string

const (
	CycleCompleted  EventType = "cycle_completed"
	TradeExecuted   EventType = "trade_executed"
	RiskAlertRaised EventType = "risk_alert_raised"
	PricesUpdated   EventType = "prices_updated"
	SnapshotCreated EventType = "snapshot_created"
	BackupCompleted EventType = "backup_completed"

	// Wildcard subscribes a handler to every event type.
	Wildcard EventType = "*"
)

// EventData is the interface that all event data types must implement.
// This allows for type-safe event data while maintaining flexibility.
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// Event is one published engine event.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
}

// NewEvent wraps event data with its type and the current time.
func NewEvent(data EventData) *Event {
	return &Event{
		Type:      data.EventType(),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Handler processes one event. Handlers must not block; slow consumers
// should buffer internally.
type Handler func(*Event)

// Bus is a synchronous in-process publish/subscribe bus.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Handler
	log  zerolog.Logger
}

// NewBus creates a new event bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[EventType][]Handler),
		log:  log.With().Str("service", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for one event type. Use Wildcard to receive
// every event.
func (b *Bus) Subscribe(t EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], h)
}

// Publish dispatches an event to its subscribers and wildcard subscribers.
// A panicking handler is logged and skipped; it never takes down the engine.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[event.Type])+len(b.subs[Wildcard]))
	handlers = append(handlers, b.subs[event.Type]...)
	handlers = append(handlers, b.subs[Wildcard]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(event, h)
	}
}

func (b *Bus) dispatch(event *Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Str("type", string(event.Type)).Msg("Event handler panicked")
		}
	}()
	h(event)
}
