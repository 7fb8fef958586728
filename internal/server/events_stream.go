package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/arena/internal/events"
)

// EventsStreamHandler streams engine events to websocket clients.
type EventsStreamHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

// NewEventsStreamHandler creates the websocket event stream handler.
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus: bus,
		log: log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws. An optional ?types=a,b query limits
// the stream to those event types.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	var allowed map[events.EventType]bool
	if raw := r.URL.Query().Get("types"); raw != "" {
		allowed = make(map[events.EventType]bool)
		for _, t := range strings.Split(raw, ",") {
			allowed[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	// Buffered so a slow client drops events instead of blocking publishers.
	eventChan := make(chan *events.Event, 100)
	h.bus.Subscribe(events.Wildcard, func(event *events.Event) {
		if allowed != nil && !allowed[event.Type] {
			return
		}
		select {
		case eventChan <- event:
		default:
			h.log.Warn().Str("event_type", string(event.Type)).Msg("Event channel full, dropping event")
		}
	})

	h.log.Info().Msg("Client connected to event stream")

	// CloseRead surfaces client disconnects through the returned context.
	ctx := conn.CloseRead(r.Context())

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-eventChan:
			if err := h.write(ctx, conn, event); err != nil {
				h.log.Debug().Err(err).Msg("Failed to write event, closing stream")
				return
			}

		case <-heartbeat.C:
			ping := map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			}
			if err := h.write(ctx, conn, ping); err != nil {
				return
			}
		}
	}
}

func (h *EventsStreamHandler) write(ctx context.Context, conn *websocket.Conn, payload interface{}) error {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(writeCtx, conn, payload)
}
