package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/trailstop/internal/events"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"
)

const (
	streamBufferSize   = 100
	streamWriteTimeout = 5 * time.Second
	heartbeatInterval  = 30 * time.Second
)

// EventsStreamHandler streams bus events to websocket clients.
// Frames are JSON text by default; ?format=msgpack switches to binary msgpack frames.
type EventsStreamHandler struct {
	eventBus          *events.Bus
	heartbeatInterval time.Duration
	log               zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler
func NewEventsStreamHandler(eventBus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus:          eventBus,
		heartbeatInterval: heartbeatInterval,
		log:               log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	binary := r.URL.Query().Get("format") == "msgpack"
	eventTypes := parseTypesFilter(r.URL.Query().Get("types"))

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// Clients never send data frames; CloseRead handles control frames and cancels on disconnect
	ctx := conn.CloseRead(r.Context())

	eventChan := make(chan *events.Event, streamBufferSize)
	handler := func(event *events.Event) {
		// Non-blocking send (drop if channel full)
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}

	var subscriptions []events.SubscriptionID
	for _, eventType := range eventTypes {
		subscriptions = append(subscriptions, h.eventBus.Subscribe(eventType, handler))
	}
	defer func() {
		for _, id := range subscriptions {
			h.eventBus.Unsubscribe(id)
		}
	}()

	h.log.Info().
		Bool("msgpack", binary).
		Int("types", len(eventTypes)).
		Msg("Client connected to event stream")

	if err := h.write(ctx, conn, binary, &events.Event{
		Type:      "CONNECTED",
		Module:    "events_stream",
		Timestamp: time.Now(),
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-eventChan:
			if err := h.write(ctx, conn, binary, event); err != nil {
				h.log.Debug().Err(err).Msg("Failed to write event, closing stream")
				return
			}

		case <-heartbeat.C:
			if err := h.write(ctx, conn, binary, &events.Event{
				Type:      "HEARTBEAT",
				Module:    "events_stream",
				Timestamp: time.Now(),
			}); err != nil {
				return
			}
		}
	}
}

func (h *EventsStreamHandler) write(ctx context.Context, conn *websocket.Conn, binary bool, event *events.Event) error {
	var (
		data    []byte
		msgType websocket.MessageType
		err     error
	)
	if binary {
		data, err = msgpack.Marshal(event)
		msgType = websocket.MessageBinary
	} else {
		data, err = json.Marshal(event)
		msgType = websocket.MessageText
	}
	if err != nil {
		h.log.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to encode event")
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, msgType, data)
}

// parseTypesFilter returns the requested event types, or every known type when empty
func parseTypesFilter(filter string) []events.EventType {
	if strings.TrimSpace(filter) == "" {
		return events.AllEventTypes
	}

	var types []events.EventType
	seen := make(map[events.EventType]bool)
	for _, t := range strings.Split(filter, ",") {
		eventType := events.EventType(strings.ToUpper(strings.TrimSpace(t)))
		if eventType == "" || seen[eventType] {
			continue
		}
		seen[eventType] = true
		types = append(types, eventType)
	}
	return types
}
