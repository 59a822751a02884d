package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/runway/internal/events"
)

// eventBuffer is the per-client backlog before events are dropped
const eventBuffer = 100

// subscription forwards bus events of the requested types to a buffered channel
type subscription struct {
	bus *events.Bus
	ids []uint64
	ch  chan *events.Event
}

// parseTypes reads a comma-separated ?types= filter; empty means every type
func parseTypes(filter string) []events.EventType {
	if filter == "" {
		return events.AllTypes()
	}
	var types []events.EventType
	for _, t := range strings.Split(filter, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, events.EventType(t))
		}
	}
	return types
}

func subscribe(bus *events.Bus, types []events.EventType, log zerolog.Logger) *subscription {
	sub := &subscription{bus: bus, ch: make(chan *events.Event, eventBuffer)}
	handler := func(event *events.Event) {
		// Non-blocking send (drop if channel full)
		select {
		case sub.ch <- event:
		default:
			log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}
	for _, t := range types {
		sub.ids = append(sub.ids, bus.Subscribe(t, handler))
	}
	return sub
}

func (s *subscription) close() {
	for _, id := range s.ids {
		s.bus.Unsubscribe(id)
	}
}

func wireEvent(event *events.Event) map[string]interface{} {
	return map[string]interface{}{
		"type":      string(event.Type),
		"module":    event.Module,
		"timestamp": event.Timestamp.Format(time.RFC3339Nano),
		"data":      event.Data,
	}
}

// EventsStreamHandler streams bus events to clients as Server-Sent Events
type EventsStreamHandler struct {
	eventBus  *events.Bus
	log       zerolog.Logger
	heartbeat time.Duration
}

// NewEventsStreamHandler creates a new events stream handler
func NewEventsStreamHandler(eventBus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus:  eventBus,
		log:       log.With().Str("component", "events_stream").Logger(),
		heartbeat: 30 * time.Second,
	}
}

// ServeHTTP handles GET /api/events/stream?types=A,B
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	typesFilter := r.URL.Query().Get("types")
	sub := subscribe(h.eventBus, parseTypes(typesFilter), h.log)
	defer sub.close()

	h.log.Info().Str("types_filter", typesFilter).Msg("Client connected to event stream")

	h.write(w, map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	})
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.log.Info().Msg("Client disconnected from event stream")
			return

		case event := <-sub.ch:
			h.write(w, wireEvent(event))
			flusher.Flush()

		case <-heartbeat.C:
			h.write(w, map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			})
			flusher.Flush()
		}
	}
}

func (h *EventsStreamHandler) write(w http.ResponseWriter, event map[string]interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		data = []byte(`{"error":"failed to encode event"}`)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
