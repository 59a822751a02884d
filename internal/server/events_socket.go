package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/runway/internal/events"
)

// EventsSocketHandler streams bus events over a WebSocket. Clients only read;
// anything they send is discarded.
type EventsSocketHandler struct {
	eventBus     *events.Bus
	log          zerolog.Logger
	writeTimeout time.Duration
	pingInterval time.Duration
}

// NewEventsSocketHandler creates a new WebSocket events handler
func NewEventsSocketHandler(eventBus *events.Bus, log zerolog.Logger) *EventsSocketHandler {
	return &EventsSocketHandler{
		eventBus:     eventBus,
		log:          log.With().Str("component", "events_ws").Logger(),
		writeTimeout: 10 * time.Second,
		pingInterval: 30 * time.Second,
	}
}

// ServeHTTP handles GET /api/events/ws?types=A,B
func (h *EventsSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	sub := subscribe(h.eventBus, parseTypes(r.URL.Query().Get("types")), h.log)
	defer sub.close()

	// CloseRead drains client frames and cancels ctx when the client goes away
	ctx := conn.CloseRead(r.Context())
	h.log.Info().Msg("Client connected to event socket")

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event socket")
			return

		case event := <-sub.ch:
			if err := h.send(ctx, conn, wireEvent(event)); err != nil {
				h.logClose(err)
				return
			}

		case <-ping.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				h.logClose(err)
				return
			}
		}
	}
}

func (h *EventsSocketHandler) send(ctx context.Context, conn *websocket.Conn, msg map[string]interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		return nil
	}
	writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func (h *EventsSocketHandler) logClose(err error) {
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
		h.log.Info().Msg("Client disconnected from event socket")
		return
	}
	h.log.Warn().Err(err).Msg("Event socket closed")
}
