package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// envelope is the wire format for hub events.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
	Time  string `json:"time"`
}

// EventsHub fans batch run events out to websocket subscribers. It
// implements batch.EventEmitter; slow subscribers drop events rather than
// stalling the run.
type EventsHub struct {
	log zerolog.Logger

	mu          sync.Mutex
	subscribers map[chan []byte]struct{}
}

// NewEventsHub creates an empty hub.
func NewEventsHub(log zerolog.Logger) *EventsHub {
	return &EventsHub{
		log:         log.With().Str("component", "events_hub").Logger(),
		subscribers: make(map[chan []byte]struct{}),
	}
}

// Emit broadcasts an event to all subscribers. Never blocks.
func (h *EventsHub) Emit(event string, data any) {
	payload, err := json.Marshal(envelope{
		Event: event,
		Data:  data,
		Time:  time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("Failed to marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- payload:
		default:
			// Subscriber buffer full, drop
		}
	}
}

// subscribe registers a new subscriber channel and returns its remover.
func (h *EventsHub) subscribe() (chan []byte, func()) {
	ch := make(chan []byte, 64)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		h.mu.Unlock()
	}
}

// ServeHTTP upgrades to a websocket and streams events until the client
// disconnects.
func (h *EventsHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS is handled by the router middleware
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ch, unsubscribe := h.subscribe()
	defer unsubscribe()

	h.log.Debug().Str("remote", r.RemoteAddr).Msg("Events subscriber connected")

	// The stream is write-only; CloseRead drains incoming frames and
	// cancels the context when the client goes away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-ch:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("Events subscriber write failed, dropping")
				return
			}
		}
	}
}
