package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"
)

// EventHub broadcasts memory lifecycle events (store/delete) to connected
// WebSocket clients for live dashboard updates (spec §6.2's out-of-core
// dashboard collaborator; the HTTP surface owns the push interface, the
// dashboard consuming it is out of scope per spec §1). Grounded directly on
// the teacher's web/handlers/websocket.go WebSocketHub: a buffered broadcast
// channel fanning out to per-client send channels, full client set
// invalidated on Stop.
type EventHub struct {
	clients    map[*eventClient]bool
	broadcast  chan interface{}
	register   chan *eventClient
	unregister chan *eventClient
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
}

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewEventHub builds a hub. Callers must call Run in a goroutine before any
// client connects, and Stop on shutdown.
func NewEventHub() *EventHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventHub{
		clients:    make(map[*eventClient]bool),
		broadcast:  make(chan interface{}, 256),
		register:   make(chan *eventClient),
		unregister: make(chan *eventClient),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run drives the hub's register/unregister/broadcast loop until Stop.
func (h *EventHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			data, err := json.Marshal(message)
			if err != nil {
				log.Error().Err(err).Msg("http: failed to marshal event")
				h.mu.Unlock()
				continue
			}
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// Stop disconnects every client and ends Run.
func (h *EventHub) Stop() {
	h.cancel()
	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		_ = client.conn.Close(websocket.StatusNormalClosure, "")
	}
	h.clients = make(map[*eventClient]bool)
	h.mu.Unlock()
}

// Broadcast enqueues message for delivery to every connected client,
// dropping it if the broadcast channel is saturated rather than blocking
// the caller (a store/delete request must never stall on a slow dashboard).
func (h *EventHub) Broadcast(eventType, contentHash string) {
	select {
	case h.broadcast <- map[string]interface{}{"type": eventType, "content_hash": contentHash}:
	default:
		log.Warn().Str("event_type", eventType).Msg("http: event broadcast channel full, dropping")
	}
}

// ServeWS upgrades GET /api/events to a WebSocket connection.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	if s.eventHub == nil {
		respondError(w, http.StatusNotFound, "live events are not enabled on this deployment", nil)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("http: websocket upgrade failed")
		return
	}

	client := &eventClient{conn: conn, send: make(chan []byte, 256)}
	s.eventHub.register <- client

	go func() {
		defer func() {
			s.eventHub.unregister <- client
			_ = conn.Close(websocket.StatusNormalClosure, "")
		}()
		for message := range client.send {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}
		}
	}()

	// Drain inbound frames only to detect client disconnects; the stream is
	// server-to-client push only, there is no client->server protocol.
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			s.eventHub.unregister <- client
			return
		}
	}
}
