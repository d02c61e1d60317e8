// Package wsbridge exposes a running simulation's control channel and
// telemetry bus over WebSocket connections, adapted from the teacher's
// apps/api/internal/handlers Hub/Client pair: the register/unregister/
// broadcast channel shape and the readPump/writePump goroutines are kept,
// but the payloads on the wire are this repo's own control-command and
// telemetry-record JSON shapes rather than the teacher's simulation
// protocol messages.
package wsbridge

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Client is one connected WebSocket subscriber/controller.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

// Hub fans outbound telemetry frames to every connected client and routes
// inbound control frames to a single handler (the one installed with
// SetMessageHandler; Bridge installs its handleClientMessage).
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	onMessage func(clientID string, raw []byte)
}

// NewHub creates a Hub with an empty client set.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// SetMessageHandler installs the callback invoked for every inbound client
// frame.
func (h *Hub) SetMessageHandler(handler func(clientID string, raw []byte)) {
	h.onMessage = handler
}

// Run drives the hub's register/unregister/broadcast loop until the caller
// stops calling it (normally for the lifetime of the process, in its own
// goroutine).
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Info().Str("client", client.id).Msg("wsbridge: client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Info().Str("client", client.id).Msg("wsbridge: client disconnected")

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.mu.RUnlock()
					h.mu.Lock()
					close(client.send)
					delete(h.clients, client)
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastJSON marshals v and fans it out to every connected client.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
	default:
		// A full broadcast channel means subscribers are not keeping up;
		// telemetry is dropped rather than blocking the caller (normally
		// the bus-draining goroutine), matching pkg/telemetry.Bus's own
		// never-block-the-engine rule.
	}
	return nil
}

// ClientCount reports the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("wsbridge: read error")
			}
			return
		}
		if c.hub.onMessage != nil {
			c.hub.onMessage(c.id, message)
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)

		n := len(c.send)
		for i := 0; i < n; i++ {
			w.Write([]byte("\n"))
			w.Write(<-c.send)
		}

		if err := w.Close(); err != nil {
			return
		}
	}
}
