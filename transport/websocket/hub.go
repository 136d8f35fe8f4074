package websocket

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/arakiyama/animeduel/metrics"
)

// commandQueueSize absorbs bursts of hub commands (joins, broadcasts,
// disconnects) without stalling connection read loops. Commands are
// cheap map mutations or non-blocking enqueues, so the hub drains the
// queue far faster than connections can fill it.
const commandQueueSize = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser origin policy is enforced by the CORS layer on the
		// REST surface; game frames carry no credentials.
		return true
	},
}

// EventHandler receives inbound events and disconnect notifications.
// OnEvent is called from the connection's read goroutine, so events
// from a single connection arrive in order. OnDisconnect is called
// exactly once per registered connection, from the hub goroutine.
type EventHandler interface {
	OnEvent(c Conn, event string, data json.RawMessage, ackID int64)
	OnDisconnect(c Conn)
}

// Hub maintains the set of active clients, their room membership, and
// fans broadcasts out to rooms.
type Hub struct {
	handler EventHandler

	// clients and rooms are owned by the Run goroutine.
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	// commands serializes every state mutation in arrival order. A
	// single queue preserves FIFO across operation kinds: a room join
	// requested before a broadcast is applied before it, so a fresh
	// member never misses a frame sent right after its join.
	commands chan func()
}

// NewHub creates a hub. SetHandler must be called before Run.
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[*Client]bool),
		rooms:    make(map[string]map[*Client]bool),
		commands: make(chan func(), commandQueueSize),
	}
}

// SetHandler installs the event handler. The hub and its handler
// reference each other, so the handler is attached after construction.
func (h *Hub) SetHandler(handler EventHandler) {
	h.handler = handler
}

// Run starts the hub's event loop. It must run in its own goroutine
// before any connection is served.
func (h *Hub) Run() {
	for cmd := range h.commands {
		cmd()
	}
}

// ServeWS upgrades an HTTP request and hands the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		id:   uuid.NewString(),
	}

	h.commands <- func() { h.registerClient(client) }

	go client.writePump()
	go client.readPump()
}

// Join adds a connection to a room. Requests for connections the hub
// does not manage are ignored.
func (h *Hub) Join(room string, c Conn) {
	client, ok := c.(*Client)
	if !ok {
		return
	}
	h.commands <- func() { h.joinRoom(client, room) }
}

// Broadcast delivers an event to every member of a room. Delivery is
// best effort and the call never blocks on slow clients.
func (h *Hub) Broadcast(room, event string, payload any) {
	data, err := Encode(event, 0, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to encode broadcast")
		return
	}
	h.commands <- func() { h.broadcastRoom(room, data) }
}

// drop schedules a client's removal. Safe to call from any goroutine.
func (h *Hub) drop(client *Client) {
	h.commands <- func() { h.unregisterClient(client) }
}

func (h *Hub) registerClient(client *Client) {
	h.clients[client] = true
	metrics.Connections.Inc()
	log.Info().Str("conn_id", client.id).Msg("connection accepted")

	// Mirror of the connect handshake: tell the client who it is.
	if data, err := Encode(EventAuth, 0, client.id); err == nil {
		client.enqueue(data)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)

	if client.room != "" {
		if members, ok := h.rooms[client.room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, client.room)
			}
		}
	}

	client.closeSend()

	if h.handler != nil {
		h.handler.OnDisconnect(client)
	}
	log.Info().Str("conn_id", client.id).Msg("connection closed")
}

func (h *Hub) joinRoom(client *Client, room string) {
	if !h.clients[client] || client.room != "" {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	client.room = room
}

func (h *Hub) broadcastRoom(room string, data []byte) {
	for client := range h.rooms[room] {
		if !client.enqueue(data) {
			// The client cannot keep up; evict it so its disconnect
			// path runs instead of letting it silently miss signals.
			log.Warn().Str("conn_id", client.id).Msg("dropping unresponsive client")
			h.unregisterClient(client)
		}
	}
}
