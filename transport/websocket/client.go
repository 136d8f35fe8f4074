package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Frames buffered per client before it counts as unresponsive.
	sendBufferSize = 256
)

// Binding ties a connection to the game and player identity it joined
// with. It is set exactly once, when a join is accepted, and read on
// every subsequent room-scoped event and on disconnect.
type Binding struct {
	GameID   string
	PlayerID string
}

// Conn is the handler-facing view of a connection.
type Conn interface {
	// ID returns the transport-assigned connection id.
	ID() string

	// Bind attaches the game/player identity to the connection. It
	// returns false, leaving the existing binding untouched, if the
	// connection was already bound.
	Bind(b Binding) bool

	// Binding returns the current binding, if any.
	Binding() (Binding, bool)

	// Ack answers a client frame that requested an acknowledgement.
	// It is a no-op when ackID is zero.
	Ack(ackID int64, payload any)
}

// Client is one websocket connection managed by the Hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	// room is the name of the room this client joined, or "". Owned
	// by the hub goroutine.
	room string

	mu      sync.Mutex
	binding Binding
	bound   bool
	closed  bool
}

// ID returns the transport-assigned connection id.
func (c *Client) ID() string { return c.id }

// Bind attaches the game/player identity to the connection, first
// binding wins.
func (c *Client) Bind(b Binding) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound {
		return false
	}
	c.binding = b
	c.bound = true
	return true
}

// Binding returns the connection's binding, if set.
func (c *Client) Binding() (Binding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.binding, c.bound
}

// Ack sends an ack frame back to this client. Delivery is best
// effort; a client that cannot take the frame is dropped.
func (c *Client) Ack(ackID int64, payload any) {
	if ackID == 0 {
		return
	}
	data, err := Encode(EventAck, ackID, payload)
	if err != nil {
		log.Error().Err(err).Str("conn_id", c.id).Msg("failed to encode ack")
		return
	}
	if !c.enqueue(data) {
		log.Warn().Str("conn_id", c.id).Msg("dropping unresponsive client")
		c.hub.drop(c)
	}
}

// enqueue hands a frame to the write pump without blocking. It
// reports false when the client is already closed or its buffer is
// full; callers decide whether that evicts the client.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend shuts the write pump down exactly once. Only the hub
// goroutine calls this, during unregistration; the mutex keeps a
// concurrent enqueue from racing the close.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump pumps frames from the websocket connection to the event
// handler. It runs in its own goroutine; events from one connection
// are therefore handled in arrival order.
func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("conn_id", c.id).Msg("websocket read error")
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Debug().Err(err).Str("conn_id", c.id).Msg("dropping malformed frame")
			continue
		}
		if env.Event == "" {
			continue
		}
		c.hub.handler.OnEvent(c, env.Event, env.Data, env.Ack)
	}
}

// writePump pumps frames from the send buffer to the websocket
// connection and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
