// Package websocket is the real-time messaging substrate for the game
// server. It accepts connections, frames events, and delivers them to
// named rooms.
//
// Architecture:
//
// The package uses a hub-and-spoke model. A central Hub goroutine owns
// all connection and room state; clients talk to it exclusively
// through a single command queue, which avoids locking on the hot
// path and preserves arrival order across operations (a room join
// queued before a broadcast is always applied first). Each connection
// is served by a dedicated read goroutine and a dedicated write
// goroutine.
//
// Wire Protocol:
//
// Every frame in either direction is a JSON envelope:
//
//	{"event": "join_game", "data": {...}, "ack": 1}
//
// A client that wants an acknowledgement sets a positive ack id; the
// server answers with an "ack" event carrying the same id. Server
// initiated events (broadcasts) carry no ack field.
//
// Rooms:
//
// Clients start in no room. The event handler decides when a
// connection joins a room (for this server: on an accepted join_game).
// A connection belongs to at most one room and leaves it only by
// disconnecting. Broadcasts are best effort: a client that cannot keep
// up with its send buffer is dropped.
//
// Event Handling:
//
// The Hub routes every inbound envelope to an EventHandler, and
// notifies it when a connection goes away. Handlers receive the Conn
// interface rather than the concrete client so game logic can be
// tested without a network.
package websocket
