// Package coordinator drives the game session lifecycle. It translates
// connection events into lobby mutations and room broadcasts.
//
// Per-Connection State:
//
// A connection starts unbound. The first accepted join_game binds a
// game id and player id to it, admits the player into the lobby, and
// places the connection in the game's broadcast room. The binding is
// immutable for the rest of the connection's life: later join_game
// frames on the same connection are ignored, and game signals from a
// connection that never joined are dropped.
//
// A join refused because the game is full leaves the connection
// unbound, so it may still join a different game later.
//
// Game Signals:
//
// Once bound, a connection can start a round (the coordinator picks a
// random anime from the catalog and announces it to the room), pass,
// ask for time extension, or relay the next anime id. All of these
// fan out to the whole room with a fresh server timestamp where the
// protocol calls for one. A failed catalog fetch silently skips the
// round; nobody is notified and nothing is retried.
//
// Disconnects evict the player from the lobby: a departing host ends
// the game, a departing guest leaves the host waiting. The remaining
// peer is not told; it infers departure from the silence.
package coordinator
