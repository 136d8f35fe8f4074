// Package lobby tracks which players occupy which game.
//
// The lobby is the single source of truth for game membership. A game
// holds at most two players: the host, who created the game by being
// the first to join, and an optional guest. Games exist only while at
// least one player occupies them; there is no persistence.
//
// Core Operations:
//
// Admit adds a player to a game and reports one of three outcomes:
// the player created the game (became host), the player was paired
// with the waiting host, or the game was already full.
//
// Evict removes a player. A departing host ends the game for everyone
// and the record is dropped; a departing guest leaves the host waiting
// for a new partner.
//
// Concurrency:
//
// The lobby partitions its records across a fixed set of shards, each
// guarded by its own lock, so games hashed to different shards never
// contend. Admit and Evict are atomic per game id: concurrent joins
// for the same fresh id always yield exactly one host.
package lobby
