package lobby

import (
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog/log"
)

// shardCount is a power of two so the hash reduction is a mask.
const shardCount = 16

// Outcome reports what Admit did with the joining player.
type Outcome int

const (
	// Created means the player opened a fresh game and became its host.
	Created Outcome = iota
	// Paired means the player filled the guest slot of a waiting game.
	Paired
	// Rejected means the game already had two players.
	Rejected
)

// String returns the outcome name, mostly for logs and metrics labels.
func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Paired:
		return "paired"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// AdmitResult is the outcome of a join attempt. HostID is set only
// when Outcome is Paired; the caller needs it to tell the new guest
// who they were matched with.
type AdmitResult struct {
	Outcome Outcome
	HostID  string
}

// Eviction reports what Evict did.
type Eviction int

const (
	// EvictionNone means the game did not exist or the player was not
	// a member of it.
	EvictionNone Eviction = iota
	// EvictionHost means the host left and the whole game was removed.
	EvictionHost
	// EvictionGuest means the guest left and the host keeps waiting.
	EvictionGuest
)

// record is one game's membership. An empty guest string means the
// slot is vacant; player ids are validated non-empty before they
// reach the lobby.
type record struct {
	host  string
	guest string
}

type shard struct {
	mu    sync.RWMutex
	games map[string]*record
}

// Lobby is a sharded map of game id to membership record.
type Lobby struct {
	shards [shardCount]*shard
}

// New returns an empty lobby.
func New() *Lobby {
	l := &Lobby{}
	for i := range l.shards {
		l.shards[i] = &shard{games: make(map[string]*record)}
	}
	return l
}

func (l *Lobby) shardFor(gameID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(gameID))
	return l.shards[h.Sum32()&(shardCount-1)]
}

// Admit adds playerID to the game identified by gameID, creating the
// game if needed. The returned result is one of:
//
//   - Created: no game existed; playerID is now its host.
//   - Paired:  the game had a waiting host; playerID took the guest
//     slot and HostID names the host.
//   - Rejected: both slots were occupied; the record is unchanged.
//
// Admit is atomic with respect to other Admit and Evict calls for the
// same game id.
func (l *Lobby) Admit(gameID, playerID string) AdmitResult {
	s := l.shardFor(gameID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.games[gameID]; ok {
		if rec.guest != "" {
			return AdmitResult{Outcome: Rejected}
		}
		rec.guest = playerID
		return AdmitResult{Outcome: Paired, HostID: rec.host}
	}

	s.games[gameID] = &record{host: playerID}
	return AdmitResult{Outcome: Created}
}

// Evict removes playerID from the game identified by gameID. A
// departing host removes the entire record; a departing guest only
// vacates the guest slot. Evicting from a game that does not exist,
// or a player that is not a member, changes nothing.
func (l *Lobby) Evict(gameID, playerID string) Eviction {
	s := l.shardFor(gameID)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.games[gameID]
	if !ok {
		return EvictionNone
	}

	switch playerID {
	case rec.host:
		delete(s.games, gameID)
		log.Info().Str("game_id", gameID).Str("player_id", playerID).Msg("host left")
		return EvictionHost
	case rec.guest:
		rec.guest = ""
		log.Info().Str("game_id", gameID).Str("player_id", playerID).Msg("guest left")
		return EvictionGuest
	default:
		log.Info().Str("game_id", gameID).Str("player_id", playerID).Msg("invalid removal of player")
		return EvictionNone
	}
}

// Members returns the current occupants of a game. The guest string is
// empty when the slot is vacant; ok is false when the game does not
// exist.
func (l *Lobby) Members(gameID string) (host, guest string, ok bool) {
	s := l.shardFor(gameID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.games[gameID]
	if !exists {
		return "", "", false
	}
	return rec.host, rec.guest, true
}

// Count returns the number of games currently open across all shards.
func (l *Lobby) Count() int {
	total := 0
	for _, s := range l.shards {
		s.mu.RLock()
		total += len(s.games)
		s.mu.RUnlock()
	}
	return total
}
