package coordinator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arakiyama/animeduel/game/catalog"
	"github.com/arakiyama/animeduel/game/lobby"
	"github.com/arakiyama/animeduel/metrics"
	"github.com/arakiyama/animeduel/transport/websocket"
	"github.com/arakiyama/animeduel/validate"
)

// fetchTimeout bounds the catalog fetch during round start. The fetch
// is never cancelled by a disconnect; the broadcast just reaches
// whoever is still in the room.
const fetchTimeout = 15 * time.Second

// Rooms is the slice of the messaging substrate the coordinator needs:
// putting a connection into a game's room and fanning events out to it.
type Rooms interface {
	Join(room string, c websocket.Conn)
	Broadcast(room, event string, payload any)
}

// Coordinator implements websocket.EventHandler for the game protocol.
type Coordinator struct {
	lobby   *lobby.Lobby
	catalog catalog.Provider
	rooms   Rooms
}

// New creates a coordinator over the given lobby, catalog provider and
// room substrate.
func New(l *lobby.Lobby, p catalog.Provider, r Rooms) *Coordinator {
	return &Coordinator{lobby: l, catalog: p, rooms: r}
}

// OnEvent routes one inbound frame. Unknown events are dropped.
func (co *Coordinator) OnEvent(c websocket.Conn, event string, data json.RawMessage, ackID int64) {
	switch event {
	case EventJoinGame:
		co.handleJoin(c, data, ackID)
	case EventStartGame:
		// The catalog fetch is network I/O; run it off the
		// connection's read loop and let it finish even if the
		// requester disconnects meanwhile.
		go co.startRound(c)
	case EventPass:
		co.handlePass(c)
	case EventExtend:
		co.handleExtend(c)
	case EventSendAnime:
		co.handleSendAnime(c, data)
	case EventMessageWithAck:
		co.handleEcho(c, data, ackID)
	default:
		log.Debug().Str("event", event).Str("conn_id", c.ID()).Msg("ignoring unknown event")
	}
}

// OnDisconnect evicts the departing player from its game, if the
// connection ever joined one.
func (co *Coordinator) OnDisconnect(c websocket.Conn) {
	b, ok := c.Binding()
	if !ok {
		log.Info().Str("conn_id", c.ID()).Msg("disconnected with no game binding")
		return
	}
	co.lobby.Evict(b.GameID, b.PlayerID)
}

func (co *Coordinator) handleJoin(c websocket.Conn, data json.RawMessage, ackID int64) {
	if _, bound := c.Binding(); bound {
		// First binding wins for the life of the connection.
		log.Debug().Str("conn_id", c.ID()).Msg("ignoring duplicate join")
		return
	}

	var req joinPayload
	if err := json.Unmarshal(data, &req); err != nil {
		log.Debug().Err(err).Str("conn_id", c.ID()).Msg("malformed join payload")
		return
	}
	if err := validate.GameID(req.GameID); err != nil {
		log.Debug().Err(err).Str("conn_id", c.ID()).Msg("rejecting join: bad game id")
		return
	}
	if err := validate.PlayerID(req.PlayerID); err != nil {
		log.Debug().Err(err).Str("conn_id", c.ID()).Msg("rejecting join: bad player id")
		return
	}

	res := co.lobby.Admit(req.GameID, req.PlayerID)
	metrics.Joins.WithLabelValues(res.Outcome.String()).Inc()
	log.Info().
		Str("game_id", req.GameID).
		Str("player_id", req.PlayerID).
		Stringer("outcome", res.Outcome).
		Msg("join attempt")

	switch res.Outcome {
	case lobby.Created:
		c.Bind(websocket.Binding{GameID: req.GameID, PlayerID: req.PlayerID})
		c.Ack(ackID, AckNew)
		co.rooms.Join(req.GameID, c)

	case lobby.Paired:
		c.Bind(websocket.Binding{GameID: req.GameID, PlayerID: req.PlayerID})
		c.Ack(ackID, []any{AckPaired, res.HostID})
		co.rooms.Join(req.GameID, c)
		co.broadcast(req.GameID, EventPlayerJoined, req.PlayerID)

	case lobby.Rejected:
		// Connection stays unbound and out of the room, free to try
		// another game.
		c.Ack(ackID, AckRoomFull)
	}
}

// startRound picks a random anime and announces it to the room. Any
// catalog failure skips the round without notifying anyone.
func (co *Coordinator) startRound(c websocket.Conn) {
	b, ok := c.Binding()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	anime, err := co.catalog.Random(ctx)
	if err != nil {
		metrics.CatalogFailures.Inc()
		log.Warn().Err(err).Str("game_id", b.GameID).Msg("round not started, catalog fetch failed")
		return
	}

	ts := timestamp()
	log.Info().Str("game_id", b.GameID).Int64("mal_id", anime.MalID).Int64("ts", ts).Msg("starting round")
	co.broadcast(b.GameID, EventStartGame, [2]int64{anime.MalID, ts})
}

func (co *Coordinator) handlePass(c websocket.Conn) {
	b, ok := c.Binding()
	if !ok {
		return
	}
	co.broadcast(b.GameID, EventPass, timestamp())
}

func (co *Coordinator) handleExtend(c websocket.Conn) {
	b, ok := c.Binding()
	if !ok {
		return
	}
	co.broadcast(b.GameID, EventExtend, nil)
}

func (co *Coordinator) handleSendAnime(c websocket.Conn, data json.RawMessage) {
	b, ok := c.Binding()
	if !ok {
		return
	}
	var animeID int64
	if err := json.Unmarshal(data, &animeID); err != nil {
		log.Debug().Err(err).Str("conn_id", c.ID()).Msg("malformed anime id")
		return
	}
	co.broadcast(b.GameID, EventNextAnime, [2]int64{animeID, timestamp()})
}

// handleEcho answers a connectivity probe. It works on unbound
// connections too; the probe is not room-scoped. Non-string payloads
// get no reply.
func (co *Coordinator) handleEcho(c websocket.Conn, data json.RawMessage, ackID int64) {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		log.Debug().Str("conn_id", c.ID()).Msg("echo payload is not text, no reply")
		return
	}
	c.Ack(ackID, "replied: "+text)
}

func (co *Coordinator) broadcast(room, event string, payload any) {
	metrics.Broadcasts.WithLabelValues(event).Inc()
	co.rooms.Broadcast(room, event, payload)
}

// timestamp is the server clock stamped onto round signals: unix epoch
// seconds, fresh at emission time.
func timestamp() int64 {
	return time.Now().Unix()
}
