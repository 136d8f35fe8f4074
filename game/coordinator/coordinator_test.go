package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/arakiyama/animeduel/game/catalog"
	"github.com/arakiyama/animeduel/game/lobby"
	"github.com/arakiyama/animeduel/transport/websocket"
)

// fakeConn implements websocket.Conn and records acks.
type fakeConn struct {
	id string

	mu      sync.Mutex
	binding websocket.Binding
	bound   bool
	acks    []any
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Bind(b websocket.Binding) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound {
		return false
	}
	c.binding = b
	c.bound = true
	return true
}

func (c *fakeConn) Binding() (websocket.Binding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.binding, c.bound
}

func (c *fakeConn) Ack(ackID int64, payload any) {
	if ackID == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acks = append(c.acks, payload)
}

func (c *fakeConn) lastAck(t *testing.T) any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.acks) == 0 {
		t.Fatal("Expected an ack, got none")
	}
	return c.acks[len(c.acks)-1]
}

func (c *fakeConn) ackCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.acks)
}

type broadcastRecord struct {
	room    string
	event   string
	payload any
}

type joinRecord struct {
	room string
	conn websocket.Conn
}

// fakeRooms implements Rooms and records every call.
type fakeRooms struct {
	mu         sync.Mutex
	joins      []joinRecord
	broadcasts []broadcastRecord
}

func (r *fakeRooms) Join(room string, c websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joins = append(r.joins, joinRecord{room: room, conn: c})
}

func (r *fakeRooms) Broadcast(room, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, broadcastRecord{room: room, event: event, payload: payload})
}

func (r *fakeRooms) broadcastCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.broadcasts)
}

func (r *fakeRooms) lastBroadcast(t *testing.T) broadcastRecord {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.broadcasts) == 0 {
		t.Fatal("Expected a broadcast, got none")
	}
	return r.broadcasts[len(r.broadcasts)-1]
}

// fixedProvider always yields the same anime.
type fixedProvider struct {
	anime catalog.Anime
}

func (p fixedProvider) Random(ctx context.Context) (catalog.Anime, error) {
	return p.anime, nil
}

// failingProvider always errors.
type failingProvider struct {
	err error
}

func (p failingProvider) Random(ctx context.Context) (catalog.Anime, error) {
	return catalog.Anime{}, p.err
}

func newTestCoordinator(p catalog.Provider) (*Coordinator, *lobby.Lobby, *fakeRooms) {
	l := lobby.New()
	rooms := &fakeRooms{}
	return New(l, p, rooms), l, rooms
}

func joinFrame(t *testing.T, gameID, playerID string) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(joinPayload{GameID: gameID, PlayerID: playerID})
	if err != nil {
		t.Fatalf("Failed to marshal join payload: %v", err)
	}
	return data
}

func TestJoinPairAndReject(t *testing.T) {
	co, l, rooms := newTestCoordinator(fixedProvider{})

	a := &fakeConn{id: "conn-a"}
	b := &fakeConn{id: "conn-b"}
	c := &fakeConn{id: "conn-c"}

	t.Run("first join opens the game", func(t *testing.T) {
		co.OnEvent(a, EventJoinGame, joinFrame(t, "abc", "p1"), 1)

		if got := a.lastAck(t); got != AckNew {
			t.Errorf("Expected ack %q, got %v", AckNew, got)
		}
		if len(rooms.joins) != 1 || rooms.joins[0].room != "abc" {
			t.Errorf("Expected connection joined to room 'abc', got %+v", rooms.joins)
		}
		if rooms.broadcastCount() != 0 {
			t.Errorf("Created join should not broadcast, got %+v", rooms.broadcasts)
		}
		bind, ok := a.Binding()
		if !ok || bind.GameID != "abc" || bind.PlayerID != "p1" {
			t.Errorf("Expected binding {abc p1}, got %+v ok=%v", bind, ok)
		}
	})

	t.Run("second join pairs and announces", func(t *testing.T) {
		co.OnEvent(b, EventJoinGame, joinFrame(t, "abc", "p2"), 1)

		ack, ok := b.lastAck(t).([]any)
		if !ok || len(ack) != 2 || ack[0] != AckPaired || ack[1] != "p1" {
			t.Errorf("Expected ack [ok_paired p1], got %v", b.lastAck(t))
		}
		bc := rooms.lastBroadcast(t)
		if bc.room != "abc" || bc.event != EventPlayerJoined || bc.payload != "p2" {
			t.Errorf("Expected 'player joined' broadcast with 'p2' in 'abc', got %+v", bc)
		}
	})

	t.Run("third join is refused and stays unbound", func(t *testing.T) {
		before := rooms.broadcastCount()
		co.OnEvent(c, EventJoinGame, joinFrame(t, "abc", "p3"), 1)

		if got := c.lastAck(t); got != AckRoomFull {
			t.Errorf("Expected ack %q, got %v", AckRoomFull, got)
		}
		if _, bound := c.Binding(); bound {
			t.Error("Refused connection must stay unbound")
		}
		if len(rooms.joins) != 2 {
			t.Errorf("Refused connection must not join the room, joins: %+v", rooms.joins)
		}
		if rooms.broadcastCount() != before {
			t.Error("Refused join must not broadcast")
		}
		host, guest, ok := l.Members("abc")
		if !ok || host != "p1" || guest != "p2" {
			t.Errorf("Record changed by refused join: host=%q guest=%q ok=%v", host, guest, ok)
		}
	})

	t.Run("refused connection may join another game", func(t *testing.T) {
		co.OnEvent(c, EventJoinGame, joinFrame(t, "xyz", "p3"), 2)

		if got := c.lastAck(t); got != AckNew {
			t.Errorf("Expected ack %q after retry, got %v", AckNew, got)
		}
		bind, ok := c.Binding()
		if !ok || bind.GameID != "xyz" {
			t.Errorf("Expected binding to 'xyz', got %+v ok=%v", bind, ok)
		}
	})
}

func TestJoinIdempotence(t *testing.T) {
	co, l, rooms := newTestCoordinator(fixedProvider{})
	a := &fakeConn{id: "conn-a"}

	co.OnEvent(a, EventJoinGame, joinFrame(t, "abc", "p1"), 1)
	co.OnEvent(a, EventJoinGame, joinFrame(t, "abc", "p1"), 2)
	co.OnEvent(a, EventJoinGame, joinFrame(t, "other", "p9"), 3)

	if a.ackCount() != 1 {
		t.Errorf("Only the first join should be acked, got %d acks", a.ackCount())
	}
	if len(rooms.joins) != 1 {
		t.Errorf("Only the first join should enter a room, got %d", len(rooms.joins))
	}
	bind, _ := a.Binding()
	if bind.GameID != "abc" || bind.PlayerID != "p1" {
		t.Errorf("Binding changed by repeated join: %+v", bind)
	}
	if _, _, ok := l.Members("other"); ok {
		t.Error("Repeated join must not touch the lobby")
	}
}

func TestJoinValidation(t *testing.T) {
	co, l, _ := newTestCoordinator(fixedProvider{})

	cases := []struct {
		name string
		data json.RawMessage
	}{
		{"malformed json", json.RawMessage(`{`)},
		{"empty game id", joinFrame(t, "", "p1")},
		{"empty player id", joinFrame(t, "abc", "")},
		{"control chars", json.RawMessage(`{"game_id":"a\nb","player_id":"p1"}`)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &fakeConn{id: "conn"}
			co.OnEvent(c, EventJoinGame, tc.data, 1)
			if c.ackCount() != 0 {
				t.Errorf("Invalid join should be ignored, got acks %v", c.acks)
			}
			if _, bound := c.Binding(); bound {
				t.Error("Invalid join must not bind the connection")
			}
		})
	}

	if l.Count() != 0 {
		t.Errorf("Invalid joins must not create games, lobby has %d", l.Count())
	}
}

func TestDisconnect(t *testing.T) {
	t.Run("host disconnect removes the game", func(t *testing.T) {
		co, l, _ := newTestCoordinator(fixedProvider{})
		a := &fakeConn{id: "conn-a"}
		b := &fakeConn{id: "conn-b"}
		co.OnEvent(a, EventJoinGame, joinFrame(t, "abc", "p1"), 1)
		co.OnEvent(b, EventJoinGame, joinFrame(t, "abc", "p2"), 1)

		co.OnDisconnect(a)

		if _, _, ok := l.Members("abc"); ok {
			t.Error("Game should be gone after host disconnect")
		}
		fresh := &fakeConn{id: "conn-d"}
		co.OnEvent(fresh, EventJoinGame, joinFrame(t, "abc", "p4"), 1)
		if got := fresh.lastAck(t); got != AckNew {
			t.Errorf("Expected fresh game after host disconnect, got ack %v", got)
		}
	})

	t.Run("guest disconnect keeps the host waiting", func(t *testing.T) {
		co, l, _ := newTestCoordinator(fixedProvider{})
		a := &fakeConn{id: "conn-a"}
		b := &fakeConn{id: "conn-b"}
		co.OnEvent(a, EventJoinGame, joinFrame(t, "abc", "p1"), 1)
		co.OnEvent(b, EventJoinGame, joinFrame(t, "abc", "p2"), 1)

		co.OnDisconnect(b)

		host, guest, ok := l.Members("abc")
		if !ok || host != "p1" || guest != "" {
			t.Errorf("Expected host waiting alone, got host=%q guest=%q ok=%v", host, guest, ok)
		}
		fresh := &fakeConn{id: "conn-d"}
		co.OnEvent(fresh, EventJoinGame, joinFrame(t, "abc", "p4"), 1)
		ack, isPair := fresh.lastAck(t).([]any)
		if !isPair || ack[0] != AckPaired || ack[1] != "p1" {
			t.Errorf("Expected pairing with p1 after guest disconnect, got %v", fresh.lastAck(t))
		}
	})

	t.Run("unbound disconnect is a no-op", func(t *testing.T) {
		co, l, _ := newTestCoordinator(fixedProvider{})
		co.OnDisconnect(&fakeConn{id: "conn-x"})
		if l.Count() != 0 {
			t.Errorf("Lobby touched by unbound disconnect, has %d games", l.Count())
		}
	})
}

func TestStartRound(t *testing.T) {
	t.Run("broadcasts selection and timestamp", func(t *testing.T) {
		co, _, rooms := newTestCoordinator(fixedProvider{anime: catalog.Anime{MalID: 5114}})
		a := &fakeConn{id: "conn-a"}
		co.OnEvent(a, EventJoinGame, joinFrame(t, "abc", "p1"), 1)

		co.startRound(a)

		bc := rooms.lastBroadcast(t)
		if bc.room != "abc" || bc.event != EventStartGame {
			t.Fatalf("Expected 'start game' broadcast in 'abc', got %+v", bc)
		}
		pair, ok := bc.payload.([2]int64)
		if !ok {
			t.Fatalf("Expected [mal_id, timestamp] payload, got %T", bc.payload)
		}
		if pair[0] != 5114 {
			t.Errorf("Expected mal id 5114, got %d", pair[0])
		}
		if pair[1] <= 0 {
			t.Errorf("Expected positive timestamp, got %d", pair[1])
		}
	})

	t.Run("catalog failure starts nothing", func(t *testing.T) {
		co, _, rooms := newTestCoordinator(failingProvider{err: errors.New("upstream down")})
		a := &fakeConn{id: "conn-a"}
		co.OnEvent(a, EventJoinGame, joinFrame(t, "abc", "p1"), 1)

		co.startRound(a)

		if rooms.broadcastCount() != 0 {
			t.Errorf("Failed fetch must not broadcast, got %+v", rooms.broadcasts)
		}
	})

	t.Run("empty catalog starts nothing", func(t *testing.T) {
		co, _, rooms := newTestCoordinator(failingProvider{err: catalog.ErrNoCandidates})
		a := &fakeConn{id: "conn-a"}
		co.OnEvent(a, EventJoinGame, joinFrame(t, "abc", "p1"), 1)

		co.startRound(a)

		if rooms.broadcastCount() != 0 {
			t.Error("Empty candidate list must not broadcast")
		}
	})

	t.Run("unbound connection starts nothing", func(t *testing.T) {
		co, _, rooms := newTestCoordinator(fixedProvider{anime: catalog.Anime{MalID: 1}})
		co.startRound(&fakeConn{id: "conn-x"})
		if rooms.broadcastCount() != 0 {
			t.Error("Unbound start must not broadcast")
		}
	})
}

func TestGameSignals(t *testing.T) {
	co, _, rooms := newTestCoordinator(fixedProvider{})
	a := &fakeConn{id: "conn-a"}
	co.OnEvent(a, EventJoinGame, joinFrame(t, "abc", "p1"), 1)

	t.Run("pass carries a timestamp", func(t *testing.T) {
		co.OnEvent(a, EventPass, nil, 0)
		bc := rooms.lastBroadcast(t)
		if bc.room != "abc" || bc.event != EventPass {
			t.Fatalf("Expected pass broadcast, got %+v", bc)
		}
		if ts, ok := bc.payload.(int64); !ok || ts <= 0 {
			t.Errorf("Expected positive timestamp payload, got %v", bc.payload)
		}
	})

	t.Run("extend carries no payload", func(t *testing.T) {
		co.OnEvent(a, EventExtend, nil, 0)
		bc := rooms.lastBroadcast(t)
		if bc.event != EventExtend || bc.payload != nil {
			t.Errorf("Expected bare extend broadcast, got %+v", bc)
		}
	})

	t.Run("send anime relays id with timestamp", func(t *testing.T) {
		co.OnEvent(a, EventSendAnime, json.RawMessage(`9253`), 0)
		bc := rooms.lastBroadcast(t)
		if bc.event != EventNextAnime {
			t.Fatalf("Expected 'next anime' broadcast, got %+v", bc)
		}
		pair, ok := bc.payload.([2]int64)
		if !ok || pair[0] != 9253 {
			t.Errorf("Expected relayed id 9253, got %v", bc.payload)
		}
	})

	t.Run("non-integer anime id is dropped", func(t *testing.T) {
		before := rooms.broadcastCount()
		co.OnEvent(a, EventSendAnime, json.RawMessage(`"nope"`), 0)
		if rooms.broadcastCount() != before {
			t.Error("Malformed anime id must not broadcast")
		}
	})
}

func TestSignalsFromUnboundConnection(t *testing.T) {
	co, _, rooms := newTestCoordinator(fixedProvider{})
	c := &fakeConn{id: "conn-x"}

	co.OnEvent(c, EventPass, nil, 0)
	co.OnEvent(c, EventExtend, nil, 0)
	co.OnEvent(c, EventSendAnime, json.RawMessage(`1`), 0)

	if rooms.broadcastCount() != 0 {
		t.Errorf("Unbound signals must be silent no-ops, got %+v", rooms.broadcasts)
	}
}

func TestMessageWithAck(t *testing.T) {
	co, _, _ := newTestCoordinator(fixedProvider{})
	c := &fakeConn{id: "conn-x"}

	t.Run("echoes text payloads", func(t *testing.T) {
		co.OnEvent(c, EventMessageWithAck, json.RawMessage(`"hello"`), 5)
		if got := c.lastAck(t); got != "replied: hello" {
			t.Errorf("Expected 'replied: hello', got %v", got)
		}
	})

	t.Run("works before joining a game", func(t *testing.T) {
		if _, bound := c.Binding(); bound {
			t.Fatal("Test connection should be unbound")
		}
	})

	t.Run("non-text payload gets no reply", func(t *testing.T) {
		before := c.ackCount()
		co.OnEvent(c, EventMessageWithAck, json.RawMessage(`{"not":"text"}`), 6)
		if c.ackCount() != before {
			t.Errorf("Non-text payload should get no ack, got %v", c.acks)
		}
	})
}

func TestUnknownEventIsIgnored(t *testing.T) {
	co, l, rooms := newTestCoordinator(fixedProvider{})
	c := &fakeConn{id: "conn-x"}

	co.OnEvent(c, "launch missiles", json.RawMessage(`{}`), 9)

	if c.ackCount() != 0 || rooms.broadcastCount() != 0 || l.Count() != 0 {
		t.Error("Unknown event must have no effect")
	}
}

func TestConcurrentJoins(t *testing.T) {
	co, l, _ := newTestCoordinator(fixedProvider{})
	const contenders = 16

	var wg sync.WaitGroup
	conns := make([]*fakeConn, contenders)
	frames := make([]json.RawMessage, contenders)
	for i := 0; i < contenders; i++ {
		conns[i] = &fakeConn{id: fmt.Sprintf("conn-%d", i)}
		frames[i] = joinFrame(t, "race", fmt.Sprintf("p%d", i))
	}
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			co.OnEvent(conns[i], EventJoinGame, frames[i], 1)
		}(i)
	}
	wg.Wait()

	newAcks, pairedAcks, fullAcks := 0, 0, 0
	for _, c := range conns {
		switch ack := c.lastAck(t).(type) {
		case string:
			switch ack {
			case AckNew:
				newAcks++
			case AckRoomFull:
				fullAcks++
			}
		case []any:
			pairedAcks++
		}
	}
	if newAcks != 1 || pairedAcks != 1 || fullAcks != contenders-2 {
		t.Errorf("Expected 1 new / 1 paired / %d full, got %d / %d / %d",
			contenders-2, newAcks, pairedAcks, fullAcks)
	}

	host, guest, ok := l.Members("race")
	if !ok || host == "" || guest == "" {
		t.Errorf("Expected a fully occupied game, got host=%q guest=%q ok=%v", host, guest, ok)
	}
}
