package coordinator

// Inbound events a client may send on its connection.
const (
	EventJoinGame       = "join_game"
	EventStartGame      = "start game"
	EventPass           = "pass"
	EventExtend         = "extend"
	EventSendAnime      = "send anime"
	EventMessageWithAck = "message-with-ack"
)

// Outbound broadcast events. Start, pass and extend reuse the inbound
// names; these two exist only server-to-client.
const (
	EventPlayerJoined = "player joined"
	EventNextAnime    = "next anime"
)

// join_game ack values.
const (
	AckNew      = "ok_new"
	AckPaired   = "ok_paired"
	AckRoomFull = "room is full"
)

// joinPayload is the body of a join_game frame.
type joinPayload struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
}
