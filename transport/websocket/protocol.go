package websocket

import "encoding/json"

// Reserved event names used by the transport itself. All other event
// names belong to the application layer.
const (
	// EventAck acknowledges a client frame that carried an ack id.
	EventAck = "ack"

	// EventAuth is sent to a client right after its connection is
	// accepted, carrying the connection id.
	EventAuth = "auth"
)

// Envelope is the wire frame for every event in either direction.
// Data holds the raw payload so the application layer can decode it
// into an event-specific shape. Ack is zero when no acknowledgement
// is requested.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   int64           `json:"ack,omitempty"`
}

// Encode builds the wire form of an envelope with an arbitrary
// payload. A nil payload produces a frame without a data field.
func Encode(event string, ack int64, payload any) ([]byte, error) {
	env := Envelope{Event: event, Ack: ack}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}
