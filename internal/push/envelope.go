package push

import (
	"encoding/json"
)

// Reserved frame types consumed by the connection manager itself. They
// are never forwarded to domain subscribers.
const (
	TypeKeepalive             = "keepalive"
	TypeKeepaliveResponse     = "keepalive_response"
	TypeConnectionEstablished = "connection_established"
)

// Envelope is the wire frame exchanged over the push channel.
// Timestamp is epoch milliseconds.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
	ID        string          `json:"id"`
}

// Decode unmarshals the envelope's data payload into v.
func (e Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

type establishedPayload struct {
	ConnectionID string `json:"connection_id"`
}
