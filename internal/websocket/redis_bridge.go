package websocket

import (
	"encoding/json"

	"gamebus/internal/transport/httpdto"
	"gamebus/pkg/codec"
)

// Bridge is the bus handler for the relay. Every delivered message is
// wrapped in an envelope and broadcast to the channel's websocket clients.
type Bridge struct {
	hub *Hub
}

func NewBridge(hub *Hub) *Bridge {
	return &Bridge{hub: hub}
}

func (b *Bridge) ProcessMessage(channel, message string) error {
	frame, err := codec.Encode(httpdto.Envelope{Channel: channel, Payload: payloadOf(message)})
	if err != nil {
		return err
	}
	b.hub.Broadcast(channel, []byte(frame))
	return nil
}

func payloadOf(message string) json.RawMessage {
	if json.Valid([]byte(message)) {
		return json.RawMessage(message)
	}
	quoted, _ := json.Marshal(message)
	return quoted
}
