package httpdto

import "encoding/json"

// PublishAccepted is returned once a message has been handed to Redis.
type PublishAccepted struct {
	Channel string `json:"channel"`
	Bytes   int    `json:"bytes"`
}

type HealthResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
	BusID  string `json:"bus_id,omitempty"`
}

// Envelope is the frame streamed to websocket subscribers. Payload holds the
// message verbatim when it is JSON and as a string otherwise.
type Envelope struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}
