package redis

import "time"

// State is the lifecycle state of the broker session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a lifecycle notification emitted by the Manager.
type Event struct {
	Kind     EventKind
	State    State
	Endpoint string
	// Attempt is the reconnect attempt number, zero outside reconnection.
	Attempt int
	Err     error
	At      time.Time
}

// Observer receives lifecycle notifications on the supervisor goroutine. It
// must return quickly.
type Observer func(Event)
