package gamebus_errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrClosed           = errors.New("connection closed")
	ErrInvalidChannel   = errors.New("invalid channel")
	ErrUnauthorized     = errors.New("unauthorized")
)

// ConnectionError reports a failed initial handshake with the broker.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// EncodingError reports a value that could not be converted to or from a payload.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding: %v", e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// HandlerError wraps a failure raised by a message handler. It is logged at the
// dispatch boundary and never returned to callers.
type HandlerError struct {
	Channel string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for %q: %v", e.Channel, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
