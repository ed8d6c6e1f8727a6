// Package codec converts values to and from the text payloads carried on
// broker channels. Payloads are JSON.
package codec

import (
	"encoding/json"
	"fmt"

	gamebus_errors "gamebus/pkg/errors"
)

// Encode serializes v to a JSON payload.
func Encode(v any) (string, error) {
	if raw, ok := v.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return "", &gamebus_errors.EncodingError{Err: fmt.Errorf("invalid raw json")}
		}
		return string(raw), nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", &gamebus_errors.EncodingError{Err: err}
	}
	return string(data), nil
}

// Decode parses a payload into a new value of type T.
func Decode[T any](text string) (T, error) {
	var out T
	if err := DecodeInto(text, &out); err != nil {
		return out, err
	}
	return out, nil
}

// DecodeInto parses a payload into v, which must be a non-nil pointer.
func DecodeInto(text string, v any) error {
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return &gamebus_errors.EncodingError{Err: err}
	}
	return nil
}
