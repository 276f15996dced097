// Package envelope normalizes the backend's response wrappers into a typed payload.
//
// The backend answers in several shapes depending on the controller:
//
//	{"success": true, "data": ...}
//	{"success": true, "result": ...}
//	{"data": {"data": ...}}
//	[...]               (bare payload)
//
// Normalize is applied once, at the API boundary, so stores only ever see T.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnexpectedShape is returned when a body matches none of the known envelopes
// or its payload cannot be decoded into the requested type.
var ErrUnexpectedShape = errors.New("envelope: unexpected response shape")

// Error is a failure the backend reported inside the envelope (success=false).
type Error struct {
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "envelope: backend reported failure"
	}
	return "envelope: backend reported failure: " + e.Message
}

var envelopeKeys = map[string]bool{"success": true, "message": true, "data": true, "result": true}

// Normalize extracts the payload from raw and decodes it into T.
func Normalize[T any](raw []byte) (T, error) {
	return normalize[T](raw, false)
}

// NormalizeOrBare is Normalize, except that an object carrying neither "data"
// nor "result" is taken to be the payload itself.
func NormalizeOrBare[T any](raw []byte) (T, error) {
	return normalize[T](raw, true)
}

// Check reports a success=false envelope as an *Error. It is meant for calls
// whose payload is ignored, so bodies that are empty or not an object pass.
func Check(raw []byte) error {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 || body[0] != '{' {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return failure(fields)
}

func normalize[T any](raw []byte, allowBareObject bool) (T, error) {
	var out T

	body := bytes.TrimSpace(raw)
	if len(body) == 0 {
		return out, fmt.Errorf("%w: empty body", ErrUnexpectedShape)
	}
	if body[0] != '{' {
		return decode[T](body)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return out, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}

	if err := failure(fields); err != nil {
		return out, err
	}

	if data, ok := fields["data"]; ok {
		return decode[T](unwrapNested(data))
	}
	if result, ok := fields["result"]; ok {
		return decode[T](result)
	}
	if allowBareObject {
		return decode[T](body)
	}
	return out, fmt.Errorf("%w: no data or result field", ErrUnexpectedShape)
}

// failure reports success=false as an *Error.
func failure(fields map[string]json.RawMessage) error {
	rawSuccess, ok := fields["success"]
	if !ok {
		return nil
	}
	var success bool
	if err := json.Unmarshal(rawSuccess, &success); err != nil || success {
		return nil
	}
	var msg string
	if rawMsg, ok := fields["message"]; ok {
		_ = json.Unmarshal(rawMsg, &msg)
	}
	return &Error{Message: msg}
}

// unwrapNested peels a second envelope off {"data": {"data": ...}}. An inner
// object is only treated as an envelope when every key is an envelope key.
func unwrapNested(data json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return data
	}
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &inner); err != nil {
		return data
	}
	nested, ok := inner["data"]
	if !ok {
		return data
	}
	for k := range inner {
		if !envelopeKeys[k] {
			return data
		}
	}
	return nested
}

func decode[T any](payload []byte) (T, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return out, nil
}
