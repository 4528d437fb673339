package main

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// IPC requests
// ============================================================================
// Requests arrive as a JSON envelope: {"type": "...", "data": {...}}.
// Input requests never touch daemon state directly: they are turned into
// input_event records and written to the injection pipe, which the event
// loop reads like any other device.
// ============================================================================

// Request is a marker interface for all IPC requests.
type Request interface {
	requestMarker()
}

// KeyRequest injects a single key or switch event.
type KeyRequest struct {
	// Key is any name parseKey accepts: "BTN_TRIGGER_HAPPY4", "KEY_POWER", "sw:2".
	Key string `json:"key"`
	// Value is 0 for release, 1 for press, 2 for autorepeat.
	Value int32 `json:"value"`
	// DelayMS is slept before the event is written.
	DelayMS int `json:"delay_ms,omitempty"`
}

func (KeyRequest) requestMarker() {}

// TapRequest injects a press immediately followed by a release.
// With Hold set the press is a chord: Hold goes down first and up last.
type TapRequest struct {
	Key  string `json:"key"`
	Hold string `json:"hold,omitempty"`
}

func (TapRequest) requestMarker() {}

// StatusRequest asks for a state snapshot.
type StatusRequest struct{}

func (StatusRequest) requestMarker() {}

// RequestEnvelope wraps requests for JSON serialization.
type RequestEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalRequest decodes an envelope into a concrete request.
func UnmarshalRequest(b []byte) (Request, error) {
	var env RequestEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "key":
		var r KeyRequest
		if err := unmarshalData(env.Data, &r); err != nil {
			return nil, fmt.Errorf("unmarshal KeyRequest: %w", err)
		}
		if r.Key == "" {
			return nil, fmt.Errorf("key request: missing key")
		}
		return r, nil

	case "tap":
		var r TapRequest
		if err := unmarshalData(env.Data, &r); err != nil {
			return nil, fmt.Errorf("unmarshal TapRequest: %w", err)
		}
		if r.Key == "" {
			return nil, fmt.Errorf("tap request: missing key")
		}
		return r, nil

	case "status":
		return StatusRequest{}, nil

	case "":
		return nil, fmt.Errorf("missing request type")

	default:
		return nil, fmt.Errorf("unknown request type: %q", env.Type)
	}
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("missing data")
	}
	return json.Unmarshal(data, v)
}

// MarshalRequest serializes a request into its JSON envelope.
func MarshalRequest(r Request) ([]byte, error) {
	var env RequestEnvelope

	switch r := r.(type) {
	case KeyRequest:
		env.Type = "key"
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal KeyRequest: %w", err)
		}
		env.Data = data

	case TapRequest:
		env.Type = "tap"
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal TapRequest: %w", err)
		}
		env.Data = data

	case StatusRequest:
		env.Type = "status"

	default:
		return nil, fmt.Errorf("unsupported request type: %T", r)
	}

	return json.Marshal(env)
}
