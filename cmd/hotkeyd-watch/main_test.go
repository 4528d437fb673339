package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestFormatEnvelope(t *testing.T) {
	tests := []struct {
		frame string
		want  string
	}{
		{`{"type":"action_fired","ts":"2024-03-01T12:00:00Z","data":{"action":"wifi_on","origin":"chord"}}`, "[ACTION] wifi_on (chord)"},
		{`{"type":"action_fired","ts":"2024-03-01T12:00:00Z","data":{"action":"suspend","origin":"auto_suspend","error":"exit status 1"}}`, "failed: exit status 1"},
		{`{"type":"dim_changed","ts":"2024-03-01T12:00:00Z","data":{"active":true,"level":10}}`, "[DIM] DIMMED level=10"},
		{`{"type":"modifier_changed","ts":"2024-03-01T12:00:00Z","data":{"held":false}}`, "[MODIFIER] RELEASED"},
		{`{"type":"device_lost","ts":"2024-03-01T12:00:00Z","data":{"device":"/dev/input/event2"}}`, "[DEVICE LOST] /dev/input/event2"},
		{`{"type":"state_init","ts":"2024-03-01T12:00:00Z","data":{"identity":"oga"}}`, `"identity": "oga"`},
		{`{"type":"future","ts":"2024-03-01T12:00:00Z","data":{"x":1}}`, `[future] {"x":1}`},
	}

	for _, tt := range tests {
		var env envelope
		if err := json.Unmarshal([]byte(tt.frame), &env); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.frame, err)
		}
		if got := formatEnvelope(env); !strings.Contains(got, tt.want) {
			t.Errorf("expected %q in %q", tt.want, got)
		}
	}
}
