package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestUnmarshalRequest(t *testing.T) {
	tests := []struct {
		in      string
		want    Request
		wantErr bool
	}{
		{in: `{"type":"key","data":{"key":"KEY_POWER","value":1}}`, want: KeyRequest{Key: "KEY_POWER", Value: 1}},
		{in: `{"type":"tap","data":{"key":"BTN_NORTH","hold":"BTN_TRIGGER_HAPPY4"}}`, want: TapRequest{Key: "BTN_NORTH", Hold: "BTN_TRIGGER_HAPPY4"}},
		{in: `{"type":"status"}`, want: StatusRequest{}},
		{in: `{"type":"key"}`, wantErr: true},
		{in: `{"type":"key","data":{"value":1}}`, wantErr: true},
		{in: `{"type":"tap","data":{}}`, wantErr: true},
		{in: `{"type":"reboot"}`, wantErr: true},
		{in: `{"data":{}}`, wantErr: true},
		{in: `not json`, wantErr: true},
	}

	for _, tt := range tests {
		got, err := UnmarshalRequest([]byte(tt.in))
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error, got %#v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: expected %#v, got %#v", tt.in, tt.want, got)
		}
	}
}

func injectAndDecode(t *testing.T, r Request) []RawEvent {
	t.Helper()
	var buf bytes.Buffer
	inj := NewInjector(&buf)
	inj.now = func() time.Time { return t0 }

	if err := inj.Inject(context.Background(), r); err != nil {
		t.Fatalf("Inject: %v", err)
	}
	evs, used := decodeInputEvents(buf.Bytes(), 9, nil)
	if used != buf.Len() {
		t.Fatalf("expected whole records, %d of %d bytes used", used, buf.Len())
	}
	return evs
}

func TestInjector_Key(t *testing.T) {
	evs := injectAndDecode(t, KeyRequest{Key: "KEY_POWER", Value: 1})

	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	ev := evs[0]
	if ev.Type != EV_KEY || ev.Code != KEY_POWER || ev.Value != 1 || ev.Source != 9 || !ev.Time.Equal(t0) {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestInjector_ChordTap(t *testing.T) {
	evs := injectAndDecode(t, TapRequest{Key: "BTN_DPAD_UP", Hold: "0x2c3"})

	want := []struct {
		code  uint16
		value int32
	}{
		{BTN_TRIGGER_HAPPY4, 1},
		{BTN_DPAD_UP, 1},
		{BTN_DPAD_UP, 0},
		{BTN_TRIGGER_HAPPY4, 0},
	}
	if len(evs) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(evs))
	}
	for i, w := range want {
		if evs[i].Code != w.code || evs[i].Value != w.value {
			t.Errorf("event %d: expected %#x=%d, got %#x=%d", i, w.code, w.value, evs[i].Code, evs[i].Value)
		}
	}
}

func TestInjector_SwitchKey(t *testing.T) {
	evs := injectAndDecode(t, KeyRequest{Key: "sw:2", Value: 0})
	if len(evs) != 1 || evs[0].Type != EV_SW || evs[0].Code != SW_HEADPHONE_INSERT || evs[0].Value != 0 {
		t.Fatalf("unexpected events %+v", evs)
	}
}

func TestInjector_Errors(t *testing.T) {
	inj := NewInjector(&bytes.Buffer{})
	for _, r := range []Request{
		KeyRequest{Key: "BTN_NOPE", Value: 1},
		KeyRequest{Key: "KEY_POWER", Value: -1},
		TapRequest{Key: "BTN_SOUTH", Hold: "BTN_NOPE"},
		StatusRequest{},
	} {
		if err := inj.Inject(context.Background(), r); err == nil {
			t.Errorf("%#v: expected error", r)
		}
	}
}

func TestIPCServer_RoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "hk")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)
	socket := filepath.Join(dir, "ipc.sock")

	var buf syncBuffer
	inj := NewInjector(&buf)
	stats := NewStats("oga", t0)
	stats.Actions.Store(3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runIPCServer(ctx, socket, inj, stats, testLogger()) }()

	waitUntil(t, time.Second, func() bool {
		_, err := os.Stat(socket)
		return err == nil
	}, "IPC socket not created in time")

	resp, err := SendIPCRequest(socket, StatusRequest{})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if resp.State == nil || resp.State.Identity != "oga" || resp.State.Actions != 3 {
		t.Fatalf("unexpected status response %+v", resp)
	}

	if _, err := SendIPCRequest(socket, TapRequest{Key: "KEY_POWER"}); err != nil {
		t.Fatalf("tap: %v", err)
	}
	if got := buf.Len(); got != 2*inputEventSize {
		t.Fatalf("expected two records written, got %d bytes", got)
	}

	if _, err := SendIPCRequest(socket, KeyRequest{Key: "BTN_NOPE", Value: 1}); err == nil {
		t.Fatalf("expected error response for unknown key")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runIPCServer: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("IPC server did not stop")
	}
	if _, err := os.Stat(socket); !os.IsNotExist(err) {
		t.Errorf("expected socket removed on shutdown")
	}
}
