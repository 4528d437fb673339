package main

import (
	"math/rand"
	"testing"
)

func TestModifierTracker_PressAndRelease(t *testing.T) {
	m := NewModifierTracker(key(BTN_TRIGGER_HAPPY4))

	if m.Held() {
		t.Fatalf("expected not held initially")
	}
	if !m.Update(keyEvent(BTN_TRIGGER_HAPPY4, evValuePress, 0)) {
		t.Fatalf("expected held after press")
	}
	if !m.Update(keyEvent(BTN_SOUTH, evValuePress, 0)) {
		t.Fatalf("expected other keys to leave held state unchanged")
	}
	if m.Update(keyEvent(BTN_TRIGGER_HAPPY4, evValueRelease, 0)) {
		t.Fatalf("expected not held after release")
	}
}

func TestModifierTracker_RepeatIsNotHeld(t *testing.T) {
	m := NewModifierTracker(key(BTN_TRIGGER_HAPPY4))
	m.Update(keyEvent(BTN_TRIGGER_HAPPY4, evValuePress, 0))

	if m.Update(keyEvent(BTN_TRIGGER_HAPPY4, evValueRepeat, 0)) {
		t.Fatalf("expected held=false for value 2")
	}
}

func TestModifierTracker_SwitchWithSameCodeIgnored(t *testing.T) {
	m := NewModifierTracker(Key{Type: EV_KEY, Code: SW_HEADPHONE_INSERT})
	m.Update(RawEvent{Type: EV_SW, Code: SW_HEADPHONE_INSERT, Value: 1})
	if m.Held() {
		t.Fatalf("expected EV_SW event not to match an EV_KEY hotkey")
	}
}

// The held state after event n depends only on the last hotkey event up to n.
func TestModifierTracker_HistoryIndependence(t *testing.T) {
	hotkey := key(BTN_TRIGGER_HAPPY6)
	codes := []uint16{BTN_TRIGGER_HAPPY6, BTN_SOUTH, BTN_NORTH, BTN_DPAD_UP, KEY_POWER}
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		m := NewModifierTracker(hotkey)
		lastHotkeyValue := int32(-1)

		for n := 0; n < 50; n++ {
			ev := keyEvent(codes[rng.Intn(len(codes))], int32(rng.Intn(3)), 0)
			got := m.Update(ev)
			if ev.Code == BTN_TRIGGER_HAPPY6 {
				lastHotkeyValue = ev.Value
			}

			want := lastHotkeyValue == evValuePress
			if got != want {
				t.Fatalf("trial %d event %d: expected held=%v, got %v", trial, n, want, got)
			}
		}
	}
}
