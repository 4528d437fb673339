package main

import "testing"

func allFeatures() FeatureSet {
	fs := FeatureSet{}
	for _, f := range knownActions {
		fs[f] = true
	}
	return fs
}

func newTestTable(t *testing.T, identity string, features FeatureSet) (*DispatchTable, *recorder) {
	t.Helper()
	p, err := lookupProfile(identity)
	if err != nil {
		t.Fatalf("lookupProfile(%q): %v", identity, err)
	}
	rec := &recorder{}
	return NewDispatchTable(p, features, rec.invoke), rec
}

func TestDispatch_ChordedAndPlainTablesAreIndependent(t *testing.T) {
	table, rec := newTestTable(t, "oga1", allFeatures())

	// Plain: dedicated volume button.
	table.Dispatch(keyEvent(BTN_TRIGGER_HAPPY3, evValuePress, 0), false)
	// Chorded: the same button has no binding.
	table.Dispatch(keyEvent(BTN_TRIGGER_HAPPY3, evValuePress, 0), true)
	// Chorded: d-pad down mutes; plain d-pad down does nothing.
	table.Dispatch(keyEvent(BTN_DPAD_DOWN, evValuePress, 0), true)
	table.Dispatch(keyEvent(BTN_DPAD_DOWN, evValuePress, 0), false)

	want := []ActionID{ActionVolumeUp, ActionVolumeMute}
	if !equalActions(rec.actions(), want) {
		t.Fatalf("expected %v, got %v", want, rec.actions())
	}
	if rec.calls[0].Origin != "button" || rec.calls[1].Origin != "chord" {
		t.Errorf("expected origins button/chord, got %q/%q", rec.calls[0].Origin, rec.calls[1].Origin)
	}
}

func TestDispatch_FeatureFlagGatesBinding(t *testing.T) {
	features := allFeatures()
	features[FeatureWifi] = false
	table, rec := newTestTable(t, "rgb10maxtop", features)

	if _, ok := table.Dispatch(keyEvent(BTN_TR, evValuePress, 0), true); ok {
		t.Fatalf("expected wifi_on to be suppressed by disabled feature")
	}
	if _, ok := table.Dispatch(keyEvent(BTN_DPAD_UP, evValuePress, 0), true); !ok {
		t.Fatalf("expected brightness_up to fire")
	}
	if !equalActions(rec.actions(), []ActionID{ActionBrightnessUp}) {
		t.Fatalf("expected only brightness_up, got %v", rec.actions())
	}
}

func TestDispatch_PressPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy PressPolicy
		value  int32
		fires  bool
	}{
		{"press/press", PressOnly, evValuePress, true},
		{"press/repeat", PressOnly, evValueRepeat, false},
		{"press/release", PressOnly, evValueRelease, false},
		{"repeat/press", PressOrRepeat, evValuePress, true},
		{"repeat/repeat", PressOrRepeat, evValueRepeat, true},
		{"repeat/release", PressOrRepeat, evValueRelease, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := lookupProfile("oga1")
			p.PressPolicy = tt.policy
			rec := &recorder{}
			table := NewDispatchTable(p, allFeatures(), rec.invoke)

			_, fired := table.Dispatch(keyEvent(BTN_TRIGGER_HAPPY5, tt.value, 0), false)
			if fired != tt.fires {
				t.Fatalf("expected fired=%v, got %v", tt.fires, fired)
			}
		})
	}
}

func TestDispatch_FirstMatchWins(t *testing.T) {
	p, _ := lookupProfile("rgb10maxtop")
	p.withOverrides(nil, nil, []BindingOverride{{
		Chorded: true,
		Binding: bind(BTN_DPAD_UP, ActionVolumeUp),
	}})
	rec := &recorder{}
	table := NewDispatchTable(p, allFeatures(), rec.invoke)

	table.Dispatch(keyEvent(BTN_DPAD_UP, evValuePress, 0), true)

	if !equalActions(rec.actions(), []ActionID{ActionVolumeUp}) {
		t.Fatalf("expected the override to shadow brightness_up exactly once, got %v", rec.actions())
	}
}

func TestDispatch_HeadphoneSwitchEdges(t *testing.T) {
	table, rec := newTestTable(t, "oga", allFeatures())
	jack := func(v int32) RawEvent {
		return RawEvent{Type: EV_SW, Code: SW_HEADPHONE_INSERT, Value: v, Time: t0}
	}

	table.Dispatch(jack(1), false)
	table.Dispatch(jack(0), false)
	table.Dispatch(jack(1), true)

	want := []ActionID{ActionHeadphoneInsert, ActionHeadphoneRemove, ActionHeadphoneInsert}
	if !equalActions(rec.actions(), want) {
		t.Fatalf("expected %v, got %v", want, rec.actions())
	}
}

func TestDispatch_ReleaseWithoutBindingIsNoop(t *testing.T) {
	table, rec := newTestTable(t, "rgb10maxtop", allFeatures())

	if _, ok := table.Lookup(keyEvent(BTN_DPAD_UP, evValueRelease, 0), true); ok {
		t.Fatalf("expected no binding on release")
	}
	table.Dispatch(keyEvent(BTN_DPAD_UP, evValueRelease, 0), true)
	if len(rec.calls) != 0 {
		t.Fatalf("expected no invocation, got %v", rec.actions())
	}
}

func TestProfiles_SuspendButtonSwapsWithHotkey(t *testing.T) {
	top, _ := lookupProfile("rgb10maxtop")
	native, _ := lookupProfile("rgb10maxnative")

	if top.Hotkey != key(BTN_TRIGGER_HAPPY4) || native.Hotkey != key(BTN_TRIGGER_HAPPY2) {
		t.Fatalf("unexpected hotkeys: top=%v native=%v", top.Hotkey, native.Hotkey)
	}

	rec := &recorder{}
	NewDispatchTable(top, allFeatures(), rec.invoke).Dispatch(keyEvent(BTN_TRIGGER_HAPPY2, evValuePress, 0), true)
	NewDispatchTable(native, allFeatures(), rec.invoke).Dispatch(keyEvent(BTN_TRIGGER_HAPPY4, evValuePress, 0), true)

	want := []ActionID{ActionSuspend, ActionSuspend}
	if !equalActions(rec.actions(), want) {
		t.Fatalf("expected %v, got %v", want, rec.actions())
	}
}

func TestLookupProfile_Unknown(t *testing.T) {
	if _, err := lookupProfile("gameboy"); err == nil {
		t.Fatalf("expected error for unknown identity")
	}
}

func TestLookupProfile_ReturnsIndependentCopies(t *testing.T) {
	a, _ := lookupProfile("oga")
	a.withOverrides(nil, nil, []BindingOverride{{Binding: bind(BTN_SOUTH, ActionSuspend)}})

	b, _ := lookupProfile("oga")
	if len(b.Plain) != len(headphoneBindings()) {
		t.Fatalf("expected overrides not to leak into a fresh profile, got %d plain bindings", len(b.Plain))
	}
}
