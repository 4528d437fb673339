package main

// ModifierTracker remembers whether the hotkey button is held.
// Only events for the hotkey itself change the state; everything else is ignored.
type ModifierTracker struct {
	hotkey Key
	held   bool
}

func NewModifierTracker(hotkey Key) *ModifierTracker {
	return &ModifierTracker{hotkey: hotkey}
}

// Update applies ev and returns the resulting held state.
// Held strictly means the last hotkey value was 1, so an autorepeat (2)
// clears it.
func (m *ModifierTracker) Update(ev RawEvent) bool {
	if ev.Key() == m.hotkey {
		m.held = ev.Value == evValuePress
	}
	return m.held
}

// IsModifier reports whether ev is the hotkey itself. Such events are state
// changes only and never reach the dispatch table.
func (m *ModifierTracker) IsModifier(ev RawEvent) bool {
	return ev.Key() == m.hotkey
}

func (m *ModifierTracker) Held() bool { return m.held }
