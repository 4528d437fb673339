package main

import "fmt"

// PressPolicy decides which values count as a press for dispatch.
// It is part of the device profile because some pads autorepeat and some don't.
type PressPolicy string

const (
	// PressOnly fires on value==1.
	PressOnly PressPolicy = "press"
	// PressOrRepeat fires on any value>0, so holding a button repeats the action.
	PressOrRepeat PressPolicy = "press_or_repeat"
)

func parsePressPolicy(s string) (PressPolicy, error) {
	switch PressPolicy(s) {
	case PressOnly, PressOrRepeat:
		return PressPolicy(s), nil
	default:
		return "", fmt.Errorf("press policy must be %q or %q, got %q", PressOnly, PressOrRepeat, s)
	}
}

func (p PressPolicy) matches(value int32) bool {
	if p == PressOrRepeat {
		return value > evValueRelease
	}
	return value == evValuePress
}

// Binding maps a key to an action. OnRelease bindings fire on value==0
// instead of a press (switches report removal that way).
type Binding struct {
	Key       Key
	Action    ActionID
	Feature   Feature
	OnRelease bool
}

func (b Binding) String() string {
	edge := "press"
	if b.OnRelease {
		edge = "release"
	}
	return fmt.Sprintf("%s(%s)->%s", b.Key, edge, b.Action)
}

// DispatchTable holds two independent, ordered binding lists: one active while
// the hotkey is held (chorded) and one while it is not (plain).
// First match wins; the tables are immutable after construction.
type DispatchTable struct {
	chorded  []Binding
	plain    []Binding
	features FeatureSet
	policy   PressPolicy
	invoke   func(id ActionID, origin string)
}

func NewDispatchTable(p *Profile, features FeatureSet, invoke func(ActionID, string)) *DispatchTable {
	return &DispatchTable{
		chorded:  p.Chorded,
		plain:    p.Plain,
		features: features,
		policy:   p.PressPolicy,
		invoke:   invoke,
	}
}

// Lookup returns the binding that would fire for ev, without invoking it.
func (t *DispatchTable) Lookup(ev RawEvent, modifierHeld bool) (Binding, bool) {
	press := t.policy.matches(ev.Value)
	release := ev.Value == evValueRelease
	if !press && !release {
		return Binding{}, false
	}

	table := t.plain
	if modifierHeld {
		table = t.chorded
	}

	key := ev.Key()
	for _, b := range table {
		if b.Key != key {
			continue
		}
		if b.OnRelease != release {
			continue
		}
		return b, true
	}
	return Binding{}, false
}

// Dispatch invokes the action bound to ev if its feature is enabled.
// It returns the action that ran, if any.
func (t *DispatchTable) Dispatch(ev RawEvent, modifierHeld bool) (ActionID, bool) {
	b, ok := t.Lookup(ev, modifierHeld)
	if !ok || !t.features.Enabled(b.Feature) {
		return "", false
	}
	origin := "button"
	if modifierHeld {
		origin = "chord"
	}
	t.invoke(b.Action, origin)
	return b.Action, true
}
