package main

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownProfile is returned when the device identity has no button profile.
var ErrUnknownProfile = errors.New("unknown device profile")

// Profile is the fully-populated button layout of one device family.
type Profile struct {
	Identity    string
	Hotkey      Key
	PowerKey    Key
	PressPolicy PressPolicy
	Chorded     []Binding
	Plain       []Binding
}

func key(code uint16) Key { return Key{Type: EV_KEY, Code: code} }

func bind(code uint16, action ActionID) Binding {
	return Binding{Key: key(code), Action: action, Feature: featureOf(action)}
}

// headphoneBindings are active regardless of the hotkey: the jack does not
// care whether a button is held.
func headphoneBindings() []Binding {
	jack := Key{Type: EV_SW, Code: SW_HEADPHONE_INSERT}
	return []Binding{
		{Key: jack, Action: ActionHeadphoneInsert, Feature: FeatureHeadphone},
		{Key: jack, Action: ActionHeadphoneRemove, Feature: FeatureHeadphone, OnRelease: true},
	}
}

// chordedCommon is the hotkey layer shared by the face-button devices.
func chordedCommon(suspend uint16) []Binding {
	return []Binding{
		bind(BTN_DPAD_UP, ActionBrightnessUp),
		bind(BTN_DPAD_DOWN, ActionBrightnessDown),
		bind(BTN_NORTH, ActionVolumeUp),
		bind(BTN_SOUTH, ActionVolumeDown),
		bind(BTN_WEST, ActionVolumeMute),
		bind(BTN_EAST, ActionVolumeNormal),
		bind(BTN_TL2, ActionPerfMax),
		bind(BTN_TL, ActionPerfNorm),
		bind(BTN_DPAD_LEFT, ActionDarkOn),
		bind(BTN_DPAD_RIGHT, ActionDarkOff),
		bind(BTN_TR, ActionWifiOn),
		bind(BTN_TR2, ActionWifiOff),
		bind(suspend, ActionSuspend),
	}
}

func faceButtonProfile(identity string, hotkey, suspend uint16) Profile {
	return Profile{
		Identity:    identity,
		Hotkey:      key(hotkey),
		PowerKey:    key(KEY_POWER),
		PressPolicy: PressOnly,
		Chorded:     append(chordedCommon(suspend), headphoneBindings()...),
		Plain:       headphoneBindings(),
	}
}

// The OGA 1.1 has dedicated brightness and volume buttons, so those live in
// the plain table and the d-pad is free for mute/normalize under the hotkey.
func oga1Profile() Profile {
	return Profile{
		Identity:    "oga1",
		Hotkey:      key(BTN_TRIGGER_HAPPY6),
		PowerKey:    key(KEY_POWER),
		PressPolicy: PressOnly,
		Chorded: append([]Binding{
			bind(BTN_DPAD_DOWN, ActionVolumeMute),
			bind(BTN_DPAD_UP, ActionVolumeNormal),
			bind(BTN_TL2, ActionPerfMax),
			bind(BTN_TL, ActionPerfNorm),
			bind(BTN_DPAD_LEFT, ActionDarkOn),
			bind(BTN_DPAD_RIGHT, ActionDarkOff),
			bind(BTN_TR, ActionWifiOn),
			bind(BTN_TR2, ActionWifiOff),
			bind(BTN_NORTH, ActionSuspend),
		}, headphoneBindings()...),
		Plain: append([]Binding{
			bind(BTN_TRIGGER_HAPPY4, ActionBrightnessDown),
			bind(BTN_TRIGGER_HAPPY5, ActionBrightnessUp),
			bind(BTN_TRIGGER_HAPPY3, ActionVolumeUp),
			bind(BTN_TRIGGER_HAPPY2, ActionVolumeDown),
		}, headphoneBindings()...),
	}
}

var profileTable = map[string]func() Profile{
	"rgb10maxtop": func() Profile {
		return faceButtonProfile("rgb10maxtop", BTN_TRIGGER_HAPPY4, BTN_TRIGGER_HAPPY2)
	},
	"rgb10maxnative": func() Profile {
		return faceButtonProfile("rgb10maxnative", BTN_TRIGGER_HAPPY2, BTN_TRIGGER_HAPPY4)
	},
	"ogs": func() Profile {
		return faceButtonProfile("ogs", BTN_TRIGGER_HAPPY6, BTN_TRIGGER_HAPPY2)
	},
	"oga": func() Profile {
		return faceButtonProfile("oga", BTN_TRIGGER_HAPPY6, BTN_TRIGGER_HAPPY2)
	},
	"oga1": oga1Profile,
}

// lookupProfile returns a fresh copy of the profile for identity.
func lookupProfile(identity string) (*Profile, error) {
	mk, ok := profileTable[identity]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownProfile, identity, profileNames())
	}
	p := mk()
	return &p, nil
}

func profileNames() []string {
	names := make([]string, 0, len(profileTable))
	for name := range profileTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// withOverrides prepends configured bindings so they take priority over the
// profile defaults. A hotkey override also applies.
func (p *Profile) withOverrides(hotkey *Key, policy *PressPolicy, overrides []BindingOverride) {
	if hotkey != nil {
		p.Hotkey = *hotkey
	}
	if policy != nil {
		p.PressPolicy = *policy
	}

	var chorded, plain []Binding
	for _, o := range overrides {
		if o.Chorded {
			chorded = append(chorded, o.Binding)
		} else {
			plain = append(plain, o.Binding)
		}
	}
	p.Chorded = append(chorded, p.Chorded...)
	p.Plain = append(plain, p.Plain...)
}

// BindingOverride is one resolved config binding.
type BindingOverride struct {
	Chorded bool
	Binding Binding
}
