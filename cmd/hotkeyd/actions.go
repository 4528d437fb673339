package main

import (
	"fmt"
	"sort"
)

// ============================================================================
// Action identifiers
// ============================================================================
// Actions are the abstract, side-effecting operations the daemon can trigger.
// The mapping from action to concrete command lives in the action runner;
// the mapping from button to action lives in the dispatch table.
// ============================================================================

// ActionID names one action capability.
type ActionID string

const (
	ActionBrightnessUp    ActionID = "brightness_up"
	ActionBrightnessDown  ActionID = "brightness_down"
	ActionVolumeUp        ActionID = "volume_up"
	ActionVolumeDown      ActionID = "volume_down"
	ActionVolumeMute      ActionID = "volume_mute"
	ActionVolumeNormal    ActionID = "volume_normal"
	ActionDarkOn          ActionID = "dark_on"
	ActionDarkOff         ActionID = "dark_off"
	ActionWifiOn          ActionID = "wifi_on"
	ActionWifiOff         ActionID = "wifi_off"
	ActionBluetoothToggle ActionID = "bluetooth_toggle"
	ActionSpeakerToggle   ActionID = "speaker_toggle"
	ActionSuspend         ActionID = "suspend"
	ActionPowerOff        ActionID = "power_off"
	ActionHeadphoneInsert ActionID = "headphone_insert"
	ActionHeadphoneRemove ActionID = "headphone_remove"
	ActionPerfMax         ActionID = "perf_max"
	ActionPerfNorm        ActionID = "perf_norm"
)

var knownActions = map[ActionID]Feature{
	ActionBrightnessUp:    FeatureBrightness,
	ActionBrightnessDown:  FeatureBrightness,
	ActionVolumeUp:        FeatureVolume,
	ActionVolumeDown:      FeatureVolume,
	ActionVolumeMute:      FeatureVolume,
	ActionVolumeNormal:    FeatureVolume,
	ActionDarkOn:          FeatureBrightness,
	ActionDarkOff:         FeatureBrightness,
	ActionWifiOn:          FeatureWifi,
	ActionWifiOff:         FeatureWifi,
	ActionBluetoothToggle: FeatureBluetooth,
	ActionSpeakerToggle:   FeatureSpeaker,
	ActionSuspend:         FeatureSuspend,
	ActionPowerOff:        FeatureSuspend,
	ActionHeadphoneInsert: FeatureHeadphone,
	ActionHeadphoneRemove: FeatureHeadphone,
	ActionPerfMax:         FeaturePerformance,
	ActionPerfNorm:        FeaturePerformance,
}

// parseAction validates a configured action name.
func parseAction(name string) (ActionID, error) {
	id := ActionID(name)
	if _, ok := knownActions[id]; !ok {
		return "", fmt.Errorf("unknown action %q", name)
	}
	return id, nil
}

// featureOf returns the feature flag gating an action.
func featureOf(id ActionID) Feature {
	return knownActions[id]
}

// ============================================================================
// Features
// ============================================================================

// Feature is a per-device enable flag gating a group of bindings.
type Feature string

const (
	FeatureBrightness  Feature = "brightness"
	FeatureVolume      Feature = "volume"
	FeatureWifi        Feature = "wifi"
	FeatureSuspend     Feature = "suspend"
	FeatureBluetooth   Feature = "bluetooth"
	FeatureSpeaker     Feature = "speaker"
	FeatureHeadphone   Feature = "headphone"
	FeaturePerformance Feature = "performance"
)

// FeatureSet is the resolved set of enabled features. Immutable after startup.
type FeatureSet map[Feature]bool

func (f FeatureSet) Enabled(feat Feature) bool { return f[feat] }

// Names returns the enabled features in stable order (for logs).
func (f FeatureSet) Names() []string {
	var out []string
	for k, v := range f {
		if v {
			out = append(out, string(k))
		}
	}
	sort.Strings(out)
	return out
}

// ============================================================================
// Capabilities
// ============================================================================

// ActionRunner executes action capabilities. Run may block (feedback blinks,
// suspend) and may fail; callers log the failure and carry on.
type ActionRunner interface {
	Run(id ActionID) error
}

// BrightnessControl reads and writes the raw backlight level.
type BrightnessControl interface {
	Brightness() (int, error)
	SetBrightness(level int) error
}

// BatteryStatus is the charging state reported by the power supply.
type BatteryStatus int

const (
	BatteryUnknown BatteryStatus = iota
	BatteryCharging
	BatteryDischarging
)

func (s BatteryStatus) String() string {
	switch s {
	case BatteryCharging:
		return "charging"
	case BatteryDischarging:
		return "discharging"
	default:
		return "unknown"
	}
}

// BatteryMonitor reports the current charging state. Polled on every evaluation.
type BatteryMonitor interface {
	Status() (BatteryStatus, error)
}
