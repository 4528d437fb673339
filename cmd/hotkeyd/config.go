package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the hotkeyd daemon.
//
// Keep defaults and validation centralized so the rest of the code can assume
// a well-formed config. Nothing outside this file parses user input: the
// daemon only ever sees the Resolved value produced by Resolve.
type Config struct {
	Device     DeviceConfig          `yaml:"device" toml:"device"`
	Features   FeaturesConfig        `yaml:"features" toml:"features"`
	Buttons    ButtonsConfig         `yaml:"buttons" toml:"buttons"`
	Power      PowerConfig           `yaml:"power" toml:"power"`
	Idle       IdleFileConfig        `yaml:"idle" toml:"idle"`
	Steps      StepsConfig           `yaml:"steps" toml:"steps"`
	Actions    map[string]ActionSpec `yaml:"actions" toml:"actions"`
	Brightness BrightnessCommands    `yaml:"brightness" toml:"brightness"`
	IPC        IPCConfig             `yaml:"ipc" toml:"ipc"`
	StateWS    StateWSConfig         `yaml:"state_ws" toml:"state_ws"`
	Logging    LoggingConfig         `yaml:"logging" toml:"logging"`
}

type DeviceConfig struct {
	// Identity selects the button profile. Empty means: read IdentityFile,
	// then fall back to DefaultIdentity.
	Identity        string   `yaml:"identity,omitempty" toml:"identity"`
	IdentityFile    string   `yaml:"identity_file" toml:"identity_file"`
	DefaultIdentity string   `yaml:"default_identity" toml:"default_identity"`
	Inputs          []string `yaml:"inputs" toml:"inputs"`
	Battery         string   `yaml:"battery" toml:"battery"`
}

type FeaturesConfig struct {
	Brightness  bool `yaml:"brightness" toml:"brightness"`
	Volume      bool `yaml:"volume" toml:"volume"`
	Wifi        bool `yaml:"wifi" toml:"wifi"`
	Suspend     bool `yaml:"suspend" toml:"suspend"`
	Bluetooth   bool `yaml:"bluetooth" toml:"bluetooth"`
	Speaker     bool `yaml:"speaker" toml:"speaker"`
	Headphone   bool `yaml:"headphone" toml:"headphone"`
	Performance bool `yaml:"performance" toml:"performance"`
}

type ButtonsConfig struct {
	Hotkey      string          `yaml:"hotkey,omitempty" toml:"hotkey"`
	PressPolicy string          `yaml:"press_policy,omitempty" toml:"press_policy"`
	Bindings    []BindingConfig `yaml:"bindings,omitempty" toml:"bindings"`
}

// BindingConfig adds a binding ahead of the profile defaults.
type BindingConfig struct {
	Key       string `yaml:"key" toml:"key"`
	Action    string `yaml:"action" toml:"action"`
	Chorded   bool   `yaml:"chorded" toml:"chorded"`
	OnRelease bool   `yaml:"on_release,omitempty" toml:"on_release"`
}

type PowerConfig struct {
	Key           string `yaml:"key" toml:"key"`
	DoublePush    bool   `yaml:"double_push" toml:"double_push"`
	MinIntervalMS int    `yaml:"min_interval_ms" toml:"min_interval_ms"`
	MaxIntervalMS int    `yaml:"max_interval_ms" toml:"max_interval_ms"`
	Action        string `yaml:"action" toml:"action"` // "shutdown" or "suspend"

	// LegacyFile is a key=value powerkey.conf; when present it wins over the
	// fields above for the keys it sets.
	LegacyFile string `yaml:"legacy_file" toml:"legacy_file"`
}

type IdleFileConfig struct {
	AutoSuspend   IdleTimerConfig `yaml:"auto_suspend" toml:"auto_suspend"`
	AutoDim       IdleTimerConfig `yaml:"auto_dim" toml:"auto_dim"`
	DimBrightness int             `yaml:"dim_brightness" toml:"dim_brightness"`
}

type IdleTimerConfig struct {
	Enabled                bool `yaml:"enabled" toml:"enabled"`
	TimeoutSec             int  `yaml:"timeout_sec" toml:"timeout_sec"`
	StayAwakeWhileCharging bool `yaml:"stay_awake_while_charging" toml:"stay_awake_while_charging"`
}

type StepsConfig struct {
	BrightnessPercent int `yaml:"brightness_percent" toml:"brightness_percent"`
	VolumePercent     int `yaml:"volume_percent" toml:"volume_percent"`
}

// ActionSpec is what an action does: argv lists run in order, with optional
// blink feedback before or after them.
type ActionSpec struct {
	Run           [][]string `yaml:"run" toml:"run"`
	Feedback      string     `yaml:"feedback,omitempty" toml:"feedback"` // "", "blink_on", "blink_off"
	FeedbackFirst bool       `yaml:"feedback_first,omitempty" toml:"feedback_first"`
}

// BrightnessCommands read and write the raw backlight level.
// "{value}" in Set is replaced with the level.
type BrightnessCommands struct {
	Get []string `yaml:"get" toml:"get"`
	Set []string `yaml:"set" toml:"set"`
}

type IPCConfig struct {
	Enabled    bool   `yaml:"enabled" toml:"enabled"`
	SocketPath string `yaml:"socket_path" toml:"socket_path"`
}

type StateWSConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Listen  string `yaml:"listen" toml:"listen"`
	Path    string `yaml:"path" toml:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"`
}

const (
	feedbackBlinkOn  = "blink_on"
	feedbackBlinkOff = "blink_off"

	powerActionShutdown = "shutdown"
	powerActionSuspend  = "suspend"
)

func cmdline(argv ...string) [][]string { return [][]string{argv} }

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	return Config{
		Device: DeviceConfig{
			IdentityFile:    defaultIdentityFile,
			DefaultIdentity: defaultIdentity,
			Inputs:          append([]string(nil), defaultInputDevices...),
			Battery:         defaultBatteryPath,
		},
		Features: FeaturesConfig{
			Brightness:  true,
			Volume:      true,
			Wifi:        true,
			Suspend:     true,
			Performance: true,
		},
		Power: PowerConfig{
			Key:           "KEY_POWER",
			MinIntervalMS: int(defaultDoublePushMin / time.Millisecond),
			MaxIntervalMS: int(defaultDoublePushMax / time.Millisecond),
			Action:        powerActionShutdown,
			LegacyFile:    defaultPowerkeyFile,
		},
		Idle: IdleFileConfig{
			AutoSuspend: IdleTimerConfig{
				TimeoutSec:             int(defaultAutoSuspendTimeout / time.Second),
				StayAwakeWhileCharging: true,
			},
			AutoDim: IdleTimerConfig{
				TimeoutSec:             int(defaultAutoDimTimeout / time.Second),
				StayAwakeWhileCharging: true,
			},
			DimBrightness: defaultDimBrightness,
		},
		Steps: StepsConfig{
			BrightnessPercent: defaultBrightnessStep,
			VolumePercent:     defaultVolumeStep,
		},
		Actions: map[string]ActionSpec{
			string(ActionBrightnessUp):    {Run: cmdline("brightnessctl", "s", "+{step}%")},
			string(ActionBrightnessDown):  {Run: cmdline("brightnessctl", "-n", "s", "{step}%-")},
			string(ActionVolumeUp):        {Run: cmdline("amixer", "-q", "sset", "Playback", "{step}%+")},
			string(ActionVolumeDown):      {Run: cmdline("amixer", "-q", "sset", "Playback", "{step}%-")},
			string(ActionVolumeMute):      {Run: cmdline("amixer", "sset", "Playback", "0")},
			string(ActionVolumeNormal):    {Run: cmdline("amixer", "sset", "Playback", "180")},
			string(ActionDarkOn):          {Run: cmdline("brightnessctl", "s", "10%")},
			string(ActionDarkOff):         {Run: cmdline("brightnessctl", "s", "50%")},
			string(ActionWifiOn):          {Run: cmdline("nmcli", "radio", "wifi", "on"), Feedback: feedbackBlinkOn, FeedbackFirst: true},
			string(ActionWifiOff):         {Run: cmdline("nmcli", "radio", "wifi", "off"), Feedback: feedbackBlinkOff},
			string(ActionBluetoothToggle): {Run: cmdline("rfkill", "toggle", "bluetooth")},
			string(ActionSuspend):         {Run: cmdline("sudo", "systemctl", "suspend")},
			string(ActionPowerOff):        {Run: cmdline("sudo", "shutdown", "-h", "now")},
			string(ActionHeadphoneInsert): {Run: cmdline("amixer", "-q", "sset", "Playback Path", "HP")},
			string(ActionHeadphoneRemove): {Run: cmdline("amixer", "-q", "sset", "Playback Path", "SPK")},
			string(ActionPerfMax):         {Run: cmdline("perfmax", "none"), Feedback: feedbackBlinkOn},
			string(ActionPerfNorm):        {Run: cmdline("perfnorm", "none"), Feedback: feedbackBlinkOff},
		},
		Brightness: BrightnessCommands{
			Get: []string{"brightnessctl", "g"},
			Set: []string{"brightnessctl", "s", "{value}"},
		},
		IPC: IPCConfig{
			Enabled:    true,
			SocketPath: defaultIPCSocket,
		},
		StateWS: StateWSConfig{
			Enabled: false,
			Listen:  "127.0.0.1:3002",
			Path:    "/ws/state",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a config file on top of DefaultConfig.
//
// Notes:
//   - ".toml" files are decoded as TOML, everything else as YAML.
//   - Unknown fields are rejected (helps catch typos) in both formats.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.NewDecoder(bytes.NewReader(b)).Decode(&cfg)
		if err != nil {
			return Config{}, fmt.Errorf("decode config toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("decode config toml: unknown field %q", undecoded[0].String())
		}
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	var extra yaml.Node
	switch err := dec.Decode(&extra); {
	case err == nil:
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	case !errors.Is(err, io.EOF):
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	return cfg, nil
}

// FlagOverrides applies overrides from flags on top of a loaded config.
// Each override is only applied if its pointer is non-nil.
type FlagOverrides struct {
	Inputs     *string // comma-separated
	Identity   *string
	IPCSocket  *string
	StateWS    *string
	LogLevel   *string
	DoublePush *bool
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Inputs != nil {
		var inputs []string
		for _, p := range strings.Split(*o.Inputs, ",") {
			if p = strings.TrimSpace(p); p != "" {
				inputs = append(inputs, p)
			}
		}
		cfg.Device.Inputs = inputs
	}
	if o.Identity != nil {
		cfg.Device.Identity = *o.Identity
	}
	if o.IPCSocket != nil {
		cfg.IPC.SocketPath = *o.IPCSocket
	}
	if o.StateWS != nil {
		cfg.StateWS.Enabled = *o.StateWS != ""
		cfg.StateWS.Listen = *o.StateWS
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.DoublePush != nil {
		cfg.Power.DoublePush = *o.DoublePush
	}
}

// ApplyLegacyPowerkey merges a powerkey.conf properties file if it exists.
//
// Recognized keys:
//
//	two_push_shutdown = enabled|disabled
//	max_interval_time = <seconds>   (window upper bound is this plus the minimum)
//	action            = suspend|shutdown
func (c *Config) ApplyLegacyPowerkey() (bool, error) {
	path := ExpandPath(c.Power.LegacyFile)
	if path == "" {
		return false, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	props, err := parseProperties(b)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}

	if v, ok := props["two_push_shutdown"]; ok {
		c.Power.DoublePush = v == "enabled"
	}
	if v, ok := props["max_interval_time"]; ok {
		sec, err := strconv.Atoi(v)
		if err != nil || sec < 0 {
			return false, fmt.Errorf("%s: max_interval_time must be a non-negative integer, got %q", path, v)
		}
		c.Power.MaxIntervalMS = sec*1000 + c.Power.MinIntervalMS
	}
	if v, ok := props["action"]; ok {
		c.Power.Action = v
	}
	return true, nil
}

// parseProperties reads "key=value" / "key: value" lines; '#' and '!' start comments.
func parseProperties(b []byte) (map[string]string, error) {
	props := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(b))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == '!' {
			continue
		}
		i := strings.IndexAny(line, "=:")
		if i <= 0 {
			return nil, fmt.Errorf("line %d: expected key=value", lineNo)
		}
		props[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
	}
	return props, sc.Err()
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	if len(c.Device.Inputs) == 0 {
		return errors.New("device.inputs must not be empty")
	}
	for i, dev := range c.Device.Inputs {
		if dev == "" {
			return fmt.Errorf("device.inputs[%d] is empty", i)
		}
	}
	if c.Device.Identity == "" && c.Device.DefaultIdentity == "" {
		return errors.New("device.default_identity must not be empty")
	}

	if c.Buttons.PressPolicy != "" {
		if _, err := parsePressPolicy(c.Buttons.PressPolicy); err != nil {
			return fmt.Errorf("buttons.press_policy: %w", err)
		}
	}
	for i, b := range c.Buttons.Bindings {
		if b.Key == "" || b.Action == "" {
			return fmt.Errorf("buttons.bindings[%d]: key and action are required", i)
		}
	}

	if c.Power.Action != powerActionShutdown && c.Power.Action != powerActionSuspend {
		return fmt.Errorf("power.action must be %q or %q", powerActionShutdown, powerActionSuspend)
	}
	if c.Power.MinIntervalMS < 0 {
		return errors.New("power.min_interval_ms must be >= 0")
	}
	if c.Power.MaxIntervalMS < c.Power.MinIntervalMS {
		return errors.New("power.max_interval_ms must be >= power.min_interval_ms")
	}

	for name, t := range map[string]IdleTimerConfig{
		"idle.auto_suspend": c.Idle.AutoSuspend,
		"idle.auto_dim":     c.Idle.AutoDim,
	} {
		if t.Enabled && t.TimeoutSec <= 0 {
			return fmt.Errorf("%s.timeout_sec must be > 0", name)
		}
	}
	if c.Idle.DimBrightness < 0 {
		return errors.New("idle.dim_brightness must be >= 0")
	}

	if c.Steps.BrightnessPercent <= 0 || c.Steps.BrightnessPercent > 100 {
		return errors.New("steps.brightness_percent must be between 1 and 100")
	}
	if c.Steps.VolumePercent <= 0 || c.Steps.VolumePercent > 100 {
		return errors.New("steps.volume_percent must be between 1 and 100")
	}

	for name, spec := range c.Actions {
		if _, err := parseAction(name); err != nil {
			return fmt.Errorf("actions: %w", err)
		}
		for i, argv := range spec.Run {
			if len(argv) == 0 || argv[0] == "" {
				return fmt.Errorf("actions.%s.run[%d] is empty", name, i)
			}
		}
		switch spec.Feedback {
		case "", feedbackBlinkOn, feedbackBlinkOff:
		default:
			return fmt.Errorf("actions.%s.feedback must be %q or %q", name, feedbackBlinkOn, feedbackBlinkOff)
		}
	}

	if len(c.Brightness.Get) == 0 || len(c.Brightness.Set) == 0 {
		return errors.New("brightness.get and brightness.set must not be empty")
	}

	if c.IPC.Enabled && c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty when ipc is enabled")
	}
	if c.StateWS.Enabled {
		if c.StateWS.Listen == "" {
			return errors.New("state_ws.listen must not be empty when state_ws is enabled")
		}
		if !strings.HasPrefix(c.StateWS.Path, "/") {
			return errors.New("state_ws.path must start with /")
		}
	}

	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// Resolved is the immutable, fully-checked configuration handed to the core.
type Resolved struct {
	Profile  *Profile
	Features FeatureSet
	Power    DoublePressConfig
	Idle     IdleConfig

	Inputs      []string
	BatteryPath string

	Actions    map[ActionID]ActionSpec
	Brightness BrightnessCommands
}

// Resolve turns the config into the values the daemon runs with.
// Every error here is a startup error; the running daemon never re-checks.
func (c *Config) Resolve() (*Resolved, error) {
	identity, err := c.identity()
	if err != nil {
		return nil, err
	}
	profile, err := lookupProfile(identity)
	if err != nil {
		return nil, err
	}

	var hotkey *Key
	if c.Buttons.Hotkey != "" {
		k, err := parseKey(c.Buttons.Hotkey)
		if err != nil {
			return nil, fmt.Errorf("buttons.hotkey: %w", err)
		}
		hotkey = &k
	}
	var policy *PressPolicy
	if c.Buttons.PressPolicy != "" {
		p, err := parsePressPolicy(c.Buttons.PressPolicy)
		if err != nil {
			return nil, fmt.Errorf("buttons.press_policy: %w", err)
		}
		policy = &p
	}
	overrides := make([]BindingOverride, 0, len(c.Buttons.Bindings))
	for i, bc := range c.Buttons.Bindings {
		k, err := parseKey(bc.Key)
		if err != nil {
			return nil, fmt.Errorf("buttons.bindings[%d].key: %w", i, err)
		}
		id, err := parseAction(bc.Action)
		if err != nil {
			return nil, fmt.Errorf("buttons.bindings[%d].action: %w", i, err)
		}
		overrides = append(overrides, BindingOverride{
			Chorded: bc.Chorded,
			Binding: Binding{Key: k, Action: id, Feature: featureOf(id), OnRelease: bc.OnRelease},
		})
	}
	profile.withOverrides(hotkey, policy, overrides)

	powerKey, err := parseKey(c.Power.Key)
	if err != nil {
		return nil, fmt.Errorf("power.key: %w", err)
	}
	profile.PowerKey = powerKey
	powerAction := ActionPowerOff
	if c.Power.Action == powerActionSuspend {
		powerAction = ActionSuspend
	}

	actions := make(map[ActionID]ActionSpec, len(c.Actions))
	for name, spec := range c.Actions {
		id, err := parseAction(name)
		if err != nil {
			return nil, fmt.Errorf("actions: %w", err)
		}
		actions[id] = c.expandSteps(id, spec)
	}

	return &Resolved{
		Profile: profile,
		Features: FeatureSet{
			FeatureBrightness:  c.Features.Brightness,
			FeatureVolume:      c.Features.Volume,
			FeatureWifi:        c.Features.Wifi,
			FeatureSuspend:     c.Features.Suspend,
			FeatureBluetooth:   c.Features.Bluetooth,
			FeatureSpeaker:     c.Features.Speaker,
			FeatureHeadphone:   c.Features.Headphone,
			FeaturePerformance: c.Features.Performance,
		},
		Power: DoublePressConfig{
			Key:     powerKey,
			Enabled: c.Power.DoublePush,
			Min:     time.Duration(c.Power.MinIntervalMS) * time.Millisecond,
			Max:     time.Duration(c.Power.MaxIntervalMS) * time.Millisecond,
			Action:  powerAction,
		},
		Idle: IdleConfig{
			Suspend:       c.Idle.AutoSuspend.policy(),
			Dim:           c.Idle.AutoDim.policy(),
			DimBrightness: c.Idle.DimBrightness,
		},
		Inputs:      append([]string(nil), c.Device.Inputs...),
		BatteryPath: c.Device.Battery,
		Actions:     actions,
		Brightness:  c.Brightness,
	}, nil
}

func (t IdleTimerConfig) policy() IdlePolicy {
	return IdlePolicy{
		Enabled:                t.Enabled,
		Timeout:                time.Duration(t.TimeoutSec) * time.Second,
		StayAwakeWhileCharging: t.StayAwakeWhileCharging,
	}
}

// expandSteps substitutes "{step}" with the step size of the action's feature.
func (c *Config) expandSteps(id ActionID, spec ActionSpec) ActionSpec {
	step := ""
	switch featureOf(id) {
	case FeatureBrightness:
		step = strconv.Itoa(c.Steps.BrightnessPercent)
	case FeatureVolume:
		step = strconv.Itoa(c.Steps.VolumePercent)
	}

	out := spec
	out.Run = make([][]string, len(spec.Run))
	for i, argv := range spec.Run {
		expanded := make([]string, len(argv))
		for j, arg := range argv {
			expanded[j] = strings.ReplaceAll(arg, "{step}", step)
		}
		out.Run[i] = expanded
	}
	return out
}

// identity picks the device profile name: explicit config, then the
// identity file's first line, then the default.
func (c *Config) identity() (string, error) {
	if c.Device.Identity != "" {
		return c.Device.Identity, nil
	}
	if c.Device.IdentityFile != "" {
		b, err := os.ReadFile(ExpandPath(c.Device.IdentityFile))
		switch {
		case err == nil:
			first, _, _ := strings.Cut(string(b), "\n")
			if id := strings.TrimRight(first, "\r\n \t"); id != "" {
				return id, nil
			}
		case !errors.Is(err, os.ErrNotExist):
			return "", fmt.Errorf("read device identity: %w", err)
		}
	}
	return c.Device.DefaultIdentity, nil
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
