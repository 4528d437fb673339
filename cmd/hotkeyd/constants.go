package main

import "time"

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_ABS = 0x03
	EV_SW  = 0x05

	KEY_POWER = 116

	BTN_SOUTH = 0x130
	BTN_EAST  = 0x131
	BTN_NORTH = 0x133
	BTN_WEST  = 0x134
	BTN_TL    = 0x136
	BTN_TR    = 0x137
	BTN_TL2   = 0x138
	BTN_TR2   = 0x139

	BTN_DPAD_UP    = 0x220
	BTN_DPAD_DOWN  = 0x221
	BTN_DPAD_LEFT  = 0x222
	BTN_DPAD_RIGHT = 0x223

	BTN_TRIGGER_HAPPY2 = 0x2c1
	BTN_TRIGGER_HAPPY3 = 0x2c2
	BTN_TRIGGER_HAPPY4 = 0x2c3
	BTN_TRIGGER_HAPPY5 = 0x2c4
	BTN_TRIGGER_HAPPY6 = 0x2c5

	SW_HEADPHONE_INSERT = 0x02
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Daemon defaults
const (
	defaultIdentity     = "rgb10maxtop"
	defaultIdentityFile = "/opt/.retrooz/device"
	defaultPowerkeyFile = "/usr/local/etc/powerkey.conf"
	defaultIPCSocket    = "/tmp/hotkeyd.sock"
	defaultBatteryPath  = "/sys/class/power_supply/battery"

	// Double push window on the power key.
	defaultDoublePushMin = 1 * time.Second
	defaultDoublePushMax = 2 * time.Second

	defaultBrightnessStep = 2 // percent
	defaultVolumeStep     = 1 // percent

	defaultAutoSuspendTimeout = 10 * time.Minute
	defaultAutoDimTimeout     = 2 * time.Minute
	defaultDimBrightness      = 10

	// Upper bound on events decoded from one read(2) call.
	maxEventsPerRead = 64
)

var defaultInputDevices = []string{
	"/dev/input/event3",
	"/dev/input/event2",
	"/dev/input/event0",
	"/dev/input/event1",
}
