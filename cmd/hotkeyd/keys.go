package main

import (
	"fmt"
	"strconv"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// parseKey resolves a configured key name into a Key.
//
// Accepted forms:
//   - kernel names: "BTN_DPAD_UP", "KEY_POWER", "SW_HEADPHONE_INSERT"
//   - numeric key codes: "0x2c5", "709"
//   - numeric switch codes: "sw:2"
func parseKey(name string) (Key, error) {
	s := strings.ToUpper(strings.TrimSpace(name))
	if s == "" {
		return Key{}, fmt.Errorf("empty key name")
	}

	if strings.HasPrefix(s, "SW:") {
		code, err := strconv.ParseUint(s[3:], 0, 16)
		if err != nil {
			return Key{}, fmt.Errorf("invalid switch code %q: %w", name, err)
		}
		return Key{Type: EV_SW, Code: uint16(code)}, nil
	}
	if strings.HasPrefix(s, "SW_") {
		code, ok := evdev.SWFromString[s]
		if !ok {
			return Key{}, fmt.Errorf("unknown switch %q", name)
		}
		return Key{Type: EV_SW, Code: uint16(code)}, nil
	}
	if code, ok := evdev.KEYFromString[s]; ok {
		return Key{Type: EV_KEY, Code: uint16(code)}, nil
	}

	code, err := strconv.ParseUint(strings.ToLower(s), 0, 16)
	if err != nil {
		return Key{}, fmt.Errorf("unknown key %q", name)
	}
	return Key{Type: EV_KEY, Code: uint16(code)}, nil
}

// keyName is the display form of a Key, used in logs and broadcasts.
func keyName(k Key) string {
	switch k.Type {
	case EV_KEY:
		if s, ok := evdev.KEYToString[evdev.EvCode(k.Code)]; ok {
			return s
		}
	case EV_SW:
		if s, ok := evdev.SWToString[evdev.EvCode(k.Code)]; ok {
			return s
		}
	}
	return fmt.Sprintf("type=%d code=%#x", k.Type, k.Code)
}
