package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SysfsBattery reads the charging state from a power_supply directory.
type SysfsBattery struct {
	path string
}

func NewSysfsBattery(dir string) *SysfsBattery {
	return &SysfsBattery{path: filepath.Join(dir, "status")}
}

// Status reads the "status" attribute. Only "Charging" counts as charging;
// "Full" and "Not charging" are treated as discharging.
func (b *SysfsBattery) Status() (BatteryStatus, error) {
	raw, err := os.ReadFile(b.path)
	if err != nil {
		return BatteryUnknown, fmt.Errorf("read battery status: %w", err)
	}
	switch strings.TrimSpace(string(raw)) {
	case "Charging":
		return BatteryCharging, nil
	case "Discharging", "Full", "Not charging":
		return BatteryDischarging, nil
	default:
		return BatteryUnknown, nil
	}
}
