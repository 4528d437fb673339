package main

import "time"

// DoublePressConfig configures the power key.
type DoublePressConfig struct {
	Key     Key
	Enabled bool
	Min     time.Duration
	Max     time.Duration
	Action  ActionID // ActionPowerOff or ActionSuspend
}

// DoublePressDetector recognizes two presses of the power key within
// [Min, Max]. Every qualifying press that does not complete a pair becomes
// the reference for the next one (sliding window), so a bounce or a too-slow
// pair never requires waiting out a full window before a new pair can match.
//
// With Enabled=false every press fires immediately.
type DoublePressDetector struct {
	cfg    DoublePressConfig
	invoke func(id ActionID, origin string)

	waiting bool      // WaitingSecond; false means Armed
	first   time.Time // reference press, valid while waiting
}

func NewDoublePressDetector(cfg DoublePressConfig, invoke func(ActionID, string)) *DoublePressDetector {
	return &DoublePressDetector{cfg: cfg, invoke: invoke}
}

// Observe feeds one event and reports whether the action fired.
func (d *DoublePressDetector) Observe(ev RawEvent) bool {
	if ev.Key() != d.cfg.Key || !ev.IsPress() {
		return false
	}

	if !d.cfg.Enabled {
		d.invoke(d.cfg.Action, "power_key")
		return true
	}

	if !d.waiting {
		d.waiting = true
		d.first = ev.Time
		return false
	}

	elapsed := ev.Time.Sub(d.first)
	if elapsed >= d.cfg.Min && elapsed <= d.cfg.Max {
		// Back to Armed with no reference carried over.
		d.waiting = false
		d.first = time.Time{}
		d.invoke(d.cfg.Action, "power_key_double")
		return true
	}

	d.first = ev.Time
	return false
}

// Waiting reports whether a first press is recorded, and its time.
func (d *DoublePressDetector) Waiting() (time.Time, bool) {
	return d.first, d.waiting
}
