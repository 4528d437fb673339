package main

import (
	"log/slog"
	"time"
)

// IdlePolicy configures one idle sub-timer.
type IdlePolicy struct {
	Enabled bool
	Timeout time.Duration
	// StayAwakeWhileCharging requires both activity and charging to be stale.
	StayAwakeWhileCharging bool
}

// IdleConfig configures auto-suspend and auto-dim.
type IdleConfig struct {
	Suspend       IdlePolicy
	Dim           IdlePolicy
	DimBrightness int
}

// ActivityClock is the bookkeeping shared by both sub-timers.
type ActivityClock struct {
	LastButton      time.Time
	LastCharging    time.Time
	DimActive       bool
	SavedBrightness int
	HasSaved        bool
}

// IdleTimer drives auto-dim and auto-suspend. It has no clock of its own:
// it is evaluated on every event (Observe) and whenever the multiplexer wait
// times out (Tick), which happens at NextDeadline.
type IdleTimer struct {
	cfg        IdleConfig
	battery    BatteryMonitor
	brightness BrightnessControl
	invoke     func(id ActionID, origin string)
	onDim      func(active bool, level int)
	logger     *slog.Logger
	now        func() time.Time

	activity   ActivityClock
	charging   bool
	dimBlocked bool // dimming failed; retry after the next press
}

func NewIdleTimer(
	cfg IdleConfig,
	battery BatteryMonitor,
	brightness BrightnessControl,
	invoke func(ActionID, string),
	logger *slog.Logger,
	now func() time.Time,
) *IdleTimer {
	start := now()
	return &IdleTimer{
		cfg:        cfg,
		battery:    battery,
		brightness: brightness,
		invoke:     invoke,
		logger:     logger,
		now:        now,
		activity: ActivityClock{
			LastButton:   start,
			LastCharging: start,
		},
	}
}

// OnDimChange registers a callback for dim transitions.
func (t *IdleTimer) OnDimChange(fn func(active bool, level int)) { t.onDim = fn }

// Activity returns a copy of the current bookkeeping.
func (t *IdleTimer) Activity() ActivityClock { return t.activity }

// Observe records one processed event and evaluates both sub-timers.
func (t *IdleTimer) Observe(ev RawEvent, now time.Time) {
	t.step(ev.IsActivity(), now)
}

// Tick evaluates both sub-timers without an event.
func (t *IdleTimer) Tick(now time.Time) {
	t.step(false, now)
}

func (t *IdleTimer) step(press bool, now time.Time) {
	charging := t.pollCharging()
	chargeStarted := charging && !t.charging
	t.charging = charging

	if press {
		t.activity.LastButton = now
		t.dimBlocked = false
	}
	if charging {
		t.activity.LastCharging = now
	}

	if t.activity.DimActive && (press || (t.cfg.Dim.StayAwakeWhileCharging && chargeStarted)) {
		t.undim()
	}

	if t.expired(t.cfg.Suspend, now) {
		t.logger.Info("idle timeout, suspending", "idle", now.Sub(t.activity.LastButton).Round(time.Second))
		t.invoke(ActionSuspend, "auto_suspend")
		// Suspend blocks until resume; measure from wake-up.
		resumed := t.now()
		if resumed.Before(now) {
			resumed = now
		}
		t.activity.LastButton = resumed
		t.activity.LastCharging = resumed
		return
	}

	if !t.activity.DimActive && !t.dimBlocked && t.expired(t.cfg.Dim, now) {
		t.dim()
	}
}

// expired applies the per-timer charging policy. Comparisons are O(1).
func (t *IdleTimer) expired(p IdlePolicy, now time.Time) bool {
	if !p.Enabled {
		return false
	}
	activityStale := now.Sub(t.activity.LastButton) >= p.Timeout
	if !p.StayAwakeWhileCharging {
		return activityStale
	}
	return activityStale && now.Sub(t.activity.LastCharging) >= p.Timeout
}

func (t *IdleTimer) pollCharging() bool {
	if t.battery == nil {
		return false
	}
	st, err := t.battery.Status()
	if err != nil {
		t.logger.Debug("battery status unavailable", "error", err)
		return false
	}
	return st == BatteryCharging
}

func (t *IdleTimer) dim() {
	current, err := t.brightness.Brightness()
	if err != nil {
		// Without a snapshot there is nothing to restore to; stay bright.
		t.logger.Warn("auto-dim skipped, cannot read brightness", "error", err)
		t.dimBlocked = true
		return
	}
	if err := t.brightness.SetBrightness(t.cfg.DimBrightness); err != nil {
		t.logger.Warn("auto-dim failed", "error", err)
		t.dimBlocked = true
		return
	}
	t.activity.SavedBrightness = current
	t.activity.HasSaved = true
	t.activity.DimActive = true
	t.logger.Info("auto-dim", "from", current, "to", t.cfg.DimBrightness)
	if t.onDim != nil {
		t.onDim(true, t.cfg.DimBrightness)
	}
}

func (t *IdleTimer) undim() {
	level := t.activity.SavedBrightness
	if err := t.brightness.SetBrightness(level); err != nil {
		t.logger.Warn("brightness restore failed", "level", level, "error", err)
	}
	t.activity.DimActive = false
	t.activity.HasSaved = false
	t.logger.Info("auto-dim restored", "level", level)
	if t.onDim != nil {
		t.onDim(false, level)
	}
}

// NextDeadline returns how long the loop may block before one of the
// sub-timers could fire. Negative means no deadline.
func (t *IdleTimer) NextDeadline(now time.Time) time.Duration {
	next := time.Duration(-1)
	consider := func(p IdlePolicy) {
		if !p.Enabled {
			return
		}
		at := t.activity.LastButton.Add(p.Timeout)
		if p.StayAwakeWhileCharging {
			if c := t.activity.LastCharging.Add(p.Timeout); c.After(at) {
				at = c
			}
		}
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		if next < 0 || d < next {
			next = d
		}
	}

	consider(t.cfg.Suspend)
	switch {
	case !t.activity.DimActive:
		if !t.dimBlocked {
			consider(t.cfg.Dim)
		}
	case t.cfg.Dim.StayAwakeWhileCharging && !t.charging:
		// Restoring on charger plug-in needs a periodic look at the battery.
		if d := chargePollInterval; next < 0 || d < next {
			next = d
		}
	}
	return next
}

// chargePollInterval bounds the wait while a charger plug-in would undim.
const chargePollInterval = 5 * time.Second
