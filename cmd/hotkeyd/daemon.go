package main

import (
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// Design rules enforced here:
//   - This loop is the only mutator of interpretation state (modifier, double
//     press, idle/dim bookkeeping). No locks, no reentrancy.
//   - The only blocking point is the multiplexer wait. Its timeout is the
//     idle timer's next deadline, so there is no background timer.
//   - Actions run synchronously. A slow action (blink feedback, suspend)
//     stalls input processing until it returns; later events are evaluated
//     against the state the action left behind.
//   - A failing action is logged and counted, never propagated.
//
// ============================================================================

// eventWaiter is the part of the Multiplexer the loop depends on.
type eventWaiter interface {
	Wait(timeout time.Duration) ([]RawEvent, error)
	Live() int
}

// Daemon wires the interpretation components together.
type Daemon struct {
	src      eventWaiter
	modifier *ModifierTracker
	table    *DispatchTable
	power    *DoublePressDetector
	idle     *IdleTimer

	runner ActionRunner
	stats  *Stats
	pub    Publisher
	logger *slog.Logger
	now    func() time.Time
}

// DaemonDeps are the capabilities the core calls out to.
type DaemonDeps struct {
	Source     eventWaiter
	Runner     ActionRunner
	Brightness BrightnessControl
	Battery    BatteryMonitor
	Publisher  Publisher
	Stats      *Stats
	Logger     *slog.Logger
	Now        func() time.Time
}

// NewDaemon builds the loop from resolved configuration.
func NewDaemon(res *Resolved, deps DaemonDeps) *Daemon {
	d := &Daemon{
		src:    deps.Source,
		runner: deps.Runner,
		stats:  deps.Stats,
		pub:    deps.Publisher,
		logger: deps.Logger,
		now:    deps.Now,
	}
	if d.pub == nil {
		d.pub = discardPublisher{}
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.stats == nil {
		d.stats = NewStats(res.Profile.Identity, d.now())
	}

	d.modifier = NewModifierTracker(res.Profile.Hotkey)
	d.table = NewDispatchTable(res.Profile, res.Features, d.invoke)
	d.power = NewDoublePressDetector(res.Power, d.invoke)
	d.idle = NewIdleTimer(res.Idle, deps.Battery, deps.Brightness, d.invoke, d.logger, d.now)
	d.idle.OnDimChange(func(active bool, level int) {
		d.stats.DimActive.Store(active)
		d.pub.Publish(BroadcastDimChanged{Active: active, Level: level, At: d.now()})
	})
	return d
}

// Run drives the loop until the event source fails for good.
// There is no cancellation: the process ends by signal or by the power
// action it triggers.
func (d *Daemon) Run() error {
	for {
		batch, err := d.src.Wait(d.idle.NextDeadline(d.now()))
		if err != nil {
			return err
		}
		d.stats.LiveSources.Store(int64(d.src.Live()))

		// A wake made only of axis or sync traffic must still age the idle timer.
		observed := false
		for _, ev := range batch {
			if d.Process(ev) {
				observed = true
			}
		}
		if !observed {
			d.idle.Tick(d.now())
		}
	}
}

// Process runs one event through modifier, dispatch, double press and idle,
// in that order. It reports whether the idle timer saw the event.
func (d *Daemon) Process(ev RawEvent) bool {
	// Sync reports, misc and absolute axes carry no button semantics.
	if ev.Type != EV_KEY && ev.Type != EV_SW {
		return false
	}
	d.stats.Events.Inc()

	wasHeld := d.modifier.Held()
	held := d.modifier.Update(ev)
	if held != wasHeld {
		d.stats.ModifierHeld.Store(held)
		d.pub.Publish(BroadcastModifierChanged{Held: held, At: d.now()})
	}

	if !d.modifier.IsModifier(ev) {
		d.table.Dispatch(ev, held)
	}

	d.power.Observe(ev)

	now := d.now()
	if ev.IsActivity() {
		d.stats.LastActivity.Store(now)
	}
	d.idle.Observe(ev, now)
	return true
}

// invoke is the single place actions run. Every component calls through it.
func (d *Daemon) invoke(id ActionID, origin string) {
	at := d.now()
	d.logger.Info("action", "action", id, "origin", origin)

	b := BroadcastActionFired{Action: id, Origin: origin, At: at}
	if err := d.runner.Run(id); err != nil {
		d.stats.ActionErrors.Inc()
		d.logger.Error("action failed", "action", id, "origin", origin, "error", err)
		b.Err = err.Error()
	}

	d.stats.Actions.Inc()
	d.stats.LastAction.Store(string(id))
	d.stats.LastActionAt.Store(at)
	d.pub.Publish(b)
}

// deviceLost is hooked into the multiplexer.
func (d *Daemon) deviceLost(src *Source, err error) {
	d.pub.Publish(BroadcastDeviceLost{Device: src.Name, Err: err.Error(), At: d.now()})
}
