package main

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// keyEvent builds an EV_KEY event at t0+at.
func keyEvent(code uint16, value int32, at time.Duration) RawEvent {
	return RawEvent{Type: EV_KEY, Code: code, Value: value, Time: t0.Add(at)}
}

type invocation struct {
	Action ActionID
	Origin string
}

// recorder collects invoked actions.
type recorder struct {
	calls []invocation
}

func (r *recorder) invoke(id ActionID, origin string) {
	r.calls = append(r.calls, invocation{Action: id, Origin: origin})
}

func (r *recorder) actions() []ActionID {
	out := make([]ActionID, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.Action)
	}
	return out
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeBrightness records every level written.
type fakeBrightness struct {
	level   int
	sets    []int
	readErr error
	setErr  error
}

func (b *fakeBrightness) Brightness() (int, error) {
	if b.readErr != nil {
		return 0, b.readErr
	}
	return b.level, nil
}

func (b *fakeBrightness) SetBrightness(level int) error {
	if b.setErr != nil {
		return b.setErr
	}
	b.sets = append(b.sets, level)
	b.level = level
	return nil
}

// fakeBattery reports a settable status.
type fakeBattery struct {
	status BatteryStatus
	polls  int
}

func (b *fakeBattery) Status() (BatteryStatus, error) {
	b.polls++
	return b.status, nil
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func equalActions(a, b []ActionID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// syncBuffer is a bytes.Buffer safe for use from server goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}
