package main

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// fakeCommands records every argv and answers from a canned table.
type fakeCommands struct {
	calls  [][]string
	output map[string]string
	fail   map[string]error
}

func (f *fakeCommands) run(argv []string) ([]byte, error) {
	f.calls = append(f.calls, append([]string(nil), argv...))
	if err := f.fail[argv[0]]; err != nil {
		return nil, err
	}
	return []byte(f.output[argv[0]]), nil
}

func newTestRunner(actions map[ActionID]ActionSpec) (*CommandRunner, *fakeCommands, *fakeBrightness, *[]time.Duration) {
	cmds := &fakeCommands{fail: map[string]error{}}
	bright := &fakeBrightness{level: 60}
	var slept []time.Duration

	r := NewCommandRunner(actions, bright, testLogger())
	r.run = cmds.run
	r.sleep = func(d time.Duration) { slept = append(slept, d) }
	return r, cmds, bright, &slept
}

func TestCommandRunner_RunsCommandsInOrder(t *testing.T) {
	r, cmds, _, _ := newTestRunner(map[ActionID]ActionSpec{
		ActionPerfMax: {Run: [][]string{{"cpufreq", "max"}, {"gpufreq", "max"}}},
	})

	if err := r.Run(ActionPerfMax); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := [][]string{{"cpufreq", "max"}, {"gpufreq", "max"}}
	if !reflect.DeepEqual(cmds.calls, want) {
		t.Fatalf("expected %v, got %v", want, cmds.calls)
	}
}

func TestCommandRunner_StopsAtFirstFailure(t *testing.T) {
	r, cmds, _, _ := newTestRunner(map[ActionID]ActionSpec{
		ActionPerfMax: {Run: [][]string{{"cpufreq", "max"}, {"gpufreq", "max"}}},
	})
	cmds.fail["cpufreq"] = errors.New("exit status 1")

	if err := r.Run(ActionPerfMax); err == nil {
		t.Fatalf("expected error")
	}
	if len(cmds.calls) != 1 {
		t.Fatalf("expected the second command to be skipped, got %v", cmds.calls)
	}
}

func TestCommandRunner_UnconfiguredAction(t *testing.T) {
	r, _, _, _ := newTestRunner(map[ActionID]ActionSpec{})

	if err := r.Run(ActionSpeakerToggle); !errors.Is(err, ErrNoCommand) {
		t.Fatalf("expected ErrNoCommand, got %v", err)
	}
}

func TestCommandRunner_BlinkFeedbackRestoresBrightness(t *testing.T) {
	r, cmds, bright, slept := newTestRunner(map[ActionID]ActionSpec{
		ActionWifiOn: {Run: [][]string{{"nmcli", "radio", "wifi", "on"}}, Feedback: feedbackBlinkOn, FeedbackFirst: true},
	})

	if err := r.Run(ActionWifiOn); err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantSets := []int{0, 60, 0, 60, 60}
	if !reflect.DeepEqual(bright.sets, wantSets) {
		t.Fatalf("expected brightness writes %v, got %v", wantSets, bright.sets)
	}
	if len(*slept) != 2*blinkOnCount {
		t.Fatalf("expected %d sleeps, got %d", 2*blinkOnCount, len(*slept))
	}
	if len(cmds.calls) != 1 {
		t.Fatalf("expected the command to run after feedback, got %v", cmds.calls)
	}
}

func TestCommandRunner_FeedbackSkippedWithoutBrightness(t *testing.T) {
	r, _, bright, slept := newTestRunner(map[ActionID]ActionSpec{
		ActionPerfNorm: {Run: [][]string{{"perfnorm"}}, Feedback: feedbackBlinkOff},
	})
	bright.readErr = errors.New("no backlight")

	if err := r.Run(ActionPerfNorm); err != nil {
		t.Fatalf("expected feedback failure not to fail the action, got %v", err)
	}
	if len(bright.sets) != 0 || len(*slept) != 0 {
		t.Fatalf("expected no blink, got sets=%v sleeps=%v", bright.sets, *slept)
	}
}

func TestCommandBrightness(t *testing.T) {
	cmds := &fakeCommands{output: map[string]string{"brightnessctl": "  42\n"}}
	b := NewCommandBrightness(BrightnessCommands{
		Get: []string{"brightnessctl", "g"},
		Set: []string{"brightnessctl", "s", "{value}"},
	})
	b.run = cmds.run

	level, err := b.Brightness()
	if err != nil || level != 42 {
		t.Fatalf("expected 42, got %d (err=%v)", level, err)
	}
	if err := b.SetBrightness(7); err != nil {
		t.Fatalf("SetBrightness: %v", err)
	}
	if got := cmds.calls[1]; !reflect.DeepEqual(got, []string{"brightnessctl", "s", "7"}) {
		t.Fatalf("unexpected set argv: %v", got)
	}

	cmds.output["brightnessctl"] = "n/a"
	if _, err := b.Brightness(); err == nil {
		t.Fatalf("expected error for non-numeric output")
	}
}

func TestSysfsBattery_Status(t *testing.T) {
	dir := t.TempDir()
	b := NewSysfsBattery(dir)

	if _, err := b.Status(); err == nil {
		t.Fatalf("expected error when status is missing")
	}

	tests := map[string]BatteryStatus{
		"Charging\n":     BatteryCharging,
		"Discharging\n":  BatteryDischarging,
		"Full\n":         BatteryDischarging,
		"Not charging\n": BatteryDischarging,
		"Unknown\n":      BatteryUnknown,
	}
	for content, want := range tests {
		if err := os.WriteFile(filepath.Join(dir, "status"), []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		got, err := b.Status()
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if got != want {
			t.Errorf("status %q: expected %v, got %v", content, want, got)
		}
	}
}
