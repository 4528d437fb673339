package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// Command-backed capabilities
// ============================================================================
// Every side effect of the daemon is an external program. Commands run
// synchronously on the event loop goroutine; a blink or a suspend holds the
// loop until it returns.
// ============================================================================

// ErrNoCommand is returned when an action has nothing configured to run.
var ErrNoCommand = errors.New("no command configured")

// commandFunc runs argv and returns its combined output.
type commandFunc func(argv []string) ([]byte, error)

func execCommand(argv []string) ([]byte, error) {
	out, err := exec.Command(argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", argv[0], err, msg)
		}
		return out, fmt.Errorf("%s: %w", argv[0], err)
	}
	return out, nil
}

// Blink timing for feedback.
const (
	blinkOnCount   = 2
	blinkOnPeriod  = 200 * time.Millisecond
	blinkOffCount  = 1
	blinkOffPeriod = 300 * time.Millisecond
)

// CommandRunner is the ActionRunner backed by configured argv lists.
type CommandRunner struct {
	actions    map[ActionID]ActionSpec
	brightness BrightnessControl
	logger     *slog.Logger

	run   commandFunc
	sleep func(time.Duration)
}

func NewCommandRunner(actions map[ActionID]ActionSpec, brightness BrightnessControl, logger *slog.Logger) *CommandRunner {
	return &CommandRunner{
		actions:    actions,
		brightness: brightness,
		logger:     logger,
		run:        execCommand,
		sleep:      time.Sleep,
	}
}

// Run executes the action's commands in order and stops at the first failure.
func (r *CommandRunner) Run(id ActionID) error {
	spec, ok := r.actions[id]
	if !ok || (len(spec.Run) == 0 && spec.Feedback == "") {
		return fmt.Errorf("%s: %w", id, ErrNoCommand)
	}

	if spec.FeedbackFirst {
		r.feedback(spec.Feedback)
	}
	for _, argv := range spec.Run {
		r.logger.Debug("exec", "action", id, "argv", argv)
		if _, err := r.run(argv); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
	}
	if !spec.FeedbackFirst {
		r.feedback(spec.Feedback)
	}
	return nil
}

// feedback blinks the backlight and restores the level it found.
func (r *CommandRunner) feedback(kind string) {
	var (
		count  int
		period time.Duration
	)
	switch kind {
	case feedbackBlinkOn:
		count, period = blinkOnCount, blinkOnPeriod
	case feedbackBlinkOff:
		count, period = blinkOffCount, blinkOffPeriod
	default:
		return
	}

	level, err := r.brightness.Brightness()
	if err != nil {
		r.logger.Warn("feedback skipped, cannot read brightness", "error", err)
		return
	}
	for i := 0; i < count; i++ {
		if err := r.brightness.SetBrightness(0); err != nil {
			r.logger.Warn("feedback failed", "error", err)
			break
		}
		r.sleep(period)
		if err := r.brightness.SetBrightness(level); err != nil {
			r.logger.Warn("feedback failed", "error", err)
			return
		}
		r.sleep(period)
	}
	// Leave the panel where we found it even after a failed blink.
	_ = r.brightness.SetBrightness(level)
}

// CommandBrightness is a BrightnessControl backed by get/set commands.
type CommandBrightness struct {
	get []string
	set []string
	run commandFunc
}

func NewCommandBrightness(cmds BrightnessCommands) *CommandBrightness {
	return &CommandBrightness{get: cmds.Get, set: cmds.Set, run: execCommand}
}

func (b *CommandBrightness) Brightness() (int, error) {
	out, err := b.run(b.get)
	if err != nil {
		return 0, fmt.Errorf("read brightness: %w", err)
	}
	level, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("read brightness: unexpected output %q", strings.TrimSpace(string(out)))
	}
	return level, nil
}

func (b *CommandBrightness) SetBrightness(level int) error {
	argv := make([]string, len(b.set))
	value := strconv.Itoa(level)
	for i, arg := range b.set {
		argv[i] = strings.ReplaceAll(arg, "{value}", value)
	}
	if _, err := b.run(argv); err != nil {
		return fmt.Errorf("set brightness %d: %w", level, err)
	}
	return nil
}
