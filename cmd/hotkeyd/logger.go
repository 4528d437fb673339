package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sanity-io/litter"
)

// parseLogLevel maps a config/flag string to a slog level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		return slog.LevelError, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s (must be error, warn, info, or debug)", level)
	}
}

// setupLogger creates the daemon's text logger on w.
func setupLogger(level slog.Level, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// dumpResolved logs the fully resolved configuration at debug level.
func dumpResolved(logger *slog.Logger, res *Resolved) {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	opts := litter.Options{
		HidePrivateFields: true,
		StripPackageNames: true,
	}
	logger.Debug("resolved configuration\n" + opts.Sdump(res))
}
