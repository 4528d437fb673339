//go:build linux

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("hotkeyd v%s\n", version)
	fmt.Println("Hotkey, power key and idle daemon for Linux handhelds")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  hotkeyd [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Reads button and switch events from Linux input devices, recognizes")
	fmt.Println("  hotkey chords and power key double presses, and runs the configured")
	fmt.Println("  commands. Dims the screen and suspends after inactivity.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to a YAML (or .toml) config file (optional)")
	fmt.Println()
	fmt.Println("  -device string")
	fmt.Println("        Comma-separated input devices (overrides device.inputs)")
	fmt.Println()
	fmt.Println("  -identity string")
	fmt.Printf("        Device profile: %v (overrides the identity file)\n", profileNames())
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultIPCSocket)
	fmt.Println()
	fmt.Println("  -state-ws string")
	fmt.Println("        Listen address for the state WebSocket, e.g. 127.0.0.1:3002 (empty disables)")
	fmt.Println()
	fmt.Println("  -double-push")
	fmt.Println("        Require two power key presses to shut down or suspend")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start with defaults (identity read from " + defaultIdentityFile + ")")
	fmt.Println("  hotkeyd")
	fmt.Println()
	fmt.Println("  # Explicit profile and devices")
	fmt.Println("  hotkeyd -identity oga -device /dev/input/event2,/dev/input/event0")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to input devices (run as root or add user to 'input' group)")
	fmt.Println("  - " + defaultPowerkeyFile + " is honored for two_push_shutdown, max_interval_time and action")
	fmt.Println()
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath = flag.String("config", "", "Path to YAML or TOML config file")
		devices    = flag.String("device", "", "Comma-separated input devices")
		identity   = flag.String("identity", "", "Device profile name")
		ipcSocket  = flag.String("ipc-socket", defaultIPCSocket, "Unix domain socket path for IPC")
		stateWS    = flag.String("state-ws", "", "Listen address for the state WebSocket")
		doublePush = flag.Bool("double-push", false, "Require two power key presses")
		logLevel   = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		_          = flag.Bool("version", false, "Print version and exit")
		_          = flag.Bool("help", false, "Print help message")
	)
	flag.Usage = printUsage
	flag.Parse()

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if _, err := cfg.ApplyLegacyPowerkey(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	// Only flags given on the command line override the file.
	var ov FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			ov.Inputs = devices
		case "identity":
			ov.Identity = identity
		case "ipc-socket":
			ov.IPCSocket = ipcSocket
		case "state-ws":
			ov.StateWS = stateWS
		case "double-push":
			ov.DoublePush = doublePush
		case "log-level":
			ov.LogLevel = logLevel
		}
	})
	ov.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid config:", err)
		os.Exit(1)
	}
	res, err := cfg.Resolve()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	level, _ := parseLogLevel(cfg.Logging.Level) // checked by Validate
	logger := setupLogger(level, os.Stdout)
	dumpResolved(logger, res)

	if err := run(cfg, res, logger); err != nil {
		logger.Error("hotkeyd stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, res *Resolved, logger *slog.Logger) error {
	// Open every configured device; missing ones are skipped.
	var sources []*Source
	for _, path := range res.Inputs {
		src, err := OpenSource(len(sources), path)
		if err != nil {
			logger.Warn("input device unavailable", "device", path, "error", err)
			continue
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no input device could be opened (tip: run as root or add user to 'input' group)")
	}

	var injector *Injector
	if cfg.IPC.Enabled {
		pipeSrc, w, err := NewPipeSource(len(sources), "ipc")
		if err != nil {
			return err
		}
		defer w.Close()
		sources = append(sources, pipeSrc)
		injector = NewInjector(w)
	}

	// The loop goroutine owns mux until the process exits; it is never closed
	// from here.
	mux, err := NewMultiplexer(sources, logger)
	if err != nil {
		return err
	}

	stats := NewStats(res.Profile.Identity, time.Now())

	var (
		pub        Publisher = discardPublisher{}
		broadcasts chan StateBroadcast
	)
	if cfg.StateWS.Enabled {
		broadcasts = make(chan StateBroadcast, 64)
		pub = broadcastQueue(broadcasts)
	}

	brightness := NewCommandBrightness(res.Brightness)
	daemon := NewDaemon(res, DaemonDeps{
		Source:     mux,
		Runner:     NewCommandRunner(res.Actions, brightness, logger),
		Brightness: brightness,
		Battery:    NewSysfsBattery(res.BatteryPath),
		Publisher:  pub,
		Stats:      stats,
		Logger:     logger,
	})
	mux.OnLost(daemon.deviceLost)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if injector != nil {
		g.Go(func() error {
			return runIPCServer(gctx, cfg.IPC.SocketPath, injector, stats, logger)
		})
	}

	if cfg.StateWS.Enabled {
		srv := NewServer(logger, stats, HubConfig{})
		httpMux := http.NewServeMux()
		srv.Register(httpMux, cfg.StateWS.Path)

		g.Go(func() error {
			srv.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(gctx, srv.Hub(), broadcasts, logger)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(gctx, cfg.StateWS.Listen, httpMux, logger)
		})
	}

	logger.Info("listening",
		"identity", res.Profile.Identity,
		"devices", mux.Live(),
		"hotkey", res.Profile.Hotkey,
		"features", res.Features.Names(),
		"double_push", res.Power.Enabled,
		"ipc", cfg.IPC.Enabled,
		"state_ws", cfg.StateWS.Enabled)

	// The loop has no cancellation; on shutdown the process simply exits.
	loopErr := make(chan error, 1)
	go func() { loopErr <- daemon.Run() }()

	select {
	case <-gctx.Done():
		logger.Info("shutting down")
		stop()
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil

	case err := <-loopErr:
		stop()
		_ = g.Wait()
		return fmt.Errorf("event loop: %w", err)
	}
}
