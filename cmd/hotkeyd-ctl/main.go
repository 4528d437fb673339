package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// ============================================================================
// hotkeyd-ctl - Command-line IPC Client
// ============================================================================
// This tool injects key events into the hotkeyd daemon and queries its state.
//
// Usage:
//   hotkeyd-ctl status
//   hotkeyd-ctl tap KEY_POWER
//   hotkeyd-ctl chord BTN_TRIGGER_HAPPY4 BTN_DPAD_UP
//   hotkeyd-ctl key KEY_POWER 1
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/hotkeyd.sock)
// ============================================================================

// Request types (duplicated from the daemon for a standalone binary)
type Request interface{}

type KeyRequest struct {
	Key     string `json:"key"`
	Value   int32  `json:"value"`
	DelayMS int    `json:"delay_ms,omitempty"`
}

type TapRequest struct {
	Key  string `json:"key"`
	Hold string `json:"hold,omitempty"`
}

type StatusRequest struct{}

// RequestEnvelope wraps requests for JSON
type RequestEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response. State is kept raw and
// printed as-is.
type IPCResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	State  json.RawMessage `json:"state,omitempty"`
}

const dialTimeout = 2 * time.Second

func main() {
	socketPath := "/tmp/hotkeyd.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var req Request

	switch args[0] {
	case "status":
		req = StatusRequest{}

	case "tap":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: tap requires a key name\n")
			os.Exit(1)
		}
		req = TapRequest{Key: args[1]}

	case "chord":
		if len(args) < 3 {
			fmt.Fprintf(os.Stderr, "error: chord requires a modifier and a key\n")
			os.Exit(1)
		}
		req = TapRequest{Hold: args[1], Key: args[2]}

	case "power":
		req = TapRequest{Key: "KEY_POWER"}

	case "key", "press", "release":
		r, err := parseKeyArgs(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		req = r

	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	resp, err := sendRequest(socketPath, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if _, ok := req.(StatusRequest); ok && len(resp.State) > 0 {
		var state map[string]any
		if err := json.Unmarshal(resp.State, &state); err == nil {
			pretty, _ := json.MarshalIndent(state, "", "  ")
			fmt.Printf("%s\n", pretty)
			return
		}
		fmt.Printf("%s\n", resp.State)
		return
	}

	fmt.Println("ok")
}

// parseKeyArgs handles "key NAME VALUE [DELAY_MS]", "press NAME" and
// "release NAME".
func parseKeyArgs(args []string) (KeyRequest, error) {
	if len(args) < 2 {
		return KeyRequest{}, fmt.Errorf("%s requires a key name", args[0])
	}
	r := KeyRequest{Key: args[1]}

	switch args[0] {
	case "press":
		r.Value = 1
		return r, nil
	case "release":
		r.Value = 0
		return r, nil
	}

	if len(args) < 3 {
		return KeyRequest{}, fmt.Errorf("key requires a value (0, 1 or 2)")
	}
	v, err := strconv.ParseInt(args[2], 10, 32)
	if err != nil || v < 0 || v > 2 {
		return KeyRequest{}, fmt.Errorf("invalid key value %q", args[2])
	}
	r.Value = int32(v)

	if len(args) >= 4 {
		d, err := strconv.Atoi(args[3])
		if err != nil || d < 0 {
			return KeyRequest{}, fmt.Errorf("invalid delay %q", args[3])
		}
		r.DelayMS = d
	}
	return r, nil
}

func sendRequest(socketPath string, req Request) (*IPCResponse, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := marshalRequest(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	var response IPCResponse
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if response.Status == "error" {
		return nil, fmt.Errorf("daemon error: %s", response.Error)
	}

	return &response, nil
}

func marshalRequest(req Request) ([]byte, error) {
	var env RequestEnvelope

	switch r := req.(type) {
	case KeyRequest:
		env.Type = "key"
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal KeyRequest: %w", err)
		}
		env.Data = data

	case TapRequest:
		env.Type = "tap"
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal TapRequest: %w", err)
		}
		env.Data = data

	case StatusRequest:
		env.Type = "status"

	default:
		return nil, fmt.Errorf("unknown request type: %T", req)
	}

	return json.Marshal(env)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `hotkeyd-ctl - Control the hotkeyd daemon via IPC

Usage:
  hotkeyd-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/hotkeyd.sock)

Commands:
  status                        Print the daemon's state as JSON
  tap <key>                     Press and release a key
  chord <modifier> <key>        Tap a key while holding the modifier
  power                         Tap KEY_POWER
  press <key>                   Inject a key press
  release <key>                 Inject a key release
  key <key> <value> [delay_ms]  Inject a raw event (value 0, 1 or 2)
  help, -h, --help              Show this help message

Keys are evdev names (KEY_POWER, BTN_TRIGGER_HAPPY4), hex codes (0x2c3)
or switches (sw:2).

Examples:
  hotkeyd-ctl chord BTN_TRIGGER_HAPPY4 BTN_DPAD_UP
  hotkeyd-ctl power; sleep 1; hotkeyd-ctl power
  hotkeyd-ctl -socket /run/hotkeyd.sock status
`)
}
