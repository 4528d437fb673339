package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// The IPC server lets local tools inject button events and read daemon state.
//
// Protocol: Line-delimited JSON
//   - Client sends: {"type": "key"|"tap"|"status", "data": {...}}
//   - Server responds: {"status": "ok", "state": {...}} or {"status": "error", "error": "msg"}
//
// Injected events are written to a pipe that the multiplexer watches, so the
// event loop stays the only place state changes.
// ============================================================================

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status string         `json:"status"`          // "ok" or "error"
	Error  string         `json:"error,omitempty"` // error message if status == "error"
	State  *StateSnapshot `json:"state,omitempty"` // set for "status" requests
}

// Injector turns IPC requests into input_event records on the injection pipe.
type Injector struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

func NewInjector(w io.Writer) *Injector {
	return &Injector{w: w, now: time.Now}
}

// Inject writes the events a request stands for. Each request is one write,
// so events of concurrent clients never interleave.
func (in *Injector) Inject(ctx context.Context, r Request) error {
	var events [][3]int32 // type, code, value

	switch r := r.(type) {
	case KeyRequest:
		k, err := parseKey(r.Key)
		if err != nil {
			return err
		}
		if r.Value < 0 {
			return fmt.Errorf("invalid value %d", r.Value)
		}
		if r.DelayMS > 0 {
			t := time.NewTimer(time.Duration(r.DelayMS) * time.Millisecond)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		events = append(events, [3]int32{int32(k.Type), int32(k.Code), r.Value})

	case TapRequest:
		k, err := parseKey(r.Key)
		if err != nil {
			return err
		}
		if r.Hold != "" {
			h, err := parseKey(r.Hold)
			if err != nil {
				return fmt.Errorf("hold: %w", err)
			}
			events = append(events, [3]int32{int32(h.Type), int32(h.Code), evValuePress})
			events = append(events,
				[3]int32{int32(k.Type), int32(k.Code), evValuePress},
				[3]int32{int32(k.Type), int32(k.Code), evValueRelease},
				[3]int32{int32(h.Type), int32(h.Code), evValueRelease},
			)
			break
		}
		events = append(events,
			[3]int32{int32(k.Type), int32(k.Code), evValuePress},
			[3]int32{int32(k.Type), int32(k.Code), evValueRelease},
		)

	default:
		return fmt.Errorf("cannot inject %T", r)
	}

	at := in.now()
	var buf []byte
	for _, ev := range events {
		buf = append(buf, encodeInputEvent(uint16(ev[0]), uint16(ev[1]), ev[2], at)...)
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if _, err := in.w.Write(buf); err != nil {
		return fmt.Errorf("write injection pipe: %w", err)
	}
	return nil
}

// runIPCServer starts the Unix domain socket server.
// It runs until ctx is canceled, at which point it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, inj *Injector, stats *Stats, logger *slog.Logger) error {
	// Remove a stale socket left by a previous run.
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	// Owner only: an injected KEY_POWER can turn the device off.
	if err := os.Chmod(socketPath, 0600); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(ctx, conn, inj, stats, logger)
	}
}

// handleIPCConnection serves one client until it disconnects.
func handleIPCConnection(ctx context.Context, conn net.Conn, inj *Injector, stats *Stats, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Text()
		logger.Debug("IPC received", "line", line)

		resp := serveIPCRequest(ctx, []byte(line), inj, stats)
		if resp.Status != "ok" {
			logger.Warn("IPC request rejected", "error", resp.Error)
		}
		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "error", err)
			return
		}
	}

	logger.Debug("IPC connection closed")
}

func serveIPCRequest(ctx context.Context, line []byte, inj *Injector, stats *Stats) IPCResponse {
	req, err := UnmarshalRequest(line)
	if err != nil {
		return IPCResponse{Status: "error", Error: fmt.Sprintf("parse request: %v", err)}
	}

	if _, ok := req.(StatusRequest); !ok {
		if err := inj.Inject(ctx, req); err != nil {
			return IPCResponse{Status: "error", Error: err.Error()}
		}
	}

	snap := stats.Snapshot()
	return IPCResponse{Status: "ok", State: &snap}
}

// ============================================================================
// IPC Client
// ============================================================================

// SendIPCRequest sends one request and returns the daemon's reply.
func SendIPCRequest(socketPath string, r Request) (*IPCResponse, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := MarshalRequest(r)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", strings.TrimSpace(string(data))); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return &resp, fmt.Errorf("ipc error: %s", resp.Error)
	}
	return &resp, nil
}
