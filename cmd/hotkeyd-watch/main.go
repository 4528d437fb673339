package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// envelope mirrors the daemon's state WebSocket frames.
type envelope struct {
	Type string          `json:"type"`
	Ts   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

func main() {
	var (
		wsURL = flag.String("url", "ws://127.0.0.1:3002/ws/state", "hotkeyd state websocket URL")
		raw   = flag.Bool("raw", false, "Print frames as received instead of one-line summaries")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	var writeMu sync.Mutex

	// The daemon pings every 20s.
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			if messageType != websocket.TextMessage {
				fmt.Printf("[BINARY] %d bytes\n", len(message))
				continue
			}
			if *raw {
				fmt.Printf("%s\n", message)
				continue
			}
			handleTextMessage(message)
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// handleTextMessage prints a one-line summary per frame.
func handleTextMessage(message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		fmt.Printf("[TEXT] %s\n", string(message))
		return
	}
	fmt.Println(formatEnvelope(env))
}

func formatEnvelope(env envelope) string {
	ts := env.Ts.Local().Format("15:04:05.000")

	switch env.Type {
	case "state_init":
		var data map[string]any
		if err := json.Unmarshal(env.Data, &data); err != nil {
			break
		}
		pretty, _ := json.MarshalIndent(data, "", "  ")
		return fmt.Sprintf("%s [STATE]\n%s", ts, pretty)

	case "action_fired":
		var data struct {
			Action string `json:"action"`
			Origin string `json:"origin"`
			Error  string `json:"error"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			break
		}
		if data.Error != "" {
			return fmt.Sprintf("%s [ACTION] %s (%s) failed: %s", ts, data.Action, data.Origin, data.Error)
		}
		return fmt.Sprintf("%s [ACTION] %s (%s)", ts, data.Action, data.Origin)

	case "dim_changed":
		var data struct {
			Active bool `json:"active"`
			Level  int  `json:"level"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			break
		}
		state := "RESTORED"
		if data.Active {
			state = "DIMMED"
		}
		return fmt.Sprintf("%s [DIM] %s level=%d", ts, state, data.Level)

	case "modifier_changed":
		var data struct {
			Held bool `json:"held"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			break
		}
		state := "RELEASED"
		if data.Held {
			state = "HELD"
		}
		return fmt.Sprintf("%s [MODIFIER] %s", ts, state)

	case "device_lost":
		var data struct {
			Device string `json:"device"`
			Error  string `json:"error"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			break
		}
		return fmt.Sprintf("%s [DEVICE LOST] %s %s", ts, data.Device, data.Error)
	}

	return fmt.Sprintf("%s [%s] %s", ts, env.Type, string(env.Data))
}
