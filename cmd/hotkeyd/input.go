package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

var inputEventSize = binary.Size(inputEvent{})

// Source is one readable input stream: an evdev node or the IPC injection pipe.
// The fd is always non-blocking so a ready source can be drained until EAGAIN.
type Source struct {
	ID   int
	Name string

	fd      int
	pending []byte // trailing bytes of an incomplete input_event
	dead    bool
}

// Key identifies a button or switch independently of its value.
// Type is needed because switch and key codes overlap numerically.
type Key struct {
	Type uint16
	Code uint16
}

func (k Key) String() string {
	return keyName(k)
}

// RawEvent is one decoded input event tagged with the source it came from.
type RawEvent struct {
	Source int
	Type   uint16
	Code   uint16
	Value  int32
	Time   time.Time
}

func (e RawEvent) Key() Key { return Key{Type: e.Type, Code: e.Code} }

// IsPress reports value==1 (initial press, switch closed).
func (e RawEvent) IsPress() bool { return e.Value == evValuePress }

// IsActivity reports whether the event counts as user activity for the idle timer.
func (e RawEvent) IsActivity() bool {
	return (e.Type == EV_KEY || e.Type == EV_SW) && e.Value >= evValuePress
}

func (e RawEvent) String() string {
	return fmt.Sprintf("src=%d %s value=%d", e.Source, e.Key(), e.Value)
}

// decodeInputEvents decodes every complete record in buf and returns the
// number of bytes consumed.
func decodeInputEvents(buf []byte, source int, out []RawEvent) ([]RawEvent, int) {
	n := len(buf) / inputEventSize
	reader := bytes.NewReader(buf[:n*inputEventSize])
	for i := 0; i < n; i++ {
		var ev inputEvent
		if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
			// Skip malformed events
			break
		}
		out = append(out, RawEvent{
			Source: source,
			Type:   ev.Type,
			Code:   ev.Code,
			Value:  ev.Value,
			Time:   time.Unix(ev.Sec, ev.Usec*int64(time.Microsecond)),
		})
	}
	return out, n * inputEventSize
}

// encodeInputEvent is the inverse of decodeInputEvents for a single event.
// Used by the IPC injector to feed synthetic events through the multiplexer.
func encodeInputEvent(typ, code uint16, value int32, at time.Time) []byte {
	var buf bytes.Buffer
	ev := inputEvent{
		Sec:   at.Unix(),
		Usec:  int64(at.Nanosecond()) / int64(time.Microsecond),
		Type:  typ,
		Code:  code,
		Value: value,
	}
	// Writing a fixed-size struct to a bytes.Buffer cannot fail.
	_ = binary.Write(&buf, binary.LittleEndian, ev)
	return buf.Bytes()
}
