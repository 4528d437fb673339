//go:build linux

package main

import (
	"errors"
	"os"
	"testing"
	"time"
)

func newPipeMux(t *testing.T, n int) (*Multiplexer, []*os.File) {
	t.Helper()
	var (
		sources []*Source
		writers []*os.File
	)
	for i := 0; i < n; i++ {
		src, w, err := NewPipeSource(i, "pipe")
		if err != nil {
			t.Fatalf("NewPipeSource: %v", err)
		}
		sources = append(sources, src)
		writers = append(writers, w)
	}
	m, err := NewMultiplexer(sources, testLogger())
	if err != nil {
		t.Fatalf("NewMultiplexer: %v", err)
	}
	t.Cleanup(func() {
		m.Close()
		for _, w := range writers {
			w.Close()
		}
	})
	return m, writers
}

func writeEvents(t *testing.T, w *os.File, codes ...uint16) {
	t.Helper()
	var buf []byte
	for _, c := range codes {
		buf = append(buf, encodeInputEvent(EV_KEY, c, evValuePress, t0)...)
	}
	if _, err := w.Write(buf); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestMultiplexer_FIFOPerSource(t *testing.T) {
	m, w := newPipeMux(t, 1)
	writeEvents(t, w[0], BTN_SOUTH, BTN_EAST, BTN_NORTH)

	batch, err := m.Wait(time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected 3 events, got %d", len(batch))
	}
	for i, want := range []uint16{BTN_SOUTH, BTN_EAST, BTN_NORTH} {
		if batch[i].Code != want || batch[i].Source != 0 || !batch[i].Time.Equal(t0) {
			t.Errorf("event %d: expected code %#x from source 0 at t0, got %+v", i, want, batch[i])
		}
	}
}

func TestMultiplexer_TimeoutReturnsEmptyBatch(t *testing.T) {
	m, _ := newPipeMux(t, 1)

	start := time.Now()
	batch, err := m.Wait(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("expected empty batch on timeout, got %d events", len(batch))
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("expected Wait to block for the timeout, returned after %v", elapsed)
	}
}

func TestMultiplexer_PartialRecordIsReassembled(t *testing.T) {
	m, w := newPipeMux(t, 1)
	rec := encodeInputEvent(EV_KEY, BTN_WEST, evValuePress, t0)

	if _, err := w[0].Write(rec[:10]); err != nil {
		t.Fatalf("write: %v", err)
	}
	batch, err := m.Wait(time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("expected no event from a partial record, got %d", len(batch))
	}

	if _, err := w[0].Write(rec[10:]); err != nil {
		t.Fatalf("write: %v", err)
	}
	batch, err = m.Wait(time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(batch) != 1 || batch[0].Code != BTN_WEST {
		t.Fatalf("expected reassembled BTN_WEST, got %+v", batch)
	}
}

func TestMultiplexer_FailedSourceIsIsolated(t *testing.T) {
	m, w := newPipeMux(t, 2)

	var lost []string
	m.OnLost(func(src *Source, err error) { lost = append(lost, src.Name) })

	// Source 0 hangs up while source 1 has data in the same iteration.
	writeEvents(t, w[1], BTN_SOUTH)
	w[0].Close()

	var got []RawEvent
	for i := 0; i < 3 && (len(got) == 0 || m.Live() == 2); i++ {
		batch, err := m.Wait(100 * time.Millisecond)
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
		got = append(got, batch...)
	}

	if len(got) != 1 || got[0].Source != 1 {
		t.Fatalf("expected the event from source 1, got %+v", got)
	}
	if m.Live() != 1 || len(lost) != 1 {
		t.Fatalf("expected one source dropped, live=%d lost=%v", m.Live(), lost)
	}

	// Later iterations keep serving the healthy source.
	writeEvents(t, w[1], BTN_EAST)
	batch, err := m.Wait(time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(batch) != 1 || batch[0].Code != BTN_EAST {
		t.Fatalf("expected BTN_EAST from the surviving source, got %+v", batch)
	}
}

func TestMultiplexer_NoSourcesLeft(t *testing.T) {
	m, w := newPipeMux(t, 1)
	w[0].Close()

	for i := 0; i < 3 && m.Live() > 0; i++ {
		if _, err := m.Wait(100 * time.Millisecond); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if m.Live() != 0 {
		t.Fatalf("expected source dropped after EOF")
	}

	if _, err := m.Wait(-1); !errors.Is(err, ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}
}
