//go:build linux

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ErrNoSources is returned by Wait when every source is gone and no timeout
// was requested, i.e. nothing could ever wake the caller again.
var ErrNoSources = errors.New("no live input sources")

var errHangup = errors.New("device hangup")

// OpenSource opens an input device node for non-blocking reads.
func OpenSource(id int, path string) (*Source, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Source{ID: id, Name: path, fd: fd}, nil
}

// NewFdSource wraps an already-open fd (pipe read end, test fixtures).
// The multiplexer takes ownership of fd.
func NewFdSource(id int, name string, fd int) (*Source, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("set nonblock on %s: %w", name, err)
	}
	return &Source{ID: id, Name: name, fd: fd}, nil
}

// NewPipeSource creates a pipe whose read end is a Source. Whatever is
// written to the returned file as input_event records is delivered by the
// multiplexer exactly like device input.
func NewPipeSource(id int, name string) (*Source, *os.File, error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
		return nil, nil, fmt.Errorf("pipe2: %w", err)
	}
	src, err := NewFdSource(id, name, p[0])
	if err != nil {
		_ = unix.Close(p[0])
		_ = unix.Close(p[1])
		return nil, nil, err
	}
	return src, os.NewFile(uintptr(p[1]), name+"-writer"), nil
}

// Multiplexer waits on all sources with a single epoll instance and drains
// every ready source completely before returning.
//
// Instead of:
//   - N goroutines, each blocking on read()
//
// We use:
//   - 1 epoll_wait, driven by the daemon loop itself
//   - Kernel wakes us only when events are available (or the idle deadline passes)
//
// Ordering: FIFO per source; across sources the order epoll reports readiness.
type Multiplexer struct {
	epfd    int
	sources map[int]*Source // by fd
	live    int

	epollEvents []unix.EpollEvent
	buf         []byte

	logger *slog.Logger

	// onLost is called once for every source that goes away.
	onLost func(src *Source, err error)
}

// NewMultiplexer creates the epoll instance and registers all sources.
func NewMultiplexer(sources []*Source, logger *slog.Logger) (*Multiplexer, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	m := &Multiplexer{
		epfd:        epfd,
		sources:     make(map[int]*Source),
		epollEvents: make([]unix.EpollEvent, 32),
		buf:         make([]byte, maxEventsPerRead*inputEventSize),
		logger:      logger,
	}

	for _, src := range sources {
		if err := m.Add(src); err != nil {
			m.Close()
			return nil, err
		}
	}
	return m, nil
}

// Add registers one more source.
func (m *Multiplexer) Add(src *Source) error {
	event := unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(src.fd),
	}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, src.fd, &event); err != nil {
		return fmt.Errorf("epoll_ctl_add %s (fd=%d): %w", src.Name, src.fd, err)
	}
	m.sources[src.fd] = src
	m.live++
	return nil
}

// OnLost registers the callback run for every source that goes away.
func (m *Multiplexer) OnLost(fn func(src *Source, err error)) { m.onLost = fn }

// Live returns the number of sources still delivering events.
func (m *Multiplexer) Live() int { return m.live }

// Wait blocks until at least one source is readable or timeout elapses.
// A negative timeout waits forever. The returned batch may be empty on timeout.
func (m *Multiplexer) Wait(timeout time.Duration) ([]RawEvent, error) {
	if m.live == 0 && timeout < 0 {
		return nil, ErrNoSources
	}

	msec := -1
	if timeout >= 0 {
		msec = int(math.Ceil(float64(timeout) / float64(time.Millisecond)))
	}

	var n int
	for {
		var err error
		n, err = unix.EpollWait(m.epfd, m.epollEvents, msec)
		if err != nil {
			// Interrupted by a signal; the process decides about shutdown elsewhere.
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return nil, fmt.Errorf("epoll_wait: %w", err)
		}
		break
	}

	var batch []RawEvent
	for i := 0; i < n; i++ {
		src := m.sources[int(m.epollEvents[i].Fd)]
		if src == nil || src.dead {
			continue
		}
		hangup := m.epollEvents[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0
		batch = m.drain(src, hangup, batch)
	}
	return batch, nil
}

// drain reads src until EAGAIN, appending decoded events to batch.
// Events decoded before an error are still delivered.
func (m *Multiplexer) drain(src *Source, hangup bool, batch []RawEvent) []RawEvent {
	for {
		n, err := unix.Read(src.fd, m.buf)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			if hangup {
				m.drop(src, errHangup)
			}
			return batch
		case err != nil:
			m.drop(src, fmt.Errorf("read: %w", err))
			return batch
		case n == 0:
			m.drop(src, io.EOF)
			return batch
		}

		data := m.buf[:n]
		if len(src.pending) > 0 {
			data = append(src.pending, data...)
		}
		var used int
		batch, used = decodeInputEvents(data, src.ID, batch)
		src.pending = append(src.pending[:0], data[used:]...)
	}
}

// drop removes src from future waits. It is never fatal to the daemon.
func (m *Multiplexer) drop(src *Source, cause error) {
	if src.dead {
		return
	}
	src.dead = true
	m.live--

	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, src.fd, nil); err != nil {
		m.logger.Debug("epoll_ctl_del failed", "device", src.Name, "error", err)
	}
	_ = unix.Close(src.fd)
	delete(m.sources, src.fd)

	m.logger.Warn("input device lost", "device", src.Name, "error", cause, "remaining", m.live)
	if m.onLost != nil {
		m.onLost(src, cause)
	}
}

// Close releases every fd. Only used on shutdown and in tests.
func (m *Multiplexer) Close() error {
	for fd, src := range m.sources {
		_ = unix.Close(fd)
		src.dead = true
	}
	m.sources = map[int]*Source{}
	m.live = 0
	return unix.Close(m.epfd)
}
