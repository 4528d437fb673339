package main

import (
	"time"

	"go.uber.org/atomic"
)

// Stats is the daemon's externally visible state.
//
// The event loop is the only writer. IPC and WebSocket goroutines only read,
// so every field is an atomic and no lock is shared with the loop.
type Stats struct {
	Identity  string
	StartedAt time.Time

	Events       atomic.Int64
	Actions      atomic.Int64
	ActionErrors atomic.Int64
	LiveSources  atomic.Int64

	ModifierHeld atomic.Bool
	DimActive    atomic.Bool

	LastAction   atomic.String
	LastActionAt atomic.Time
	LastActivity atomic.Time
}

func NewStats(identity string, startedAt time.Time) *Stats {
	return &Stats{Identity: identity, StartedAt: startedAt}
}

// StateSnapshot is a coherent-enough copy of Stats for clients.
type StateSnapshot struct {
	Identity     string    `json:"identity"`
	StartedAt    time.Time `json:"started_at"`
	Events       int64     `json:"events"`
	Actions      int64     `json:"actions"`
	ActionErrors int64     `json:"action_errors"`
	LiveSources  int64     `json:"live_sources"`
	ModifierHeld bool      `json:"modifier_held"`
	DimActive    bool      `json:"dim_active"`
	LastAction   string    `json:"last_action,omitempty"`
	LastActionAt time.Time `json:"last_action_at,omitempty"`
	LastActivity time.Time `json:"last_activity,omitempty"`
}

func (s *Stats) Snapshot() StateSnapshot {
	return StateSnapshot{
		Identity:     s.Identity,
		StartedAt:    s.StartedAt,
		Events:       s.Events.Load(),
		Actions:      s.Actions.Load(),
		ActionErrors: s.ActionErrors.Load(),
		LiveSources:  s.LiveSources.Load(),
		ModifierHeld: s.ModifierHeld.Load(),
		DimActive:    s.DimActive.Load(),
		LastAction:   s.LastAction.Load(),
		LastActionAt: s.LastActionAt.Load(),
		LastActivity: s.LastActivity.Load(),
	}
}

// ==============================
// Broadcasts
// ==============================

// StateBroadcast is a state change the loop announces to WebSocket clients.
type StateBroadcast interface {
	broadcastMarker()
}

type BroadcastActionFired struct {
	Action ActionID
	Origin string
	Err    string
	At     time.Time
}

func (BroadcastActionFired) broadcastMarker() {}

type BroadcastDimChanged struct {
	Active bool
	Level  int
	At     time.Time
}

func (BroadcastDimChanged) broadcastMarker() {}

type BroadcastModifierChanged struct {
	Held bool
	At   time.Time
}

func (BroadcastModifierChanged) broadcastMarker() {}

type BroadcastDeviceLost struct {
	Device string
	Err    string
	At     time.Time
}

func (BroadcastDeviceLost) broadcastMarker() {}

// Publisher receives broadcasts from the loop. Publish must never block.
type Publisher interface {
	Publish(b StateBroadcast)
}

// broadcastQueue is a Publisher backed by a buffered channel; it drops
// broadcasts when the consumer falls behind.
type broadcastQueue chan StateBroadcast

func (q broadcastQueue) Publish(b StateBroadcast) {
	select {
	case q <- b:
	default:
	}
}

type discardPublisher struct{}

func (discardPublisher) Publish(StateBroadcast) {}
