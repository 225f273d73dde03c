// Package process tracks the marimo process behind the proxy.
//
// State is the lifecycle handle shared between the proxy (which spawns
// marimo on demand) and the tools API (which stops it on restart). It is a
// two-state machine, Running(handle) or Stopped, guarded by a mutex that
// callers hold across any read-check-modify sequence.
package process

import (
	"context"
	"sync"
)

// Handle is a running marimo process.
type Handle interface {
	PID() int
	Kill(ctx context.Context) error
}

type unmanaged struct{}

func (unmanaged) PID() int                   { return 0 }
func (unmanaged) Kill(context.Context) error { return nil }

// Unmanaged marks a marimo instance the proxy talks to but did not start.
// It must never be killed.
var Unmanaged Handle = unmanaged{}

// State holds the current Handle. The zero value is Stopped.
type State struct {
	mu   sync.Mutex
	proc Handle
}

func (s *State) Lock()   { s.mu.Lock() }
func (s *State) Unlock() { s.mu.Unlock() }

// Current returns the tracked handle, or nil when stopped. The lock must be
// held.
func (s *State) Current() Handle { return s.proc }

// Set moves to Running(h). The lock must be held.
func (s *State) Set(h Handle) { s.proc = h }

// Clear moves to Stopped. The lock must be held.
func (s *State) Clear() { s.proc = nil }

// Stop kills the tracked process, unless it is Unmanaged, and moves to
// Stopped. It reports whether a kill was attempted. Kill errors are ignored
// since the process may already be gone. The lock must be held.
func (s *State) Stop(ctx context.Context) (killed bool) {
	if h := s.proc; h != nil && h != Unmanaged {
		_ = h.Kill(ctx)
		killed = true
	}
	s.proc = nil
	return killed
}

// Lookup finds the State of the running proxy. ok is false until the proxy
// has been initialized.
type Lookup interface {
	State() (st *State, ok bool)
}
