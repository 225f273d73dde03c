package process

import (
	"context"
	"errors"
	"testing"
)

type fakeHandle struct {
	kills int
	err   error
}

func (f *fakeHandle) PID() int { return 42 }
func (f *fakeHandle) Kill(context.Context) error {
	f.kills++
	return f.err
}

func TestStateZeroValueIsStopped(t *testing.T) {
	var s State
	s.Lock()
	defer s.Unlock()
	if s.Current() != nil {
		t.Errorf("expected stopped state, got %v", s.Current())
	}
}

func TestStopKillsAndClears(t *testing.T) {
	var s State
	h := &fakeHandle{}

	s.Lock()
	s.Set(h)
	killed := s.Stop(context.Background())
	cur := s.Current()
	s.Unlock()

	if !killed {
		t.Error("expected Stop to report a kill")
	}
	if h.kills != 1 {
		t.Errorf("expected 1 kill, got %d", h.kills)
	}
	if cur != nil {
		t.Errorf("expected state cleared, got %v", cur)
	}
}

func TestStopSwallowsKillError(t *testing.T) {
	var s State
	h := &fakeHandle{err: errors.New("no such process")}

	s.Lock()
	s.Set(h)
	s.Stop(context.Background())
	cur := s.Current()
	s.Unlock()

	if cur != nil {
		t.Errorf("expected state cleared after failed kill, got %v", cur)
	}
}

func TestStopLeavesUnmanagedAlone(t *testing.T) {
	var s State

	s.Lock()
	s.Set(Unmanaged)
	killed := s.Stop(context.Background())
	cur := s.Current()
	s.Unlock()

	if killed {
		t.Error("expected no kill for an unmanaged instance")
	}
	if cur != nil {
		t.Errorf("expected unmanaged entry removed, got %v", cur)
	}
}

func TestStopWhenStopped(t *testing.T) {
	var s State
	s.Lock()
	killed := s.Stop(context.Background())
	s.Unlock()

	if killed {
		t.Error("expected no kill when stopped")
	}
}
