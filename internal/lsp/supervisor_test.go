package lsp

import (
	"testing"
	"time"
)

// fakeClock advances manually.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSupervisor(cfg SupervisorConfig) (*Supervisor, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	sv := NewSupervisor(cfg)
	sv.now = clock.now
	return sv, clock
}

func TestSupervisor_BackoffSequence(t *testing.T) {
	sv, clock := newTestSupervisor(SupervisorConfig{
		MaxRestarts:       3,
		InitialBackoff:    time.Second,
		MaxBackoff:        time.Minute,
		BackoffMultiplier: 2.0,
		ResetWindow:       5 * time.Minute,
	})

	wantDelays := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, want := range wantDelays {
		sv.NoteStarted()
		if !sv.NoteExited() {
			t.Fatalf("restart %d refused", i)
		}
		if sv.State() != SupervisorBackoff {
			t.Fatalf("state = %v", sv.State())
		}
		if sv.ShouldRestart() {
			t.Fatalf("restart %d allowed before backoff elapsed", i)
		}
		clock.advance(want)
		if !sv.ShouldRestart() {
			t.Fatalf("restart %d not allowed after %v", i, want)
		}
	}

	// Budget exhausted on the fourth crash.
	sv.NoteStarted()
	if sv.NoteExited() {
		t.Fatal("restart allowed past the budget")
	}
	if sv.State() != SupervisorFailed {
		t.Errorf("state = %v, want failed", sv.State())
	}
}

func TestSupervisor_BackoffCapped(t *testing.T) {
	sv, clock := newTestSupervisor(SupervisorConfig{
		MaxRestarts:       10,
		InitialBackoff:    time.Second,
		MaxBackoff:        4 * time.Second,
		BackoffMultiplier: 10.0,
		ResetWindow:       time.Hour,
	})

	sv.NoteStarted()
	sv.NoteExited()
	sv.NoteStarted()
	sv.NoteExited() // raw backoff 10s, capped to 4s

	clock.advance(4 * time.Second)
	if !sv.ShouldRestart() {
		t.Error("backoff not capped at MaxBackoff")
	}
}

func TestSupervisor_ResetWindowRestoresBudget(t *testing.T) {
	sv, clock := newTestSupervisor(SupervisorConfig{
		MaxRestarts:       2,
		InitialBackoff:    time.Second,
		MaxBackoff:        time.Minute,
		BackoffMultiplier: 2.0,
		ResetWindow:       time.Minute,
	})

	sv.NoteStarted()
	sv.NoteExited()
	sv.NoteStarted()
	sv.NoteExited()
	if sv.Restarts() != 2 {
		t.Fatalf("restarts = %d", sv.Restarts())
	}

	// A healthy run longer than the window clears the count.
	sv.NoteStarted()
	clock.advance(2 * time.Minute)
	if !sv.NoteExited() {
		t.Fatal("restart refused after reset window")
	}
	if sv.Restarts() != 1 {
		t.Errorf("restarts = %d, want 1", sv.Restarts())
	}
}

func TestSupervisor_Reset(t *testing.T) {
	sv, _ := newTestSupervisor(DefaultSupervisorConfig())
	sv.NoteStarted()
	sv.NoteExited()
	sv.Reset()
	if sv.State() != SupervisorIdle || sv.Restarts() != 0 {
		t.Errorf("state=%v restarts=%d after reset", sv.State(), sv.Restarts())
	}
}
