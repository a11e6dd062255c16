package lsp

import (
	"math"
	"time"
)

// SupervisorState represents the restart policy's state.
type SupervisorState int

const (
	// SupervisorIdle means no session is being supervised.
	SupervisorIdle SupervisorState = iota
	// SupervisorRunning means the server is up.
	SupervisorRunning
	// SupervisorBackoff means a restart is scheduled.
	SupervisorBackoff
	// SupervisorFailed means the restart budget is exhausted.
	SupervisorFailed
)

// String returns a human-readable state name.
func (s SupervisorState) String() string {
	switch s {
	case SupervisorIdle:
		return "idle"
	case SupervisorRunning:
		return "running"
	case SupervisorBackoff:
		return "backoff"
	case SupervisorFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SupervisorConfig tunes crash recovery.
type SupervisorConfig struct {
	// MaxRestarts is the restart budget before giving up.
	MaxRestarts int
	// InitialBackoff is the delay after the first crash.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay growth.
	MaxBackoff time.Duration
	// BackoffMultiplier grows the delay after each crash.
	BackoffMultiplier float64
	// ResetWindow is uptime after which the restart count resets.
	ResetWindow time.Duration
}

// DefaultSupervisorConfig returns the default recovery tuning.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		MaxRestarts:       5,
		InitialBackoff:    time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
		ResetWindow:       5 * time.Minute,
	}
}

// Supervisor decides when a crashed server may be restarted. It keeps
// no timers of its own; the synchronization loop polls ShouldRestart
// each tick, which keeps all session mutation on the main goroutine.
type Supervisor struct {
	cfg   SupervisorConfig
	state SupervisorState

	restarts  int
	upSince   time.Time
	restartAt time.Time
	now       func() time.Time
}

// NewSupervisor creates a supervisor in the idle state.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.MaxRestarts <= 0 {
		cfg = DefaultSupervisorConfig()
	}
	return &Supervisor{cfg: cfg, now: time.Now}
}

// State returns the current supervisor state.
func (sv *Supervisor) State() SupervisorState { return sv.state }

// Restarts returns the consumed restart budget.
func (sv *Supervisor) Restarts() int { return sv.restarts }

// NoteStarted records a successful session start.
func (sv *Supervisor) NoteStarted() {
	sv.state = SupervisorRunning
	sv.upSince = sv.now()
}

// NoteExited records a crash and schedules the next restart attempt.
// Returns false when the restart budget is exhausted.
func (sv *Supervisor) NoteExited() bool {
	// A long healthy run earns a fresh budget.
	if sv.state == SupervisorRunning && sv.now().Sub(sv.upSince) >= sv.cfg.ResetWindow {
		sv.restarts = 0
	}

	if sv.restarts >= sv.cfg.MaxRestarts {
		sv.state = SupervisorFailed
		return false
	}

	backoff := float64(sv.cfg.InitialBackoff) * math.Pow(sv.cfg.BackoffMultiplier, float64(sv.restarts))
	if backoff > float64(sv.cfg.MaxBackoff) {
		backoff = float64(sv.cfg.MaxBackoff)
	}
	sv.restarts++
	sv.restartAt = sv.now().Add(time.Duration(backoff))
	sv.state = SupervisorBackoff
	return true
}

// ShouldRestart reports whether the backoff delay has elapsed. Polled
// by the synchronization loop; it never blocks.
func (sv *Supervisor) ShouldRestart() bool {
	return sv.state == SupervisorBackoff && !sv.now().Before(sv.restartAt)
}

// Reset clears all recovery state, for explicit user-triggered starts.
func (sv *Supervisor) Reset() {
	sv.state = SupervisorIdle
	sv.restarts = 0
	sv.upSince = time.Time{}
	sv.restartAt = time.Time{}
}
