// Package phase implements the betting pool's lifecycle state machine:
// OPEN → CLOSED → CALCULATING → RESOLVED. Transitions are monotonic; there
// are no back-edges.
package phase

import (
	"errors"
	"time"

	"github.com/volbet/settlement-engine/internal/model"
)

var (
	// ErrInvalidPhase is returned when an operation is attempted outside its
	// required phase.
	ErrInvalidPhase = errors.New("phase: operation not allowed in current phase")

	// ErrNotCalculating is returned when resolution is attempted before the
	// oracle has fulfilled its report.
	ErrNotCalculating = errors.New("phase: oracle report not yet fulfilled")

	// ErrAlreadyResolved is returned when resolution is attempted after the
	// pool has already been resolved.
	ErrAlreadyResolved = errors.New("phase: pool already resolved")
)

// Clock is the monotonic time source used for the deadline check. Injected so
// tests can control time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Machine holds the pool's phase and deadline. The OPEN→CLOSED transition is
// lazy: it fires only when CheckDeadline observes that the deadline has
// passed, not on a background timer. Not safe for concurrent use; the pool
// service serializes access.
type Machine struct {
	phase    model.Phase
	deadline time.Time
	clock    Clock
}

// NewMachine creates a machine in OPEN with deadline = now + window.
func NewMachine(clock Clock, window time.Duration) *Machine {
	return &Machine{
		phase:    model.PhaseOpen,
		deadline: clock.Now().Add(window),
		clock:    clock,
	}
}

// Phase returns the current phase without observing the clock.
func (m *Machine) Phase() model.Phase {
	return m.phase
}

// Deadline returns the betting deadline fixed at construction.
func (m *Machine) Deadline() time.Time {
	return m.deadline
}

// TimeRemaining returns the time until the deadline, clamped at zero.
func (m *Machine) TimeRemaining() time.Duration {
	remaining := m.deadline.Sub(m.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CheckDeadline performs the lazy OPEN→CLOSED transition: if the pool is OPEN
// and the clock has reached the deadline, the phase flips to CLOSED. Returns
// the phase after the check and whether this call performed the flip.
func (m *Machine) CheckDeadline() (model.Phase, bool) {
	if m.phase == model.PhaseOpen && !m.clock.Now().Before(m.deadline) {
		m.phase = model.PhaseClosed
		return m.phase, true
	}
	return m.phase, false
}

// RequireOpen observes the clock and fails unless the pool is still OPEN.
func (m *Machine) RequireOpen() error {
	if p, _ := m.CheckDeadline(); p != model.PhaseOpen {
		return ErrInvalidPhase
	}
	return nil
}

// BeginCalculating performs CLOSED→CALCULATING. Only the oracle fulfillment
// path calls this.
func (m *Machine) BeginCalculating() error {
	if m.phase != model.PhaseClosed {
		return ErrInvalidPhase
	}
	m.phase = model.PhaseCalculating
	return nil
}

// Resolve performs CALCULATING→RESOLVED. Fails with ErrAlreadyResolved after
// resolution and ErrNotCalculating before the oracle has reported.
func (m *Machine) Resolve() error {
	switch m.phase {
	case model.PhaseCalculating:
		m.phase = model.PhaseResolved
		return nil
	case model.PhaseResolved:
		return ErrAlreadyResolved
	default:
		return ErrNotCalculating
	}
}

// Restore forces the machine into a phase during event-log replay.
func (m *Machine) Restore(p model.Phase) {
	m.phase = p
}

// RestoreDeadline sets the deadline during event-log replay, so that a
// restarted pool keeps the deadline fixed at its original creation rather
// than the restart time. The next clock observation performs the lazy
// OPEN→CLOSED flip if that deadline has already passed.
func (m *Machine) RestoreDeadline(t time.Time) {
	m.deadline = t
}
