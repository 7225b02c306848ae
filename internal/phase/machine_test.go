package phase_test

import (
	"errors"
	"testing"
	"time"

	"github.com/volbet/settlement-engine/internal/model"
	"github.com/volbet/settlement-engine/internal/phase"
)

// fakeClock is a manually-advanced clock.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newMachine(window time.Duration) (*phase.Machine, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return phase.NewMachine(clock, window), clock
}

func TestNewMachine_StartsOpen(t *testing.T) {
	m, clock := newMachine(60 * time.Second)

	if m.Phase() != model.PhaseOpen {
		t.Errorf("expected OPEN, got %s", m.Phase())
	}
	if !m.Deadline().Equal(clock.Now().Add(60 * time.Second)) {
		t.Errorf("unexpected deadline %s", m.Deadline())
	}
}

func TestCheckDeadline_LazyFlip(t *testing.T) {
	m, clock := newMachine(60 * time.Second)

	// Before the deadline nothing flips and time remaining decreases.
	clock.Advance(20 * time.Second)
	if p, flipped := m.CheckDeadline(); flipped || p != model.PhaseOpen {
		t.Fatalf("unexpected flip before deadline: phase=%s flipped=%v", p, flipped)
	}
	first := m.TimeRemaining()
	clock.Advance(20 * time.Second)
	second := m.TimeRemaining()
	if second >= first {
		t.Errorf("time remaining should decrease: %s then %s", first, second)
	}

	// The deadline passes but the phase only flips when observed.
	clock.Advance(60 * time.Second)
	if m.Phase() != model.PhaseOpen {
		t.Fatal("phase must not flip until observed")
	}

	p, flipped := m.CheckDeadline()
	if !flipped || p != model.PhaseClosed {
		t.Fatalf("expected flip to CLOSED, got phase=%s flipped=%v", p, flipped)
	}

	// Only the first observation reports the flip.
	if _, flipped := m.CheckDeadline(); flipped {
		t.Error("second observation must not report a flip")
	}
	if m.TimeRemaining() != 0 {
		t.Errorf("time remaining should clamp to 0, got %s", m.TimeRemaining())
	}
}

func TestCheckDeadline_FlipsExactlyAtDeadline(t *testing.T) {
	m, clock := newMachine(60 * time.Second)

	clock.Advance(60 * time.Second) // now == deadline
	if p, flipped := m.CheckDeadline(); !flipped || p != model.PhaseClosed {
		t.Errorf("expected flip at exact deadline, got phase=%s flipped=%v", p, flipped)
	}
}

func TestRequireOpen(t *testing.T) {
	m, clock := newMachine(60 * time.Second)

	if err := m.RequireOpen(); err != nil {
		t.Fatalf("expected open, got %v", err)
	}

	clock.Advance(61 * time.Second)
	if err := m.RequireOpen(); !errors.Is(err, phase.ErrInvalidPhase) {
		t.Errorf("expected ErrInvalidPhase after deadline, got %v", err)
	}
	// RequireOpen itself performed the flip.
	if m.Phase() != model.PhaseClosed {
		t.Errorf("expected CLOSED, got %s", m.Phase())
	}
}

func TestBeginCalculating_OnlyFromClosed(t *testing.T) {
	m, clock := newMachine(60 * time.Second)

	if err := m.BeginCalculating(); !errors.Is(err, phase.ErrInvalidPhase) {
		t.Errorf("expected ErrInvalidPhase from OPEN, got %v", err)
	}

	clock.Advance(61 * time.Second)
	m.CheckDeadline()

	if err := m.BeginCalculating(); err != nil {
		t.Fatalf("expected transition from CLOSED, got %v", err)
	}
	if m.Phase() != model.PhaseCalculating {
		t.Errorf("expected CALCULATING, got %s", m.Phase())
	}
}

func TestResolve_Lifecycle(t *testing.T) {
	m, clock := newMachine(60 * time.Second)

	// Before the oracle has reported.
	if err := m.Resolve(); !errors.Is(err, phase.ErrNotCalculating) {
		t.Errorf("expected ErrNotCalculating from OPEN, got %v", err)
	}

	clock.Advance(61 * time.Second)
	m.CheckDeadline()
	if err := m.Resolve(); !errors.Is(err, phase.ErrNotCalculating) {
		t.Errorf("expected ErrNotCalculating from CLOSED, got %v", err)
	}

	m.BeginCalculating()
	if err := m.Resolve(); err != nil {
		t.Fatalf("expected resolution from CALCULATING, got %v", err)
	}
	if m.Phase() != model.PhaseResolved {
		t.Errorf("expected RESOLVED, got %s", m.Phase())
	}

	// Terminal: a second resolution fails, and nothing reopens the pool.
	if err := m.Resolve(); !errors.Is(err, phase.ErrAlreadyResolved) {
		t.Errorf("expected ErrAlreadyResolved, got %v", err)
	}
	if p, flipped := m.CheckDeadline(); flipped || p != model.PhaseResolved {
		t.Errorf("resolved pool must stay resolved: phase=%s flipped=%v", p, flipped)
	}
}

func TestMachine_RestoreDeadline(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	m := phase.NewMachine(clock, 60*time.Second)

	// Restore a deadline that already lies in the past, as replay does after
	// a restart that missed the expiry. The next observation must close.
	original := clock.Now().Add(-40 * time.Second)
	m.RestoreDeadline(original)

	if !m.Deadline().Equal(original) {
		t.Errorf("expected deadline %v, got %v", original, m.Deadline())
	}
	if m.TimeRemaining() != 0 {
		t.Errorf("expected no time remaining, got %v", m.TimeRemaining())
	}
	if p, flipped := m.CheckDeadline(); !flipped || p != model.PhaseClosed {
		t.Errorf("expected flip to CLOSED, got phase=%s flipped=%v", p, flipped)
	}
}
