// Package pool composes the ledger, prediction registry, state machine and
// oracle gateway into the betting pool settlement service, and exposes the
// HTTP API. Every mutating operation runs behind a single mutex so that no
// two mutations interleave; this replaces the atomicity guarantee of the
// original execution platform.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/volbet/settlement-engine/internal/ledger"
	"github.com/volbet/settlement-engine/internal/metrics"
	"github.com/volbet/settlement-engine/internal/model"
	"github.com/volbet/settlement-engine/internal/oracle"
	"github.com/volbet/settlement-engine/internal/phase"
	"github.com/volbet/settlement-engine/internal/prediction"
	"github.com/volbet/settlement-engine/internal/store"
)

// ErrUnauthorized is returned when an admin- or oracle-gated call carries a
// missing or wrong token.
var ErrUnauthorized = errors.New("pool: unauthorized")

// DefaultWindow is the betting window used when none is configured.
const DefaultWindow = 60 * time.Second

// Config wires the service's collaborators.
type Config struct {
	Store       store.Store
	Transferer  ledger.Transferer
	Dispatcher  oracle.Dispatcher
	Clock       phase.Clock
	Hub         *WSHub // optional; nil disables broadcasting
	Window      time.Duration
	OracleStall time.Duration
	AdminToken  string
	OracleToken string
}

// Service is the settlement engine. The mutex serializes all mutations on the
// ledger/registry/state-machine trio; read queries take it briefly for a
// consistent snapshot.
type Service struct {
	mu          sync.Mutex
	ledger      *ledger.Ledger
	predictions *prediction.Store
	machine     *phase.Machine
	gateway     *oracle.Gateway
	store       store.Store
	transferer  ledger.Transferer
	hub         *WSHub
	clock       phase.Clock

	adminToken  string
	oracleToken string

	reportedVolume uint64
	volumeSet      bool
	winner         string
	winnerSet      bool
}

// NewService creates the settlement service with a fresh pool. The betting
// deadline is fixed here: clock.Now() + cfg.Window.
func NewService(cfg Config) *Service {
	if cfg.Clock == nil {
		cfg.Clock = phase.SystemClock{}
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Service{
		ledger:      ledger.New(),
		predictions: prediction.New(),
		machine:     phase.NewMachine(cfg.Clock, cfg.Window),
		gateway:     oracle.NewGateway(cfg.Dispatcher, cfg.Clock.Now, cfg.OracleStall),
		store:       cfg.Store,
		transferer:  cfg.Transferer,
		hub:         cfg.Hub,
		clock:       cfg.Clock,
		adminToken:  cfg.AdminToken,
		oracleToken: cfg.OracleToken,
	}
}

// --- Core operations ---
// All run under s.mu. Each starts by observing the clock, which performs the
// lazy OPEN→CLOSED transition when the deadline has passed.

// Deposit credits funds to a participant. Requires OPEN.
func (s *Service) Deposit(ctx context.Context, participant string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observeClock(ctx)

	if s.machine.Phase() != model.PhaseOpen {
		metrics.RejectedOperations.WithLabelValues("deposit", "phase").Inc()
		return phase.ErrInvalidPhase
	}
	if err := s.ledger.Deposit(participant, amount); err != nil {
		metrics.RejectedOperations.WithLabelValues("deposit", "amount").Inc()
		return err
	}

	metrics.DepositsTotal.Inc()
	s.record(ctx, &model.Event{
		Type:        model.EventDeposited,
		Participant: participant,
		Amount:      amount,
	})
	return nil
}

// Withdraw pays out a participant's entire balance through the external
// transferer. Requires OPEN and a positive balance; the balance is zeroed
// only after the transfer succeeds.
func (s *Service) Withdraw(ctx context.Context, participant string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observeClock(ctx)

	if s.machine.Phase() != model.PhaseOpen {
		metrics.RejectedOperations.WithLabelValues("withdraw", "phase").Inc()
		return decimal.Zero, phase.ErrInvalidPhase
	}

	amount, err := s.ledger.Withdraw(ctx, participant, s.transferer)
	if err != nil {
		metrics.RejectedOperations.WithLabelValues("withdraw", "funds").Inc()
		return decimal.Zero, err
	}

	metrics.WithdrawalsTotal.Inc()
	s.record(ctx, &model.Event{
		Type:        model.EventWithdrawn,
		Participant: participant,
		Amount:      amount,
	})
	return amount, nil
}

// SubmitPrediction registers a participant's guess at the eventual reported
// volume. Requires OPEN and a strictly positive balance (participation gate;
// the funds themselves are not spent).
func (s *Service) SubmitPrediction(ctx context.Context, participant string, value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observeClock(ctx)

	if s.machine.Phase() != model.PhaseOpen {
		metrics.RejectedOperations.WithLabelValues("predict", "phase").Inc()
		return phase.ErrInvalidPhase
	}
	if !s.ledger.Balance(participant).IsPositive() {
		metrics.RejectedOperations.WithLabelValues("predict", "funds").Inc()
		return ledger.ErrInsufficientFunds
	}

	s.predictions.Submit(participant, value)

	metrics.PredictionsTotal.Inc()
	s.record(ctx, &model.Event{
		Type:        model.EventPredicted,
		Participant: participant,
		Value:       value,
	})
	return nil
}

// RequestReport issues a volume-report request to the oracle collaborator and
// returns the opaque request ID.
func (s *Service) RequestReport(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observeClock(ctx)

	requestID, err := s.gateway.RequestReport(ctx)
	if err != nil {
		return "", err
	}

	s.record(ctx, &model.Event{
		Type:      model.EventReportRequested,
		RequestID: requestID,
	})
	return requestID, nil
}

// Fulfill applies the oracle's report: it stores the reported volume exactly
// once and drives CLOSED→CALCULATING. A fulfillment before the deadline has
// closed betting fails and leaves all state, including the request's pending
// status, unchanged.
func (s *Service) Fulfill(ctx context.Context, requestID string, value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observeClock(ctx)

	// Request integrity first, so a duplicate reports as a duplicate even
	// after the phase has moved on.
	if err := s.gateway.Validate(requestID); err != nil {
		metrics.OracleFulfillmentsTotal.WithLabelValues("rejected").Inc()
		return err
	}
	if s.machine.Phase() != model.PhaseClosed {
		metrics.OracleFulfillmentsTotal.WithLabelValues("invalid_phase").Inc()
		return phase.ErrInvalidPhase
	}
	_ = s.gateway.Fulfill(requestID) // validated above

	s.reportedVolume = value
	s.volumeSet = true
	_ = s.machine.BeginCalculating() // phase checked above

	metrics.OracleFulfillmentsTotal.WithLabelValues("accepted").Inc()
	metrics.PhaseTransitionsTotal.WithLabelValues(string(model.PhaseCalculating)).Inc()
	s.record(ctx, &model.Event{
		Type:      model.EventReportReceived,
		RequestID: requestID,
		Value:     value,
		Phase:     model.PhaseCalculating,
	})
	return nil
}

// DeclareWinner resolves the pool against the reported volume, sets the
// winner once and advances to RESOLVED. Fails before the oracle has reported
// and after the pool is already resolved.
func (s *Service) DeclareWinner(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observeClock(ctx)

	switch s.machine.Phase() {
	case model.PhaseCalculating:
	case model.PhaseResolved:
		return "", phase.ErrAlreadyResolved
	default:
		return "", phase.ErrNotCalculating
	}

	winner, err := s.predictions.ResolveNearest(s.reportedVolume)
	if err != nil {
		return "", err
	}

	_ = s.machine.Resolve() // phase checked above
	s.winner = winner
	s.winnerSet = true

	metrics.PhaseTransitionsTotal.WithLabelValues(string(model.PhaseResolved)).Inc()
	s.record(ctx, &model.Event{
		Type:        model.EventWinnerChosen,
		Participant: winner,
		Value:       s.reportedVolume,
		Phase:       model.PhaseResolved,
	})

	slog.Info("winner declared",
		"winner", winner,
		"reported_volume", s.reportedVolume,
		"predictions", s.predictions.Len(),
	)
	return winner, nil
}

// Sweep transfers every held balance to the given recipient in one aggregate
// transfer and zeroes the ledger. A failed transfer leaves the ledger
// unchanged. Owner-only escape hatch, allowed in any phase.
func (s *Service) Sweep(ctx context.Context, to string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observeClock(ctx)

	total := s.ledger.Total()
	if !total.IsPositive() {
		return decimal.Zero, ledger.ErrInsufficientFunds
	}

	if err := s.transferer.Transfer(ctx, to, total); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ledger.ErrTransferFailed, err)
	}

	for _, p := range s.ledger.Participants() {
		s.ledger.Debit(p, s.ledger.Balance(p))
	}

	s.record(ctx, &model.Event{
		Type:        model.EventSwept,
		Participant: to,
		Amount:      total,
	})
	return total, nil
}

// Balance returns the participant's balance. Unknown participants have an
// implicit zero balance.
func (s *Service) Balance(participant string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Balance(participant)
}

// Status returns a consistent snapshot of the pool. The status query also
// observes the clock, so polling it past the deadline performs the
// OPEN→CLOSED flip.
func (s *Service) Status(ctx context.Context) model.PoolStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observeClock(ctx)

	st := model.PoolStatus{
		Phase:           s.machine.Phase(),
		Deadline:        s.machine.Deadline(),
		TimeRemaining:   s.machine.TimeRemaining().Seconds(),
		TotalHeld:       s.ledger.Total(),
		PredictionCount: s.predictions.Len(),
		OracleStatus:    s.gateway.Status(),
	}
	if s.volumeSet {
		v := s.reportedVolume
		st.ReportedVolume = &v
	}
	if s.winnerSet {
		w := s.winner
		st.Winner = &w
	}
	return st
}

// --- Internal helpers ---

// observeClock performs the lazy deadline check and records the phase change
// the first time it is observed. Callers must hold s.mu.
func (s *Service) observeClock(ctx context.Context) {
	p, flipped := s.machine.CheckDeadline()
	if !flipped {
		return
	}
	metrics.PhaseTransitionsTotal.WithLabelValues(string(p)).Inc()
	s.record(ctx, &model.Event{
		Type:  model.EventPhaseChanged,
		Phase: p,
	})
	slog.Info("betting closed", "deadline", s.machine.Deadline())
}

// record appends an audit event and broadcasts it. Audit failures are logged
// but never fail the operation that produced them: events are observability,
// not behavior.
func (s *Service) record(ctx context.Context, e *model.Event) {
	e.ID = uuid.New().String()
	e.Timestamp = s.clock.Now()

	if err := s.store.AppendEvent(ctx, e); err != nil {
		slog.Error("failed to append audit event", "type", e.Type, "err", err)
	}
	if s.hub != nil {
		s.hub.Broadcast(e)
	}
}
