package pool

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/volbet/settlement-engine/internal/model"
)

// Replay rebuilds pool state from the persisted event log. Called once at
// startup, before the service starts accepting requests. On a fresh log it
// instead records the pool-created event that pins the deadline. The log is
// applied in append order; guards are bypassed because every event describes
// an operation that already passed them.
func (s *Service) Replay(ctx context.Context) error {
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("pool: loading event log: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First boot: fix the deadline in the log so restarts keep it. Without
	// this a restart would re-derive the deadline from the restart time and
	// silently reopen betting.
	if len(events) == 0 {
		s.record(ctx, &model.Event{
			Type:     model.EventPoolCreated,
			Phase:    model.PhaseOpen,
			Deadline: s.machine.Deadline(),
		})
		slog.Info("pool created", "deadline", s.machine.Deadline())
		return nil
	}

	for _, e := range events {
		switch e.Type {
		case model.EventPoolCreated:
			s.machine.RestoreDeadline(e.Deadline)

		case model.EventDeposited:
			if err := s.ledger.Deposit(e.Participant, e.Amount); err != nil {
				return fmt.Errorf("pool: replaying event %s: %w", e.ID, err)
			}

		case model.EventWithdrawn:
			s.ledger.Debit(e.Participant, e.Amount)

		case model.EventPredicted:
			s.predictions.Submit(e.Participant, e.Value)

		case model.EventPhaseChanged:
			s.machine.Restore(e.Phase)

		case model.EventReportRequested:
			s.gateway.Restore(e.RequestID, false)

		case model.EventReportReceived:
			s.gateway.Restore(e.RequestID, true)
			s.reportedVolume = e.Value
			s.volumeSet = true
			s.machine.Restore(model.PhaseCalculating)

		case model.EventWinnerChosen:
			s.winner = e.Participant
			s.winnerSet = true
			s.machine.Restore(model.PhaseResolved)

		case model.EventSwept:
			for _, p := range s.ledger.Participants() {
				s.ledger.Debit(p, s.ledger.Balance(p))
			}

		default:
			slog.Warn("skipping unknown event type during replay", "type", e.Type, "id", e.ID)
		}
	}

	slog.Info("state reconstructed from event log",
		"events", len(events),
		"phase", string(s.machine.Phase()),
		"deadline", s.machine.Deadline(),
		"total_held", s.ledger.Total().String(),
		"predictions", s.predictions.Len(),
	)
	return nil
}
