package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/volbet/settlement-engine/internal/model"
	"github.com/volbet/settlement-engine/internal/store"
)

func TestMemoryStore_AppendPreservesOrder(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	events := []*model.Event{
		{ID: "1", Type: model.EventDeposited, Participant: "alice", Amount: decimal.NewFromInt(100)},
		{ID: "2", Type: model.EventPredicted, Participant: "alice", Value: 500},
		{ID: "3", Type: model.EventPhaseChanged, Phase: model.PhaseClosed},
	}
	for _, e := range events {
		e.Timestamp = time.Now().UTC()
		if err := ms.AppendEvent(ctx, e); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	got, err := ms.ListEvents(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	for i, e := range got {
		if e.ID != events[i].ID {
			t.Errorf("event %d out of order: got %s", i, e.ID)
		}
	}

	// The returned slice is a copy; mutating it must not affect the log.
	got[0].Participant = "mallory"
	again, _ := ms.ListEvents(ctx)
	if again[0].Participant != "alice" {
		t.Error("ListEvents must return a copy")
	}
}
