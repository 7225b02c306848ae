// Package store persists the pool's append-only event log. Implementations
// include PostgreSQL (source of truth), Redis (read-through cache), and
// in-memory (for testing and development). The log is sufficient to
// reconstruct the full pool state by replay.
package store

import (
	"context"

	"github.com/volbet/settlement-engine/internal/model"
)

// Store is the event-log persistence interface.
type Store interface {
	// AppendEvent appends an immutable audit record.
	AppendEvent(ctx context.Context, e *model.Event) error

	// ListEvents returns all events in append order.
	ListEvents(ctx context.Context) ([]model.Event, error)
}
