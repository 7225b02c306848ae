package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/volbet/settlement-engine/internal/model"
)

const eventsKey = "pool:events"

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache over the event log. Appends go to the primary store and invalidate
// the cache; reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedStore) AppendEvent(ctx context.Context, e *model.Event) error {
	if err := s.primary.AppendEvent(ctx, e); err != nil {
		return err
	}
	// Invalidate cache; next read will re-populate. A failed invalidation
	// can serve a stale list until the TTL expires, so make it visible.
	if err := s.rdb.Del(ctx, eventsKey).Err(); err != nil {
		slog.Error("failed to invalidate event cache", "key", eventsKey, "err", err)
	}
	return nil
}

func (s *CachedStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, eventsKey).Bytes()
	if err == nil {
		var events []model.Event
		if json.Unmarshal(data, &events) == nil {
			return events, nil
		}
	}

	// Cache miss: read from primary.
	events, err := s.primary.ListEvents(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(events); err == nil {
		s.rdb.Set(ctx, eventsKey, data, s.ttl)
	}
	return events, nil
}
