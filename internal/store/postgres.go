package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/volbet/settlement-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Amounts are stored as NUMERIC for exact decimal precision; prediction and
// volume values as NUMERIC too, since they are uint64 and BIGINT is signed.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) AppendEvent(ctx context.Context, e *model.Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pool_events (id, type, participant, amount, value, phase, request_id, deadline, timestamp)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, $7, $8, $9)`,
		e.ID, e.Type, e.Participant,
		e.Amount.String(), strconv.FormatUint(e.Value, 10),
		string(e.Phase), e.RequestID, e.Deadline, e.Timestamp,
	)
	return err
}

func (s *PostgresStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, type, participant, amount::TEXT, value::TEXT, phase, request_id, deadline, timestamp
		 FROM pool_events ORDER BY timestamp, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		var amountS, valueS, phaseS string

		if err := rows.Scan(&e.ID, &e.Type, &e.Participant,
			&amountS, &valueS, &phaseS, &e.RequestID, &e.Deadline, &e.Timestamp); err != nil {
			return nil, err
		}

		e.Amount, err = decimal.NewFromString(amountS)
		if err != nil {
			return nil, fmt.Errorf("event %s: bad amount %q: %w", e.ID, amountS, err)
		}
		e.Value, err = strconv.ParseUint(valueS, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("event %s: bad value %q: %w", e.ID, valueS, err)
		}
		e.Phase = model.Phase(phaseS)

		events = append(events, e)
	}
	return events, rows.Err()
}
