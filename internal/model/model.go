// Package model defines the core domain types shared across the settlement
// engine. All monetary values use shopspring/decimal — never float64 for money.
// Reported volumes and predictions are uint64 values already normalized by the
// oracle's fixed-point scale factor.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Phase is the lifecycle stage of the betting pool. Phases only ever advance;
// there are no back-transitions.
type Phase string

const (
	PhaseOpen        Phase = "OPEN"
	PhaseClosed      Phase = "CLOSED"
	PhaseCalculating Phase = "CALCULATING"
	PhaseResolved    Phase = "RESOLVED"
)

// Event types appended to the audit log. The log is the source of truth for
// state reconstruction: replaying it in order rebuilds the full pool state.
const (
	EventPoolCreated     = "pool_created"
	EventDeposited       = "deposited"
	EventWithdrawn       = "withdrawn"
	EventPredicted       = "predicted"
	EventPhaseChanged    = "phase_changed"
	EventReportRequested = "report_requested"
	EventReportReceived  = "report_received"
	EventWinnerChosen    = "winner_chosen"
	EventSwept           = "swept"
)

// Event is an immutable audit record. Once appended it is never modified or
// deleted. The populated fields depend on Type.
type Event struct {
	ID          string          `json:"id" db:"id"`
	Type        string          `json:"type" db:"type"`
	Participant string          `json:"participant,omitempty" db:"participant"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Value       uint64          `json:"value,omitempty" db:"value"`
	Phase       Phase           `json:"phase,omitempty" db:"phase"`
	RequestID   string          `json:"request_id,omitempty" db:"request_id"`
	Deadline    time.Time       `json:"deadline" db:"deadline"`
	Timestamp   time.Time       `json:"timestamp" db:"timestamp"`
}

// PoolStatus is the snapshot returned by the status query. ReportedVolume and
// Winner are nil until the owning transition has happened.
type PoolStatus struct {
	Phase           Phase           `json:"phase"`
	Deadline        time.Time       `json:"deadline"`
	TimeRemaining   float64         `json:"time_remaining_seconds"`
	ReportedVolume  *uint64         `json:"reported_volume"`
	Winner          *string         `json:"winner"`
	TotalHeld       decimal.Decimal `json:"total_held"`
	PredictionCount int             `json:"prediction_count"`
	OracleStatus    string          `json:"oracle_status"`
}
