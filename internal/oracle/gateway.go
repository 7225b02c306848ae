// Package oracle implements the gateway to the external volume oracle. The
// gateway issues volume-report requests with a fixed query and accepts the
// asynchronous fulfillment callback for request IDs it issued. Authentication
// of the inbound callback is the oracle collaborator's responsibility and is
// enforced at the HTTP layer, not here.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Fixed query parameters for the 24h ETH/USD volume report. The scale factor
// normalizes the source's fractional value into the uint64 domain.
const (
	SourceURL   = "https://min-api.cryptocompare.com/data/pricemultifull?fsyms=ETH&tsyms=USD"
	FieldPath   = "RAW.ETH.USD.VOLUME24HOUR"
	ScaleFactor = 1e18
)

var (
	// ErrUnknownRequest is returned for a fulfillment whose request ID was
	// never issued by this gateway.
	ErrUnknownRequest = errors.New("oracle: unknown request id")

	// ErrDuplicateFulfillment is returned when a request is fulfilled twice.
	ErrDuplicateFulfillment = errors.New("oracle: request already fulfilled")
)

// Request is the outbound volume-report query handed to the dispatcher.
type Request struct {
	ID    string
	URL   string
	Path  string
	Times float64
}

// Dispatcher is the outbound side of the oracle collaborator. Dispatch must
// return promptly; the report arrives later through Fulfill.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) error
}

// Request lifecycle states reported by Status.
const (
	StatusIdle                = "idle"
	StatusPending             = "pending"
	StatusPendingIndefinitely = "pending_indefinitely"
	StatusFulfilled           = "fulfilled"
)

type pendingRequest struct {
	issuedAt  time.Time
	fulfilled bool
}

// Gateway tracks issued requests and validates fulfillments. There is no
// cancellation: a request that never gets fulfilled stays pending forever and
// is surfaced as "pending_indefinitely" once stallAfter has elapsed. The pool
// service serializes all access.
type Gateway struct {
	dispatcher Dispatcher
	clock      func() time.Time
	stallAfter time.Duration
	requests   map[string]*pendingRequest
	lastID     string
}

// NewGateway creates a gateway. stallAfter controls when an unfulfilled
// request is reported as stalled; zero disables stall detection.
func NewGateway(dispatcher Dispatcher, clock func() time.Time, stallAfter time.Duration) *Gateway {
	return &Gateway{
		dispatcher: dispatcher,
		clock:      clock,
		stallAfter: stallAfter,
		requests:   make(map[string]*pendingRequest),
	}
}

// RequestReport dispatches a volume-report request with the fixed query and
// returns the opaque request ID. No other local state changes.
func (g *Gateway) RequestReport(ctx context.Context) (string, error) {
	id := uuid.New().String()
	req := Request{
		ID:    id,
		URL:   SourceURL,
		Path:  FieldPath,
		Times: ScaleFactor,
	}

	if err := g.dispatcher.Dispatch(ctx, req); err != nil {
		return "", fmt.Errorf("oracle: dispatch failed: %w", err)
	}

	g.requests[id] = &pendingRequest{issuedAt: g.clock()}
	g.lastID = id
	return id, nil
}

// Validate reports whether the request can still be fulfilled, without
// consuming it. Lets the caller run its own guards between validation and the
// actual fulfillment.
func (g *Gateway) Validate(requestID string) error {
	req, ok := g.requests[requestID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}
	if req.fulfilled {
		return fmt.Errorf("%w: %s", ErrDuplicateFulfillment, requestID)
	}
	return nil
}

// Fulfill consumes an inbound fulfillment. The gateway only checks request
// integrity; the caller applies the value to the pool.
func (g *Gateway) Fulfill(requestID string) error {
	if err := g.Validate(requestID); err != nil {
		return err
	}
	g.requests[requestID].fulfilled = true
	return nil
}

// Status reports the lifecycle state of the most recently issued request.
func (g *Gateway) Status() string {
	if g.lastID == "" {
		return StatusIdle
	}
	req := g.requests[g.lastID]
	if req.fulfilled {
		return StatusFulfilled
	}
	if g.stallAfter > 0 && g.clock().Sub(req.issuedAt) > g.stallAfter {
		return StatusPendingIndefinitely
	}
	return StatusPending
}

// Restore re-registers a request during event-log replay.
func (g *Gateway) Restore(requestID string, fulfilled bool) {
	g.requests[requestID] = &pendingRequest{issuedAt: g.clock(), fulfilled: fulfilled}
	g.lastID = requestID
}
