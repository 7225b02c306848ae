// Package ledger implements per-participant balance accounting for custodied
// funds. The ledger is pure bookkeeping: phase gating lives in the pool
// service, fund custody lives behind the Transferer collaborator.
//
// All amounts use shopspring/decimal — never float64 for money.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrZeroAmount is returned when a deposit amount is not strictly positive.
	ErrZeroAmount = errors.New("ledger: deposit amount must be positive")

	// ErrInsufficientFunds is returned when a withdrawal is attempted with a
	// zero balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrTransferFailed is returned when the external transfer collaborator
	// reports failure. The participant's balance is left untouched.
	ErrTransferFailed = errors.New("ledger: external transfer failed")
)

// Transferer is the external fund-transfer collaborator. Implementations move
// real funds; the ledger only records the outcome.
type Transferer interface {
	Transfer(ctx context.Context, to string, amount decimal.Decimal) error
}

// Ledger tracks each participant's custodied balance. Participants are created
// implicitly on first deposit and never deleted; a zero balance is a valid
// terminal value. Not safe for concurrent use; the pool service serializes
// all access behind its own lock.
type Ledger struct {
	balances map[string]decimal.Decimal
	total    decimal.Decimal
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances: make(map[string]decimal.Decimal),
	}
}

// Deposit credits amount to the participant, creating the account if needed.
func (l *Ledger) Deposit(participant string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrZeroAmount, amount)
	}
	l.balances[participant] = l.balances[participant].Add(amount)
	l.total = l.total.Add(amount)
	return nil
}

// Withdraw transfers the participant's ENTIRE balance out through the
// transferer and returns the amount moved. The balance is zeroed only after
// the transfer reports success, so a failed transfer leaves the ledger
// unchanged.
func (l *Ledger) Withdraw(ctx context.Context, participant string, t Transferer) (decimal.Decimal, error) {
	balance := l.balances[participant]
	if !balance.IsPositive() {
		return decimal.Zero, ErrInsufficientFunds
	}

	if err := t.Transfer(ctx, participant, balance); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	l.balances[participant] = decimal.Zero
	l.total = l.total.Sub(balance)
	return balance, nil
}

// Debit removes amount from the participant without invoking an external
// transfer. Used by event-log replay and the owner sweep, where the transfer
// already happened (or happens in aggregate).
func (l *Ledger) Debit(participant string, amount decimal.Decimal) {
	l.balances[participant] = l.balances[participant].Sub(amount)
	l.total = l.total.Sub(amount)
}

// Balance returns the participant's current balance. Unknown participants have
// an implicit zero balance.
func (l *Ledger) Balance(participant string) decimal.Decimal {
	return l.balances[participant]
}

// Total returns the sum of all held balances.
func (l *Ledger) Total() decimal.Decimal {
	return l.total
}

// Participants returns the IDs of every account with a positive balance.
func (l *Ledger) Participants() []string {
	ids := make([]string, 0, len(l.balances))
	for id, bal := range l.balances {
		if bal.IsPositive() {
			ids = append(ids, id)
		}
	}
	return ids
}
