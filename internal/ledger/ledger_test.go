package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/volbet/settlement-engine/internal/ledger"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// stubTransferer records transfers and can be told to fail.
type stubTransferer struct {
	fail  bool
	calls int
}

func (t *stubTransferer) Transfer(_ context.Context, _ string, _ decimal.Decimal) error {
	t.calls++
	if t.fail {
		return errors.New("payout service unavailable")
	}
	return nil
}

func TestDeposit_CreatesParticipantImplicitly(t *testing.T) {
	l := ledger.New()

	if err := l.Deposit("alice", d(100)); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	if !l.Balance("alice").Equal(d(100)) {
		t.Errorf("expected balance 100, got %s", l.Balance("alice"))
	}
	if !l.Total().Equal(d(100)) {
		t.Errorf("expected total 100, got %s", l.Total())
	}
}

func TestDeposit_ZeroAmountRejected(t *testing.T) {
	l := ledger.New()

	for _, amount := range []decimal.Decimal{decimal.Zero, d(-5)} {
		err := l.Deposit("alice", amount)
		if !errors.Is(err, ledger.ErrZeroAmount) {
			t.Errorf("amount %s: expected ErrZeroAmount, got %v", amount, err)
		}
	}
	if !l.Balance("alice").IsZero() {
		t.Errorf("balance should be unchanged, got %s", l.Balance("alice"))
	}
}

func TestWithdraw_TransfersEntireBalance(t *testing.T) {
	l := ledger.New()
	l.Deposit("alice", d(60))
	l.Deposit("alice", d(40))

	tr := &stubTransferer{}
	amount, err := l.Withdraw(context.Background(), "alice", tr)
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}

	if !amount.Equal(d(100)) {
		t.Errorf("expected withdrawal of 100, got %s", amount)
	}
	if !l.Balance("alice").IsZero() {
		t.Errorf("balance should be zero after withdrawal, got %s", l.Balance("alice"))
	}
	if tr.calls != 1 {
		t.Errorf("expected 1 transfer call, got %d", tr.calls)
	}
}

func TestWithdraw_ZeroBalanceRejected(t *testing.T) {
	l := ledger.New()

	_, err := l.Withdraw(context.Background(), "nobody", &stubTransferer{})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestWithdraw_FailedTransferKeepsBalance(t *testing.T) {
	l := ledger.New()
	l.Deposit("alice", d(100))

	_, err := l.Withdraw(context.Background(), "alice", &stubTransferer{fail: true})
	if !errors.Is(err, ledger.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}

	// Balance zeroed only after a successful transfer.
	if !l.Balance("alice").Equal(d(100)) {
		t.Errorf("balance should be unchanged after failed transfer, got %s", l.Balance("alice"))
	}
	if !l.Total().Equal(d(100)) {
		t.Errorf("total should be unchanged, got %s", l.Total())
	}
}

func TestConservation(t *testing.T) {
	// Across any sequence of deposits and withdrawals, the total equals
	// net deposits minus net withdrawals.
	l := ledger.New()
	tr := &stubTransferer{}
	ctx := context.Background()

	deposited := decimal.Zero
	withdrawn := decimal.Zero

	steps := []struct {
		participant string
		amount      float64 // 0 means withdraw
	}{
		{"alice", 100}, {"bob", 50}, {"carol", 75},
		{"alice", 0}, {"bob", 25}, {"alice", 10},
		{"carol", 0}, {"bob", 0},
	}

	for _, step := range steps {
		if step.amount > 0 {
			amt := d(step.amount)
			if err := l.Deposit(step.participant, amt); err != nil {
				t.Fatalf("deposit(%s, %s): %v", step.participant, amt, err)
			}
			deposited = deposited.Add(amt)
		} else {
			amt, err := l.Withdraw(ctx, step.participant, tr)
			if err != nil {
				t.Fatalf("withdraw(%s): %v", step.participant, err)
			}
			withdrawn = withdrawn.Add(amt)
		}
	}

	want := deposited.Sub(withdrawn)
	if !l.Total().Equal(want) {
		t.Errorf("conservation violated: total=%s, deposits-withdrawals=%s", l.Total(), want)
	}

	sum := decimal.Zero
	for _, p := range []string{"alice", "bob", "carol"} {
		sum = sum.Add(l.Balance(p))
	}
	if !sum.Equal(l.Total()) {
		t.Errorf("sum of balances %s != total %s", sum, l.Total())
	}
}

func TestParticipants_OnlyPositiveBalances(t *testing.T) {
	l := ledger.New()
	l.Deposit("alice", d(100))
	l.Deposit("bob", d(50))
	l.Withdraw(context.Background(), "bob", &stubTransferer{})

	got := l.Participants()
	if len(got) != 1 || got[0] != "alice" {
		t.Errorf("expected [alice], got %v", got)
	}
}
