package escrow

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/creditbook/pkg/assets"
	"github.com/uhyunpark/creditbook/pkg/core/order"
)

var (
	custody = common.HexToAddress("0xc0")
	maker   = common.HexToAddress("0xaa")
)

func newTestLedger(t *testing.T) (*Ledger, *assets.SimStablecoin, *assets.SimCreditLedger) {
	t.Helper()
	stable := assets.NewSimStablecoin(6)
	credits := assets.NewSimCreditLedger()
	gw := assets.NewGateway(stable, credits, custody)

	stable.Mint(maker, 10000)
	stable.Approve(maker, custody, 10000)
	credits.Mint(maker, 1, 500)
	credits.SetApprovalForAll(maker, custody, true)

	return NewLedger(gw), stable, credits
}

func TestLedger_LockForBuy(t *testing.T) {
	l, stable, _ := newTestLedger(t)

	if err := l.LockForBuy(1, maker, 1, 4000); err != nil {
		t.Fatalf("LockForBuy: %v", err)
	}

	if got := stable.BalanceOf(maker); got != 6000 {
		t.Errorf("maker balance = %d, want 6000", got)
	}
	if got := stable.BalanceOf(custody); got != 4000 {
		t.Errorf("custody balance = %d, want 4000", got)
	}
	if got := l.LockedByOrder(1); got != 4000 {
		t.Errorf("LockedByOrder = %d, want 4000", got)
	}
	if got := l.StableLocked(maker); got != 4000 {
		t.Errorf("StableLocked = %d, want 4000", got)
	}

	// Second lock against the same order must fail
	if err := l.LockForBuy(1, maker, 1, 100); err == nil {
		t.Error("duplicate LockForBuy succeeded")
	}
}

func TestLedger_LockForSell(t *testing.T) {
	l, _, credits := newTestLedger(t)

	if err := l.LockForSell(2, maker, 1, 300); err != nil {
		t.Fatalf("LockForSell: %v", err)
	}

	if got := credits.BalanceOf(maker, 1); got != 200 {
		t.Errorf("maker credits = %d, want 200", got)
	}
	if got := credits.BalanceOf(custody, 1); got != 300 {
		t.Errorf("custody credits = %d, want 300", got)
	}
	if got := l.CreditsLocked(maker, 1); got != 300 {
		t.Errorf("CreditsLocked = %d, want 300", got)
	}
}

func TestLedger_FailedLockLeavesNoState(t *testing.T) {
	l, stable, _ := newTestLedger(t)

	// More than the maker holds
	if err := l.LockForBuy(1, maker, 1, 99999); err == nil {
		t.Fatal("LockForBuy succeeded beyond balance")
	}

	if got := stable.BalanceOf(maker); got != 10000 {
		t.Errorf("maker balance changed on failed lock: %d", got)
	}
	if got := l.LockedByOrder(1); got != 0 {
		t.Errorf("failed lock left a record of %d", got)
	}
	if got := l.StableLocked(maker); got != 0 {
		t.Errorf("failed lock left aggregate of %d", got)
	}

	// The slot is still usable afterwards
	if err := l.LockForBuy(1, maker, 1, 100); err != nil {
		t.Errorf("LockForBuy after failed attempt: %v", err)
	}
}

func TestLedger_DebitForFill(t *testing.T) {
	l, _, _ := newTestLedger(t)

	if err := l.LockForBuy(1, maker, 1, 1000); err != nil {
		t.Fatalf("LockForBuy: %v", err)
	}

	if err := l.DebitForFill(1, 400); err != nil {
		t.Fatalf("DebitForFill(400): %v", err)
	}
	if got := l.LockedByOrder(1); got != 600 {
		t.Errorf("LockedByOrder after debit = %d, want 600", got)
	}
	if got := l.StableLocked(maker); got != 600 {
		t.Errorf("StableLocked after debit = %d, want 600", got)
	}

	// Debit beyond the lock fails
	if err := l.DebitForFill(1, 601); err == nil {
		t.Error("DebitForFill beyond lock succeeded")
	}

	// Draining the lock removes the record
	if err := l.DebitForFill(1, 600); err != nil {
		t.Fatalf("DebitForFill(600): %v", err)
	}
	if _, ok := l.OrderRecord(1); ok {
		t.Error("record still present after full drain")
	}
	if err := l.DebitForFill(1, 1); err == nil {
		t.Error("DebitForFill on drained order succeeded")
	}
}

func TestLedger_Release(t *testing.T) {
	l, stable, _ := newTestLedger(t)

	if err := l.LockForBuy(1, maker, 1, 1000); err != nil {
		t.Fatalf("LockForBuy: %v", err)
	}
	if err := l.DebitForFill(1, 300); err != nil {
		t.Fatalf("DebitForFill: %v", err)
	}

	if err := l.Release(1); err != nil {
		t.Fatalf("Release: %v", err)
	}

	// 300 spent, 700 refunded
	if got := stable.BalanceOf(maker); got != 9700 {
		t.Errorf("maker balance after release = %d, want 9700", got)
	}
	if got := l.StableLocked(maker); got != 0 {
		t.Errorf("StableLocked after release = %d, want 0", got)
	}

	// Release is single-shot
	if err := l.Release(1); err == nil {
		t.Error("second Release succeeded")
	}
}

func TestLedger_ReleaseSell(t *testing.T) {
	l, _, credits := newTestLedger(t)

	if err := l.LockForSell(5, maker, 1, 200); err != nil {
		t.Fatalf("LockForSell: %v", err)
	}
	if err := l.Release(5); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := credits.BalanceOf(maker, 1); got != 500 {
		t.Errorf("maker credits after release = %d, want 500", got)
	}
	if got := l.CreditsLocked(maker, 1); got != 0 {
		t.Errorf("CreditsLocked after release = %d, want 0", got)
	}
}

func TestLedger_RestoreSkipsGateway(t *testing.T) {
	l, stable, _ := newTestLedger(t)

	// Assets already in custody from a previous process
	stable.Mint(custody, 700)

	if err := l.Restore(1, maker, 1, order.Buy, 700); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	// No transfer happened; only the bookkeeping came back
	if got := stable.BalanceOf(maker); got != 10000 {
		t.Errorf("maker balance after restore = %d, want 10000", got)
	}
	if got := l.LockedByOrder(1); got != 700 {
		t.Errorf("LockedByOrder = %d, want 700", got)
	}
	if got := l.StableLocked(maker); got != 700 {
		t.Errorf("StableLocked = %d, want 700", got)
	}

	if err := l.Restore(1, maker, 1, order.Buy, 700); err == nil {
		t.Error("duplicate Restore succeeded")
	}

	// Restored locks release like any other
	if err := l.Release(1); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := stable.BalanceOf(maker); got != 10700 {
		t.Errorf("maker balance after release = %d, want 10700", got)
	}
}

func TestLedger_AggregatesAcrossOrders(t *testing.T) {
	l, _, _ := newTestLedger(t)

	if err := l.LockForBuy(1, maker, 1, 1000); err != nil {
		t.Fatalf("LockForBuy #1: %v", err)
	}
	if err := l.LockForBuy(2, maker, 2, 2000); err != nil {
		t.Fatalf("LockForBuy #2: %v", err)
	}

	if got := l.StableLocked(maker); got != 3000 {
		t.Errorf("StableLocked = %d, want 3000", got)
	}

	rec, ok := l.OrderRecord(2)
	if !ok {
		t.Fatal("missing record for order 2")
	}
	if rec.Class != 2 || rec.Side != order.Buy || rec.Amount != 2000 {
		t.Errorf("record = %+v", rec)
	}

	if err := l.Release(1); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := l.StableLocked(maker); got != 2000 {
		t.Errorf("StableLocked after one release = %d, want 2000", got)
	}
}
