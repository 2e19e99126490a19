// Package escrow tracks what the engine holds in custody for each order and
// each account. A buy order locks stablecoin, a sell order locks credit
// units; never both. The sum of per-order locks for an account always equals
// that account's aggregate counter.
package escrow

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/creditbook/pkg/assets"
	"github.com/uhyunpark/creditbook/pkg/core/order"
)

// Record is the escrow state of one order: the remaining locked amount of
// exactly one asset (stablecoin for Buy makers, credits for Sell makers).
type Record struct {
	Maker  common.Address `json:"maker"`
	Class  order.ClassID  `json:"class"`
	Side   order.Side     `json:"side"`
	Amount int64          `json:"amount"` // remaining locked units
}

// Ledger mediates locking, partial debiting, and release of escrowed assets.
// Every lock is backed by a completed gateway transfer into custody; on
// transfer failure nothing is recorded.
type Ledger struct {
	mu      sync.RWMutex
	gateway *assets.Gateway

	records      map[uint64]*Record
	stableTotals map[common.Address]int64
	creditTotals map[common.Address]map[order.ClassID]int64
}

func NewLedger(gateway *assets.Gateway) *Ledger {
	return &Ledger{
		gateway:      gateway,
		records:      make(map[uint64]*Record),
		stableTotals: make(map[common.Address]int64),
		creditTotals: make(map[common.Address]map[order.ClassID]int64),
	}
}

// LockForBuy pulls amount stablecoin from the maker into custody and records
// the per-order lock. The gateway transfer happens first: if it fails, no
// state changes.
func (l *Ledger) LockForBuy(orderID uint64, maker common.Address, class order.ClassID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("lock amount must be positive: %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.records[orderID]; exists {
		return fmt.Errorf("order %d already has an escrow record", orderID)
	}

	if err := l.gateway.PullStable(maker, amount); err != nil {
		return err
	}

	l.records[orderID] = &Record{Maker: maker, Class: class, Side: order.Buy, Amount: amount}
	l.stableTotals[maker] += amount
	return nil
}

// LockForSell pulls amount credit units of class from the maker into custody
// and records the per-order lock. Symmetric with LockForBuy.
func (l *Ledger) LockForSell(orderID uint64, maker common.Address, class order.ClassID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("lock amount must be positive: %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.records[orderID]; exists {
		return fmt.Errorf("order %d already has an escrow record", orderID)
	}

	if err := l.gateway.PullCredits(maker, class, amount); err != nil {
		return err
	}

	l.records[orderID] = &Record{Maker: maker, Class: class, Side: order.Sell, Amount: amount}
	if l.creditTotals[maker] == nil {
		l.creditTotals[maker] = make(map[order.ClassID]int64)
	}
	l.creditTotals[maker][class] += amount
	return nil
}

// Restore reinstates a lock for assets that already sit in custody, without
// any gateway transfer. Used when rebuilding ledger state from the order
// store after a restart; the original lock moved the assets, so moving them
// again would double-charge the maker.
func (l *Ledger) Restore(orderID uint64, maker common.Address, class order.ClassID, side order.Side, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("restore amount must be positive: %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.records[orderID]; exists {
		return fmt.Errorf("order %d already has an escrow record", orderID)
	}

	l.records[orderID] = &Record{Maker: maker, Class: class, Side: side, Amount: amount}
	if side == order.Buy {
		l.stableTotals[maker] += amount
	} else {
		if l.creditTotals[maker] == nil {
			l.creditTotals[maker] = make(map[order.ClassID]int64)
		}
		l.creditTotals[maker][class] += amount
	}
	return nil
}

// DebitForFill reduces the per-order lock by the amount consumed in one fill:
// credit units for a Sell maker, gross stablecoin value for a Buy maker. The
// remainder stays locked for later fills. The record disappears when it
// reaches zero, which is when a final fill has drained it.
func (l *Ledger) DebitForFill(orderID uint64, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive: %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[orderID]
	if !ok {
		return fmt.Errorf("no escrow record for order %d", orderID)
	}
	if rec.Amount < amount {
		return fmt.Errorf("debit %d exceeds locked %d for order %d", amount, rec.Amount, orderID)
	}

	rec.Amount -= amount
	l.decrementTotalsLocked(rec, amount)

	if rec.Amount == 0 {
		delete(l.records, orderID)
	}
	return nil
}

// Release returns whatever remains locked for the order to its maker and
// zeroes the record. Callers must flip the order's active flag first so
// release can never run twice for the same order.
func (l *Ledger) Release(orderID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[orderID]
	if !ok {
		return fmt.Errorf("no escrow record for order %d", orderID)
	}

	if rec.Side == order.Buy {
		if err := l.gateway.PayStable(rec.Maker, rec.Amount); err != nil {
			return fmt.Errorf("escrow release for order %d: %w", orderID, err)
		}
	} else {
		if err := l.gateway.PayCredits(rec.Maker, rec.Class, rec.Amount); err != nil {
			return fmt.Errorf("escrow release for order %d: %w", orderID, err)
		}
	}

	l.decrementTotalsLocked(rec, rec.Amount)
	delete(l.records, orderID)
	return nil
}

// decrementTotalsLocked adjusts the maker's aggregate counter. Assumes lock held.
func (l *Ledger) decrementTotalsLocked(rec *Record, amount int64) {
	if rec.Side == order.Buy {
		l.stableTotals[rec.Maker] -= amount
		if l.stableTotals[rec.Maker] == 0 {
			delete(l.stableTotals, rec.Maker)
		}
		return
	}
	l.creditTotals[rec.Maker][rec.Class] -= amount
	if l.creditTotals[rec.Maker][rec.Class] == 0 {
		delete(l.creditTotals[rec.Maker], rec.Class)
	}
}

// LockedByOrder returns the remaining locked amount for an order. Pure read;
// zero for unknown or drained orders.
func (l *Ledger) LockedByOrder(orderID uint64) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[orderID]
	if !ok {
		return 0
	}
	return rec.Amount
}

// OrderRecord returns a copy of the escrow record for an order. Pure read.
func (l *Ledger) OrderRecord(orderID uint64) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[orderID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// StableLocked returns the account's aggregate locked stablecoin. Pure read.
func (l *Ledger) StableLocked(acct common.Address) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stableTotals[acct]
}

// CreditsLocked returns the account's aggregate locked credits of a class.
// Pure read.
func (l *Ledger) CreditsLocked(acct common.Address, class order.ClassID) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.creditTotals[acct][class]
}
