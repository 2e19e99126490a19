package assets

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/creditbook/pkg/core/order"
)

// SimCreditLedger is an in-memory multi-class credit ledger for dev mode and
// tests. Moving someone else's units requires operator approval, matching the
// approval model of the real credit asset system.
type SimCreditLedger struct {
	mu        sync.RWMutex
	balances  map[common.Address]map[order.ClassID]int64
	approvals map[common.Address]map[common.Address]bool // owner -> operator -> approved
}

func NewSimCreditLedger() *SimCreditLedger {
	return &SimCreditLedger{
		balances:  make(map[common.Address]map[order.ClassID]int64),
		approvals: make(map[common.Address]map[common.Address]bool),
	}
}

// Mint credits an account with freshly issued units of a class
func (l *SimCreditLedger) Mint(acct common.Address, class order.ClassID, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[acct] == nil {
		l.balances[acct] = make(map[order.ClassID]int64)
	}
	l.balances[acct][class] += amount
}

// SetApprovalForAll grants or revokes an operator over all of owner's classes
func (l *SimCreditLedger) SetApprovalForAll(owner, operator common.Address, approved bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.approvals[owner] == nil {
		l.approvals[owner] = make(map[common.Address]bool)
	}
	l.approvals[owner][operator] = approved
}

func (l *SimCreditLedger) IsApprovedForAll(owner, operator common.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.approvals[owner][operator]
}

func (l *SimCreditLedger) TransferFrom(operator, from, to common.Address, class order.ClassID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive: %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if operator != from && !l.approvals[from][operator] {
		return fmt.Errorf("%w: %s is not an operator for %s", ErrNotApproved, operator.Hex(), from.Hex())
	}

	have := l.balances[from][class]
	if have < amount {
		return fmt.Errorf("%w: %s has %d of class %d, need %d", ErrInsufficientBalance, from.Hex(), have, class, amount)
	}

	l.balances[from][class] = have - amount
	if l.balances[to] == nil {
		l.balances[to] = make(map[order.ClassID]int64)
	}
	l.balances[to][class] += amount
	return nil
}

func (l *SimCreditLedger) BalanceOf(acct common.Address, class order.ClassID) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[acct][class]
}

var _ CreditLedger = (*SimCreditLedger)(nil)
