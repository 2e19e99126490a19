package assets

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// SimStablecoin is an in-memory stablecoin ledger for dev mode and tests.
// Balance and allowance checks mirror what the real asset system enforces.
type SimStablecoin struct {
	mu         sync.RWMutex
	balances   map[common.Address]int64
	allowances map[common.Address]map[common.Address]int64 // owner -> spender -> amount
	decimals   uint8
}

func NewSimStablecoin(decimals uint8) *SimStablecoin {
	return &SimStablecoin{
		balances:   make(map[common.Address]int64),
		allowances: make(map[common.Address]map[common.Address]int64),
		decimals:   decimals,
	}
}

// Mint credits an account with freshly issued units
func (s *SimStablecoin) Mint(acct common.Address, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[acct] += amount
}

// Approve grants spender the right to move up to amount of owner's balance
func (s *SimStablecoin) Approve(owner, spender common.Address, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allowances[owner] == nil {
		s.allowances[owner] = make(map[common.Address]int64)
	}
	s.allowances[owner][spender] = amount
}

func (s *SimStablecoin) Allowance(owner, spender common.Address) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowances[owner][spender]
}

func (s *SimStablecoin) TransferFrom(spender, from, to common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive: %d", amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if spender != from {
		allowed := s.allowances[from][spender]
		if allowed < amount {
			return fmt.Errorf("%w: %s allowed %d to %s, need %d",
				ErrInsufficientAllowance, from.Hex(), allowed, spender.Hex(), amount)
		}
	}
	if s.balances[from] < amount {
		return fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientBalance, from.Hex(), s.balances[from], amount)
	}

	if spender != from {
		s.allowances[from][spender] -= amount
	}
	s.balances[from] -= amount
	s.balances[to] += amount
	return nil
}

func (s *SimStablecoin) Transfer(from, to common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive: %d", amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.balances[from] < amount {
		return fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientBalance, from.Hex(), s.balances[from], amount)
	}

	s.balances[from] -= amount
	s.balances[to] += amount
	return nil
}

func (s *SimStablecoin) BalanceOf(acct common.Address) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[acct]
}

func (s *SimStablecoin) Decimals() uint8 {
	return s.decimals
}

var _ Stablecoin = (*SimStablecoin)(nil)
