package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/creditbook/pkg/auth"
)

// Admin setters share the engine's write guard with the trading operations,
// so a fee change never lands in the middle of a fill.

// SetFeeBps updates the platform fee rate. The cap lives here, not in the fee
// calculator.
func (e *Engine) SetFeeBps(caller common.Address, bps int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.access.HasCapability(caller, auth.CapManager) {
		return fmt.Errorf("%w: %s is not a manager", ErrNotAuthorized, caller.Hex())
	}
	if bps < 0 || bps > e.maxFeeBps {
		return fmt.Errorf("%w: fee %d bps outside [0, %d]", ErrInvalidInput, bps, e.maxFeeBps)
	}

	e.feeBps = bps
	e.log.Infow("fee_rate_updated", "caller", caller.Hex(), "fee_bps", bps)
	return nil
}

// SetFeeRecipient updates where the platform cut is paid
func (e *Engine) SetFeeRecipient(caller common.Address, recipient common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.access.HasCapability(caller, auth.CapManager) {
		return fmt.Errorf("%w: %s is not a manager", ErrNotAuthorized, caller.Hex())
	}

	e.feeRecipient = recipient
	e.log.Infow("fee_recipient_updated", "caller", caller.Hex(), "recipient", recipient.Hex())
	return nil
}

// Pause halts PlaceOrder and FillOrder. CancelOrder keeps working so resting
// makers can recover escrow during a halt.
func (e *Engine) Pause(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.access.HasCapability(caller, auth.CapManager) {
		return fmt.Errorf("%w: %s is not a manager", ErrNotAuthorized, caller.Hex())
	}

	e.paused = true
	e.log.Warnw("trading_paused", "caller", caller.Hex())
	return nil
}

// Unpause resumes trading
func (e *Engine) Unpause(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.access.HasCapability(caller, auth.CapManager) {
		return fmt.Errorf("%w: %s is not a manager", ErrNotAuthorized, caller.Hex())
	}

	e.paused = false
	e.log.Infow("trading_resumed", "caller", caller.Hex())
	return nil
}

// FeeBps returns the current platform fee rate
func (e *Engine) FeeBps() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.feeBps
}

// FeeRecipient returns the current platform fee recipient
func (e *Engine) FeeRecipient() common.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.feeRecipient
}

// Paused reports whether trading is halted
func (e *Engine) Paused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.paused
}
