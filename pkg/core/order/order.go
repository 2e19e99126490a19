package order

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ClassID identifies a credit asset class on the multi-asset credit ledger
type ClassID uint64

type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Order is a resting limit order: a maker offers to buy or sell credit units
// against the stablecoin at a fixed price. Everything except Filled is an
// immutable snapshot taken at placement; the active flag lives in the Store.
type Order struct {
	ID    uint64         `json:"id"`
	Maker common.Address `json:"maker"`
	Class ClassID        `json:"class"`
	Side  Side           `json:"side"`

	Price  int64 `json:"price"`  // stablecoin smallest units per credit unit
	Total  int64 `json:"total"`  // credit units offered
	Filled int64 `json:"filled"` // credit units filled so far

	CreatedAt  int64 `json:"created_at"` // unix seconds
	Expiration int64 `json:"expiration"` // unix seconds, 0 = never expires

	// MinAmountOut is accepted and stored but not checked by any fill path.
	MinAmountOut int64 `json:"min_amount_out"`

	// Referrer receives a fixed share of the platform fee on each fill.
	// Zero address = no referrer.
	Referrer common.Address `json:"referrer"`
}

// Remaining returns unfilled credit units
func (o *Order) Remaining() int64 {
	return o.Total - o.Filled
}

// Notional returns the gross stablecoin value of qty units at the order price
func (o *Order) Notional(qty int64) int64 {
	return o.Price * qty
}

func (o *Order) HasReferrer() bool {
	return o.Referrer != (common.Address{})
}

// Expired reports whether the order can no longer be filled at time now.
// An expired order stays active and keeps its escrow until cancelled.
func (o *Order) Expired(now int64) bool {
	return o.Expiration != 0 && now > o.Expiration
}

// Validate checks order invariants
func (o *Order) Validate() error {
	if o.Price <= 0 {
		return fmt.Errorf("price must be positive: %d", o.Price)
	}
	if o.Total <= 0 {
		return fmt.Errorf("total amount must be positive: %d", o.Total)
	}
	if o.Filled < 0 || o.Filled > o.Total {
		return fmt.Errorf("filled %d outside [0, %d]", o.Filled, o.Total)
	}
	if o.Side != Buy && o.Side != Sell {
		return fmt.Errorf("invalid side: %d", o.Side)
	}
	return nil
}
