// Package assets abstracts the two external asset systems the engine settles
// against: a stablecoin ledger and a multi-class credit ledger. The engine
// never touches balances directly; every movement goes through the Gateway so
// escrow custody stays in one place.
package assets

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/creditbook/pkg/core/order"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrNotApproved           = errors.New("operator not approved")
)

// Stablecoin is the quote-side asset system. Transfers report insufficient
// balance/allowance as errors rather than failing silently.
type Stablecoin interface {
	// TransferFrom moves amount from from to to, spending the allowance from
	// granted to spender.
	TransferFrom(spender, from, to common.Address, amount int64) error
	// Transfer moves amount out of from's own balance.
	Transfer(from, to common.Address, amount int64) error
	BalanceOf(acct common.Address) int64
	Decimals() uint8
}

// CreditLedger is the base-side asset system, keyed by asset class. Pulling
// another account's credits requires operator approval.
type CreditLedger interface {
	TransferFrom(operator, from, to common.Address, class order.ClassID, amount int64) error
	BalanceOf(acct common.Address, class order.ClassID) int64
	IsApprovedForAll(owner, operator common.Address) bool
}

// Gateway mediates all asset movements for the engine. The custody address is
// the account that holds every escrowed unit; makers and takers must have
// approved it as spender/operator before their assets can be pulled.
type Gateway struct {
	stable  Stablecoin
	credits CreditLedger
	custody common.Address
}

func NewGateway(stable Stablecoin, credits CreditLedger, custody common.Address) *Gateway {
	return &Gateway{stable: stable, credits: credits, custody: custody}
}

// Custody returns the engine's custody account
func (g *Gateway) Custody() common.Address {
	return g.custody
}

// PullStable moves stablecoin from an account into custody
func (g *Gateway) PullStable(from common.Address, amount int64) error {
	return g.stable.TransferFrom(g.custody, from, g.custody, amount)
}

// PayStable moves stablecoin out of custody
func (g *Gateway) PayStable(to common.Address, amount int64) error {
	return g.stable.Transfer(g.custody, to, amount)
}

// PullCredits moves credit units from an account into custody
func (g *Gateway) PullCredits(from common.Address, class order.ClassID, amount int64) error {
	return g.credits.TransferFrom(g.custody, from, g.custody, class, amount)
}

// PayCredits moves credit units out of custody
func (g *Gateway) PayCredits(to common.Address, class order.ClassID, amount int64) error {
	return g.credits.TransferFrom(g.custody, g.custody, to, class, amount)
}

// MoveCredits moves credit units between two third-party accounts (taker
// paying a buy-side maker directly, no custody hop)
func (g *Gateway) MoveCredits(from, to common.Address, class order.ClassID, amount int64) error {
	return g.credits.TransferFrom(g.custody, from, to, class, amount)
}

func (g *Gateway) StableBalance(acct common.Address) int64 {
	return g.stable.BalanceOf(acct)
}

func (g *Gateway) CreditBalance(acct common.Address, class order.ClassID) int64 {
	return g.credits.BalanceOf(acct, class)
}
