// Package engine orchestrates the order lifecycle: placing an order locks the
// maker's assets in escrow, fills debit that escrow with deterministic fee
// splitting, and cancellation returns whatever remains. One call matches one
// resting maker order against one implicit taker; resting orders are never
// crossed against each other.
package engine

import (
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/creditbook/pkg/assets"
	"github.com/uhyunpark/creditbook/pkg/auth"
	"github.com/uhyunpark/creditbook/pkg/core/book"
	"github.com/uhyunpark/creditbook/pkg/core/escrow"
	"github.com/uhyunpark/creditbook/pkg/core/fee"
	"github.com/uhyunpark/creditbook/pkg/core/order"
	"github.com/uhyunpark/creditbook/pkg/core/trade"
	"github.com/uhyunpark/creditbook/pkg/util"
)

// Config carries the engine's admin state at construction
type Config struct {
	FeeBps       int64          // platform fee in basis points
	MaxFeeBps    int64          // cap enforced by SetFeeBps
	FeeRecipient common.Address // receives the platform cut; zero leaves it in custody
}

// Engine is one independent matching instance. All mutating operations
// (PlaceOrder, CancelOrder, FillOrder, and the admin setters) run under a
// single write guard held across bookkeeping and asset transfers, so no
// interleaved call ever observes intermediate state. Reads go to the
// component stores, which only ever hold committed state.
type Engine struct {
	mu sync.RWMutex

	store   *order.Store
	ledger  *escrow.Ledger
	gateway *assets.Gateway
	index   *book.Index
	journal *trade.Journal
	access  auth.AccessControl
	clock   util.Clock
	log     *zap.SugaredLogger

	feeBps       int64
	maxFeeBps    int64
	feeRecipient common.Address
	paused       bool

	onFill func(*trade.Trade)
}

// New wires the engine's components and replays the order store into the
// discovery index and escrow ledger, so a restart presents the same reads
// and cancellation behavior as the process that wrote the orders.
func New(store *order.Store, ledger *escrow.Ledger, gateway *assets.Gateway,
	index *book.Index, journal *trade.Journal, access auth.AccessControl,
	clock util.Clock, log *zap.SugaredLogger, cfg Config) (*Engine, error) {
	e := &Engine{
		store:        store,
		ledger:       ledger,
		gateway:      gateway,
		index:        index,
		journal:      journal,
		access:       access,
		clock:        clock,
		log:          log,
		feeBps:       cfg.FeeBps,
		maxFeeBps:    cfg.MaxFeeBps,
		feeRecipient: cfg.FeeRecipient,
	}
	if err := e.replayStore(); err != nil {
		return nil, err
	}
	return e, nil
}

// replayStore rebuilds the discovery index from every stored order and
// reinstates escrow records for the still-active ones. The locked assets are
// already in custody from the original placement, so the ledger is restored
// without moving anything: buy orders hold price * remaining stablecoin,
// sell orders hold the remaining credit units.
func (e *Engine) replayStore() error {
	count := e.store.Count()
	if count == 0 {
		return nil
	}

	for _, o := range e.store.Scan(1, count) {
		e.index.Add(o.Class, o.Side, o.Price, o.ID)

		if !e.store.IsActive(o.ID) {
			continue
		}
		locked := o.Remaining()
		if o.Side == order.Buy {
			locked = o.Notional(o.Remaining())
		}
		if err := e.ledger.Restore(o.ID, o.Maker, o.Class, o.Side, locked); err != nil {
			return fmt.Errorf("restoring escrow for order %d: %w", o.ID, err)
		}
	}
	return nil
}

// SetOnFill registers a hook invoked after each committed fill (trade feed).
// Call before the engine starts serving.
func (e *Engine) SetOnFill(fn func(*trade.Trade)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onFill = fn
}

// PlaceOrder validates the order, locks the maker's escrow through the
// gateway, and commits the record as one atomic unit. A buy locks
// price*amount stablecoin, a sell locks amount credit units. If the escrow
// transfer fails, nothing is recorded.
func (e *Engine) PlaceOrder(maker common.Address, class order.ClassID, side order.Side,
	price, amount, expiration, minAmountOut int64, referrer common.Address) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return 0, ErrPaused
	}
	if price <= 0 {
		return 0, fmt.Errorf("%w: price must be positive, got %d", ErrInvalidInput, price)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidInput, amount)
	}
	if side != order.Buy && side != order.Sell {
		return 0, fmt.Errorf("%w: unknown side %d", ErrInvalidInput, side)
	}
	if amount > math.MaxInt64/price {
		return 0, fmt.Errorf("%w: notional %d * %d overflows", ErrInvalidInput, price, amount)
	}

	ord := &order.Order{
		Maker:        maker,
		Class:        class,
		Side:         side,
		Price:        price,
		Total:        amount,
		CreatedAt:    e.clock.Now().Unix(),
		Expiration:   expiration,
		MinAmountOut: minAmountOut,
		Referrer:     referrer,
	}

	// Reserve the id the store will assign, lock escrow against it, then
	// commit. Nothing else can interleave while the guard is held.
	id := e.store.NextID()

	var lockErr error
	if side == order.Buy {
		lockErr = e.ledger.LockForBuy(id, maker, class, price*amount)
	} else {
		lockErr = e.ledger.LockForSell(id, maker, class, amount)
	}
	if lockErr != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransferFailed, lockErr)
	}

	assigned, err := e.store.Append(ord)
	if err != nil {
		// Undo the lock so the maker's funds are not stranded.
		if relErr := e.ledger.Release(id); relErr != nil {
			e.log.Errorw("escrow unwind failed", "order_id", id, "err", relErr)
		}
		return 0, fmt.Errorf("failed to store order: %w", err)
	}
	if assigned != id {
		return 0, fmt.Errorf("id drift: reserved %d, stored %d", id, assigned)
	}

	e.index.Add(class, side, price, id)

	e.log.Infow("order_placed",
		"order_id", id, "maker", maker.Hex(), "class", class,
		"side", side.String(), "price", price, "amount", amount,
		"expiration", expiration)
	return id, nil
}

// CancelOrder flips the order inactive and returns all remaining escrow to
// the maker. Only the maker or a manager may cancel. There is no partial
// cancellation, and cancellation stays available while trading is paused so
// makers can always recover escrow during a halt.
func (e *Engine) CancelOrder(orderID uint64, caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ord, ok := e.store.Get(orderID)
	if !ok {
		return fmt.Errorf("%w: unknown order %d", ErrOrderNotActive, orderID)
	}
	if !e.store.IsActive(orderID) {
		if ord.Filled == ord.Total {
			return fmt.Errorf("%w: order %d", ErrAlreadyFilled, orderID)
		}
		return fmt.Errorf("%w: order %d", ErrOrderNotActive, orderID)
	}
	if caller != ord.Maker && !e.access.HasCapability(caller, auth.CapManager) {
		return fmt.Errorf("%w: %s cannot cancel order %d", ErrNotAuthorized, caller.Hex(), orderID)
	}

	// Flag flips before release: the one-way transition is what makes a
	// second cancel fail instead of re-releasing funds.
	if err := e.store.Deactivate(orderID); err != nil {
		return fmt.Errorf("%w: order %d", ErrOrderNotActive, orderID)
	}
	refund := e.ledger.LockedByOrder(orderID)
	if err := e.ledger.Release(orderID); err != nil {
		// Put the flag back so the cancel stays retryable; otherwise the
		// remaining escrow would be unreachable.
		if rerr := e.store.Reactivate(orderID); rerr != nil {
			e.log.Errorw("reactivate after failed release", "order_id", orderID, "err", rerr)
		}
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	e.log.Infow("order_cancelled",
		"order_id", orderID, "caller", caller.Hex(), "refund", refund)
	return nil
}

// FillOrder matches fillAmount credit units against a resting order. The
// taker side is implicit: for a Buy maker the taker delivers credits and is
// paid net stablecoin from the maker's escrow; for a Sell maker the taker
// pays gross stablecoin and receives credits from escrow. Fees come out of
// the gross trade value in both branches.
//
// Expiry is checked lazily, only here: an expired order stays active and
// keeps its escrow until cancelled, it just cannot be filled.
func (e *Engine) FillOrder(orderID uint64, fillAmount int64, taker common.Address) (*trade.Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return nil, ErrPaused
	}

	ord, ok := e.store.Get(orderID)
	if !ok || !e.store.IsActive(orderID) {
		return nil, fmt.Errorf("%w: order %d", ErrOrderNotActive, orderID)
	}

	now := e.clock.Now().Unix()
	if ord.Expired(now) {
		return nil, fmt.Errorf("%w: order %d expired at %d", ErrOrderExpired, orderID, ord.Expiration)
	}
	if fillAmount <= 0 {
		return nil, fmt.Errorf("%w: fill amount must be positive, got %d", ErrInvalidInput, fillAmount)
	}
	if fillAmount > ord.Remaining() {
		return nil, fmt.Errorf("%w: fill %d, remaining %d", ErrFillExceedsRemaining, fillAmount, ord.Remaining())
	}

	gross := ord.Notional(fillAmount)
	split := fee.Compute(gross, e.feeBps, ord.HasReferrer())

	if ord.Side == order.Buy {
		// Taker delivers credits straight to the maker; payouts below come
		// from the maker's escrowed stablecoin, so only this pull can fail.
		if err := e.gateway.MoveCredits(taker, ord.Maker, ord.Class, fillAmount); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		if err := e.payoutStable(taker, split); err != nil {
			return nil, err
		}
		if err := e.payReferrer(ord.Referrer, split.Referrer); err != nil {
			return nil, err
		}
		// Escrow decrements by the gross value: fees are carved out of the
		// same locked pool, not accounted separately.
		if err := e.ledger.DebitForFill(orderID, gross); err != nil {
			return nil, fmt.Errorf("escrow debit for order %d: %w", orderID, err)
		}
	} else {
		// Taker pays the gross value in; fees and net go out of that inflow,
		// credits leave escrow.
		if err := e.gateway.PullStable(taker, gross); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		if err := e.payoutStable(ord.Maker, split); err != nil {
			return nil, err
		}
		if err := e.payReferrer(ord.Referrer, split.Referrer); err != nil {
			return nil, err
		}
		if err := e.gateway.PayCredits(taker, ord.Class, fillAmount); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		if err := e.ledger.DebitForFill(orderID, fillAmount); err != nil {
			return nil, fmt.Errorf("escrow debit for order %d: %w", orderID, err)
		}
	}

	full, err := e.store.AddFill(orderID, fillAmount)
	if err != nil {
		return nil, fmt.Errorf("recording fill for order %d: %w", orderID, err)
	}

	t := &trade.Trade{
		OrderID:     orderID,
		Class:       ord.Class,
		MakerSide:   ord.Side,
		Maker:       ord.Maker,
		Taker:       taker,
		Price:       ord.Price,
		Qty:         fillAmount,
		Gross:       gross,
		PlatformFee: split.Platform,
		ReferrerFee: split.Referrer,
		Net:         split.Net,
		Timestamp:   now,
	}
	if err := e.journal.Append(t); err != nil {
		e.log.Errorw("trade journal append failed", "order_id", orderID, "err", err)
	}
	if e.onFill != nil {
		e.onFill(t)
	}

	e.log.Infow("order_filled",
		"order_id", orderID, "taker", taker.Hex(), "qty", fillAmount,
		"gross", gross, "platform_fee", split.Platform,
		"referrer_fee", split.Referrer, "net", split.Net, "full", full)
	return t, nil
}

// payoutStable pays the net to its recipient and the platform cut to the fee
// recipient. An unset fee recipient leaves the platform cut in custody.
func (e *Engine) payoutStable(netTo common.Address, split fee.Split) error {
	if split.Net > 0 {
		if err := e.gateway.PayStable(netTo, split.Net); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	if split.Platform > 0 && e.feeRecipient != (common.Address{}) {
		if err := e.gateway.PayStable(e.feeRecipient, split.Platform); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	return nil
}

func (e *Engine) payReferrer(referrer common.Address, amount int64) error {
	if amount <= 0 || referrer == (common.Address{}) {
		return nil
	}
	if err := e.gateway.PayStable(referrer, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

// ==============================
// Read accessors
// ==============================

// GetOrder returns a copy of the order record
func (e *Engine) GetOrder(id uint64) (order.Order, bool) {
	return e.store.Get(id)
}

// IsActive returns the order's one-way active flag
func (e *Engine) IsActive(id uint64) bool {
	return e.store.IsActive(id)
}

// NextOrderID returns the id the next placed order will receive
func (e *Engine) NextOrderID() uint64 {
	return e.store.NextID()
}

// ScanOrders returns up to limit orders starting at id from
func (e *Engine) ScanOrders(from uint64, limit int) []order.Order {
	return e.store.Scan(from, limit)
}

// OrderEscrow returns the remaining locked amount for an order
func (e *Engine) OrderEscrow(id uint64) int64 {
	return e.ledger.LockedByOrder(id)
}

// StableLocked returns an account's aggregate escrowed stablecoin
func (e *Engine) StableLocked(acct common.Address) int64 {
	return e.ledger.StableLocked(acct)
}

// CreditsLocked returns an account's aggregate escrowed credits of a class
func (e *Engine) CreditsLocked(acct common.Address, class order.ClassID) int64 {
	return e.ledger.CreditsLocked(acct, class)
}

// Prices returns the discovery index's price list for a (class, side)
func (e *Engine) Prices(class order.ClassID, side order.Side) []int64 {
	return e.index.Prices(class, side)
}

// OrdersAt returns the discovery index's order ids at a price level
func (e *Engine) OrdersAt(class order.ClassID, side order.Side, price int64) []uint64 {
	return e.index.OrdersAt(class, side, price)
}

// BestBuy returns the highest buy price ever quoted for a class
func (e *Engine) BestBuy(class order.ClassID) (int64, bool) {
	return e.index.BestBuy(class)
}

// BestSell returns the lowest sell price ever quoted for a class
func (e *Engine) BestSell(class order.ClassID) (int64, bool) {
	return e.index.BestSell(class)
}

// RecentTrades returns the newest trades for a class
func (e *Engine) RecentTrades(class order.ClassID, limit int) ([]*trade.Trade, error) {
	return e.journal.Recent(class, limit)
}
