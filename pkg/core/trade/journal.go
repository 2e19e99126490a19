// Package trade records executed fills for audit and history queries.
package trade

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/creditbook/pkg/core/order"
)

// Trade is one executed fill: a taker consuming part of a resting maker
// order, with the full fee breakdown.
type Trade struct {
	Seq     uint64        `json:"seq"`
	OrderID uint64        `json:"order_id"`
	Class   order.ClassID `json:"class"`

	MakerSide order.Side     `json:"maker_side"`
	Maker     common.Address `json:"maker"`
	Taker     common.Address `json:"taker"`

	Price int64 `json:"price"` // stablecoin units per credit unit
	Qty   int64 `json:"qty"`   // credit units filled
	Gross int64 `json:"gross"` // price * qty

	PlatformFee int64 `json:"platform_fee"`
	ReferrerFee int64 `json:"referrer_fee"`
	Net         int64 `json:"net"`

	Timestamp int64 `json:"timestamp"` // unix seconds
}

const (
	prefixTrade = "trade:"
	keyNextSeq  = "meta:next_trade_seq"
)

// tradeKey orders trades per class by timestamp then sequence
// Format: "trade:{class}:{timestamp:020d}:{seq:020d}"
func tradeKey(class order.ClassID, timestamp int64, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%d:%020d:%020d", prefixTrade, class, timestamp, seq))
}

func tradePrefix(class order.ClassID) []byte {
	return []byte(fmt.Sprintf("%s%d:", prefixTrade, class))
}

func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

// Journal is a pebble-backed append-only log of executed fills
type Journal struct {
	mu      sync.Mutex
	db      *pebble.DB
	nextSeq uint64
}

func NewJournal(dbPath string) (*Journal, error) {
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}

	j := &Journal{db: db, nextSeq: 1}

	data, closer, err := db.Get([]byte(keyNextSeq))
	switch err {
	case nil:
		j.nextSeq = binary.BigEndian.Uint64(data)
		closer.Close()
	case pebble.ErrNotFound:
	default:
		db.Close()
		return nil, fmt.Errorf("failed to read trade sequence: %w", err)
	}

	return j, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Append assigns the trade its sequence number and persists it. NoSync is
// fine here: the journal is audit history, not authoritative engine state.
func (j *Journal) Append(t *Trade) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	t.Seq = j.nextSeq

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal trade: %w", err)
	}

	batch := j.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(tradeKey(t.Class, t.Timestamp, t.Seq), data, nil); err != nil {
		return err
	}
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], t.Seq+1)
	if err := batch.Set([]byte(keyNextSeq), seq[:], nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("failed to persist trade %d: %w", t.Seq, err)
	}

	j.nextSeq = t.Seq + 1
	return nil
}

// Recent returns the most recent trades for a class, newest first
func (j *Journal) Recent(class order.ClassID, limit int) ([]*Trade, error) {
	prefix := tradePrefix(class)
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open trade iterator: %w", err)
	}
	defer iter.Close()

	var trades []*Trade
	for iter.Last(); iter.Valid() && len(trades) < limit; iter.Prev() {
		var t Trade
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			continue // Skip invalid entries
		}
		trades = append(trades, &t)
	}

	return trades, nil
}
