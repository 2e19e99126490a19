package order

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
)

// Store owns the order records, their active flags, and the sequential id
// counter. Orders are never deleted: cancelled and filled orders stay
// readable so downstream consumers can rebuild books and trade history by
// scanning the id range.
//
// Uses in-memory maps + Pebble persistence for durability. Mutations are
// driven by the engine under its write guard; the Store's own lock keeps
// concurrent reads consistent.
type Store struct {
	mu     sync.RWMutex
	db     *pebble.DB
	orders map[uint64]*Order
	active map[uint64]bool
	nextID uint64 // next id to allocate, starts at 1
}

// NewStore opens a Pebble database at the given path and rebuilds the
// in-memory order state from it.
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(128 << 20), // 128MB cache
		MemTableSize:                64 << 20,                   // 64MB memtable
		MaxConcurrentCompactions:    func() int { return 3 },
		L0CompactionThreshold:       2,
		L0StopWritesThreshold:       12,
		LBaseMaxBytes:               64 << 20,
		MaxOpenFiles:                1000,
		BytesPerSync:                512 << 10,
		DisableAutomaticCompactions: false,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}

	s := &Store{
		db:     db,
		orders: make(map[uint64]*Order),
		active: make(map[uint64]bool),
		nextID: 1,
	}

	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// load rebuilds orders, active flags, and the id counter from Pebble
func (s *Store) load() error {
	prefix := []byte(prefixOrder)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to open order iterator: %w", err)
	}
	defer iter.Close()

	maxID := uint64(0)
	for iter.First(); iter.Valid(); iter.Next() {
		var o Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			return fmt.Errorf("corrupt order record at %s: %w", iter.Key(), err)
		}
		s.orders[o.ID] = &o
		if o.ID > maxID {
			maxID = o.ID
		}
	}

	for id := range s.orders {
		data, closer, err := s.db.Get(activeKey(id))
		if err == pebble.ErrNotFound {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read active flag for order %d: %w", id, err)
		}
		s.active[id] = len(data) == 1 && data[0] == 1
		closer.Close()
	}

	data, closer, err := s.db.Get([]byte(keyNextID))
	switch err {
	case nil:
		s.nextID = binary.BigEndian.Uint64(data)
		closer.Close()
	case pebble.ErrNotFound:
		s.nextID = maxID + 1
	default:
		return fmt.Errorf("failed to read id counter: %w", err)
	}

	return nil
}

// NextID returns the id the next appended order will receive. Pure read.
func (s *Store) NextID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID
}

// Append stores a new order, marks it active, and advances the id counter.
// The order's ID field is assigned here. Callers must have already moved the
// maker's assets into escrow: an order is only ever visible fully funded.
func (s *Store) Append(o *Order) (uint64, error) {
	if err := o.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	o.ID = id

	data, err := json.Marshal(o)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal order: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(orderKey(id), data, nil); err != nil {
		return 0, err
	}
	if err := batch.Set(activeKey(id), []byte{1}, nil); err != nil {
		return 0, err
	}
	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], id+1)
	if err := batch.Set([]byte(keyNextID), counter[:], nil); err != nil {
		return 0, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("failed to persist order %d: %w", id, err)
	}

	s.orders[id] = o
	s.active[id] = true
	s.nextID = id + 1
	return id, nil
}

// Get returns a copy of the order record. Pure read.
func (s *Store) Get(id uint64) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// IsActive returns the order's active flag. Pure read. Unknown ids are
// inactive.
func (s *Store) IsActive(id uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active[id]
}

// AddFill increments the order's filled amount and persists the record.
// When the order becomes fully filled its active flag flips to false in the
// same batch. Returns true if this fill completed the order.
func (s *Store) AddFill(id uint64, qty int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return false, fmt.Errorf("order not found: %d", id)
	}
	if qty <= 0 || qty > o.Total-o.Filled {
		return false, fmt.Errorf("fill %d outside remaining %d for order %d", qty, o.Total-o.Filled, id)
	}

	updated := *o
	updated.Filled += qty
	full := updated.Filled == updated.Total

	data, err := json.Marshal(&updated)
	if err != nil {
		return false, fmt.Errorf("failed to marshal order: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(orderKey(id), data, nil); err != nil {
		return false, err
	}
	if full {
		if err := batch.Set(activeKey(id), []byte{0}, nil); err != nil {
			return false, err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return false, fmt.Errorf("failed to persist fill for order %d: %w", id, err)
	}

	*o = updated
	if full {
		s.active[id] = false
	}
	return full, nil
}

// Deactivate flips the active flag false. The transition is one-way: flipping
// an already inactive order is an error, which is what makes release paths
// single-shot.
func (s *Store) Deactivate(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active[id] {
		return fmt.Errorf("order %d is not active", id)
	}

	if err := s.db.Set(activeKey(id), []byte{0}, pebble.Sync); err != nil {
		return fmt.Errorf("failed to persist active flag for order %d: %w", id, err)
	}
	s.active[id] = false
	return nil
}

// Reactivate undoes a Deactivate whose follow-up escrow release failed, so
// the maker can retry the cancel once the transfer path recovers. Never
// valid for a fully filled order; those are terminal.
func (s *Store) Reactivate(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return fmt.Errorf("order not found: %d", id)
	}
	if s.active[id] {
		return fmt.Errorf("order %d is already active", id)
	}
	if o.Filled == o.Total {
		return fmt.Errorf("order %d is fully filled", id)
	}

	if err := s.db.Set(activeKey(id), []byte{1}, pebble.Sync); err != nil {
		return fmt.Errorf("failed to persist active flag for order %d: %w", id, err)
	}
	s.active[id] = true
	return nil
}

// Scan returns up to limit orders with id >= from, in id order. Pure read;
// used by the bulk accessors so consumers can walk the whole history.
func (s *Store) Scan(from uint64, limit int) []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if from == 0 {
		from = 1
	}
	var out []Order
	for id := from; id < s.nextID && len(out) < limit; id++ {
		if o, ok := s.orders[id]; ok {
			out = append(out, *o)
		}
	}
	return out
}

// Count returns the number of stored orders. Pure read.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}
