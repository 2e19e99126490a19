package order

import "fmt"

// Pebble key schema. Order ids are zero-padded so a prefix scan over "ord:"
// yields records in id order, which is what the bulk read accessors iterate.

const (
	prefixOrder  = "ord:"
	prefixActive = "act:"
	keyNextID    = "meta:next_order_id"
)

// orderKey returns the key for an order record
// Format: "ord:{id}" with 20-digit zero padding
func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

// activeKey returns the key for an order's active flag
// Kept separate from the record so flag flips don't rewrite the snapshot
func activeKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixActive, id))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
