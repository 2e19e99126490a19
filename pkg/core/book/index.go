// Package book is the discovery index: an append-only record of the distinct
// prices ever quoted per asset class and the order ids placed at each price,
// in insertion order (time priority within a level). It is secondary and
// non-authoritative: fills address explicit order ids, and entries are never
// removed, so readers must check the order's active flag before treating an
// entry as live.
package book

import (
	"container/heap"
	"sync"

	"github.com/uhyunpark/creditbook/pkg/core/order"
)

type classIndex struct {
	buyHeap  *buySideHeap
	sellHeap *sellSideHeap

	// Distinct prices in first-seen order (append-only)
	buyPrices  []int64
	sellPrices []int64

	// price -> order ids in insertion order (append-only)
	buyLevels  map[int64][]uint64
	sellLevels map[int64][]uint64
}

func newClassIndex() *classIndex {
	buyHeap := &buySideHeap{}
	sellHeap := &sellSideHeap{}
	heap.Init(buyHeap)
	heap.Init(sellHeap)

	return &classIndex{
		buyHeap:    buyHeap,
		sellHeap:   sellHeap,
		buyLevels:  make(map[int64][]uint64),
		sellLevels: make(map[int64][]uint64),
	}
}

// Index holds discovery state for all asset classes
type Index struct {
	mu      sync.RWMutex
	classes map[order.ClassID]*classIndex
}

func NewIndex() *Index {
	return &Index{classes: make(map[order.ClassID]*classIndex)}
}

// Add records a newly placed order under its (class, side, price) level.
// First sighting of a price also registers it in the price list and heap.
func (ix *Index) Add(class order.ClassID, side order.Side, price int64, orderID uint64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ci, ok := ix.classes[class]
	if !ok {
		ci = newClassIndex()
		ix.classes[class] = ci
	}

	if side == order.Buy {
		if _, seen := ci.buyLevels[price]; !seen {
			ci.buyPrices = append(ci.buyPrices, price)
			heap.Push(ci.buyHeap, price)
		}
		ci.buyLevels[price] = append(ci.buyLevels[price], orderID)
		return
	}

	if _, seen := ci.sellLevels[price]; !seen {
		ci.sellPrices = append(ci.sellPrices, price)
		heap.Push(ci.sellHeap, price)
	}
	ci.sellLevels[price] = append(ci.sellLevels[price], orderID)
}

// Prices returns the distinct prices ever seen for a (class, side), in
// first-seen order
func (ix *Index) Prices(class order.ClassID, side order.Side) []int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ci, ok := ix.classes[class]
	if !ok {
		return nil
	}

	var src []int64
	if side == order.Buy {
		src = ci.buyPrices
	} else {
		src = ci.sellPrices
	}
	out := make([]int64, len(src))
	copy(out, src)
	return out
}

// OrdersAt returns the order ids ever placed at a (class, side, price) level,
// in insertion order. Ids may belong to filled, cancelled, or expired orders.
func (ix *Index) OrdersAt(class order.ClassID, side order.Side, price int64) []uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ci, ok := ix.classes[class]
	if !ok {
		return nil
	}

	var src []uint64
	if side == order.Buy {
		src = ci.buyLevels[price]
	} else {
		src = ci.sellLevels[price]
	}
	out := make([]uint64, len(src))
	copy(out, src)
	return out
}

// BestBuy returns the highest buy price ever quoted for a class (O(1) with
// heap). Like every index read, the level may hold only dead orders.
func (ix *Index) BestBuy(class order.ClassID) (int64, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ci, ok := ix.classes[class]
	if !ok || ci.buyHeap.Len() == 0 {
		return 0, false
	}
	return ci.buyHeap.Peek(), true
}

// BestSell returns the lowest sell price ever quoted for a class
func (ix *Index) BestSell(class order.ClassID) (int64, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ci, ok := ix.classes[class]
	if !ok || ci.sellHeap.Len() == 0 {
		return 0, false
	}
	return ci.sellHeap.Peek(), true
}

// Classes returns every asset class with at least one indexed order
func (ix *Index) Classes() []order.ClassID {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]order.ClassID, 0, len(ix.classes))
	for class := range ix.classes {
		out = append(out, class)
	}
	return out
}
