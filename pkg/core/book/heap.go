package book

// Price heaps back the O(1) best-quote reads. Buy side surfaces the highest
// price, sell side the lowest. Driven through container/heap; entries are
// only ever pushed, matching the append-only index.

type buySideHeap []int64

func (h buySideHeap) Len() int           { return len(h) }
func (h buySideHeap) Less(i, j int) bool { return h[i] > h[j] }
func (h buySideHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *buySideHeap) Push(x interface{}) {
	*h = append(*h, x.(int64))
}

func (h *buySideHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Peek returns the best buy price without removing it, zero when empty
func (h buySideHeap) Peek() int64 {
	if len(h) == 0 {
		return 0
	}
	return h[0]
}

type sellSideHeap []int64

func (h sellSideHeap) Len() int           { return len(h) }
func (h sellSideHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h sellSideHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *sellSideHeap) Push(x interface{}) {
	*h = append(*h, x.(int64))
}

func (h *sellSideHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Peek returns the best sell price without removing it, zero when empty
func (h sellSideHeap) Peek() int64 {
	if len(h) == 0 {
		return 0
	}
	return h[0]
}
