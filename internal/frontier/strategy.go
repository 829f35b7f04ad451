package frontier

import (
	"container/heap"
	"net/url"

	"github.com/foofork/riptide/internal/model"
)

// item is the unit every strategy queue holds: enough to reconstruct a
// model.CrawlRequest plus the bookkeeping each strategy's ordering needs.
type item struct {
	url            url.URL
	depth          int
	priority       float64
	source         model.DiscoverySource
	anchorText     string
	discoveryOrder uint64
}

// bestFirstHeap is a max-heap on priority, tie-broken by the lowest
// discoveryOrder (earliest-discovered wins ties), satisfying
// container/heap.Interface.
type bestFirstHeap []item

func (h bestFirstHeap) Len() int { return len(h) }
func (h bestFirstHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].discoveryOrder < h[j].discoveryOrder
}
func (h bestFirstHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *bestFirstHeap) Push(x any)   { *h = append(*h, x.(item)) }
func (h *bestFirstHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// orderedQueue is the strategy-agnostic interface the Frontier dequeues
// through; each Strategy variant (BFS/DFS/BestFirst) implements it with
// the data structure matching its ordering guarantee.
type orderedQueue interface {
	push(it item)
	pop() (item, bool)
	len() int
}

// bfsQueue is plain FIFO: depth-level ordering falls out for free,
// because children are only ever pushed after their parent is dequeued.
type bfsQueue struct{ q FIFOQueue[item] }

func newBFSQueue() *bfsQueue { return &bfsQueue{q: *NewFIFOQueue[item]()} }
func (b *bfsQueue) push(it item)     { b.q.Enqueue(it) }
func (b *bfsQueue) pop() (item, bool) { return b.q.Dequeue() }
func (b *bfsQueue) len() int          { return b.q.Size() }

// dfsStack is LIFO: the most recently discovered URL is dequeued next,
// reverse-discovery-order tie-break falls out of stack semantics.
type dfsStack struct{ items []item }

func newDFSStack() *dfsStack { return &dfsStack{} }
func (d *dfsStack) push(it item) { d.items = append(d.items, it) }
func (d *dfsStack) pop() (item, bool) {
	if len(d.items) == 0 {
		var zero item
		return zero, false
	}
	n := len(d.items)
	it := d.items[n-1]
	d.items = d.items[:n-1]
	return it, true
}
func (d *dfsStack) len() int { return len(d.items) }

// bestFirstQueue wraps container/heap's max-heap by priority score.
type bestFirstQueue struct{ h bestFirstHeap }

func newBestFirstQueue() *bestFirstQueue {
	q := &bestFirstQueue{}
	heap.Init(&q.h)
	return q
}
func (q *bestFirstQueue) push(it item) { heap.Push(&q.h, it) }
func (q *bestFirstQueue) pop() (item, bool) {
	if q.h.Len() == 0 {
		var zero item
		return zero, false
	}
	return heap.Pop(&q.h).(item), true
}
func (q *bestFirstQueue) len() int { return q.h.Len() }
