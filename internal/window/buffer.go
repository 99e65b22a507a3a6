// Package window implements the sliding history infodups' duplicate
// classifier scans backwards through: a doubly-linked list of reusable
// nodes backed by a growable arena, with per-worker position markers
// bounding how far back each worker still needs to look.
package window

import "sync"

// Node is one entry in the window. Its list links (prev/next) are owned
// by the Buffer's mutex; its in-use bitmask is owned by its own mutex,
// independent of the list lock, so workers can flip their bit without
// contending on list structure.
type Node[T any] struct {
	mu    sync.Mutex
	inUse uint64

	prev, next *Node[T]

	Load T
}

// Get returns the node's current load under the node's mutex. Classifier
// code that may race with Replace (the fragmentation "best representative"
// update) must read through Get rather than the Load field directly.
func (n *Node[T]) Get() T {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Load
}

// Replace atomically swaps the node's load for a new value. It never
// mutates the previous value in place, so any reader holding a pointer
// obtained from an earlier Get sees a consistent, immutable packet.
func (n *Node[T]) Replace(v T) {
	n.mu.Lock()
	n.Load = v
	n.mu.Unlock()
}

// InUse reports whether any worker still references this node.
func (n *Node[T]) InUse() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.inUse != 0
}

func (n *Node[T]) setBit(workerID int) {
	n.mu.Lock()
	n.inUse |= 1 << uint(workerID)
	n.mu.Unlock()
}

func (n *Node[T]) clearBit(workerID int) {
	n.mu.Lock()
	n.inUse &^= 1 << uint(workerID)
	n.mu.Unlock()
}

// Buffer is the window: an active doubly-linked list ordered by insertion
// (equivalently, by position), a free list of reclaimed nodes reused
// before any new allocation, and one marker per worker.
type Buffer[T any] struct {
	mu sync.Mutex

	arena []*Node[T]
	free  *Node[T]
	count int

	first, last *Node[T]

	maxCount int
	workers  int
	mark     []*Node[T]
}

// NewBuffer constructs a window sized for maxCount live nodes and the
// given number of workers (for single-threaded use, pass workers=1: the
// inline classifier still runs as worker id 0).
func NewBuffer[T any](workers, maxCount int) *Buffer[T] {
	if workers < 1 {
		workers = 1
	}
	return &Buffer[T]{
		maxCount: maxCount,
		workers:  workers,
		mark:     make([]*Node[T], workers),
	}
}

// NewNode returns a free node, pulled from the reuse list when available,
// else allocated from the arena. Allocation is therefore bounded to the
// high-water mark of live nodes.
func (b *Buffer[T]) NewNode() *Node[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.free != nil {
		n := b.free
		b.free = n.next
		n.prev, n.next = nil, nil
		n.inUse = 0
		var zero T
		n.Load = zero
		return n
	}

	n := &Node[T]{}
	b.arena = append(b.arena, n)
	return n
}

// Append inserts node at the tail of the active list. O(1).
func (b *Buffer[T]) Append(n *Node[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n.prev = b.last
	n.next = nil
	if b.last != nil {
		b.last.next = n
	} else {
		b.first = n
	}
	b.last = n
	b.count++
}

// Remove unlinks node from the active list and returns it to the free
// list. O(1).
func (b *Buffer[T]) Remove(n *Node[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove(n)
}

// remove must be called with b.mu held.
func (b *Buffer[T]) remove(n *Node[T]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		b.first = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		b.last = n.prev
	}
	n.prev = nil
	n.next = b.free
	b.free = n
	b.count--
}

// InitMarkers sets every worker's marker to node on ingest of the first
// packet, marking node in-use by all of them.
func (b *Buffer[T]) InitMarkers(n *Node[T]) {
	b.mu.Lock()
	for i := range b.mark {
		b.mark[i] = n
	}
	b.mu.Unlock()

	n.mu.Lock()
	for i := range b.mark {
		n.inUse |= 1 << uint(i)
	}
	n.mu.Unlock()
}

// SetMarker advances worker workerID's marker to node, clearing the bit
// on the previously-marked node only after setting it on the new one.
// Callers (the classifier) must only ever advance toward newer nodes;
// Buffer does not itself enforce monotonicity.
func (b *Buffer[T]) SetMarker(n *Node[T], workerID int) {
	b.mu.Lock()
	old := b.mark[workerID]
	b.mark[workerID] = n
	b.mu.Unlock()

	n.setBit(workerID)
	if old != nil && old != n {
		old.clearBit(workerID)
	}
}

// Mark returns worker workerID's current marker node.
func (b *Buffer[T]) Mark(workerID int) *Node[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mark[workerID]
}

// Trim removes the longest prefix of the active list, starting at the
// head, whose nodes have no worker bit set. It stops at the first
// still-referenced node. Safe to call concurrently with backward scans:
// a scan never walks past the oldest live marker, and trim never removes
// a node at or after that marker (such a node has a set bit by
// definition), so the two never touch the same node's links at once.
func (b *Buffer[T]) Trim() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for b.first != nil && !b.first.InUse() {
		b.remove(b.first)
		removed++
	}
	return removed
}

// Count returns the number of live nodes.
func (b *Buffer[T]) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// IsFull reports whether the window is at capacity.
func (b *Buffer[T]) IsFull() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxCount > 0 && b.count >= b.maxCount
}

// First returns the oldest live node, or nil if the window is empty.
func (b *Buffer[T]) First() *Node[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.first
}

// Prev returns n's predecessor in the active list. Callers must only call
// this on a node that is still within some worker's live window (see
// Trim's doc comment for why that makes the read race-free without a
// lock).
func (n *Node[T]) Prev() *Node[T] {
	return n.prev
}

// Allocated returns the number of nodes ever allocated from the arena
// (live + free), useful for the count+free=total invariant in tests.
func (b *Buffer[T]) Allocated() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.arena)
}
