// Package ttltracker implements the eager-TTL registry: a cell with an
// expire time is registered here while eager TTL is configured and the
// cell is live. A container/heap min-heap ordered by expiration time lets
// the sweeper expire entries without a full scan.
package ttltracker

import (
	"container/heap"
	"sync"
	"time"

	"github.com/shaj13/gridentry"
)

// trackedEntry is one registered cell plus its heap index.
type trackedEntry struct {
	cell     *gridentry.Cell
	expireAt int64
	index    int
}

type expiringHeap []*trackedEntry

func (h expiringHeap) Len() int           { return len(h) }
func (h expiringHeap) Less(i, j int) bool { return h[i].expireAt < h[j].expireAt }
func (h expiringHeap) Swap(i, j int) {
	h[i].index, h[j].index = h[j].index, h[i].index
	h[i], h[j] = h[j], h[i]
}
func (h *expiringHeap) Push(x any) {
	e := x.(*trackedEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *expiringHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Tracker is a concurrency-safe eager-TTL registry implementing
// gridentry.TTLTracker, plus a Sweep method a background janitor calls on
// a timer. Lazy expiry on access still applies; the sweeper only speeds
// up reclamation of idle keys.
type Tracker struct {
	mu      sync.Mutex
	heap    expiringHeap
	entries map[*gridentry.Cell]*trackedEntry
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{entries: make(map[*gridentry.Cell]*trackedEntry)}
}

// AddTrackedEntry implements gridentry.TTLTracker. Re-adding an already
// tracked cell updates its position instead of duplicating it.
func (t *Tracker) AddTrackedEntry(c *gridentry.Cell) {
	t.mu.Lock()
	defer t.mu.Unlock()

	exp := c.ExpireTime()
	if existing, ok := t.entries[c]; ok {
		existing.expireAt = exp
		heap.Fix(&t.heap, existing.index)
		return
	}
	e := &trackedEntry{cell: c, expireAt: exp}
	heap.Push(&t.heap, e)
	t.entries[c] = e
}

// RemoveTrackedEntry implements gridentry.TTLTracker.
func (t *Tracker) RemoveTrackedEntry(c *gridentry.Cell) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[c]
	if !ok {
		return
	}
	heap.Remove(&t.heap, e.index)
	delete(t.entries, c)
}

// Sweep pops every entry whose expire time has elapsed and invokes expire
// on each, matching onTTLExpired's obsoleteVer contract.
func (t *Tracker) Sweep(nextObsoleteVersion func() gridentry.Version, expire func(*gridentry.Cell, gridentry.Version)) {
	now := time.Now().UnixNano()
	for {
		t.mu.Lock()
		if t.heap.Len() == 0 || t.heap[0].expireAt > now {
			t.mu.Unlock()
			return
		}
		e := heap.Pop(&t.heap).(*trackedEntry)
		delete(t.entries, e.cell)
		t.mu.Unlock()

		expire(e.cell, nextObsoleteVersion())
	}
}

// Len reports how many cells are currently tracked.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
