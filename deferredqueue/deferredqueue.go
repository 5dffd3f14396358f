// Package deferredqueue parks logically removed cells as tombstones until
// a background sweep clears them from the owning map. A tombstone is
// never touched again before it is discarded, so the queue is a plain
// FIFO over a container/list.
package deferredqueue

import (
	"container/list"
	"sync"

	"github.com/shaj13/gridentry"
)

type tombstone struct {
	cell        *gridentry.Cell
	obsoleteVer gridentry.Version
}

// Queue is a concurrency-safe FIFO of tombstoned cells awaiting physical
// removal, implementing gridentry.DeferredDeleteQueue.
type Queue struct {
	mu     sync.Mutex
	ll     *list.List
	byCell map[*gridentry.Cell]*list.Element
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{ll: list.New(), byCell: make(map[*gridentry.Cell]*list.Element)}
}

// Enqueue implements gridentry.DeferredDeleteQueue: it parks c for later
// physical removal, once per cell, at the version that will be applied
// when the tombstone is swept.
func (q *Queue) Enqueue(c *gridentry.Cell, obsoleteVer gridentry.Version) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.byCell[c]; ok {
		return
	}
	e := q.ll.PushBack(tombstone{cell: c, obsoleteVer: obsoleteVer})
	q.byCell[c] = e
}

// Remove drops c from the queue without processing it, e.g. if the cell
// was revived by a racing put before the sweep reached it.
func (q *Queue) Remove(c *gridentry.Cell) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byCell[c]
	if !ok {
		return
	}
	q.ll.Remove(e)
	delete(q.byCell, c)
}

// Discard pops the oldest tombstone, or the zero value and false if the
// queue is empty.
func (q *Queue) Discard() (*gridentry.Cell, gridentry.Version, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.ll.Front()
	if e == nil {
		return nil, gridentry.Version{}, false
	}
	q.ll.Remove(e)
	t := e.Value.(tombstone)
	delete(q.byCell, t.cell)
	return t.cell, t.obsoleteVer, true
}

// Len reports how many tombstones are currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ll.Len()
}

// Sweep pops every currently queued tombstone and invokes remove on each.
func (q *Queue) Sweep(remove func(*gridentry.Cell, gridentry.Version)) {
	for {
		c, ver, ok := q.Discard()
		if !ok {
			return
		}
		remove(c, ver)
	}
}
