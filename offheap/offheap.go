// Package offheap implements a handle-based byte arena for the
// OffheapAllocator collaborator: opaque pointer in, bytes out. The cell
// carries only the pointer; the bytes live here, outside every cell.
package offheap

import (
	"sync"
	"sync/atomic"

	"github.com/shaj13/gridentry"
)

type slot struct {
	bytes []byte
	tag   gridentry.TypeTag
}

// Arena is a concurrency-safe OffheapAllocator backed by a map from
// synthetic pointer to byte slice.
type Arena struct {
	mu      sync.RWMutex
	slots   map[uint64]slot
	nextPtr uint64
}

// New returns an empty arena.
func New() *Arena {
	return &Arena{slots: make(map[uint64]slot)}
}

// PutOffHeap implements gridentry.OffheapAllocator. It copies bytes so the
// caller's buffer can be reused or mutated freely afterward.
func (a *Arena) PutOffHeap(bytes []byte, tag gridentry.TypeTag) uint64 {
	cp := make([]byte, len(bytes))
	copy(cp, bytes)

	ptr := atomic.AddUint64(&a.nextPtr, 1)
	a.mu.Lock()
	a.slots[ptr] = slot{bytes: cp, tag: tag}
	a.mu.Unlock()
	return ptr
}

// Get implements gridentry.OffheapAllocator.
func (a *Arena) Get(ptr uint64) ([]byte, gridentry.TypeTag) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.slots[ptr]
	if !ok {
		return nil, gridentry.TypeBytes
	}
	return s.bytes, s.tag
}

// RemoveOffHeap implements gridentry.OffheapAllocator.
func (a *Arena) RemoveOffHeap(ptr uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.slots, ptr)
}

// Len reports how many live handles the arena holds.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.slots)
}
