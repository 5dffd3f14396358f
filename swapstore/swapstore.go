// Package swapstore implements an in-memory swap/off-heap tier. Spilled
// keys are tracked in recency order (container/list, promote-to-front on
// access) so the tier can evict its own least-recently-read entries when
// it fills up.
package swapstore

import (
	"container/list"
	"sync"
	"time"

	"github.com/shaj13/gridentry"
)

type record struct {
	key     gridentry.Key
	bytes   []byte
	tag     gridentry.TypeTag
	version gridentry.Version
	ttl     int64
	expire  int64
	offheap bool
	offset  uint64
	elem    *list.Element
}

// Tier is a thread-safe, bounded in-memory swap tier. It implements
// gridentry.Swap. Capacity <= 0 means unbounded.
type Tier struct {
	mu                sync.Mutex
	ll                *list.List
	byKey             map[string]*record
	capacity          int
	offheap           map[uint64][]byte
	nextPtr           uint64
	offheapEvictionOn bool
}

// New returns an empty swap tier with the given capacity (<=0 unbounded).
func New(capacity int) *Tier {
	return &Tier{
		ll:       list.New(),
		byKey:    make(map[string]*record),
		capacity: capacity,
		offheap:  make(map[uint64][]byte),
	}
}

func keyStr(k gridentry.Key) string { return string(k.Bytes) }

func (t *Tier) Read(key gridentry.Key, peekOnly, includeOffheap, includeSwap bool) (gridentry.SwapEntry, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.byKey[keyStr(key)]
	if !ok {
		return gridentry.SwapEntry{}, false, nil
	}
	if !peekOnly {
		t.ll.MoveToFront(r.elem)
	}
	return t.toEntry(r), true, nil
}

func (t *Tier) ReadAndRemove(key gridentry.Key) (gridentry.SwapEntry, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.byKey[keyStr(key)]
	if !ok {
		return gridentry.SwapEntry{}, false, nil
	}
	t.removeLocked(r)
	return t.toEntry(r), true, nil
}

func (t *Tier) ReadOffheapPointer(key gridentry.Key) (gridentry.SwapEntry, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.byKey[keyStr(key)]
	if !ok || !r.offheap {
		return gridentry.SwapEntry{}, false, nil
	}
	return t.toEntry(r), true, nil
}

func (t *Tier) toEntry(r *record) gridentry.SwapEntry {
	return gridentry.SwapEntry{
		Bytes: r.bytes, Tag: r.tag, Version: r.version,
		TTL: time.Duration(r.ttl), ExpireAt: r.expire,
		OffHeap: r.offheap, Offset: r.offset,
	}
}

func (t *Tier) Write(req gridentry.SwapWriteRequest) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ks := keyStr(req.Key)
	if existing, ok := t.byKey[ks]; ok {
		t.removeLocked(existing)
	}

	r := &record{
		key: req.Key, bytes: req.Bytes, tag: req.Tag,
		version: req.Version, ttl: int64(req.TTL), expire: req.ExpireAt,
	}
	r.elem = t.ll.PushFront(r)
	t.byKey[ks] = r

	if t.capacity > 0 && t.ll.Len() > t.capacity {
		if back := t.ll.Back(); back != nil {
			t.removeLocked(back.Value.(*record))
		}
	}
	return nil
}

func (t *Tier) Remove(key gridentry.Key) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.byKey[keyStr(key)]; ok {
		t.removeLocked(r)
	}
	return nil
}

func (t *Tier) RemoveOffheap(key gridentry.Key) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.byKey[keyStr(key)]
	if !ok || !r.offheap {
		return nil
	}
	delete(t.offheap, r.offset)
	t.removeLocked(r)
	return nil
}

func (t *Tier) removeLocked(r *record) {
	t.ll.Remove(r.elem)
	delete(t.byKey, keyStr(r.key))
}

func (t *Tier) OffheapEvictionEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offheapEvictionOn
}

func (t *Tier) EnableOffheapEviction(key gridentry.Key) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.offheapEvictionOn = true
	return nil
}

// Len reports how many keys currently sit in the swap tier.
func (t *Tier) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ll.Len()
}
