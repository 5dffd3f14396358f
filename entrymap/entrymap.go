// Package entrymap is the owning map: the structure that holds the
// per-partition key -> cell mapping, constructs cells on first touch, and
// retires them once obsolete. A sync.RWMutex-guarded map plus a
// pluggable, registry-selected eviction policy.
package entrymap

import (
	"strconv"
	"sync"
	"time"

	"github.com/shaj13/gridentry"
)

// EvictionPolicy identifies an eviction ordering strategy linked into the
// binary.
type EvictionPolicy uint

const (
	// FIFO evicts the oldest-inserted key first.
	FIFO EvictionPolicy = iota + 1
	// LRU evicts the least-recently-accessed key first.
	LRU
	maxPolicy
)

type factory func(cap int) Collection

var policies = make([]factory, maxPolicy)

// Collection is the ordering structure an EvictionPolicy manages: it
// tracks keys and decides which one a full map discards first.
type Collection interface {
	Add(key string)
	Move(key string)
	Remove(key string)
	Discard() (key string, ok bool)
	Len() int
}

// Register links an EvictionPolicy's Collection constructor into the
// binary. Intended to be called from an init function.
func (p EvictionPolicy) Register(fn factory) {
	if p <= 0 || p >= maxPolicy {
		panic("entrymap: Register of unknown eviction policy")
	}
	policies[p] = fn
}

// Available reports whether p is linked into the binary.
func (p EvictionPolicy) Available() bool {
	return p > 0 && p < maxPolicy && policies[p] != nil
}

func (p EvictionPolicy) String() string {
	switch p {
	case FIFO:
		return "FIFO"
	case LRU:
		return "LRU"
	default:
		return "unknown eviction policy " + strconv.Itoa(int(p))
	}
}

// Map owns a partition's key -> *gridentry.Cell mapping: it is the
// GetOrCreate/remove surface the core's own peekGlobal/innerUpdate paths
// assume exists above them, plus the bounded-capacity eviction a real
// deployment would configure.
type Map struct {
	mu       sync.RWMutex
	cells    map[string]*gridentry.Cell
	order    Collection
	capacity int
	cfg      gridentry.Config

	idxMu sync.RWMutex
	index map[string]indexRecord
}

// indexRecord is what Map tracks per key on behalf of the query/index
// manager collaborator (gridentry.IndexManager): the cell's live value,
// its version, and its expire time, kept in lockstep with every
// StoreIndex/RemoveIndex call the core makes under its own cell lock.
type indexRecord struct {
	val      any
	ver      gridentry.Version
	expireAt int64
}

// New returns a Map using the given EvictionPolicy and capacity (<=0
// unbounded), constructing every cell it creates with cfg. If cfg leaves
// IndexManager unset, the Map wires itself in as the index collaborator
// (see StoreIndex/RemoveIndex) so every cell it owns gets one for free.
func New(policy EvictionPolicy, capacity int, cfg gridentry.Config) *Map {
	if !policy.Available() {
		panic("entrymap: requested eviction policy #" + strconv.Itoa(int(policy)) + " is unavailable")
	}
	m := &Map{
		cells:    make(map[string]*gridentry.Cell),
		order:    policies[policy](capacity),
		capacity: capacity,
		cfg:      cfg,
		index:    make(map[string]indexRecord),
	}
	if m.cfg.IndexManager == nil {
		m.cfg.IndexManager = m
	}
	return m
}

// StoreIndex implements gridentry.IndexManager: it records the key's
// current value/version/expiry so Lookup can answer without touching the
// cell.
func (m *Map) StoreIndex(key gridentry.Key, val any, ver gridentry.Version, expireAt int64) error {
	m.idxMu.Lock()
	defer m.idxMu.Unlock()
	m.index[keyStr(key)] = indexRecord{val: val, ver: ver, expireAt: expireAt}
	return nil
}

// RemoveIndex implements gridentry.IndexManager.
func (m *Map) RemoveIndex(key gridentry.Key) error {
	m.idxMu.Lock()
	defer m.idxMu.Unlock()
	delete(m.index, keyStr(key))
	return nil
}

// Lookup returns the indexed value for key without going through the
// cell's own lock, the way a real query/index manager would answer a scan.
func (m *Map) Lookup(key gridentry.Key) (any, gridentry.Version, bool) {
	m.idxMu.RLock()
	defer m.idxMu.RUnlock()
	r, ok := m.index[keyStr(key)]
	return r.val, r.ver, ok
}

func keyStr(k gridentry.Key) string { return string(k.Bytes) }

// GetOrCreate returns the existing cell for key, or constructs and inserts
// one seeded with initial (which may be nil) at the given TTL.
func (m *Map) GetOrCreate(key gridentry.Key, initial *gridentry.Value, ttl time.Duration) (*gridentry.Cell, bool) {
	ks := keyStr(key)

	m.mu.RLock()
	if c, ok := m.cells[ks]; ok {
		m.order.Move(ks)
		m.mu.RUnlock()
		return c, false
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cells[ks]; ok {
		m.order.Move(ks)
		return c, false
	}

	c := gridentry.New(key, m.cfg, initial, ttl)
	m.cells[ks] = c
	m.order.Add(ks)

	if m.capacity > 0 && m.order.Len() > m.capacity {
		if evictKey, ok := m.order.Discard(); ok {
			delete(m.cells, evictKey)
		}
	}
	return c, true
}

// Get returns the cell for key without creating one.
func (m *Map) Get(key gridentry.Key) (*gridentry.Cell, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cells[keyStr(key)]
	return c, ok
}

// Remove drops key's cell from the map entirely, e.g. once it has reached
// the obsolete state and its deferred-delete tombstone has been swept.
func (m *Map) Remove(key gridentry.Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ks := keyStr(key)
	delete(m.cells, ks)
	m.order.Remove(ks)
}

// Len reports how many cells the map currently owns.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cells)
}

// Keys returns a snapshot of every key currently owned.
func (m *Map) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.cells))
	for k := range m.cells {
		out = append(out, k)
	}
	return out
}
