package gridentry

import (
	"context"
	"time"
)

// PeekMode selects which source a peek consults.
type PeekMode uint8

const (
	PeekTX PeekMode = iota
	PeekGlobal
	PeekNearOnly
	PeekPartitionedOnly
	PeekSmart
	PeekSwap
	PeekDB
)

// Peek never mutates the cell except that a GLOBAL peek may mark a
// detected-expired cell obsolete and request its removal from the map
// (the bool return signals that request to the caller). Every peek checks
// and honors obsolescence.
func (c *Cell) Peek(ctx context.Context, mode PeekMode, tx Tx, filter Filter) (value any, found bool, requestRemoval bool, err error) {
	switch mode {
	case PeekTX:
		return c.peekTx(tx, filter)
	case PeekGlobal, PeekNearOnly, PeekPartitionedOnly:
		return c.peekGlobal(filter)
	case PeekSmart:
		if tx != nil && tx.State() == TxActive {
			return c.peekTx(tx, filter)
		}
		return c.peekGlobal(filter)
	case PeekSwap:
		return c.peekSwap(filter)
	case PeekDB:
		return c.peekDB(ctx, filter)
	default:
		return nil, false, false, nil
	}
}

func (c *Cell) peekTx(tx Tx, filter Filter) (any, bool, bool, error) {
	if tx == nil {
		return nil, false, false, nil
	}
	v, ok := tx.Entry(c.key)
	if !ok {
		return nil, false, false, nil
	}
	if filter != nil && !filter(v, ok) {
		return nil, false, false, ErrFilterFailed
	}
	return v, true, false, nil
}

// peekGlobal honors the optimistic retry pattern: if a concurrent
// expiration races the peek, it retries once the cell has settled.
func (c *Cell) peekGlobal(filter Filter) (any, bool, bool, error) {
	for {
		c.mu.Lock()
		if err := c.checkObsolete(); err != nil {
			c.mu.Unlock()
			return nil, false, false, nil
		}

		now := time.Now().UnixNano()
		expired := c.expireTime() > 0 && c.expireTime() <= now
		if expired {
			ver := c.version
			c.mu.Unlock()
			obsoleted := c.markObsoleteUnderLock(ver)
			return nil, false, obsoleted, nil
		}

		v, ok := c.materialize(true)
		startVer := c.version
		c.mu.Unlock()

		if ok && filter != nil && !filter(v, ok) {
			return nil, false, false, ErrFilterFailed
		}

		// Re-verify the cell did not expire between reading and returning;
		// if it moved, retry.
		c.mu.Lock()
		settled := c.version == startVer &&
			!(c.expireTime() > 0 && c.expireTime() <= time.Now().UnixNano())
		c.mu.Unlock()
		if settled {
			return v, ok, false, nil
		}
	}
}

func (c *Cell) markObsoleteUnderLock(ver Version) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.markObsolete(ver, true)
}

func (c *Cell) peekSwap(filter Filter) (any, bool, bool, error) {
	if c.swap == nil {
		return nil, false, false, nil
	}
	entry, ok, err := c.swap.Read(c.key, true, true, true)
	if err != nil || !ok {
		return nil, false, false, err
	}
	if filter != nil && !filter(entry.Value, true) {
		return nil, false, false, ErrFilterFailed
	}
	return entry.Value, true, false, nil
}

func (c *Cell) peekDB(ctx context.Context, filter Filter) (any, bool, bool, error) {
	if c.store == nil {
		return nil, false, false, nil
	}
	v, ok, err := c.store.LoadFromStore(ctx, 0, c.key)
	if err != nil || !ok {
		return nil, false, false, err
	}
	if filter != nil && !filter(v, true) {
		return nil, false, false, ErrFilterFailed
	}
	return v, true, false, nil
}

// KeyValue is the externally visible snapshot wrap() produces.
type KeyValue struct {
	Key      Key
	Value    any
	HasValue bool
}

// Wrap snapshots the cell to an externally visible key/value record, using
// the supplied transaction's entry for this key when it has one.
func (c *Cell) Wrap(tx Tx) KeyValue {
	var v any
	var ok bool
	if tx != nil {
		v, ok = tx.Entry(c.key)
	}
	if !ok {
		c.mu.Lock()
		v, ok = c.materialize(true)
		c.mu.Unlock()
	}
	return KeyValue{Key: c.key, Value: v, HasValue: ok}
}

// LazyValue defers value materialization until Get is called, re-peeking
// the cell at that time.
type LazyValue struct {
	cell *Cell
	tx   Tx
}

// WrapLazyValue returns a LazyValue bound to this cell.
func (c *Cell) WrapLazyValue(tx Tx) LazyValue {
	return LazyValue{cell: c, tx: tx}
}

// Get dereferences the lazy value, re-peeking the cell.
func (lv LazyValue) Get() (any, bool) {
	kv := lv.cell.Wrap(lv.tx)
	return kv.Value, kv.HasValue
}

// EvictableEntry is the façade the eviction policy consumes.
type EvictableEntry struct {
	Key               Key
	MemorySize        func() int
	MarkedForEviction func() bool
}

// WrapEviction returns the eviction-policy façade for this cell.
func (c *Cell) WrapEviction() EvictableEntry {
	return EvictableEntry{
		Key:        c.key,
		MemorySize: c.memorySize,
		MarkedForEviction: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.isObsolete()
		},
	}
}

// VersionedEntry is the façade for version-aware user code, and the
// return value of versionedEntry(): key, value, TTL, expire time,
// conflict version, and whether the cell is new.
type VersionedEntry struct {
	Key             Key
	Value           any
	HasValue        bool
	TTL             time.Duration
	ExpireAt        int64
	ConflictVersion *Version
	IsNew           bool
}

// WrapVersioned is the façade over VersionedEntry for version-aware user
// code. It runs the same read as versionedEntry, unswapping a new cell.
func (c *Cell) WrapVersioned() VersionedEntry {
	return c.versionedEntry()
}

// versionedEntry reads the current value (unswapping if the cell is new)
// and returns key, value, TTL, expire, conflict-version, and new-flag.
func (c *Cell) versionedEntry() VersionedEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isNew() {
		_, _ = c.unswap(false, true)
	}

	v, ok := c.materialize(true)
	var conflictVer *Version
	if c.version.ConflictVersion != nil {
		cv := *c.version.ConflictVersion
		conflictVer = &cv
	}

	return VersionedEntry{
		Key: c.key, Value: v, HasValue: ok,
		TTL: c.ttl(), ExpireAt: c.expireTime(),
		ConflictVersion: conflictVer, IsNew: c.isNew(),
	}
}
