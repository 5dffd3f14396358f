package gridentry

import "time"

// unswap promotes whatever is in swap/off-heap into the live cell. It runs
// at most once per cell, guarded by the unswapped flag, and must be called
// with the cell lock held.
//
// If the promoted entry's expire time is already in the past, unswap
// instead releases the swap copy and clears the index, returning nothing.
func (c *Cell) unswap(ignoreFlags, needValue bool) (any, error) {
	if !ignoreFlags && c.unswapped {
		return nil, nil
	}
	c.unswapped = true

	if c.swap == nil {
		return nil, nil
	}

	// Promotion consumes the swap copy: the value must not exist both in
	// the live cell and in the tier afterwards. A peek-style unswap (no
	// value needed) leaves the tier untouched.
	var entry SwapEntry
	var ok bool
	var err error
	if needValue {
		entry, ok, err = c.swap.ReadAndRemove(c.key)
	} else {
		entry, ok, err = c.swap.Read(c.key, true, true, true)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	now := time.Now().UnixNano()
	if entry.ExpireAt > 0 && entry.ExpireAt <= now {
		_ = c.swap.Remove(c.key)
		if c.indexMgr != nil {
			_ = c.indexMgr.RemoveIndex(c.key)
		}
		return nil, nil
	}

	if !entry.Version.IsZero() {
		c.version = entry.Version
	}
	c.setTTLAndExpire(entry.TTL, entry.ExpireAt)

	if entry.OffHeap {
		c.value.clear()
		c.value.offheap = &offheapHandle{ptr: entry.Offset, tag: entry.Tag, arena: c.allocator}
	} else if needValue {
		_ = c.setValue(&Value{Tag: entry.Tag, Bytes: entry.Bytes, Obj: entry.Value})
	}

	if !needValue {
		return nil, nil
	}
	v, _ := c.materialize(true)
	return v, nil
}

// swap writes the current live value to the swap tier if swap-or-offheap
// is enabled, the cell is not deleted, has a value, is not detached, and
// has not expired. Expired cells instead have any off-heap copy removed.
// A value that is already off-heap-only re-enables off-heap eviction
// rather than writing a duplicate copy.
func (c *Cell) doSwap() error {
	if c.swap == nil || c.deleted || c.detached || !c.hasValueUnlocked() {
		return nil
	}

	now := time.Now().UnixNano()
	if c.expireTime() > 0 && c.expireTime() <= now {
		return c.swap.RemoveOffheap(c.key)
	}

	if c.value.offheap != nil && c.value.heap == nil {
		if c.swap.OffheapEvictionEnabled() {
			return c.swap.EnableOffheapEviction(c.key)
		}
		return nil
	}

	bytes, tag, err := c.valueBytesUnlocked()
	if err != nil {
		return err
	}

	return c.swap.Write(SwapWriteRequest{
		Key:      c.key,
		Bytes:    bytes,
		Tag:      tag,
		Version:  c.version,
		TTL:      c.ttl(),
		ExpireAt: c.expireTime(),
	})
}

// BatchSwapEntry describes one cell evicted as part of a multi-cell swap
// flush, produced by evictInBatch.
type BatchSwapEntry struct {
	Key      Key
	Bytes    []byte
	Tag      TypeTag
	Version  Version
	TTL      time.Duration
	ExpireAt int64
}

// evictInBatch marks the cell obsolete without clearing the value and
// returns a descriptor so the caller can flush many evictions in one swap
// I/O round-trip.
func (c *Cell) evictInBatch(obsoleteVer Version) (BatchSwapEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.markObsolete(obsoleteVer, false) {
		return BatchSwapEntry{}, false
	}
	bytes, tag, _ := c.valueBytesUnlocked()
	return BatchSwapEntry{
		Key:      c.key,
		Bytes:    bytes,
		Tag:      tag,
		Version:  c.version,
		TTL:      c.ttl(),
		ExpireAt: c.expireTime(),
	}, true
}
