package gridentry

import "time"

// TTLZero is the sentinel forbidden as a literal TTL: callers must
// translate a zero TTL into either "expire immediately" (TTLMinimum) or a
// delete.
const TTLZero time.Duration = 0

// TTLEternal means "no expiration", the default when extras carry no TTL
// shape at all.
const TTLEternal time.Duration = -1

// TTLMinimum is the smallest representable TTL; callers translating a
// forbidden TTLZero into "expire immediately" use this with an expire time
// already in the past.
const TTLMinimum time.Duration = 1

// extras carries the four non-default field groups a cell can accumulate:
// user attributes, the MVCC candidate list, the obsolete version, and the
// TTL/expire pair. "All defaults" is represented by a nil *extras on the
// cell, never by an allocated-but-empty one.
type extras struct {
	attrs       map[string]any
	mvcc        MVCCCandidates
	obsoleteVer *Version
	ttl         time.Duration
	expireAt    int64 // unix nanos; 0 means "no expire time set"
}

func (e *extras) isDefault() bool {
	return e == nil || (len(e.attrs) == 0 && e.mvcc == nil && e.obsoleteVer == nil && e.ttl == 0 && e.expireAt == 0)
}

// shrink collapses extras to nil once every field returns to its
// default, keeping the per-cell footprint minimal.
func (c *Cell) shrinkExtras() {
	if c.extras.isDefault() {
		c.extras = nil
	}
}

func (c *Cell) ensureExtras() *extras {
	if c.extras == nil {
		c.extras = &extras{}
	}
	return c.extras
}

func (c *Cell) ttl() time.Duration {
	if c.extras == nil {
		return TTLEternal
	}
	if c.extras.ttl == 0 {
		return TTLEternal
	}
	return c.extras.ttl
}

func (c *Cell) expireTime() int64 {
	if c.extras == nil {
		return 0
	}
	return c.extras.expireAt
}

// setTTLAndExpire installs a new TTL/expire-time pair. A pair with no
// positive TTL and no expire time (TTLZero or TTLEternal with expireAt 0)
// clears both fields, leaving the cell eternal, and drops the cell from
// the TTL tracker.
func (c *Cell) setTTLAndExpire(ttl time.Duration, expireAt int64) {
	if ttl <= 0 && expireAt == 0 {
		if c.extras != nil {
			c.extras.ttl = 0
			c.extras.expireAt = 0
			c.shrinkExtras()
		}
		if c.ttlTracker != nil {
			c.ttlTracker.RemoveTrackedEntry(c)
		}
		return
	}
	e := c.ensureExtras()
	e.ttl = ttl
	e.expireAt = expireAt
	c.maybeTrackTTL()
}

func (c *Cell) maybeTrackTTL() {
	if c.ttlTracker == nil {
		return
	}
	if c.expireTime() > 0 && c.eagerTTL && c.state == stateLive {
		c.ttlTracker.AddTrackedEntry(c)
	} else {
		c.ttlTracker.RemoveTrackedEntry(c)
	}
}

func (c *Cell) obsoleteVersion() *Version {
	if c.extras == nil {
		return nil
	}
	return c.extras.obsoleteVer
}

func (c *Cell) setObsoleteVersion(v Version) {
	e := c.ensureExtras()
	e.obsoleteVer = &v
	// obsoleteVer never clears; no shrink needed, the shape stays
	// "carrying obsolete-version" forever.
}

func (c *Cell) mvccList() MVCCCandidates {
	if c.extras == nil {
		return nil
	}
	return c.extras.mvcc
}

func (c *Cell) setMVCCList(l MVCCCandidates) {
	if l == nil {
		if c.extras != nil {
			c.extras.mvcc = nil
			c.shrinkExtras()
		}
		return
	}
	c.ensureExtras().mvcc = l
}

func (c *Cell) attribute(key string) (any, bool) {
	if c.extras == nil || c.extras.attrs == nil {
		return nil, false
	}
	v, ok := c.extras.attrs[key]
	return v, ok
}

func (c *Cell) setAttribute(key string, v any) {
	e := c.ensureExtras()
	if e.attrs == nil {
		e.attrs = make(map[string]any)
	}
	e.attrs[key] = v
}

// extrasMemorySize approximates the shape's on-heap footprint for
// memorySize(); the exact constant matters less than it shrinking to 0
// when extras is nil.
func (c *Cell) extrasMemorySize() int {
	if c.extras == nil {
		return 0
	}
	size := 0
	if c.extras.mvcc != nil {
		size += 16
	}
	if c.extras.obsoleteVer != nil {
		size += 16
	}
	if c.extras.ttl != 0 || c.extras.expireAt != 0 {
		size += 16
	}
	for k := range c.extras.attrs {
		size += len(k) + 16
	}
	return size
}
