package gridentry

import (
	"context"
	"time"
)

// GetOptions configures innerGet. Tx is optional; a nil Tx means atomic
// mode. ExpiryPolicy, if non-nil, overrides the cell's configured policy
// for this call only (matches getExpiryForAccess being supplied per-call).
type GetOptions struct {
	Tx                    Tx
	ReadSwap              bool
	ReadThrough           bool
	Unmarshal             bool
	UpdateMetrics         bool
	EmitEvent             bool
	Temporary             bool
	SubjectID             uint64
	TaskName              string
	TransformClosureClass string
	ExpiryPolicy          ExpiryPolicy
	Metrics               Metrics
	TopologyVersion       uint64
	Touch                 bool
}

// Metrics receives read/miss and write counters when statistics are
// enabled.
type Metrics interface {
	OnRead(hit bool)
	OnWrite()
	OnRemove()
}

// InnerGetResult is what innerGet returns to its caller.
type InnerGetResult struct {
	Value   any
	Found   bool
	Expired bool
}

// innerGet is the read path, optionally read-through. It acquires the
// cell lock, consults swap and the store, and emits at most one of
// {READ, EXPIRED} inside the first critical section; a committed
// read-through load emits one further READ for the loaded value.
func (c *Cell) innerGet(ctx context.Context, opts GetOptions) (InnerGetResult, error) {
	c.mu.Lock()

	if err := c.checkObsolete(); err != nil {
		c.mu.Unlock()
		return InnerGetResult{}, err
	}

	startVer := c.version
	now := time.Now().UnixNano()
	expired := c.expireTime() > 0 && c.expireTime() <= now

	val, found := c.materialize(opts.Unmarshal)

	if !found && opts.ReadSwap && (c.isNew() || c.isObsolete()) {
		if v, err := c.unswap(false, true); err != nil {
			c.mu.Unlock()
			return InnerGetResult{}, err
		} else if v != nil {
			val, found = v, true
		}
		expired = c.expireTime() > 0 && c.expireTime() <= now
	}

	var expiredVal any
	hadExpiredVal := false
	if expired {
		expiredVal = val
		hadExpiredVal = found
		val, found = nil, false
		c.value.clear()
	}

	if opts.UpdateMetrics && opts.Metrics != nil {
		opts.Metrics.OnRead(found)
	}

	if expired {
		if c.eventBus != nil && c.eventBus.IsRecordable(EventExpired) {
			c.eventBus.AddEvent(EventRecord{
				Key: c.key, Type: EventExpired,
				OldVal: expiredVal, HasOld: hadExpiredVal,
				NewVersion: c.version,
				SubjectID:  opts.SubjectID, TaskName: opts.TaskName,
			})
		}
		if c.cq != nil {
			c.cq.OnEntryExpired(c.key, expiredVal)
		}
	} else if opts.EmitEvent && c.eventBus != nil && c.eventBus.IsRecordable(EventRead) {
		c.eventBus.AddEvent(EventRecord{
			Key: c.key, Type: EventRead,
			NewVal: val, HasNew: found,
			NewVersion:            c.version,
			SubjectID:             opts.SubjectID,
			TaskName:              opts.TaskName,
			TransformClosureClass: opts.TransformClosureClass,
		})
	}

	if found {
		policy := opts.ExpiryPolicy
		if policy == nil {
			policy = c.expiryPolicy
		}
		if ttl := policy.ForAccess(); ttl != TTLNotChanged {
			c.applyAccessTTL(ttl)
		}
	}

	readThrough := !found && opts.ReadThrough && c.store != nil && c.store.ReadThrough()
	c.mu.Unlock()

	if !readThrough {
		if opts.Touch && c.evictions != nil {
			c.evictions.Touch(c, opts.TopologyVersion)
		}
		return InnerGetResult{Value: val, Found: found, Expired: expired}, nil
	}

	txID := TxID(0)
	if opts.Tx != nil {
		txID = opts.Tx.ID()
	}
	loaded, ok, err := c.store.LoadFromStore(ctx, txID, c.key)
	if err != nil {
		return InnerGetResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Optimistic concurrency guard: only commit the loaded value if no
	// concurrent writer has moved the version since we released the lock.
	if c.version != startVer || !ok {
		if !ok {
			return InnerGetResult{Found: false}, nil
		}
		return InnerGetResult{Value: loaded, Found: true}, nil
	}

	newVer := c.version
	if c.versionSvc != nil {
		newVer = c.versionSvc.NextForLoad(c.version)
	}
	c.version = newVer
	_ = c.setValue(&Value{Obj: loaded})
	if c.indexMgr != nil {
		_ = c.indexMgr.StoreIndex(c.key, loaded, c.version, c.expireTime())
	}
	c.clearTombstone()
	if c.state == stateNew {
		c.state = stateLive
	}

	if c.eventBus != nil && c.eventBus.IsRecordable(EventRead) {
		c.eventBus.AddEvent(EventRecord{
			Key: c.key, Type: EventRead, NewVal: loaded, HasNew: true, NewVersion: c.version,
			SubjectID: opts.SubjectID, TaskName: opts.TaskName,
		})
	}

	return InnerGetResult{Value: loaded, Found: true}, nil
}

func (c *Cell) applyAccessTTL(ttl time.Duration) {
	if ttl == TTLEternal {
		c.setTTLAndExpire(TTLEternal, 0)
		return
	}
	c.setTTLAndExpire(ttl, time.Now().Add(ttl).UnixNano())
}

// ReloadResult is returned by innerReload.
type ReloadResult struct {
	Value any
	Found bool
}

// innerReload behaves like read-through but unconditionally re-reads the
// store. If the version has not moved since the load started, it releases
// swap, updates/clears the index, writes the loaded value (or clears it)
// under a fresh load version that does not change topology-version, and
// touches the eviction-LRU.
func (c *Cell) innerReload(ctx context.Context, topVer uint64) (ReloadResult, error) {
	c.mu.Lock()
	if err := c.checkObsolete(); err != nil {
		c.mu.Unlock()
		return ReloadResult{}, err
	}
	startVer := c.version
	c.mu.Unlock()

	loaded, ok, err := c.store.LoadFromStore(ctx, 0, c.key)
	if err != nil {
		return ReloadResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.version != startVer {
		return ReloadResult{}, nil
	}

	if c.swap != nil {
		_ = c.swap.Remove(c.key)
	}

	newVer := c.version
	if c.versionSvc != nil {
		newVer = c.versionSvc.NextForLoad(c.version)
	}
	c.version = newVer

	if !ok {
		c.value.clear()
		if c.indexMgr != nil {
			_ = c.indexMgr.RemoveIndex(c.key)
		}
	} else {
		_ = c.setValue(&Value{Obj: loaded})
		if c.indexMgr != nil {
			_ = c.indexMgr.StoreIndex(c.key, loaded, c.version, c.expireTime())
		}
	}

	if c.evictions != nil {
		c.evictions.Touch(c, topVer)
	}

	return ReloadResult{Value: loaded, Found: ok}, nil
}
