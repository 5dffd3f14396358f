package gridentry

import (
	"context"
	"time"
)

// Filter gates a write/remove against the entry's current value.
type Filter func(oldVal any, hasOld bool) bool

// SetOptions configures innerSet.
type SetOptions struct {
	Tx               Tx
	Filter           Filter
	ExplicitTTL      *time.Duration
	ExplicitExpireAt *int64
	ExplicitVersion  *Version
	DRExpireWins     bool
	NeedOldValue     bool
	DRType           DRType
	ConflictVersion  *Version
	SubjectID        uint64
	TaskName         string
	TransformClass   string
	TopologyVersion  uint64
	NodeID           uint32
	Metrics          Metrics
}

// SetResult is innerSet's outcome.
type SetResult struct {
	Success  bool
	OldValue any
	HasOld   bool
}

// innerSet is the transactional write: filter predicate, interceptor,
// and optional explicit TTL/expire/version govern the write.
// Store I/O happens outside the monitor; the in-memory mutation, index
// update, and event emission happen inside it.
func (c *Cell) innerSet(ctx context.Context, newVal any, opts SetOptions) (SetResult, error) {
	c.mu.Lock()

	if err := c.checkObsolete(); err != nil {
		c.mu.Unlock()
		return SetResult{}, err
	}

	if c.isNew() {
		if _, err := c.unswap(true, true); err != nil {
			c.mu.Unlock()
			return SetResult{}, err
		}
	}

	newVer := c.computeWriteVersion(opts.Tx, opts.ExplicitVersion)

	old, hasOld := c.materialize(true)
	if opts.Filter != nil && !opts.Filter(old, hasOld) {
		c.mu.Unlock()
		return SetResult{Success: false, OldValue: old, HasOld: hasOld}, nil
	}

	finalVal := newVal
	if c.interceptor != nil {
		v, ok := c.interceptor.OnBeforePut(c.key, old, newVal)
		if !ok {
			c.mu.Unlock()
			return SetResult{Success: false, OldValue: old, HasOld: hasOld}, nil
		}
		finalVal = v
	}

	if c.state == stateNew {
		c.state = stateLive
	}

	ttl, expireAt := c.resolveSetTTL(opts, hasOld)
	c.setTTLAndExpire(ttl, expireAt)

	if c.indexMgr != nil {
		if err := c.indexMgr.StoreIndex(c.key, finalVal, newVer, expireAt); err != nil {
			c.mu.Unlock()
			return SetResult{}, wrapIndexErr(err)
		}
	}
	c.clearTombstone()

	if err := c.setValue(&Value{Obj: finalVal}); err != nil {
		c.mu.Unlock()
		return SetResult{}, err
	}
	c.version = newVer

	c.variant.RecordNodeID(opts.NodeID)

	if opts.Metrics != nil {
		opts.Metrics.OnWrite()
	}

	if c.eventBus != nil && c.eventBus.IsRecordable(EventPut) {
		c.eventBus.AddEvent(EventRecord{
			Partition: c.variant.Partition(), Key: c.key, Type: EventPut,
			NewVal: finalVal, HasNew: true, OldVal: old, HasOld: hasOld,
			NewVersion: newVer, SubjectID: opts.SubjectID, TaskName: opts.TaskName,
			TransformClosureClass: opts.TransformClass,
		})
	}
	if c.cq != nil {
		c.cq.OnEntryUpdated(c.key, finalVal, old, opts.DRType == DRPreload)
	}
	if c.evictions != nil {
		c.evictions.Touch(c, opts.TopologyVersion)
	}

	writeThrough := c.store != nil && c.store.WriteThrough()
	txID := TxID(0)
	if opts.Tx != nil {
		txID = opts.Tx.ID()
	}

	c.mu.Unlock()

	if c.dr != nil {
		_ = c.dr.Replicate(c.key, finalVal, ttl, expireAt, opts.ConflictVersion, opts.DRType)
	}

	if writeThrough {
		if err := c.store.PutToStore(ctx, txID, c.key, finalVal, newVer); err != nil {
			return SetResult{}, wrapStoreErr(err)
		}
	}
	if c.interceptor != nil {
		c.interceptor.OnAfterPut(c.key, finalVal)
	}

	return SetResult{Success: true, OldValue: old, HasOld: hasOld}, nil
}

// computeWriteVersion picks the caller-provided version, else the tx's
// write version, else the next local version, in that priority order.
func (c *Cell) computeWriteVersion(tx Tx, explicit *Version) Version {
	if explicit != nil {
		return *explicit
	}
	if tx != nil {
		if v, ok := tx.WriteVersion(); ok {
			return v
		}
	}
	if c.versionSvc != nil {
		return c.versionSvc.Next()
	}
	return Version{Order: c.version.Order + 1, NodeOrder: c.localNodeOrder}
}

// resolveSetTTL picks the TTL/expire pair for a write: an explicit DR
// expire wins; TTLNotChanged keeps the current pair; otherwise the expire
// time is computed from the TTL.
func (c *Cell) resolveSetTTL(opts SetOptions, hasOld bool) (time.Duration, int64) {
	if opts.DRExpireWins && opts.ExplicitExpireAt != nil {
		ttl := c.ttl()
		if opts.ExplicitTTL != nil {
			ttl = *opts.ExplicitTTL
		}
		return ttl, *opts.ExplicitExpireAt
	}
	if opts.ExplicitTTL != nil {
		if *opts.ExplicitTTL == TTLNotChanged {
			return c.ttl(), c.expireTime()
		}
		ttl := *opts.ExplicitTTL
		if ttl == TTLEternal {
			return TTLEternal, 0
		}
		return ttl, time.Now().Add(ttl).UnixNano()
	}

	var policyTTL time.Duration
	if hasOld {
		policyTTL = c.expiryPolicy.ForUpdate()
	} else {
		policyTTL = c.expiryPolicy.ForCreate()
	}
	switch policyTTL {
	case TTLNotChanged:
		return c.ttl(), c.expireTime()
	case TTLZero:
		return TTLMinimum, time.Now().UnixNano()
	case TTLEternal:
		return TTLEternal, 0
	default:
		return policyTTL, time.Now().Add(policyTTL).UnixNano()
	}
}

func wrapIndexErr(err error) error {
	if err == nil {
		return nil
	}
	return &indexError{err: err}
}

type indexError struct{ err error }

func (e *indexError) Error() string { return "gridentry: index update failed: " + e.err.Error() }
func (e *indexError) Unwrap() error { return e.err }

func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	return &storeError{err: err}
}

type storeError struct{ err error }

func (e *storeError) Error() string { return "gridentry: store operation failed: " + e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }
