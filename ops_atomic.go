package gridentry

import (
	"context"
	"time"
)

// LocalUpdateOptions configures innerUpdateLocal, the single-owner fast
// path for a local (non-replicated) cache.
type LocalUpdateOptions struct {
	Op              UpdateOp
	WriteObj        any
	Processor       EntryProcessor
	Filter          Filter
	ExplicitTTL     *time.Duration
	LoadIfAbsent    bool
	TopologyVersion uint64
	SubjectID       uint64
	TaskName        string
}

// LocalUpdateResult is innerUpdateLocal's outcome.
type LocalUpdateResult struct {
	Changed         bool
	OldValue        any
	HasOld          bool
	ProcessorResult any
	ProcessorErr    error
}

// innerUpdateLocal reads-or-loads the old value, evaluates the filter,
// applies a transform if requested, runs the interceptor, computes TTL,
// write-throughs under the lock (required in non-transactional mode),
// updates the index, commits the value, and emits events.
func (c *Cell) innerUpdateLocal(ctx context.Context, opts LocalUpdateOptions) (LocalUpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkObsolete(); err != nil {
		return LocalUpdateResult{}, err
	}

	old, hasOld := c.materialize(true)
	if !hasOld && opts.LoadIfAbsent && c.store != nil && c.store.ReadThrough() {
		if loaded, ok, err := c.store.LoadFromStore(ctx, 0, c.key); err == nil && ok {
			old, hasOld = loaded, true
		}
	}

	if opts.Filter != nil && !opts.Filter(old, hasOld) {
		return LocalUpdateResult{OldValue: old, HasOld: hasOld}, nil
	}

	finalVal := opts.WriteObj
	doDelete := opts.Op == OpDelete
	var procResult any
	var procErr error

	if opts.Op == OpTransform {
		entry := &MutableEntry{Key: c.key, oldVal: old, hasOld: hasOld}
		procResult, procErr = opts.Processor.Process(entry)
		if !entry.modified {
			return LocalUpdateResult{OldValue: old, HasOld: hasOld, ProcessorResult: procResult, ProcessorErr: procErr}, nil
		}
		if entry.removed {
			doDelete = true
		} else {
			finalVal = entry.newVal
		}
	}

	if doDelete {
		if c.indexMgr != nil {
			_ = c.indexMgr.RemoveIndex(c.key)
		}
		newVer := c.computeWriteVersion(nil, nil)
		if c.store != nil && c.store.WriteThrough() {
			if err := c.store.RemoveFromStore(ctx, 0, c.key); err != nil {
				return LocalUpdateResult{}, wrapStoreErr(err)
			}
		}
		c.value.clear()
		c.version = newVer
		c.setTombstone()
		if c.eventBus != nil && c.eventBus.IsRecordable(EventRemoved) {
			c.eventBus.AddEvent(EventRecord{Key: c.key, Type: EventRemoved, OldVal: old, HasOld: hasOld, NewVersion: newVer})
		}
		if !c.deferredDeleteEnabled {
			c.markObsolete0(newVer)
		}
		return LocalUpdateResult{Changed: true, OldValue: old, HasOld: hasOld, ProcessorResult: procResult, ProcessorErr: procErr}, nil
	}

	if c.interceptor != nil {
		v, ok := c.interceptor.OnBeforePut(c.key, old, finalVal)
		if !ok {
			return LocalUpdateResult{OldValue: old, HasOld: hasOld}, nil
		}
		finalVal = v
	}

	if c.state == stateNew {
		c.state = stateLive
	}

	ttl, expireAt := c.resolveSetTTL(SetOptions{ExplicitTTL: opts.ExplicitTTL}, hasOld)
	c.setTTLAndExpire(ttl, expireAt)

	newVer := c.computeWriteVersion(nil, nil)

	if c.store != nil && c.store.WriteThrough() {
		if err := c.store.PutToStore(ctx, 0, c.key, finalVal, newVer); err != nil {
			return LocalUpdateResult{}, wrapStoreErr(err)
		}
	}
	if c.indexMgr != nil {
		if err := c.indexMgr.StoreIndex(c.key, finalVal, newVer, expireAt); err != nil {
			return LocalUpdateResult{}, wrapIndexErr(err)
		}
	}

	if err := c.setValue(&Value{Obj: finalVal}); err != nil {
		return LocalUpdateResult{}, err
	}
	c.version = newVer
	c.clearTombstone()

	if c.eventBus != nil && c.eventBus.IsRecordable(EventPut) {
		c.eventBus.AddEvent(EventRecord{Key: c.key, Type: EventPut, NewVal: finalVal, HasNew: true, OldVal: old, HasOld: hasOld, NewVersion: newVer})
	}
	if c.cq != nil {
		c.cq.OnEntryUpdated(c.key, finalVal, old, false)
	}
	if c.evictions != nil {
		c.evictions.Touch(c, opts.TopologyVersion)
	}

	return LocalUpdateResult{Changed: true, OldValue: old, HasOld: hasOld, ProcessorResult: procResult, ProcessorErr: procErr}, nil
}

// UpdateArgs configures innerUpdate, the atomic replicated/partitioned
// update state machine.
type UpdateArgs struct {
	NewVersion      Version
	Op              UpdateOp
	WriteObj        any
	Processor       EntryProcessor
	Filter          Filter
	DRType          DRType
	ExplicitTTL     *time.Duration
	ExplicitExpire  *int64
	ConflictVersion *Version
	ConflictResolve bool
	VerCheck        bool
	Primary         bool
	SameDataCenter  bool
	TopologyVersion uint64
	SubjectID       uint64
	TaskName        string
	TransformClass  string
}

// UpdateResult is innerUpdate's composite return value.
type UpdateResult struct {
	Success                bool
	OldValue               any
	NewValue               any
	ProcessorResult        any
	ProcessorErr           error
	TTL                    time.Duration
	ExpireAt               int64
	DeferredDeleteVersion  *Version
	ConflictCtx            *ConflictResolution
	CommitHappened         bool
}

// innerUpdate is the atomic replicated/partitioned write: the
// conflict-resolution / version-check / transform / commit pipeline,
// numbered step by step below.
func (c *Cell) innerUpdate(ctx context.Context, args UpdateArgs) (UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkObsolete(); err != nil {
		return UpdateResult{}, err
	}

	// Step 1: optionally unswap if new.
	if c.isNew() {
		if _, err := c.unswap(true, true); err != nil {
			return UpdateResult{}, err
		}
	}

	old, hasOld := c.materialize(true)
	newVer := args.NewVersion

	// Step 2/3: conflict resolution or plain version check.
	var conflictCtx *ConflictResolution
	writeObj := args.WriteObj
	conflictVer := args.ConflictVersion

	if args.ConflictResolve && c.conflictResolver != nil {
		prospective := writeObj
		res := c.conflictResolver.Resolve(old, prospective, c.version, newVer, args.VerCheck)
		conflictCtx = &res
		switch res.Outcome {
		case ConflictUseOld:
			if args.VerCheck && args.SameDataCenter && CompareVersions(c.version, newVer) == 0 &&
				c.store != nil && c.store.WriteThrough() && args.Primary {
				if err := c.store.PutToStore(ctx, 0, c.key, old, c.version); err != nil {
					return UpdateResult{}, wrapStoreErr(err)
				}
			}
			return UpdateResult{Success: false, OldValue: old, ConflictCtx: conflictCtx}, nil
		case ConflictMerge:
			writeObj = res.MergedValue
			conflictVer = nil
		case ConflictUseNew:
			// proceed with writeObj as-is.
		}
	} else if args.VerCheck {
		cmp := CompareVersions(c.version, newVer)
		if cmp >= 0 {
			if cmp == 0 && c.store != nil && c.store.WriteThrough() && args.Primary && args.SameDataCenter {
				if err := c.store.PutToStore(ctx, 0, c.key, old, c.version); err != nil {
					return UpdateResult{}, wrapStoreErr(err)
				}
			}
			return UpdateResult{Success: false, OldValue: old}, nil
		}
	}
	// Without ver_check the caller asserts newVer >= c.version monotonically;
	// the core does not re-validate that assertion here.

	// Step 4: load old value via read-through if configured for
	// TRANSFORM or loadPreviousValue.
	if !hasOld && c.store != nil && c.store.ReadThrough() &&
		(args.Op == OpTransform || c.store.LoadPreviousValue()) {
		if loaded, ok, err := c.store.LoadFromStore(ctx, 0, c.key); err == nil && ok {
			old, hasOld = loaded, true
			ttl := c.expiryPolicy.ForCreate()
			expireAt := int64(0)
			if ttl > 0 && ttl != TTLNotChanged {
				expireAt = time.Now().Add(ttl).UnixNano()
			}
			c.setTTLAndExpire(ttl, expireAt)
			_ = c.setValue(&Value{Obj: loaded})
			c.version = c.versionSvcNextForLoad()
		}
	}

	// Step 5: filter, re-evaluated under the lock.
	if args.Filter != nil && !args.Filter(old, hasOld) {
		if ttl := c.expiryPolicy.ForAccess(); ttl != TTLNotChanged {
			c.applyAccessTTL(ttl)
		}
		return UpdateResult{Success: false, OldValue: old, ConflictCtx: conflictCtx}, nil
	}

	op := args.Op
	var procResult any
	var procErr error

	// Step 6: TRANSFORM.
	if op == OpTransform {
		entry := &MutableEntry{Key: c.key, oldVal: old, hasOld: hasOld}
		procResult, procErr = args.Processor.Process(entry)
		if !entry.modified {
			if ttl := c.expiryPolicy.ForAccess(); ttl != TTLNotChanged {
				c.applyAccessTTL(ttl)
			}
			return UpdateResult{Success: false, OldValue: old, ProcessorResult: procResult, ProcessorErr: procErr, ConflictCtx: conflictCtx}, nil
		}
		// Step 7: transform with null output degrades to DELETE.
		if entry.removed {
			op = OpDelete
		} else {
			op = OpUpdate
			writeObj = entry.newVal
		}
	}

	// Step 8: TTL/expire resolution.
	ttl, expireAt := c.resolveUpdateTTL(args, conflictCtx, hasOld)
	// A conflict resolver's TTL is taken as given; only a zero TTL from the
	// caller or the expiry policy turns the update into a delete.
	if ttl == TTLZero && conflictCtx == nil {
		op = OpDelete
	}

	// Step 9: interceptor.
	if op == OpDelete {
		cancel, interceptorVal := false, any(nil)
		if c.interceptor != nil {
			cancel, interceptorVal = c.interceptor.OnBeforeRemove(c.key, old)
		}
		if cancel {
			return UpdateResult{Success: false, OldValue: interceptorVal, ConflictCtx: conflictCtx}, nil
		}
	} else {
		if c.interceptor != nil {
			v, ok := c.interceptor.OnBeforePut(c.key, old, writeObj)
			if !ok {
				return UpdateResult{Success: false, OldValue: old, ConflictCtx: conflictCtx}, nil
			}
			writeObj = v
		}
	}

	// Step 10: commit.
	if c.store != nil && c.store.WriteThrough() {
		if op == OpDelete {
			if err := c.store.RemoveFromStore(ctx, 0, c.key); err != nil {
				return UpdateResult{}, wrapStoreErr(err)
			}
		} else if err := c.store.PutToStore(ctx, 0, c.key, writeObj, newVer); err != nil {
			return UpdateResult{}, wrapStoreErr(err)
		}
	}

	var deferredVer *Version
	if op == OpDelete {
		if c.indexMgr != nil {
			_ = c.indexMgr.RemoveIndex(c.key)
		}
		c.value.clear()
		c.version = newVer
		c.variant.ClearReaders(0, true)
		if c.deferredDeleteEnabled {
			c.setTombstone()
			v := newVer
			deferredVer = &v
		} else {
			c.markObsolete0(newVer)
		}
		if c.eventBus != nil && c.eventBus.IsRecordable(EventRemoved) {
			c.eventBus.AddEvent(EventRecord{
				Partition: c.variant.Partition(), Key: c.key, Type: EventRemoved,
				OldVal: old, HasOld: hasOld, NewVersion: newVer,
				SubjectID: args.SubjectID, TaskName: args.TaskName,
			})
		}
	} else {
		if c.state == stateNew {
			c.state = stateLive
		}
		c.setTTLAndExpire(ttl, expireAt)
		if c.indexMgr != nil {
			if err := c.indexMgr.StoreIndex(c.key, writeObj, newVer, expireAt); err != nil {
				return UpdateResult{}, wrapIndexErr(err)
			}
		}
		if err := c.setValue(&Value{Obj: writeObj}); err != nil {
			return UpdateResult{}, err
		}
		c.version = newVer
		c.clearTombstone()
		if c.eventBus != nil {
			if args.Op == OpTransform && c.eventBus.IsRecordable(EventRead) {
				c.eventBus.AddEvent(EventRecord{Key: c.key, Type: EventRead, NewVal: old, HasNew: hasOld, NewVersion: newVer})
			}
			if c.eventBus.IsRecordable(EventPut) {
				c.eventBus.AddEvent(EventRecord{
					Partition: c.variant.Partition(), Key: c.key, Type: EventPut,
					NewVal: writeObj, HasNew: true, OldVal: old, HasOld: hasOld,
					NewVersion: newVer, SubjectID: args.SubjectID, TaskName: args.TaskName,
					TransformClosureClass: args.TransformClass,
				})
			}
		}
	}

	if c.dr != nil {
		_ = c.dr.Replicate(c.key, writeObj, ttl, expireAt, conflictVer, args.DRType)
	}

	if (args.Primary || args.DRType == DRBackup) && c.cq != nil {
		c.cq.OnEntryUpdated(c.key, writeObj, old, args.DRType == DRPreload)
	}
	if c.evictions != nil {
		c.evictions.Touch(c, args.TopologyVersion)
	}

	return UpdateResult{
		Success: true, OldValue: old, NewValue: writeObj,
		ProcessorResult: procResult, ProcessorErr: procErr,
		TTL: ttl, ExpireAt: expireAt, DeferredDeleteVersion: deferredVer,
		ConflictCtx: conflictCtx, CommitHappened: true,
	}, nil
}

func (c *Cell) versionSvcNextForLoad() Version {
	if c.versionSvc != nil {
		return c.versionSvc.NextForLoad(c.version)
	}
	return c.version
}

// resolveUpdateTTL implements innerUpdate step 8.
func (c *Cell) resolveUpdateTTL(args UpdateArgs, conflictCtx *ConflictResolution, hasOld bool) (time.Duration, int64) {
	if conflictCtx != nil {
		return conflictCtx.TTL, conflictCtx.ExpireAt
	}
	if args.ExplicitTTL != nil {
		ttl := *args.ExplicitTTL
		expireAt := int64(0)
		if args.ExplicitExpire != nil {
			expireAt = *args.ExplicitExpire
		} else if ttl > 0 {
			expireAt = time.Now().Add(ttl).UnixNano()
		}
		return ttl, expireAt
	}
	if c.expiryPolicy != nil {
		var ttl time.Duration
		if hasOld {
			ttl = c.expiryPolicy.ForUpdate()
		} else {
			ttl = c.expiryPolicy.ForCreate()
		}
		switch ttl {
		case TTLNotChanged:
			return c.ttl(), c.expireTime()
		case TTLZero:
			return TTLZero, time.Now().UnixNano()
		case TTLEternal:
			return TTLEternal, 0
		default:
			return ttl, time.Now().Add(ttl).UnixNano()
		}
	}
	return c.ttl(), c.expireTime()
}

// poke updates the value in place for maintenance callers. It refreshes
// the index under the next version and deliberately bypasses the
// interceptor: a poke is not a user-visible put.
func (c *Cell) poke(v any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkObsolete(); err != nil {
		return nil, err
	}

	old, _ := c.materialize(true)
	ver := c.version
	if c.versionSvc != nil {
		ver = c.versionSvc.Next()
	}
	if c.indexMgr != nil {
		if err := c.indexMgr.StoreIndex(c.key, v, ver, c.expireTime()); err != nil {
			return nil, wrapIndexErr(err)
		}
	}
	if err := c.setValue(&Value{Obj: v}); err != nil {
		return nil, err
	}
	c.version = ver
	return old, nil
}

// initialValue installs a value only if the cell is new (or deleted and
// preload is not requested). It fires preload/update notifications and
// does not advance the version (load semantics) unless no version was
// supplied.
func (c *Cell) initialValue(v any, ver Version, ttl time.Duration, expireAt int64, preload bool, topVer uint64, drType DRType) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkObsolete(); err != nil {
		return false, err
	}

	isNew := c.isNew()
	if !isNew && !(c.deleted && !preload) {
		return false, nil
	}

	if c.state == stateNew {
		c.state = stateLive
	}
	c.setTTLAndExpire(ttl, expireAt)
	val, isWrapped := v.(*Value)
	if !isWrapped {
		val = &Value{Obj: v}
	}
	if err := c.setValue(val); err != nil {
		return false, err
	}
	if ver.IsZero() {
		if c.versionSvc != nil {
			c.version = c.versionSvc.Next()
		}
	} else {
		c.version = ver
	}
	c.clearTombstone()
	if c.indexMgr != nil {
		_ = c.indexMgr.StoreIndex(c.key, v, c.version, expireAt)
	}
	if c.cq != nil {
		c.cq.OnEntryUpdated(c.key, v, nil, preload)
	}
	if c.evictions != nil {
		c.evictions.Touch(c, topVer)
	}
	return true, nil
}

// initialValueFromSwap is the swap-entry variant of initialValue: it
// installs a value recovered from the swap tier, carrying over the
// entry's version, TTL, and expire time.
func (c *Cell) initialValueFromSwap(entry SwapEntry, preload bool, topVer uint64, drType DRType) (bool, error) {
	v := entry.Value
	if v == nil && c.marshaller != nil && entry.Bytes != nil {
		if obj, err := c.marshaller.Unmarshal(entry.Tag, entry.Bytes); err == nil {
			v = obj
		}
	}
	if v == nil {
		v = &Value{Tag: entry.Tag, Bytes: entry.Bytes}
	}
	return c.initialValue(v, entry.Version, entry.TTL, entry.ExpireAt, preload, topVer, drType)
}

// versionedValue swaps the value only if curVer matches the cell's
// current version; it issues a new version if none was supplied.
func (c *Cell) versionedValue(v any, curVer Version, newVer *Version) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkObsolete(); err != nil {
		return false, err
	}
	if CompareVersions(c.version, curVer) != 0 {
		return false, nil
	}

	ver := c.version
	if newVer != nil {
		ver = *newVer
	} else if c.versionSvc != nil {
		ver = c.versionSvc.Next()
	}
	if err := c.setValue(&Value{Obj: v}); err != nil {
		return false, err
	}
	c.version = ver
	return true, nil
}

// invalidate clears the value without obsoleting the cell, if curVer
// matches. It bumps the version and releases swap/the index.
func (c *Cell) invalidate(curVer Version, newVer Version) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkObsolete(); err != nil {
		return false, err
	}
	if CompareVersions(c.version, curVer) != 0 {
		return false, nil
	}

	c.value.clear()
	c.version = newVer
	if c.swap != nil {
		_ = c.swap.Remove(c.key)
	}
	if c.indexMgr != nil {
		_ = c.indexMgr.RemoveIndex(c.key)
	}
	c.variant.OnInvalidate()
	return true, nil
}

// clear attempts to obsolete the cell. The filter check, the reader check
// and the obsolete attempt run under a single hold of the cell lock.
// It fails gracefully if the cell still has readers unless readers=true.
func (c *Cell) clear(ver Version, readers bool, filter Filter) (bool, error) {
	for {
		c.mu.Lock()
		if err := c.checkObsolete(); err != nil {
			c.mu.Unlock()
			return false, nil
		}
		old, hasOld := c.materialize(true)
		if filter != nil && !filter(old, hasOld) {
			c.mu.Unlock()
			return false, nil
		}
		if !readers && c.variant.HasReaders() {
			c.mu.Unlock()
			return false, nil
		}
		before := c.version
		ok := c.markObsolete(ver, true)
		if !ok {
			c.mu.Unlock()
			return false, nil
		}
		if c.version != before {
			// markObsolete leaves the version as it is, so this branch is
			// not reached while the lock is held throughout.
			c.mu.Unlock()
			continue
		}
		c.mu.Unlock()
		return true, nil
	}
}

// onTTLExpired is invoked by the TTL sweeper. If the cell is expired it
// either tombstones it under deferred-delete or marks it obsolete,
// emitting EXPIRED and notifying continuous queries, unless the cell is
// already tombstoned with no value, in which case no EXPIRED is emitted.
func (c *Cell) onTTLExpired(obsoleteVer Version) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkObsolete(); err != nil {
		return false, nil
	}

	now := time.Now().UnixNano()
	expired := c.expireTime() > 0 && c.expireTime() <= now
	if !expired {
		return false, nil
	}

	// A tombstoned cell with no value is finalized silently: obsolete at
	// the supplied version, no EXPIRED event (there is no value to report).
	if c.deleted && !c.hasValueUnlocked() {
		c.markObsolete0(obsoleteVer)
		return true, nil
	}

	old, hasOld := c.materialize(true)
	c.value.clear()

	if c.deferredDeleteEnabled {
		c.setTombstone()
	} else {
		c.markObsolete(obsoleteVer, true)
	}

	if c.eventBus != nil && c.eventBus.IsRecordable(EventExpired) {
		c.eventBus.AddEvent(EventRecord{Key: c.key, Type: EventExpired, OldVal: old, HasOld: hasOld, NewVersion: obsoleteVer})
	}
	if c.cq != nil {
		c.cq.OnEntryExpired(c.key, old)
	}

	return true, nil
}

// evictInternal marks the cell obsolete under a filter check; if swap is
// true it writes to the swap tier first.
func (c *Cell) evictInternal(swap bool, obsoleteVer Version, filter Filter) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkObsolete(); err != nil {
		return false, nil
	}
	old, hasOld := c.materialize(true)
	if filter != nil && !filter(old, hasOld) {
		return false, nil
	}
	if swap {
		if err := c.doSwap(); err != nil {
			return false, err
		}
	}
	return c.markObsolete(obsoleteVer, !swap), nil
}

// compact is a no-op unless the cell is expired or empty, in which case
// it clears. Re-serializing non-expired values to reclaim slack remains a
// possible future enhancement.
func (c *Cell) compact(filter Filter) (bool, error) {
	c.mu.Lock()
	now := time.Now().UnixNano()
	expired := c.expireTime() > 0 && c.expireTime() <= now
	empty := !c.hasValueUnlocked()
	ver := c.version
	c.mu.Unlock()

	if !expired && !empty {
		return false, nil
	}
	return c.clear(ver, false, filter)
}
