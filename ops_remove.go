package gridentry

import "context"

// RemoveOptions configures innerRemove.
type RemoveOptions struct {
	Tx              Tx
	Filter          Filter
	SubjectID       uint64
	TaskName        string
	TransformClass  string
	TopologyVersion uint64
	Metrics         Metrics
}

// RemoveResult is innerRemove's outcome.
type RemoveResult struct {
	Success  bool
	OldValue any
	HasOld   bool
}

// innerRemove is the transactional delete mirror of innerSet. Inside the
// lock it clears the index, commits an empty value under a new version,
// strips any off-heap copy, and sets the tombstone under deferred-delete,
// clearing readers for the removing transaction (all readers absent an
// MVCC conflict, otherwise only the originator). It releases the lock and
// write-throughs the removal; in non-deferred-delete mode it then
// re-enters the lock and marks the cell obsolete if it is still at this
// version.
func (c *Cell) innerRemove(ctx context.Context, opts RemoveOptions) (RemoveResult, error) {
	c.mu.Lock()

	if err := c.checkObsolete(); err != nil {
		c.mu.Unlock()
		return RemoveResult{}, err
	}

	old, hasOld := c.materialize(true)
	if opts.Filter != nil && !opts.Filter(old, hasOld) {
		c.mu.Unlock()
		return RemoveResult{Success: false, OldValue: old, HasOld: hasOld}, nil
	}

	if c.indexMgr != nil {
		if err := c.indexMgr.RemoveIndex(c.key); err != nil {
			c.mu.Unlock()
			return RemoveResult{}, wrapIndexErr(err)
		}
	}

	newVer := c.computeWriteVersion(opts.Tx, nil)
	c.value.clear()
	c.version = newVer

	mvccConflict := false
	if m := c.mvccList(); m != nil {
		mvccConflict = m.AnyOwner()
	}
	originator := TxID(0)
	if opts.Tx != nil {
		originator = opts.Tx.ID()
	}
	c.variant.ClearReaders(originator, !mvccConflict)

	c.setTombstone()

	if opts.Metrics != nil {
		opts.Metrics.OnRemove()
	}

	if c.eventBus != nil && c.eventBus.IsRecordable(EventRemoved) {
		c.eventBus.AddEvent(EventRecord{
			Partition: c.variant.Partition(), Key: c.key, Type: EventRemoved,
			OldVal: old, HasOld: hasOld, NewVersion: newVer,
			SubjectID: opts.SubjectID, TaskName: opts.TaskName,
			TransformClosureClass: opts.TransformClass,
		})
	}
	if c.cq != nil {
		c.cq.OnEntryUpdated(c.key, nil, old, false)
	}
	if c.evictions != nil {
		c.evictions.Touch(c, opts.TopologyVersion)
	}

	writeThrough := c.store != nil && c.store.WriteThrough()
	txID := TxID(0)
	if opts.Tx != nil {
		txID = opts.Tx.ID()
	}
	deferredDelete := c.deferredDeleteEnabled

	c.mu.Unlock()

	if writeThrough {
		if err := c.store.RemoveFromStore(ctx, txID, c.key); err != nil {
			return RemoveResult{}, wrapStoreErr(err)
		}
	}

	if !deferredDelete {
		c.mu.Lock()
		if c.version == newVer {
			c.markObsolete0(newVer)
		}
		c.mu.Unlock()
	}

	return RemoveResult{Success: true, OldValue: old, HasOld: hasOld}, nil
}
