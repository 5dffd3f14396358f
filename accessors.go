package gridentry

import (
	"context"
	"time"
)

// ExpireTime returns the cell's current expire time (unix nanos, 0 means
// eternal), taking the lock. Exposed for collaborators such as the TTL
// tracker that must read it outside the core's own critical sections.
func (c *Cell) ExpireTime() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expireTime()
}

// TTL returns the cell's current TTL.
func (c *Cell) TTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl()
}

// Version returns the cell's current version.
func (c *Cell) Version() Version {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// IsObsolete reports whether the cell has reached its terminal state.
func (c *Cell) IsObsolete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isObsolete()
}

// IsNew reports whether the cell has never been updated since
// construction.
func (c *Cell) IsNew() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isNew()
}

// IsDeleted reports the deferred-delete tombstone flag.
func (c *Cell) IsDeleted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleted
}

// InnerGet is the exported entry point for the innerGet operation.
func (c *Cell) InnerGet(ctx context.Context, opts GetOptions) (InnerGetResult, error) {
	return c.innerGet(ctx, opts)
}

// InnerReload is the exported entry point for innerReload.
func (c *Cell) InnerReload(ctx context.Context, topVer uint64) (ReloadResult, error) {
	return c.innerReload(ctx, topVer)
}

// InnerSet is the exported entry point for innerSet.
func (c *Cell) InnerSet(ctx context.Context, newVal any, opts SetOptions) (SetResult, error) {
	return c.innerSet(ctx, newVal, opts)
}

// InnerRemove is the exported entry point for innerRemove.
func (c *Cell) InnerRemove(ctx context.Context, opts RemoveOptions) (RemoveResult, error) {
	return c.innerRemove(ctx, opts)
}

// InnerUpdateLocal is the exported entry point for innerUpdateLocal.
func (c *Cell) InnerUpdateLocal(ctx context.Context, opts LocalUpdateOptions) (LocalUpdateResult, error) {
	return c.innerUpdateLocal(ctx, opts)
}

// InnerUpdate is the exported entry point for innerUpdate.
func (c *Cell) InnerUpdate(ctx context.Context, args UpdateArgs) (UpdateResult, error) {
	return c.innerUpdate(ctx, args)
}

// Poke is the exported entry point for poke.
func (c *Cell) Poke(v any) (any, error) { return c.poke(v) }

// InitialValue is the exported entry point for initialValue.
func (c *Cell) InitialValue(v any, ver Version, ttl time.Duration, expireAt int64, preload bool, topVer uint64, drType DRType) (bool, error) {
	return c.initialValue(v, ver, ttl, expireAt, preload, topVer, drType)
}

// InitialValueFromSwap is the exported entry point for the swap-entry
// variant of initialValue.
func (c *Cell) InitialValueFromSwap(entry SwapEntry, preload bool, topVer uint64, drType DRType) (bool, error) {
	return c.initialValueFromSwap(entry, preload, topVer, drType)
}

// VersionedValue is the exported entry point for versionedValue.
func (c *Cell) VersionedValue(v any, curVer Version, newVer *Version) (bool, error) {
	return c.versionedValue(v, curVer, newVer)
}

// Invalidate is the exported entry point for invalidate.
func (c *Cell) Invalidate(curVer, newVer Version) (bool, error) {
	return c.invalidate(curVer, newVer)
}

// Clear is the exported entry point for clear.
func (c *Cell) Clear(ver Version, readers bool, filter Filter) (bool, error) {
	return c.clear(ver, readers, filter)
}

// OnTTLExpired is the exported entry point for onTTLExpired.
func (c *Cell) OnTTLExpired(obsoleteVer Version) (bool, error) {
	return c.onTTLExpired(obsoleteVer)
}

// EvictInternal is the exported entry point for evictInternal.
func (c *Cell) EvictInternal(swap bool, obsoleteVer Version, filter Filter) (bool, error) {
	return c.evictInternal(swap, obsoleteVer, filter)
}

// Compact is the exported entry point for compact.
func (c *Cell) Compact(filter Filter) (bool, error) {
	return c.compact(filter)
}

// EvictInBatch is the exported entry point for evictInBatch.
func (c *Cell) EvictInBatch(obsoleteVer Version) (BatchSwapEntry, bool) {
	return c.evictInBatch(obsoleteVer)
}

// Swap is the exported entry point for the swap-out path.
func (c *Cell) Swap() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doSwap()
}

// InstallMVCC attaches a lock-candidate list to the cell's extras record.
// The list gates obsoletion: markObsolete fails while the list holds any
// candidate other than the obsoleting version.
func (c *Cell) InstallMVCC(l MVCCCandidates) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setMVCCList(l)
}

// MVCC returns the attached candidate list, or nil.
func (c *Cell) MVCC() MVCCCandidates {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mvccList()
}

// SetAttribute stores a user attribute on the cell's extras record.
func (c *Cell) SetAttribute(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAttribute(key, v)
}

// Attribute reads a user attribute previously stored with SetAttribute.
func (c *Cell) Attribute(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attribute(key)
}

// MarkObsoleteIfEmpty obsoletes the cell only if it has no value or is
// expired; in deferred-delete mode it instead tombstones the cell and
// enqueues it with the configured deferred-delete queue.
func (c *Cell) MarkObsoleteIfEmpty(v Version) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.markObsoleteIfEmpty(v, time.Now().UnixNano())
}

// MarkObsolete is the exported entry point for markObsolete; it clears the
// value.
func (c *Cell) MarkObsolete(v Version) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.markObsolete(v, true)
}

// Unswap is the exported entry point for unswap.
func (c *Cell) Unswap(ignoreFlags, needValue bool) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unswap(ignoreFlags, needValue)
}
