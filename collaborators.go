package gridentry

import (
	"context"
	"time"
)

// Key is the opaque cache key the cell is constructed with: immutable
// bytes plus the precomputed hash the owning map supplies.
type Key struct {
	Bytes []byte
	Hash  uint32
	// IsIGFSBlock marks a key that addresses an IGFS data-cache block,
	// whose value-size deltas are reported to the size accountant.
	IsIGFSBlock bool
}

// DRType tags the origin of a replicated update.
type DRType uint8

const (
	DRNone DRType = iota
	DRPrimary
	DRBackup
	DRPreload
)

// EventType enumerates the four event kinds the core emits.
type EventType uint8

const (
	EventPut EventType = iota
	EventRemoved
	EventRead
	EventExpired
)

// EventRecord is the event wire format: partition, key, source node,
// txId, newVersion, type, new/old values and their presence, plus
// subject/task identifiers for audit.
type EventRecord struct {
	Partition             int
	Key                   Key
	SourceNode            uint32
	TxID                  uint64
	NewVersion            Version
	Type                  EventType
	NewVal                any
	HasNew                bool
	OldVal                any
	HasOld                bool
	SubjectID             uint64
	TransformClosureClass string
	TaskName              string
}

// EventBus is the outbound event-emission collaborator.
type EventBus interface {
	AddEvent(rec EventRecord)
	IsRecordable(t EventType) bool
}

// ContinuousQueries is the continuous-query notifier.
type ContinuousQueries interface {
	OnEntryUpdated(key Key, newVal, oldVal any, preload bool)
	OnEntryExpired(key Key, expiredVal any)
}

// Interceptor is the user-supplied before/after put/remove hook.
type Interceptor interface {
	OnBeforePut(key Key, oldVal, newVal any) (any, bool)
	OnBeforeRemove(key Key, oldVal any) (cancel bool, value any)
	OnAfterPut(key Key, val any)
	OnAfterRemove(key Key, val any)
}

// NoopInterceptor passes every value through unchanged.
type NoopInterceptor struct{}

func (NoopInterceptor) OnBeforePut(_ Key, _, newVal any) (any, bool) { return newVal, true }
func (NoopInterceptor) OnBeforeRemove(_ Key, _ any) (bool, any)       { return false, nil }
func (NoopInterceptor) OnAfterPut(Key, any)                           {}
func (NoopInterceptor) OnAfterRemove(Key, any)                        {}

// DRReplicator is the cross-data-center replication dispatcher.
type DRReplicator interface {
	Replicate(key Key, val any, ttl time.Duration, expireAt int64, conflictVer *Version, drType DRType) error
}

// NoopReplicator discards every replication request; used when DR is
// disabled.
type NoopReplicator struct{}

func (NoopReplicator) Replicate(Key, any, time.Duration, int64, *Version, DRType) error { return nil }

// MVCCCandidates is the per-cell lock-candidate list.
type MVCCCandidates interface {
	AnyOwner() bool
	IsEmpty(exclude ...Version) bool
	HasCandidate(v Version) bool
	LocalCandidate(thread uint64) (Version, bool)
	LocalOwner() (Version, bool)
	IsLocallyOwned(v Version) bool
	IsLocallyOwnedByThread(v Version, thread uint64) bool
	IsOwnedBy(v Version) bool
	Candidate(v Version) (any, bool)
	RemoteCandidate(node uint32, thread uint64) (any, bool)
	// PermitsObsoletion reports whether the list allows the cell carrying
	// it to become obsolete at version v.
	PermitsObsoletion(v Version) bool
}

// ExpiryPolicy computes TTLs for entry creation, update, and access. The
// sentinel durations below carry meaning distinct from an ordinary TTL
// value.
type ExpiryPolicy interface {
	ForCreate() time.Duration
	ForUpdate() time.Duration
	ForAccess() time.Duration
}

// TTLNotChanged means "leave the current TTL/expire time untouched".
const TTLNotChanged time.Duration = -2

// EternalExpiryPolicy never sets a TTL; every call returns TTLNotChanged.
type EternalExpiryPolicy struct{}

func (EternalExpiryPolicy) ForCreate() time.Duration { return TTLNotChanged }
func (EternalExpiryPolicy) ForUpdate() time.Duration { return TTLNotChanged }
func (EternalExpiryPolicy) ForAccess() time.Duration { return TTLNotChanged }

// ConflictOutcome is the verdict a ConflictResolver returns.
type ConflictOutcome uint8

const (
	ConflictUseOld ConflictOutcome = iota
	ConflictUseNew
	ConflictMerge
)

// ConflictResolution is the resolver's full answer.
type ConflictResolution struct {
	Outcome     ConflictOutcome
	MergedValue any
	TTL         time.Duration
	ExpireAt    int64
}

// ConflictResolver arbitrates between a cell's current value and an
// incoming DR-tagged write.
type ConflictResolver interface {
	Resolve(oldVal, newVal any, oldVer, newVer Version, verCheck bool) ConflictResolution
}

// AlwaysNewResolver always accepts the incoming value; used when DR
// conflict resolution is configured but no custom policy is supplied.
type AlwaysNewResolver struct{}

func (AlwaysNewResolver) Resolve(_, newVal any, _, _ Version, _ bool) ConflictResolution {
	return ConflictResolution{Outcome: ConflictUseNew, MergedValue: newVal}
}

// TTLTracker is the eager-TTL sweep registry: cells with an expire time
// register here while eager TTL is configured and the cell is live.
type TTLTracker interface {
	AddTrackedEntry(c *Cell)
	RemoveTrackedEntry(c *Cell)
}

// IndexManager is the query/index manager.
type IndexManager interface {
	StoreIndex(key Key, val any, ver Version, expireAt int64) error
	RemoveIndex(key Key) error
}

// Store is the persistent read-through/write-through collaborator.
type Store interface {
	LoadFromStore(ctx context.Context, tx TxID, key Key) (any, bool, error)
	PutToStore(ctx context.Context, tx TxID, key Key, val any, ver Version) error
	RemoveFromStore(ctx context.Context, tx TxID, key Key) error
	IsLocalStore() bool
	ReadThrough() bool
	WriteThrough() bool
	LoadPreviousValue() bool
}

// Swap is the swap/off-heap tier bridge.
type Swap interface {
	Read(key Key, peekOnly, includeOffheap, includeSwap bool) (SwapEntry, bool, error)
	ReadAndRemove(key Key) (SwapEntry, bool, error)
	ReadOffheapPointer(key Key) (SwapEntry, bool, error)
	Write(entry SwapWriteRequest) error
	Remove(key Key) error
	RemoveOffheap(key Key) error
	OffheapEvictionEnabled() bool
	EnableOffheapEviction(key Key) error
}

// SwapEntry is a value promoted from the swap/off-heap tier.
type SwapEntry struct {
	Value    any
	Bytes    []byte
	Tag      TypeTag
	Version  Version
	TTL      time.Duration
	ExpireAt int64
	OffHeap  bool
	Offset   uint64
}

// SwapWriteRequest is the tuple the core supplies to the swap manager.
// The tier's on-disk layout is its own business; this tuple is the whole
// contract.
type SwapWriteRequest struct {
	Key         Key
	Bytes       []byte
	Tag         TypeTag
	Version     Version
	TTL         time.Duration
	ExpireAt    int64
	KeyLoaderID uint32
	ValLoaderID uint32
}

// OffheapAllocator is the unsafe-memory allocator collaborator.
type OffheapAllocator interface {
	PutOffHeap(bytes []byte, tag TypeTag) uint64
	Get(ptr uint64) ([]byte, TypeTag)
	RemoveOffHeap(ptr uint64)
}

// TxID identifies a transaction for store/event bookkeeping; zero means
// "no transaction" (atomic-mode operations).
type TxID uint64

// TxState mirrors the small slice of transaction-manager behavior the
// core consults.
type TxState uint8

const (
	TxNone TxState = iota
	TxActive
	TxCommitted
	TxRolledBack
)

// Tx is the narrow slice of a transaction the cell consults: its write
// version, and (for peek/wrap) its write-set.
type Tx interface {
	ID() TxID
	State() TxState
	WriteVersion() (Version, bool)
	Entry(key Key) (any, bool)
	Peek(key Key, failFast bool) (any, error)
	EntryExpireTime(key Key) (int64, bool)
	EntryTTL(key Key) (time.Duration, bool)
}

// TxManager is the outbound transaction-manager collaborator: tx(ver),
// localTx(), localTxx(), userTx().
type TxManager interface {
	Tx(ver Version) (Tx, bool)
	LocalTx() (Tx, bool)
	LocalTxx() (Tx, bool)
	UserTx() (Tx, bool)
}
