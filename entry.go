package gridentry

import (
	"fmt"
	"sync"
	"time"
)

// Variant supplies the handful of behaviors that differ between the
// local, DHT, and near cell families. The core never dispatches through
// it on the hot path except for these named hooks.
type Variant interface {
	IsDHT() bool
	IsNear() bool
	IsReplicated() bool
	Partition() int
	HasReaders() bool
	ClearReaders(originator TxID, allReaders bool)
	RecordNodeID(node uint32)
	OnInvalidate()
}

// LocalVariant is the plain, non-distributed cell: no readers, no
// partitioning, replication hooks are no-ops. It is the default Variant
// and is what a single-node or test cache uses.
type LocalVariant struct{}

func (LocalVariant) IsDHT() bool             { return false }
func (LocalVariant) IsNear() bool            { return false }
func (LocalVariant) IsReplicated() bool      { return false }
func (LocalVariant) Partition() int          { return 0 }
func (LocalVariant) HasReaders() bool        { return false }
func (LocalVariant) ClearReaders(TxID, bool) {}
func (LocalVariant) RecordNodeID(uint32)     {}
func (LocalVariant) OnInvalidate()           {}

// Cell is the per-key state machine: the lock, value holder, version
// record, TTL tracker, and event source for one logical key. Every
// non-trivial read or write acquires mu; no operation nested inside
// another re-enters it.
type Cell struct {
	mu sync.Mutex

	key   Key
	value valueSlot

	version           Version
	startVersionOrder uint64
	localNodeOrder    uint32

	extras *extras

	deleted   bool
	unswapped bool
	detached  bool
	internal  bool

	state state

	// next0/next1 are bucket-chain links for an owning map; the cell never
	// writes them, and entrymap.Map (a plain Go map) does not use them.
	next0 *Cell
	next1 *Cell

	// Collaborators, injected at construction. All are externally
	// thread-safe and may be called under the cell's lock.
	versionSvc       VersionService
	store            Store
	swap             Swap
	allocator        OffheapAllocator
	marshaller       Marshaller
	eventBus         EventBus
	cq               ContinuousQueries
	interceptor      Interceptor
	dr               DRReplicator
	expiryPolicy     ExpiryPolicy
	conflictResolver ConflictResolver
	ttlTracker       TTLTracker
	indexMgr         IndexManager
	txMgr            TxManager
	deferredQueue    DeferredDeleteQueue
	evictions        Evictions
	variant          Variant

	offHeapValuesOnly     bool
	eagerTTL              bool
	deferredDeleteEnabled bool
	isIGFSDataCache       bool
	sizeAccountant        SizeAccountant
}

// Evictions is the eviction-LRU touch collaborator consumed after
// innerReload and after any "completed" read/write the caller marks for
// LRU accounting.
type Evictions interface {
	Touch(c *Cell, topVer uint64)
}

// Config bundles the collaborators and options a Cell is built with. Zero
// values pick the sensible local defaults (NoopInterceptor,
// EternalExpiryPolicy, AlwaysNewResolver, LocalVariant).
type Config struct {
	VersionSvc       VersionService
	Store            Store
	Swap             Swap
	Allocator        OffheapAllocator
	Marshaller       Marshaller
	EventBus         EventBus
	ContinuousQuery  ContinuousQueries
	Interceptor      Interceptor
	DR               DRReplicator
	ExpiryPolicy     ExpiryPolicy
	ConflictResolver ConflictResolver
	TTLTracker       TTLTracker
	IndexManager     IndexManager
	TxManager        TxManager
	DeferredQueue    DeferredDeleteQueue
	Evictions        Evictions
	Variant          Variant

	OffHeapValuesOnly     bool
	EagerTTL              bool
	DeferredDeleteEnabled bool
	IsIGFSDataCache       bool
	SizeAccountant        SizeAccountant

	LocalNodeOrder uint32
}

func (cfg *Config) withDefaults() *Config {
	out := *cfg
	if out.Interceptor == nil {
		out.Interceptor = NoopInterceptor{}
	}
	if out.ExpiryPolicy == nil {
		out.ExpiryPolicy = EternalExpiryPolicy{}
	}
	if out.ConflictResolver == nil {
		out.ConflictResolver = AlwaysNewResolver{}
	}
	if out.DR == nil {
		out.DR = NoopReplicator{}
	}
	if out.Variant == nil {
		out.Variant = LocalVariant{}
	}
	return &out
}

// New constructs a fresh cell for key. It assigns the first version,
// installs the initial value (nil means "no value yet, just the slot"),
// and sets TTL/expire. The returned cell is in state New until its first
// successful update.
func New(key Key, cfg Config, initial *Value, ttl time.Duration) *Cell {
	full := cfg.withDefaults()
	c := &Cell{
		key:                   key,
		localNodeOrder:        full.LocalNodeOrder,
		versionSvc:            full.VersionSvc,
		store:                 full.Store,
		swap:                  full.Swap,
		allocator:             full.Allocator,
		marshaller:            full.Marshaller,
		eventBus:              full.EventBus,
		cq:                    full.ContinuousQuery,
		interceptor:           full.Interceptor,
		dr:                    full.DR,
		expiryPolicy:          full.ExpiryPolicy,
		conflictResolver:      full.ConflictResolver,
		ttlTracker:            full.TTLTracker,
		indexMgr:              full.IndexManager,
		txMgr:                 full.TxManager,
		deferredQueue:         full.DeferredQueue,
		evictions:             full.Evictions,
		variant:               full.Variant,
		offHeapValuesOnly:     full.OffHeapValuesOnly,
		eagerTTL:              full.EagerTTL,
		deferredDeleteEnabled: full.DeferredDeleteEnabled,
		isIGFSDataCache:       full.IsIGFSDataCache,
		sizeAccountant:        full.SizeAccountant,
		state:                 stateNew,
	}

	v := Version{NodeOrder: full.LocalNodeOrder}
	if full.VersionSvc != nil {
		v = full.VersionSvc.Next()
	}
	c.version = v
	c.startVersionOrder = v.Order
	// The construction version is issued by the local node, so its node
	// order is the local node's order; isNew depends on the two agreeing
	// unless the caller pinned one explicitly.
	if full.LocalNodeOrder == 0 {
		c.localNodeOrder = v.NodeOrder
	}

	if initial != nil {
		_ = c.setValue(initial)
	}
	if ttl > 0 {
		c.setTTLAndExpire(ttl, time.Now().Add(ttl).UnixNano())
	}

	return c
}

// memorySize returns 77 + extras_size + key_bytes + max(1, value_bytes).
// The constant encodes the fixed on-heap footprint and must be recomputed
// when fields are added.
func (c *Cell) memorySize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memorySizeLocked()
}

func (c *Cell) memorySizeLocked() int {
	valBytes := 1
	if b, _, err := c.valueBytesUnlocked(); err == nil && len(b) > valBytes {
		valBytes = len(b)
	}
	return 77 + c.extrasMemorySize() + len(c.key.Bytes) + valBytes
}

// MemorySize is the exported, locking form of memorySize for callers
// outside the package (e.g. entrymap accounting).
func (c *Cell) MemorySize() int { return c.memorySize() }

// Key returns the cell's immutable key.
func (c *Cell) Key() Key { return c.key }

// String renders the cell for error-level log context: key, lifecycle
// state, version, and the tombstone flag.
func (c *Cell) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("Cell [key=%q, state=%s, ver=%d.%d, deleted=%t]",
		c.key.Bytes, c.state, c.version.Order, c.version.NodeOrder, c.deleted)
}
