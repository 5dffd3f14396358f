// Package txn implements a minimal in-process TxManager/Tx pair so the
// core can be exercised in transactional mode without a full distributed
// transaction coordinator. It covers exactly the slice the cell consults:
// a write version, a per-key write-set, and transaction state.
package txn

import (
	"sync"
	"time"

	"github.com/shaj13/gridentry"
)

// Transaction is a minimal gridentry.Tx: a write version plus a bounded
// per-key write-set recorded as the transaction touches entries.
type Transaction struct {
	mu          sync.Mutex
	id          gridentry.TxID
	state       gridentry.TxState
	writeVer    gridentry.Version
	hasWriteVer bool
	writes      map[string]any
	ttls        map[string]writeTTL
}

type writeTTL struct {
	ttl       time.Duration
	expireAt  int64
	hasExpire bool
}

func keyStr(k gridentry.Key) string { return string(k.Bytes) }

// Begin starts a new transaction with the given id.
func Begin(id gridentry.TxID) *Transaction {
	return &Transaction{id: id, state: gridentry.TxActive, writes: make(map[string]any), ttls: make(map[string]writeTTL)}
}

func (t *Transaction) ID() gridentry.TxID { return t.id }
func (t *Transaction) State() gridentry.TxState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetWriteVersion assigns the commit version this transaction will apply.
func (t *Transaction) SetWriteVersion(v gridentry.Version) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeVer = v
	t.hasWriteVer = true
}

func (t *Transaction) WriteVersion() (gridentry.Version, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writeVer, t.hasWriteVer
}

// Put records val as the pending write for key within this transaction.
func (t *Transaction) Put(key gridentry.Key, val any, ttl time.Duration, expireAt int64, hasExpire bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes[keyStr(key)] = val
	t.ttls[keyStr(key)] = writeTTL{ttl: ttl, expireAt: expireAt, hasExpire: hasExpire}
}

func (t *Transaction) Entry(key gridentry.Key) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.writes[keyStr(key)]
	return v, ok
}

// Peek implements gridentry.Tx: within this minimal manager it is
// equivalent to Entry, since there is no separate near/partitioned split.
func (t *Transaction) Peek(key gridentry.Key, failFast bool) (any, error) {
	v, ok := t.Entry(key)
	if !ok {
		return nil, gridentry.ErrNoValue
	}
	return v, nil
}

func (t *Transaction) EntryExpireTime(key gridentry.Key) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tt, ok := t.ttls[keyStr(key)]
	if !ok || !tt.hasExpire {
		return 0, false
	}
	return tt.expireAt, true
}

func (t *Transaction) EntryTTL(key gridentry.Key) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tt, ok := t.ttls[keyStr(key)]
	if !ok || !tt.hasExpire {
		return 0, false
	}
	return tt.ttl, true
}

// Commit marks the transaction committed.
func (t *Transaction) Commit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = gridentry.TxCommitted
}

// Rollback marks the transaction rolled back.
func (t *Transaction) Rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = gridentry.TxRolledBack
}

// Manager is a minimal in-process TxManager keyed by version, matching the
// narrow tx(ver)/localTx()/localTxx()/userTx() contract the core consults.
type Manager struct {
	mu    sync.RWMutex
	byVer map[gridentry.Version]*Transaction
	local *Transaction
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{byVer: make(map[gridentry.Version]*Transaction)}
}

// Register associates tx with its write version so Tx(ver) can find it
// later, e.g. during conflict resolution of a concurrent writer.
func (m *Manager) Register(tx *Transaction) {
	v, ok := tx.WriteVersion()
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byVer[v] = tx
}

// SetLocal designates tx as the thread-local transaction LocalTx/LocalTxx
// return.
func (m *Manager) SetLocal(tx *Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.local = tx
}

func (m *Manager) Tx(ver gridentry.Version) (gridentry.Tx, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.byVer[ver]
	if !ok {
		return nil, false
	}
	return tx, true
}

func (m *Manager) LocalTx() (gridentry.Tx, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.local == nil {
		return nil, false
	}
	return m.local, true
}

func (m *Manager) LocalTxx() (gridentry.Tx, bool) { return m.LocalTx() }

func (m *Manager) UserTx() (gridentry.Tx, bool) { return m.LocalTx() }
