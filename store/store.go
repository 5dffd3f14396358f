// Package store implements an in-memory read-through/write-through
// persistence backend: the narrow key/value surface the cache consults on
// a miss and writes behind on every put/remove.
package store

import (
	"context"
	"sync"

	"github.com/shaj13/gridentry"
)

// Backend is a minimal in-memory CacheStore, useful for tests and the demo
// binary. A real deployment would back this with a database driver; this
// package exists to give the core something concrete to read/write through.
type Backend struct {
	mu           sync.RWMutex
	data         map[string]entry
	readThrough  bool
	writeThrough bool
	loadPrevious bool
	local        bool
}

type entry struct {
	val any
	ver gridentry.Version
}

// Option configures a Backend.
type Option func(*Backend)

// WithReadThrough toggles ReadThrough().
func WithReadThrough(on bool) Option { return func(b *Backend) { b.readThrough = on } }

// WithWriteThrough toggles WriteThrough().
func WithWriteThrough(on bool) Option { return func(b *Backend) { b.writeThrough = on } }

// WithLoadPreviousValue toggles LoadPreviousValue().
func WithLoadPreviousValue(on bool) Option { return func(b *Backend) { b.loadPrevious = on } }

// New returns a Backend with read-through and write-through both enabled
// by default.
func New(opts ...Option) *Backend {
	b := &Backend{
		data:         make(map[string]entry),
		readThrough:  true,
		writeThrough: true,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func keyStr(k gridentry.Key) string { return string(k.Bytes) }

// LoadFromStore implements gridentry.Store.
func (b *Backend) LoadFromStore(ctx context.Context, tx gridentry.TxID, key gridentry.Key) (any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.data[keyStr(key)]
	if !ok {
		return nil, false, nil
	}
	return e.val, true, nil
}

// PutToStore implements gridentry.Store.
func (b *Backend) PutToStore(ctx context.Context, tx gridentry.TxID, key gridentry.Key, val any, ver gridentry.Version) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[keyStr(key)] = entry{val: val, ver: ver}
	return nil
}

// RemoveFromStore implements gridentry.Store.
func (b *Backend) RemoveFromStore(ctx context.Context, tx gridentry.TxID, key gridentry.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, keyStr(key))
	return nil
}

func (b *Backend) IsLocalStore() bool      { return b.local }
func (b *Backend) ReadThrough() bool       { return b.readThrough }
func (b *Backend) WriteThrough() bool      { return b.writeThrough }
func (b *Backend) LoadPreviousValue() bool { return b.loadPrevious }

// Len reports how many keys the backend currently holds. Used by tests to
// assert write-through actually reached the backend.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Seed preloads a key/value pair directly, bypassing PutToStore. Useful
// for setting up read-through fixtures in tests.
func (b *Backend) Seed(key gridentry.Key, val any, ver gridentry.Version) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[keyStr(key)] = entry{val: val, ver: ver}
}
