package gridentry_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaj13/gridentry"
	"github.com/shaj13/gridentry/store"
)

// recordingBus collects every event the cell emits so tests can assert
// exact emission counts per type.
type recordingBus struct {
	mu     sync.Mutex
	events []gridentry.EventRecord
}

func (b *recordingBus) AddEvent(rec gridentry.EventRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, rec)
}

func (b *recordingBus) IsRecordable(gridentry.EventType) bool { return true }

func (b *recordingBus) count(t gridentry.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (b *recordingBus) last(t gridentry.EventType) (gridentry.EventRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].Type == t {
			return b.events[i], true
		}
	}
	return gridentry.EventRecord{}, false
}

func TestFreshPutThenGetEmitsOnePutAndOneRead(t *testing.T) {
	bus := &recordingBus{}
	versions := gridentry.NewLocalVersionService(1, 0)
	c := gridentry.New(gridentry.Key{Bytes: []byte("A")}, gridentry.Config{
		VersionSvc: versions,
		EventBus:   bus,
	}, nil, 0)
	ctx := context.Background()

	startVer := c.Version()

	setRes, err := c.InnerSet(ctx, "1", gridentry.SetOptions{})
	require.NoError(t, err)
	require.True(t, setRes.Success)
	assert.Equal(t, startVer.Order+1, c.Version().Order, "version advances exactly once per write")

	getRes, err := c.InnerGet(ctx, gridentry.GetOptions{Unmarshal: true, EmitEvent: true})
	require.NoError(t, err)
	assert.Equal(t, "1", getRes.Value)

	assert.Equal(t, 1, bus.count(gridentry.EventPut))
	assert.Equal(t, 1, bus.count(gridentry.EventRead))
}

func TestExpiredOnReadEmitsExpiredOnceAndNoRead(t *testing.T) {
	bus := &recordingBus{}
	versions := gridentry.NewLocalVersionService(1, 0)
	c := gridentry.New(gridentry.Key{Bytes: []byte("k")}, gridentry.Config{
		VersionSvc: versions,
		EventBus:   bus,
	}, nil, 0)
	ctx := context.Background()

	ttl := 5 * time.Millisecond
	_, err := c.InnerSet(ctx, "x", gridentry.SetOptions{ExplicitTTL: &ttl})
	require.NoError(t, err)

	time.Sleep(15 * time.Millisecond)

	res, err := c.InnerGet(ctx, gridentry.GetOptions{Unmarshal: true, EmitEvent: true})
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.True(t, res.Expired)

	require.Equal(t, 1, bus.count(gridentry.EventExpired))
	assert.Equal(t, 0, bus.count(gridentry.EventRead), "an expired access never also records a READ")

	expired, ok := bus.last(gridentry.EventExpired)
	require.True(t, ok)
	assert.Equal(t, "x", expired.OldVal)
	assert.True(t, expired.HasOld)
}

func TestReadThroughLoadsAndCommitsStoreValue(t *testing.T) {
	bus := &recordingBus{}
	versions := gridentry.NewLocalVersionService(1, 0)
	backend := store.New()
	key := gridentry.Key{Bytes: []byte("k")}
	backend.Seed(key, "s", gridentry.Version{Order: 1, NodeOrder: 9})

	c := gridentry.New(key, gridentry.Config{
		VersionSvc: versions,
		Store:      backend,
		EventBus:   bus,
	}, nil, 0)
	ctx := context.Background()

	res, err := c.InnerGet(ctx, gridentry.GetOptions{Unmarshal: true, ReadThrough: true})
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "s", res.Value)

	// The load committed: a second read hits the live cell without
	// consulting the store, and the load recorded READ, never PUT.
	res2, err := c.InnerGet(ctx, gridentry.GetOptions{Unmarshal: true})
	require.NoError(t, err)
	assert.True(t, res2.Found)
	assert.Equal(t, "s", res2.Value)
	assert.Equal(t, 0, bus.count(gridentry.EventPut), "read loads record as READ, not PUT")
	assert.Equal(t, 1, bus.count(gridentry.EventRead))
	assert.False(t, c.IsNew(), "a committed load moves the cell out of NEW")
}

func TestReadThroughMissLeavesCellEmpty(t *testing.T) {
	versions := gridentry.NewLocalVersionService(1, 0)
	backend := store.New()
	c := gridentry.New(gridentry.Key{Bytes: []byte("absent")}, gridentry.Config{
		VersionSvc: versions,
		Store:      backend,
	}, nil, 0)

	res, err := c.InnerGet(context.Background(), gridentry.GetOptions{Unmarshal: true, ReadThrough: true})
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.True(t, c.IsNew())
}

func TestInnerReloadReplacesValueFromStore(t *testing.T) {
	versions := gridentry.NewLocalVersionService(1, 0)
	backend := store.New()
	key := gridentry.Key{Bytes: []byte("k")}
	c := gridentry.New(key, gridentry.Config{
		VersionSvc: versions,
		Store:      backend,
	}, nil, 0)
	ctx := context.Background()

	_, err := c.InnerSet(ctx, "cached", gridentry.SetOptions{})
	require.NoError(t, err)
	backend.Seed(key, "fresh-from-store", gridentry.Version{Order: 50})

	rel, err := c.InnerReload(ctx, 0)
	require.NoError(t, err)
	assert.True(t, rel.Found)
	assert.Equal(t, "fresh-from-store", rel.Value)

	got, err := c.InnerGet(ctx, gridentry.GetOptions{Unmarshal: true})
	require.NoError(t, err)
	assert.Equal(t, "fresh-from-store", got.Value)
}

func TestInnerReloadMissClearsValue(t *testing.T) {
	versions := gridentry.NewLocalVersionService(1, 0)
	backend := store.New(store.WithWriteThrough(false))
	c := gridentry.New(gridentry.Key{Bytes: []byte("k")}, gridentry.Config{
		VersionSvc: versions,
		Store:      backend,
	}, nil, 0)
	ctx := context.Background()

	_, err := c.InnerSet(ctx, "stale", gridentry.SetOptions{})
	require.NoError(t, err)

	rel, err := c.InnerReload(ctx, 0)
	require.NoError(t, err)
	assert.False(t, rel.Found)

	got, err := c.InnerGet(ctx, gridentry.GetOptions{Unmarshal: true})
	require.NoError(t, err)
	assert.False(t, got.Found, "a reload against an empty store clears the live value")
}

func TestWriteThroughPersistsToBackend(t *testing.T) {
	versions := gridentry.NewLocalVersionService(1, 0)
	backend := store.New()
	key := gridentry.Key{Bytes: []byte("k")}
	c := gridentry.New(key, gridentry.Config{
		VersionSvc: versions,
		Store:      backend,
	}, nil, 0)
	ctx := context.Background()

	_, err := c.InnerSet(ctx, "v1", gridentry.SetOptions{})
	require.NoError(t, err)

	val, ok, err := backend.LoadFromStore(ctx, 0, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", val)

	_, err = c.InnerRemove(ctx, gridentry.RemoveOptions{})
	require.NoError(t, err)

	_, ok, err = backend.LoadFromStore(ctx, 0, key)
	require.NoError(t, err)
	assert.False(t, ok, "write-through removal must reach the backend")
}
