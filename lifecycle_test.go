package gridentry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaj13/gridentry"
	"github.com/shaj13/gridentry/deferredqueue"
	"github.com/shaj13/gridentry/mvcc"
)

func TestMarkObsoleteIfEmptyRefusesLiveValue(t *testing.T) {
	c := newTestCell(t)
	_, err := c.InnerSet(context.Background(), "v", gridentry.SetOptions{})
	require.NoError(t, err)

	ok := c.MarkObsoleteIfEmpty(gridentry.Version{Order: 99, NodeOrder: 1})
	assert.False(t, ok)
	assert.False(t, c.IsObsolete())
}

func TestMarkObsoleteIfEmptyObsoletesEmptyCell(t *testing.T) {
	c := newTestCell(t)
	ok := c.MarkObsoleteIfEmpty(gridentry.Version{Order: 99, NodeOrder: 1})
	assert.True(t, ok)
	assert.True(t, c.IsObsolete())
}

func TestMarkObsoleteIfEmptyTombstonesUnderDeferredDelete(t *testing.T) {
	q := deferredqueue.New()
	versions := gridentry.NewLocalVersionService(1, 0)
	c := gridentry.New(gridentry.Key{Bytes: []byte("k")}, gridentry.Config{
		VersionSvc:            versions,
		DeferredQueue:         q,
		DeferredDeleteEnabled: true,
	}, nil, 0)

	ok := c.MarkObsoleteIfEmpty(gridentry.Version{Order: 99, NodeOrder: 1})
	assert.True(t, ok)
	assert.True(t, c.IsDeleted(), "deferred-delete mode tombstones instead of obsoleting")
	assert.False(t, c.IsObsolete())
	assert.Equal(t, 1, q.Len())
}

// A tombstoned, valueless cell is finalized silently by the sweeper: it
// becomes obsolete at the enqueued version and no EXPIRED event fires.
func TestTombstoneThenTTLExpiryObsoletesWithoutExpiredEvent(t *testing.T) {
	bus := &recordingBus{}
	versions := gridentry.NewLocalVersionService(1, 0)
	c := gridentry.New(gridentry.Key{Bytes: []byte("k")}, gridentry.Config{
		VersionSvc:            versions,
		EventBus:              bus,
		DeferredDeleteEnabled: true,
	}, nil, 0)
	ctx := context.Background()

	ttl := 5 * time.Millisecond
	_, err := c.InnerSet(ctx, "v", gridentry.SetOptions{ExplicitTTL: &ttl})
	require.NoError(t, err)

	res, err := c.InnerRemove(ctx, gridentry.RemoveOptions{})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.True(t, c.IsDeleted())
	require.False(t, c.IsObsolete(), "the tombstone parks the cell, obsolescence comes later")

	time.Sleep(15 * time.Millisecond)

	handled, err := c.OnTTLExpired(gridentry.Version{Order: 100, NodeOrder: 1})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.True(t, c.IsObsolete())
	assert.Equal(t, 0, bus.count(gridentry.EventExpired), "a valueless tombstone expires silently")
}

func TestOnTTLExpiredEmitsExpiredForLiveValue(t *testing.T) {
	bus := &recordingBus{}
	versions := gridentry.NewLocalVersionService(1, 0)
	c := gridentry.New(gridentry.Key{Bytes: []byte("k")}, gridentry.Config{
		VersionSvc: versions,
		EventBus:   bus,
	}, nil, 0)
	ctx := context.Background()

	ttl := 5 * time.Millisecond
	_, err := c.InnerSet(ctx, "v", gridentry.SetOptions{ExplicitTTL: &ttl})
	require.NoError(t, err)

	time.Sleep(15 * time.Millisecond)

	handled, err := c.OnTTLExpired(gridentry.Version{Order: 100, NodeOrder: 1})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.True(t, c.IsObsolete())
	require.Equal(t, 1, bus.count(gridentry.EventExpired))
	rec, _ := bus.last(gridentry.EventExpired)
	assert.Equal(t, "v", rec.OldVal)
}

func TestOnTTLExpiredIgnoresUnexpiredCell(t *testing.T) {
	c := newTestCell(t)
	_, err := c.InnerSet(context.Background(), "v", gridentry.SetOptions{})
	require.NoError(t, err)

	handled, err := c.OnTTLExpired(gridentry.Version{Order: 100, NodeOrder: 1})
	require.NoError(t, err)
	assert.False(t, handled)
	assert.False(t, c.IsObsolete())
}

func TestInvalidateClearsValueWithoutObsoleting(t *testing.T) {
	c := newTestCell(t)
	ctx := context.Background()
	_, err := c.InnerSet(ctx, "v", gridentry.SetOptions{})
	require.NoError(t, err)

	cur := c.Version()
	ok, err := c.Invalidate(cur, gridentry.Version{Order: cur.Order + 1, NodeOrder: 1})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, c.IsObsolete(), "invalidate empties the cell, it does not retire it")

	got, err := c.InnerGet(ctx, gridentry.GetOptions{Unmarshal: true})
	require.NoError(t, err)
	assert.False(t, got.Found)
}

func TestInvalidateSkipsOnVersionMismatch(t *testing.T) {
	c := newTestCell(t)
	ctx := context.Background()
	_, err := c.InnerSet(ctx, "v", gridentry.SetOptions{})
	require.NoError(t, err)

	stale := gridentry.Version{Order: 0, NodeOrder: 1}
	ok, err := c.Invalidate(stale, gridentry.Version{Order: 50, NodeOrder: 1})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := c.InnerGet(ctx, gridentry.GetOptions{Unmarshal: true})
	require.NoError(t, err)
	assert.True(t, got.Found, "a mismatched invalidate leaves the value intact")
}

func TestVersionedValueSwapsOnlyAtMatchingVersion(t *testing.T) {
	c := newTestCell(t)
	ctx := context.Background()
	_, err := c.InnerSet(ctx, "v1", gridentry.SetOptions{})
	require.NoError(t, err)

	ok, err := c.VersionedValue("v2", c.Version(), nil)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := c.InnerGet(ctx, gridentry.GetOptions{Unmarshal: true})
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Value)

	ok, err = c.VersionedValue("v3", gridentry.Version{Order: 1, NodeOrder: 1}, nil)
	require.NoError(t, err)
	assert.False(t, ok, "a stale current-version witness must not swap the value")
}

func TestInitialValueAppliesOnlyToNewCell(t *testing.T) {
	c := newTestCell(t)
	ctx := context.Background()

	ok, err := c.InitialValue("seed", gridentry.Version{}, 0, 0, true, 0, gridentry.DRPreload)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.InitialValue("seed-2", gridentry.Version{}, 0, 0, true, 0, gridentry.DRPreload)
	require.NoError(t, err)
	assert.False(t, ok, "initial-value on a non-new cell is a no-op")

	got, err := c.InnerGet(ctx, gridentry.GetOptions{Unmarshal: true})
	require.NoError(t, err)
	assert.Equal(t, "seed", got.Value)
}

func TestClearObsoletesMatchingCell(t *testing.T) {
	c := newTestCell(t)
	_, err := c.InnerSet(context.Background(), "v", gridentry.SetOptions{})
	require.NoError(t, err)

	ok, err := c.Clear(gridentry.Version{Order: 100, NodeOrder: 1}, false, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, c.IsObsolete())
}

func TestCompactIsNoOpOnLiveValue(t *testing.T) {
	c := newTestCell(t)
	_, err := c.InnerSet(context.Background(), "v", gridentry.SetOptions{})
	require.NoError(t, err)

	ok, err := c.Compact(nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, c.IsObsolete())
}

func TestCompactClearsExpiredValue(t *testing.T) {
	c := newTestCell(t)
	ctx := context.Background()

	ttl := 5 * time.Millisecond
	_, err := c.InnerSet(ctx, "v", gridentry.SetOptions{ExplicitTTL: &ttl})
	require.NoError(t, err)

	time.Sleep(15 * time.Millisecond)

	ok, err := c.Compact(nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, c.IsObsolete())
}

func TestMVCCOwnerBlocksObsoletion(t *testing.T) {
	c := newTestCell(t)
	_, err := c.InnerSet(context.Background(), "v", gridentry.SetOptions{})
	require.NoError(t, err)

	list := mvcc.New()
	ownerVer := gridentry.Version{Order: 7, NodeOrder: 1}
	list.Add(mvcc.Candidate{Version: ownerVer, Owner: true, Local: true, Thread: 1})
	c.InstallMVCC(list)

	ok := c.MarkObsolete(gridentry.Version{Order: 99, NodeOrder: 1})
	assert.False(t, ok, "a live lock owner holds the cell open")
	assert.False(t, c.IsObsolete())

	list.Release(ownerVer)
	ok = c.MarkObsolete(gridentry.Version{Order: 99, NodeOrder: 1})
	assert.True(t, ok)
	assert.True(t, c.IsObsolete())
}

func TestAttributesRoundTripThroughExtras(t *testing.T) {
	c := newTestCell(t)

	_, ok := c.Attribute("owner")
	require.False(t, ok)

	c.SetAttribute("owner", "maintenance-job")
	got, ok := c.Attribute("owner")
	require.True(t, ok)
	assert.Equal(t, "maintenance-job", got)
}
