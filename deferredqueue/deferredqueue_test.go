package deferredqueue_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaj13/gridentry"
	"github.com/shaj13/gridentry/deferredqueue"
)

func newDeferredCell(t *testing.T, q *deferredqueue.Queue) *gridentry.Cell {
	t.Helper()
	versions := gridentry.NewLocalVersionService(1, 0)
	c := gridentry.New(gridentry.Key{Bytes: []byte("k")}, gridentry.Config{
		VersionSvc:            versions,
		DeferredQueue:         q,
		DeferredDeleteEnabled: true,
	}, nil, 0)
	_, err := c.InnerSet(context.Background(), "v", gridentry.SetOptions{})
	require.NoError(t, err)
	return c
}

func TestRemoveTombstonesUnderDeferredDelete(t *testing.T) {
	q := deferredqueue.New()
	c := newDeferredCell(t, q)

	res, err := c.InnerRemove(context.Background(), gridentry.RemoveOptions{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, c.IsDeleted())
	assert.False(t, c.IsObsolete(), "deferred delete tombstones without immediately obsoleting")
}

func TestQueueFIFOOrdering(t *testing.T) {
	q := deferredqueue.New()
	versions := gridentry.NewLocalVersionService(1, 0)

	c1 := gridentry.New(gridentry.Key{Bytes: []byte("a")}, gridentry.Config{VersionSvc: versions}, nil, 0)
	c2 := gridentry.New(gridentry.Key{Bytes: []byte("b")}, gridentry.Config{VersionSvc: versions}, nil, 0)

	q.Enqueue(c1, gridentry.Version{Order: 1})
	q.Enqueue(c2, gridentry.Version{Order: 2})
	require.Equal(t, 2, q.Len())

	first, ver, ok := q.Discard()
	require.True(t, ok)
	assert.Same(t, c1, first)
	assert.Equal(t, uint64(1), ver.Order)

	second, _, ok := q.Discard()
	require.True(t, ok)
	assert.Same(t, c2, second)

	_, _, ok = q.Discard()
	assert.False(t, ok)
}

func TestSweepObsoletesEveryQueuedTombstone(t *testing.T) {
	q := deferredqueue.New()
	c := newDeferredCell(t, q)

	_, err := c.InnerRemove(context.Background(), gridentry.RemoveOptions{})
	require.NoError(t, err)
	q.Enqueue(c, gridentry.Version{Order: 100, NodeOrder: 1})

	q.Sweep(func(cell *gridentry.Cell, ver gridentry.Version) {
		_, _ = cell.EvictInternal(false, ver, nil)
	})

	assert.Equal(t, 0, q.Len())
	assert.True(t, c.IsObsolete())
}
