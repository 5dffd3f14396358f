package gridentry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaj13/gridentry"
)

func newTestCell(t *testing.T) *gridentry.Cell {
	t.Helper()
	cfg := gridentry.Config{
		VersionSvc: gridentry.NewLocalVersionService(1, 0),
	}
	return gridentry.New(gridentry.Key{Bytes: []byte("k")}, cfg, nil, 0)
}

func TestNewCellStartsInNewState(t *testing.T) {
	c := newTestCell(t)
	assert.True(t, c.IsNew())
	assert.False(t, c.IsObsolete())
}

func TestInnerSetThenInnerGetRoundTrips(t *testing.T) {
	c := newTestCell(t)
	ctx := context.Background()

	setRes, err := c.InnerSet(ctx, "hello", gridentry.SetOptions{})
	require.NoError(t, err)
	assert.True(t, setRes.Success)

	getRes, err := c.InnerGet(ctx, gridentry.GetOptions{Unmarshal: true})
	require.NoError(t, err)
	assert.True(t, getRes.Found)
	assert.Equal(t, "hello", getRes.Value)
	assert.False(t, c.IsNew(), "a cell that has been written to is no longer NEW")
}

func TestInnerGetOnEmptyCellMisses(t *testing.T) {
	c := newTestCell(t)
	res, err := c.InnerGet(context.Background(), gridentry.GetOptions{Unmarshal: true})
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestInnerSetThenInnerRemoveClearsValue(t *testing.T) {
	c := newTestCell(t)
	ctx := context.Background()

	_, err := c.InnerSet(ctx, "v1", gridentry.SetOptions{})
	require.NoError(t, err)

	removeRes, err := c.InnerRemove(ctx, gridentry.RemoveOptions{})
	require.NoError(t, err)
	assert.True(t, removeRes.Success)

	// Without deferred delete the remove also retires the cell, so a later
	// read reports ErrRemoved and no value.
	getRes, err := c.InnerGet(ctx, gridentry.GetOptions{Unmarshal: true})
	require.ErrorIs(t, err, gridentry.ErrRemoved)
	assert.False(t, getRes.Found)
}

func TestInnerSetFilterRejectsWrite(t *testing.T) {
	c := newTestCell(t)
	ctx := context.Background()

	requireExisting := gridentry.Filter(func(_ any, hasOld bool) bool { return hasOld })
	res, err := c.InnerSet(ctx, "v1", gridentry.SetOptions{Filter: requireExisting})
	require.NoError(t, err)
	assert.False(t, res.Success, "filter should reject the write against an empty old value")
}

func TestExplicitTTLExpiresValue(t *testing.T) {
	c := newTestCell(t)
	ctx := context.Background()

	ttl := 20 * time.Millisecond
	_, err := c.InnerSet(ctx, "fleeting", gridentry.SetOptions{ExplicitTTL: &ttl})
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	res, err := c.InnerGet(ctx, gridentry.GetOptions{Unmarshal: true})
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.True(t, res.Expired)
}

func TestMemorySizeFormula(t *testing.T) {
	c := newTestCell(t)
	ctx := context.Background()

	_, err := c.InnerSet(ctx, []byte("abc"), gridentry.SetOptions{})
	require.NoError(t, err)

	// 77 + extras(0, no TTL/MVCC/attrs set) + key bytes(1) + value bytes.
	// The exact value bytes contribution depends on materialization, so we
	// only assert the floor the formula guarantees.
	assert.GreaterOrEqual(t, c.MemorySize(), 77+1+1)
}

func TestObsoleteCellRejectsFurtherOperations(t *testing.T) {
	c := newTestCell(t)
	ctx := context.Background()

	ok, err := c.EvictInternal(false, gridentry.Version{Order: 99, NodeOrder: 1}, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, c.IsObsolete())

	_, err = c.InnerSet(ctx, "v1", gridentry.SetOptions{})
	assert.ErrorIs(t, err, gridentry.ErrRemoved)
}
