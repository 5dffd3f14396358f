package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaj13/gridentry"
	"github.com/shaj13/gridentry/store"
)

func TestPutThenLoadRoundTrips(t *testing.T) {
	b := store.New()
	ctx := context.Background()
	key := gridentry.Key{Bytes: []byte("k")}

	require.NoError(t, b.PutToStore(ctx, 0, key, "v1", gridentry.Version{Order: 1}))

	val, ok, err := b.LoadFromStore(ctx, 0, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", val)
}

func TestRemoveFromStoreDeletesKey(t *testing.T) {
	b := store.New()
	ctx := context.Background()
	key := gridentry.Key{Bytes: []byte("k")}
	require.NoError(t, b.PutToStore(ctx, 0, key, "v1", gridentry.Version{}))

	require.NoError(t, b.RemoveFromStore(ctx, 0, key))

	_, ok, err := b.LoadFromStore(ctx, 0, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDefaultsReadAndWriteThroughOn(t *testing.T) {
	b := store.New()
	assert.True(t, b.ReadThrough())
	assert.True(t, b.WriteThrough())
}

func TestWithReadThroughOffDisables(t *testing.T) {
	b := store.New(store.WithReadThrough(false))
	assert.False(t, b.ReadThrough())
}

func TestSeedPreloadsWithoutGoingThroughPut(t *testing.T) {
	b := store.New()
	key := gridentry.Key{Bytes: []byte("k")}
	b.Seed(key, "preloaded", gridentry.Version{Order: 7})

	val, ok, err := b.LoadFromStore(context.Background(), 0, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "preloaded", val)
	assert.Equal(t, 1, b.Len())
}
