package swapstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaj13/gridentry"
	"github.com/shaj13/gridentry/swapstore"
)

func TestWriteThenReadRoundTrips(t *testing.T) {
	tier := swapstore.New(0)
	key := gridentry.Key{Bytes: []byte("k")}

	err := tier.Write(gridentry.SwapWriteRequest{Key: key, Bytes: []byte("payload"), Version: gridentry.Version{Order: 1}})
	require.NoError(t, err)

	entry, ok, err := tier.Read(key, false, false, true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), entry.Bytes)
}

func TestReadAndRemoveDeletesEntry(t *testing.T) {
	tier := swapstore.New(0)
	key := gridentry.Key{Bytes: []byte("k")}
	require.NoError(t, tier.Write(gridentry.SwapWriteRequest{Key: key, Bytes: []byte("p")}))

	_, ok, err := tier.ReadAndRemove(key)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = tier.Read(key, true, false, true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	tier := swapstore.New(2)
	k1 := gridentry.Key{Bytes: []byte("1")}
	k2 := gridentry.Key{Bytes: []byte("2")}
	k3 := gridentry.Key{Bytes: []byte("3")}

	require.NoError(t, tier.Write(gridentry.SwapWriteRequest{Key: k1, Bytes: []byte("a")}))
	require.NoError(t, tier.Write(gridentry.SwapWriteRequest{Key: k2, Bytes: []byte("b")}))
	require.NoError(t, tier.Write(gridentry.SwapWriteRequest{Key: k3, Bytes: []byte("c")}))

	assert.Equal(t, 2, tier.Len())
	_, ok, _ := tier.Read(k1, true, false, true)
	assert.False(t, ok, "oldest key should have been evicted once capacity was exceeded")
}
