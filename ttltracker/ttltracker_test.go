package ttltracker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaj13/gridentry"
	"github.com/shaj13/gridentry/ttltracker"
)

func TestSweepExpiresTrackedEntries(t *testing.T) {
	tracker := ttltracker.New()
	versions := gridentry.NewLocalVersionService(1, 0)

	c := gridentry.New(gridentry.Key{Bytes: []byte("k")}, gridentry.Config{
		VersionSvc: versions,
		TTLTracker: tracker,
		EagerTTL:   true,
	}, nil, 0)

	ttl := 10 * time.Millisecond
	_, err := c.InnerSet(context.Background(), "v", gridentry.SetOptions{ExplicitTTL: &ttl})
	require.NoError(t, err)

	tracker.AddTrackedEntry(c)
	require.Equal(t, 1, tracker.Len())

	time.Sleep(25 * time.Millisecond)

	var expiredCell *gridentry.Cell
	tracker.Sweep(versions.Next, func(cell *gridentry.Cell, ver gridentry.Version) {
		expiredCell = cell
		_, _ = cell.OnTTLExpired(ver)
	})

	require.NotNil(t, expiredCell)
	assert.Equal(t, 0, tracker.Len())
	assert.True(t, expiredCell.IsObsolete())
}

func TestSweepLeavesUnexpiredEntries(t *testing.T) {
	tracker := ttltracker.New()
	versions := gridentry.NewLocalVersionService(1, 0)

	c := gridentry.New(gridentry.Key{Bytes: []byte("k")}, gridentry.Config{
		VersionSvc: versions,
		TTLTracker: tracker,
	}, nil, 0)

	ttl := time.Hour
	_, err := c.InnerSet(context.Background(), "v", gridentry.SetOptions{ExplicitTTL: &ttl})
	require.NoError(t, err)

	tracker.AddTrackedEntry(c)

	called := false
	tracker.Sweep(versions.Next, func(*gridentry.Cell, gridentry.Version) { called = true })

	assert.False(t, called)
	assert.Equal(t, 1, tracker.Len())
}
