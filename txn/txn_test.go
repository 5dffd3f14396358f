package txn_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaj13/gridentry"
	"github.com/shaj13/gridentry/txn"
)

func TestTransactionPutThenEntryRoundTrips(t *testing.T) {
	tx := txn.Begin(1)
	key := gridentry.Key{Bytes: []byte("k")}
	tx.Put(key, "v1", time.Hour, 0, false)

	val, ok := tx.Entry(key)
	require.True(t, ok)
	assert.Equal(t, "v1", val)
}

func TestTransactionStateTransitions(t *testing.T) {
	tx := txn.Begin(1)
	assert.Equal(t, gridentry.TxActive, tx.State())

	tx.Commit()
	assert.Equal(t, gridentry.TxCommitted, tx.State())
}

func TestManagerTxLookupByWriteVersion(t *testing.T) {
	m := txn.New()
	tx := txn.Begin(5)
	ver := gridentry.Version{Order: 10, NodeOrder: 1}
	tx.SetWriteVersion(ver)
	m.Register(tx)

	got, ok := m.Tx(ver)
	require.True(t, ok)
	assert.Equal(t, gridentry.TxID(5), got.ID())
}

func TestManagerLocalTx(t *testing.T) {
	m := txn.New()
	tx := txn.Begin(1)
	m.SetLocal(tx)

	got, ok := m.LocalTx()
	require.True(t, ok)
	assert.Equal(t, gridentry.TxID(1), got.ID())

	got, ok = m.LocalTxx()
	require.True(t, ok)
	assert.Equal(t, gridentry.TxID(1), got.ID())
}

func TestTransactionPeekMissingKeyReturnsErrNoValue(t *testing.T) {
	tx := txn.Begin(1)
	_, err := tx.Peek(gridentry.Key{Bytes: []byte("missing")}, false)
	assert.ErrorIs(t, err, gridentry.ErrNoValue)
}
