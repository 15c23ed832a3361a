package leveldb_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/crypto"
	"github.com/bitcredit/ebill/identity"
	"github.com/bitcredit/ebill/store/leveldb"
)

func openTestDB(t *testing.T) *leveldb.DB {
	t.Helper()
	db, err := leveldb.Open(filepath.Join(t.TempDir(), "identity.ldb"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestIdentityStoreAppendAndLoadPreservesOrder(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	owner, err := crypto.GenerateKeys()
	require.NoError(t, err)

	ic := identity.New(owner.NodeID())
	e1, err := ic.Append(owner, "bill-1", 1, crypto.Hash{}, bill.Issue, 1700000000)
	require.NoError(t, err)
	e2, err := ic.Append(owner, "bill-1", 2, crypto.Hash{}, bill.Accept, 1700000100)
	require.NoError(t, err)

	store := db.IdentityStore()
	require.NoError(t, store.Append(ctx, owner.NodeID(), e1, e2))

	loaded, err := store.Load(ctx, owner.NodeID())
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())
	assert.Equal(t, bill.Issue, loaded.Entries()[0].OpCode())
	assert.Equal(t, bill.Accept, loaded.Entries()[1].OpCode())
	assert.Equal(t, e1.Signature(), loaded.Entries()[0].Signature())
}

func TestNotificationStoreDeduplicates(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := db.NotificationStore()

	already, err := store.MarkSent(ctx, "bill-1", 4, "RequestToPay")
	require.NoError(t, err)
	assert.False(t, already)

	already, err = store.MarkSent(ctx, "bill-1", 4, "RequestToPay")
	require.NoError(t, err)
	assert.True(t, already)

	already, err = store.MarkSent(ctx, "bill-1", 5, "RequestToPay")
	require.NoError(t, err)
	assert.False(t, already)
}
