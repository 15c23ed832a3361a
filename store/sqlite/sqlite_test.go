package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/block"
	"github.com/bitcredit/ebill/chain"
	"github.com/bitcredit/ebill/crypto"
	"github.com/bitcredit/ebill/derivedview"
	"github.com/bitcredit/ebill/store"
	"github.com/bitcredit/ebill/store/sqlite"
)

func openTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "ebill.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func issueChain(t *testing.T) (*chain.Chain, *crypto.Keys) {
	t.Helper()
	billKeys, err := crypto.GenerateKeys()
	require.NoError(t, err)
	drawer, err := crypto.GenerateKeys()
	require.NoError(t, err)

	data := bill.Data{ID: "bill-1", Sum: 1000, Currency: "sat",
		Drawer: bill.IdentifiedParticipant{NodeID: drawer.NodeID()},
		Drawee: bill.IdentifiedParticipant{NodeID: drawer.NodeID()},
		Payee:  bill.FromIdentified(bill.IdentifiedParticipant{NodeID: drawer.NodeID()}),
	}
	payload := bill.IssuePayload{Data: data, Keys: billKeys.NodeID()}
	encoded, err := block.EncodePayload(payload)
	require.NoError(t, err)
	ct, err := crypto.Encrypt(billKeys, encoded)
	require.NoError(t, err)
	b := block.New(1, data.ID, bill.Issue, crypto.Hash{}, ct, 1700000000, drawer.PublicKeyBytes(), nil)
	signed, err := b.Sign(drawer, nil)
	require.NoError(t, err)
	c, err := chain.New(signed)
	require.NoError(t, err)
	return c, billKeys
}

func TestChainStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	c, _ := issueChain(t)

	store := db.ChainStore()
	require.NoError(t, store.Save(ctx, "bill-1", c))

	loaded, err := store.Load(ctx, "bill-1")
	require.NoError(t, err)
	assert.Equal(t, c.GetLatestBlock().ID(), loaded.GetLatestBlock().ID())
	assert.Equal(t, c.GetLatestBlock().BillID(), loaded.GetLatestBlock().BillID())

	ids, err := store.AllBillIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bill-1"}, ids)
}

func TestKeysStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	keys, err := crypto.GenerateKeys()
	require.NoError(t, err)

	store := db.KeysStore()
	require.NoError(t, store.Save(ctx, "bill-1", keys))
	loaded, err := store.Load(ctx, "bill-1")
	require.NoError(t, err)
	assert.Equal(t, keys.NodeID(), loaded.NodeID())
}

func TestPaidStoreMarksIdempotently(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := db.PaidStore()

	_, paid, err := store.IsPaid(ctx, "bill-1")
	require.NoError(t, err)
	assert.False(t, paid)

	require.NoError(t, store.MarkPaid(ctx, "bill-1", "bc1addr"))
	addr, paid, err := store.IsPaid(ctx, "bill-1")
	require.NoError(t, err)
	assert.True(t, paid)
	assert.Equal(t, "bc1addr", addr)
}

func TestCacheStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := db.CacheStore()

	_, ok, err := store.Load(ctx, "bill-1")
	require.NoError(t, err)
	assert.False(t, ok)

	result := &derivedview.Result{LatestBlockID: 3, ComputedAt: 1700000000}
	require.NoError(t, store.Save(ctx, "bill-1", result))

	loaded, ok, err := store.Load(ctx, "bill-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, result.LatestBlockID, loaded.LatestBlockID)
}

func TestContactStoreRoundTripAndSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ebill.db")

	db, err := sqlite.Open(path)
	require.NoError(t, err)
	keys, err := crypto.GenerateKeys()
	require.NoError(t, err)
	nodeID := keys.NodeID()

	contacts := db.ContactStore()
	_, err = contacts.Get(ctx, nodeID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, contacts.Upsert(ctx, store.Contact{NodeID: nodeID, Name: "acme drawee", Type: bill.Company}))
	require.NoError(t, db.Close())

	reopened, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	loaded, err := reopened.ContactStore().Get(ctx, nodeID)
	require.NoError(t, err)
	assert.Equal(t, "acme drawee", loaded.Name)
	assert.Equal(t, bill.Company, loaded.Type)

	all, err := reopened.ContactStore().List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, reopened.ContactStore().Delete(ctx, nodeID))
	_, err = reopened.ContactStore().Get(ctx, nodeID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
