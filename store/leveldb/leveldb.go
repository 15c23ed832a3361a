// Package leveldb backs the identity/company chain and
// notification-dedup stores with goleveldb (SPEC_FULL.md §3 domain
// stack: "github.com/syndtr/goleveldb (identity/company chain +
// notification-dedup store)"), grounded on the teacher's own use of
// goleveldb as its `muxdb/engine` storage engine
// (`muxdb/engine/leveldb.go`'s `Get`/`Put`/`Has`/`Iterate` shape,
// reapplied directly against a `*leveldb.DB` here since this package
// has no multi-engine abstraction to route through).
package leveldb

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/crypto"
	"github.com/bitcredit/ebill/identity"
	"github.com/bitcredit/ebill/store"
)

var (
	_ store.IdentityStore     = (*IdentityStore)(nil)
	_ store.NotificationStore = (*NotificationStore)(nil)
)

// DB wraps a goleveldb handle backing the identity and notification
// stores.
type DB struct {
	db *leveldb.DB
}

// Open opens (creating if needed) the goleveldb database at path.
func Open(path string) (*DB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error { return d.db.Close() }

// IdentityStore keys entries as identity:<owner>:<seq-be> so a range
// scan over one owner's prefix replays its chain in order.
type IdentityStore struct {
	db *leveldb.DB
}

func (d *DB) IdentityStore() *IdentityStore { return &IdentityStore{db: d.db} }

func identityPrefix(owner crypto.NodeID) []byte {
	return []byte("identity:" + string(owner) + ":")
}

func identityKey(owner crypto.NodeID, seq uint64) []byte {
	return append(identityPrefix(owner), []byte(fmt.Sprintf("%020d", seq))...)
}

func (s *IdentityStore) Append(_ context.Context, owner crypto.NodeID, entries ...*identity.Entry) error {
	batch := new(leveldb.Batch)
	for _, e := range entries {
		data, err := rlpEncodeEntry(e)
		if err != nil {
			return err
		}
		batch.Put(identityKey(owner, e.Seq()), data)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("append identity entries: %w", err)
	}
	return nil
}

func (s *IdentityStore) Load(_ context.Context, owner crypto.NodeID) (*identity.Chain, error) {
	prefix := identityPrefix(owner)
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var entries []*identity.Entry
	for iter.Next() {
		e, err := rlpDecodeEntry(iter.Value())
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("load identity chain: %w", err)
	}
	return identity.NewFromEntries(owner, entries), nil
}

// NotificationStore keys dedup markers as notify:<bill_id>:<height-be>:<action>.
type NotificationStore struct {
	db *leveldb.DB
}

func (d *DB) NotificationStore() *NotificationStore { return &NotificationStore{db: d.db} }

func notificationKey(billID string, blockHeight uint64, action string) []byte {
	return []byte(fmt.Sprintf("notify:%s:%020d:%s", billID, blockHeight, action))
}

func (s *NotificationStore) MarkSent(_ context.Context, billID string, blockHeight uint64, action string) (bool, error) {
	key := notificationKey(billID, blockHeight, action)
	already, err := s.db.Has(key, nil)
	if err != nil {
		return false, fmt.Errorf("check notification: %w", err)
	}
	if already {
		return true, nil
	}
	if err := s.db.Put(key, []byte{1}, nil); err != nil {
		return false, fmt.Errorf("mark notification sent: %w", err)
	}
	return false, nil
}

// identityEntryWire is the RLP-transportable shape of an identity.Entry:
// entries keep their signature-covered fields private, so the store
// round-trips them through their public accessors rather than reaching
// into package-private state.
type identityEntryWire struct {
	Seq       uint64
	BillID    string
	BlockID   uint64
	BlockHash crypto.Hash
	OpCode    uint8
	Timestamp int64
	Signature []byte
}

func rlpEncodeEntry(e *identity.Entry) ([]byte, error) {
	wire := identityEntryWire{
		Seq: e.Seq(), BillID: e.BillID(), BlockID: e.BlockID(),
		BlockHash: e.BlockHash(), OpCode: uint8(e.OpCode()),
		Timestamp: e.Timestamp(), Signature: e.Signature(),
	}
	return rlp.EncodeToBytes(wire)
}

func rlpDecodeEntry(data []byte) (*identity.Entry, error) {
	var wire identityEntryWire
	if err := rlp.DecodeBytes(data, &wire); err != nil {
		return nil, fmt.Errorf("decode identity entry: %w", err)
	}
	return identity.FromPersisted(wire.Seq, wire.BillID, wire.BlockID, wire.BlockHash,
		bill.OpCode(wire.OpCode), wire.Timestamp, wire.Signature), nil
}
