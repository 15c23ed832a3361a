// Package identity implements IdentityChain / CompanyChain (C4):
// append-only logs of an actor's participation across every bill it
// has signed. These chains never gate bill-chain validity; they are
// tamper-evident actor history.
package identity

import (
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/crypto"
)

// Entry references one BillBlock an identity signed.
type Entry struct {
	body entryBody

	cache struct {
		hash atomic.Value
	}
}

type entryBody struct {
	Seq       uint64
	BillID    string
	BlockID   uint64
	BlockHash crypto.Hash
	OpCode    bill.OpCode
	Timestamp int64
	Signature []byte
}

// NewEntry constructs an unsigned identity-chain entry for one
// bill-chain append.
func NewEntry(seq uint64, prevEntryHash crypto.Hash, billID string, blockID uint64, blockHash crypto.Hash, op bill.OpCode, ts int64) *Entry {
	_ = prevEntryHash // reserved for a future link field; entries are order-indexed by Seq today
	return &Entry{body: entryBody{Seq: seq, BillID: billID, BlockID: blockID, BlockHash: blockHash, OpCode: op, Timestamp: ts}}
}

// FromPersisted reconstructs an already-signed entry read back from a
// store, without re-signing it.
func FromPersisted(seq uint64, billID string, blockID uint64, blockHash crypto.Hash, op bill.OpCode, ts int64, signature []byte) *Entry {
	return &Entry{body: entryBody{
		Seq: seq, BillID: billID, BlockID: blockID, BlockHash: blockHash,
		OpCode: op, Timestamp: ts, Signature: signature,
	}}
}

func (e *Entry) Seq() uint64           { return e.body.Seq }
func (e *Entry) BillID() string        { return e.body.BillID }
func (e *Entry) BlockID() uint64       { return e.body.BlockID }
func (e *Entry) BlockHash() crypto.Hash { return e.body.BlockHash }
func (e *Entry) OpCode() bill.OpCode   { return e.body.OpCode }
func (e *Entry) Timestamp() int64      { return e.body.Timestamp }
func (e *Entry) Signature() []byte     { return e.body.Signature }

// SigningHash covers every field an identity-chain entry asserts.
func (e *Entry) SigningHash() (hash crypto.Hash) {
	if cached := e.cache.hash.Load(); cached != nil {
		return cached.(crypto.Hash)
	}
	defer func() { e.cache.hash.Store(hash) }()

	encoded, err := rlp.EncodeToBytes(e.body)
	if err != nil {
		return crypto.Hash{}
	}
	hash = crypto.SHA256(encoded)
	return
}

// Sign signs the entry with the identity's own keys.
func (e *Entry) Sign(keys *crypto.Keys) (*Entry, error) {
	cpy := *e
	cpy.cache = struct{ hash atomic.Value }{}
	sig, err := keys.Sign(cpy.SigningHash())
	if err != nil {
		return nil, fmt.Errorf("sign identity entry: %w", err)
	}
	cpy.body.Signature = sig
	return &cpy, nil
}

// Verify checks the entry's signature against owner's public key.
func (e *Entry) Verify(owner *crypto.Keys) bool {
	return crypto.Verify(owner.PublicKey(), e.SigningHash(), e.body.Signature)
}

// Chain is an append-only log of Entry, kept per personal identity or
// per company.
type Chain struct {
	owner   crypto.NodeID
	entries []*Entry
}

// New starts an empty chain for owner.
func New(owner crypto.NodeID) *Chain {
	return &Chain{owner: owner}
}

// NewFromEntries reconstructs a chain from a persisted entry list.
func NewFromEntries(owner crypto.NodeID, entries []*Entry) *Chain {
	return &Chain{owner: owner, entries: entries}
}

func (c *Chain) Owner() crypto.NodeID { return c.owner }
func (c *Chain) Entries() []*Entry    { return c.entries }
func (c *Chain) Len() int             { return len(c.entries) }

// Append records that this identity signed blockID/blockHash/op on
// billID, in lockstep with the corresponding bill-chain append
// (spec.md §3, §4.5).
func (c *Chain) Append(signerKeys *crypto.Keys, billID string, blockID uint64, blockHash crypto.Hash, op bill.OpCode, ts int64) (*Entry, error) {
	var prevHash crypto.Hash
	if len(c.entries) > 0 {
		prevHash = c.entries[len(c.entries)-1].SigningHash()
	}
	entry := NewEntry(uint64(len(c.entries))+1, prevHash, billID, blockID, blockHash, op, ts)
	signed, err := entry.Sign(signerKeys)
	if err != nil {
		return nil, err
	}
	c.entries = append(c.entries, signed)
	return signed, nil
}

// EntriesForBill returns every entry this identity recorded for billID,
// in chain order.
func (c *Chain) EntriesForBill(billID string) []*Entry {
	var result []*Entry
	for _, e := range c.entries {
		if e.BillID() == billID {
			result = append(result, e)
		}
	}
	return result
}
