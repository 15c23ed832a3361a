// Package store declares the persistence seams BillService depends on
// (spec.md §5, §6): chain, keys, paid-marker, derived-view cache,
// identity/company chains, notifications, and contacts. Every store is
// a process-wide singleton behind an interface; the cache store is an
// optimization only — any inconsistency there is reconciled by
// recomputing from the chain store (spec.md §5).
package store

import (
	"context"
	"errors"

	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/chain"
	"github.com/bitcredit/ebill/crypto"
	"github.com/bitcredit/ebill/derivedview"
	"github.com/bitcredit/ebill/identity"
)

// ErrNotFound is returned by any store method when the requested key
// has no record.
var ErrNotFound = errors.New("store: not found")

// ChainStore persists each bill's append-only chain, keyed by bill id.
type ChainStore interface {
	Load(ctx context.Context, billID string) (*chain.Chain, error)
	Save(ctx context.Context, billID string, c *chain.Chain) error
	AllBillIDs(ctx context.Context) ([]string, error)
}

// KeysStore persists each bill's ECIES keypair, keyed by bill id.
type KeysStore interface {
	Save(ctx context.Context, billID string, keys *crypto.Keys) error
	Load(ctx context.Context, billID string) (*crypto.Keys, error)
}

// PaidStore records the presence of a confirmed payment address per
// bill; presence of a record is equivalent to "paid" (spec.md §6).
type PaidStore interface {
	MarkPaid(ctx context.Context, billID, paymentAddress string) error
	IsPaid(ctx context.Context, billID string) (paymentAddress string, paid bool, err error)
}

// CacheStore persists the last computed DerivedView.Result per bill.
// It backs derivedview.Cache across process restarts; a miss here is
// never an error, only a signal to recompute.
type CacheStore interface {
	Load(ctx context.Context, billID string) (*derivedview.Result, bool, error)
	Save(ctx context.Context, billID string, result *derivedview.Result) error
}

// IdentityStore persists an identity or company chain, keyed by its
// owner node id.
type IdentityStore interface {
	Append(ctx context.Context, owner crypto.NodeID, entries ...*identity.Entry) error
	Load(ctx context.Context, owner crypto.NodeID) (*identity.Chain, error)
}

// NotificationStore deduplicates one-shot notifications keyed by
// (bill_id, block_height, action), per spec.md §6's
// `notification_sent[(bill_id, block_height, action)] → bool`.
type NotificationStore interface {
	// MarkSent records the key as notified and reports whether it was
	// already recorded, so callers can skip a duplicate send.
	MarkSent(ctx context.Context, billID string, blockHeight uint64, action string) (alreadySent bool, err error)
}

// Contact is a directory entry for a known counterparty, referenced by
// the CLI/API's contacts CRUD surface (spec.md §6).
type Contact struct {
	NodeID crypto.NodeID
	Name   string
	Type   bill.ContactType
}

// ContactStore is the identity/company contact directory.
type ContactStore interface {
	Upsert(ctx context.Context, c Contact) error
	Get(ctx context.Context, nodeID crypto.NodeID) (*Contact, error)
	List(ctx context.Context) ([]Contact, error)
	Delete(ctx context.Context, nodeID crypto.NodeID) error
}
