// Package oracle defines the external collaborator interfaces
// BillService depends on but never implements itself: Bitcoin mempool
// polling and attachment blob storage are both out of scope for the
// core (spec.md §1 Non-goals; SPEC_FULL.md §4.8, §4.9).
package oracle

import "context"

// PaymentOracle reports whether a derived payment address has received
// at least sum. Implementations poll whatever external chain the
// address belongs to; the core only ever asks, never watches.
type PaymentOracle interface {
	IsPaid(ctx context.Context, address string, sum uint64) (bool, error)
}

// AttachmentStore persists the file bytes behind a bill.Attachment.
// The core only ever carries the resulting hash in the signed chain.
type AttachmentStore interface {
	Put(ctx context.Context, name string, data []byte) (hash [32]byte, err error)
	Get(ctx context.Context, hash [32]byte) ([]byte, error)
}
