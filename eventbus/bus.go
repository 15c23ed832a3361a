package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bitcredit/ebill/billservice"
	"github.com/bitcredit/ebill/block"
	"github.com/bitcredit/ebill/chain"
	"github.com/bitcredit/ebill/crypto"
	"github.com/bitcredit/ebill/derivedview"
	"github.com/bitcredit/ebill/store"
)

// ErrUnauthorized is returned when an inbound envelope's signature
// doesn't match its claimed node id, or that node id is neither a
// known identity nor a known contact (spec.md §4.7 step 1).
var ErrUnauthorized = errors.New("eventbus: unauthorized envelope")

// ErrAlreadyProcessed is returned by Ingest for a duplicate event id;
// callers should treat it as a no-op, not a failure.
var ErrAlreadyProcessed = errors.New("eventbus: event already processed")

// Transport delivers a signed Envelope to its recipient's node id.
// The actual encrypted direct-message primitive is an external
// collaborator (spec.md §6); EventBus only ever hands it a ready
// envelope.
type Transport interface {
	Send(ctx context.Context, recipient crypto.NodeID, envelope Envelope) error
}

// ProcessedStore deduplicates inbound events by event id (spec.md
// §4.7 step 2).
type ProcessedStore interface {
	MarkProcessed(ctx context.Context, eventID string) (alreadyProcessed bool, err error)
}

// NotificationInbox records user-visible notifications, marking any
// prior active one for the same bill done before adding a new one
// (spec.md §4.7 step 5).
type NotificationInbox interface {
	Create(ctx context.Context, billID string, eventType BillEventType) error
}

// EventBus is ChainSync/EventBus (C9). It signs and hands off every
// BillService broadcast to Transport, and applies inbound envelopes
// against the same stores BillService itself uses.
type EventBus struct {
	selfKeys      *crypto.Keys
	chains        store.ChainStore
	keys          store.KeysStore
	identities    store.IdentityStore
	contacts      store.ContactStore
	processed     ProcessedStore
	notifications NotificationInbox
	transport     Transport
}

// New wires an EventBus. selfKeys signs every outbound envelope on
// this node's behalf.
func New(
	selfKeys *crypto.Keys,
	chains store.ChainStore,
	keys store.KeysStore,
	identities store.IdentityStore,
	contacts store.ContactStore,
	processed ProcessedStore,
	notifications NotificationInbox,
	transport Transport,
) *EventBus {
	return &EventBus{
		selfKeys:      selfKeys,
		chains:        chains,
		keys:          keys,
		identities:    identities,
		contacts:      contacts,
		processed:     processed,
		notifications: notifications,
		transport:     transport,
	}
}

var _ billservice.Broadcaster = (*EventBus)(nil)

// Broadcast implements billservice.Broadcaster: it wraps ev in a
// signed envelope and hands it to Transport (spec.md §4.7).
func (b *EventBus) Broadcast(ctx context.Context, ev billservice.Event) error {
	envelope, err := b.sign(ev)
	if err != nil {
		return fmt.Errorf("eventbus: broadcast: %w", err)
	}
	if err := b.transport.Send(ctx, ev.Recipient, envelope); err != nil {
		return fmt.Errorf("eventbus: broadcast: %w", err)
	}
	return nil
}

func (b *EventBus) sign(ev billservice.Event) (Envelope, error) {
	billEventType, ok := billEventTypeByAction[ev.EventType]
	if !ok {
		return Envelope{}, fmt.Errorf("no wire event type for action %q", ev.EventType)
	}

	blocks := make([]string, 0, len(ev.Blocks))
	for _, blk := range ev.Blocks {
		encoded, err := encodeBlock(blk)
		if err != nil {
			return Envelope{}, err
		}
		blocks = append(blocks, encoded)
	}

	payload := BillPayload{BillID: ev.BillID, EventType: billEventType, Blocks: blocks, Keys: encodeKeys(ev.Keys)}
	if ev.Sum != 0 {
		sum := ev.Sum
		payload.Sum = &sum
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload: %w", err)
	}

	nodeID := b.selfKeys.NodeID()
	hash := signingHash(nodeID, EnvelopeBill, payloadBytes)
	sig, err := b.selfKeys.Sign(hash)
	if err != nil {
		return Envelope{}, fmt.Errorf("sign envelope: %w", err)
	}

	eventID, err := newEventID()
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:   eventID,
		NodeID:    nodeID,
		EventType: EnvelopeBill,
		Payload:   payloadBytes,
		Signature: sig,
	}, nil
}

// Ingest applies an inbound envelope: it authenticates the sender,
// deduplicates by event id, merges the carried blocks into the local
// chain (accepting a brand-new bill only if its genesis block
// decrypts with the carried keys), recomputes the derived view, and
// records a user-visible notification (spec.md §4.7 "Inbound
// handler").
func (b *EventBus) Ingest(ctx context.Context, me crypto.NodeID, envelope Envelope, now int64) (*derivedview.Result, error) {
	start := time.Now()
	result, err := b.ingest(ctx, me, envelope, now)
	outcome := "ok"
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		outcome = "duplicate"
	case errors.Is(err, ErrUnauthorized):
		outcome = "unauthorized"
	case err != nil:
		outcome = "error"
	}
	recordIngestDuration(start, outcome)
	return result, err
}

// ingest runs Ingest's body; split out so Ingest itself can time and
// label the whole span in one place regardless of which branch returns.
func (b *EventBus) ingest(ctx context.Context, me crypto.NodeID, envelope Envelope, now int64) (*derivedview.Result, error) {
	if envelope.EventType != EnvelopeBill {
		return nil, fmt.Errorf("eventbus: unsupported envelope type %q", envelope.EventType)
	}

	hash := signingHash(envelope.NodeID, envelope.EventType, envelope.Payload)
	pub, err := crypto.ParseNodeID(envelope.NodeID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed node id: %v", ErrUnauthorized, err)
	}
	if !crypto.Verify(pub, hash, envelope.Signature) {
		return nil, fmt.Errorf("%w: signature does not match node id", ErrUnauthorized)
	}
	if known, err := b.isKnown(ctx, envelope.NodeID); err != nil {
		return nil, err
	} else if !known {
		return nil, fmt.Errorf("%w: sender is neither a local identity nor a known contact", ErrUnauthorized)
	}

	if alreadyProcessed, err := b.processed.MarkProcessed(ctx, envelope.EventID); err != nil {
		return nil, err
	} else if alreadyProcessed {
		return nil, ErrAlreadyProcessed
	}

	var payload BillPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return nil, fmt.Errorf("eventbus: decode payload: %w", err)
	}
	blocks := make([]*block.Block, 0, len(payload.Blocks))
	for _, encoded := range payload.Blocks {
		blk, err := decodeBlock(encoded)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, blk)
	}

	billKeys, err := b.applyBlocks(ctx, payload, blocks)
	if err != nil {
		return nil, err
	}

	c, err := b.chains.Load(ctx, payload.BillID)
	if err != nil {
		return nil, err
	}
	result, err := derivedview.Recompute(c, billKeys, me, now, false)
	if err != nil {
		return nil, err
	}

	if err := b.notifications.Create(ctx, payload.BillID, payload.EventType); err != nil {
		return nil, err
	}
	return result, nil
}

// applyBlocks persists payload.Blocks against the local chain store,
// accepting a brand-new bill only via a fully valid chain whose
// genesis decrypts with the carried keys, and returns the bill's keys.
func (b *EventBus) applyBlocks(ctx context.Context, payload BillPayload, blocks []*block.Block) (*crypto.Keys, error) {
	existing, err := b.chains.Load(ctx, payload.BillID)
	if errors.Is(err, store.ErrNotFound) {
		if payload.Keys == nil {
			return nil, fmt.Errorf("eventbus: unknown bill %s without accompanying keys", payload.BillID)
		}
		billKeys, err := decodeKeys(payload.Keys)
		if err != nil {
			return nil, err
		}
		c, err := chain.NewFromBlocks(blocks)
		if err != nil {
			return nil, fmt.Errorf("eventbus: %w", err)
		}
		if _, err := c.GetFirstVersionBill(billKeys); err != nil {
			return nil, fmt.Errorf("eventbus: genesis block does not decrypt with carried keys: %w", err)
		}
		if err := b.keys.Save(ctx, payload.BillID, billKeys); err != nil {
			return nil, err
		}
		if err := b.chains.Save(ctx, payload.BillID, c); err != nil {
			return nil, err
		}
		return billKeys, nil
	}
	if err != nil {
		return nil, err
	}

	for _, blk := range blocks {
		if !existing.TryAddBlock(blk) {
			return nil, fmt.Errorf("eventbus: %w: block %d did not extend the chain", chain.ErrInvalid, blk.ID())
		}
	}
	if !existing.IsValid() {
		return nil, fmt.Errorf("eventbus: %w: chain invalid after merge", chain.ErrInvalid)
	}
	if err := b.chains.Save(ctx, payload.BillID, existing); err != nil {
		return nil, err
	}
	return b.keys.Load(ctx, payload.BillID)
}

// isKnown reports whether nodeID is this node's own identity or a
// known contact (spec.md §4.7 step 1).
func (b *EventBus) isKnown(ctx context.Context, nodeID crypto.NodeID) (bool, error) {
	if nodeID == b.selfKeys.NodeID() {
		return true, nil
	}
	if _, err := b.contacts.Get(ctx, nodeID); err == nil {
		return true, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	ic, err := b.identities.Load(ctx, nodeID)
	if err != nil {
		return false, err
	}
	return ic.Len() > 0, nil
}
