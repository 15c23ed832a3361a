package billservice

import (
	"context"

	"github.com/bitcredit/ebill/block"
	"github.com/bitcredit/ebill/crypto"
)

// Event is one outbound notification a local append produces, destined
// for a single participant (spec.md §4.7). Keys is set only on the
// event that first introduces the bill to Recipient (typically Issue,
// or an Endorse/Sell/Mint naming them as the new holder).
type Event struct {
	BillID    string
	Recipient crypto.NodeID
	EventType string
	Blocks    []*block.Block
	Keys      *crypto.Keys
	Sum       uint64
}

// Broadcaster delivers an Event to its recipient. It is implemented by
// the ChainSync/EventBus package; BillService depends only on this
// interface to avoid an import cycle.
type Broadcaster interface {
	Broadcast(ctx context.Context, event Event) error
}
