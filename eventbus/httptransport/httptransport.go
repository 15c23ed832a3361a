// Package httptransport is the default eventbus.Transport: it resolves
// a recipient's node id to a base URL from a static peer directory and
// POSTs the signed envelope to it as JSON, the same
// marshal-and-POST shape thorclient/httpclient uses for its own
// request bodies, adapted here from an outbound RPC client call into
// an outbound event delivery.
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bitcredit/ebill/crypto"
	"github.com/bitcredit/ebill/eventbus"
)

// ErrNoPeerAddress is returned by Send when recipient has no known
// base URL in the directory; BillService still completes the action
// in that case (spec.md treats broadcast as best-effort fan-out),
// only that one recipient never gets an envelope.
type ErrNoPeerAddress crypto.NodeID

func (e ErrNoPeerAddress) Error() string {
	return fmt.Sprintf("httptransport: no known address for node %s", crypto.NodeID(e))
}

// Transport POSTs envelopes to peers' /peer/events endpoints (see
// api/peer).
type Transport struct {
	client *http.Client
	peers  map[crypto.NodeID]string
}

// New wires a Transport over a fixed node-id-to-base-URL directory.
// Swapping this for a dynamic directory (DNS, a rendezvous service) is
// future work the external direct-message collaborator spec.md names
// would actually own; this module only needs somewhere to send to.
func New(peers map[crypto.NodeID]string) *Transport {
	return &Transport{client: http.DefaultClient, peers: peers}
}

var _ eventbus.Transport = (*Transport)(nil)

func (t *Transport) Send(ctx context.Context, recipient crypto.NodeID, envelope eventbus.Envelope) error {
	base, ok := t.peers[recipient]
	if !ok {
		return ErrNoPeerAddress(recipient)
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("httptransport: encode envelope: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/peer/events", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("httptransport: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("httptransport: send to %s: %w", base, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("httptransport: %s responded %s", base, resp.Status)
	}
	return nil
}
