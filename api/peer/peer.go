// Package peer is the inbound counterpart to
// eventbus/httptransport: it receives a signed Envelope another node's
// Transport POSTed and hands it to EventBus.Ingest, following the same
// Mount(root, pathPrefix)/WrapHandlerFunc shape as api/bills.
package peer

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/bitcredit/ebill/api/utils"
	"github.com/bitcredit/ebill/crypto"
	"github.com/bitcredit/ebill/eventbus"
)

// Peer mounts the single endpoint another node's httptransport.Transport
// delivers envelopes to.
type Peer struct {
	bus *eventbus.EventBus
	me  crypto.NodeID
}

func New(bus *eventbus.EventBus, me crypto.NodeID) *Peer {
	return &Peer{bus: bus, me: me}
}

func (p *Peer) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()
	sub.Path("/events").Methods("POST").HandlerFunc(utils.WrapHandlerFunc(p.handleEvent))
}

func (p *Peer) handleEvent(w http.ResponseWriter, req *http.Request) error {
	var envelope eventbus.Envelope
	if err := utils.ParseJSON(req.Body, &envelope); err != nil {
		return utils.BadRequest(err)
	}
	result, err := p.bus.Ingest(req.Context(), p.me, envelope, time.Now().Unix())
	switch {
	case err == nil:
		return utils.WriteJSON(w, result)
	case errors.Is(err, eventbus.ErrAlreadyProcessed):
		w.WriteHeader(http.StatusNoContent)
		return nil
	case errors.Is(err, eventbus.ErrUnauthorized):
		return utils.Forbidden(err)
	default:
		return utils.BadRequest(err)
	}
}
