// Package notifications is the long-poll HTTP surface over a node's
// bill notification feed (spec.md §4.7 step 5, §6). It replaces the
// teacher's beat/event block-reader polling loop with the same
// read-then-block shape, driven by co.Signal instead of a chain
// repository's new-block wakeup.
package notifications

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/bitcredit/ebill/api/utils"
	"github.com/bitcredit/ebill/co"
	"github.com/bitcredit/ebill/eventbus"
)

// longPollTimeout bounds how long handleWait blocks before returning
// an empty result, so a client behind a reverse proxy never stalls a
// connection indefinitely.
const longPollTimeout = 25 * time.Second

// Inbox is the subset of eventbus.MemoryNotificationInbox this package
// depends on, read by the Active listing and the long-poll Wait.
type Inbox interface {
	Active() []*eventbus.Notification
	Wait(billID string) co.Waiter
}

type Notifications struct {
	inbox Inbox
}

func New(inbox Inbox) *Notifications {
	return &Notifications{inbox: inbox}
}

func (n *Notifications) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()
	sub.Path("").Methods("GET").HandlerFunc(utils.WrapHandlerFunc(n.handleActive))
	sub.Path("/{id}/wait").Methods("GET").HandlerFunc(utils.WrapHandlerFunc(n.handleWait))
}

// handleActive returns every notification not yet superseded by a
// later one for the same bill.
func (n *Notifications) handleActive(w http.ResponseWriter, _ *http.Request) error {
	return utils.WriteJSON(w, n.inbox.Active())
}

// handleWait blocks until a new notification lands for the named
// bill, or longPollTimeout elapses, whichever comes first.
func (n *Notifications) handleWait(w http.ResponseWriter, req *http.Request) error {
	billID := mux.Vars(req)["id"]
	waiter := n.inbox.Wait(billID)

	ctx, cancel := context.WithTimeout(req.Context(), longPollTimeout)
	defer cancel()

	select {
	case trigger := <-waiter.C():
		return utils.WriteJSON(w, utils.M{"bill_id": billID, "event_type": trigger.Source, "triggered_at": trigger.Time})
	case <-ctx.Done():
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
}
