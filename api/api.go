package api

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/bitcredit/ebill/api/bills"
	"github.com/bitcredit/ebill/api/notifications"
	"github.com/bitcredit/ebill/api/peer"
	"github.com/bitcredit/ebill/billservice"
	"github.com/bitcredit/ebill/eventbus"
	"github.com/bitcredit/ebill/telemetry"
)

// New assembles the node's HTTP surface: bill operations/queries, the
// notification long-poll feed, and the inbound peer-event endpoint,
// each mounted the way the teacher's own api packages mount themselves
// (Mount(root, pathPrefix)), wrapped in CORS since this API is meant to
// be driven by a separate web UI.
func New(service *billservice.Service, actor billservice.Actor, inbox notifications.Inbox, bus *eventbus.EventBus) http.Handler {
	router := mux.NewRouter()
	bills.New(service, actor).Mount(router, "/bills")
	notifications.New(inbox).Mount(router, "/notifications")
	peer.New(bus, actor.NodeID()).Mount(router, "/peer")
	router.Path("/metrics").Methods("GET").Handler(telemetry.Handler())
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(router)
}
