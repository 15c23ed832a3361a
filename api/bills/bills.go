// Package bills is the bill-of-exchange HTTP surface (spec.md §4.5):
// a thin adapter from gorilla/mux routes onto billservice.Service,
// following the Mount(root, pathPrefix)/WrapHandlerFunc shape the
// teacher's blocks package already established.
package bills

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/bitcredit/ebill/api/utils"
	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/billservice"
	"github.com/bitcredit/ebill/crypto"
	"github.com/bitcredit/ebill/validation"
)

// Bills is the HTTP surface for a single local node: every request is
// attributed to this node's own Actor, mirroring the one-identity-per-
// process model the CLI itself runs under.
type Bills struct {
	service *billservice.Service
	actor   billservice.Actor
}

func New(service *billservice.Service, actor billservice.Actor) *Bills {
	return &Bills{service: service, actor: actor}
}

func (b *Bills) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()
	sub.Path("").Methods("POST").HandlerFunc(utils.WrapHandlerFunc(b.handleIssue))
	sub.Path("").Methods("GET").HandlerFunc(utils.WrapHandlerFunc(b.handleGetBills))
	sub.Path("/search").Methods("GET").HandlerFunc(utils.WrapHandlerFunc(b.handleSearchBills))
	sub.Path("/balances").Methods("GET").HandlerFunc(utils.WrapHandlerFunc(b.handleGetBalances))
	sub.Path("/{id}").Methods("GET").HandlerFunc(utils.WrapHandlerFunc(b.handleGetDetail))
	sub.Path("/{id}/actions").Methods("POST").HandlerFunc(utils.WrapHandlerFunc(b.handleExecute))
	sub.Path("/{id}/endorsements").Methods("GET").HandlerFunc(utils.WrapHandlerFunc(b.handleGetEndorsements))
	sub.Path("/{id}/past-endorsees").Methods("GET").HandlerFunc(utils.WrapHandlerFunc(b.handleGetPastEndorsees))
	sub.Path("/{id}/past-payments").Methods("GET").HandlerFunc(utils.WrapHandlerFunc(b.handleGetPastPayments))
}

func (b *Bills) handleIssue(w http.ResponseWriter, req *http.Request) error {
	var data bill.Data
	if err := utils.ParseJSON(req.Body, &data); err != nil {
		return utils.BadRequest(err)
	}
	c, billKeys, err := b.service.Issue(req.Context(), data, b.actor, nowTS())
	if err != nil {
		return utils.BadRequest(err)
	}
	issue, err := c.GetFirstVersionBill(billKeys)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, issue.Data)
}

type executeRequest struct {
	Kind           string                     `json:"kind"`
	Buyer          bill.Participant           `json:"buyer,omitempty"`
	Seller         bill.Participant           `json:"seller,omitempty"`
	Endorsee       bill.Participant           `json:"endorsee,omitempty"`
	Mintee         bill.Participant           `json:"mintee,omitempty"`
	Recoursee      bill.IdentifiedParticipant `json:"recoursee,omitempty"`
	Sum            uint64                     `json:"sum,omitempty"`
	Currency       string                     `json:"currency,omitempty"`
	PaymentAddress string                     `json:"payment_address,omitempty"`
	Reason         bill.RecourseReason        `json:"reason,omitempty"`
}

func (b *Bills) handleExecute(w http.ResponseWriter, req *http.Request) error {
	billID := mux.Vars(req)["id"]
	var er executeRequest
	if err := utils.ParseJSON(req.Body, &er); err != nil {
		return utils.BadRequest(err)
	}
	kind, err := validation.ParseKind(er.Kind)
	if err != nil {
		return utils.BadRequest(err)
	}
	action := validation.Action{
		Kind:           kind,
		Buyer:          er.Buyer,
		Seller:         er.Seller,
		Endorsee:       er.Endorsee,
		Mintee:         er.Mintee,
		Recoursee:      er.Recoursee,
		Sum:            er.Sum,
		Currency:       er.Currency,
		PaymentAddress: er.PaymentAddress,
		Reason:         er.Reason,
	}
	result, err := b.service.Execute(req.Context(), billID, action, b.actor, nowTS())
	if err != nil {
		return utils.BadRequest(err)
	}
	return utils.WriteJSON(w, result)
}

func (b *Bills) handleGetDetail(w http.ResponseWriter, req *http.Request) error {
	billID := mux.Vars(req)["id"]
	detail, err := b.service.GetDetail(req.Context(), billID, b.me(), nowTS())
	if err != nil {
		return utils.BadRequest(err)
	}
	return utils.WriteJSON(w, detail)
}

func (b *Bills) handleGetBills(w http.ResponseWriter, req *http.Request) error {
	summaries, err := b.service.GetBills(req.Context(), b.me(), nowTS())
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, summaries)
}

func (b *Bills) handleSearchBills(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	filter := billservice.BillFilter{Currency: q.Get("currency")}
	if roleParam := q.Get("role"); roleParam != "" {
		n, err := strconv.Atoi(roleParam)
		if err != nil {
			return utils.BadRequest(err)
		}
		role := billservice.BillRole(n)
		filter.Role = &role
	}
	summaries, err := b.service.SearchBills(req.Context(), filter, b.me(), nowTS())
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, summaries)
}

func (b *Bills) handleGetBalances(w http.ResponseWriter, req *http.Request) error {
	balances, err := b.service.GetBalances(req.Context(), b.me(), nowTS())
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, balances)
}

func (b *Bills) handleGetEndorsements(w http.ResponseWriter, req *http.Request) error {
	billID := mux.Vars(req)["id"]
	endorsements, err := b.service.GetEndorsements(req.Context(), billID, b.me())
	if err != nil {
		return utils.BadRequest(err)
	}
	return utils.WriteJSON(w, endorsements)
}

func (b *Bills) handleGetPastEndorsees(w http.ResponseWriter, req *http.Request) error {
	billID := mux.Vars(req)["id"]
	endorsees, err := b.service.GetPastEndorsees(req.Context(), billID, b.me())
	if err != nil {
		return utils.BadRequest(err)
	}
	return utils.WriteJSON(w, endorsees)
}

func (b *Bills) handleGetPastPayments(w http.ResponseWriter, req *http.Request) error {
	billID := mux.Vars(req)["id"]
	payments, err := b.service.GetPastPayments(req.Context(), billID, b.me(), nowTS())
	if err != nil {
		return utils.BadRequest(err)
	}
	return utils.WriteJSON(w, payments)
}

func (b *Bills) me() crypto.NodeID { return b.actor.NodeID() }

func nowTS() int64 { return time.Now().Unix() }
