// Package validation implements the ActionValidator (C5): a pure
// function deciding whether a proposed action is legal against a
// bill's current chain state.
package validation

import "fmt"

// ErrorCode enumerates every distinct validation failure (spec.md
// §4.3). No validator path returns a generic error.
type ErrorCode int

const (
	BillAlreadyPaid ErrorCode = iota
	CallerIsNotDrawee
	CallerIsNotHolder
	CallerIsNotBuyer
	CallerIsNotRecoursee
	BillAlreadyAccepted
	BillAlreadyRequestedToAccept
	BillWasRequestedToPay
	BillInOfferToSellState
	BillInRecourseState
	BillRequestedToPayBeforeMaturityDate
	BillAlreadyRequestedToPay
	RecourseeNotPastHolder
	BillRequestToAcceptDidNotExpireAndWasNotRejected
	BillRequestToPayDidNotExpireAndWasNotRejected
	BillSellDataInvalid
	BillRecourseDataInvalid
	RequestAlreadyRejected
	RequestAlreadyExpired
	NoOfferToSellWaiting
	NoRequestToRecourseWaiting
	NoRequestToPayWaiting
	NoRequestToAcceptWaiting
	SignerCantBeAnonymous
	InvalidNodeID
	ChainMissingAccept
)

var codeNames = map[ErrorCode]string{
	BillAlreadyPaid:                    "BillAlreadyPaid",
	CallerIsNotDrawee:                  "CallerIsNotDrawee",
	CallerIsNotHolder:                  "CallerIsNotHolder",
	CallerIsNotBuyer:                   "CallerIsNotBuyer",
	CallerIsNotRecoursee:               "CallerIsNotRecoursee",
	BillAlreadyAccepted:                "BillAlreadyAccepted",
	BillAlreadyRequestedToAccept:       "BillAlreadyRequestedToAccept",
	BillWasRequestedToPay:              "BillWasRequestedToPay",
	BillInOfferToSellState:             "BillInOfferToSellState",
	BillInRecourseState:                "BillInRecourseState",
	BillRequestedToPayBeforeMaturityDate: "BillRequestedToPayBeforeMaturityDate",
	BillAlreadyRequestedToPay:          "BillAlreadyRequestedToPay",
	RecourseeNotPastHolder:             "RecourseeNotPastHolder",
	BillRequestToAcceptDidNotExpireAndWasNotRejected: "BillRequestToAcceptDidNotExpireAndWasNotRejected",
	BillRequestToPayDidNotExpireAndWasNotRejected:    "BillRequestToPayDidNotExpireAndWasNotRejected",
	BillSellDataInvalid:      "BillSellDataInvalid",
	BillRecourseDataInvalid:  "BillRecourseDataInvalid",
	RequestAlreadyRejected:   "RequestAlreadyRejected",
	RequestAlreadyExpired:    "RequestAlreadyExpired",
	NoOfferToSellWaiting:     "NoOfferToSellWaiting",
	NoRequestToRecourseWaiting: "NoRequestToRecourseWaiting",
	NoRequestToPayWaiting:    "NoRequestToPayWaiting",
	NoRequestToAcceptWaiting: "NoRequestToAcceptWaiting",
	SignerCantBeAnonymous:    "SignerCantBeAnonymous",
	InvalidNodeID:            "InvalidNodeID",
	ChainMissingAccept:       "ChainMissingAccept",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "Unknown"
}

// Error is the single error type every rejection carries, distinguished
// by Code.
type Error struct {
	code ErrorCode
	msg  string
}

func newError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Code() ErrorCode { return e.code }
func (e *Error) Error() string   { return e.msg }
