package validation

import (
	"fmt"

	"github.com/bitcredit/ebill/bill"
)

// Kind enumerates every proposable action, mirroring bill.OpCode but
// kept distinct: an action is a request to produce a block, not the
// block itself.
type Kind int

const (
	Accept Kind = iota
	RequestToAccept
	RejectToAccept
	RequestToPay
	RejectToPay
	OfferToSell
	Sell
	RejectToBuy
	Endorse
	Mint
	RequestRecourse
	Recourse
	RejectToPayRecourse
)

func (k Kind) String() string {
	switch k {
	case Accept:
		return "Accept"
	case RequestToAccept:
		return "RequestToAccept"
	case RejectToAccept:
		return "RejectToAccept"
	case RequestToPay:
		return "RequestToPay"
	case RejectToPay:
		return "RejectToPay"
	case OfferToSell:
		return "OfferToSell"
	case Sell:
		return "Sell"
	case RejectToBuy:
		return "RejectToBuy"
	case Endorse:
		return "Endorse"
	case Mint:
		return "Mint"
	case RequestRecourse:
		return "RequestRecourse"
	case Recourse:
		return "Recourse"
	case RejectToPayRecourse:
		return "RejectToPayRecourse"
	default:
		return "Unknown"
	}
}

// OpCode maps an action kind to the block op code it produces.
func (k Kind) OpCode() bill.OpCode { return bill.OpCode(k) }

// ParseKind parses Kind.String()'s output back into a Kind, for a
// caller (e.g. an HTTP handler) that received the action name as text.
func ParseKind(s string) (Kind, error) {
	for k := Accept; k <= RejectToPayRecourse; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("validation: unknown action kind %q", s)
}

// Action is a proposed mutation of a bill's chain, carrying whichever
// fields its Kind requires; the rest are zero.
type Action struct {
	Kind           Kind
	Buyer          bill.Participant
	Seller         bill.Participant
	Endorsee       bill.Participant
	Mintee         bill.Participant
	Recoursee      bill.IdentifiedParticipant
	Sum            uint64
	Currency       string
	PaymentAddress string
	Reason         bill.RecourseReason
}
