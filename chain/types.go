package chain

import "github.com/bitcredit/ebill/bill"

// LightSignedBy names who actually produced a block: the participant
// the chain attributes the action to, and, when a company acted
// through a co-signing person, that person's identity.
type LightSignedBy struct {
	Signer    bill.Participant
	Signatory *bill.IdentifiedParticipant
}

// Endorsement is one historical transfer-of-holder event, in the
// holder's own words: "pay to the order of X, signed by Y".
type Endorsement struct {
	PayToTheOrderOf bill.IdentifiedParticipant
	Signed          LightSignedBy
	SigningTimestamp int64
	SigningAddress   *string
}

// PastEndorsee is a previously-held-by party eligible to be recoursed
// against; PastEndorsees returns them sorted most-recent-first.
type PastEndorsee struct {
	PayToTheOrderOf  bill.IdentifiedParticipant
	Signed           LightSignedBy
	SigningTimestamp int64
	SigningAddress   *string
}

// PaymentInfo describes one sell leg: who is buying from whom, for how
// much, and where payment is expected.
type PaymentInfo struct {
	Buyer          bill.Participant
	Seller         bill.Participant
	Sum            uint64
	Currency       string
	PaymentAddress string
}

// RecoursePaymentInfo describes one recourse leg.
type RecoursePaymentInfo struct {
	Recourser bill.IdentifiedParticipant
	Recoursee bill.IdentifiedParticipant
	Sum       uint64
	Currency  string
	Reason    bill.RecourseReason
}

// PastPaymentStatus is the terminal state of a historical sell/recourse
// leg.
type PastPaymentStatus int

const (
	PastPaymentPaid PastPaymentStatus = iota
	PastPaymentRejected
	PastPaymentExpired
)

// PastPayment pairs payment info with how (and when) it resolved, and
// the timestamp the request itself was made at.
type PastPayment struct {
	Info            interface{} // PaymentInfo or RecoursePaymentInfo
	Status          PastPaymentStatus
	ResolvedAt      int64
	RequestedAt     int64
}

// OfferToSellWaiting reports the current open offer, if any.
type OfferToSellWaiting struct {
	Waiting bool
	Info    PaymentInfo
}

// RequestToRecourseWaiting reports the current open recourse request,
// if any.
type RequestToRecourseWaiting struct {
	Waiting bool
	Info    RecoursePaymentInfo
}

// Parties is the latest known set of a bill's named roles.
type Parties struct {
	Drawee   bill.IdentifiedParticipant
	Drawer   bill.IdentifiedParticipant
	Payee    bill.Participant
	Endorsee *bill.Participant
}
