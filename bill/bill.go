// Package bill holds the bill-of-exchange domain types: the immutable
// issue data fixed at genesis, participants, and the bill's own
// encryption keypair.
package bill

import (
	"github.com/bitcredit/ebill/crypto"
)

// Type is the legal form of the bill of exchange.
type Type int

const (
	PromissoryNote Type = iota
	SelfDrafted
	ThreeParties
)

func (t Type) String() string {
	switch t {
	case PromissoryNote:
		return "PromissoryNote"
	case SelfDrafted:
		return "SelfDrafted"
	case ThreeParties:
		return "ThreeParties"
	default:
		return "Unknown"
	}
}

// ContactType distinguishes a natural person from a company as a
// participant's legal form.
type ContactType int

const (
	Person ContactType = iota
	Company
)

// IdentifiedParticipant is a participant whose legal identity is known:
// required wherever commercial-paper law demands a named signer
// (drawer, drawee, an accepter, any rejection, a recourse party).
type IdentifiedParticipant struct {
	Type          ContactType
	NodeID        crypto.NodeID
	Name          string
	PostalAddress string
}

// AnonymousParticipant is a participant identified only by its node id —
// permitted as payee, endorsee, mint recipient, and (per the Open
// Question resolved in SPEC_FULL.md §4.2b) as an OfferToSell/Sell buyer.
type AnonymousParticipant struct {
	NodeID crypto.NodeID
}

// Participant is either an IdentifiedParticipant or an
// AnonymousParticipant. Exactly one of the two fields is set.
type Participant struct {
	Identified *IdentifiedParticipant
	Anonymous  *AnonymousParticipant
}

// NodeID returns the participant's node id regardless of identification.
func (p Participant) NodeID() crypto.NodeID {
	if p.Identified != nil {
		return p.Identified.NodeID
	}
	if p.Anonymous != nil {
		return p.Anonymous.NodeID
	}
	return ""
}

// IsAnonymous reports whether this participant lacks a legal identity.
func (p Participant) IsAnonymous() bool {
	return p.Identified == nil
}

// FromIdentified returns ip as a Participant wrapping an identified
// party.
func FromIdentified(ip IdentifiedParticipant) Participant {
	return Participant{Identified: &ip}
}

// FromAnonymous returns p as a Participant wrapping an anonymous party.
func FromAnonymous(ap AnonymousParticipant) Participant {
	return Participant{Anonymous: &ap}
}

// Attachment is a named, content-addressed file reference. The file
// upload / encryption-at-rest pipeline itself is an external
// collaborator (spec.md §1 Non-goals); only the name and hash travel in
// the signed chain.
type Attachment struct {
	Name string
	Hash crypto.Hash
}

// Data is the immutable issue data fixed at genesis (spec.md §3).
type Data struct {
	ID                 string
	Type               Type
	IssuingCountry     string
	IssuingCity        string
	IssueDate          string // YYYY-MM-DD
	MaturityDate       string // YYYY-MM-DD
	PaymentCountry     string
	PaymentCity        string
	Language           string
	Currency           string
	Sum                uint64
	Drawer             IdentifiedParticipant
	Drawee             IdentifiedParticipant
	Payee              Participant
	Attachments        []Attachment
}

// Keys is the secp256k1 keypair unique to a bill (spec.md §3). It is
// persisted separately from the chain, as invoked by BillService.issue
// and every subsequent append.
type Keys = crypto.Keys
