package bill

import "github.com/bitcredit/ebill/crypto"

// SignatureMetadata is embedded in every non-Issue payload: who signed
// and when. The derived payment address, where one applies, is carried
// by the OfferToSell, Sell and Recourse payloads themselves.
type SignatureMetadata struct {
	SignatoryIdentity *IdentifiedParticipant `json:"signatory_identity,omitempty"`
	SigningTimestamp  int64                  `json:"signing_timestamp"`
}

// IssuePayload is the genesis block payload: the full bill data plus the
// bill's own public key, so any holder of the chain can verify every
// later block without an external lookup.
type IssuePayload struct {
	Data Data          `json:"data"`
	Keys crypto.NodeID `json:"bill_node_id"`
}

type AcceptPayload struct {
	SignatureMetadata
}

type RequestToAcceptPayload struct {
	SignatureMetadata
}

type RejectToAcceptPayload struct {
	SignatureMetadata
}

type RequestToPayPayload struct {
	SignatureMetadata
	Currency string `json:"currency"`
}

type RejectToPayPayload struct {
	SignatureMetadata
}

// OfferToSellPayload names a buyer (possibly anonymous, per SPEC_FULL.md
// §4.2b) and seller, a sum and currency, and the payment address the
// seller derived for this offer (§4.4).
type OfferToSellPayload struct {
	SignatureMetadata
	Buyer          Participant `json:"buyer"`
	Seller         Participant `json:"seller"`
	Sum            uint64      `json:"sum"`
	Currency       string      `json:"currency"`
	PaymentAddress string      `json:"payment_address"`
}

// SellPayload closes a preceding OfferToSell: it carries the same buyer
// and sum, plus the payment address the seller expects payment to, so
// the PaymentOracle can later be queried against it.
type SellPayload struct {
	SignatureMetadata
	Buyer          Participant `json:"buyer"`
	Seller         Participant `json:"seller"`
	Sum            uint64      `json:"sum"`
	Currency       string      `json:"currency"`
	PaymentAddress string      `json:"payment_address"`
}

type RejectToBuyPayload struct {
	SignatureMetadata
}

// EndorsePayload makes Endorsee the new holder.
type EndorsePayload struct {
	SignatureMetadata
	Endorsee Participant `json:"endorsee"`
}

// MintPayload makes Mintee the new holder via a minting institution;
// treated as endorsement-equivalent for holder-rule purposes
// (SPEC_FULL.md §4.2).
type MintPayload struct {
	SignatureMetadata
	Mintee Participant `json:"mintee"`
}

type RequestRecoursePayload struct {
	SignatureMetadata
	Recourser IdentifiedParticipant `json:"recourser"`
	Recoursee IdentifiedParticipant `json:"recoursee"`
	Sum       uint64                `json:"sum"`
	Currency  string                `json:"currency"`
	Reason    RecourseReason        `json:"reason"`
}

type RecoursePayload struct {
	SignatureMetadata
	Recourser      IdentifiedParticipant `json:"recourser"`
	Recoursee      IdentifiedParticipant `json:"recoursee"`
	Sum            uint64                `json:"sum"`
	Currency       string                `json:"currency"`
	Reason         RecourseReason        `json:"reason"`
	PaymentAddress string                `json:"payment_address"`
}

type RejectToPayRecoursePayload struct {
	SignatureMetadata
}
