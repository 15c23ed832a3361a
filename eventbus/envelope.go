// Package eventbus implements ChainSync/EventBus (C9): the signed
// envelope format and idempotent inbound handler spec.md §4.7/§6
// describe, plumbed over an injected Transport so the actual
// encrypted direct-message primitive stays an external collaborator
// (SPEC_FULL.md §1 Non-goals).
package eventbus

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/bitcredit/ebill/block"
	"github.com/bitcredit/ebill/crypto"
)

// BillEventType enumerates every notifiable bill transition (spec.md
// §6).
type BillEventType string

const (
	BillSigned              BillEventType = "BillSigned"
	BillAccepted            BillEventType = "BillAccepted"
	BillAcceptanceRequested BillEventType = "BillAcceptanceRequested"
	BillAcceptanceRejected  BillEventType = "BillAcceptanceRejected"
	BillPaid                BillEventType = "BillPaid"
	BillPaymentRequested    BillEventType = "BillPaymentRequested"
	BillPaymentRejected     BillEventType = "BillPaymentRejected"
	BillSold                BillEventType = "BillSold"
	BillOfferedToSell       BillEventType = "BillOfferedToSell"
	BillSellRejected        BillEventType = "BillSellRejected"
	BillEndorsed            BillEventType = "BillEndorsed"
	BillMinted              BillEventType = "BillMinted"
	BillRecourseRequested   BillEventType = "BillRecourseRequested"
	BillRecoursePaid        BillEventType = "BillRecoursePaid"
	BillRecourseRejected    BillEventType = "BillRecourseRejected"
	BillPaymentTimeout      BillEventType = "BillPaymentTimeout"
)

// billEventTypeByAction maps an action/event kind label as BillService
// reports it (validation.Kind.String(), or one of BillService's own
// synthetic labels like "Issue"/"RequestTimedOut") onto the wire
// BillEventType. Labels with no notifiable counterpart fall through to
// the zero value and are rejected by EventBus.sign.
var billEventTypeByAction = map[string]BillEventType{
	"Issue":               BillSigned,
	"Accept":              BillAccepted,
	"RequestToAccept":     BillAcceptanceRequested,
	"RejectToAccept":      BillAcceptanceRejected,
	"RequestToPay":        BillPaymentRequested,
	"RejectToPay":         BillPaymentRejected,
	"OfferToSell":         BillOfferedToSell,
	"Sell":                BillSold,
	"RejectToBuy":         BillSellRejected,
	"Endorse":             BillEndorsed,
	"Mint":                BillMinted,
	"RequestRecourse":     BillRecourseRequested,
	"Recourse":            BillRecoursePaid,
	"RejectToPayRecourse": BillRecourseRejected,
	"RequestTimedOut":     BillPaymentTimeout,
}

// EnvelopeType discriminates the three node-scoped event streams
// spec.md §6 names; this package only ever produces/consumes "Bill".
type EnvelopeType string

const (
	EnvelopeBill     EnvelopeType = "Bill"
	EnvelopeCompany  EnvelopeType = "Company"
	EnvelopeIdentity EnvelopeType = "Identity"
)

// Envelope is the signed wire object spec.md §6 specifies: `{ node_id,
// event_type, payload }`, extended with the fields needed to verify
// and deduplicate it.
type Envelope struct {
	EventID   string          `json:"event_id"`
	NodeID    crypto.NodeID   `json:"node_id"`
	EventType EnvelopeType    `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Signature []byte          `json:"signature"`
}

// KeysPayload carries a bill's ECIES keypair to a newly introduced
// participant, base58-encoded for transport.
type KeysPayload struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// BillPayload is the Bill-event_type payload body (spec.md §6).
type BillPayload struct {
	BillID     string        `json:"bill_id"`
	EventType  BillEventType `json:"event_type"`
	Blocks     []string      `json:"blocks"`
	Keys       *KeysPayload  `json:"keys,omitempty"`
	Sum        *uint64       `json:"sum,omitempty"`
	ActionType *string       `json:"action_type,omitempty"`
}

// encodeBlock base58-encodes b's canonical RLP encoding, the same
// transport convention spec.md §6 applies to payload ciphertext.
func encodeBlock(b *block.Block) (string, error) {
	data, err := rlp.EncodeToBytes(b)
	if err != nil {
		return "", fmt.Errorf("encode block: %w", err)
	}
	return crypto.Base58Encode(data), nil
}

func decodeBlock(s string) (*block.Block, error) {
	data, err := crypto.Base58Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	var b block.Block
	if err := rlp.DecodeBytes(data, &b); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	return &b, nil
}

func encodeKeys(keys *crypto.Keys) *KeysPayload {
	if keys == nil {
		return nil
	}
	return &KeysPayload{
		PublicKey:  crypto.Base58Encode(keys.PublicKeyBytes()),
		PrivateKey: crypto.Base58Encode(keys.PrivateKeyBytes()),
	}
}

func decodeKeys(p *KeysPayload) (*crypto.Keys, error) {
	if p == nil {
		return nil, nil
	}
	priv, err := crypto.Base58Decode(p.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("decode keys: %w", err)
	}
	return crypto.KeysFromPrivateKeyBytes(priv)
}

// signingHash is the payload every envelope signature covers: the
// node id, envelope type, and raw payload bytes concatenated.
func signingHash(nodeID crypto.NodeID, eventType EnvelopeType, payload []byte) crypto.Hash {
	return crypto.SHA256([]byte(nodeID), []byte(eventType), payload)
}
