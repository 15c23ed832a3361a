// Package producer implements the BlockProducer (C6): turns a
// validated action into a signed, encrypted block ready to append to
// a bill chain.
package producer

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/block"
	"github.com/bitcredit/ebill/crypto"
	"github.com/bitcredit/ebill/validation"
)

// Signer carries the identity producing a block: personal keys always,
// plus company keys when the signer is acting on a company's behalf.
// Only the company public key is recorded on the block, as its
// co-signer key; the company keys produce no signature.
type Signer struct {
	PersonalKeys      *crypto.Keys
	SignatoryIdentity *bill.IdentifiedParticipant // set when signing on a company's behalf
	CompanyKeys       *crypto.Keys                // non-nil iff SignatoryIdentity is set
}

// Produce builds the op-specific payload for action, encrypts it with
// the bill's public key, and signs the resulting block. prevHash/nextID
// describe the chain tip the new block extends.
func Produce(billID string, prevHash crypto.Hash, nextID uint64, billKeys *crypto.Keys, signer Signer, action validation.Action, ts int64) (*block.Block, error) {
	meta := bill.SignatureMetadata{SignatoryIdentity: signer.SignatoryIdentity, SigningTimestamp: ts}

	payload, err := buildPayload(billKeys, signer, action, meta)
	if err != nil {
		return nil, fmt.Errorf("produce block: %w", err)
	}

	encoded, err := block.EncodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("produce block: encode payload: %w", err)
	}
	ciphertext, err := crypto.Encrypt(billKeys, encoded)
	if err != nil {
		return nil, fmt.Errorf("produce block: encrypt payload: %w", err)
	}

	b := block.New(nextID, billID, action.Kind.OpCode(), prevHash, ciphertext, ts, signer.PersonalKeys.PublicKeyBytes(), coSignerPubKey(signer))
	signed, err := b.Sign(signer.PersonalKeys, signer.CompanyKeys)
	if err != nil {
		return nil, fmt.Errorf("produce block: sign: %w", err)
	}
	return signed, nil
}

// ProduceIssue builds and signs the genesis block for a new bill. The
// bill keypair is generated by the caller (BillService.issue) and used
// only to encrypt the payload — it does not itself co-sign (see
// DESIGN.md's Open Question decision on genesis co-signing).
func ProduceIssue(data bill.Data, billKeys *crypto.Keys, drawer Signer, ts int64) (*block.Block, error) {
	payload := bill.IssuePayload{Data: data, Keys: billKeys.NodeID()}

	encoded, err := block.EncodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("produce issue block: encode payload: %w", err)
	}
	ciphertext, err := crypto.Encrypt(billKeys, encoded)
	if err != nil {
		return nil, fmt.Errorf("produce issue block: encrypt payload: %w", err)
	}

	b := block.New(1, data.ID, bill.Issue, crypto.Hash{}, ciphertext, ts, drawer.PersonalKeys.PublicKeyBytes(), coSignerPubKey(drawer))
	signed, err := b.Sign(drawer.PersonalKeys, drawer.CompanyKeys)
	if err != nil {
		return nil, fmt.Errorf("produce issue block: sign: %w", err)
	}
	return signed, nil
}

func coSignerPubKey(signer Signer) []byte {
	if signer.CompanyKeys == nil {
		return nil
	}
	return signer.CompanyKeys.PublicKeyBytes()
}

func buildPayload(billKeys *crypto.Keys, signer Signer, action validation.Action, meta bill.SignatureMetadata) (interface{}, error) {
	switch action.Kind {
	case validation.Accept:
		return bill.AcceptPayload{SignatureMetadata: meta}, nil
	case validation.RequestToAccept:
		return bill.RequestToAcceptPayload{SignatureMetadata: meta}, nil
	case validation.RejectToAccept:
		return bill.RejectToAcceptPayload{SignatureMetadata: meta}, nil
	case validation.RequestToPay:
		return bill.RequestToPayPayload{SignatureMetadata: meta, Currency: action.Currency}, nil
	case validation.RejectToPay:
		return bill.RejectToPayPayload{SignatureMetadata: meta}, nil
	case validation.OfferToSell:
		seller := sellerParticipant(signer)
		addr, err := derivePaymentAddress(billKeys, seller.NodeID())
		if err != nil {
			return nil, err
		}
		return bill.OfferToSellPayload{
			SignatureMetadata: meta,
			Buyer:             action.Buyer,
			Seller:            seller,
			Sum:               action.Sum,
			Currency:          action.Currency,
			PaymentAddress:    addr,
		}, nil
	case validation.Sell:
		seller := sellerParticipant(signer)
		addr, err := derivePaymentAddress(billKeys, seller.NodeID())
		if err != nil {
			return nil, err
		}
		return bill.SellPayload{
			SignatureMetadata: meta,
			Buyer:             action.Buyer,
			Seller:            seller,
			Sum:               action.Sum,
			Currency:          action.Currency,
			PaymentAddress:    addr,
		}, nil
	case validation.RejectToBuy:
		return bill.RejectToBuyPayload{SignatureMetadata: meta}, nil
	case validation.Endorse:
		return bill.EndorsePayload{SignatureMetadata: meta, Endorsee: action.Endorsee}, nil
	case validation.Mint:
		return bill.MintPayload{SignatureMetadata: meta, Mintee: action.Mintee}, nil
	case validation.RequestRecourse:
		return bill.RequestRecoursePayload{
			SignatureMetadata: meta,
			Recourser:         recourserParticipant(signer),
			Recoursee:         action.Recoursee,
			Sum:               action.Sum,
			Currency:          action.Currency,
			Reason:            action.Reason,
		}, nil
	case validation.Recourse:
		recourser := recourserParticipant(signer)
		addr, err := derivePaymentAddress(billKeys, recourser.NodeID)
		if err != nil {
			return nil, err
		}
		return bill.RecoursePayload{
			SignatureMetadata: meta,
			Recourser:         recourser,
			Recoursee:         action.Recoursee,
			Sum:               action.Sum,
			Currency:          action.Currency,
			Reason:            action.Reason,
			PaymentAddress:    addr,
		}, nil
	case validation.RejectToPayRecourse:
		return bill.RejectToPayRecoursePayload{SignatureMetadata: meta}, nil
	default:
		return nil, fmt.Errorf("unknown action kind %v", action.Kind)
	}
}

func sellerParticipant(signer Signer) bill.Participant {
	if signer.SignatoryIdentity != nil {
		return bill.FromIdentified(*signer.SignatoryIdentity)
	}
	return bill.FromAnonymous(bill.AnonymousParticipant{NodeID: signer.PersonalKeys.NodeID()})
}

func recourserParticipant(signer Signer) bill.IdentifiedParticipant {
	if signer.SignatoryIdentity != nil {
		return *signer.SignatoryIdentity
	}
	return bill.IdentifiedParticipant{NodeID: signer.PersonalKeys.NodeID()}
}

// derivePaymentAddress computes the fresh Bitcoin address a seller (or
// recourser) expects payment to: a deterministic tweak of the bill's
// own public key by the beneficiary's node id (spec.md §4.4, §9).
func derivePaymentAddress(billKeys *crypto.Keys, beneficiary crypto.NodeID) (string, error) {
	return crypto.DeriveP2WPKHAddress(billKeys, beneficiary, &chaincfg.MainNetParams)
}
