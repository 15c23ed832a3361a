package chain

import (
	"fmt"

	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/block"
	"github.com/bitcredit/ebill/crypto"
)

// IsLastOfferToSellBlockWaitingForPayment reports an open sell offer
// iff the chain's tip is an OfferToSell block and its payment deadline
// has not yet passed (spec.md §4, waiting states).
func (c *Chain) IsLastOfferToSellBlockWaitingForPayment(billKeys *crypto.Keys, now int64) (*OfferToSellWaiting, error) {
	tip := c.GetLatestBlock()
	last := c.GetLastVersionBlockWithOpCode(bill.OfferToSell)
	if last == nil || tip.ID() != last.ID() {
		return &OfferToSellWaiting{Waiting: false}, nil
	}
	if DeadlineHasPassed(last.Timestamp(), now, PaymentDeadlineSeconds) {
		return &OfferToSellWaiting{Waiting: false}, nil
	}

	var p bill.OfferToSellPayload
	if err := last.Decrypt(billKeys, &p); err != nil {
		return nil, err
	}
	return &OfferToSellWaiting{
		Waiting: true,
		Info: PaymentInfo{
			Buyer:          p.Buyer,
			Seller:         p.Seller,
			Sum:            p.Sum,
			Currency:       p.Currency,
			PaymentAddress: p.PaymentAddress,
		},
	}, nil
}

// IsLastRequestToRecourseBlockWaitingForPayment reports an open
// recourse request iff the chain's tip is a RequestRecourse block and
// its deadline has not yet passed.
func (c *Chain) IsLastRequestToRecourseBlockWaitingForPayment(billKeys *crypto.Keys, now int64) (*RequestToRecourseWaiting, error) {
	tip := c.GetLatestBlock()
	last := c.GetLastVersionBlockWithOpCode(bill.RequestRecourse)
	if last == nil || tip.ID() != last.ID() {
		return &RequestToRecourseWaiting{Waiting: false}, nil
	}
	if DeadlineHasPassed(last.Timestamp(), now, RecourseDeadlineSeconds) {
		return &RequestToRecourseWaiting{Waiting: false}, nil
	}

	var p bill.RequestRecoursePayload
	if err := last.Decrypt(billKeys, &p); err != nil {
		return nil, err
	}
	return &RequestToRecourseWaiting{
		Waiting: true,
		Info: RecoursePaymentInfo{
			Recourser: p.Recourser,
			Recoursee: p.Recoursee,
			Sum:       p.Sum,
			Currency:  p.Currency,
			Reason:    p.Reason,
		},
	}, nil
}

// GetPastSellPaymentsForNodeID pairs every OfferToSell in the chain
// with its resolving Sell/RejectToBuy (or marks it Expired if the
// payment deadline has elapsed unresolved), restricted to offers where
// nodeID was the seller. An OfferToSell followed by another OfferToSell
// is kept as an unresolved pair; a RejectToBuy/Sell with no open
// OfferToSell is a chain-invalidity error (spec.md §4, invariant on
// paired requests).
func (c *Chain) GetPastSellPaymentsForNodeID(billKeys *crypto.Keys, nodeID crypto.NodeID, now int64) ([]PastPayment, error) {
	pairs, err := pairRequests(c.blocks, bill.OfferToSell, bill.Sell, bill.RejectToBuy)
	if err != nil {
		return nil, err
	}

	var result []PastPayment
	for _, pair := range pairs {
		var p bill.OfferToSellPayload
		if err := pair.request.Decrypt(billKeys, &p); err != nil {
			return nil, err
		}
		if p.Seller.NodeID() != nodeID {
			continue
		}
		info := PaymentInfo{Buyer: p.Buyer, Seller: p.Seller, Sum: p.Sum, Currency: p.Currency, PaymentAddress: p.PaymentAddress}

		switch {
		case pair.resolution != nil && pair.resolution.OpCode() == bill.RejectToBuy:
			result = append(result, PastPayment{Info: info, Status: PastPaymentRejected, ResolvedAt: pair.resolution.Timestamp(), RequestedAt: pair.request.Timestamp()})
		case pair.resolution != nil && pair.resolution.OpCode() == bill.Sell:
			result = append(result, PastPayment{Info: info, Status: PastPaymentPaid, ResolvedAt: pair.resolution.Timestamp(), RequestedAt: pair.request.Timestamp()})
		case pair.resolution == nil && DeadlineHasPassed(pair.request.Timestamp(), now, PaymentDeadlineSeconds):
			result = append(result, PastPayment{Info: info, Status: PastPaymentExpired, ResolvedAt: pair.request.Timestamp() + PaymentDeadlineSeconds, RequestedAt: pair.request.Timestamp()})
		}
	}
	return result, nil
}

// GetPastRecoursePaymentsForNodeID is the recourse-leg analogue of
// GetPastSellPaymentsForNodeID.
func (c *Chain) GetPastRecoursePaymentsForNodeID(billKeys *crypto.Keys, nodeID crypto.NodeID, now int64) ([]PastPayment, error) {
	pairs, err := pairRequests(c.blocks, bill.RequestRecourse, bill.Recourse, bill.RejectToPayRecourse)
	if err != nil {
		return nil, err
	}

	var result []PastPayment
	for _, pair := range pairs {
		var p bill.RequestRecoursePayload
		if err := pair.request.Decrypt(billKeys, &p); err != nil {
			return nil, err
		}
		if p.Recourser.NodeID != nodeID {
			continue
		}
		info := RecoursePaymentInfo{Recourser: p.Recourser, Recoursee: p.Recoursee, Sum: p.Sum, Currency: p.Currency, Reason: p.Reason}

		switch {
		case pair.resolution != nil && pair.resolution.OpCode() == bill.RejectToPayRecourse:
			result = append(result, PastPayment{Info: info, Status: PastPaymentRejected, ResolvedAt: pair.resolution.Timestamp(), RequestedAt: pair.request.Timestamp()})
		case pair.resolution != nil && pair.resolution.OpCode() == bill.Recourse:
			result = append(result, PastPayment{Info: info, Status: PastPaymentPaid, ResolvedAt: pair.resolution.Timestamp(), RequestedAt: pair.request.Timestamp()})
		case pair.resolution == nil && DeadlineHasPassed(pair.request.Timestamp(), now, RecourseDeadlineSeconds):
			result = append(result, PastPayment{Info: info, Status: PastPaymentExpired, ResolvedAt: pair.request.Timestamp() + RecourseDeadlineSeconds, RequestedAt: pair.request.Timestamp()})
		}
	}
	return result, nil
}

type requestPair struct {
	request    *block.Block
	resolution *block.Block
}

// pairRequests walks blocks once, pairing each requestOp with the next
// acceptOp/rejectOp that follows it. A rejectOp/acceptOp with no open
// requestOp is a chain-invalidity error.
func pairRequests(blocks []*block.Block, requestOp, acceptOp, rejectOp bill.OpCode) ([]requestPair, error) {
	var pairs []requestPair
	var open *block.Block

	for _, b := range blocks {
		switch b.OpCode() {
		case requestOp:
			if open != nil {
				pairs = append(pairs, requestPair{request: open})
			}
			open = b
		case rejectOp, acceptOp:
			if open == nil {
				return nil, fmt.Errorf("%w: %s block without preceding %s", ErrInvalid, b.OpCode(), requestOp)
			}
			pairs = append(pairs, requestPair{request: open, resolution: b})
			open = nil
		}
	}
	if open != nil {
		pairs = append(pairs, requestPair{request: open})
	}
	return pairs, nil
}
