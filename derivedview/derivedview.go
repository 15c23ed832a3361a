// Package derivedview implements DerivedView / Cache (C8): the
// materialized status of a bill, always reconstructible from its chain
// and cached only as an optimization.
package derivedview

import (
	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/chain"
	"github.com/bitcredit/ebill/crypto"
)

// Acceptance is the bill's acceptance sub-state.
type Acceptance struct {
	Requested bool
	Accepted  bool
	TimedOut  bool
	Rejected  bool
}

// Payment is the bill's payment sub-state.
type Payment struct {
	Requested bool
	Paid      bool
	TimedOut  bool
	Rejected  bool
}

// Sell is the bill's most recent offer-to-sell sub-state.
type Sell struct {
	Offered  bool
	TimedOut bool
	Rejected bool
}

// Recourse is the bill's most recent recourse sub-state.
type Recourse struct {
	Requested bool
	TimedOut  bool
	Rejected  bool
}

// WaitingStateKind distinguishes which sub-protocol a bill is currently
// blocked on.
type WaitingStateKind int

const (
	WaitingForPay WaitingStateKind = iota
	WaitingForSell
	WaitingForRecourse
)

// WaitingState describes the bill's single active wait, if any.
type WaitingState struct {
	Kind           WaitingStateKind
	PaymentAddress string
	Sum            uint64
	Currency       string
	Payer          *bill.Participant
	Payee          *bill.Participant
	Buyer          *bill.Participant
	Seller         *bill.Participant
	Recourser      *bill.Participant
	Recoursee      *bill.Participant
}

// Result is the materialized bill status (spec.md §4.6).
type Result struct {
	Acceptance             Acceptance
	Payment                Payment
	Sell                   Sell
	Recourse               Recourse
	RedeemedFundsAvailable bool
	CurrentWaitingState    *WaitingState
	LatestBlockID          uint64
	ComputedAt             int64
}

// Recompute derives Result from c as of now. isPaid reflects whatever
// the PaymentOracle last confirmed for the bill's current payment
// address; DerivedView never calls the oracle itself.
func Recompute(c *chain.Chain, billKeys *crypto.Keys, me crypto.NodeID, now int64, isPaid bool) (*Result, error) {
	result := &Result{LatestBlockID: c.GetLatestBlock().ID(), ComputedAt: now}

	if err := computeAcceptance(c, now, result); err != nil {
		return nil, err
	}
	computePayment(c, now, isPaid, result)
	if err := computeSell(c, billKeys, now, result); err != nil {
		return nil, err
	}
	if err := computeRecourse(c, billKeys, now, result); err != nil {
		return nil, err
	}
	if err := computeRedeemedFunds(c, billKeys, me, now, isPaid, result); err != nil {
		return nil, err
	}
	return result, nil
}

func computeAcceptance(c *chain.Chain, now int64, result *Result) error {
	requested := c.GetLastVersionBlockWithOpCode(bill.RequestToAccept)
	accepted := c.GetLastVersionBlockWithOpCode(bill.Accept) != nil
	rejected := c.GetLastVersionBlockWithOpCode(bill.RejectToAccept) != nil

	result.Acceptance = Acceptance{
		Requested: requested != nil,
		Accepted:  accepted,
		Rejected:  rejected,
	}
	if requested != nil && !accepted && !rejected {
		result.Acceptance.TimedOut = chain.DeadlineHasPassed(requested.Timestamp(), now, chain.AcceptDeadlineSeconds)
	}
	return nil
}

func computePayment(c *chain.Chain, now int64, isPaid bool, result *Result) {
	requested := c.GetLastVersionBlockWithOpCode(bill.RequestToPay)
	rejected := c.GetLastVersionBlockWithOpCode(bill.RejectToPay) != nil

	result.Payment = Payment{
		Requested: requested != nil,
		Paid:      isPaid,
		Rejected:  rejected,
	}
	if requested == nil || isPaid || rejected {
		return
	}

	if chain.DeadlineHasPassed(requested.Timestamp(), now, chain.PaymentDeadlineSeconds) {
		result.Payment.TimedOut = true
		return
	}
	if c.GetLatestBlock().ID() == requested.ID() {
		result.CurrentWaitingState = &WaitingState{Kind: WaitingForPay}
	}
}

func computeSell(c *chain.Chain, billKeys *crypto.Keys, now int64, result *Result) error {
	last := c.GetLastVersionBlockWithOpCode(bill.OfferToSell)
	result.Sell = Sell{Offered: last != nil}
	if last == nil {
		return nil
	}
	result.Sell.Rejected = c.GetLatestBlock().OpCode() == bill.RejectToBuy

	waiting, err := c.IsLastOfferToSellBlockWaitingForPayment(billKeys, now)
	if err != nil {
		return err
	}
	if waiting.Waiting {
		buyer, seller := waiting.Info.Buyer, waiting.Info.Seller
		result.CurrentWaitingState = &WaitingState{
			Kind: WaitingForSell, PaymentAddress: waiting.Info.PaymentAddress,
			Sum: waiting.Info.Sum, Currency: waiting.Info.Currency,
			Buyer: &buyer, Seller: &seller,
		}
	} else if c.GetLatestBlock().ID() == last.ID() {
		result.Sell.TimedOut = chain.DeadlineHasPassed(last.Timestamp(), now, chain.PaymentDeadlineSeconds)
	}
	return nil
}

func computeRecourse(c *chain.Chain, billKeys *crypto.Keys, now int64, result *Result) error {
	last := c.GetLastVersionBlockWithOpCode(bill.RequestRecourse)
	result.Recourse = Recourse{Requested: last != nil}
	if last == nil {
		return nil
	}
	result.Recourse.Rejected = c.GetLatestBlock().OpCode() == bill.RejectToPayRecourse

	waiting, err := c.IsLastRequestToRecourseBlockWaitingForPayment(billKeys, now)
	if err != nil {
		return err
	}
	if waiting.Waiting {
		recourser := bill.FromIdentified(waiting.Info.Recourser)
		recoursee := bill.FromIdentified(waiting.Info.Recoursee)
		result.CurrentWaitingState = &WaitingState{
			Kind: WaitingForRecourse, Sum: waiting.Info.Sum, Currency: waiting.Info.Currency,
			Recourser: &recourser, Recoursee: &recoursee,
		}
	} else if c.GetLatestBlock().ID() == last.ID() {
		result.Recourse.TimedOut = chain.DeadlineHasPassed(last.Timestamp(), now, chain.RecourseDeadlineSeconds)
	}
	return nil
}

func computeRedeemedFunds(c *chain.Chain, billKeys *crypto.Keys, me crypto.NodeID, now int64, isPaid bool, result *Result) error {
	sellPayments, err := c.GetPastSellPaymentsForNodeID(billKeys, me, now)
	if err != nil {
		return err
	}
	for _, p := range sellPayments {
		if p.Status == chain.PastPaymentPaid {
			result.RedeemedFundsAvailable = true
			return nil
		}
	}

	recoursePayments, err := c.GetPastRecoursePaymentsForNodeID(billKeys, me, now)
	if err != nil {
		return err
	}
	for _, p := range recoursePayments {
		if p.Status == chain.PastPaymentPaid {
			result.RedeemedFundsAvailable = true
			return nil
		}
	}

	parties, err := c.BillParties(billKeys)
	if err != nil {
		return err
	}
	holderNodeID := parties.Payee.NodeID()
	if parties.Endorsee != nil {
		holderNodeID = parties.Endorsee.NodeID()
	}
	if holderNodeID == me && isPaid {
		result.RedeemedFundsAvailable = true
	}
	return nil
}
