package validation

import (
	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/chain"
	"github.com/bitcredit/ebill/crypto"
)

// Validate decides whether action is legal to append next to c, given
// the bill's keys, the externally-supplied current time, the acting
// node id, and whether an external oracle has already confirmed
// payment. It is pure: no I/O, no mutation (spec.md §4.3).
func Validate(c *chain.Chain, billKeys *crypto.Keys, now int64, actorNodeID crypto.NodeID, action Action, isPaid bool) error {
	if isPaid {
		return newError(BillAlreadyPaid, "bill is already paid")
	}
	if !crypto.IsValidNodeID(actorNodeID) {
		return newError(InvalidNodeID, "actor node id does not parse to a valid public key")
	}

	issue, err := c.GetFirstVersionBill(billKeys)
	if err != nil {
		return newError(BillSellDataInvalid, "cannot decrypt genesis block: %v", err)
	}

	if err := checkWaitingStateGate(c, billKeys, now, action.Kind); err != nil {
		return err
	}

	holder, err := currentHolder(c, issue, billKeys)
	if err != nil {
		return newError(BillSellDataInvalid, "cannot resolve current holder: %v", err)
	}

	switch action.Kind {
	case Accept:
		return validateAccept(c, issue, actorNodeID)
	case RequestToAccept:
		return validateRequestToAccept(c, holder, actorNodeID)
	case RejectToAccept:
		return validateRejectToAccept(c, issue, actorNodeID)
	case RequestToPay:
		return validateRequestToPay(c, issue, holder, actorNodeID, now)
	case RejectToPay:
		return validateRejectToPay(c, issue, actorNodeID, isPaid, now)
	case OfferToSell:
		return validateOfferToSell(holder, actorNodeID, action)
	case Sell:
		return validateSell(c, holder, actorNodeID, action, now)
	case RejectToBuy:
		return validateRejectToBuy(c, billKeys, actorNodeID, now)
	case Endorse:
		return validateEndorse(holder, actorNodeID, action)
	case Mint:
		return validateMint(c, holder, actorNodeID, action)
	case RequestRecourse:
		return validateRequestRecourse(c, billKeys, holder, actorNodeID, action, now)
	case Recourse:
		return validateRecourse(c, billKeys, holder, actorNodeID, action, now)
	case RejectToPayRecourse:
		return validateRejectToPayRecourse(c, billKeys, actorNodeID, now)
	default:
		return newError(BillSellDataInvalid, "unknown action kind")
	}
}

func currentHolder(c *chain.Chain, issue *bill.IssuePayload, billKeys *crypto.Keys) (bill.Participant, error) {
	parties, err := c.BillParties(billKeys)
	if err != nil {
		return bill.Participant{}, err
	}
	if parties.Endorsee != nil {
		return *parties.Endorsee, nil
	}
	return issue.Data.Payee, nil
}

// checkWaitingStateGate enforces the universal gate: while the chain
// tip is a RequestToPay/OfferToSell/RequestRecourse block whose
// deadline has not passed, only the actions that resolve that specific
// wait are legal.
func checkWaitingStateGate(c *chain.Chain, billKeys *crypto.Keys, now int64, kind Kind) error {
	tip := c.GetLatestBlock()

	switch tip.OpCode() {
	case bill.RequestToPay:
		if reqExpired(c, now) {
			return nil
		}
		switch kind {
		case RejectToPay, RequestRecourse:
			return nil
		default:
			return newError(BillWasRequestedToPay, "bill has an unexpired RequestToPay: action not permitted")
		}
	case bill.OfferToSell:
		waiting, err := c.IsLastOfferToSellBlockWaitingForPayment(billKeys, now)
		if err != nil {
			return newError(BillSellDataInvalid, "cannot decrypt offer to sell: %v", err)
		}
		if !waiting.Waiting {
			return nil
		}
		switch kind {
		case Sell, RejectToBuy:
			return nil
		default:
			return newError(BillInOfferToSellState, "bill has an unexpired OfferToSell: action not permitted")
		}
	case bill.RequestRecourse:
		waiting, err := c.IsLastRequestToRecourseBlockWaitingForPayment(billKeys, now)
		if err != nil {
			return newError(BillSellDataInvalid, "cannot decrypt request to recourse: %v", err)
		}
		if !waiting.Waiting {
			return nil
		}
		switch kind {
		case Recourse, RejectToPayRecourse:
			return nil
		default:
			return newError(BillInRecourseState, "bill has an unexpired RequestRecourse: action not permitted")
		}
	default:
		return nil
	}
}

func reqExpired(c *chain.Chain, now int64) bool {
	last := c.GetLastVersionBlockWithOpCode(bill.RequestToPay)
	if last == nil {
		return true
	}
	return chain.DeadlineHasPassed(last.Timestamp(), now, chain.PaymentDeadlineSeconds)
}

func validateAccept(c *chain.Chain, issue *bill.IssuePayload, actor crypto.NodeID) error {
	if c.GetLastVersionBlockWithOpCode(bill.Accept) != nil {
		return newError(BillAlreadyAccepted, "bill was already accepted")
	}
	if issue.Data.Drawee.NodeID != actor {
		return newError(CallerIsNotDrawee, "only the drawee may accept")
	}
	return nil
}

func validateRequestToAccept(c *chain.Chain, holder bill.Participant, actor crypto.NodeID) error {
	if c.GetLastVersionBlockWithOpCode(bill.Accept) != nil {
		return newError(BillAlreadyAccepted, "bill was already accepted")
	}
	if c.GetLastVersionBlockWithOpCode(bill.RequestToAccept) != nil {
		return newError(BillAlreadyRequestedToAccept, "bill was already requested to accept")
	}
	if holder.NodeID() != actor {
		return newError(CallerIsNotHolder, "only the current holder may request acceptance")
	}
	return nil
}

func validateRejectToAccept(c *chain.Chain, issue *bill.IssuePayload, actor crypto.NodeID) error {
	if c.GetLatestBlock().OpCode() == bill.RejectToAccept {
		return newError(RequestAlreadyRejected, "acceptance was already rejected")
	}
	if c.GetLastVersionBlockWithOpCode(bill.Accept) != nil {
		return newError(BillAlreadyAccepted, "bill was already accepted")
	}
	if issue.Data.Drawee.NodeID != actor {
		return newError(CallerIsNotDrawee, "only the drawee may reject acceptance")
	}
	return nil
}

func validateRequestToPay(c *chain.Chain, issue *bill.IssuePayload, holder bill.Participant, actor crypto.NodeID, now int64) error {
	if c.GetLastVersionBlockWithOpCode(bill.RequestToPay) != nil {
		return newError(BillAlreadyRequestedToPay, "bill was already requested to pay")
	}
	eod, err := EndOfDayUTC(issue.Data.MaturityDate)
	if err != nil {
		return newError(BillSellDataInvalid, "invalid maturity date: %v", err)
	}
	if now < eod {
		return newError(BillRequestedToPayBeforeMaturityDate, "maturity date has not passed")
	}
	if holder.NodeID() != actor {
		return newError(CallerIsNotHolder, "only the current holder may request payment")
	}
	return nil
}

func validateRejectToPay(c *chain.Chain, issue *bill.IssuePayload, actor crypto.NodeID, isPaid bool, now int64) error {
	if c.GetLatestBlock().OpCode() == bill.RejectToPay {
		return newError(RequestAlreadyRejected, "payment was already rejected")
	}
	last := c.GetLastVersionBlockWithOpCode(bill.RequestToPay)
	if last == nil {
		return newError(NoRequestToPayWaiting, "no RequestToPay to reject")
	}
	if chain.DeadlineHasPassed(last.Timestamp(), now, chain.PaymentDeadlineSeconds) {
		return newError(RequestAlreadyExpired, "RequestToPay deadline already passed")
	}
	if issue.Data.Drawee.NodeID != actor {
		return newError(CallerIsNotDrawee, "only the drawee may reject payment")
	}
	return nil
}

func validateOfferToSell(holder bill.Participant, actor crypto.NodeID, action Action) error {
	if holder.NodeID() != actor {
		return newError(CallerIsNotHolder, "only the current holder may offer to sell")
	}
	if !crypto.IsValidNodeID(action.Buyer.NodeID()) {
		return newError(InvalidNodeID, "buyer node id does not parse to a valid public key")
	}
	if action.Sum == 0 {
		return newError(BillSellDataInvalid, "sum must be greater than zero")
	}
	return nil
}

func validateSell(c *chain.Chain, holder bill.Participant, actor crypto.NodeID, action Action, now int64) error {
	last := c.GetLastVersionBlockWithOpCode(bill.OfferToSell)
	if last == nil || c.GetLatestBlock().ID() != last.ID() {
		return newError(NoOfferToSellWaiting, "no open OfferToSell")
	}
	if chain.DeadlineHasPassed(last.Timestamp(), now, chain.PaymentDeadlineSeconds) {
		return newError(RequestAlreadyExpired, "OfferToSell deadline already passed")
	}
	if holder.NodeID() != actor {
		return newError(CallerIsNotHolder, "only the current holder may finalize a sell")
	}
	return nil
}

func validateRejectToBuy(c *chain.Chain, billKeys *crypto.Keys, actor crypto.NodeID, now int64) error {
	if c.GetLatestBlock().OpCode() == bill.RejectToBuy {
		return newError(RequestAlreadyRejected, "buying was already rejected")
	}
	last := c.GetLastVersionBlockWithOpCode(bill.OfferToSell)
	if last == nil {
		return newError(NoOfferToSellWaiting, "no OfferToSell to reject")
	}
	if chain.DeadlineHasPassed(last.Timestamp(), now, chain.PaymentDeadlineSeconds) {
		return newError(RequestAlreadyExpired, "OfferToSell deadline already passed")
	}
	var offer bill.OfferToSellPayload
	if err := last.Decrypt(billKeys, &offer); err != nil {
		return newError(BillSellDataInvalid, "cannot decrypt OfferToSell: %v", err)
	}
	if offer.Buyer.NodeID() != actor {
		return newError(CallerIsNotBuyer, "only the named buyer may reject buying")
	}
	return nil
}

func validateEndorse(holder bill.Participant, actor crypto.NodeID, action Action) error {
	if holder.NodeID() != actor {
		return newError(CallerIsNotHolder, "only the current holder may endorse")
	}
	if action.Endorsee.NodeID() == "" {
		return newError(BillSellDataInvalid, "endorsee is required")
	}
	return nil
}

func validateMint(c *chain.Chain, holder bill.Participant, actor crypto.NodeID, action Action) error {
	if c.GetLastVersionBlockWithOpCode(bill.Accept) == nil {
		return newError(ChainMissingAccept, "bill must be accepted before it can be minted")
	}
	if holder.NodeID() != actor {
		return newError(CallerIsNotHolder, "only the current holder may mint")
	}
	if action.Mintee.NodeID() == "" {
		return newError(BillSellDataInvalid, "mintee is required")
	}
	return nil
}

func validateRequestRecourse(c *chain.Chain, billKeys *crypto.Keys, holder bill.Participant, actor crypto.NodeID, action Action, now int64) error {
	if holder.NodeID() != actor {
		return newError(CallerIsNotHolder, "only the current holder may request recourse")
	}
	pastEndorsees, err := c.PastEndorsees(billKeys, actor)
	if err != nil {
		return newError(BillRecourseDataInvalid, "cannot compute past endorsees: %v", err)
	}
	found := false
	for _, pe := range pastEndorsees {
		if pe.PayToTheOrderOf.NodeID == action.Recoursee.NodeID {
			found = true
			break
		}
	}
	if !found {
		return newError(RecourseeNotPastHolder, "recoursee was never a past holder of this bill")
	}

	switch action.Reason {
	case bill.RecourseReasonAccept:
		rejected := c.GetLastVersionBlockWithOpCode(bill.RejectToAccept)
		requested := c.GetLastVersionBlockWithOpCode(bill.RequestToAccept)
		expired := requested != nil && chain.DeadlineHasPassed(requested.Timestamp(), now, chain.AcceptDeadlineSeconds)
		if rejected == nil && !expired {
			return newError(BillRequestToAcceptDidNotExpireAndWasNotRejected, "acceptance was neither rejected nor timed out")
		}
	case bill.RecourseReasonPay:
		rejected := c.GetLastVersionBlockWithOpCode(bill.RejectToPay)
		requested := c.GetLastVersionBlockWithOpCode(bill.RequestToPay)
		expired := requested != nil && chain.DeadlineHasPassed(requested.Timestamp(), now, chain.PaymentDeadlineSeconds)
		if rejected == nil && !expired {
			return newError(BillRequestToPayDidNotExpireAndWasNotRejected, "payment was neither rejected nor timed out")
		}
	}
	return nil
}

func validateRecourse(c *chain.Chain, billKeys *crypto.Keys, holder bill.Participant, actor crypto.NodeID, action Action, now int64) error {
	last := c.GetLastVersionBlockWithOpCode(bill.RequestRecourse)
	if last == nil || c.GetLatestBlock().ID() != last.ID() {
		return newError(NoRequestToRecourseWaiting, "no open RequestRecourse")
	}
	if chain.DeadlineHasPassed(last.Timestamp(), now, chain.RecourseDeadlineSeconds) {
		return newError(RequestAlreadyExpired, "RequestRecourse deadline already passed")
	}
	var req bill.RequestRecoursePayload
	if err := last.Decrypt(billKeys, &req); err != nil {
		return newError(BillRecourseDataInvalid, "cannot decrypt RequestRecourse: %v", err)
	}
	if req.Recourser.NodeID != actor || req.Recoursee.NodeID != action.Recoursee.NodeID ||
		req.Sum != action.Sum || req.Currency != action.Currency {
		return newError(BillRecourseDataInvalid, "recourse does not match the open request")
	}
	if holder.NodeID() != actor {
		return newError(CallerIsNotHolder, "only the current holder may pay recourse")
	}
	return nil
}

func validateRejectToPayRecourse(c *chain.Chain, billKeys *crypto.Keys, actor crypto.NodeID, now int64) error {
	if c.GetLatestBlock().OpCode() == bill.RejectToPayRecourse {
		return newError(RequestAlreadyRejected, "recourse payment was already rejected")
	}
	last := c.GetLastVersionBlockWithOpCode(bill.RequestRecourse)
	if last == nil || c.GetLatestBlock().ID() != last.ID() {
		return newError(NoRequestToRecourseWaiting, "no open RequestRecourse to reject")
	}
	if chain.DeadlineHasPassed(last.Timestamp(), now, chain.RecourseDeadlineSeconds) {
		return newError(RequestAlreadyExpired, "RequestRecourse deadline already passed")
	}
	var req bill.RequestRecoursePayload
	if err := last.Decrypt(billKeys, &req); err != nil {
		return newError(BillRecourseDataInvalid, "cannot decrypt RequestRecourse: %v", err)
	}
	if req.Recoursee.NodeID != actor {
		return newError(CallerIsNotRecoursee, "only the recoursee may reject recourse payment")
	}
	return nil
}
