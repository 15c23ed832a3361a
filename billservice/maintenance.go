package billservice

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/chain"
	"github.com/bitcredit/ebill/crypto"
)

// CheckBillsPayment asks the PaymentOracle about every bill currently
// waiting on a plain RequestToPay, and marks it paid (idempotently) if
// the oracle confirms it (spec.md §4.5). RequestToPayPayload carries
// no payment address of its own, so the address is rederived exactly
// as BlockProducer would for the current holder (see DESIGN.md).
func (s *Service) CheckBillsPayment(ctx context.Context) error {
	return s.forEachUnpaidBill(ctx, func(billID string, c *chain.Chain, billKeys *crypto.Keys) error {
		last := c.GetLastVersionBlockWithOpCode(bill.RequestToPay)
		if last == nil || c.GetLatestBlock().ID() != last.ID() {
			return nil
		}

		issue, err := c.GetFirstVersionBill(billKeys)
		if err != nil {
			return err
		}
		parties, err := c.BillParties(billKeys)
		if err != nil {
			return err
		}
		holder := issue.Data.Payee
		if parties.Endorsee != nil {
			holder = *parties.Endorsee
		}

		addr, err := crypto.DeriveP2WPKHAddress(billKeys, holder.NodeID(), &chaincfg.MainNetParams)
		if err != nil {
			return err
		}
		return s.markIfOraclePaid(ctx, billID, addr, issue.Data.Sum)
	})
}

// CheckBillsOfferToSellPayment asks the PaymentOracle about every bill
// whose latest block is an open OfferToSell, and marks it paid
// (idempotently) if confirmed. The offer's payment deadline is not
// checked: an OfferToSell at the tip is polled whether or not its wait
// has already timed out.
func (s *Service) CheckBillsOfferToSellPayment(ctx context.Context) error {
	return s.forEachUnpaidBill(ctx, func(billID string, c *chain.Chain, billKeys *crypto.Keys) error {
		last := c.GetLastVersionBlockWithOpCode(bill.OfferToSell)
		if last == nil || c.GetLatestBlock().ID() != last.ID() {
			return nil
		}
		var p bill.OfferToSellPayload
		if err := last.Decrypt(billKeys, &p); err != nil {
			return err
		}
		return s.markIfOraclePaid(ctx, billID, p.PaymentAddress, p.Sum)
	})
}

// CheckBillsInRecoursePayment asks the PaymentOracle about every bill
// whose latest block is an open RequestRecourse, and marks it paid
// (idempotently) if confirmed. RequestRecoursePayload carries no
// payment address either, so it is rederived for the recoursee exactly
// as BlockProducer would for the terminal Recourse block (see
// DESIGN.md).
func (s *Service) CheckBillsInRecoursePayment(ctx context.Context) error {
	return s.forEachUnpaidBill(ctx, func(billID string, c *chain.Chain, billKeys *crypto.Keys) error {
		last := c.GetLastVersionBlockWithOpCode(bill.RequestRecourse)
		if last == nil || c.GetLatestBlock().ID() != last.ID() {
			return nil
		}
		var p bill.RequestRecoursePayload
		if err := last.Decrypt(billKeys, &p); err != nil {
			return err
		}
		addr, err := crypto.DeriveP2WPKHAddress(billKeys, p.Recoursee.NodeID, &chaincfg.MainNetParams)
		if err != nil {
			return err
		}
		return s.markIfOraclePaid(ctx, billID, addr, p.Sum)
	})
}

func (s *Service) forEachUnpaidBill(ctx context.Context, f func(billID string, c *chain.Chain, billKeys *crypto.Keys) error) error {
	ids, err := s.chains.AllBillIDs(ctx)
	if err != nil {
		return err
	}
	for _, billID := range ids {
		if _, paid, err := s.paid.IsPaid(ctx, billID); err != nil {
			return err
		} else if paid {
			continue
		}
		c, err := s.chains.Load(ctx, billID)
		if err != nil {
			return err
		}
		billKeys, err := s.keys.Load(ctx, billID)
		if err != nil {
			return err
		}
		if err := f(billID, c, billKeys); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) markIfOraclePaid(ctx context.Context, billID, address string, sum uint64) error {
	paid, err := s.oracle.IsPaid(ctx, address, sum)
	if err != nil {
		return err
	}
	if !paid {
		return nil
	}
	return s.paid.MarkPaid(ctx, billID, address)
}

// deadlineForTip maps a waiting-state tip op code to its applicable
// deadline, reporting ok=false for a tip that has no open wait.
func deadlineForTip(op bill.OpCode) (seconds int64, ok bool) {
	switch op {
	case bill.RequestToAccept:
		return chain.AcceptDeadlineSeconds, true
	case bill.RequestToPay, bill.OfferToSell:
		return chain.PaymentDeadlineSeconds, true
	case bill.RequestRecourse:
		return chain.RecourseDeadlineSeconds, true
	default:
		return 0, false
	}
}

// CheckBillsTimeouts emits a one-shot "request-timed-out" notification
// to every participant of each bill whose latest block is a request op
// with an elapsed deadline, deduplicated by (bill_id, block_height,
// action) (spec.md §4.5, §6).
func (s *Service) CheckBillsTimeouts(ctx context.Context, now int64) error {
	ids, err := s.chains.AllBillIDs(ctx)
	if err != nil {
		return err
	}
	for _, billID := range ids {
		c, err := s.chains.Load(ctx, billID)
		if err != nil {
			return err
		}
		tip := c.GetLatestBlock()
		deadlineSeconds, ok := deadlineForTip(tip.OpCode())
		if !ok || !chain.DeadlineHasPassed(tip.Timestamp(), now, deadlineSeconds) {
			continue
		}

		alreadySent, err := s.notifications.MarkSent(ctx, billID, tip.ID(), tip.OpCode().String())
		if err != nil {
			return err
		}
		if alreadySent {
			continue
		}

		billKeys, err := s.keys.Load(ctx, billID)
		if err != nil {
			return err
		}
		nodes, err := c.GetAllNodesFromBill(billKeys)
		if err != nil {
			return err
		}
		for _, node := range nodes {
			ev := Event{BillID: billID, Recipient: node, EventType: "RequestTimedOut"}
			if err := s.broadcaster.Broadcast(ctx, ev); err != nil {
				return err
			}
		}
	}
	return nil
}
