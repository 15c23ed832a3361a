package billservice

import (
	"context"

	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/chain"
	"github.com/bitcredit/ebill/crypto"
	"github.com/bitcredit/ebill/derivedview"
)

// BillSummary is one bill as seen by a specific participant: their
// role plus its current derived view.
type BillSummary struct {
	BillID   string
	Role     BillRole
	Sum      uint64
	Currency string
	View     *derivedview.Result
}

// BillDetail extends BillSummary with the full party list and issue
// data, returned by GetDetail.
type BillDetail struct {
	BillSummary
	Data    bill.Data
	Parties chain.Parties
}

// BillFilter narrows GetBills results. A nil Role or empty Currency
// matches every bill.
type BillFilter struct {
	Role     *BillRole
	Currency string
}

func (f BillFilter) matches(s BillSummary) bool {
	if f.Role != nil && *f.Role != s.Role {
		return false
	}
	if f.Currency != "" && f.Currency != s.Currency {
		return false
	}
	return true
}

// Balances sums every bill me participates in by role.
type Balances struct {
	Payer      uint64
	Payee      uint64
	Contingent uint64
}

// GetDetail returns the full materialized view of billID for me, or
// store.ErrNotFound if me is not a participant.
func (s *Service) GetDetail(ctx context.Context, billID string, me crypto.NodeID, now int64) (*BillDetail, error) {
	c, billKeys, err := s.loadForParticipant(ctx, billID, me)
	if err != nil {
		return nil, err
	}
	role, _, err := ComputeRole(c, billKeys, me)
	if err != nil {
		return nil, err
	}
	view, err := s.recompute(ctx, c, billKeys, billID, me, now)
	if err != nil {
		return nil, err
	}
	issue, err := c.GetFirstVersionBill(billKeys)
	if err != nil {
		return nil, err
	}
	parties, err := c.BillParties(billKeys)
	if err != nil {
		return nil, err
	}
	return &BillDetail{
		BillSummary: BillSummary{BillID: billID, Role: role, Sum: issue.Data.Sum, Currency: issue.Data.Currency, View: view},
		Data:        issue.Data,
		Parties:     *parties,
	}, nil
}

// GetBills returns every bill me participates in, as of now.
func (s *Service) GetBills(ctx context.Context, me crypto.NodeID, now int64) ([]BillSummary, error) {
	ids, err := s.chains.AllBillIDs(ctx)
	if err != nil {
		return nil, err
	}

	var out []BillSummary
	for _, billID := range ids {
		c, err := s.chains.Load(ctx, billID)
		if err != nil {
			return nil, err
		}
		billKeys, err := s.keys.Load(ctx, billID)
		if err != nil {
			return nil, err
		}
		role, isParticipant, err := ComputeRole(c, billKeys, me)
		if err != nil {
			return nil, err
		}
		if !isParticipant {
			continue
		}
		view, err := s.recompute(ctx, c, billKeys, billID, me, now)
		if err != nil {
			return nil, err
		}
		issue, err := c.GetFirstVersionBill(billKeys)
		if err != nil {
			return nil, err
		}
		out = append(out, BillSummary{BillID: billID, Role: role, Sum: issue.Data.Sum, Currency: issue.Data.Currency, View: view})
	}
	return out, nil
}

// SearchBills returns every bill me participates in that matches
// filter.
func (s *Service) SearchBills(ctx context.Context, filter BillFilter, me crypto.NodeID, now int64) ([]BillSummary, error) {
	bills, err := s.GetBills(ctx, me, now)
	if err != nil {
		return nil, err
	}
	var out []BillSummary
	for _, b := range bills {
		if filter.matches(b) {
			out = append(out, b)
		}
	}
	return out, nil
}

// GetBalances sums me's bills by role.
func (s *Service) GetBalances(ctx context.Context, me crypto.NodeID, now int64) (*Balances, error) {
	bills, err := s.GetBills(ctx, me, now)
	if err != nil {
		return nil, err
	}
	balances := &Balances{}
	for _, b := range bills {
		switch b.Role {
		case Payer:
			balances.Payer += b.Sum
		case Payee:
			balances.Payee += b.Sum
		case Contingent:
			balances.Contingent += b.Sum
		}
	}
	return balances, nil
}

// GetEndorsements returns billID's historical holder changes, most
// recent first.
func (s *Service) GetEndorsements(ctx context.Context, billID string, me crypto.NodeID) ([]chain.Endorsement, error) {
	c, billKeys, err := s.loadForParticipant(ctx, billID, me)
	if err != nil {
		return nil, err
	}
	return c.Endorsements(billKeys)
}

// GetPastEndorsees returns every identified party billID was held by
// before me, eligible recourse targets.
func (s *Service) GetPastEndorsees(ctx context.Context, billID string, me crypto.NodeID) ([]chain.PastEndorsee, error) {
	c, billKeys, err := s.loadForParticipant(ctx, billID, me)
	if err != nil {
		return nil, err
	}
	return c.PastEndorsees(billKeys, me)
}

// GetPastPayments returns every historical sell and recourse payment
// leg in which me was the beneficiary: the seller of a sell, or the
// recourser of a recourse.
func (s *Service) GetPastPayments(ctx context.Context, billID string, me crypto.NodeID, now int64) ([]chain.PastPayment, error) {
	c, billKeys, err := s.loadForParticipant(ctx, billID, me)
	if err != nil {
		return nil, err
	}
	sellPayments, err := c.GetPastSellPaymentsForNodeID(billKeys, me, now)
	if err != nil {
		return nil, err
	}
	recoursePayments, err := c.GetPastRecoursePaymentsForNodeID(billKeys, me, now)
	if err != nil {
		return nil, err
	}
	return append(sellPayments, recoursePayments...), nil
}
