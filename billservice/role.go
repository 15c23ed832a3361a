package billservice

import (
	"github.com/bitcredit/ebill/chain"
	"github.com/bitcredit/ebill/crypto"
)

// BillRole is a participant's single derived relationship to a bill
// (spec.md §4.5).
type BillRole int

const (
	Payer BillRole = iota
	Payee
	Contingent
)

func (r BillRole) String() string {
	switch r {
	case Payer:
		return "Payer"
	case Payee:
		return "Payee"
	case Contingent:
		return "Contingent"
	default:
		return "Unknown"
	}
}

// ComputeRole derives me's BillRole for c. A node currently holding the
// bill is always Payee, even a drawee who drafted and still holds its
// own note (the self-drafted/three-party overlap spec.md's "not
// accepted-or-endorsed-away" qualifier guards against); Payer applies
// once the drawee no longer holds it; Contingent covers every other
// node that has ever appeared on the chain. The second return value
// reports whether me is a participant at all.
func ComputeRole(c *chain.Chain, billKeys *crypto.Keys, me crypto.NodeID) (BillRole, bool, error) {
	issue, err := c.GetFirstVersionBill(billKeys)
	if err != nil {
		return 0, false, err
	}
	parties, err := c.BillParties(billKeys)
	if err != nil {
		return 0, false, err
	}

	holder := issue.Data.Payee
	if parties.Endorsee != nil {
		holder = *parties.Endorsee
	}
	if holder.NodeID() == me {
		return Payee, true, nil
	}
	if issue.Data.Drawee.NodeID == me {
		return Payer, true, nil
	}

	nodes, err := c.GetAllNodesFromBill(billKeys)
	if err != nil {
		return 0, false, err
	}
	for _, n := range nodes {
		if n == me {
			return Contingent, true, nil
		}
	}
	return 0, false, nil
}
