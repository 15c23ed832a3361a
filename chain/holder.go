package chain

import (
	"fmt"
	"sort"

	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/block"
	"github.com/bitcredit/ebill/crypto"
)

type holderAtBlock struct {
	Holder    bill.Participant
	Signer    bill.Participant
	Signatory *bill.IdentifiedParticipant
}

// getHolderFromBlock returns the new holder a holder-changing block
// establishes, and who signed for it. Non-holder-changing blocks
// return a nil result and no error. The signer is taken from the
// payload's signatory identity when a company co-signed, otherwise
// from the block's own signer public key.
func getHolderFromBlock(b *block.Block, billKeys *crypto.Keys) (*holderAtBlock, error) {
	switch b.OpCode() {
	case bill.Endorse:
		var p bill.EndorsePayload
		if err := b.Decrypt(billKeys, &p); err != nil {
			return nil, err
		}
		return &holderAtBlock{Holder: p.Endorsee, Signer: signerParticipant(b, p.SignatoryIdentity), Signatory: p.SignatoryIdentity}, nil
	case bill.Mint:
		var p bill.MintPayload
		if err := b.Decrypt(billKeys, &p); err != nil {
			return nil, err
		}
		return &holderAtBlock{Holder: p.Mintee, Signer: signerParticipant(b, p.SignatoryIdentity), Signatory: p.SignatoryIdentity}, nil
	case bill.Sell:
		var p bill.SellPayload
		if err := b.Decrypt(billKeys, &p); err != nil {
			return nil, err
		}
		return &holderAtBlock{Holder: p.Buyer, Signer: signerParticipant(b, p.SignatoryIdentity), Signatory: p.SignatoryIdentity}, nil
	case bill.Recourse:
		var p bill.RecoursePayload
		if err := b.Decrypt(billKeys, &p); err != nil {
			return nil, err
		}
		return &holderAtBlock{Holder: bill.FromIdentified(p.Recoursee), Signer: signerParticipant(b, p.SignatoryIdentity), Signatory: p.SignatoryIdentity}, nil
	default:
		return nil, nil
	}
}

func signerParticipant(b *block.Block, signatory *bill.IdentifiedParticipant) bill.Participant {
	if signatory != nil {
		return bill.FromIdentified(*signatory)
	}
	nodeID := crypto.NodeID(fmt.Sprintf("%x", b.SignerPubKeyBytes()))
	return bill.FromAnonymous(bill.AnonymousParticipant{NodeID: nodeID})
}

func signingAddress(p bill.Participant) *string {
	if p.Identified != nil {
		addr := p.Identified.PostalAddress
		return &addr
	}
	return nil
}

// Endorsements returns every historical holder-change in the chain,
// most recent first, skipping holder changes to an anonymous party
// (they can't be addressed as "pay to the order of").
func (c *Chain) Endorsements(billKeys *crypto.Keys) ([]Endorsement, error) {
	var result []Endorsement
	for i := len(c.blocks) - 1; i >= 0; i-- {
		b := c.blocks[i]
		if b.OpCode() == bill.Issue {
			continue
		}
		h, err := getHolderFromBlock(b, billKeys)
		if err != nil {
			return nil, err
		}
		if h == nil || h.Holder.Identified == nil {
			continue
		}
		result = append(result, Endorsement{
			PayToTheOrderOf:  *h.Holder.Identified,
			Signed:           LightSignedBy{Signer: h.Signer, Signatory: h.Signatory},
			SigningTimestamp: b.Timestamp(),
			SigningAddress:   signingAddress(h.Signer),
		})
	}
	return result, nil
}

// PastEndorsees returns every identified party this chain was held by
// before currentNodeID, sorted most-recent-first (spec.md §4, §9):
// used to build the list of possible recourse targets.
func (c *Chain) PastEndorsees(billKeys *crypto.Keys, currentNodeID crypto.NodeID) ([]PastEndorsee, error) {
	result := make(map[crypto.NodeID]PastEndorsee)
	foundLast := false

	for i := len(c.blocks) - 1; i >= 0; i-- {
		b := c.blocks[i]
		if b.OpCode() == bill.Recourse {
			continue
		}
		h, err := getHolderFromBlock(b, billKeys)
		if err != nil {
			return nil, err
		}
		if h == nil {
			continue
		}
		if h.Holder.NodeID() == currentNodeID && !foundLast {
			foundLast = true
			continue
		}
		if h.Holder.Identified == nil {
			continue
		}
		if foundLast && h.Holder.Identified.NodeID != currentNodeID {
			if _, exists := result[h.Holder.Identified.NodeID]; !exists {
				result[h.Holder.Identified.NodeID] = PastEndorsee{
					PayToTheOrderOf:  *h.Holder.Identified,
					Signed:           LightSignedBy{Signer: h.Signer, Signatory: h.Signatory},
					SigningTimestamp: b.Timestamp(),
					SigningAddress:   signingAddress(h.Signer),
				}
			}
		}
	}

	firstVersion, err := c.GetFirstVersionBill(billKeys)
	if err != nil {
		return nil, err
	}
	if firstVersion.Data.Drawer.NodeID != firstVersion.Data.Drawee.NodeID {
		if _, exists := result[firstVersion.Data.Drawer.NodeID]; !exists {
			drawerAddr := firstVersion.Data.Drawer.PostalAddress
			result[firstVersion.Data.Drawer.NodeID] = PastEndorsee{
				PayToTheOrderOf:  firstVersion.Data.Drawer,
				Signed:           LightSignedBy{Signer: bill.FromIdentified(firstVersion.Data.Drawer)},
				SigningTimestamp: c.blocks[0].Timestamp(),
				SigningAddress:   &drawerAddr,
			}
		}
	}

	delete(result, currentNodeID)

	list := make([]PastEndorsee, 0, len(result))
	for _, pe := range result {
		list = append(list, pe)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].SigningTimestamp > list[j].SigningTimestamp
	})
	return list, nil
}

// BillParties returns the latest known drawee, drawer, payee, and
// endorsee (whichever of Endorse/Mint/Sell/Recourse happened last,
// by block id).
func (c *Chain) BillParties(billKeys *crypto.Keys) (*Parties, error) {
	first, err := c.GetFirstVersionBill(billKeys)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		id          uint64
		participant bill.Participant
	}
	var candidates []candidate

	if b := c.GetLastVersionBlockWithOpCode(bill.Endorse); b != nil {
		var p bill.EndorsePayload
		if err := b.Decrypt(billKeys, &p); err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate{b.ID(), p.Endorsee})
	}
	if b := c.GetLastVersionBlockWithOpCode(bill.Mint); b != nil {
		var p bill.MintPayload
		if err := b.Decrypt(billKeys, &p); err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate{b.ID(), p.Mintee})
	}
	if b := c.GetLastVersionBlockWithOpCode(bill.Sell); b != nil {
		var p bill.SellPayload
		if err := b.Decrypt(billKeys, &p); err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate{b.ID(), p.Buyer})
	}
	if b := c.GetLastVersionBlockWithOpCode(bill.Recourse); b != nil {
		var p bill.RecoursePayload
		if err := b.Decrypt(billKeys, &p); err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate{b.ID(), bill.FromIdentified(p.Recoursee)})
	}

	var endorsee *bill.Participant
	var best uint64
	for _, cand := range candidates {
		if endorsee == nil || cand.id > best {
			p := cand.participant
			endorsee = &p
			best = cand.id
		}
	}

	return &Parties{
		Drawee:   first.Data.Drawee,
		Drawer:   first.Data.Drawer,
		Payee:    first.Data.Payee,
		Endorsee: endorsee,
	}, nil
}

// nodesFromBlock returns every node id mentioned or signing in b.
func nodesFromBlock(b *block.Block, billKeys *crypto.Keys) ([]crypto.NodeID, error) {
	signer := crypto.NodeID(fmt.Sprintf("%x", b.SignerPubKeyBytes()))
	nodes := []crypto.NodeID{signer}

	switch b.OpCode() {
	case bill.Issue:
		var p bill.IssuePayload
		if err := b.Decrypt(billKeys, &p); err != nil {
			return nil, err
		}
		nodes = append(nodes, p.Data.Drawer.NodeID, p.Data.Drawee.NodeID, p.Data.Payee.NodeID())
	case bill.OfferToSell:
		var p bill.OfferToSellPayload
		if err := b.Decrypt(billKeys, &p); err != nil {
			return nil, err
		}
		nodes = append(nodes, p.Buyer.NodeID(), p.Seller.NodeID())
	case bill.Sell:
		var p bill.SellPayload
		if err := b.Decrypt(billKeys, &p); err != nil {
			return nil, err
		}
		nodes = append(nodes, p.Buyer.NodeID(), p.Seller.NodeID())
	case bill.Endorse:
		var p bill.EndorsePayload
		if err := b.Decrypt(billKeys, &p); err != nil {
			return nil, err
		}
		nodes = append(nodes, p.Endorsee.NodeID())
	case bill.Mint:
		var p bill.MintPayload
		if err := b.Decrypt(billKeys, &p); err != nil {
			return nil, err
		}
		nodes = append(nodes, p.Mintee.NodeID())
	case bill.RequestRecourse, bill.Recourse:
		var recoursee crypto.NodeID
		if b.OpCode() == bill.RequestRecourse {
			var p bill.RequestRecoursePayload
			if err := b.Decrypt(billKeys, &p); err != nil {
				return nil, err
			}
			recoursee = p.Recoursee.NodeID
		} else {
			var p bill.RecoursePayload
			if err := b.Decrypt(billKeys, &p); err != nil {
				return nil, err
			}
			recoursee = p.Recoursee.NodeID
		}
		nodes = append(nodes, recoursee)
	}
	return nodes, nil
}

// GetAllNodesFromBill returns every distinct node id that has ever
// appeared in the chain.
func (c *Chain) GetAllNodesFromBill(billKeys *crypto.Keys) ([]crypto.NodeID, error) {
	heights, err := c.GetAllNodesWithAddedBlockHeight(billKeys)
	if err != nil {
		return nil, err
	}
	nodes := make([]crypto.NodeID, 0, len(heights))
	for n := range heights {
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// GetAllNodesWithAddedBlockHeight maps every distinct node id to the
// 1-based block height at which it first appeared.
func (c *Chain) GetAllNodesWithAddedBlockHeight(billKeys *crypto.Keys) (map[crypto.NodeID]int, error) {
	result := make(map[crypto.NodeID]int)
	for height, b := range c.blocks {
		nodes, err := nodesFromBlock(b, billKeys)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			if n == "" {
				continue
			}
			if _, exists := result[n]; !exists {
				result[n] = height + 1
			}
		}
	}
	return result, nil
}
