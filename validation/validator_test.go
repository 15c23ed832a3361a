package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/block"
	"github.com/bitcredit/ebill/chain"
	"github.com/bitcredit/ebill/crypto"
	"github.com/bitcredit/ebill/producer"
	"github.com/bitcredit/ebill/validation"
)

type fixture struct {
	billKeys *crypto.Keys
	drawer   *crypto.Keys
	drawee   *crypto.Keys
	buyer    *crypto.Keys
	endorsee *crypto.Keys
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	keys := make([]*crypto.Keys, 5)
	for i := range keys {
		k, err := crypto.GenerateKeys()
		require.NoError(t, err)
		keys[i] = k
	}
	return &fixture{
		billKeys: keys[0],
		drawer:   keys[1],
		drawee:   keys[2],
		buyer:    keys[3],
		endorsee: keys[4],
	}
}

func newChain(t *testing.T, f *fixture, maturity string) *chain.Chain {
	t.Helper()
	data := bill.Data{
		ID:           "bill-1",
		Sum:          10000,
		Currency:     "sat",
		MaturityDate: maturity,
		Drawer:       bill.IdentifiedParticipant{NodeID: f.drawer.NodeID()},
		Drawee:       bill.IdentifiedParticipant{NodeID: f.drawee.NodeID()},
		Payee:        bill.FromIdentified(bill.IdentifiedParticipant{NodeID: f.drawer.NodeID()}),
	}
	payload := bill.IssuePayload{Data: data, Keys: f.billKeys.NodeID()}
	encoded, err := block.EncodePayload(payload)
	require.NoError(t, err)
	ct, err := crypto.Encrypt(f.billKeys, encoded)
	require.NoError(t, err)

	b := block.New(1, data.ID, bill.Issue, crypto.Hash{}, ct, 1700000000, f.drawer.PublicKeyBytes(), nil)
	signed, err := b.Sign(f.drawer, nil)
	require.NoError(t, err)

	c, err := chain.New(signed)
	require.NoError(t, err)
	return c
}

// appendAction validates action against c as actor, requires it to
// succeed, produces and appends the resulting block, and returns it.
func appendAction(t *testing.T, f *fixture, c *chain.Chain, actor *crypto.Keys, action validation.Action, now int64) *block.Block {
	t.Helper()
	require.NoError(t, validation.Validate(c, f.billKeys, now, actor.NodeID(), action, false))

	tip := c.GetLatestBlock()
	b, err := producer.Produce(c.BillID(), tip.SigningHash(), tip.ID()+1, f.billKeys, producer.Signer{PersonalKeys: actor}, action, now)
	require.NoError(t, err)
	require.True(t, c.TryAddBlock(b))
	return b
}

func errCode(t *testing.T, err error) validation.ErrorCode {
	t.Helper()
	require.Error(t, err)
	verr, ok := err.(*validation.Error)
	require.True(t, ok, "expected *validation.Error, got %T", err)
	return verr.Code()
}

func TestValidateAcceptRequiresDrawee(t *testing.T) {
	f := newFixture(t)
	c := newChain(t, f, "2024-01-01")

	err := validation.Validate(c, f.billKeys, 1700000000, f.drawer.NodeID(), validation.Action{Kind: validation.Accept}, false)
	require.Error(t, err)
	verr, ok := err.(*validation.Error)
	require.True(t, ok)
	assert.Equal(t, validation.CallerIsNotDrawee, verr.Code())

	err = validation.Validate(c, f.billKeys, 1700000000, f.drawee.NodeID(), validation.Action{Kind: validation.Accept}, false)
	assert.NoError(t, err)
}

func TestValidateRejectsWhenAlreadyPaid(t *testing.T) {
	f := newFixture(t)
	c := newChain(t, f, "2024-01-01")

	err := validation.Validate(c, f.billKeys, 1700000000, f.drawee.NodeID(), validation.Action{Kind: validation.Accept}, true)
	require.Error(t, err)
	verr := err.(*validation.Error)
	assert.Equal(t, validation.BillAlreadyPaid, verr.Code())
}

func TestValidateRequestToPayBeforeMaturity(t *testing.T) {
	f := newFixture(t)
	c := newChain(t, f, "2030-01-01")

	err := validation.Validate(c, f.billKeys, 1700000000, f.drawer.NodeID(), validation.Action{Kind: validation.RequestToPay, Currency: "sat"}, false)
	require.Error(t, err)
	verr := err.(*validation.Error)
	assert.Equal(t, validation.BillRequestedToPayBeforeMaturityDate, verr.Code())
}

func TestValidateRejectsInvalidActorNodeID(t *testing.T) {
	f := newFixture(t)
	c := newChain(t, f, "2024-01-01")

	err := validation.Validate(c, f.billKeys, 1700000000, "not-a-node-id", validation.Action{Kind: validation.Accept}, false)
	require.Error(t, err)
	verr := err.(*validation.Error)
	assert.Equal(t, validation.InvalidNodeID, verr.Code())
}

func TestValidateOfferToSellThenSellByHolder(t *testing.T) {
	f := newFixture(t)
	c := newChain(t, f, "2024-01-01")
	const now = 1700000000

	offer := validation.Action{
		Kind:     validation.OfferToSell,
		Buyer:    bill.FromIdentified(bill.IdentifiedParticipant{NodeID: f.buyer.NodeID()}),
		Sum:      5000,
		Currency: "sat",
	}
	appendAction(t, f, c, f.drawer, offer, now)

	err := validation.Validate(c, f.billKeys, now+10, f.drawee.NodeID(), validation.Action{Kind: validation.Sell, Buyer: offer.Buyer, Sum: 5000, Currency: "sat"}, false)
	assert.Equal(t, validation.CallerIsNotHolder, errCode(t, err))

	err = validation.Validate(c, f.billKeys, now+10, f.drawer.NodeID(), validation.Action{Kind: validation.Sell, Buyer: offer.Buyer, Sum: 5000, Currency: "sat"}, false)
	assert.NoError(t, err)
}

func TestValidateRejectToBuyRequiresNamedBuyer(t *testing.T) {
	f := newFixture(t)
	c := newChain(t, f, "2024-01-01")
	const now = 1700000000

	offer := validation.Action{
		Kind:     validation.OfferToSell,
		Buyer:    bill.FromIdentified(bill.IdentifiedParticipant{NodeID: f.buyer.NodeID()}),
		Sum:      5000,
		Currency: "sat",
	}
	appendAction(t, f, c, f.drawer, offer, now)

	err := validation.Validate(c, f.billKeys, now+10, f.drawee.NodeID(), validation.Action{Kind: validation.RejectToBuy}, false)
	assert.Equal(t, validation.CallerIsNotBuyer, errCode(t, err))

	err = validation.Validate(c, f.billKeys, now+10, f.buyer.NodeID(), validation.Action{Kind: validation.RejectToBuy}, false)
	assert.NoError(t, err)
}

func TestValidateEndorseTransfersHolderRights(t *testing.T) {
	f := newFixture(t)
	c := newChain(t, f, "2024-01-01")
	const now = 1700000000

	endorse := validation.Action{Kind: validation.Endorse, Endorsee: bill.FromIdentified(bill.IdentifiedParticipant{NodeID: f.endorsee.NodeID()})}
	appendAction(t, f, c, f.drawer, endorse, now)

	err := validation.Validate(c, f.billKeys, now+10, f.drawer.NodeID(), validation.Action{Kind: validation.RequestToAccept}, false)
	assert.Equal(t, validation.CallerIsNotHolder, errCode(t, err))

	err = validation.Validate(c, f.billKeys, now+10, f.endorsee.NodeID(), validation.Action{Kind: validation.RequestToAccept}, false)
	assert.NoError(t, err)
}

func TestValidateMintRequiresAccept(t *testing.T) {
	f := newFixture(t)
	c := newChain(t, f, "2024-01-01")
	const now = 1700000000

	mint := validation.Action{Kind: validation.Mint, Mintee: bill.FromIdentified(bill.IdentifiedParticipant{NodeID: f.endorsee.NodeID()})}
	err := validation.Validate(c, f.billKeys, now, f.drawer.NodeID(), mint, false)
	assert.Equal(t, validation.ChainMissingAccept, errCode(t, err))

	appendAction(t, f, c, f.drawee, validation.Action{Kind: validation.Accept}, now)

	err = validation.Validate(c, f.billKeys, now+10, f.drawer.NodeID(), mint, false)
	assert.NoError(t, err)
}

func TestValidateRejectToAcceptRequiresDrawee(t *testing.T) {
	f := newFixture(t)
	c := newChain(t, f, "2024-01-01")
	const now = 1700000000

	err := validation.Validate(c, f.billKeys, now, f.drawer.NodeID(), validation.Action{Kind: validation.RejectToAccept}, false)
	assert.Equal(t, validation.CallerIsNotDrawee, errCode(t, err))

	err = validation.Validate(c, f.billKeys, now, f.drawee.NodeID(), validation.Action{Kind: validation.RejectToAccept}, false)
	assert.NoError(t, err)
}

func TestValidateRejectToPayRequiresDrawee(t *testing.T) {
	f := newFixture(t)
	c := newChain(t, f, "2024-01-01")
	const now = 1706745600 // 2024-02-01, well after maturity

	appendAction(t, f, c, f.drawer, validation.Action{Kind: validation.RequestToPay, Currency: "sat"}, now)

	err := validation.Validate(c, f.billKeys, now+10, f.drawer.NodeID(), validation.Action{Kind: validation.RejectToPay}, false)
	assert.Equal(t, validation.CallerIsNotDrawee, errCode(t, err))

	err = validation.Validate(c, f.billKeys, now+10, f.drawee.NodeID(), validation.Action{Kind: validation.RejectToPay}, false)
	assert.NoError(t, err)
}

func TestValidateRequestRecourseRequiresPastHolder(t *testing.T) {
	f := newFixture(t)
	c := newChain(t, f, "2024-01-01")
	const now = 1700000000

	appendAction(t, f, c, f.drawer, validation.Action{Kind: validation.Endorse, Endorsee: bill.FromIdentified(bill.IdentifiedParticipant{NodeID: f.endorsee.NodeID()})}, now)
	appendAction(t, f, c, f.endorsee, validation.Action{Kind: validation.RequestToAccept}, now+1)
	appendAction(t, f, c, f.drawee, validation.Action{Kind: validation.RejectToAccept}, now+2)

	recourse := validation.Action{
		Kind:      validation.RequestRecourse,
		Recoursee: bill.IdentifiedParticipant{NodeID: f.buyer.NodeID()},
		Sum:       10000,
		Currency:  "sat",
		Reason:    bill.RecourseReasonAccept,
	}
	err := validation.Validate(c, f.billKeys, now+3, f.endorsee.NodeID(), recourse, false)
	assert.Equal(t, validation.RecourseeNotPastHolder, errCode(t, err))

	recourse.Recoursee = bill.IdentifiedParticipant{NodeID: f.drawer.NodeID()}
	err = validation.Validate(c, f.billKeys, now+3, f.endorsee.NodeID(), recourse, false)
	assert.NoError(t, err)
}

func TestValidateRecourseAndRejectToPayRecourse(t *testing.T) {
	f := newFixture(t)
	c := newChain(t, f, "2024-01-01")
	const now = 1700000000

	appendAction(t, f, c, f.drawer, validation.Action{Kind: validation.Endorse, Endorsee: bill.FromIdentified(bill.IdentifiedParticipant{NodeID: f.endorsee.NodeID()})}, now)
	appendAction(t, f, c, f.endorsee, validation.Action{Kind: validation.RequestToAccept}, now+1)
	appendAction(t, f, c, f.drawee, validation.Action{Kind: validation.RejectToAccept}, now+2)

	recourse := validation.Action{
		Kind:      validation.RequestRecourse,
		Recoursee: bill.IdentifiedParticipant{NodeID: f.drawer.NodeID()},
		Sum:       10000,
		Currency:  "sat",
		Reason:    bill.RecourseReasonAccept,
	}
	appendAction(t, f, c, f.endorsee, recourse, now+3)

	err := validation.Validate(c, f.billKeys, now+4, f.endorsee.NodeID(), validation.Action{Kind: validation.RejectToPayRecourse}, false)
	assert.Equal(t, validation.CallerIsNotRecoursee, errCode(t, err))

	pay := validation.Action{Kind: validation.Recourse, Recoursee: recourse.Recoursee, Sum: recourse.Sum, Currency: recourse.Currency, Reason: recourse.Reason}
	err = validation.Validate(c, f.billKeys, now+4, f.endorsee.NodeID(), pay, false)
	assert.NoError(t, err)

	err = validation.Validate(c, f.billKeys, now+4, f.drawer.NodeID(), validation.Action{Kind: validation.RejectToPayRecourse}, false)
	assert.NoError(t, err)
}
