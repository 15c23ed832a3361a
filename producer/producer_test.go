package producer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/crypto"
	"github.com/bitcredit/ebill/producer"
	"github.com/bitcredit/ebill/validation"
)

func TestProduceIssueRoundTrip(t *testing.T) {
	billKeys, err := crypto.GenerateKeys()
	require.NoError(t, err)
	drawer, err := crypto.GenerateKeys()
	require.NoError(t, err)

	data := bill.Data{
		ID:       "bill-1",
		Sum:      5000,
		Currency: "sat",
		Drawer:   bill.IdentifiedParticipant{NodeID: drawer.NodeID()},
		Drawee:   bill.IdentifiedParticipant{NodeID: drawer.NodeID()},
		Payee:    bill.FromIdentified(bill.IdentifiedParticipant{NodeID: drawer.NodeID()}),
	}

	b, err := producer.ProduceIssue(data, billKeys, producer.Signer{PersonalKeys: drawer}, 1700000000)
	require.NoError(t, err)
	assert.NoError(t, b.Verify())

	var decoded bill.IssuePayload
	require.NoError(t, b.Decrypt(billKeys, &decoded))
	assert.Equal(t, data.ID, decoded.Data.ID)
	assert.Equal(t, uint64(5000), decoded.Data.Sum)
}

func TestProduceOfferToSellDerivesPaymentAddress(t *testing.T) {
	billKeys, err := crypto.GenerateKeys()
	require.NoError(t, err)
	holder, err := crypto.GenerateKeys()
	require.NoError(t, err)
	buyer, err := crypto.GenerateKeys()
	require.NoError(t, err)

	action := validation.Action{
		Kind:     validation.OfferToSell,
		Buyer:    bill.FromAnonymous(bill.AnonymousParticipant{NodeID: buyer.NodeID()}),
		Sum:      5000,
		Currency: "sat",
	}

	b, err := producer.Produce("bill-1", crypto.Hash{}, 2, billKeys, producer.Signer{PersonalKeys: holder}, action, 1700000000)
	require.NoError(t, err)
	require.NoError(t, b.Verify())

	var decoded bill.OfferToSellPayload
	require.NoError(t, b.Decrypt(billKeys, &decoded))
	assert.NotEmpty(t, decoded.PaymentAddress)
	assert.Equal(t, holder.NodeID(), decoded.Seller.NodeID())
}
