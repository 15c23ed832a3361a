package billservice

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/crypto"
	"github.com/bitcredit/ebill/validation"
)

// scenarioActor is one named party in a scenario: its keys plus the
// Actor/IdentifiedParticipant shapes every call site needs.
type scenarioActor struct {
	keys *crypto.Keys
}

func newScenarioActor(t *testing.T) scenarioActor {
	t.Helper()
	k, err := crypto.GenerateKeys()
	require.NoError(t, err)
	return scenarioActor{keys: k}
}

func (a scenarioActor) id() crypto.NodeID { return a.keys.NodeID() }
func (a scenarioActor) actor() Actor      { return Actor{PersonalKeys: a.keys} }
func (a scenarioActor) identified() bill.IdentifiedParticipant {
	return bill.IdentifiedParticipant{NodeID: a.id()}
}
func (a scenarioActor) anonymous() bill.Participant {
	return bill.FromAnonymous(bill.AnonymousParticipant{NodeID: a.id()})
}

// participant returns a as an identified Participant — needed wherever
// the endorsee must be addressable as a future recourse target
// (past-endorsee tracking only collects identified holders).
func (a scenarioActor) participant() bill.Participant {
	return bill.FromIdentified(a.identified())
}

// TestScenarioAcceptThenEndorse is S1: issue, request acceptance,
// accept, endorse — chain grows by one block per step, the new holder
// becomes Carol, and nothing is left waiting.
func TestScenarioAcceptThenEndorse(t *testing.T) {
	s, _ := newTestService(t)
	alice, bob, carol := newScenarioActor(t), newScenarioActor(t), newScenarioActor(t)

	data := bill.Data{
		ID:           "B1",
		Sum:          10000,
		Currency:     "sat",
		MaturityDate: "2099-10-15",
		Drawer:       alice.identified(),
		Drawee:       bob.identified(),
		Payee:        bill.FromIdentified(alice.identified()),
	}
	c, _, err := s.Issue(context.Background(), data, alice.actor(), 900)
	require.NoError(t, err)
	require.Equal(t, uint64(1), c.GetLatestBlock().ID())

	_, err = s.Execute(context.Background(), "B1", validation.Action{Kind: validation.RequestToAccept}, alice.actor(), 1000)
	require.NoError(t, err)

	_, err = s.Execute(context.Background(), "B1", validation.Action{Kind: validation.Accept}, bob.actor(), 1100)
	require.NoError(t, err)

	result, err := s.Execute(context.Background(), "B1",
		validation.Action{Kind: validation.Endorse, Endorsee: carol.anonymous()}, alice.actor(), 1200)
	require.NoError(t, err)

	detail, err := s.GetDetail(context.Background(), "B1", carol.id(), 1200)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), detail.View.LatestBlockID)
	assert.Equal(t, carol.id(), detail.Parties.Endorsee.NodeID())
	assert.Equal(t, Payee, detail.Role)

	assert.True(t, result.Acceptance.Requested)
	assert.True(t, result.Acceptance.Accepted)
	assert.False(t, result.Acceptance.Rejected)
	assert.False(t, result.Acceptance.TimedOut)
	assert.Nil(t, result.CurrentWaitingState)
}

// TestScenarioRequestToPayBeforeMaturityRejected is S2: a holder may
// not request payment before the bill's maturity date, and a rejected
// attempt leaves the chain untouched.
func TestScenarioRequestToPayBeforeMaturityRejected(t *testing.T) {
	s, _ := newTestService(t)
	alice, bob, carol := newScenarioActor(t), newScenarioActor(t), newScenarioActor(t)

	data := bill.Data{
		ID:           "B1",
		Sum:          10000,
		Currency:     "sat",
		MaturityDate: "2099-10-15",
		Drawer:       alice.identified(),
		Drawee:       bob.identified(),
		Payee:        bill.FromIdentified(alice.identified()),
	}
	_, _, err := s.Issue(context.Background(), data, alice.actor(), 900)
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), "B1", validation.Action{Kind: validation.RequestToAccept}, alice.actor(), 1000)
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), "B1", validation.Action{Kind: validation.Accept}, bob.actor(), 1100)
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), "B1",
		validation.Action{Kind: validation.Endorse, Endorsee: carol.anonymous()}, alice.actor(), 1200)
	require.NoError(t, err)

	before, err := s.chains.Load(context.Background(), "B1")
	require.NoError(t, err)
	beforeLen := len(before.Blocks())

	_, err = s.Execute(context.Background(), "B1",
		validation.Action{Kind: validation.RequestToPay, Currency: "sat"}, carol.actor(), 1300)
	require.Error(t, err)
	verr, ok := err.(*validation.Error)
	require.True(t, ok)
	assert.Equal(t, validation.BillRequestedToPayBeforeMaturityDate, verr.Code())

	after, err := s.chains.Load(context.Background(), "B1")
	require.NoError(t, err)
	assert.Equal(t, beforeLen, len(after.Blocks()))
}

// TestScenarioOfferToSellRaceHasExactlyOneWinner is S3: two concurrent
// Sell calls finalizing the same open OfferToSell race for the per-bill
// lock; exactly one may succeed; the loser's attempt never lands.
func TestScenarioOfferToSellRaceHasExactlyOneWinner(t *testing.T) {
	s, _ := newTestService(t)
	alice, bob, carol, dave, eve := newScenarioActor(t), newScenarioActor(t), newScenarioActor(t), newScenarioActor(t), newScenarioActor(t)

	data := bill.Data{
		ID:           "B1",
		Sum:          10000,
		Currency:     "sat",
		MaturityDate: "2099-10-15",
		Drawer:       alice.identified(),
		Drawee:       bob.identified(),
		Payee:        bill.FromIdentified(alice.identified()),
	}
	_, _, err := s.Issue(context.Background(), data, alice.actor(), 900)
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), "B1", validation.Action{Kind: validation.RequestToAccept}, alice.actor(), 1000)
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), "B1", validation.Action{Kind: validation.Accept}, bob.actor(), 1100)
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), "B1",
		validation.Action{Kind: validation.Endorse, Endorsee: carol.anonymous()}, alice.actor(), 1200)
	require.NoError(t, err)

	_, err = s.Execute(context.Background(), "B1",
		validation.Action{Kind: validation.OfferToSell, Buyer: dave.anonymous(), Sum: 10000, Currency: "sat"},
		carol.actor(), 1400)
	require.NoError(t, err)

	run := func(buyer scenarioActor) error {
		_, err := s.Execute(context.Background(), "B1",
			validation.Action{Kind: validation.Sell, Buyer: buyer.anonymous(), Sum: 10000, Currency: "sat"},
			carol.actor(), 1500)
		return err
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); errs[0] = run(dave) }()
	go func() { defer wg.Done(); errs[1] = run(eve) }()
	wg.Wait()

	successes := 0
	for _, e := range errs {
		if e == nil {
			successes++
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent Sell must win the race")

	for _, e := range errs {
		if e != nil {
			_, ok := e.(*validation.Error)
			assert.True(t, ok, "loser's error must be a validation.Error, got %T: %v", e, e)
		}
	}
	final, err := s.chains.Load(context.Background(), "B1")
	require.NoError(t, err)
	assert.Equal(t, uint64(6), final.GetLatestBlock().ID(), "only the winning Sell may extend the chain")
}

// TestScenarioOfferToSellTimesOut is S4: an OfferToSell nobody acts on
// within the payment deadline stops waiting, and a fresh OfferToSell
// becomes legal again.
func TestScenarioOfferToSellTimesOut(t *testing.T) {
	s, _ := newTestService(t)
	alice, bob, carol, dave := newScenarioActor(t), newScenarioActor(t), newScenarioActor(t), newScenarioActor(t)

	data := bill.Data{
		ID:           "B1",
		Sum:          10000,
		Currency:     "sat",
		MaturityDate: "2099-10-15",
		Drawer:       alice.identified(),
		Drawee:       bob.identified(),
		Payee:        bill.FromIdentified(alice.identified()),
	}
	_, _, err := s.Issue(context.Background(), data, alice.actor(), 900)
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), "B1", validation.Action{Kind: validation.RequestToAccept}, alice.actor(), 1000)
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), "B1", validation.Action{Kind: validation.Accept}, bob.actor(), 1100)
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), "B1",
		validation.Action{Kind: validation.Endorse, Endorsee: carol.anonymous()}, alice.actor(), 1200)
	require.NoError(t, err)

	const offerTs = int64(2000)
	_, err = s.Execute(context.Background(), "B1",
		validation.Action{Kind: validation.OfferToSell, Buyer: dave.anonymous(), Sum: 10000, Currency: "sat"},
		carol.actor(), offerTs)
	require.NoError(t, err)

	const pastDeadline = offerTs + 172801
	detail, err := s.GetDetail(context.Background(), "B1", carol.id(), pastDeadline)
	require.NoError(t, err)
	assert.True(t, detail.View.Sell.TimedOut)
	assert.Nil(t, detail.View.CurrentWaitingState)

	_, err = s.Execute(context.Background(), "B1",
		validation.Action{Kind: validation.Sell, Buyer: dave.anonymous(), Sum: 10000, Currency: "sat"},
		carol.actor(), pastDeadline)
	require.Error(t, err)
	verr, ok := err.(*validation.Error)
	require.True(t, ok)
	assert.Equal(t, validation.RequestAlreadyExpired, verr.Code())

	_, err = s.Execute(context.Background(), "B1",
		validation.Action{Kind: validation.OfferToSell, Buyer: dave.anonymous(), Sum: 10000, Currency: "sat"},
		carol.actor(), pastDeadline+1)
	assert.NoError(t, err, "a fresh OfferToSell must be legal again once the old one has timed out")
}

// TestScenarioRecourseEligibilityTracksPastHolders is S5: after the
// bill is endorsed twice and payment is rejected, the current holder
// may seek recourse only against a genuine past holder — never against
// the drawee, who has never held it.
func TestScenarioRecourseEligibilityTracksPastHolders(t *testing.T) {
	s, _ := newTestService(t)
	alice, bob, carol, dave := newScenarioActor(t), newScenarioActor(t), newScenarioActor(t), newScenarioActor(t)

	data := bill.Data{
		ID:           "B1",
		Sum:          10000,
		Currency:     "sat",
		MaturityDate: "2024-01-01",
		Drawer:       alice.identified(),
		Drawee:       bob.identified(),
		Payee:        bill.FromIdentified(alice.identified()),
	}
	_, _, err := s.Issue(context.Background(), data, alice.actor(), 100)
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), "B1",
		validation.Action{Kind: validation.Endorse, Endorsee: carol.participant()}, alice.actor(), 200)
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), "B1",
		validation.Action{Kind: validation.Endorse, Endorsee: dave.participant()}, carol.actor(), 300)
	require.NoError(t, err)

	const afterMaturity = int64(1706745600) // 2024-02-01, past the 2024-01-01 maturity
	_, err = s.Execute(context.Background(), "B1", validation.Action{Kind: validation.RequestToPay, Currency: "sat"}, dave.actor(), afterMaturity)
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), "B1", validation.Action{Kind: validation.RejectToPay}, bob.actor(), afterMaturity+1)
	require.NoError(t, err)

	pastEndorsees, err := s.GetPastEndorsees(context.Background(), "B1", dave.id())
	require.NoError(t, err)
	require.Len(t, pastEndorsees, 2)
	assert.Equal(t, carol.id(), pastEndorsees[0].PayToTheOrderOf.NodeID)
	assert.Equal(t, alice.id(), pastEndorsees[1].PayToTheOrderOf.NodeID)

	_, err = s.Execute(context.Background(), "B1",
		validation.Action{Kind: validation.RequestRecourse, Recoursee: carol.identified(), Sum: 10000, Currency: "sat", Reason: bill.RecourseReasonPay},
		dave.actor(), afterMaturity+2)
	require.NoError(t, err, "recourse against a genuine past holder must be legal")

	s2, _ := newTestService(t)
	_, _, err = s2.Issue(context.Background(), data, alice.actor(), 100)
	require.NoError(t, err)
	_, err = s2.Execute(context.Background(), "B1",
		validation.Action{Kind: validation.Endorse, Endorsee: carol.participant()}, alice.actor(), 200)
	require.NoError(t, err)
	_, err = s2.Execute(context.Background(), "B1",
		validation.Action{Kind: validation.Endorse, Endorsee: dave.participant()}, carol.actor(), 300)
	require.NoError(t, err)
	_, err = s2.Execute(context.Background(), "B1", validation.Action{Kind: validation.RequestToPay, Currency: "sat"}, dave.actor(), afterMaturity)
	require.NoError(t, err)
	_, err = s2.Execute(context.Background(), "B1", validation.Action{Kind: validation.RejectToPay}, bob.actor(), afterMaturity+1)
	require.NoError(t, err)

	_, err = s2.Execute(context.Background(), "B1",
		validation.Action{Kind: validation.RequestRecourse, Recoursee: bob.identified(), Sum: 10000, Currency: "sat", Reason: bill.RecourseReasonPay},
		dave.actor(), afterMaturity+2)
	require.Error(t, err, "the drawee was never a past holder and is not a valid recourse target")
	verr, ok := err.(*validation.Error)
	require.True(t, ok)
	assert.Equal(t, validation.RecourseeNotPastHolder, verr.Code())
}

// TestScenarioRejectAcceptanceIsNotRepeatable is S6: once acceptance
// has been rejected, rejecting it again is refused as a repeat of an
// already-settled request.
func TestScenarioRejectAcceptanceIsNotRepeatable(t *testing.T) {
	s, _ := newTestService(t)
	alice, bob := newScenarioActor(t), newScenarioActor(t)

	data := bill.Data{
		ID:           "B1",
		Sum:          10000,
		Currency:     "sat",
		MaturityDate: "2099-10-15",
		Drawer:       alice.identified(),
		Drawee:       bob.identified(),
		Payee:        bill.FromIdentified(alice.identified()),
	}
	_, _, err := s.Issue(context.Background(), data, alice.actor(), 900)
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), "B1", validation.Action{Kind: validation.RejectToAccept}, bob.actor(), 1000)
	require.NoError(t, err)

	_, err = s.Execute(context.Background(), "B1", validation.Action{Kind: validation.RejectToAccept}, bob.actor(), 1100)
	require.Error(t, err)
	verr, ok := err.(*validation.Error)
	require.True(t, ok)
	assert.Equal(t, validation.RequestAlreadyRejected, verr.Code())
}
