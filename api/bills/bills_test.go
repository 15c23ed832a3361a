package bills_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitcredit/ebill/api/bills"
	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/billservice"
	"github.com/bitcredit/ebill/crypto"
	"github.com/bitcredit/ebill/store/memory"
)

type stubOracle struct{}

func (stubOracle) IsPaid(_ context.Context, _ string, _ uint64) (bool, error) {
	return false, nil
}

type stubBroadcaster struct{}

func (stubBroadcaster) Broadcast(_ context.Context, _ billservice.Event) error {
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *billservice.Service, crypto.NodeID, crypto.NodeID) {
	t.Helper()
	drawerKeys, err := crypto.GenerateKeys()
	require.NoError(t, err)
	draweeKeys, err := crypto.GenerateKeys()
	require.NoError(t, err)

	service, err := billservice.New(
		memory.NewChainStore(),
		memory.NewKeysStore(),
		memory.NewPaidStore(),
		memory.NewCacheStore(),
		memory.NewIdentityStore(),
		memory.NewNotificationStore(),
		stubOracle{},
		stubBroadcaster{},
	)
	require.NoError(t, err)

	actor := billservice.Actor{PersonalKeys: drawerKeys}
	router := mux.NewRouter()
	bills.New(service, actor).Mount(router, "/bills")
	return httptest.NewServer(router), service, drawerKeys.NodeID(), draweeKeys.NodeID()
}

func TestIssueThenGetDetail(t *testing.T) {
	ts, _, drawerID, draweeID := newTestServer(t)
	defer ts.Close()

	data := bill.Data{
		ID:           "bill-1",
		Sum:          1000,
		Currency:     "sat",
		MaturityDate: "2020-01-01",
		Drawer:       bill.IdentifiedParticipant{NodeID: drawerID},
		Drawee:       bill.IdentifiedParticipant{NodeID: draweeID},
		Payee:        bill.FromIdentified(bill.IdentifiedParticipant{NodeID: drawerID}),
	}
	body, err := json.Marshal(data)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/bills", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/bills/bill-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var detail billservice.BillDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	assert.Equal(t, "bill-1", detail.BillID)
	assert.Equal(t, billservice.Payee, detail.Role)
}

func TestExecuteWithUnknownKindIsBadRequest(t *testing.T) {
	ts, _, drawerID, draweeID := newTestServer(t)
	defer ts.Close()

	data := bill.Data{
		ID:           "bill-1",
		Sum:          1000,
		Currency:     "sat",
		MaturityDate: "2020-01-01",
		Drawer:       bill.IdentifiedParticipant{NodeID: drawerID},
		Drawee:       bill.IdentifiedParticipant{NodeID: draweeID},
		Payee:        bill.FromIdentified(bill.IdentifiedParticipant{NodeID: drawerID}),
	}
	body, err := json.Marshal(data)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/bills", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Post(ts.URL+"/bills/bill-1/actions", "application/json", bytes.NewReader([]byte(`{"kind":"NotAKind"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetDetailNotFoundForNonParticipant(t *testing.T) {
	ts, service, drawerID, draweeID := newTestServer(t)
	defer ts.Close()

	data := bill.Data{
		ID:           "bill-1",
		Sum:          1000,
		Currency:     "sat",
		MaturityDate: "2020-01-01",
		Drawer:       bill.IdentifiedParticipant{NodeID: drawerID},
		Drawee:       bill.IdentifiedParticipant{NodeID: draweeID},
		Payee:        bill.FromIdentified(bill.IdentifiedParticipant{NodeID: draweeID}),
	}
	body, err := json.Marshal(data)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/bills", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()

	// The issuing actor is the drawer, a participant; ask as a stranger.
	strangerKeys, err := crypto.GenerateKeys()
	require.NoError(t, err)
	strangerRouter := mux.NewRouter()
	bills.New(service, billservice.Actor{PersonalKeys: strangerKeys}).Mount(strangerRouter, "/bills")
	strangerTS := httptest.NewServer(strangerRouter)
	defer strangerTS.Close()

	resp, err = http.Get(strangerTS.URL + "/bills/bill-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
