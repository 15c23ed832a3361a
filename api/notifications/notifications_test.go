package notifications_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitcredit/ebill/api/notifications"
	"github.com/bitcredit/ebill/eventbus"
)

func newTestServer(t *testing.T) (*httptest.Server, *eventbus.MemoryNotificationInbox) {
	t.Helper()
	inbox := eventbus.NewMemoryNotificationInbox()
	router := mux.NewRouter()
	notifications.New(inbox).Mount(router, "/notifications")
	return httptest.NewServer(router), inbox
}

func TestActiveListsUnsupersededNotifications(t *testing.T) {
	ts, inbox := newTestServer(t)
	defer ts.Close()

	require.NoError(t, inbox.Create(context.Background(), "bill-1", eventbus.BillSigned))
	require.NoError(t, inbox.Create(context.Background(), "bill-1", eventbus.BillAccepted))
	require.NoError(t, inbox.Create(context.Background(), "bill-2", eventbus.BillSigned))

	resp, err := http.Get(ts.URL + "/notifications")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var active []*eventbus.Notification
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&active))
	assert.Len(t, active, 2)
}

func TestWaitWakesOnNewNotification(t *testing.T) {
	ts, inbox := newTestServer(t)
	defer ts.Close()

	done := make(chan *http.Response, 1)
	go func() {
		resp, err := http.Get(ts.URL + "/notifications/bill-1/wait")
		require.NoError(t, err)
		done <- resp
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, inbox.Create(context.Background(), "bill-1", eventbus.BillAccepted))

	select {
	case resp := <-done:
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		assert.Equal(t, "bill-1", payload["bill_id"])
		assert.Equal(t, string(eventbus.BillAccepted), payload["event_type"])
	case <-time.After(2 * time.Second):
		t.Fatal("wait handler did not wake within timeout")
	}
}
