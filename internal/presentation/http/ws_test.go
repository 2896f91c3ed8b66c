package httppresentation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smalob/marketplace/internal/domain/notification"
)

func dialWS(t *testing.T, srv *httptest.Server, path, userID, role string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	header := http.Header{}
	header.Set("X-User-ID", userID)
	header.Set("X-User-Role", role)

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestNotificationSocket_CustomerReceivesOwnEvents(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	conn := dialWS(t, srv, "/ws", "cust-1", "customer")

	// Wait for the server side of the upgrade to attach its subscription.
	require.Eventually(t, func() bool {
		return s.hub.Subscribers(notification.CustomerChannel("cust-1")) == 1
	}, time.Second, 10*time.Millisecond)

	e := notification.New(notification.CustomerChannel("cust-1"), notification.TypeOrderUpdate, "ord-1", "hello")
	require.NoError(t, s.hub.Publish(context.Background(), e))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got notification.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "ord-1", got.OrderID)
	assert.Equal(t, notification.TypeOrderUpdate, got.Type)
}

func TestNotificationSocket_VendorChannelIsDerivedFromIdentity(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	conn := dialWS(t, srv, "/ws", "vendor-a", "vendor")

	require.Eventually(t, func() bool {
		return s.hub.Subscribers(notification.VendorChannel("vendor-a")) == 1
	}, time.Second, 10*time.Millisecond)

	// An event for another vendor must not arrive.
	other := notification.New(notification.VendorChannel("vendor-b"), notification.TypeNewOrder, "ord-x", "not yours")
	require.NoError(t, s.hub.Publish(context.Background(), other))

	mine := notification.New(notification.VendorChannel("vendor-a"), notification.TypeNewOrder, "ord-1", "New order ord-1")
	require.NoError(t, s.hub.Publish(context.Background(), mine))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got notification.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "ord-1", got.OrderID)
}

func TestNotificationSocket_AdminMustNameAChannel(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{}
	header.Set("X-User-ID", "admin-1")
	header.Set("X-User-Role", "admin")

	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNotificationSocket_AdminWatchesNamedChannel(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	conn := dialWS(t, srv, "/ws?channel=vendor:vendor-a", "admin-1", "admin")

	require.Eventually(t, func() bool {
		return s.hub.Subscribers(notification.VendorChannel("vendor-a")) == 1
	}, time.Second, 10*time.Millisecond)

	e := notification.New(notification.VendorChannel("vendor-a"), notification.TypeNewOrder, "ord-1", "watched")
	require.NoError(t, s.hub.Publish(context.Background(), e))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got notification.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "ord-1", got.OrderID)
}
