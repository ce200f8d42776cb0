package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialFeed(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(payload)
}

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	go hub.Run()

	handler := NewHandler(hub, zerolog.Nop())
	server := httptest.NewServer(handler.SetupRoutes())
	t.Cleanup(server.Close)
	return hub, server
}

func TestViewerReceivesAuctionBroadcast(t *testing.T) {
	hub, server := newTestServer(t)

	conn := dialFeed(t, server, "/ws/auctions/auction-1")
	welcome := readMessage(t, conn)
	assert.Contains(t, welcome, `"type":"connected"`)
	assert.Contains(t, welcome, `"feed":"auction-1"`)

	require.Eventually(t, func() bool {
		return hub.SubscriberCount("auction-1") == 1
	}, time.Second, 5*time.Millisecond)

	hub.Broadcast("auction-1", []byte(`{"type":"bid-update","auction_id":"auction-1"}`))
	assert.Contains(t, readMessage(t, conn), "bid-update")
}

func TestBroadcastIsScopedToFeed(t *testing.T) {
	hub, server := newTestServer(t)

	watching := dialFeed(t, server, "/ws/auctions/auction-1")
	other := dialFeed(t, server, "/ws/auctions/auction-2")
	readMessage(t, watching)
	readMessage(t, other)

	require.Eventually(t, func() bool {
		return hub.SubscriberCount("auction-1") == 1 && hub.SubscriberCount("auction-2") == 1
	}, time.Second, 5*time.Millisecond)

	hub.Broadcast("auction-1", []byte(`{"auction_id":"auction-1"}`))

	assert.Contains(t, readMessage(t, watching), "auction-1")

	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "viewer of another auction must not receive the event")
}

func TestAdminFeedSubscription(t *testing.T) {
	hub, server := newTestServer(t)

	admin := dialFeed(t, server, "/ws/admin")
	welcome := readMessage(t, admin)
	assert.Contains(t, welcome, `"feed":"admin"`)

	require.Eventually(t, func() bool {
		return hub.SubscriberCount(AdminFeed) == 1
	}, time.Second, 5*time.Millisecond)

	hub.Broadcast(AdminFeed, []byte(`{"type":"auction:ended"}`))
	assert.Contains(t, readMessage(t, admin), "auction:ended")
}

func TestSubscriberCountTracksDisconnects(t *testing.T) {
	hub, server := newTestServer(t)

	conn := dialFeed(t, server, "/ws/auctions/auction-1")
	readMessage(t, conn)

	require.Eventually(t, func() bool {
		return hub.SubscriberCount("auction-1") == 1
	}, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return hub.SubscriberCount("auction-1") == 0
	}, 2*time.Second, 10*time.Millisecond)
}
