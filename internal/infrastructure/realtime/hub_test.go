package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsPair opens a real websocket and returns both ends of it.
func wsPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()

	accepted := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- ws
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case server = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("websocket handshake did not complete")
	}
	return server, client
}

func attachConn(t *testing.T, h *Hub, userID string) (*Connection, *websocket.Conn) {
	t.Helper()
	serverWS, clientWS := wsPair(t)
	conn := NewConnection(userID, "employee", serverWS)
	h.Attach(conn)
	t.Cleanup(func() { conn.Close(websocket.CloseNormalClosure, "test done") })
	return conn, clientWS
}

func readPayload(t *testing.T, ws *websocket.Conn) string {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func assertNoPayload(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := ws.ReadMessage()
	assert.Error(t, err, "no frame should have been delivered")
}

func TestHubBroadcastExcludesUser(t *testing.T) {
	h := NewHub()
	defer h.Close()

	alice, aliceWS := attachConn(t, h, "alice")
	bob, bobWS := attachConn(t, h, "bob")
	h.Join("alice_bob", alice)
	h.Join("alice_bob", bob)

	delivered := h.Broadcast("alice_bob", []byte(`{"event":"x"}`), "alice")
	assert.Equal(t, 1, delivered)
	assert.Equal(t, `{"event":"x"}`, readPayload(t, bobWS))
	assertNoPayload(t, aliceWS)
}

func TestHubBroadcastReachesEveryRoomMember(t *testing.T) {
	h := NewHub()
	defer h.Close()

	alice, aliceWS := attachConn(t, h, "alice")
	bob, bobWS := attachConn(t, h, "bob")
	_, outsiderWS := attachConn(t, h, "carol")
	h.Join("alice_bob", alice)
	h.Join("alice_bob", bob)

	delivered := h.Broadcast("alice_bob", []byte("hello"), "")
	assert.Equal(t, 2, delivered)
	assert.Equal(t, "hello", readPayload(t, aliceWS))
	assert.Equal(t, "hello", readPayload(t, bobWS))
	assertNoPayload(t, outsiderWS)
}

func TestHubNotifyUserHitsEveryDevice(t *testing.T) {
	h := NewHub()
	defer h.Close()

	_, phoneWS := attachConn(t, h, "alice")
	_, laptopWS := attachConn(t, h, "alice")
	_, bobWS := attachConn(t, h, "bob")

	assert.True(t, h.NotifyUser("alice", []byte("ping")))
	assert.Equal(t, "ping", readPayload(t, phoneWS))
	assert.Equal(t, "ping", readPayload(t, laptopWS))
	assertNoPayload(t, bobWS)

	assert.False(t, h.NotifyUser("ghost", []byte("ping")))
}

func TestHubDetachLeavesAllRooms(t *testing.T) {
	h := NewHub()
	defer h.Close()

	alice, _ := attachConn(t, h, "alice")
	h.Join("alice_bob", alice)
	h.Join("alice_carol", alice)
	require.True(t, h.InRoom("alice_bob", "alice"))

	h.Detach(alice)
	assert.False(t, h.InRoom("alice_bob", "alice"))
	assert.False(t, h.InRoom("alice_carol", "alice"))
	assert.Zero(t, h.Broadcast("alice_bob", []byte("x"), ""))

	// Detaching twice is safe.
	h.Detach(alice)
}

func TestHubJoinRequiresAttachedConnection(t *testing.T) {
	h := NewHub()
	defer h.Close()

	serverWS, _ := wsPair(t)
	stray := NewConnection("alice", "employee", serverWS)
	h.Join("alice_bob", stray)
	assert.False(t, h.InRoom("alice_bob", "alice"))
}

func TestHubBroadcastAll(t *testing.T) {
	h := NewHub()
	defer h.Close()

	_, aliceWS := attachConn(t, h, "alice")
	_, bobWS := attachConn(t, h, "bob")

	delivered := h.BroadcastAll([]byte("presence"), "alice")
	assert.Equal(t, 1, delivered)
	assert.Equal(t, "presence", readPayload(t, bobWS))
	assertNoPayload(t, aliceWS)
}
