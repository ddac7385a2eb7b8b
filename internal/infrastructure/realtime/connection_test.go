package realtime

import (
	"fmt"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionSendAfterClose(t *testing.T) {
	serverWS, _ := wsPair(t)
	conn := NewConnection("alice", "manager", serverWS)
	conn.Start()

	conn.Close(websocket.CloseNormalClosure, "done")

	// A closed connection can still be reached through the hub until the
	// handler's deferred Detach runs; every Send must fail cleanly.
	for i := 0; i < 200; i++ {
		assert.ErrorIs(t, conn.Send([]byte("late")), ErrConnectionClosed)
	}
}

func TestConnectionConcurrentSendAndClose(t *testing.T) {
	serverWS, _ := wsPair(t)
	conn := NewConnection("alice", "manager", serverWS)
	conn.Start()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				_ = conn.Send([]byte("payload"))
			}
		}()
	}
	conn.Close(websocket.CloseGoingAway, "shutting down")
	wg.Wait()

	assert.ErrorIs(t, conn.Send([]byte("after")), ErrConnectionClosed)
}

func TestConnectionBackpressureCloses(t *testing.T) {
	serverWS, _ := wsPair(t)
	conn := NewConnection("alice", "manager", serverWS)
	// No Start: nothing drains the buffer, so it fills up.

	var overflowed bool
	for i := 0; i < 256; i++ {
		if err := conn.Send([]byte(fmt.Sprintf("m%d", i))); err != nil {
			overflowed = true
			break
		}
	}
	require.True(t, overflowed, "a slow consumer must trip the backpressure close")

	assert.ErrorIs(t, conn.Send([]byte("after")), ErrConnectionClosed)
}

func TestHubBroadcastSurvivesClosedConnection(t *testing.T) {
	h := NewHub()
	defer h.Close()

	alice, _ := attachConn(t, h, "alice")
	bob, bobWS := attachConn(t, h, "bob")
	h.Join("alice_bob", alice)
	h.Join("alice_bob", bob)

	// Alice's connection closes but stays registered, as it does between a
	// backpressure close and the handler's deferred Detach.
	alice.Close(websocket.CloseGoingAway, "send buffer full")

	delivered := h.Broadcast("alice_bob", []byte("still flowing"), "")
	assert.Equal(t, 1, delivered, "the closed connection is skipped, not fatal")
	assert.Equal(t, "still flowing", readPayload(t, bobWS))

	assert.True(t, h.NotifyUser("bob", []byte("ping")))
	assert.False(t, h.NotifyUser("alice", []byte("ping")))
}
