package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindTestUser(hub *Hub, userID string) *Client {
	client := newTestClient(hub)
	client.mu.Lock()
	client.authenticated = true
	client.userID = userID
	client.username = userID
	client.mu.Unlock()
	hub.registry.Bind(userID, client)
	return client
}

func TestBroadcastIdenticalBytes(t *testing.T) {
	hub := NewHub()

	a := bindTestUser(hub, "user-a")
	b := bindTestUser(hub, "user-b")
	c := bindTestUser(hub, "user-c")

	hub.broadcastMessage(NewMessage(MessageTypeNewPost, map[string]string{"post_id": "p1"}))

	rawA := readRaw(t, a)
	rawB := readRaw(t, b)
	rawC := readRaw(t, c)

	// One serialization serves every recipient
	assert.Equal(t, rawA, rawB)
	assert.Equal(t, rawB, rawC)
	assert.Contains(t, string(rawA), `"new_post"`)
}

func TestBroadcastSkipsUnauthenticated(t *testing.T) {
	hub := NewHub()

	authed := bindTestUser(hub, "user-a")

	// Open but never authenticated: tracked by the hub, absent from the
	// registry, invisible to broadcasts
	anon := newTestClient(hub)
	hub.registerClient(anon)

	hub.broadcastMessage(NewMessage(MessageTypeNewPost, map[string]string{"post_id": "p1"}))

	readRaw(t, authed)
	noFrame(t, anon)
}

func TestBroadcastSkipsClosedConnections(t *testing.T) {
	hub := NewHub()

	live := bindTestUser(hub, "user-live")
	dead := bindTestUser(hub, "user-dead")
	dead.Close()

	hub.broadcastMessage(NewMessage(MessageTypeSystem, SystemPayload{Event: "tick"}))

	readRaw(t, live)
	noFrame(t, dead)
}

func TestSendToUserOffline(t *testing.T) {
	hub := NewHub()

	delivered := hub.SendToUser("ghost", NewMessage(MessageTypeSystem, SystemPayload{Event: "hello"}))
	assert.False(t, delivered)
}

func TestSendToUserDelivers(t *testing.T) {
	hub := NewHub()
	client := bindTestUser(hub, "user-a")

	delivered := hub.SendToUser("user-a", NewMessage(MessageTypeNotification, map[string]string{"id": "n1"}))
	assert.True(t, delivered)

	frame := readFrame(t, client)
	assert.Equal(t, MessageTypeNotification, frame.Type)
}

func TestUnregisterPreservesNewerBinding(t *testing.T) {
	hub := NewHub()

	old := bindTestUser(hub, "user-a")
	hub.registerClient(old)

	// Same identity re-authenticates on a fresh connection
	fresh := newTestClient(hub)
	fresh.mu.Lock()
	fresh.authenticated = true
	fresh.userID = "user-a"
	fresh.mu.Unlock()
	hub.registerClient(fresh)
	hub.BindUser("user-a", fresh)

	// The old connection closing must not evict the new binding
	hub.unregisterClient(old)

	found, ok := hub.registry.Lookup("user-a")
	require.True(t, ok)
	assert.Same(t, fresh, found)
	assert.True(t, hub.IsUserOnline("user-a"))
}

func TestUnregisterRemovesOwnBinding(t *testing.T) {
	hub := NewHub()

	client := bindTestUser(hub, "user-a")
	hub.registerClient(client)

	hub.unregisterClient(client)
	assert.False(t, hub.IsUserOnline("user-a"))
}

func TestBindUserReturnsDisplaced(t *testing.T) {
	hub := NewHub()

	first := newTestClient(hub)
	second := newTestClient(hub)

	assert.Nil(t, hub.BindUser("user-a", first))
	displaced := hub.BindUser("user-a", second)
	assert.Same(t, first, displaced)
}

func TestHubMetricsSnapshot(t *testing.T) {
	hub := NewHub()

	client := bindTestUser(hub, "user-a")
	hub.registerClient(client)

	hub.broadcastMessage(NewMessage(MessageTypeNewPost, map[string]string{"post_id": "p1"}))

	snapshot := hub.GetMetrics()
	assert.Equal(t, int64(1), snapshot.TotalConnections)
	assert.Equal(t, int64(1), snapshot.ActiveConnections)
	assert.Equal(t, int64(1), snapshot.AuthenticatedUsers)
	assert.Equal(t, int64(1), snapshot.Broadcasts)
	assert.Equal(t, int64(1), snapshot.MessagesSent)
	assert.NotEmpty(t, snapshot.String())
}

func TestHubRunAndShutdown(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub)
	hub.Register(client)

	// Wait for the register to land on the event loop
	require.Eventually(t, func() bool {
		return hub.GetMetrics().ActiveConnections == 1
	}, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, hub.Shutdown(ctx))

	// Shutdown waits for the event loop, so by now every connection has
	// the final frame queued and is marked closed
	assert.Contains(t, string(readRaw(t, client)), "server_shutdown")
	assert.True(t, client.IsClosed())
}

func TestUnicastAfterUnregisterReturnsError(t *testing.T) {
	hub := NewHub()

	client := bindTestUser(hub, "user-a")
	hub.registerClient(client)

	// Another goroutine resolved the binding just before the connection
	// was torn down; its send must fail cleanly, never panic
	looked, ok := hub.registry.Lookup("user-a")
	require.True(t, ok)

	hub.unregisterClient(client)

	assert.NotPanics(t, func() {
		err := looked.Send(NewMessage(MessageTypeNewMessage, map[string]string{"id": "m1"}))
		assert.Error(t, err)
	})
	assert.False(t, hub.SendToUser("user-a", NewMessage(MessageTypeTypingStart, TypingPayload{UserID: "user-b"})))
}

func TestConcurrentUnicastAndUnregister(t *testing.T) {
	hub := NewHub()
	frame := NewMessage(MessageTypeNotification, map[string]string{"id": "n1"})

	for i := 0; i < 200; i++ {
		client := bindTestUser(hub, "user-a")
		hub.registerClient(client)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.SendToUser("user-a", frame)
		}()
		go func() {
			defer wg.Done()
			hub.unregisterClient(client)
		}()
		wg.Wait()
	}
}

func TestShutdownWithoutRunTimesOut(t *testing.T) {
	hub := NewHub()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, hub.Shutdown(ctx))
}

func TestRateLimiterBurstThenRefill(t *testing.T) {
	limiter := NewRateLimiter(1000, 3)

	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())

	// Tokens refill with elapsed time
	time.Sleep(5 * time.Millisecond)
	assert.True(t, limiter.Allow())
}
