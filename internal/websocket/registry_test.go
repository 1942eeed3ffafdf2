package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryBindAndLookup(t *testing.T) {
	hub := NewHub()
	registry := NewRegistry()
	client := newTestClient(hub)

	displaced := registry.Bind("user-1", client)
	assert.Nil(t, displaced)

	found, ok := registry.Lookup("user-1")
	assert.True(t, ok)
	assert.Same(t, client, found)

	_, ok = registry.Lookup("user-2")
	assert.False(t, ok)
}

func TestRegistryLastWriterWins(t *testing.T) {
	hub := NewHub()
	registry := NewRegistry()
	first := newTestClient(hub)
	second := newTestClient(hub)

	assert.Nil(t, registry.Bind("user-1", first))

	// Newer connection takes over; the old one is returned displaced
	displaced := registry.Bind("user-1", second)
	assert.Same(t, first, displaced)

	found, ok := registry.Lookup("user-1")
	assert.True(t, ok)
	assert.Same(t, second, found)
	assert.Equal(t, 1, registry.Count())
}

func TestRegistryRebindSameClient(t *testing.T) {
	hub := NewHub()
	registry := NewRegistry()
	client := newTestClient(hub)

	registry.Bind("user-1", client)
	displaced := registry.Bind("user-1", client)
	assert.Nil(t, displaced)
	assert.Equal(t, 1, registry.Count())
}

func TestRegistryUnbindGuard(t *testing.T) {
	hub := NewHub()
	registry := NewRegistry()
	old := newTestClient(hub)
	fresh := newTestClient(hub)

	registry.Bind("user-1", old)
	registry.Bind("user-1", fresh)

	// The old connection's close must not remove the newer binding
	removed := registry.UnbindClient("user-1", old)
	assert.False(t, removed)

	found, ok := registry.Lookup("user-1")
	assert.True(t, ok)
	assert.Same(t, fresh, found)

	// The current owner can remove it
	removed = registry.UnbindClient("user-1", fresh)
	assert.True(t, removed)
	assert.False(t, registry.IsUserOnline("user-1"))
}

func TestRegistrySnapshot(t *testing.T) {
	hub := NewHub()
	registry := NewRegistry()
	a := newTestClient(hub)
	b := newTestClient(hub)

	registry.Bind("user-a", a)
	registry.Bind("user-b", b)

	snapshot := registry.Snapshot()
	assert.Len(t, snapshot, 2)

	// Mutating the registry after the snapshot leaves the copy intact
	registry.UnbindClient("user-a", a)
	assert.Len(t, snapshot, 2)
	assert.Equal(t, 1, registry.Count())
}

func TestRegistryOnlineUsers(t *testing.T) {
	hub := NewHub()
	registry := NewRegistry()

	registry.Bind("user-a", newTestClient(hub))
	registry.Bind("user-b", newTestClient(hub))

	users := registry.OnlineUsers()
	assert.ElementsMatch(t, []string{"user-a", "user-b"}, users)
	assert.True(t, registry.IsUserOnline("user-a"))
	assert.False(t, registry.IsUserOnline("user-c"))
}
