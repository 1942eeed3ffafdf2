package websocket

import "sync"

// Registry maps authenticated user identities to their one live connection.
// It is an explicit object owned by the Hub, constructed at startup and
// injected where needed, so tests can run independent registries side by
// side.
//
// Invariant: at most one entry per user identity. A re-authentication on a
// newer connection replaces the entry; the displaced connection stays open
// but is no longer addressable by identity.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]*Client
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		bindings: make(map[string]*Client),
	}
}

// Bind associates userID with client, replacing any prior binding.
// Returns the displaced client, or nil if the identity was unbound
// (or already bound to this same client).
func (r *Registry) Bind(userID string, client *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.bindings[userID]
	r.bindings[userID] = client
	if prev == client {
		return nil
	}
	return prev
}

// UnbindClient removes the entry for userID only if it still points at
// client. This guards the close path against removing a newer binding
// created by a re-authentication on another connection.
func (r *Registry) UnbindClient(userID string, client *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.bindings[userID]; ok && current == client {
		delete(r.bindings, userID)
		return true
	}
	return false
}

// Lookup returns the live connection bound to userID, if any
func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.bindings[userID]
	return client, ok
}

// Snapshot copies the current set of bound connections. Broadcast
// iteration works on the copy so a concurrent unbind cannot disturb it.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.bindings))
	for _, client := range r.bindings {
		clients = append(clients, client)
	}
	return clients
}

// IsUserOnline checks if a user has a live bound connection
func (r *Registry) IsUserOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bindings[userID]
	return ok
}

// OnlineUsers returns the identities with a live binding
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.bindings))
	for userID := range r.bindings {
		users = append(users, userID)
	}
	return users
}

// Count returns the number of live bindings
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}

// clear removes all bindings (shutdown path)
func (r *Registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings = make(map[string]*Client)
}
