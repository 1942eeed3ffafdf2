// Package websocket implements the real-time connection and fan-out
// layer: a registry of authenticated live connections, the in-band
// authentication handshake, direct-message routing, and broadcast of
// social events to every connected client.
// Uses github.com/coder/websocket, the context-aware WebSocket library.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pulseapp/pulse/internal/logger"
	"github.com/pulseapp/pulse/internal/metrics"
	"go.uber.org/zap"
)

// Hub owns the connection lifecycle and the fan-out machinery. Open
// connections (authenticated or not) are tracked for shutdown; only
// authenticated connections are addressable through the Registry.
type Hub struct {
	// Registry of authenticated user -> connection bindings
	registry *Registry

	// All open connections, including unauthenticated ones
	connections map[*Client]struct{}

	// Register requests from new connections
	register chan *Client

	// Unregister requests from closing connections
	unregister chan *Client

	// Broadcast frames to all authenticated connections
	broadcast chan *Message

	// Frame router, set once before Run
	router *Router

	// Mutex for the connections set
	mu sync.RWMutex

	// Metrics
	metrics *Metrics

	// Shutdown handling. done is closed by Run after the final cleanup
	// so Shutdown can wait for the event loop to drain.
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// Rate limiter config
	rateLimitConfig RateLimitConfig
}

// Metrics tracks WebSocket statistics
type Metrics struct {
	TotalConnections  atomic.Int64
	ActiveConnections atomic.Int64
	MessagesReceived  atomic.Int64
	MessagesSent      atomic.Int64
	Broadcasts        atomic.Int64
	Errors            atomic.Int64
	DroppedSends      atomic.Int64
}

// RateLimitConfig defines rate limiting parameters
type RateLimitConfig struct {
	// MaxMessagesPerSecond per client
	MaxMessagesPerSecond int
	// BurstSize allows short bursts above the rate
	BurstSize int
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxMessagesPerSecond: 10,
		BurstSize:            20,
	}
}

// NewHub creates a new Hub with its own Registry
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:        NewRegistry(),
		connections:     make(map[*Client]struct{}),
		register:        make(chan *Client, 256),
		unregister:      make(chan *Client, 256),
		broadcast:       make(chan *Message, 256),
		metrics:         &Metrics{},
		ctx:             ctx,
		cancel:          cancel,
		done:            make(chan struct{}),
		rateLimitConfig: DefaultRateLimitConfig(),
	}
}

// SetRouter wires the frame router. Must be called before Run.
func (h *Hub) SetRouter(router *Router) {
	h.router = router
}

// Registry exposes the identity bindings for lookups by collaborators
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	logger.Log.Info("WebSocket hub starting")

	for {
		select {
		case <-h.ctx.Done():
			logger.Log.Info("WebSocket hub shutting down")
			h.shutdown()
			close(h.done)
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// registerClient tracks a newly accepted, still unauthenticated connection
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.connections[client] = struct{}{}
	h.mu.Unlock()

	h.metrics.TotalConnections.Add(1)
	h.metrics.ActiveConnections.Add(1)
	metrics.WSConnectionOpened()

	logger.Log.Debug("Connection opened",
		zap.String("remote", client.RemoteAddr),
		zap.Int64("active", h.metrics.ActiveConnections.Load()))
}

// unregisterClient removes a closing connection. The registry entry is
// removed only if this exact connection still owns it, so a newer
// binding from a re-authentication race survives.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, tracked := h.connections[client]
	if tracked {
		delete(h.connections, client)
	}
	h.mu.Unlock()

	if !tracked {
		return
	}

	if userID, _, ok := client.Identity(); ok {
		h.registry.UnbindClient(userID, client)
	}

	// The send channel is never closed; Close cancels the client context,
	// which ends the write pump. Unicasts racing this teardown see the
	// closed flag or the cancelled context instead of a dead channel.
	client.Close()
	h.metrics.ActiveConnections.Add(-1)
	metrics.WSConnectionClosed()

	logger.Log.Debug("Connection closed",
		zap.String("user", client.userID),
		zap.Int64("active", h.metrics.ActiveConnections.Load()))
}

// BindUser binds an authenticated identity to a connection, replacing
// any prior binding (last writer wins). The displaced connection, if
// any, is returned; it stays open but no longer receives routed frames.
func (h *Hub) BindUser(userID string, client *Client) *Client {
	displaced := h.registry.Bind(userID, client)
	if displaced != nil {
		logger.Log.Info("Identity rebound to new connection",
			logger.WithUserID(userID),
			zap.String("remote", client.RemoteAddr))
	}
	return displaced
}

// broadcastMessage pushes one frame to every authenticated connection.
// The frame is serialized exactly once; every recipient gets identical
// bytes. The registry is snapshotted first so connections closing
// mid-broadcast cannot disturb the iteration.
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		logger.Log.Error("Error marshaling broadcast frame", zap.Error(err))
		return
	}

	h.metrics.Broadcasts.Add(1)
	metrics.WSBroadcast(message.Type)

	for _, client := range h.registry.Snapshot() {
		if client.IsClosed() {
			// Not yet reaped; skipped silently
			continue
		}
		if err := client.SendRaw(data); err != nil {
			h.metrics.DroppedSends.Add(1)
			continue
		}
		h.metrics.MessagesSent.Add(1)
	}
}

// Broadcast queues a frame for delivery to all authenticated connections
func (h *Hub) Broadcast(message *Message) {
	select {
	case h.broadcast <- message:
	case <-h.ctx.Done():
	}
}

// SendToUser delivers a frame to the one connection bound to userID.
// Returns false if the user has no live binding (not an error - the
// durable record, if any, is the store's concern).
func (h *Hub) SendToUser(userID string, message *Message) bool {
	client, ok := h.registry.Lookup(userID)
	if !ok || client.IsClosed() {
		return false
	}
	if err := client.Send(message); err != nil {
		h.metrics.DroppedSends.Add(1)
		return false
	}
	h.metrics.MessagesSent.Add(1)
	return true
}

// Register adds a connection to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a connection from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// IsUserOnline checks if a user has a live authenticated connection
func (h *Hub) IsUserOnline(userID string) bool {
	return h.registry.IsUserOnline(userID)
}

// GetOnlineUsers returns a list of all online user IDs
func (h *Hub) GetOnlineUsers() []string {
	return h.registry.OnlineUsers()
}

// GetMetrics returns current WebSocket metrics
func (h *Hub) GetMetrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalConnections:   h.metrics.TotalConnections.Load(),
		ActiveConnections:  h.metrics.ActiveConnections.Load(),
		AuthenticatedUsers: int64(h.registry.Count()),
		MessagesReceived:   h.metrics.MessagesReceived.Load(),
		MessagesSent:       h.metrics.MessagesSent.Load(),
		Broadcasts:         h.metrics.Broadcasts.Load(),
		Errors:             h.metrics.Errors.Load(),
		DroppedSends:       h.metrics.DroppedSends.Load(),
	}
}

// MetricsSnapshot is a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	TotalConnections   int64 `json:"total_connections"`
	ActiveConnections  int64 `json:"active_connections"`
	AuthenticatedUsers int64 `json:"authenticated_users"`
	MessagesReceived   int64 `json:"messages_received"`
	MessagesSent       int64 `json:"messages_sent"`
	Broadcasts         int64 `json:"broadcasts"`
	Errors             int64 `json:"errors"`
	DroppedSends       int64 `json:"dropped_sends"`
}

// String implements Stringer for MetricsSnapshot
func (m MetricsSnapshot) String() string {
	return fmt.Sprintf(
		"connections=%d/%d users=%d messages=rx:%d/tx:%d broadcasts=%d errors=%d dropped=%d",
		m.ActiveConnections, m.TotalConnections, m.AuthenticatedUsers,
		m.MessagesReceived, m.MessagesSent, m.Broadcasts,
		m.Errors, m.DroppedSends,
	)
}

// Shutdown gracefully shuts down the hub. It waits for the event loop
// to finish closing connections, or until ctx expires.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.cancel()

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// shutdown closes all open connections
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	shutdownMsg := NewMessage(MessageTypeSystem, SystemPayload{
		Event: "server_shutdown",
	})
	data, _ := json.Marshal(shutdownMsg)

	for client := range h.connections {
		_ = client.SendRaw(data)
		client.Close()
	}

	h.connections = make(map[*Client]struct{})
	h.registry.clear()

	logger.Log.Info("Closed connections during shutdown",
		zap.Int64("count", h.metrics.ActiveConnections.Load()))
}

// GetRateLimitConfig returns the current rate limit configuration
func (h *Hub) GetRateLimitConfig() RateLimitConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rateLimitConfig
}

// SetRateLimitConfig updates the rate limiting configuration
func (h *Hub) SetRateLimitConfig(config RateLimitConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rateLimitConfig = config
}
