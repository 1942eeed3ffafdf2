package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/pulseapp/pulse/internal/logger"
	"github.com/pulseapp/pulse/internal/models"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a frame to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next frame from the peer
	readWait = 60 * time.Second

	// Send pings to peer with this period (must be less than readWait)
	pingPeriod = (readWait * 9) / 10

	// Maximum frame size allowed from peer
	maxMessageSize = 64 * 1024 // 64KB

	// Send buffer size
	sendBufferSize = 256
)

// Client represents a single WebSocket connection. It is accepted
// unauthenticated; identity is bound only after a successful
// authenticate frame.
type Client struct {
	// The websocket connection
	conn *websocket.Conn

	// Hub reference
	hub *Hub

	// Buffered channel of outbound serialized frames
	send chan []byte

	// Connection metadata
	ConnectedAt time.Time
	RemoteAddr  string
	UserAgent   string

	// Rate limiting
	rateLimiter *RateLimiter

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc

	// Mutex for connection state
	mu sync.RWMutex

	// Authentication state. UNAUTHENTICATED until an authenticate frame
	// succeeds; never transitions back for the connection's lifetime.
	authenticated bool
	userID        string
	username      string

	// Closed flag
	closed bool
}

// RateLimiter implements a simple token bucket rate limiter
type RateLimiter struct {
	tokens    float64
	maxTokens float64
	refill    float64
	lastTime  time.Time
	mu        sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxPerSecond int, burst int) *RateLimiter {
	return &RateLimiter{
		tokens:    float64(burst),
		maxTokens: float64(burst),
		refill:    float64(maxPerSecond),
		lastTime:  time.Now(),
	}
}

// Allow checks if an action is allowed and consumes a token
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastTime).Seconds()
	r.lastTime = now

	r.tokens += elapsed * r.refill
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// NewClient creates a new unauthenticated Client
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	config := hub.GetRateLimitConfig()

	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		ConnectedAt: time.Now(),
		rateLimiter: NewRateLimiter(config.MaxMessagesPerSecond, config.BurstSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// IsAuthenticated reports whether the connection has proven identity
func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

// Identity returns the bound user identity, if authenticated
func (c *Client) Identity() (userID, username string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID, c.username, c.authenticated
}

// setIdentity transitions the connection to AUTHENTICATED.
// Re-authentication simply refreshes the identity; there is no
// transition back to UNAUTHENTICATED.
func (c *Client) setIdentity(user *models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticated = true
	c.userID = user.ID
	c.username = user.Username
}

// ReadPump pumps frames from the WebSocket connection into the router.
// Runs in a per-connection goroutine; frames are processed one at a
// time in arrival order.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		readCtx, readCancel := context.WithTimeout(c.ctx, readWait)
		_, data, err := c.conn.Read(readCtx)
		readCancel()

		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				logger.Log.Info("Client disconnected normally", zap.String("user", c.userID))
			} else if c.ctx.Err() == nil {
				logger.Log.Warn("Read error for client", zap.String("user", c.userID), zap.Error(err))
				c.hub.metrics.Errors.Add(1)
			}
			return
		}

		if !c.rateLimiter.Allow() {
			c.SendError("rate_limited", "Too many frames, please slow down")
			c.hub.metrics.Errors.Add(1)
			continue
		}

		c.hub.metrics.MessagesReceived.Add(1)

		// A malformed frame earns an error response, never a close
		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			logger.Log.Warn("WebSocket JSON parse error",
				zap.String("user", c.userID),
				zap.Error(err))
			c.SendError("invalid_json", "Failed to parse frame")
			continue
		}

		c.hub.router.HandleFrame(c, &message)
	}
}

// WritePump pumps serialized frames from the send channel to the
// WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			// Best effort: flush frames queued before the teardown
			// (the shutdown notice in particular), then close.
			c.flushPending()
			c.conn.Close(websocket.StatusGoingAway, "server shutdown")
			return

		case message := <-c.send:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()

			if err != nil {
				logger.Log.Warn("Write error for client", zap.String("user", c.userID), zap.Error(err))
				c.hub.metrics.Errors.Add(1)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()

			if err != nil {
				return
			}
		}
	}
}

// flushPending writes whatever is already buffered on the send channel.
// Called once on the way out of WritePump; uses a fresh deadline since
// the client context is already cancelled.
func (c *Client) flushPending() {
	for {
		select {
		case message := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}
		default:
			return
		}
	}
}

// Send serializes a frame and queues it for delivery to this client
func (c *Client) Send(message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return c.SendRaw(data)
}

// SendRaw queues an already-serialized frame for delivery. Broadcasts
// use this so one serialization serves every recipient.
func (c *Client) SendRaw(data []byte) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return fmt.Errorf("client connection closed")
	}
	c.mu.RUnlock()

	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return fmt.Errorf("client shutting down")
	default:
		return fmt.Errorf("send buffer full")
	}
}

// SendError sends an error frame to the client
func (c *Client) SendError(code, message string) {
	_ = c.Send(NewErrorMessage(code, message))
}

// Close closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	c.cancel()

	if c.conn != nil {
		c.conn.Close(websocket.StatusNormalClosure, "closing")
	}
}

// IsClosed returns whether the client connection is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
