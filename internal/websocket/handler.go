package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/pulseapp/pulse/internal/logger"
	"github.com/pulseapp/pulse/internal/models"
	"go.uber.org/zap"
)

// Handler handles WebSocket HTTP upgrade requests and exposes the
// broadcast surface the HTTP handlers call after completing a mutation.
type Handler struct {
	hub *Hub
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// HandleWebSocket upgrades the HTTP connection and runs the client
// pumps. Connections are accepted unauthenticated; identity is proven
// in-band with an authenticate frame, distinct from the HTTP auth path.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		// Browser clients connect from the app origin; tighten in production
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionContextTakeover,
	})
	if err != nil {
		logger.Log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn)
	client.RemoteAddr = c.ClientIP()
	client.UserAgent = c.GetHeader("User-Agent")

	h.hub.Register(client)

	_ = client.Send(NewMessage(MessageTypeSystem, SystemPayload{
		Event: "connected",
		Data: map[string]interface{}{
			"server_time": time.Now().UTC().UnixMilli(),
		},
	}))

	go client.WritePump()
	client.ReadPump() // blocks until the client disconnects
}

// HandleMetrics returns WebSocket metrics (for monitoring)
func (h *Handler) HandleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"websocket":    h.hub.GetMetrics(),
		"online_users": h.hub.GetOnlineUsers(),
		"timestamp":    time.Now().UTC(),
	})
}

// HandleOnlineStatus checks if specific users are online
func (h *Handler) HandleOnlineStatus(c *gin.Context) {
	var req struct {
		UserIDs []string `json:"user_ids" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	statuses := make(map[string]bool)
	for _, userID := range req.UserIDs {
		statuses[userID] = h.hub.IsUserOnline(userID)
	}

	c.JSON(http.StatusOK, gin.H{
		"statuses":  statuses,
		"timestamp": time.Now().UTC(),
	})
}

// Broadcast surface for the HTTP layer. Payloads are finalized by the
// caller; each call serializes once and fans out to every authenticated
// connection.

// BroadcastNewPost announces a freshly created post
func (h *Handler) BroadcastNewPost(post *models.Post) {
	h.hub.Broadcast(NewMessage(MessageTypeNewPost, post))
}

// BroadcastPostDeleted announces a post removal
func (h *Handler) BroadcastPostDeleted(postID string) {
	h.hub.Broadcast(NewMessage(MessageTypePostDeleted, gin.H{"post_id": postID}))
}

// BroadcastPostLiked announces a like with the updated count
func (h *Handler) BroadcastPostLiked(postID, userID string, likeCount int) {
	h.hub.Broadcast(NewMessage(MessageTypePostLiked, gin.H{
		"post_id":    postID,
		"user_id":    userID,
		"like_count": likeCount,
	}))
}

// BroadcastPostUnliked announces an unlike with the updated count
func (h *Handler) BroadcastPostUnliked(postID, userID string, likeCount int) {
	h.hub.Broadcast(NewMessage(MessageTypePostUnliked, gin.H{
		"post_id":    postID,
		"user_id":    userID,
		"like_count": likeCount,
	}))
}

// BroadcastNewComment announces a new comment
func (h *Handler) BroadcastNewComment(comment *models.Comment) {
	h.hub.Broadcast(NewMessage(MessageTypeNewComment, comment))
}

// BroadcastNewFollow announces a new follow edge
func (h *Handler) BroadcastNewFollow(follow *models.Follow) {
	h.hub.Broadcast(NewMessage(MessageTypeNewFollow, follow))
}

// BroadcastUnfollow announces a removed follow edge
func (h *Handler) BroadcastUnfollow(followerID, followeeID string) {
	h.hub.Broadcast(NewMessage(MessageTypeUnfollow, gin.H{
		"follower_id": followerID,
		"followee_id": followeeID,
	}))
}

// NotifyNotification pushes a notification to one user's live connection
func (h *Handler) NotifyNotification(userID string, notification *models.Notification) {
	h.hub.SendToUser(userID, NewMessage(MessageTypeNotification, notification))
}

// NotifyNotificationCount pushes an updated unread count to one user
func (h *Handler) NotifyNotificationCount(userID string, unread int64) {
	h.hub.SendToUser(userID, NewMessage(MessageTypeNotificationCount, NotificationCountPayload{
		UnreadCount: unread,
	}))
}

// Shutdown gracefully shuts down the WebSocket handler
func (h *Handler) Shutdown(ctx context.Context) error {
	return h.hub.Shutdown(ctx)
}

// GetHub returns the hub for external access
func (h *Handler) GetHub() *Hub {
	return h.hub
}
