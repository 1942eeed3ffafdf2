// Package handlers contains the HTTP handlers for the Pulse API.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pulseapp/pulse/internal/auth"
	apperrors "github.com/pulseapp/pulse/internal/errors"
	"github.com/pulseapp/pulse/internal/store"
	"github.com/pulseapp/pulse/internal/websocket"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	auth      *auth.Service
	messages  *store.MessageStore
	wsHandler *websocket.Handler
}

// NewHandlers creates a new handlers instance
func NewHandlers(authService *auth.Service, messageStore *store.MessageStore) *Handlers {
	return &Handlers{
		auth:     authService,
		messages: messageStore,
	}
}

// SetWebSocketHandler sets the WebSocket handler for real-time fan-out
func (h *Handlers) SetWebSocketHandler(ws *websocket.Handler) {
	h.wsHandler = ws
}

// respondError writes an APIError with its mapped status code
func respondError(c *gin.Context, apiErr *apperrors.APIError) {
	c.JSON(apiErr.Status, gin.H{
		"error": apiErr.Message,
		"code":  apiErr.Code,
	})
}

// currentUserID reads the authenticated user id set by AuthMiddleware
func currentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return "", false
	}
	return userID, true
}
