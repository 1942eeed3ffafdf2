package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/pulseapp/pulse/internal/errors"
	"github.com/pulseapp/pulse/internal/logger"
	"go.uber.org/zap"
)

// Direct-message history endpoints. Sending happens over the WebSocket;
// these serve the durable records an offline recipient catches up from.

// GetConversations lists the caller's conversations, most recent first
// GET /api/v1/messages/conversations
func (h *Handlers) GetConversations(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	conversations, err := h.messages.UserConversations(c.Request.Context(), userID)
	if err != nil {
		logger.Log.Error("Failed to load conversations", logger.WithUserID(userID), zap.Error(err))
		respondError(c, apperrors.InternalError("Failed to load conversations"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// GetConversationMessages returns a conversation's message history,
// newest first
// GET /api/v1/messages/conversations/:id
func (h *Handlers) GetConversationMessages(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	conversationID := c.Param("id")
	limit, offset := pagination(c, 50)

	messages, err := h.messages.ConversationMessages(c.Request.Context(), conversationID, limit, offset)
	if err != nil {
		logger.Log.Error("Failed to load messages", logger.WithUserID(userID), zap.Error(err))
		respondError(c, apperrors.InternalError("Failed to load messages"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"limit":    limit,
		"offset":   offset,
	})
}

// MarkConversationRead marks all messages addressed to the caller in
// the conversation as read
// POST /api/v1/messages/conversations/:id/read
func (h *Handlers) MarkConversationRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	conversationID := c.Param("id")

	if err := h.messages.MarkConversationRead(c.Request.Context(), conversationID, userID); err != nil {
		respondError(c, apperrors.InternalError("Failed to mark conversation read"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"read": true})
}
