package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pulseapp/pulse/internal/database"
	apperrors "github.com/pulseapp/pulse/internal/errors"
	"github.com/pulseapp/pulse/internal/models"
)

// GetNotifications lists the caller's notifications, newest first
// GET /api/v1/notifications
func (h *Handlers) GetNotifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	limit, offset := pagination(c, 20)

	var notifications []models.Notification
	err := database.DB.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error
	if err != nil {
		respondError(c, apperrors.InternalError("Failed to load notifications"))
		return
	}

	var unread int64
	database.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&unread)

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"unread_count":  unread,
		"limit":         limit,
		"offset":        offset,
	})
}

// MarkNotificationRead marks one notification as read
// POST /api/v1/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	notificationID := c.Param("id")

	result := database.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("is_read", true)
	if result.Error != nil {
		respondError(c, apperrors.InternalError("Failed to mark notification read"))
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, apperrors.NotFound("notification"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"read": true})
}

// MarkAllNotificationsRead marks every unread notification as read
// POST /api/v1/notifications/read-all
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	err := database.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
	if err != nil {
		respondError(c, apperrors.InternalError("Failed to mark notifications read"))
		return
	}

	if h.wsHandler != nil {
		h.wsHandler.NotifyNotificationCount(userID, 0)
	}

	c.JSON(http.StatusOK, gin.H{"read": true})
}
