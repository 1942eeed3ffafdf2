package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pulseapp/pulse/internal/database"
	apperrors "github.com/pulseapp/pulse/internal/errors"
	"github.com/pulseapp/pulse/internal/logger"
	"github.com/pulseapp/pulse/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LikePost records a like and fans out the updated count
// POST /api/v1/posts/:id/like
func (h *Handlers) LikePost(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	postID := c.Param("id")

	var post models.Post
	if err := database.DB.First(&post, "id = ?", postID).Error; err != nil {
		respondError(c, apperrors.NotFound("post"))
		return
	}

	var existing models.Like
	err := database.DB.Where("post_id = ? AND user_id = ?", postID, userID).First(&existing).Error
	if err == nil {
		respondError(c, apperrors.AlreadyExists("like"))
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, apperrors.InternalError("Failed to check like"))
		return
	}

	like := models.Like{PostID: postID, UserID: userID}
	if err := database.DB.Create(&like).Error; err != nil {
		logger.Log.Error("Failed to create like", logger.WithUserID(userID), zap.Error(err))
		respondError(c, apperrors.InternalError("Failed to like post"))
		return
	}

	database.DB.Model(&post).UpdateColumn("like_count", gorm.Expr("like_count + 1"))

	// Re-read after the atomic bump; concurrent likes make the
	// pre-update count stale
	likeCount := h.currentLikeCount(postID)

	if h.wsHandler != nil {
		h.wsHandler.BroadcastPostLiked(postID, userID, likeCount)
	}

	if post.UserID != userID {
		h.createNotification(post.UserID, models.NotificationTypeLike, userID, postID, "liked your post")
	}

	c.JSON(http.StatusOK, gin.H{"liked": true, "like_count": likeCount})
}

// UnlikePost removes a like and fans out the updated count
// DELETE /api/v1/posts/:id/like
func (h *Handlers) UnlikePost(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	postID := c.Param("id")

	var post models.Post
	if err := database.DB.First(&post, "id = ?", postID).Error; err != nil {
		respondError(c, apperrors.NotFound("post"))
		return
	}

	result := database.DB.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.Like{})
	if result.Error != nil {
		respondError(c, apperrors.InternalError("Failed to unlike post"))
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, apperrors.NotFound("like"))
		return
	}

	database.DB.Model(&post).UpdateColumn("like_count", gorm.Expr("like_count - 1"))

	likeCount := h.currentLikeCount(postID)

	if h.wsHandler != nil {
		h.wsHandler.BroadcastPostUnliked(postID, userID, likeCount)
	}

	c.JSON(http.StatusOK, gin.H{"liked": false, "like_count": likeCount})
}

// FollowUser creates a follower -> followee edge
// POST /api/v1/users/:id/follow
func (h *Handlers) FollowUser(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	targetID := c.Param("id")

	if targetID == userID {
		respondError(c, apperrors.BadRequest("you cannot follow yourself"))
		return
	}

	var target models.User
	if err := database.DB.First(&target, "id = ?", targetID).Error; err != nil {
		respondError(c, apperrors.NotFound("user"))
		return
	}

	var existing models.Follow
	err := database.DB.Where("follower_id = ? AND followee_id = ?", userID, targetID).First(&existing).Error
	if err == nil {
		respondError(c, apperrors.AlreadyExists("follow"))
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, apperrors.InternalError("Failed to check follow"))
		return
	}

	follow := models.Follow{FollowerID: userID, FolloweeID: targetID}
	if err := database.DB.Create(&follow).Error; err != nil {
		logger.Log.Error("Failed to create follow", logger.WithUserID(userID), zap.Error(err))
		respondError(c, apperrors.InternalError("Failed to follow user"))
		return
	}

	database.DB.Model(&models.User{}).Where("id = ?", targetID).
		UpdateColumn("follower_count", gorm.Expr("follower_count + 1"))
	database.DB.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("following_count", gorm.Expr("following_count + 1"))

	if h.wsHandler != nil {
		h.wsHandler.BroadcastNewFollow(&follow)
	}

	h.createNotification(targetID, models.NotificationTypeFollow, userID, "", "started following you")

	c.JSON(http.StatusOK, gin.H{"following": true})
}

// UnfollowUser removes a follower -> followee edge
// DELETE /api/v1/users/:id/follow
func (h *Handlers) UnfollowUser(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	targetID := c.Param("id")

	result := database.DB.Where("follower_id = ? AND followee_id = ?", userID, targetID).
		Delete(&models.Follow{})
	if result.Error != nil {
		respondError(c, apperrors.InternalError("Failed to unfollow user"))
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, apperrors.NotFound("follow"))
		return
	}

	database.DB.Model(&models.User{}).Where("id = ?", targetID).
		UpdateColumn("follower_count", gorm.Expr("follower_count - 1"))
	database.DB.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("following_count", gorm.Expr("following_count - 1"))

	if h.wsHandler != nil {
		h.wsHandler.BroadcastUnfollow(userID, targetID)
	}

	c.JSON(http.StatusOK, gin.H{"following": false})
}

// GetUserProfile returns a user's public profile
// GET /api/v1/users/:id
func (h *Handlers) GetUserProfile(c *gin.Context) {
	targetID := c.Param("id")

	var user models.User
	if err := database.DB.First(&user, "id = ?", targetID).Error; err != nil {
		respondError(c, apperrors.NotFound("user"))
		return
	}

	online := false
	if h.wsHandler != nil {
		online = h.wsHandler.GetHub().IsUserOnline(targetID)
	}

	c.JSON(http.StatusOK, gin.H{
		"user":   user,
		"online": online,
	})
}

// currentLikeCount reads the post's stored like_count. Used after a
// counter bump so responses and broadcasts carry the fresh value.
func (h *Handlers) currentLikeCount(postID string) int {
	var post models.Post
	if err := database.DB.Select("like_count").First(&post, "id = ?", postID).Error; err != nil {
		logger.Warn("Failed to re-read like count",
			zap.String("post", postID),
			zap.Error(err))
	}
	return post.LikeCount
}

// createNotification persists a notification and pushes it plus the
// updated unread count to the recipient's live connection
func (h *Handlers) createNotification(recipientID, notifType, actorID, postID, body string) {
	notification := models.Notification{
		UserID:  recipientID,
		Type:    notifType,
		ActorID: actorID,
		PostID:  postID,
		Body:    body,
	}

	if err := database.DB.Create(&notification).Error; err != nil {
		logger.Warn("Failed to create notification",
			zap.String("recipient", recipientID),
			zap.Error(err))
		return
	}

	if h.wsHandler == nil {
		return
	}

	h.wsHandler.NotifyNotification(recipientID, &notification)

	var unread int64
	if err := database.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", recipientID, false).
		Count(&unread).Error; err == nil {
		h.wsHandler.NotifyNotificationCount(recipientID, unread)
	}
}
