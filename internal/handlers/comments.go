package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pulseapp/pulse/internal/database"
	apperrors "github.com/pulseapp/pulse/internal/errors"
	"github.com/pulseapp/pulse/internal/logger"
	"github.com/pulseapp/pulse/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateCommentRequest is the comment creation body
type CreateCommentRequest struct {
	Body string `json:"body" binding:"required,min=1,max=1000"`
}

// CreateComment adds a comment to a post and announces it
// POST /api/v1/posts/:id/comments
func (h *Handlers) CreateComment(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	postID := c.Param("id")

	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.BadRequest(err.Error()))
		return
	}

	var post models.Post
	if err := database.DB.First(&post, "id = ?", postID).Error; err != nil {
		respondError(c, apperrors.NotFound("post"))
		return
	}

	comment := models.Comment{
		PostID: postID,
		UserID: userID,
		Body:   req.Body,
	}

	if err := database.DB.Create(&comment).Error; err != nil {
		logger.Log.Error("Failed to create comment", logger.WithUserID(userID), zap.Error(err))
		respondError(c, apperrors.InternalError("Failed to create comment"))
		return
	}

	if err := database.DB.Model(&post).
		UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error; err != nil {
		logger.Warn("Failed to increment comment count", zap.Error(err))
	}

	// Load the commenter for response and broadcast payloads
	if err := database.DB.Preload("User").First(&comment, "id = ?", comment.ID).Error; err != nil {
		logger.Warn("Failed to load comment author", zap.Error(err))
	}

	if h.wsHandler != nil {
		h.wsHandler.BroadcastNewComment(&comment)
	}

	if post.UserID != userID {
		h.createNotification(post.UserID, models.NotificationTypeComment, userID, postID, "commented on your post")
	}

	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// GetComments lists comments on a post, oldest first
// GET /api/v1/posts/:id/comments
func (h *Handlers) GetComments(c *gin.Context) {
	postID := c.Param("id")
	limit, offset := pagination(c, 20)

	var comments []models.Comment
	err := database.DB.Preload("User").
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	if err != nil {
		respondError(c, apperrors.InternalError("Failed to load comments"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"comments": comments,
		"limit":    limit,
		"offset":   offset,
	})
}

// DeleteComment removes a comment owned by the caller
// DELETE /api/v1/comments/:id
func (h *Handlers) DeleteComment(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	commentID := c.Param("id")

	var comment models.Comment
	if err := database.DB.First(&comment, "id = ?", commentID).Error; err != nil {
		respondError(c, apperrors.NotFound("comment"))
		return
	}

	if comment.UserID != userID {
		respondError(c, apperrors.Forbidden("you can only delete your own comments"))
		return
	}

	if err := database.DB.Delete(&comment).Error; err != nil {
		respondError(c, apperrors.InternalError("Failed to delete comment"))
		return
	}

	database.DB.Model(&models.Post{}).Where("id = ?", comment.PostID).
		UpdateColumn("comment_count", gorm.Expr("comment_count - 1"))

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
