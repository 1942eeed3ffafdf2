package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pulseapp/pulse/internal/database"
	apperrors "github.com/pulseapp/pulse/internal/errors"
	"github.com/pulseapp/pulse/internal/logger"
	"github.com/pulseapp/pulse/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreatePostRequest is the post creation body
type CreatePostRequest struct {
	Body     string `json:"body" binding:"required,min=1,max=2000"`
	ImageURL string `json:"image_url"`
}

// CreatePost creates a new feed post and announces it to live clients
// POST /api/v1/posts
func (h *Handlers) CreatePost(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.BadRequest(err.Error()))
		return
	}

	post := models.Post{
		UserID:   userID,
		Body:     req.Body,
		ImageURL: req.ImageURL,
	}

	if err := database.DB.Create(&post).Error; err != nil {
		logger.Log.Error("Failed to create post", logger.WithUserID(userID), zap.Error(err))
		respondError(c, apperrors.InternalError("Failed to create post"))
		return
	}

	if err := database.DB.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("post_count", gorm.Expr("post_count + 1")).Error; err != nil {
		logger.Warn("Failed to increment post count", zap.Error(err))
	}

	// Load the author for the response and broadcast payloads
	if err := database.DB.Preload("User").First(&post, "id = ?", post.ID).Error; err != nil {
		logger.Warn("Failed to load post author", zap.Error(err))
	}

	if h.wsHandler != nil {
		h.wsHandler.BroadcastNewPost(&post)
	}

	c.JSON(http.StatusCreated, gin.H{"post": post})
}

// GetPost fetches a single post
// GET /api/v1/posts/:id
func (h *Handlers) GetPost(c *gin.Context) {
	postID := c.Param("id")

	var post models.Post
	if err := database.DB.Preload("User").First(&post, "id = ?", postID).Error; err != nil {
		respondError(c, apperrors.NotFound("post"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": post})
}

// DeletePost soft-deletes a post owned by the caller
// DELETE /api/v1/posts/:id
func (h *Handlers) DeletePost(c *gin.Context) {
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

	if post.UserID != userID {
		respondError(c, apperrors.Forbidden("you can only delete your own posts"))
		return
	}

	if err := database.DB.Delete(&post).Error; err != nil {
		logger.Log.Error("Failed to delete post", zap.String("post_id", postID), zap.Error(err))
		respondError(c, apperrors.InternalError("Failed to delete post"))
		return
	}

	database.DB.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("post_count", gorm.Expr("post_count - 1"))

	if h.wsHandler != nil {
		h.wsHandler.BroadcastPostDeleted(postID)
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// GetGlobalFeed returns the newest posts from all users
// GET /api/v1/feed/global
func (h *Handlers) GetGlobalFeed(c *gin.Context) {
	limit, offset := pagination(c, 20)

	var posts []models.Post
	err := database.DB.Preload("User").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		logger.Log.Error("Failed to load global feed", zap.Error(err))
		respondError(c, apperrors.InternalError("Failed to load feed"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":  posts,
		"limit":  limit,
		"offset": offset,
	})
}

// GetTimeline returns posts from the users the caller follows,
// including their own
// GET /api/v1/feed/timeline
func (h *Handlers) GetTimeline(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	limit, offset := pagination(c, 20)

	followees := database.DB.Model(&models.Follow{}).
		Select("followee_id").
		Where("follower_id = ?", userID)

	var posts []models.Post
	err := database.DB.Preload("User").
		Where("user_id IN (?) OR user_id = ?", followees, userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		logger.Log.Error("Failed to load timeline", logger.WithUserID(userID), zap.Error(err))
		respondError(c, apperrors.InternalError("Failed to load timeline"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":  posts,
		"limit":  limit,
		"offset": offset,
	})
}

// pagination reads limit/offset query params with bounds
func pagination(c *gin.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 || limit > 100 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
