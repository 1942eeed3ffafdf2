package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pulseapp/pulse/internal/auth"
	apperrors "github.com/pulseapp/pulse/internal/errors"
	"github.com/pulseapp/pulse/internal/logger"
	"github.com/pulseapp/pulse/internal/models"
	"go.uber.org/zap"
)

// Register creates a new account with email/password
// POST /api/v1/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.BadRequest(err.Error()))
		return
	}

	resp, err := h.auth.RegisterNativeUser(req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			respondError(c, apperrors.AlreadyExists("account with this email"))
		case errors.Is(err, auth.ErrUsernameExists):
			respondError(c, apperrors.AlreadyExists("username"))
		default:
			logger.Log.Error("Registration failed", zap.Error(err))
			respondError(c, apperrors.InternalError("Failed to create account"))
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login authenticates with email/password
// POST /api/v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.BadRequest(err.Error()))
		return
	}

	resp, err := h.auth.LoginNativeUser(req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrInvalidCredentials):
			respondError(c, apperrors.Unauthorized("invalid email or password"))
		default:
			logger.Log.Error("Login failed", zap.Error(err))
			respondError(c, apperrors.InternalError("Failed to log in"))
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Me returns the authenticated user's profile
// GET /api/v1/auth/me
func (h *Handlers) Me(c *gin.Context) {
	user, exists := c.Get("user")
	if !exists {
		respondError(c, apperrors.Unauthorized("not authenticated"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// AuthMiddleware validates the bearer token and loads the user onto the
// request context
func (h *Handlers) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			respondError(c, apperrors.Unauthorized("no token provided"))
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")

		user, err := h.auth.ValidateToken(tokenString)
		if err != nil {
			respondError(c, apperrors.Unauthorized("invalid or expired token"))
			c.Abort()
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Next()
	}
}

// AdminMiddleware restricts a route to admin accounts. Must run after
// AuthMiddleware.
func (h *Handlers) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		isAdmin := false
		if user, exists := c.Get("user"); exists {
			if u, ok := user.(*models.User); ok {
				isAdmin = u.IsAdmin
			}
		}
		if !isAdmin {
			respondError(c, apperrors.Forbidden("admin access required"))
			c.Abort()
			return
		}
		c.Next()
	}
}
