package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pulseapp/pulse/internal/auth"
	"github.com/pulseapp/pulse/internal/database"
	"github.com/pulseapp/pulse/internal/logger"
	"github.com/pulseapp/pulse/internal/models"
	"github.com/pulseapp/pulse/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Log = zap.NewNop()
	logger.SugaredLog = logger.Log.Sugar()
	os.Exit(m.Run())
}

func setupTest(t *testing.T) (*Handlers, *auth.Service) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Post{}, &models.Like{}, &models.Follow{},
		&models.Comment{}, &models.Conversation{}, &models.Message{},
		&models.Notification{},
	))

	database.DB = db

	t.Cleanup(func() {
		for _, table := range []string{
			"notifications", "messages", "conversations", "comments",
			"likes", "follows", "posts", "users",
		} {
			db.Exec("DELETE FROM " + table)
		}
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	authService := auth.NewService([]byte("test-secret"), time.Hour)
	return NewHandlers(authService, store.NewMessageStore(db)), authService
}

func registerUser(t *testing.T, authService *auth.Service, username string) (*models.User, string) {
	t.Helper()

	resp, err := authService.RegisterNativeUser(auth.RegisterRequest{
		Email:       username + "@example.com",
		Username:    username,
		Password:    "password123",
		DisplayName: username,
	})
	require.NoError(t, err)
	return &resp.User, resp.Token
}

func buildRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	api := r.Group("/api/v1")

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.GET("/auth/me", h.AuthMiddleware(), h.Me)

	api.GET("/feed/global", h.GetGlobalFeed)
	api.GET("/feed/timeline", h.AuthMiddleware(), h.GetTimeline)

	api.POST("/posts", h.AuthMiddleware(), h.CreatePost)
	api.GET("/posts/:id", h.GetPost)
	api.DELETE("/posts/:id", h.AuthMiddleware(), h.DeletePost)
	api.POST("/posts/:id/like", h.AuthMiddleware(), h.LikePost)
	api.DELETE("/posts/:id/like", h.AuthMiddleware(), h.UnlikePost)
	api.POST("/posts/:id/comments", h.AuthMiddleware(), h.CreateComment)
	api.GET("/posts/:id/comments", h.GetComments)

	api.POST("/users/:id/follow", h.AuthMiddleware(), h.FollowUser)
	api.DELETE("/users/:id/follow", h.AuthMiddleware(), h.UnfollowUser)
	api.GET("/users/:id", h.GetUserProfile)

	api.GET("/messages/conversations", h.AuthMiddleware(), h.GetConversations)
	api.GET("/messages/conversations/:id", h.AuthMiddleware(), h.GetConversationMessages)

	api.GET("/notifications", h.AuthMiddleware(), h.GetNotifications)
	api.POST("/notifications/:id/read", h.AuthMiddleware(), h.MarkNotificationRead)

	return r
}

func doJSON(r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterLoginMe(t *testing.T) {
	h, _ := setupTest(t)
	r := buildRouter(h)

	w := doJSON(r, "POST", "/api/v1/auth/register", "", gin.H{
		"email":        "carol@example.com",
		"username":     "carol",
		"password":     "password123",
		"display_name": "Carol",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var registered struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &registered))
	assert.NotEmpty(t, registered.Token)

	// Duplicate email is rejected
	w = doJSON(r, "POST", "/api/v1/auth/register", "", gin.H{
		"email":        "carol@example.com",
		"username":     "carol2",
		"password":     "password123",
		"display_name": "Carol",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, "POST", "/api/v1/auth/login", "", gin.H{
		"email":    "carol@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// Wrong password gets a generic unauthorized
	w = doJSON(r, "POST", "/api/v1/auth/login", "", gin.H{
		"email":    "carol@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, "GET", "/api/v1/auth/me", registered.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "carol")

	w = doJSON(r, "GET", "/api/v1/auth/me", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreatePostAndFeeds(t *testing.T) {
	h, authService := setupTest(t)
	r := buildRouter(h)

	_, aliceToken := registerUser(t, authService, "alice")
	bob, bobToken := registerUser(t, authService, "bob")

	w := doJSON(r, "POST", "/api/v1/posts", bobToken, gin.H{"body": "hello world"})
	require.Equal(t, http.StatusCreated, w.Code)

	// Unauthenticated creation is rejected
	w = doJSON(r, "POST", "/api/v1/posts", "", gin.H{"body": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, "GET", "/api/v1/feed/global", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hello world")

	// Alice's timeline is empty until she follows bob
	w = doJSON(r, "GET", "/api/v1/feed/timeline", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "hello world")

	w = doJSON(r, "POST", fmt.Sprintf("/api/v1/users/%s/follow", bob.ID), aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, "GET", "/api/v1/feed/timeline", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hello world")
}

func TestDeletePostOwnership(t *testing.T) {
	h, authService := setupTest(t)
	r := buildRouter(h)

	_, aliceToken := registerUser(t, authService, "alice")
	_, bobToken := registerUser(t, authService, "bob")

	w := doJSON(r, "POST", "/api/v1/posts", aliceToken, gin.H{"body": "mine"})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Post models.Post `json:"post"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// Another user cannot delete it
	w = doJSON(r, "DELETE", "/api/v1/posts/"+created.Post.ID, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, "DELETE", "/api/v1/posts/"+created.Post.ID, aliceToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, "GET", "/api/v1/posts/"+created.Post.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLikeUnlikeWithNotification(t *testing.T) {
	h, authService := setupTest(t)
	r := buildRouter(h)

	alice, aliceToken := registerUser(t, authService, "alice")
	_, bobToken := registerUser(t, authService, "bob")

	w := doJSON(r, "POST", "/api/v1/posts", aliceToken, gin.H{"body": "like me"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Post models.Post `json:"post"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(r, "POST", "/api/v1/posts/"+created.Post.ID+"/like", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Double-like is a conflict
	w = doJSON(r, "POST", "/api/v1/posts/"+created.Post.ID+"/like", bobToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// The author got a like notification
	var notifications []models.Notification
	database.DB.Where("user_id = ?", alice.ID).Find(&notifications)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationTypeLike, notifications[0].Type)

	w = doJSON(r, "DELETE", "/api/v1/posts/"+created.Post.ID+"/like", bobToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Unliking twice fails
	w = doJSON(r, "DELETE", "/api/v1/posts/"+created.Post.ID+"/like", bobToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLikeCountReflectsInterleavedLikes(t *testing.T) {
	h, authService := setupTest(t)
	r := buildRouter(h)

	_, aliceToken := registerUser(t, authService, "alice")
	_, bobToken := registerUser(t, authService, "bob")

	w := doJSON(r, "POST", "/api/v1/posts", aliceToken, gin.H{"body": "popular"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Post models.Post `json:"post"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// Simulate another request's like landing between this handler's
	// initial read and its counter bump
	err := database.DB.Callback().Create().After("gorm:create").
		Register("interleaved_like", func(tx *gorm.DB) {
			if _, isLike := tx.Statement.Dest.(*models.Like); !isLike {
				return
			}
			tx.Session(&gorm.Session{NewDB: true}).
				Model(&models.Post{}).Where("id = ?", created.Post.ID).
				UpdateColumn("like_count", gorm.Expr("like_count + 1"))
		})
	require.NoError(t, err)
	t.Cleanup(func() {
		database.DB.Callback().Create().Remove("interleaved_like")
	})

	w = doJSON(r, "POST", "/api/v1/posts/"+created.Post.ID+"/like", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var post models.Post
	require.NoError(t, database.DB.First(&post, "id = ?", created.Post.ID).Error)
	assert.Equal(t, 2, post.LikeCount)

	// The response must carry the stored count, not a stale read plus one
	var resp struct {
		LikeCount int `json:"like_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, post.LikeCount, resp.LikeCount)
}

func TestFollowRules(t *testing.T) {
	h, authService := setupTest(t)
	r := buildRouter(h)

	alice, aliceToken := registerUser(t, authService, "alice")
	bob, _ := registerUser(t, authService, "bob")

	// Self-follow is rejected
	w := doJSON(r, "POST", fmt.Sprintf("/api/v1/users/%s/follow", alice.ID), aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, "POST", fmt.Sprintf("/api/v1/users/%s/follow", bob.ID), aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Duplicate follow is a conflict
	w = doJSON(r, "POST", fmt.Sprintf("/api/v1/users/%s/follow", bob.ID), aliceToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	var updated models.User
	require.NoError(t, database.DB.First(&updated, "id = ?", bob.ID).Error)
	assert.Equal(t, 1, updated.FollowerCount)

	w = doJSON(r, "DELETE", fmt.Sprintf("/api/v1/users/%s/follow", bob.ID), aliceToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCommentsFlow(t *testing.T) {
	h, authService := setupTest(t)
	r := buildRouter(h)

	_, aliceToken := registerUser(t, authService, "alice")
	_, bobToken := registerUser(t, authService, "bob")

	w := doJSON(r, "POST", "/api/v1/posts", aliceToken, gin.H{"body": "discuss"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Post models.Post `json:"post"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(r, "POST", "/api/v1/posts/"+created.Post.ID+"/comments", bobToken, gin.H{"body": "nice post"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(r, "GET", "/api/v1/posts/"+created.Post.ID+"/comments", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "nice post")

	var post models.Post
	require.NoError(t, database.DB.First(&post, "id = ?", created.Post.ID).Error)
	assert.Equal(t, 1, post.CommentCount)
}

func TestMessageHistoryEndpoints(t *testing.T) {
	h, authService := setupTest(t)
	r := buildRouter(h)

	alice, aliceToken := registerUser(t, authService, "alice")
	bob, _ := registerUser(t, authService, "bob")

	messageStore := store.NewMessageStore(database.DB)
	saved, err := messageStore.SaveMessage(t.Context(), bob.ID, alice.ID, "", "hey alice", models.MessageTypeText)
	require.NoError(t, err)

	w := doJSON(r, "GET", "/api/v1/messages/conversations", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), saved.ConversationID)

	w = doJSON(r, "GET", "/api/v1/messages/conversations/"+saved.ConversationID, aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hey alice")
}

func TestNotificationEndpoints(t *testing.T) {
	h, authService := setupTest(t)
	r := buildRouter(h)

	alice, aliceToken := registerUser(t, authService, "alice")

	notification := models.Notification{
		UserID:  alice.ID,
		Type:    models.NotificationTypeFollow,
		ActorID: "someone",
		Body:    "started following you",
	}
	require.NoError(t, database.DB.Create(&notification).Error)

	w := doJSON(r, "GET", "/api/v1/notifications", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"unread_count":1`)

	w = doJSON(r, "POST", "/api/v1/notifications/"+notification.ID+"/read", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, "GET", "/api/v1/notifications", aliceToken, nil)
	assert.Contains(t, w.Body.String(), `"unread_count":0`)
}
