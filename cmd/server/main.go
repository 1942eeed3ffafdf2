package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pulseapp/pulse/internal/auth"
	"github.com/pulseapp/pulse/internal/cache"
	"github.com/pulseapp/pulse/internal/config"
	"github.com/pulseapp/pulse/internal/database"
	"github.com/pulseapp/pulse/internal/handlers"
	"github.com/pulseapp/pulse/internal/logger"
	"github.com/pulseapp/pulse/internal/metrics"
	"github.com/pulseapp/pulse/internal/middleware"
	"github.com/pulseapp/pulse/internal/store"
	"github.com/pulseapp/pulse/internal/telemetry"
	"github.com/pulseapp/pulse/internal/websocket"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg := config.Load()

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("Pulse server starting", zap.String("environment", cfg.Environment))

	if len(cfg.JWTSecret) == 0 {
		logger.Log.Fatal("JWT_SECRET environment variable is required")
	}

	if err := database.Initialize(); err != nil {
		logger.FatalWithFields("Failed to initialize database", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	// Redis is optional; rate limiting degrades to pass-through without it
	redisClient, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
	if err != nil {
		logger.Log.Warn("Redis unavailable, distributed rate limiting disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
	}

	tracerProvider, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  "pulse-api",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Enabled:      cfg.TracingEnabled,
		SamplingRate: cfg.TraceSampleRate,
	})
	if err != nil {
		logger.Log.Warn("Failed to initialize tracing", zap.Error(err))
	}

	authService := auth.NewService(cfg.JWTSecret, cfg.TokenTTL)
	messageStore := store.NewMessageStore(database.DB)

	// Real-time layer: hub event loop, frame router, HTTP-facing handler
	wsHub := websocket.NewHub()
	websocket.NewRouter(wsHub, authService, messageStore)
	wsHandler := websocket.NewHandler(wsHub)
	go wsHub.Run()

	h := handlers.NewHandlers(authService, messageStore)
	h.SetWebSocketHandler(wsHandler)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.GinLoggerMiddleware())
	router.Use(metrics.GinMiddleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "https://pulseapp.dev"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if cfg.TracingEnabled {
		router.Use(otelgin.Middleware("pulse-api"))
	}

	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbState := "up"
		if err := database.Health(); err != nil {
			status = http.StatusServiceUnavailable
			dbState = "down"
		}
		c.JSON(status, gin.H{
			"status":   dbState,
			"database": dbState,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket upgrade; authentication happens in-band after connect
	router.GET("/ws", wsHandler.HandleWebSocket)

	api := router.Group("/api/v1")
	{
		authRoutes := api.Group("/auth")
		authRoutes.Use(middleware.RedisRateLimitMiddleware(20, time.Minute))
		{
			authRoutes.POST("/register", h.Register)
			authRoutes.POST("/login", h.Login)
			authRoutes.GET("/me", h.AuthMiddleware(), h.Me)
		}

		feed := api.Group("/feed")
		{
			feed.GET("/global", h.GetGlobalFeed)
			feed.GET("/timeline", h.AuthMiddleware(), h.GetTimeline)
		}

		posts := api.Group("/posts")
		{
			posts.GET("/:id", h.GetPost)
			posts.GET("/:id/comments", h.GetComments)

			authed := posts.Group("")
			authed.Use(h.AuthMiddleware())
			{
				authed.POST("", h.CreatePost)
				authed.DELETE("/:id", h.DeletePost)
				authed.POST("/:id/like", h.LikePost)
				authed.DELETE("/:id/like", h.UnlikePost)
				authed.POST("/:id/comments", h.CreateComment)
			}
		}

		api.DELETE("/comments/:id", h.AuthMiddleware(), h.DeleteComment)

		users := api.Group("/users")
		{
			users.GET("/:id", h.GetUserProfile)
			users.POST("/:id/follow", h.AuthMiddleware(), h.FollowUser)
			users.DELETE("/:id/follow", h.AuthMiddleware(), h.UnfollowUser)
		}

		messages := api.Group("/messages")
		messages.Use(h.AuthMiddleware())
		{
			messages.GET("/conversations", h.GetConversations)
			messages.GET("/conversations/:id", h.GetConversationMessages)
			messages.POST("/conversations/:id/read", h.MarkConversationRead)
		}

		notifications := api.Group("/notifications")
		notifications.Use(h.AuthMiddleware())
		{
			notifications.GET("", h.GetNotifications)
			notifications.POST("/:id/read", h.MarkNotificationRead)
			notifications.POST("/read-all", h.MarkAllNotificationsRead)
		}

		ws := api.Group("/ws")
		{
			ws.POST("/online", h.AuthMiddleware(), wsHandler.HandleOnlineStatus)
			ws.GET("/metrics", h.AuthMiddleware(), h.AdminMiddleware(), wsHandler.HandleMetrics)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Log.Info("HTTP server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithFields("HTTP server failed", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := wsHandler.Shutdown(ctx); err != nil {
		logger.Log.Warn("WebSocket shutdown incomplete", zap.Error(err))
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			logger.Log.Warn("Tracer shutdown incomplete", zap.Error(err))
		}
	}

	logger.Log.Info("Server stopped")
}
