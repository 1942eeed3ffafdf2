package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pulseapp/pulse/internal/cache"
	"github.com/pulseapp/pulse/internal/logger"
	"go.uber.org/zap"
)

// RedisRateLimitMiddleware enforces a fixed-window request budget per
// client IP, shared across instances through Redis. Without a Redis
// connection the middleware degrades to a pass-through.
func RedisRateLimitMiddleware(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		redisClient := cache.GetRedisClient()
		if redisClient == nil {
			logger.Log.Warn("Redis rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		key := fmt.Sprintf("rate_limit:%s", clientIP)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		val, err := redisClient.GetInt(ctx, key)
		if err != nil && err.Error() != "redis: nil" {
			// A broken limiter fails closed; open would invite abuse
			logger.Log.Error("Rate limit check failed, rejecting request",
				logger.WithIP(clientIP),
				zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
			c.Abort()
			return
		}

		if val >= int64(maxRequests) {
			logger.Log.Warn("Rate limit exceeded",
				logger.WithIP(clientIP),
				zap.Int("max_requests", maxRequests),
				zap.Int64("current_requests", val))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		newVal, err := redisClient.IncrBy(ctx, key, 1)
		if err != nil {
			logger.Log.Error("Rate limit increment failed, rejecting request",
				logger.WithIP(clientIP),
				zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
			c.Abort()
			return
		}

		// First hit in the window starts the clock
		if newVal == 1 {
			if err := redisClient.Expire(ctx, key, window); err != nil {
				logger.Log.Warn("Failed to set rate limit expiration",
					logger.WithIP(clientIP),
					zap.Error(err))
			}
		}

		c.Next()
	}
}
