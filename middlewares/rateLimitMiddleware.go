package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cosmoos/cosmo_backend/config"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window per-client counter kept in Redis.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
}

func NewRateLimiter(client *redis.Client, prefix string, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// NewRateLimiterFromEnv returns nil unless RATE_LIMIT_ENABLED is set and
// Redis is connected.
func NewRateLimiterFromEnv(prefix string) *RateLimiter {
	if !config.BoolFromEnv("RATE_LIMIT_ENABLED", false) || config.GetRedisDB() == nil {
		return nil
	}
	limit := int64(config.IntFromEnv("RATE_LIMIT_MAX_REQUESTS", 600))
	window := time.Duration(config.IntFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second
	return NewRateLimiter(config.GetRedisDB(), prefix, limit, window)
}

// Middleware fails open when Redis errors.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := "ratelimit:" + rl.prefix + ":" + c.ClientIP()

		count, err := rl.client.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}
		if count == 1 {
			rl.client.Expire(ctx, key, rl.window)
		}
		if count > rl.limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("rate limit exceeded; try again in %d seconds", int(rl.window.Seconds())),
			})
			return
		}
		c.Next()
	}
}
