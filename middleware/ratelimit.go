package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/oceanvince/mangxia/config"
	"github.com/oceanvince/mangxia/util"
)

const (
	defaultRateLimit  = 10
	defaultRateWindow = time.Minute
)

// RateLimitConfig holds configuration for rate limiting. When KeyParam names a
// route parameter its value is part of the key, so limits apply per resource and client.
type RateLimitConfig struct {
	Limit    int
	Window   time.Duration
	KeyParam string
	Logger   *zerolog.Logger
}

// RateLimiter creates a rate limiting middleware backed by Redis. Requests are
// allowed when Redis is disabled or failing.
func RateLimiter(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limit <= 0 {
		cfg.Limit = defaultRateLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultRateWindow
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return func(c *gin.Context) {
		key := rateLimitKey(c.FullPath(), c.Param(cfg.KeyParam), c.ClientIP())

		allowed, err := checkRateLimit(c.Request.Context(), key, cfg.Limit, cfg.Window)
		if err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("rate limit check failed, allowing request")
			c.Next()
			return
		}

		if !allowed {
			logger.Warn().Str("key", key).Str("client_ip", c.ClientIP()).Msg("rate limit exceeded")
			util.CallTooManyRequests(c, util.APIErrorParams{
				Msg: "Too many requests. Please try again later.",
				Err: errors.New("rate limit exceeded"),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func rateLimitKey(route, resource, clientIP string) string {
	if resource == "" {
		return fmt.Sprintf("ratelimit:%s:%s", route, clientIP)
	}
	return fmt.Sprintf("ratelimit:%s:%s:%s", route, resource, clientIP)
}

// checkRateLimit checks if a request is within rate limits
// Returns true if allowed, false if rate limit exceeded
func checkRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return true, nil
	}

	pipe := rdb.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)

	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	return incrCmd.Val() <= int64(limit), nil
}

// ResetRateLimit clears the counter of one client for one route and resource.
func ResetRateLimit(ctx context.Context, route, resource, clientIP string) error {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return fmt.Errorf("redis not available")
	}
	return rdb.Del(ctx, rateLimitKey(route, resource, clientIP)).Err()
}
