package api

import (
	"fmt"
	"net/http"
	"strconv"

	logx "github.com/blueledger/tally-go/internal/tally/log"
	"github.com/blueledger/tally-go/internal/tally/utils"
	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware limits requests per caller. Limiter failures never
// block traffic: the request passes through and the error is logged.
func RateLimitMiddleware(limiter utils.RateLimiter, logger *logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c)

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Error(c.Request.Context(), "rate limit check failed",
				logx.KV("key", key), logx.KV("error", err))
			c.Next()
			return
		}

		info, infoErr := limiter.GetLimitInfo(c.Request.Context(), key)
		if infoErr == nil && info != nil {
			c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
		}

		if !allowed {
			logger.Warn(c.Request.Context(), "request rate limited",
				logx.KV("key", key),
				logx.KV("path", c.Request.URL.Path),
				logx.KV("method", c.Request.Method))

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "too many requests",
				"message": "retry later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func rateLimitKey(c *gin.Context) string {
	if user := c.GetHeader("X-User-ID"); user != "" {
		return fmt.Sprintf("user:%s", user)
	}
	if ip := c.ClientIP(); ip != "" {
		return fmt.Sprintf("ip:%s", ip)
	}
	return "default"
}
