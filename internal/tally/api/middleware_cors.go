package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blueledger/tally-go/internal/tally/contextx"
	logx "github.com/blueledger/tally-go/internal/tally/log"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware applies the configured origin allowlist.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if isOriginAllowed(origins, origin) {
			c.Header("Access-Control-Allow-Origin", origin)
		} else {
			c.Header("Access-Control-Allow-Origin", "*")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-User-ID, X-Request-ID")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func isOriginAllowed(origins []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range origins {
		if allowed == "*" || allowed == origin {
			return true
		}
		// Prefix and suffix wildcards only, e.g. "https://*.example.com".
		if strings.HasPrefix(allowed, "*") && strings.HasSuffix(origin, allowed[1:]) {
			return true
		}
		if strings.HasSuffix(allowed, "*") && strings.HasPrefix(origin, allowed[:len(allowed)-1]) {
			return true
		}
	}
	return false
}

// RequestContextMiddleware threads the request ID from the X-Request-ID
// header (or a generated one) into the request context for the logger.
func RequestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = strconv.FormatInt(time.Now().UnixNano(), 36)
		}
		ctx := contextx.WithRequestID(c.Request.Context(), rid)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", rid)
		c.Next()
	}
}

// RequestLoggingMiddleware logs one line per request.
func RequestLoggingMiddleware(logger *logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info(c.Request.Context(), "http request",
			logx.KV("method", c.Request.Method),
			logx.KV("path", c.Request.URL.Path),
			logx.KV("status", c.Writer.Status()),
			logx.KV("latency", time.Since(start)),
			logx.KV("client_ip", c.ClientIP()))
	}
}

// RecoveryMiddleware converts panics into 500 responses with a logged cause.
func RecoveryMiddleware(logger *logx.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error(c.Request.Context(), "request handler panic",
			logx.KV("error", recovered),
			logx.KV("method", c.Request.Method),
			logx.KV("path", c.Request.URL.Path))

		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}
