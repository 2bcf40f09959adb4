package restapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lumos-db/lumosdb/internal/ratelimit"
)

// routeToTool maps a request path to the rate limiter's tool categories,
// matching ratelimit.DefaultConfig's named tools ("query", "search",
// "collections_write").
func routeToTool(path, method string) string {
	switch {
	case strings.HasSuffix(path, "/search"):
		return "search"
	case path == "/query":
		return "query"
	case strings.HasPrefix(path, "/collections") && method != http.MethodGet:
		return "collections_write"
	default:
		return "default"
	}
}

// RateLimitMiddleware rate-limits requests using the already-adapted
// internal/ratelimit.Limiter (teacher's per-key token bucket).
func RateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		tool := routeToTool(c.Request.URL.Path, c.Request.Method)
		result := limiter.Allow(tool)
		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			tooManyRequestsError(c, fmt.Sprintf("rate limit exceeded for %s, retry after %ds", result.LimitType, retryAfter))
			c.Abort()
			return
		}
		c.Next()
	}
}

// MaxBodySizeMiddleware rejects requests whose declared content length
// exceeds maxBytes and caps the body reader for the rest.
func MaxBodySizeMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			payloadTooLargeError(c, fmt.Sprintf("request body too large, maximum %d bytes", maxBytes))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
