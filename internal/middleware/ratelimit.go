package middleware

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/yoga-booking-api/pkg/errors"
	"github.com/noah-isme/yoga-booking-api/pkg/response"
)

type limiter interface {
	Allow(key string) bool
}

type rateLimitRecorder interface {
	RecordRateLimited(path string)
}

// RateLimit throttles callers with a token bucket keyed by user id, falling back to client IP.
func RateLimit(store limiter, recorder rateLimitRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if identity, ok := CurrentIdentity(c); ok {
			key = "user:" + identity.UserID
		}
		if store.Allow(key) {
			c.Next()
			return
		}
		if recorder != nil {
			recorder.RecordRateLimited(c.FullPath())
		}
		c.Header("Retry-After", "1")
		response.Error(c, appErrors.ErrRateLimited)
		c.Abort()
	}
}
