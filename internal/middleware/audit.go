package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/yoga-booking-api/internal/service"
)

// AuditContext copies client details onto the request context so audit entries written by
// services carry the caller's IP and user agent.
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := service.WithRequestMeta(c.Request.Context(), service.RequestMeta{
			IP:        c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
