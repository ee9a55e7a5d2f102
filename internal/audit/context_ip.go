package audit

import (
	"context"

	"github.com/gin-gonic/gin"
)

type clientIPKey struct{}

func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func ClientIP(ctx context.Context) string {
	if s, ok := ctx.Value(clientIPKey{}).(string); ok {
		return s
	}
	return ""
}

// CaptureClientIP puts gin's resolved client IP on the request context so
// services below the handler can audit it.
func CaptureClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}
