package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// RequireAccessToken verifies the bearer access token, rejects revoked tokens
// and injects identity into the request context. RBAC belongs to internal/rbac.
// A nil revoker skips the revocation check.
func RequireAccessToken(m *Manager, revoker Revoker) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := m.Verify(strings.TrimPrefix(raw, bearerPrefix), TokenTypeAccess, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if revoker != nil {
			revoked, err := revoker.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "auth unavailable"})
				return
			}
			if revoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
				return
			}
		}

		ctx := WithIdentity(c.Request.Context(), claims.UserID, claims.Role, claims.ID)
		c.Request = c.Request.WithContext(ctx)

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Set("token_exp", claims.ExpiresAt.Time)

		c.Next()
	}
}
