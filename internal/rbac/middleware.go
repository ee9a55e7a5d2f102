package rbac

import (
	"net/http"

	"voice-console/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireIdentity rejects requests without a user id in context. Every
// ownership check downstream depends on it.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := auth.UserID(c.Request.Context()); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user identity required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// admin passes every check.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if IsAdmin(role) {
			c.Next()
			return
		}
		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
