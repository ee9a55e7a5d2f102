package httpapi

import (
	"net/http"
	"time"

	"voice-console/internal/auth"

	"github.com/gin-gonic/gin"
)

func (h Handlers) Me(c *gin.Context) {
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"userId": userID(c), "role": role})
}

// Logout revokes the access token that made the request until it expires.
func (h Handlers) Logout(c *gin.Context) {
	if h.Revoker == nil {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	jti, err := auth.TokenID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	v, _ := c.Get("token_exp")
	until, ok := v.(time.Time)
	if !ok {
		until = time.Now().Add(24 * time.Hour)
	}
	if err := h.Revoker.Revoke(c.Request.Context(), jti, until); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh rotates a token pair. The presented refresh token is revoked so it
// cannot be replayed.
func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	now := time.Now()
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, now)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	if h.Revoker != nil {
		revoked, err := h.Revoker.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
			return
		}
		if err := h.Revoker.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
			respondError(c, err)
			return
		}
	}
	pair, err := h.Auth.IssuePair(now, claims.UserID, claims.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}
