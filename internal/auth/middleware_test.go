package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newAuthRouter(m *Manager, r Revoker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.GET("/x", RequireAccessToken(m, r), func(c *gin.Context) {
		uid, _ := UserID(c.Request.Context())
		jti, _ := TokenID(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user_id": uid, "jti": jti})
	})
	return e
}

func do(e *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestRequireAccessToken(t *testing.T) {
	m := newManager(t)
	rev := NewMemoryRevoker()
	e := newAuthRouter(m, rev)

	if w := do(e, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := do(e, "garbage"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage, got %d", w.Code)
	}

	now := time.Now()
	p, err := m.IssuePair(now, "u1", "user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if w := do(e, p.RefreshToken); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected refresh token rejected, got %d", w.Code)
	}
	if w := do(e, p.AccessToken); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	claims, _ := m.Verify(p.AccessToken, TokenTypeAccess, now)
	if err := rev.Revoke(context.Background(), claims.ID, claims.ExpiresAt.Time); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if w := do(e, p.AccessToken); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token rejected, got %d", w.Code)
	}
}

func TestMemoryRevoker_Expires(t *testing.T) {
	r := NewMemoryRevoker()
	now := time.Unix(1700000000, 0)
	r.clock = func() time.Time { return now }
	ctx := context.Background()

	_ = r.Revoke(ctx, "jti", now.Add(time.Minute))
	if ok, _ := r.IsRevoked(ctx, "jti"); !ok {
		t.Fatalf("expected revoked")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := r.IsRevoked(ctx, "jti"); ok {
		t.Fatalf("expected revocation to lapse with the token")
	}
}
