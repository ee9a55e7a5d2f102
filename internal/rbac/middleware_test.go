package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"voice-console/internal/auth"

	"github.com/gin-gonic/gin"
)

func serveAs(userID, role string, chain ...gin.HandlerFunc) int {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	handlers := []gin.HandlerFunc{func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, role, "jti")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}}
	handlers = append(handlers, chain...)
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/x", handlers...)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	if code := serveAs("u", RoleAdmin, RequireIdentity(), RequireAnyRole(RoleOperator)); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_DeniesOtherRoles(t *testing.T) {
	if code := serveAs("u", RoleUser, RequireIdentity(), RequireAnyRole(RoleOperator)); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := serveAs("u", RoleOperator, RequireIdentity(), RequireAnyRole(RoleOperator)); code != http.StatusOK {
		t.Fatalf("expected 200 for allowed role, got %d", code)
	}
}

func TestRequireIdentity(t *testing.T) {
	if code := serveAs("", RoleUser, RequireIdentity()); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
	if code := serveAs("", "", RequireAnyRole(RoleUser)); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without role, got %d", code)
	}
}
