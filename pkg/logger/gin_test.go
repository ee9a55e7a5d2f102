package logger

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMiddleware_SetsRequestIDAndLogs(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	l := NewWithWriter("production", &buf)

	r := gin.New()
	r.Use(Middleware(l))
	r.GET("/x", func(c *gin.Context) {
		if FromGin(c) == nil || From(c.Request.Context()) == nil {
			t.Errorf("expected request logger")
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Header().Get(headerRequestID) == "" {
		t.Fatalf("expected request id header")
	}
	if !strings.Contains(buf.String(), `"path":"/x"`) {
		t.Fatalf("expected request summary log, got %s", buf.String())
	}
}

func TestMiddleware_KeepsIncomingRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware(NewWithWriter("production", &bytes.Buffer{})))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "rid-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(headerRequestID); got != "rid-1" {
		t.Fatalf("expected rid-1, got %q", got)
	}
}
