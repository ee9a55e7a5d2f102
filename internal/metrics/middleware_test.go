package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_CountsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware())
	r.GET("/things/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, p := range []string{"/things/1", "/things/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/things/:id", "200"))
	if got != 2 {
		t.Fatalf("expected 2 requests on route template, got %v", got)
	}
}
