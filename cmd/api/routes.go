package main

import (
	"net/http"

	"voice-console/internal/httpapi"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, ready func() error) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := ready(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.RegisterPublic(r)

	// protected API group
	h.Register(r.Group("/v1", authMW))
}

// withCORS wraps the engine for the browser console. No origins means no CORS headers.
func withCORS(next http.Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		return next
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	})(next)
}
