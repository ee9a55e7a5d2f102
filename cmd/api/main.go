package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voice-console/internal/agents"
	"voice-console/internal/audit"
	"voice-console/internal/auth"
	"voice-console/internal/calls"
	"voice-console/internal/config"
	"voice-console/internal/httpapi"
	"voice-console/internal/metrics"
	"voice-console/internal/reporting"
	"voice-console/internal/secrets"
	"voice-console/internal/store"
	"voice-console/internal/vapi"
	"voice-console/pkg/logger"
	"voice-console/pkg/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	var sealer *secrets.Sealer
	if len(cfg.Secrets.Key) > 0 {
		if sealer, err = secrets.NewSealer(cfg.Secrets.Key); err != nil {
			log.Error("secrets init failed", "err", err)
			os.Exit(1)
		}
	} else {
		log.Warn("SECRETS_KEY not set; agent api keys are stored in plaintext")
	}

	db, err := store.Open(rootCtx, cfg)
	if err != nil {
		log.Error("store init failed", "err", err, "driver", cfg.DB.Driver)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisOptions{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	factory := vapi.Factory{BaseURL: cfg.Vapi.BaseURL}
	revoker := auth.NewRedisRevoker(rdb)

	auditRepo := audit.NewSQLRepository(db)
	auditSvc := audit.NewService(auditRepo)

	agentSvc := agents.NewService(agents.NewRepository(db, sealer), agents.VapiFactory(factory), cfg.Vapi.VerifyAgents).
		WithAudit(auditSvc)
	callSvc := calls.NewService(agentSvc, calls.NewRepository(db), calls.VapiFactory(factory), calls.NewRedisQueue(rdb)).
		WithAudit(auditSvc)

	h := httpapi.Handlers{
		Auth:    authManager,
		Revoker: revoker,
		Agents:  agentSvc,
		Calls:   callSvc,
		Reports: reporting.NewService(callSvc),
		Remote:  factory.New,
		Audit:   auditRepo,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(metrics.Middleware())

	registerRoutes(r, h, auth.RequireAccessToken(authManager, revoker), func() error {
		return utils.HealthCheck(rootCtx, db, 2*time.Second)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           withCORS(r, cfg.CORS.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "vapi_base_url", cfg.Vapi.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
