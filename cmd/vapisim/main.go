// Command vapisim serves a local stand-in for the voice API. Point
// VAPI_BASE_URL at it to run the console without a real account.
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

	"voice-console/internal/simulator"
	"voice-console/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
)

func main() {
	addr := pflag.String("addr", ":8090", "listen address")
	seed := pflag.Bool("seed", true, "load the demo credential, agent, phone number and assistant")
	env := pflag.String("env", "local", "logging environment (local uses text output)")
	pflag.Parse()

	log := logger.New(*env)
	slog.SetDefault(log)
	gin.SetMode(gin.ReleaseMode)

	state := simulator.NewState()
	if *seed {
		state.Seed()
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           simulator.Handler(state),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("vapi simulator listening", "addr", *addr, "seeded", *seed)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("simulator failed", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
