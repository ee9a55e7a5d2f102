// Command reconcile drains call logs parked in the pending queue into the
// record store. Run it after a store outage; it is safe to run repeatedly.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"voice-console/internal/calls"
	"voice-console/internal/config"
	"voice-console/internal/store"
	"voice-console/pkg/logger"
	"voice-console/pkg/utils"

	"github.com/spf13/pflag"
)

func main() {
	limit := pflag.Int("limit", 0, "maximum entries to process (0 = all)")
	dryRun := pflag.Bool("dry-run", false, "only report the queue length")
	pflag.Parse()

	if err := run(*limit, *dryRun); err != nil {
		slog.Error("reconcile failed", "err", err)
		os.Exit(1)
	}
}

func run(limit int, dryRun bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	rdb, err := utils.OpenRedis(ctx, utils.RedisOptions{Addr: cfg.RedisAddr()})
	if err != nil {
		return err
	}
	defer rdb.Close()

	db, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	r := calls.NewReconciler(calls.NewRedisQueue(rdb), calls.NewRepository(db), log)
	res, err := r.Drain(ctx, limit, dryRun)
	log.Info("reconcile finished",
		"dry_run", dryRun,
		"written", res.Written,
		"dropped", res.Dropped,
		"remaining", res.Remaining,
	)
	return err
}
