// Command profiler rebuilds the customer, occupation and account-age
// profile tables once and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/aml-risk-engine/internal/backend"
	"github.com/boddenberg/aml-risk-engine/internal/config"
	"github.com/boddenberg/aml-risk-engine/internal/infra/observability"
	"github.com/boddenberg/aml-risk-engine/internal/service"
)

func main() {
	timeout := flag.Duration("timeout", 30*time.Minute, "abort the run after this long")
	flag.Parse()

	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := run(cfg, *timeout, logger); err != nil {
		logger.Error("profile run failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, timeout time.Duration, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, "aml-profiler")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	store, closeStore, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := service.NewProfileService(store, store, observability.NewMetrics(), logger)
	summary, err := svc.Rebuild(ctx)
	if err != nil {
		return err
	}

	logger.Info("profile run complete",
		zap.String("run_id", summary.RunID),
		zap.Int("customers", summary.Customers),
		zap.Int("occupations", summary.Occupations),
		zap.Int("account_ages", summary.AccountAges),
	)
	return nil
}
