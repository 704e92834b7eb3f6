package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/aml-risk-engine/internal/analysis"
	"github.com/boddenberg/aml-risk-engine/internal/backend"
	"github.com/boddenberg/aml-risk-engine/internal/config"
	"github.com/boddenberg/aml-risk-engine/internal/handler"
	"github.com/boddenberg/aml-risk-engine/internal/infra/cache"
	"github.com/boddenberg/aml-risk-engine/internal/infra/observability"
	"github.com/boddenberg/aml-risk-engine/internal/service"
)

func main() {
	issueFor := flag.String("issue-token", "", "print a batch service token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of a token issued with -issue-token")
	flag.Parse()

	// --- Config (.env first, environment wins) ---
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *issueFor != "" {
		token, err := service.SignServiceToken([]byte(cfg.JWTSecret), *issueFor, *tokenTTL)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("data_backend", cfg.DataBackend),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
	)
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, batch endpoints will reject every request")
	}

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(context.Background(), cfg.OTLPEndpoint, "aml-risk-engine")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Backend ---
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	store, closeStore, err := backend.Open(startCtx, cfg, logger)
	cancelStart()
	if err != nil {
		logger.Fatal("failed to open backend", zap.Error(err))
	}
	defer closeStore()

	// --- Cache ---
	screeningCache := cache.New[*analysis.Screening](cfg.CacheTTL)
	defer screeningCache.Stop()

	// --- Services ---
	riskSvc := service.NewRiskService(store, store, store, screeningCache, metrics, logger,
		service.WithWorkers(cfg.MaxConcurrency))
	profileSvc := service.NewProfileService(store, store, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(riskSvc, profileSvc, store, metrics, []byte(cfg.JWTSecret), logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // rescore and rebuild run inside the request
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
