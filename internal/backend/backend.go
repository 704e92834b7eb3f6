// Package backend opens the store selected by DATA_BACKEND.
package backend

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/boddenberg/aml-risk-engine/internal/config"
	"github.com/boddenberg/aml-risk-engine/internal/infra/postgres"
	"github.com/boddenberg/aml-risk-engine/internal/infra/resilience"
	"github.com/boddenberg/aml-risk-engine/internal/infra/supabase"
	"github.com/boddenberg/aml-risk-engine/internal/port"
)

// Store is an engine backend that can also be health-checked.
type Store interface {
	port.Store
	port.Pinger
}

// ResilienceConfig extracts the retry and concurrency settings.
func ResilienceConfig(cfg *config.Config) resilience.Config {
	return resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
}

// Open builds the configured store. The returned close function releases
// its connections and is never nil.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, func(), error) {
	rcfg := ResilienceConfig(cfg)

	switch cfg.DataBackend {
	case config.BackendSupabase:
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		client := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			cfg.Tables(),
			cfg.LedgerPageSize,
			resilience.NewCircuitBreaker("supabase", logger),
			rcfg,
			logger,
		)
		return client, func() {}, nil

	case config.BackendPostgres:
		logger.Info("using Postgres as data backend")
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, func() {}, err
		}
		store := postgres.NewStore(pool, cfg.Tables(), resilience.NewCircuitBreaker("postgres", logger), rcfg, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, func() {}, err
		}
		return store, pool.Close, nil

	default:
		return nil, func() {}, fmt.Errorf("backend: unknown data backend %q", cfg.DataBackend)
	}
}
