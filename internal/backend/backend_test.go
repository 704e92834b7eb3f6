package backend_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/aml-risk-engine/internal/backend"
	"github.com/boddenberg/aml-risk-engine/internal/config"
	"github.com/boddenberg/aml-risk-engine/internal/infra/supabase"
)

func TestOpen_Supabase(t *testing.T) {
	cfg := &config.Config{
		DataBackend:        config.BackendSupabase,
		SupabaseURL:        "http://localhost:54321",
		SupabaseServiceKey: "service",
		LedgerPageSize:     500,
		HTTPTimeout:        time.Second,
		MaxRetries:         2,
		InitialBackoff:     10 * time.Millisecond,
		MaxConcurrency:     4,
	}

	store, closeFn, err := backend.Open(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer closeFn()

	if _, ok := store.(*supabase.Client); !ok {
		t.Errorf("expected a Supabase client, got %T", store)
	}
}

func TestOpen_PostgresBadDSN(t *testing.T) {
	cfg := &config.Config{DataBackend: config.BackendPostgres, DatabaseURL: "postgres://user@host:notaport/db"}

	_, closeFn, err := backend.Open(context.Background(), cfg, zap.NewNop())
	defer closeFn()

	if err == nil {
		t.Fatal("expected an error for an unparseable DSN")
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, closeFn, err := backend.Open(context.Background(), &config.Config{DataBackend: "mysql"}, zap.NewNop())
	defer closeFn()

	if err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}

func TestResilienceConfig(t *testing.T) {
	rc := backend.ResilienceConfig(&config.Config{MaxRetries: 3, InitialBackoff: time.Second, MaxConcurrency: 8})
	if rc.MaxRetries != 3 || rc.InitialBackoff != time.Second || rc.MaxConcurrency != 8 {
		t.Errorf("unexpected resilience config %+v", rc)
	}
}
