package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Data backends.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Data backend: supabase (PostgREST) or postgres (direct pgx pool)
	DataBackend string `envconfig:"DATA_BACKEND" default:"supabase"`

	// Supabase
	SupabaseURL        string `envconfig:"SUPABASE_URL"`
	SupabaseAnonKey    string `envconfig:"SUPABASE_ANON_KEY"`
	SupabaseServiceKey string `envconfig:"SUPABASE_SERVICE_ROLE_KEY"`

	// Postgres
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Tables
	LedgerTable            string `envconfig:"LEDGER_TABLE" default:"transactions"`
	SanctionsTable         string `envconfig:"SANCTIONS_TABLE" default:"sanctions"`
	WatchlistTable         string `envconfig:"WATCHLIST_TABLE" default:"watchlist"`
	PEPTable               string `envconfig:"PEP_TABLE" default:"pep"`
	HighRiskCountriesTable string `envconfig:"HIGH_RISK_COUNTRIES_TABLE" default:"high_risk_countries"`
	TransactionReportTable string `envconfig:"TRANSACTION_REPORT_TABLE" default:"transaction_risk_profiles"`
	CustomerReportTable    string `envconfig:"CUSTOMER_REPORT_TABLE" default:"customer_risk_profiles"`
	CustomerProfileTable   string `envconfig:"CUSTOMER_PROFILE_TABLE" default:"customer_profile"`
	OccupationProfileTable string `envconfig:"OCCUPATION_PROFILE_TABLE" default:"occupation_profile"`
	AccountAgeProfileTable string `envconfig:"ACCOUNT_AGE_PROFILE_TABLE" default:"account_age_profile"`
	LedgerPageSize         int    `envconfig:"LEDGER_PAGE_SIZE" default:"1000"`

	// HTTP client
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`

	// Resilience
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3"`
	InitialBackoff time.Duration `envconfig:"INITIAL_BACKOFF" default:"100ms"`
	MaxConcurrency int           `envconfig:"MAX_CONCURRENCY" default:"8"`

	// Cache
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	// Observability
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Service token for batch endpoints (HS256)
	JWTSecret string `envconfig:"JWT_SECRET"`
}

// Load reads an optional .env file, then the environment. Variables already
// set in the environment win over the file. A missing file is not an error.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.DataBackend {
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return errors.New("config: SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for the supabase backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown DATA_BACKEND %q", c.DataBackend)
	}
	if c.LedgerPageSize <= 0 {
		return fmt.Errorf("config: LEDGER_PAGE_SIZE must be positive, got %d", c.LedgerPageSize)
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("config: MAX_CONCURRENCY must be positive, got %d", c.MaxConcurrency)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("config: CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	return nil
}

// Tables names every table the stores read or write.
type Tables struct {
	Ledger             string
	Sanctions          string
	Watchlist          string
	PEP                string
	HighRiskCountries  string
	TransactionReports string
	CustomerReports    string
	CustomerProfiles   string
	OccupationProfiles string
	AccountAgeProfiles string
}

// Tables returns the configured table names.
func (c *Config) Tables() Tables {
	return Tables{
		Ledger:             c.LedgerTable,
		Sanctions:          c.SanctionsTable,
		Watchlist:          c.WatchlistTable,
		PEP:                c.PEPTable,
		HighRiskCountries:  c.HighRiskCountriesTable,
		TransactionReports: c.TransactionReportTable,
		CustomerReports:    c.CustomerReportTable,
		CustomerProfiles:   c.CustomerProfileTable,
		OccupationProfiles: c.OccupationProfileTable,
		AccountAgeProfiles: c.AccountAgeProfileTable,
	}
}
