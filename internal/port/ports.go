// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the risk engine
// from the stores that feed it and the tables it writes to.
package port

import (
	"context"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
)

// LedgerSource loads the transaction ledger the analyzers read.
type LedgerSource interface {
	FetchLedger(ctx context.Context) ([]domain.TransactionRecord, error)
}

// ScreeningSource loads the reference lists used for customer screening.
type ScreeningSource interface {
	FetchSanctions(ctx context.Context) ([]domain.ScreenedName, error)
	FetchWatchlist(ctx context.Context) ([]domain.ScreenedName, error)
	FetchPEP(ctx context.Context) ([]domain.ScreenedName, error)
	FetchHighRiskCountries(ctx context.Context) ([]string, error)
}

// ReportSink persists the reports produced by the analyzers.
type ReportSink interface {
	SaveTransactionReport(ctx context.Context, report *domain.TransactionRiskReport) error
	SaveCustomerReport(ctx context.Context, report *domain.CustomerRiskReport) error
}

// ProfileSink replaces the profile tables with the output of one profiler run.
type ProfileSink interface {
	ReplaceProfiles(ctx context.Context, batch *domain.ProfileBatch) error
}

// Store is a backend that serves every engine port.
type Store interface {
	LedgerSource
	ScreeningSource
	ReportSink
	ProfileSink
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// LoadingCache is a Cache that can fill a miss with one shared load.
type LoadingCache[T any] interface {
	Cache[T]
	GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (T, error)) (T, bool, error)
}

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
