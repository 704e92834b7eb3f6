package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
	"github.com/boddenberg/aml-risk-engine/internal/infra/observability"
	"github.com/boddenberg/aml-risk-engine/internal/ledger"
	"github.com/boddenberg/aml-risk-engine/internal/port"
	"github.com/boddenberg/aml-risk-engine/internal/profiler"
)

// ProfileService runs the behaviour profiler over the ledger and replaces
// the profile tables with its output.
type ProfileService struct {
	ledgerSource port.LedgerSource
	sink         port.ProfileSink
	now          func() time.Time
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// NewProfileService creates the profile service. Only WithClock applies.
func NewProfileService(ledgerSource port.LedgerSource, sink port.ProfileSink, metrics *observability.Metrics, logger *zap.Logger, opts ...Option) *ProfileService {
	o := buildOptions(opts)
	return &ProfileService{
		ledgerSource: ledgerSource,
		sink:         sink,
		now:          o.now,
		metrics:      metrics,
		logger:       logger,
	}
}

// Rebuild profiles every customer in the ledger and stores the batch.
func (s *ProfileService) Rebuild(ctx context.Context) (*domain.ProfileRunSummary, error) {
	ctx, span := tracer.Start(ctx, "ProfileService.Rebuild")
	defer span.End()
	start := time.Now()

	records, err := s.ledgerSource.FetchLedger(ctx)
	if err != nil {
		observeExternalError(s.metrics, err)
		span.RecordError(err)
		return nil, fmt.Errorf("ledger fetch: %w", err)
	}

	batch := profiler.Build(ledger.New(records, s.now()))
	batch.RunID = uuid.NewString()
	span.SetAttributes(
		attribute.String("run.id", batch.RunID),
		attribute.Int("profiles.customers", len(batch.Customers)),
	)

	if err := s.sink.ReplaceProfiles(ctx, batch); err != nil {
		observeExternalError(s.metrics, err)
		span.RecordError(err)
		return nil, fmt.Errorf("replace profiles: %w", err)
	}

	s.metrics.RecordProfileRun(len(batch.Customers))
	s.metrics.RecordRequestDuration("profile_rebuild", time.Since(start))
	s.logger.Info("profiles rebuilt",
		zap.String("run_id", batch.RunID),
		zap.Int("ledger_rows", len(records)),
		zap.Int("customers", len(batch.Customers)),
		zap.Duration("took", time.Since(start)),
	)

	return &domain.ProfileRunSummary{
		RunID:       batch.RunID,
		Customers:   len(batch.Customers),
		Occupations: len(batch.Occupations),
		AccountAges: len(batch.AccountAges),
		GeneratedAt: batch.GeneratedAt,
	}, nil
}
