package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/aml-risk-engine/internal/analysis"
	"github.com/boddenberg/aml-risk-engine/internal/domain"
	"github.com/boddenberg/aml-risk-engine/internal/infra/observability"
	"github.com/boddenberg/aml-risk-engine/internal/infra/resilience"
	"github.com/boddenberg/aml-risk-engine/internal/ledger"
	"github.com/boddenberg/aml-risk-engine/internal/port"
)

var tracer = otel.Tracer("service/risk")

const screeningCacheKey = "screening"

// RiskService scores transactions with both analyzers and persists the reports.
type RiskService struct {
	ledgerSource port.LedgerSource
	screening    port.ScreeningSource
	reports      port.ReportSink
	cache        port.LoadingCache[*analysis.Screening]
	bulkhead     *resilience.Bulkhead
	workers      int
	now          func() time.Time
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// Option configures a service.
type Option func(*options)

type options struct {
	now     func() time.Time
	workers int
}

// WithClock sets the source of "now" used for account ages and report dates.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithWorkers bounds how many transactions a rescore run scores at once, and
// how many ledger loads may run concurrently.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, workers: 4}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	return o
}

// NewRiskService creates the risk service with all dependencies injected.
func NewRiskService(
	ledgerSource port.LedgerSource,
	screening port.ScreeningSource,
	reports port.ReportSink,
	cache port.LoadingCache[*analysis.Screening],
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts ...Option,
) *RiskService {
	o := buildOptions(opts)
	return &RiskService{
		ledgerSource: ledgerSource,
		screening:    screening,
		reports:      reports,
		cache:        cache,
		bulkhead:     resilience.NewBulkhead(o.workers),
		workers:      o.workers,
		now:          o.now,
		metrics:      metrics,
		logger:       logger,
	}
}

// Assess scores ref against the current ledger. When the ledger does not
// hold ref yet it is scored as if it had just been appended.
func (s *RiskService) Assess(ctx context.Context, ref domain.TransactionRecord) (*domain.Assessment, error) {
	ctx, span := tracer.Start(ctx, "RiskService.Assess")
	defer span.End()
	start := time.Now()

	if err := validateReference(&ref); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("transaction.id", ref.ID))

	records, err := s.fetchLedger(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if _, found := findTransaction(records, ref.ID); !found || ref.ID == 0 {
		records = append(records, ref)
	}

	screening, err := s.loadScreening(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	assessment, err := s.score(ctx, ledger.New(records, s.now()), ref, screening)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.RecordRequestDuration("assess", time.Since(start))
	return assessment, nil
}

// AssessByID scores a transaction already present in the ledger.
func (s *RiskService) AssessByID(ctx context.Context, transactionID int64) (*domain.Assessment, error) {
	ctx, span := tracer.Start(ctx, "RiskService.AssessByID")
	defer span.End()
	span.SetAttributes(attribute.Int64("transaction.id", transactionID))
	start := time.Now()

	records, err := s.fetchLedger(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	ref, found := findTransaction(records, transactionID)
	if !found {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: strconv.FormatInt(transactionID, 10)}
	}

	screening, err := s.loadScreening(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	assessment, err := s.score(ctx, ledger.New(records, s.now()), ref, screening)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.RecordRequestDuration("assess", time.Since(start))
	return assessment, nil
}

// RescoreAll scores every ledger transaction against one shared ledger
// snapshot. Transactions that fail to score or persist are counted and
// skipped; the run only fails when loading its inputs fails or ctx ends.
func (s *RiskService) RescoreAll(ctx context.Context) (*domain.RescoreResult, error) {
	ctx, span := tracer.Start(ctx, "RiskService.RescoreAll")
	defer span.End()

	result := &domain.RescoreResult{
		RunID:     uuid.NewString(),
		ByLevel:   make(map[domain.RiskLevel]int),
		StartedAt: s.now(),
	}
	span.SetAttributes(attribute.String("run.id", result.RunID))

	records, err := s.fetchLedger(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	screening, err := s.loadScreening(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	l := ledger.New(records, s.now())
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	l.Each(func(r *domain.TransactionRecord) {
		ref := *r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a, err := s.score(gctx, l, ref, screening)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				s.metrics.IncrRescoreFailure()
				s.logger.Warn("rescore: transaction skipped",
					zap.Int64("transaction_id", ref.ID),
					zap.Error(err),
				)
				return nil
			}
			result.Scored++
			result.ByLevel[a.Transaction.RiskLevel]++
			return nil
		})
	})
	err = g.Wait()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("rescore interrupted: %w", err)
	}

	result.FinishedAt = s.now()
	s.metrics.RecordRequestDuration("rescore", result.FinishedAt.Sub(result.StartedAt))
	s.logger.Info("rescore finished",
		zap.String("run_id", result.RunID),
		zap.Int("scored", result.Scored),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// score runs both analyzers for ref, assigns ids and persists both reports.
func (s *RiskService) score(ctx context.Context, l *ledger.Ledger, ref domain.TransactionRecord, screening *analysis.Screening) (*domain.Assessment, error) {
	ta, err := analysis.NewTransactionAnalyzer(l, ref)
	if err != nil {
		return nil, err
	}
	ca, err := analysis.NewCustomerAnalyzer(l, ref, screening)
	if err != nil {
		return nil, err
	}

	tr := ta.Report()
	tr.ID = uuid.NewString()
	cr := ca.Report()
	cr.ID = uuid.NewString()

	if err := s.reports.SaveTransactionReport(ctx, tr); err != nil {
		s.observeError(err)
		return nil, fmt.Errorf("save transaction report: %w", err)
	}
	if err := s.reports.SaveCustomerReport(ctx, cr); err != nil {
		s.observeError(err)
		return nil, fmt.Errorf("save customer report: %w", err)
	}

	s.metrics.RecordAssessment("transaction", tr.RiskLevel)
	s.metrics.RecordAssessment("customer", cr.RiskLevel)

	if tr.RiskLevel.Elevated() || cr.RiskLevel.Elevated() {
		s.logger.Warn("elevated risk",
			zap.Int64("transaction_id", ref.ID),
			observability.Fingerprint("account", ref.AccountNo),
			zap.String("transaction_level", string(tr.RiskLevel)),
			zap.String("customer_level", string(cr.RiskLevel)),
			zap.Strings("reasons", append(append([]string{}, tr.ReasonCodes...), cr.ReasonCodes...)),
		)
	} else {
		s.logger.Debug("transaction assessed",
			zap.Int64("transaction_id", ref.ID),
			zap.Float64("transaction_score", tr.OverallRiskScore),
			zap.Float64("customer_score", cr.OverallRiskScore),
		)
	}

	return &domain.Assessment{ID: uuid.NewString(), Transaction: tr, Customer: cr}, nil
}

func (s *RiskService) fetchLedger(ctx context.Context) ([]domain.TransactionRecord, error) {
	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.bulkhead.Release()

	records, err := s.ledgerSource.FetchLedger(ctx)
	if err != nil {
		s.observeError(err)
		return nil, fmt.Errorf("ledger fetch: %w", err)
	}
	return records, nil
}

// loadScreening returns the cached screening lists, fetching all four
// concurrently on a miss.
func (s *RiskService) loadScreening(ctx context.Context) (*analysis.Screening, error) {
	screening, hit, err := s.cache.GetOrLoad(ctx, screeningCacheKey, func(ctx context.Context) (*analysis.Screening, error) {
		var data domain.ScreeningData
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			data.Sanctions, err = s.screening.FetchSanctions(gctx)
			return err
		})
		g.Go(func() (err error) {
			data.Watchlist, err = s.screening.FetchWatchlist(gctx)
			return err
		})
		g.Go(func() (err error) {
			data.PEP, err = s.screening.FetchPEP(gctx)
			return err
		})
		g.Go(func() (err error) {
			data.HighRiskCountries, err = s.screening.FetchHighRiskCountries(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return analysis.NewScreening(data), nil
	})
	if err != nil {
		s.observeError(err)
		return nil, fmt.Errorf("screening fetch: %w", err)
	}
	if hit {
		s.metrics.IncrCacheHit(observability.CacheScreening)
	} else {
		s.metrics.IncrCacheMiss(observability.CacheScreening)
	}
	return screening, nil
}

// InvalidateScreening drops the cached screening lists.
func (s *RiskService) InvalidateScreening() {
	s.cache.Delete(screeningCacheKey)
}

func (s *RiskService) observeError(err error) {
	observeExternalError(s.metrics, err)
}

func observeExternalError(metrics *observability.Metrics, err error) {
	var (
		ext  *domain.ErrExternalService
		open *domain.ErrCircuitOpen
	)
	switch {
	case errors.As(err, &ext):
		metrics.IncrExternalError(ext.Service)
	case errors.As(err, &open):
		metrics.IncrExternalError(open.Service)
	}
}

func findTransaction(records []domain.TransactionRecord, id int64) (domain.TransactionRecord, bool) {
	for i := range records {
		if records[i].ID == id {
			return records[i], true
		}
	}
	return domain.TransactionRecord{}, false
}

func validateReference(ref *domain.TransactionRecord) error {
	if ref.AccountNo == "" {
		return &domain.ErrValidation{Field: "account_no", Message: "required"}
	}
	if ref.Timestamp.IsZero() {
		return &domain.ErrValidation{Field: "timestamp", Message: "required"}
	}
	if math.IsNaN(ref.Amount) || math.IsInf(ref.Amount, 0) || ref.Amount < 0 {
		return &domain.ErrValidation{Field: "amount", Message: "must be a non-negative number"}
	}
	return nil
}
