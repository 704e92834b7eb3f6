package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
)

// Cache names used as metric labels.
const (
	CacheScreening = "screening"
)

var riskLevels = []domain.RiskLevel{
	domain.RiskLevelLow, domain.RiskLevelMedium, domain.RiskLevelHigh, domain.RiskLevelCritical,
}

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	assessments     *prometheus.CounterVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	profileRuns     prometheus.Counter
	profileSize     prometheus.Gauge
	rescoreFailures prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aml_operation_duration_seconds",
				Help:    "Duration of engine operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		assessments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aml_assessments_total",
				Help: "Risk reports produced, by analyzer and risk level.",
			},
			[]string{"analyzer", "level"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aml_external_errors_total",
				Help: "Total errors from external stores.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aml_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aml_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		profileRuns: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "aml_profile_runs_total",
				Help: "Completed profiler runs.",
			},
		),
		profileSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "aml_profile_customers",
				Help: "Customer profiles written by the last profiler run.",
			},
		),
		rescoreFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "aml_rescore_failures_total",
				Help: "Transactions that could not be rescored or persisted.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordAssessment counts one report for analyzer ("transaction" or "customer").
func (m *Metrics) RecordAssessment(analyzer string, level domain.RiskLevel) {
	m.assessments.WithLabelValues(analyzer, string(level)).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordProfileRun records a finished profiler run and its customer count.
func (m *Metrics) RecordProfileRun(customers int) {
	m.profileRuns.Inc()
	m.profileSize.Set(float64(customers))
}

// IncrRescoreFailure counts one transaction a rescore run had to skip.
func (m *Metrics) IncrRescoreFailure() {
	m.rescoreFailures.Inc()
}

// GetEngineSnapshot returns a snapshot of engine metrics suitable for the
// GET /v1/metrics/engine endpoint. Counts cover transaction reports.
func (m *Metrics) GetEngineSnapshot() *domain.EngineMetrics {
	byLevel := make(map[domain.RiskLevel]int64, len(riskLevels))
	var total, elevated float64
	for _, lvl := range riskLevels {
		n := counterValue(m.assessments.WithLabelValues("transaction", string(lvl)))
		byLevel[lvl] = int64(n)
		total += n
		if lvl.Elevated() {
			elevated += n
		}
	}

	hits := counterValue(m.cacheHits.WithLabelValues(CacheScreening))
	misses := counterValue(m.cacheMisses.WithLabelValues(CacheScreening))

	var externalErrors float64
	if mfs, err := m.Registry.Gather(); err == nil {
		for _, mf := range mfs {
			if mf.GetName() != "aml_external_errors_total" {
				continue
			}
			for _, metric := range mf.GetMetric() {
				externalErrors += metric.GetCounter().GetValue()
			}
		}
	}

	snap := &domain.EngineMetrics{
		Assessments:     int64(total),
		ByLevel:         byLevel,
		ExternalErrors:  int64(externalErrors),
		ProfileRuns:     int64(counterValue(m.profileRuns)),
		LastProfileSize: int64(gaugeValue(m.profileSize)),
		Period:          "all_time",
	}
	if total > 0 {
		snap.ElevatedRate = elevated / total
	}
	if hits+misses > 0 {
		snap.CacheHitRate = hits / (hits + misses)
	}
	return snap
}

// counterValue extracts the current float64 value from a counter.
func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func gaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}
