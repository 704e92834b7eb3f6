package observability_test

import (
	"context"
	"strings"
	"testing"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
	"github.com/boddenberg/aml-risk-engine/internal/infra/observability"
)

func TestEngineSnapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.RecordAssessment("transaction", domain.RiskLevelLow)
	m.RecordAssessment("transaction", domain.RiskLevelLow)
	m.RecordAssessment("transaction", domain.RiskLevelHigh)
	m.RecordAssessment("transaction", domain.RiskLevelCritical)
	m.RecordAssessment("customer", domain.RiskLevelCritical)
	m.IncrCacheHit(observability.CacheScreening)
	m.IncrCacheHit(observability.CacheScreening)
	m.IncrCacheHit(observability.CacheScreening)
	m.IncrCacheMiss(observability.CacheScreening)
	m.IncrExternalError("supabase/ledger")
	m.IncrExternalError("postgres/reports")
	m.RecordProfileRun(120)

	snap := m.GetEngineSnapshot()

	if snap.Assessments != 4 {
		t.Errorf("expected 4 transaction assessments, got %d", snap.Assessments)
	}
	if snap.ByLevel[domain.RiskLevelLow] != 2 || snap.ByLevel[domain.RiskLevelMedium] != 0 {
		t.Errorf("unexpected level breakdown %v", snap.ByLevel)
	}
	if snap.ElevatedRate != 0.5 {
		t.Errorf("expected elevated rate 0.5, got %f", snap.ElevatedRate)
	}
	if snap.CacheHitRate != 0.75 {
		t.Errorf("expected cache hit rate 0.75, got %f", snap.CacheHitRate)
	}
	if snap.ExternalErrors != 2 {
		t.Errorf("expected 2 external errors, got %d", snap.ExternalErrors)
	}
	if snap.ProfileRuns != 1 || snap.LastProfileSize != 120 {
		t.Errorf("unexpected profile stats %d / %d", snap.ProfileRuns, snap.LastProfileSize)
	}
}

func TestEngineSnapshot_Empty(t *testing.T) {
	snap := observability.NewMetrics().GetEngineSnapshot()
	if snap.Assessments != 0 || snap.ElevatedRate != 0 || snap.CacheHitRate != 0 {
		t.Errorf("expected zero snapshot, got %+v", snap)
	}
}

func TestFingerprint(t *testing.T) {
	a := observability.Fingerprint("passport", "EP1234567")
	b := observability.Fingerprint("passport", "EP1234567")
	c := observability.Fingerprint("passport", "EP7654321")

	if a.String != b.String {
		t.Error("expected stable fingerprint")
	}
	if a.String == c.String {
		t.Error("expected different values to differ")
	}
	if len(a.String) != 12 || strings.Contains(a.String, "EP") {
		t.Errorf("unexpected fingerprint %q", a.String)
	}
	if observability.Fingerprint("passport", "").String != "" {
		t.Error("expected empty value to stay empty")
	}
}

func TestInitTracer_NoEndpoint(t *testing.T) {
	shutdown, err := observability.InitTracer(context.Background(), "", "aml-engine")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("expected no-op shutdown, got %v", err)
	}
}
