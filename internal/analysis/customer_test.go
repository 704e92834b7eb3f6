package analysis_test

import (
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/aml-risk-engine/internal/analysis"
	"github.com/boddenberg/aml-risk-engine/internal/domain"
	"github.com/boddenberg/aml-risk-engine/internal/ledger"
)

func TestNewCustomerAnalyzer_NilLedger(t *testing.T) {
	_, err := analysis.NewCustomerAnalyzer(nil, tx(1, "A1", 10, 0), nil)
	if !errors.Is(err, domain.ErrNoLedger) {
		t.Fatalf("expected ErrNoLedger, got %v", err)
	}
}

func TestCustomerAnalyzer_SanctionsMatch(t *testing.T) {
	ref := tx(7, "A1", 250, 0)
	ref.FullName = "  abebe kebede "
	screening := analysis.NewScreening(domain.ScreeningData{
		Sanctions: []domain.ScreenedName{{FirstName: "Abebe", LastName: "Kebede"}},
	})

	a, err := analysis.NewCustomerAnalyzer(ledger.New([]domain.TransactionRecord{ref}, now), ref, screening)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	r := a.Report()

	if !r.Sanctions.AccountHit || r.Sanctions.BeneficiaryHit {
		t.Errorf("expected account-side hit only, got %+v", r.Sanctions)
	}
	if r.SanctionRiskScore != 100 {
		t.Errorf("expected sanction_risk_score 100, got %f", r.SanctionRiskScore)
	}
	if r.ScreeningRiskScore != 50 {
		t.Errorf("expected screening_risk_score 50, got %f", r.ScreeningRiskScore)
	}
	if !hasReason(r.ReasonCodes, analysis.ReasonSanction) {
		t.Errorf("expected %s in %v", analysis.ReasonSanction, r.ReasonCodes)
	}
	if r.Watchlist.Hit() || r.PEP.Hit() {
		t.Errorf("expected no watchlist or PEP hit, got %+v / %+v", r.Watchlist, r.PEP)
	}
}

func TestCustomerAnalyzer_BeneficiaryOnWatchlist(t *testing.T) {
	ref := tx(7, "A1", 250, 0)
	screening := analysis.NewScreening(domain.ScreeningData{
		Watchlist: []domain.ScreenedName{{FirstName: "ALMAZ", LastName: "TESFAYE"}},
	})

	a, _ := analysis.NewCustomerAnalyzer(ledger.New(nil, now), ref, screening)
	hit := a.WatchlistHit()
	if hit.AccountHit || !hit.BeneficiaryHit || hit.Score != 100 {
		t.Errorf("expected beneficiary-side hit scored 100, got %+v", hit)
	}
}

func TestCustomerAnalyzer_EmptyLedger(t *testing.T) {
	ref := tx(1, "A1", 250, 0)

	a, err := analysis.NewCustomerAnalyzer(ledger.New(nil, now), ref, nil)
	if err != nil {
		t.Fatal(err)
	}
	r := a.Report()

	if r.PeerOccupation.ZScore != 0 || r.PeerRegion.ZScore != 0 || r.PeerAccountAge.ZScore != 0 {
		t.Errorf("expected zero peer z-scores, got %+v", r.CustomerSignals)
	}
	if r.KYCCompletenessRatio != 0 {
		t.Errorf("expected completeness 0, got %f", r.KYCCompletenessRatio)
	}
	if r.OverallRiskScore != 2.0 {
		t.Errorf("expected score 2.0, got %f", r.OverallRiskScore)
	}
	if r.RiskLevel != domain.RiskLevelLow {
		t.Errorf("expected LOW, got %s", r.RiskLevel)
	}
	if len(r.ReasonCodes) != 1 || !hasReason(r.ReasonCodes, analysis.ReasonKYC) {
		t.Errorf("expected only %s, got %v", analysis.ReasonKYC, r.ReasonCodes)
	}
}

func TestCustomerAnalyzer_HighRiskCountry(t *testing.T) {
	ref := tx(1, "A1", 250, 0)
	ref.BenCountry = "Syria"
	screening := analysis.NewScreening(domain.ScreeningData{HighRiskCountries: []string{"SYRIA"}})

	a, _ := analysis.NewCustomerAnalyzer(ledger.New(nil, now), ref, screening)
	hit, score := a.DemographicsRisk()
	if !hit || score != 100 {
		t.Fatalf("expected demographics hit scored 100, got %v %f", hit, score)
	}

	r := a.Report()
	if r.OverallRiskScore != 4.5 {
		t.Errorf("expected score 4.5, got %f", r.OverallRiskScore)
	}
	if !hasReason(r.ReasonCodes, analysis.ReasonSanction) || !hasReason(r.ReasonCodes, analysis.ReasonKYC) {
		t.Errorf("expected sanction and KYC reasons, got %v", r.ReasonCodes)
	}
}

func TestPeerProfile(t *testing.T) {
	rows := []domain.TransactionRecord{
		tx(1, "B1", 100, 300), tx(2, "B2", 100, 200), tx(3, "B3", 100, 100),
	}

	t.Run("zero spread with a different amount hits the sentinel", func(t *testing.T) {
		ref := tx(9, "A1", 500, 0)
		a, _ := analysis.NewCustomerAnalyzer(ledger.New(rows, now), ref, nil)
		p := a.PeerProfile(analysis.DimensionOccupation)

		if p.Value != "Merchant" || p.Count != 3 || p.Mean != 100 || p.Std != 0 {
			t.Fatalf("unexpected profile %+v", p)
		}
		if p.ZScore != 5.0 {
			t.Errorf("expected sentinel 5.0, got %f", p.ZScore)
		}
	})

	t.Run("zero spread with the same amount is zero", func(t *testing.T) {
		ref := tx(9, "A1", 100, 0)
		a, _ := analysis.NewCustomerAnalyzer(ledger.New(rows, now), ref, nil)
		if z := a.PeerProfile(analysis.DimensionRegion).ZScore; z != 0 {
			t.Errorf("expected 0, got %f", z)
		}
	})

	t.Run("missing attribute is an empty profile", func(t *testing.T) {
		ref := tx(9, "A1", 500, 0)
		ref.Occupation = ""
		a, _ := analysis.NewCustomerAnalyzer(ledger.New(rows, now), ref, nil)
		if p := a.PeerProfile(analysis.DimensionOccupation); p != (domain.PeerProfile{}) {
			t.Errorf("expected empty profile, got %+v", p)
		}
	})

	t.Run("unknown account age is an empty profile", func(t *testing.T) {
		ref := tx(9, "A1", 500, 0)
		a, _ := analysis.NewCustomerAnalyzer(ledger.New(rows, now), ref, nil)
		if p := a.PeerProfile(analysis.DimensionAccountAge); p.Count != 0 || p.ZScore != 0 {
			t.Errorf("expected empty profile, got %+v", p)
		}
	})

	t.Run("account age bucket groups peers", func(t *testing.T) {
		opened := now.AddDate(-3, 0, 0)
		aged := make([]domain.TransactionRecord, len(rows))
		copy(aged, rows)
		for i := range aged {
			aged[i].OpenedDate = &opened
			aged[i].Amount = float64(100 * (i + 1))
		}
		ref := tx(9, "A1", 200, 0)
		ref.OpenedDate = &opened

		a, _ := analysis.NewCustomerAnalyzer(ledger.New(aged, now), ref, nil)
		p := a.PeerProfile(analysis.DimensionAccountAge)
		if p.Value != "2 < x < 4" || p.Count != 3 {
			t.Fatalf("unexpected profile %+v", p)
		}
		if p.ZScore != 0 {
			t.Errorf("expected z 0 at the mean, got %f", p.ZScore)
		}
	})
}

func TestKYCUniqueness(t *testing.T) {
	r1 := tx(1, "B1", 10, 30)
	r1.PassportNo = "EP123"
	r2 := tx(2, "B2", 10, 20)
	r2.PassportNo = "EP123"
	r2.FullName = "Someone Else"
	ref := tx(3, "A1", 10, 0)
	ref.PassportNo = "EP123"

	a, _ := analysis.NewCustomerAnalyzer(ledger.New([]domain.TransactionRecord{r1, r2}, now), ref, nil)
	got := a.KYCUniqueness()

	want := domain.KYCUniqueness{PassportMatches: 2, IDCardMatches: 0, FullNameMatches: 1}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestKYCCompletenessRatio_UsesLatestRow(t *testing.T) {
	older := tx(1, "A1", 10, 60)
	older.Email = "a@example.com"
	older.Phone = "+251900000000"
	latest := tx(2, "A1", 10, 10)

	a, _ := analysis.NewCustomerAnalyzer(ledger.New([]domain.TransactionRecord{latest, older}, now), latest, nil)
	if got := a.KYCCompletenessRatio(); !almostEqual(got, 9.0/24.0) {
		t.Errorf("expected 9/24, got %f", got)
	}
}

func TestTimeSeriesGap(t *testing.T) {
	records := []domain.TransactionRecord{
		tx(3, "A1", 10, 0), tx(1, "A1", 10, 180), tx(2, "A1", 10, 120), tx(4, "B1", 10, 90),
	}
	a, _ := analysis.NewCustomerAnalyzer(ledger.New(records, now), records[0], nil)

	got := a.TimeSeriesGap()
	want := []float64{0, 60, 120}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("gap %d: expected %f, got %f", i, want[i], got[i])
		}
	}
}

func TestCustomerReport_ReviewSchedule(t *testing.T) {
	ref := tx(1, "A1", 10, 0)
	a, _ := analysis.NewCustomerAnalyzer(ledger.New([]domain.TransactionRecord{ref}, now), ref, nil)
	r := a.Report()

	if r.Status != analysis.ReviewStatusActive || r.ReviewFrequencyDays != 90 {
		t.Errorf("unexpected review metadata %s / %d", r.Status, r.ReviewFrequencyDays)
	}
	if !r.NextReviewDate.Equal(now.Add(90 * 24 * time.Hour)) {
		t.Errorf("expected next review in 90 days, got %s", r.NextReviewDate)
	}
	if r.AccountAge != -1 {
		t.Errorf("expected unknown account age -1, got %d", r.AccountAge)
	}
}
