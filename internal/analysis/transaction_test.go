package analysis_test

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/aml-risk-engine/internal/analysis"
	"github.com/boddenberg/aml-risk-engine/internal/domain"
	"github.com/boddenberg/aml-risk-engine/internal/ledger"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func tx(id int64, account string, amount float64, minutesAgo int) domain.TransactionRecord {
	return domain.TransactionRecord{
		ID:              id,
		AccountNo:       account,
		BenAccountNo:    "BEN-" + account,
		Amount:          amount,
		TransactionType: "TRANSFER",
		Timestamp:       now.Add(-time.Duration(minutesAgo) * time.Minute),
		BranchName:      "Bole",
		FullName:        "Abebe Kebede",
		BenFullName:     "Almaz Tesfaye",
		Occupation:      "Merchant",
		Region:          "Addis Ababa",
		BenRegion:       "Oromia",
	}
}

func hasReason(reasons []string, code string) bool {
	for _, r := range reasons {
		if strings.HasPrefix(r, code+":") {
			return true
		}
	}
	return false
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewTransactionAnalyzer_NilLedger(t *testing.T) {
	_, err := analysis.NewTransactionAnalyzer(nil, tx(1, "A1", 10, 0))
	if !errors.Is(err, domain.ErrNoLedger) {
		t.Fatalf("expected ErrNoLedger, got %v", err)
	}
}

func TestTransactionAnalyzer_WindowsAndZScore(t *testing.T) {
	ref := tx(5, "A1", 500, 0)
	l := ledger.New([]domain.TransactionRecord{
		tx(1, "A1", 100, 300),
		tx(2, "A1", 100, 240),
		tx(3, "A1", 100, 180),
		tx(4, "A1", 100, 120),
		ref,
	}, now)

	a, err := analysis.NewTransactionAnalyzer(l, ref)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	s := a.Signals()

	if s.TimeWindow1h != 500 {
		t.Errorf("expected time_window_1hr 500, got %f", s.TimeWindow1h)
	}
	if s.Frequency1h != 1 {
		t.Errorf("expected frequency_1hr 1, got %d", s.Frequency1h)
	}
	if s.TimeWindow24h != 900 || s.Frequency24h != 5 {
		t.Errorf("expected 24h sum 900 over 5 rows, got %f over %d", s.TimeWindow24h, s.Frequency24h)
	}
	wantZ := (500.0 - 180.0) / math.Sqrt(32000)
	if !almostEqual(s.ZScoreIndividual, wantZ) {
		t.Errorf("expected z_score_individual %f, got %f", wantZ, s.ZScoreIndividual)
	}
	if s.Variance24h != 32000 {
		t.Errorf("expected variance_24hr 32000, got %f", s.Variance24h)
	}
	if s.PercentileBranch != 80 {
		t.Errorf("expected percentile_branch 80, got %f", s.PercentileBranch)
	}
}

func TestTransactionAnalyzer_ReportIsDeterministic(t *testing.T) {
	ref := tx(5, "A1", 500, 0)
	records := []domain.TransactionRecord{
		tx(1, "A1", 120, 300), tx(2, "B1", 75, 200), tx(3, "A1", 980, 45), ref,
	}

	first, err := analysis.NewTransactionAnalyzer(ledger.New(records, now), ref)
	if err != nil {
		t.Fatal(err)
	}
	second, err := analysis.NewTransactionAnalyzer(ledger.New(records, now), ref)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first.Report(), second.Report()) {
		t.Error("expected identical reports for identical inputs")
	}
}

func TestTurnoverRatio(t *testing.T) {
	ref := tx(10, "A1", 50, 0)

	t.Run("inbound only is infinite", func(t *testing.T) {
		inbound := tx(1, "B1", 700, 30)
		inbound.BenAccountNo = "A1"
		a, _ := analysis.NewTransactionAnalyzer(ledger.New([]domain.TransactionRecord{inbound}, now), ref)

		if got := a.TurnoverRatio(analysis.Window24h); !math.IsInf(got, 1) {
			t.Errorf("expected +Inf, got %f", got)
		}
	})

	t.Run("no activity is zero", func(t *testing.T) {
		a, _ := analysis.NewTransactionAnalyzer(ledger.New([]domain.TransactionRecord{tx(1, "B1", 700, 30)}, now), ref)
		if got := a.TurnoverRatio(analysis.Window24h); got != 0 {
			t.Errorf("expected 0, got %f", got)
		}
	})

	t.Run("empty ledger is zero", func(t *testing.T) {
		a, _ := analysis.NewTransactionAnalyzer(ledger.New(nil, now), ref)
		if got := a.TurnoverRatio(analysis.Window7d); got != 0 {
			t.Errorf("expected 0, got %f", got)
		}
	})

	t.Run("ratio of inbound to own volume", func(t *testing.T) {
		inbound := tx(1, "B1", 300, 30)
		inbound.BenAccountNo = "A1"
		own := tx(2, "A1", 600, 20)
		a, _ := analysis.NewTransactionAnalyzer(ledger.New([]domain.TransactionRecord{inbound, own}, now), ref)
		if got := a.TurnoverRatio(analysis.Window24h); got != 0.5 {
			t.Errorf("expected 0.5, got %f", got)
		}
	})
}

func TestRoundNumberRatio_Structuring(t *testing.T) {
	records := make([]domain.TransactionRecord, 0, 20)
	for i := 0; i < 20; i++ {
		amount := float64(100 * (i + 1))
		if i >= 16 {
			amount = 123.45
		}
		records = append(records, tx(int64(i+1), "A1", amount, 60*24*30-i*60))
	}
	ref := records[len(records)-1]

	a, _ := analysis.NewTransactionAnalyzer(ledger.New(records, now), ref)
	s := a.Signals()

	if !almostEqual(s.RoundNumberRatio, 0.8) {
		t.Fatalf("expected round_number_ratio 0.8, got %f", s.RoundNumberRatio)
	}
	score := analysis.FuseTransactionRisk(s)
	if !almostEqual(score.Round, 80) {
		t.Errorf("expected score_round 80, got %f", score.Round)
	}
	if !hasReason(score.Reasons, analysis.ReasonStruct) {
		t.Errorf("expected %s in %v", analysis.ReasonStruct, score.Reasons)
	}
}

func TestGeographyConcentration(t *testing.T) {
	r1 := tx(1, "A1", 10, 30)
	r2 := tx(2, "A1", 10, 20)
	r2.BenRegion = "Amhara"
	ref := tx(3, "A1", 10, 0)

	a, _ := analysis.NewTransactionAnalyzer(ledger.New([]domain.TransactionRecord{r1, r2, ref}, now), ref)
	if got := a.GeographyConcentration(); !almostEqual(got, 2.0/3.0) {
		t.Errorf("expected 2/3, got %f", got)
	}

	ref.BenRegion = ""
	a, _ = analysis.NewTransactionAnalyzer(ledger.New([]domain.TransactionRecord{r1, r2}, now), ref)
	if got := a.GeographyConcentration(); got != 0 {
		t.Errorf("expected 0 for missing region, got %f", got)
	}
}

func TestTransactionAnalyzer_EmptyLedger(t *testing.T) {
	ref := tx(1, "A1", 250, 0)
	a, err := analysis.NewTransactionAnalyzer(ledger.New(nil, now), ref)
	if err != nil {
		t.Fatal(err)
	}
	r := a.Report()

	if r.ZScoreIndividual != 0 || r.ZScoreBranch != 0 || r.ZScorePopulation != 0 {
		t.Errorf("expected zero z-scores, got %+v", r.TransactionSignals)
	}
	if r.PercentileBranch != 0 || r.RoundNumberRatio != 0 || len(r.LeadingDigitDistribution) != 0 {
		t.Errorf("expected zero-valued signals, got %+v", r.TransactionSignals)
	}
	if r.RiskLevel != domain.RiskLevelLow {
		t.Errorf("expected LOW, got %s", r.RiskLevel)
	}
	if r.ReasonCodes == nil {
		t.Error("expected non-nil reason codes")
	}
}
