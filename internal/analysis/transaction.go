// Package analysis implements the transaction and customer risk analyzers and
// the fusion rules that turn their signals into scores.
package analysis

import (
	"math"
	"time"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
	"github.com/boddenberg/aml-risk-engine/internal/ledger"
	"github.com/boddenberg/aml-risk-engine/internal/stats"
)

// Analysis windows.
const (
	Window1h  = time.Hour
	Window24h = 24 * time.Hour
	Window7d  = 168 * time.Hour
)

// roundNumberBase is the divisor used by the round-number check.
const roundNumberBase = 100

// TransactionAnalyzer computes transaction-level signals for one reference
// transaction against a ledger snapshot.
type TransactionAnalyzer struct {
	ledger   *ledger.Ledger
	customer *ledger.Ledger
	ref      domain.TransactionRecord
}

// NewTransactionAnalyzer prepares ref against l and derives the customer slice.
func NewTransactionAnalyzer(l *ledger.Ledger, ref domain.TransactionRecord) (*TransactionAnalyzer, error) {
	if l == nil {
		return nil, domain.ErrNoLedger
	}
	ref = ledger.Prepare(ref, l.Now())
	return &TransactionAnalyzer{
		ledger:   l,
		customer: l.ByAccount(ref.AccountNo),
		ref:      ref,
	}, nil
}

// Reference returns the prepared reference transaction.
func (a *TransactionAnalyzer) Reference() domain.TransactionRecord { return a.ref }

// CustomerSlice returns the reference account's rows.
func (a *TransactionAnalyzer) CustomerSlice() *ledger.Ledger { return a.customer }

// TimeWindowSum sums the customer's amounts in (ref-d, ref].
func (a *TransactionAnalyzer) TimeWindowSum(d time.Duration) float64 {
	return stats.RollingWindow(a.customer.Points(), a.ref.Timestamp, d, stats.Sum)
}

// Variance is the sample variance of the customer's amounts in (ref-d, ref].
func (a *TransactionAnalyzer) Variance(d time.Duration) float64 {
	return stats.RollingWindow(a.customer.Points(), a.ref.Timestamp, d, stats.Variance)
}

// Frequency counts the customer's transactions in (ref-d, ref].
func (a *TransactionAnalyzer) Frequency(d time.Duration) int {
	return int(stats.RollingWindow(a.customer.Points(), a.ref.Timestamp, d, stats.Count))
}

func zscoreAgainst(amount float64, population []float64) float64 {
	if len(population) == 0 {
		return 0
	}
	return stats.ZScore(amount, stats.Mean(population), stats.Std(population))
}

// ZScoreIndividual scores the amount against the customer's own history.
func (a *TransactionAnalyzer) ZScoreIndividual() float64 {
	return zscoreAgainst(a.ref.Amount, a.customer.Amounts())
}

// ZScoreBranch scores the amount against rows from the same branch.
func (a *TransactionAnalyzer) ZScoreBranch() float64 {
	if a.ref.BranchName == "" {
		return 0
	}
	return zscoreAgainst(a.ref.Amount, a.byBranch().Amounts())
}

// ZScorePopulation scores the amount against the whole ledger.
func (a *TransactionAnalyzer) ZScorePopulation() float64 {
	return zscoreAgainst(a.ref.Amount, a.ledger.Amounts())
}

// PercentileBranch ranks the amount inside the reference branch.
func (a *TransactionAnalyzer) PercentileBranch() float64 {
	if a.ref.BranchName == "" {
		return 0
	}
	return stats.PercentileRank(a.ref.Amount, a.byBranch().Amounts())
}

// PercentileTransactionType ranks the amount among rows of the same type.
func (a *TransactionAnalyzer) PercentileTransactionType() float64 {
	if a.ref.TransactionType == "" {
		return 0
	}
	rows := a.ledger.Filter(func(r *domain.TransactionRecord) bool {
		return r.TransactionType == a.ref.TransactionType
	})
	return stats.PercentileRank(a.ref.Amount, rows.Amounts())
}

func (a *TransactionAnalyzer) byBranch() *ledger.Ledger {
	return a.ledger.Filter(func(r *domain.TransactionRecord) bool {
		return r.BranchName == a.ref.BranchName
	})
}

// TurnoverRatio divides inbound volume to the reference account (debit) by the
// account's own volume (credit) over (ref-d, ref]. Zero credit yields +Inf when
// there is debit and 0 otherwise.
func (a *TransactionAnalyzer) TurnoverRatio(d time.Duration) float64 {
	if a.ledger.Empty() {
		return 0
	}
	debit := stats.Sum(a.ledger.Window(a.ref.Timestamp, d).ByBeneficiaryAccount(a.ref.AccountNo).Amounts())
	credit := a.TimeWindowSum(d)
	if credit == 0 {
		if debit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return stats.Sanitize(debit / credit)
}

// LeadingDigitDistribution is the leading-digit share over the customer slice.
func (a *TransactionAnalyzer) LeadingDigitDistribution() map[int]float64 {
	return stats.LeadingDigitDistribution(a.customer.Amounts())
}

// RoundNumberRatio is the share of customer amounts that are multiples of 100.
func (a *TransactionAnalyzer) RoundNumberRatio() float64 {
	if a.customer.Empty() {
		return 0
	}
	n := a.customer.Count(func(r *domain.TransactionRecord) bool {
		return stats.IsMultipleOf(r.Amount, roundNumberBase)
	})
	return float64(n) / float64(a.customer.Len())
}

// GeographyConcentration is the share of customer rows sent to the reference
// beneficiary region.
func (a *TransactionAnalyzer) GeographyConcentration() float64 {
	if a.customer.Empty() || a.ref.BenRegion == "" {
		return 0
	}
	n := a.customer.Count(func(r *domain.TransactionRecord) bool {
		return r.BenRegion == a.ref.BenRegion
	})
	return float64(n) / float64(a.customer.Len())
}

// Signals computes every transaction signal.
func (a *TransactionAnalyzer) Signals() domain.TransactionSignals {
	return domain.TransactionSignals{
		TimeWindow1h:              a.TimeWindowSum(Window1h),
		TimeWindow24h:             a.TimeWindowSum(Window24h),
		TimeWindow7d:              a.TimeWindowSum(Window7d),
		Variance24h:               a.Variance(Window24h),
		Variance7d:                a.Variance(Window7d),
		ZScoreIndividual:          a.ZScoreIndividual(),
		ZScoreBranch:              a.ZScoreBranch(),
		ZScorePopulation:          a.ZScorePopulation(),
		PercentileBranch:          a.PercentileBranch(),
		PercentileTransactionType: a.PercentileTransactionType(),
		Frequency1h:               a.Frequency(Window1h),
		Frequency24h:              a.Frequency(Window24h),
		Frequency7d:               a.Frequency(Window7d),
		TurnoverRatio24h:          domain.Ratio(a.TurnoverRatio(Window24h)),
		TurnoverRatio7d:           domain.Ratio(a.TurnoverRatio(Window7d)),
		LeadingDigitDistribution:  a.LeadingDigitDistribution(),
		RoundNumberRatio:          a.RoundNumberRatio(),
		GeographyConcentration:    a.GeographyConcentration(),
	}
}

// Report computes the signals, fuses them and returns the transaction report.
// The ID is left for the caller to assign.
func (a *TransactionAnalyzer) Report() *domain.TransactionRiskReport {
	signals := a.Signals()
	score := FuseTransactionRisk(signals)
	return &domain.TransactionRiskReport{
		TransactionID:      a.ref.ID,
		FromAccount:        a.ref.AccountNo,
		FromName:           a.ref.FullName,
		ToAccount:          a.ref.BenAccountNo,
		ToName:             a.ref.BenFullName,
		Amount:             a.ref.Amount,
		TransactionType:    a.ref.TransactionType,
		TransactionTime:    a.ref.Timestamp,
		TransactionSignals: signals,
		OverallRiskScore:   score.Total,
		RiskLevel:          score.Level,
		ReasonCodes:        score.Reasons,
		GeneratedAt:        a.ledger.Now(),
	}
}
