package analysis

import (
	"time"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
	"github.com/boddenberg/aml-risk-engine/internal/ledger"
	"github.com/boddenberg/aml-risk-engine/internal/stats"
)

// Review metadata attached to every customer report.
const (
	ReviewStatusActive  = "ACTIVE"
	ReviewFrequencyDays = 90
)

// Dimension selects the attribute a peer group is built on.
type Dimension int

const (
	DimensionOccupation Dimension = iota
	DimensionRegion
	DimensionAccountAge
)

func (d Dimension) String() string {
	switch d {
	case DimensionOccupation:
		return "occupation"
	case DimensionRegion:
		return "region"
	case DimensionAccountAge:
		return "account_age_bucket"
	default:
		return "unknown"
	}
}

func (d Dimension) key(r *domain.TransactionRecord) string {
	switch d {
	case DimensionOccupation:
		return r.Occupation
	case DimensionRegion:
		return r.Region
	case DimensionAccountAge:
		if !r.HasAccountAge() {
			return ""
		}
		return ledger.AgeBucket(r.AccountAgeDays)
	default:
		return ""
	}
}

// CustomerAnalyzer computes customer-level signals for the account behind a
// reference transaction.
type CustomerAnalyzer struct {
	ledger    *ledger.Ledger
	customer  *ledger.Ledger
	ref       domain.TransactionRecord
	screening *Screening
}

// NewCustomerAnalyzer prepares ref against l. A nil screening behaves as
// empty lists.
func NewCustomerAnalyzer(l *ledger.Ledger, ref domain.TransactionRecord, screening *Screening) (*CustomerAnalyzer, error) {
	if l == nil {
		return nil, domain.ErrNoLedger
	}
	if screening == nil {
		screening = NewScreening(domain.ScreeningData{})
	}
	ref = ledger.Prepare(ref, l.Now())
	return &CustomerAnalyzer{
		ledger:    l,
		customer:  l.ByAccount(ref.AccountNo),
		ref:       ref,
		screening: screening,
	}, nil
}

// PeerProfile compares the reference amount with ledger rows that share the
// reference value on dim. A missing reference value or empty peer group
// yields a zero profile.
func (a *CustomerAnalyzer) PeerProfile(dim Dimension) domain.PeerProfile {
	value := dim.key(&a.ref)
	profile := domain.PeerProfile{Value: value}
	if value == "" {
		return profile
	}
	peers := a.ledger.Filter(func(r *domain.TransactionRecord) bool {
		return dim.key(r) == value
	})
	if peers.Empty() {
		return profile
	}
	amounts := peers.Amounts()
	profile.Mean = stats.Mean(amounts)
	profile.Std = stats.Std(amounts)
	profile.Count = len(amounts)
	profile.ZScore = stats.PeerZScore(a.ref.Amount, profile.Mean, profile.Std)
	return profile
}

// KYCUniqueness counts ledger rows sharing the reference passport, ID card and
// full name. Empty reference values count 0.
func (a *CustomerAnalyzer) KYCUniqueness() domain.KYCUniqueness {
	countEq := func(want string, field func(r *domain.TransactionRecord) string) int {
		if want == "" {
			return 0
		}
		return a.ledger.Count(func(r *domain.TransactionRecord) bool { return field(r) == want })
	}
	return domain.KYCUniqueness{
		PassportMatches: countEq(a.ref.PassportNo, func(r *domain.TransactionRecord) string { return r.PassportNo }),
		IDCardMatches:   countEq(a.ref.IDCardNo, func(r *domain.TransactionRecord) string { return r.IDCardNo }),
		FullNameMatches: countEq(a.ref.FullName, func(r *domain.TransactionRecord) string { return r.FullName }),
	}
}

// KYCCompletenessRatio is the filled share of KYC fields on the customer's
// most recent row, 0 when the customer has no rows.
func (a *CustomerAnalyzer) KYCCompletenessRatio() float64 {
	latest, ok := a.customer.Latest()
	if !ok {
		return 0
	}
	return float64(latest.KYCFilled()) / float64(domain.KYCFieldCount)
}

// DemographicsRisk flags a beneficiary region or country on the high-risk list.
func (a *CustomerAnalyzer) DemographicsRisk() (bool, float64) {
	hrc := a.screening.HighRiskCountries
	if hrc.Contains(a.ref.BenRegion) || hrc.Contains(a.ref.BenCountry) {
		return true, 100
	}
	return false, 0
}

// SanctionsHit screens both parties against the sanctions list.
func (a *CustomerAnalyzer) SanctionsHit() domain.ScreeningHit {
	return screen(a.screening.Sanctions, &a.ref)
}

// WatchlistHit screens both parties against the watchlist.
func (a *CustomerAnalyzer) WatchlistHit() domain.ScreeningHit {
	return screen(a.screening.Watchlist, &a.ref)
}

// PEPHit screens both parties against the PEP list.
func (a *CustomerAnalyzer) PEPHit() domain.ScreeningHit {
	return screen(a.screening.PEP, &a.ref)
}

// TimeSeriesGap returns minutes since the previous customer transaction for
// each customer row; the first row is 0.
func (a *CustomerAnalyzer) TimeSeriesGap() []float64 {
	ts := a.customer.Timestamps()
	gaps := make([]float64, len(ts))
	for i := 1; i < len(ts); i++ {
		gaps[i] = ts[i].Sub(ts[i-1]).Minutes()
	}
	return gaps
}

// Signals computes every customer signal.
func (a *CustomerAnalyzer) Signals() domain.CustomerSignals {
	demoHit, demoScore := a.DemographicsRisk()
	return domain.CustomerSignals{
		PeerOccupation:       a.PeerProfile(DimensionOccupation),
		PeerRegion:           a.PeerProfile(DimensionRegion),
		PeerAccountAge:       a.PeerProfile(DimensionAccountAge),
		KYCUniqueness:        a.KYCUniqueness(),
		KYCCompletenessRatio: a.KYCCompletenessRatio(),
		DemographicsHit:      demoHit,
		DemographicsScore:    demoScore,
		Sanctions:            a.SanctionsHit(),
		Watchlist:            a.WatchlistHit(),
		PEP:                  a.PEPHit(),
		TimeSeriesGap:        a.TimeSeriesGap(),
	}
}

// Report computes the signals, fuses them and returns the customer report.
// The ID is left for the caller to assign.
func (a *CustomerAnalyzer) Report() *domain.CustomerRiskReport {
	signals := a.Signals()
	score := FuseCustomerRisk(signals)
	now := a.ledger.Now()
	return &domain.CustomerRiskReport{
		TransactionID:       a.ref.ID,
		AccountNo:           a.ref.AccountNo,
		FullName:            a.ref.FullName,
		Occupation:          a.ref.Occupation,
		Region:              a.ref.Region,
		AccountAge:          a.ref.AccountAgeDays,
		CustomerSignals:     signals,
		SanctionRiskScore:   signals.Sanctions.Score,
		ScreeningRiskScore:  score.Sanction,
		PeerRiskScore:       score.Peer,
		KYCRiskScore:        score.KYC,
		TemporalRiskScore:   score.Temporal,
		OverallRiskScore:    score.Total,
		RiskLevel:           score.Level,
		ReasonCodes:         score.Reasons,
		Status:              ReviewStatusActive,
		ReviewFrequencyDays: ReviewFrequencyDays,
		LastReviewDate:      now,
		NextReviewDate:      now.Add(ReviewFrequencyDays * 24 * time.Hour),
		GeneratedAt:         now,
	}
}
