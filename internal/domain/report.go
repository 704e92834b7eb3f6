package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// RiskLevel is the discrete band of an overall risk score.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// Elevated reports whether the level is HIGH or CRITICAL.
func (l RiskLevel) Elevated() bool {
	return l == RiskLevelHigh || l == RiskLevelCritical
}

// Ratio is a float that may legitimately hold +Inf.
// JSON has no infinity literal, so +Inf is encoded as the string "Infinity".
type Ratio float64

func (r Ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	if math.IsInf(f, 1) {
		return []byte(`"Infinity"`), nil
	}
	if math.IsNaN(f) || math.IsInf(f, -1) {
		return []byte("0"), nil
	}
	return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s == "Infinity" {
			*r = Ratio(math.Inf(1))
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*r = Ratio(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}

// ============================================================
// Transaction risk
// ============================================================

// TransactionSignals holds the raw signals computed for one reference transaction.
type TransactionSignals struct {
	TimeWindow1h     float64 `json:"time_window_1hr"`
	TimeWindow24h    float64 `json:"time_window_24hr"`
	TimeWindow7d     float64 `json:"time_window_7days"`
	Variance24h      float64 `json:"variance_24hr"`
	Variance7d       float64 `json:"variance_7days"`
	ZScoreIndividual float64 `json:"z_score_individual"`
	ZScoreBranch     float64 `json:"z_score_branch"`
	ZScorePopulation float64 `json:"z_score_population"`

	PercentileBranch          float64 `json:"percentile_branch"`
	PercentileTransactionType float64 `json:"percentile_transaction_type"`

	Frequency1h  int `json:"frequency_1hr"`
	Frequency24h int `json:"frequency_24hr"`
	Frequency7d  int `json:"frequency_7days"`

	TurnoverRatio24h Ratio `json:"turnover_ratio_24hr"`
	TurnoverRatio7d  Ratio `json:"turnover_ratio_7days"`

	LeadingDigitDistribution map[int]float64 `json:"leading_digit_distribution"`
	RoundNumberRatio         float64         `json:"round_number_hoarding"`
	GeographyConcentration   float64         `json:"transaction_geography_risk"`
}

// TransactionRiskReport is the output of the transaction analyzer for one transaction.
type TransactionRiskReport struct {
	ID              string    `json:"id"`
	TransactionID   int64     `json:"transaction_id"`
	FromAccount     string    `json:"from_account"`
	FromName        string    `json:"from_name"`
	ToAccount       string    `json:"to_account"`
	ToName          string    `json:"to_name"`
	Amount          float64   `json:"amount"`
	TransactionType string    `json:"transaction_type"`
	TransactionTime time.Time `json:"transaction_time"`

	TransactionSignals

	OverallRiskScore float64   `json:"overall_risk_score"`
	RiskLevel        RiskLevel `json:"risk_level"`
	ReasonCodes      []string  `json:"reason_codes"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// ============================================================
// Customer risk
// ============================================================

// PeerProfile is the peer-group baseline along one dimension.
type PeerProfile struct {
	Value  string  `json:"value"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Count  int     `json:"count"`
	ZScore float64 `json:"peer_z_score"`
}

// KYCUniqueness counts ledger rows sharing the reference identity values.
type KYCUniqueness struct {
	PassportMatches int `json:"passport_matches"`
	IDCardMatches   int `json:"id_card_matches"`
	FullNameMatches int `json:"full_name_matches"`
}

// ScreeningHit records whether either party matched a screening list.
type ScreeningHit struct {
	AccountHit     bool    `json:"account_hit"`
	BeneficiaryHit bool    `json:"beneficiary_hit"`
	Score          float64 `json:"score"`
}

// Hit reports whether either party matched.
func (h ScreeningHit) Hit() bool {
	return h.AccountHit || h.BeneficiaryHit
}

// CustomerSignals holds the raw signals computed for a customer.
type CustomerSignals struct {
	PeerOccupation PeerProfile `json:"peer_profile_occupation"`
	PeerRegion     PeerProfile `json:"peer_profile_region"`
	PeerAccountAge PeerProfile `json:"peer_profile_account_age"`

	KYCUniqueness        KYCUniqueness `json:"kyc_uniqueness_check"`
	KYCCompletenessRatio float64       `json:"kyc_completeness_ratio"`

	DemographicsHit   bool         `json:"demographics_hit"`
	DemographicsScore float64      `json:"demographics_risk"`
	Sanctions         ScreeningHit `json:"sanctions_screening"`
	Watchlist         ScreeningHit `json:"watchlist_screening"`
	PEP               ScreeningHit `json:"pep_screening"`

	// TimeSeriesGap holds inter-arrival minutes per CustomerSlice row, first row 0.
	TimeSeriesGap []float64 `json:"time_series_gap"`
}

// CustomerRiskReport is the output of the customer analyzer.
type CustomerRiskReport struct {
	ID            string `json:"id"`
	TransactionID int64  `json:"transaction_id"`
	AccountNo     string `json:"account_no"`
	FullName      string `json:"full_name"`
	Occupation    string `json:"occupation"`
	Region        string `json:"region"`
	AccountAge    int    `json:"account_age"`

	CustomerSignals

	// SanctionRiskScore is the sanctions-list score alone; ScreeningRiskScore
	// fuses sanctions, watchlist, PEP and demographics.
	SanctionRiskScore  float64 `json:"sanction_risk_score"`
	ScreeningRiskScore float64 `json:"screening_risk_score"`
	PeerRiskScore      float64 `json:"peer_risk_score"`
	KYCRiskScore       float64 `json:"kyc_risk_score"`
	TemporalRiskScore  float64 `json:"temporal_risk_score"`

	OverallRiskScore float64   `json:"overall_risk_score"`
	RiskLevel        RiskLevel `json:"risk_level"`
	ReasonCodes      []string  `json:"reason_codes"`

	Status              string    `json:"status"`
	ReviewFrequencyDays int       `json:"review_frequency_days"`
	LastReviewDate      time.Time `json:"last_review_date"`
	NextReviewDate      time.Time `json:"next_review_date"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// Assessment pairs both reports produced for one transaction.
type Assessment struct {
	ID          string                 `json:"id"`
	Transaction *TransactionRiskReport `json:"transaction_risk"`
	Customer    *CustomerRiskReport    `json:"customer_risk"`
}

// RescoreResult summarises a full-ledger rescoring run.
type RescoreResult struct {
	RunID      string            `json:"run_id"`
	Scored     int               `json:"scored"`
	Failed     int               `json:"failed"`
	ByLevel    map[RiskLevel]int `json:"by_level"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}
