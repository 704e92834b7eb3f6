package domain

import "time"

// ============================================================
// Customer behaviour profiles (batch output)
// ============================================================

// WindowPoint is one value of a trailing-window series, keyed by the
// timestamp of the transaction that closes the window.
type WindowPoint struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

// GapPoint is the delay in minutes between a transaction and its predecessor.
type GapPoint struct {
	At      time.Time `json:"at"`
	Minutes float64   `json:"minutes"`
}

// CategoryCount is a category with its occurrence count.
type CategoryCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// CustomerProfile is the per-account behaviour profile.
type CustomerProfile struct {
	AccountNo string  `json:"account_no"`
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
	Count     int     `json:"count"`

	Frequency1h     []WindowPoint `json:"frequency_1h"`
	Volume1h        []WindowPoint `json:"volume_1h"`
	Frequency24h    []WindowPoint `json:"frequency_24h"`
	Volume24h       []WindowPoint `json:"volume_24h"`
	MaxFrequency1h  float64       `json:"max_frequency_1h"`
	MaxVolume1h     float64       `json:"max_volume_1h"`
	MaxFrequency24h float64       `json:"max_frequency_24h"`
	MaxVolume24h    float64       `json:"max_volume_24h"`

	PreferredBranches map[string]int `json:"preferred_branches"`
	TransactionTypes  map[string]int `json:"transaction_types"`
	Destinations      map[string]int `json:"frequent_destinations"`

	TimeGaps       []GapPoint `json:"time_gaps"`
	MinGapMinutes  float64    `json:"min_gap_minutes"`
	MaxGapMinutes  float64    `json:"max_gap_minutes"`
	MeanGapMinutes float64    `json:"mean_gap_minutes"`

	LastTransaction time.Time `json:"last_transaction"`

	TopBeneficiaries       []CategoryCount `json:"top_beneficiaries"`
	UnknownBeneficiaryRisk float64         `json:"unknown_beneficiary_risk"`

	AccountAgeDays   int     `json:"account_age_days"`
	AccountAgeYears  float64 `json:"account_age_years"`
	AccountAgeBucket string  `json:"account_age_bucket"`
}

// OccupationSummary is the population amount profile for one occupation.
type OccupationSummary struct {
	Occupation string  `json:"occupation"`
	Mean       float64 `json:"mean"`
	Std        float64 `json:"std"`
	Count      int     `json:"count"`
}

// AccountAgeSummary is the population profile for one account-age bucket.
type AccountAgeSummary struct {
	Bucket     string  `json:"bucket"`
	MeanAge    float64 `json:"mean_age"`
	MeanAmount float64 `json:"mean_amount"`
	Std        float64 `json:"std"`
	Count      int     `json:"count"`
}

// ProfileBatch is everything one profiler run produces.
type ProfileBatch struct {
	RunID       string              `json:"run_id"`
	GeneratedAt time.Time           `json:"generated_at"`
	Customers   []CustomerProfile   `json:"customers"`
	Occupations []OccupationSummary `json:"occupations"`
	AccountAges []AccountAgeSummary `json:"account_ages"`
}

// ProfileRunSummary is returned to callers of a profile rebuild.
type ProfileRunSummary struct {
	RunID       string    `json:"run_id"`
	Customers   int       `json:"customers"`
	Occupations int       `json:"occupations"`
	AccountAges int       `json:"account_ages"`
	GeneratedAt time.Time `json:"generated_at"`
}
