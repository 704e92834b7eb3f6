package domain

// ScreenedName is one entry of a sanctions, watchlist or PEP list.
type ScreenedName struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ScreeningData bundles the reference lists a customer assessment reads.
type ScreeningData struct {
	Sanctions         []ScreenedName `json:"sanctions"`
	Watchlist         []ScreenedName `json:"watchlist"`
	PEP               []ScreenedName `json:"pep"`
	HighRiskCountries []string       `json:"high_risk_countries"`
}
