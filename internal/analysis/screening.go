package analysis

import (
	"strings"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
)

// NameList is a screening list (sanctions, watchlist or PEP) indexed for
// case-insensitive exact full-name lookup.
type NameList struct {
	names map[string]struct{}
}

// NewNameList indexes entries by upper(first + " " + last).
func NewNameList(entries []domain.ScreenedName) *NameList {
	l := &NameList{names: make(map[string]struct{}, len(entries))}
	for _, e := range entries {
		key := normalizeName(e.FirstName + " " + e.LastName)
		if key == "" {
			continue
		}
		l.names[key] = struct{}{}
	}
	return l
}

// Matches reports whether fullName equals a listed name, ignoring case and
// surrounding whitespace. An empty name never matches.
func (l *NameList) Matches(fullName string) bool {
	if l == nil {
		return false
	}
	key := normalizeName(fullName)
	if key == "" {
		return false
	}
	_, ok := l.names[key]
	return ok
}

// Len returns the number of distinct names.
func (l *NameList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.names)
}

// CountryList is the set of high-risk countries.
type CountryList struct {
	countries map[string]struct{}
}

// NewCountryList indexes country names case-insensitively.
func NewCountryList(countries []string) *CountryList {
	l := &CountryList{countries: make(map[string]struct{}, len(countries))}
	for _, c := range countries {
		if key := normalizeName(c); key != "" {
			l.countries[key] = struct{}{}
		}
	}
	return l
}

// Contains reports whether country is listed.
func (l *CountryList) Contains(country string) bool {
	if l == nil {
		return false
	}
	key := normalizeName(country)
	if key == "" {
		return false
	}
	_, ok := l.countries[key]
	return ok
}

// Screening holds every reference list a customer assessment reads.
type Screening struct {
	Sanctions         *NameList
	Watchlist         *NameList
	PEP               *NameList
	HighRiskCountries *CountryList
}

// NewScreening indexes the raw lists.
func NewScreening(data domain.ScreeningData) *Screening {
	return &Screening{
		Sanctions:         NewNameList(data.Sanctions),
		Watchlist:         NewNameList(data.Watchlist),
		PEP:               NewNameList(data.PEP),
		HighRiskCountries: NewCountryList(data.HighRiskCountries),
	}
}

func normalizeName(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func screen(list *NameList, ref *domain.TransactionRecord) domain.ScreeningHit {
	hit := domain.ScreeningHit{
		AccountHit:     list.Matches(ref.FullName),
		BeneficiaryHit: list.Matches(ref.BenFullName),
	}
	if hit.Hit() {
		hit.Score = 100
	}
	return hit
}
