// Package profiler builds per-account behaviour profiles and the population
// summaries that go with them from a full ledger snapshot.
package profiler

import (
	"sort"
	"time"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
	"github.com/boddenberg/aml-risk-engine/internal/ledger"
	"github.com/boddenberg/aml-risk-engine/internal/stats"
)

// Trailing window lengths for the frequency and volume series.
const (
	Window1h  = time.Hour
	Window24h = 24 * time.Hour
)

// noGap marks gap statistics for accounts with a single transaction.
const noGap = -1

// Build profiles every account in l. Customers are ordered by transaction
// count, busiest first; ties break on account number.
func Build(l *ledger.Ledger) *domain.ProfileBatch {
	batch := &domain.ProfileBatch{
		GeneratedAt: l.Now(),
		Customers:   []domain.CustomerProfile{},
	}

	accounts, groups := l.GroupBy(func(r *domain.TransactionRecord) string { return r.AccountNo })
	for _, acc := range accounts {
		if acc == "" {
			continue
		}
		batch.Customers = append(batch.Customers, Customer(acc, groups[acc]))
	}
	sort.SliceStable(batch.Customers, func(i, j int) bool {
		return batch.Customers[i].Count > batch.Customers[j].Count
	})

	batch.Occupations = Occupations(l)
	batch.AccountAges = AccountAges(batch.Customers, groups)
	return batch
}

// Customer profiles one account. rows must hold only that account's
// transactions; the ledger keeps them in timestamp order.
func Customer(accountNo string, rows *ledger.Ledger) domain.CustomerProfile {
	amounts := rows.Amounts()
	p := domain.CustomerProfile{
		AccountNo:         accountNo,
		Mean:              stats.Round(stats.Mean(amounts), 2),
		Std:               stats.Round(stats.Std(amounts), 2),
		Count:             rows.Len(),
		PreferredBranches: map[string]int{},
		TransactionTypes:  map[string]int{},
		Destinations:      map[string]int{},
	}

	points := rows.Points()
	p.Frequency1h, p.MaxFrequency1h = series(points, Window1h, stats.Count)
	p.Volume1h, p.MaxVolume1h = series(points, Window1h, stats.Sum)
	p.Frequency24h, p.MaxFrequency24h = series(points, Window24h, stats.Count)
	p.Volume24h, p.MaxVolume24h = series(points, Window24h, stats.Sum)

	beneficiaries := map[string]int{}
	var opened *time.Time
	rows.Each(func(r *domain.TransactionRecord) {
		tally(p.PreferredBranches, r.BranchName)
		tally(p.TransactionTypes, r.TransactionType)
		tally(p.Destinations, r.BenWoreda)
		tally(beneficiaries, r.BenAccountNo)
		if r.OpenedDate != nil && (opened == nil || r.OpenedDate.Before(*opened)) {
			opened = r.OpenedDate
		}
	})

	p.TimeGaps, p.MinGapMinutes, p.MaxGapMinutes, p.MeanGapMinutes = gaps(rows.Timestamps())
	if last, ok := rows.Latest(); ok {
		p.LastTransaction = last.Timestamp
	}

	p.TopBeneficiaries = ranked(beneficiaries)
	p.UnknownBeneficiaryRisk = stats.Round(unknownBeneficiaryRisk(beneficiaries), 2)

	p.AccountAgeDays = ledger.AccountAgeDays(opened, rows.Now())
	p.AccountAgeBucket = ledger.AgeBucket(p.AccountAgeDays)
	if p.AccountAgeDays >= 0 {
		p.AccountAgeYears = stats.Round(ledger.AgeYears(p.AccountAgeDays), 2)
	} else {
		p.AccountAgeYears = noGap
	}
	return p
}

func series(points []stats.Point, window time.Duration, fn stats.Aggregator) ([]domain.WindowPoint, float64) {
	values := stats.TrailingWindows(points, window, fn)
	out := make([]domain.WindowPoint, len(values))
	var max float64
	for i, v := range values {
		v = stats.Round(v, 2)
		out[i] = domain.WindowPoint{At: points[i].At, Value: v}
		if v > max {
			max = v
		}
	}
	return out, max
}

func tally(m map[string]int, key string) {
	if key != "" {
		m[key]++
	}
}

// gaps returns the delay before every transaction but the first, with
// min/max/mean in minutes. An account without gaps reports -1 for each.
func gaps(ts []time.Time) ([]domain.GapPoint, float64, float64, float64) {
	out := make([]domain.GapPoint, 0, len(ts))
	minutes := make([]float64, 0, len(ts))
	for i := 1; i < len(ts); i++ {
		m := ts[i].Sub(ts[i-1]).Minutes()
		out = append(out, domain.GapPoint{At: ts[i], Minutes: stats.Round(m, 2)})
		minutes = append(minutes, m)
	}
	if len(minutes) == 0 {
		return out, noGap, noGap, noGap
	}
	lo, hi := minutes[0], minutes[0]
	for _, m := range minutes[1:] {
		if m < lo {
			lo = m
		}
		if m > hi {
			hi = m
		}
	}
	return out, stats.Round(lo, 2), stats.Round(hi, 2), stats.Round(stats.Mean(minutes), 2)
}

// ranked orders categories by count descending, then key ascending.
func ranked(counts map[string]int) []domain.CategoryCount {
	out := make([]domain.CategoryCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, domain.CategoryCount{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// unknownBeneficiaryRisk is the share of beneficiaries paid exactly once,
// scaled by the number of transactions to beneficiaries.
func unknownBeneficiaryRisk(counts map[string]int) float64 {
	if len(counts) == 0 {
		return 0
	}
	once, total := 0, 0
	for _, c := range counts {
		if c == 1 {
			once++
		}
		total += c
	}
	return float64(once) / float64(len(counts)) * float64(total)
}

// Occupations summarises amounts per occupation, busiest first.
func Occupations(l *ledger.Ledger) []domain.OccupationSummary {
	keys, groups := l.GroupBy(func(r *domain.TransactionRecord) string { return r.Occupation })
	out := make([]domain.OccupationSummary, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		amounts := groups[k].Amounts()
		out = append(out, domain.OccupationSummary{
			Occupation: k,
			Mean:       stats.Round(stats.Mean(amounts), 2),
			Std:        stats.Round(stats.Std(amounts), 2),
			Count:      len(amounts),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// AccountAges summarises accounts per age bucket in bucket order. Accounts
// with an unknown opened date are left out.
func AccountAges(customers []domain.CustomerProfile, groups map[string]*ledger.Ledger) []domain.AccountAgeSummary {
	type acc struct {
		years, meanAmount []float64
	}
	byBucket := map[string]*acc{}
	for _, c := range customers {
		if c.AccountAgeBucket == "" {
			continue
		}
		b, ok := byBucket[c.AccountAgeBucket]
		if !ok {
			b = &acc{}
			byBucket[c.AccountAgeBucket] = b
		}
		b.years = append(b.years, ledger.AgeYears(c.AccountAgeDays))
		b.meanAmount = append(b.meanAmount, stats.Mean(groups[c.AccountNo].Amounts()))
	}

	out := make([]domain.AccountAgeSummary, 0, len(byBucket))
	for _, bucket := range ledger.AgeBuckets() {
		b, ok := byBucket[bucket]
		if !ok {
			continue
		}
		out = append(out, domain.AccountAgeSummary{
			Bucket:     bucket,
			MeanAge:    stats.Round(stats.Mean(b.years), 2),
			MeanAmount: stats.Round(stats.Mean(b.meanAmount), 2),
			Std:        stats.Round(stats.Std(b.meanAmount), 2),
			Count:      len(b.years),
		})
	}
	return out
}
