// Package ledger provides an immutable, time-ordered view over transaction
// records together with the filtered and windowed sub-views the analyzers use.
package ledger

import (
	"math"
	"sort"
	"time"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
	"github.com/boddenberg/aml-risk-engine/internal/stats"
)

// Ledger is a read-only, timestamp-sorted set of transaction records.
// Every filter returns a new Ledger; the receiver is never modified.
type Ledger struct {
	rows []domain.TransactionRecord
	now  time.Time
}

// New copies records, fills the derived fields relative to now and sorts the
// copy by timestamp. Equal timestamps keep their input order.
func New(records []domain.TransactionRecord, now time.Time) *Ledger {
	rows := make([]domain.TransactionRecord, len(records))
	for i := range records {
		rows[i] = Prepare(records[i], now)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
	return &Ledger{rows: rows, now: now}
}

// Prepare returns a copy of rec with AccountAgeDays and LeadingDigit filled.
// A missing opened date yields AccountAgeDays = -1.
func Prepare(rec domain.TransactionRecord, now time.Time) domain.TransactionRecord {
	if math.IsNaN(rec.Amount) || math.IsInf(rec.Amount, 0) {
		rec.Amount = 0
	}
	rec.LeadingDigit = stats.LeadingDigit(rec.Amount)
	rec.AccountAgeDays = AccountAgeDays(rec.OpenedDate, now)
	return rec
}

// AccountAgeDays returns whole days between opened and now, clamped at 0,
// or -1 when opened is nil.
func AccountAgeDays(opened *time.Time, now time.Time) int {
	if opened == nil {
		return -1
	}
	days := int(now.Sub(*opened).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Now returns the reference time the ledger was built with.
func (l *Ledger) Now() time.Time { return l.now }

// Len returns the number of rows.
func (l *Ledger) Len() int { return len(l.rows) }

// Empty reports whether the ledger has no rows.
func (l *Ledger) Empty() bool { return len(l.rows) == 0 }

// Rows returns a copy of the rows in timestamp order.
func (l *Ledger) Rows() []domain.TransactionRecord {
	out := make([]domain.TransactionRecord, len(l.rows))
	copy(out, l.rows)
	return out
}

// Each calls fn for every row in timestamp order without copying the slice.
func (l *Ledger) Each(fn func(r *domain.TransactionRecord)) {
	for i := range l.rows {
		fn(&l.rows[i])
	}
}

// Filter returns the rows matching pred.
func (l *Ledger) Filter(pred func(r *domain.TransactionRecord) bool) *Ledger {
	out := make([]domain.TransactionRecord, 0)
	for i := range l.rows {
		if pred(&l.rows[i]) {
			out = append(out, l.rows[i])
		}
	}
	return &Ledger{rows: out, now: l.now}
}

// Window returns the rows with ref-d < timestamp <= ref.
func (l *Ledger) Window(ref time.Time, d time.Duration) *Ledger {
	return l.Filter(func(r *domain.TransactionRecord) bool {
		return stats.InWindow(r.Timestamp, ref, d)
	})
}

// ByAccount returns the rows whose account number equals accountNo.
func (l *Ledger) ByAccount(accountNo string) *Ledger {
	return l.Filter(func(r *domain.TransactionRecord) bool { return r.AccountNo == accountNo })
}

// ByBeneficiaryAccount returns the rows paying into accountNo.
func (l *Ledger) ByBeneficiaryAccount(accountNo string) *Ledger {
	return l.Filter(func(r *domain.TransactionRecord) bool { return r.BenAccountNo == accountNo })
}

// Amounts returns the amount column.
func (l *Ledger) Amounts() []float64 {
	out := make([]float64, len(l.rows))
	for i := range l.rows {
		out[i] = l.rows[i].Amount
	}
	return out
}

// Points returns (timestamp, amount) pairs in timestamp order.
func (l *Ledger) Points() []stats.Point {
	out := make([]stats.Point, len(l.rows))
	for i := range l.rows {
		out[i] = stats.Point{At: l.rows[i].Timestamp, Value: l.rows[i].Amount}
	}
	return out
}

// Timestamps returns the timestamp column in order.
func (l *Ledger) Timestamps() []time.Time {
	out := make([]time.Time, len(l.rows))
	for i := range l.rows {
		out[i] = l.rows[i].Timestamp
	}
	return out
}

// Latest returns the most recent row.
func (l *Ledger) Latest() (domain.TransactionRecord, bool) {
	if len(l.rows) == 0 {
		return domain.TransactionRecord{}, false
	}
	return l.rows[len(l.rows)-1], true
}

// Count returns how many rows match pred.
func (l *Ledger) Count(pred func(r *domain.TransactionRecord) bool) int {
	n := 0
	for i := range l.rows {
		if pred(&l.rows[i]) {
			n++
		}
	}
	return n
}

// GroupBy partitions the rows by key, preserving timestamp order inside each
// group. Keys are returned sorted.
func (l *Ledger) GroupBy(key func(r *domain.TransactionRecord) string) ([]string, map[string]*Ledger) {
	groups := make(map[string]*Ledger)
	for i := range l.rows {
		k := key(&l.rows[i])
		g, ok := groups[k]
		if !ok {
			g = &Ledger{now: l.now}
			groups[k] = g
		}
		g.rows = append(g.rows, l.rows[i])
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, groups
}
