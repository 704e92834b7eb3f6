// Package stats holds the numeric primitives shared by the risk analyzers
// and the profiler. Every function is pure and safe for concurrent use.
package stats

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// PeerZScoreSentinel is the peer z-score reported when a peer group has no
// spread but the amount still differs from the group mean.
const PeerZScoreSentinel = 5.0

// relEpsilon bounds floating noise when deciding that a spread is zero or
// that a value equals a mean.
const relEpsilon = 1e-9

// Sum returns the sum of values.
func Sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// Mean returns the arithmetic mean, or 0 for no values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// Variance returns the sample variance (n-1 denominator), or 0 when n < 2.
func Variance(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	m := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return ss / float64(n-1)
}

// Std returns the sample standard deviation, or 0 when n < 2.
func Std(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// Count is an Aggregator returning the number of values.
func Count(values []float64) float64 {
	return float64(len(values))
}

// Aggregator reduces a window of amounts to one number.
type Aggregator func(values []float64) float64

func nearlyZero(std, mean float64) bool {
	return std <= relEpsilon*math.Max(1, math.Abs(mean))
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= relEpsilon*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// ZScore returns (x-mean)/std. A zero spread yields 0.
func ZScore(x, mean, std float64) float64 {
	if nearlyZero(std, mean) {
		return 0
	}
	return Sanitize((x - mean) / std)
}

// PeerZScore returns |x-mean|/std. A zero spread yields 0 when x equals the
// mean and PeerZScoreSentinel otherwise.
func PeerZScore(x, mean, std float64) float64 {
	if nearlyZero(std, mean) {
		if nearlyEqual(x, mean) {
			return 0
		}
		return PeerZScoreSentinel
	}
	return Sanitize(math.Abs(x-mean) / std)
}

// PercentileRank returns the share of population strictly below x, scaled to 0..100.
func PercentileRank(x float64, population []float64) float64 {
	if len(population) == 0 {
		return 0
	}
	below := 0
	for _, v := range population {
		if v < x {
			below++
		}
	}
	return 100 * float64(below) / float64(len(population))
}

// Point is a timestamped amount.
type Point struct {
	At    time.Time
	Value float64
}

// InWindow reports whether t falls in (ref-window, ref].
func InWindow(t, ref time.Time, window time.Duration) bool {
	return t.After(ref.Add(-window)) && !t.After(ref)
}

// RollingWindow applies fn to the values of points in (ref-window, ref].
// An empty selection yields 0.
func RollingWindow(points []Point, ref time.Time, window time.Duration, fn Aggregator) float64 {
	selected := make([]float64, 0, len(points))
	for _, p := range points {
		if InWindow(p.At, ref, window) {
			selected = append(selected, p.Value)
		}
	}
	if len(selected) == 0 {
		return 0
	}
	return Sanitize(fn(selected))
}

// TrailingWindows returns, for each point, fn over the points in
// (p.At-window, p.At] that come at or before it. points must be sorted by time.
func TrailingWindows(points []Point, window time.Duration, fn Aggregator) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	out := make([]float64, len(points))
	lo := 0
	for i, p := range points {
		for lo < i && !points[lo].At.After(p.At.Add(-window)) {
			lo++
		}
		out[i] = Sanitize(fn(values[lo : i+1]))
	}
	return out
}

// LeadingDigit returns the first significant digit of amount, or 0 when
// amount is not a positive finite number.
func LeadingDigit(amount float64) int {
	if !(amount > 0) || math.IsInf(amount, 0) {
		return 0
	}
	s := strconv.FormatFloat(amount, 'e', -1, 64)
	return int(s[0] - '0')
}

// LeadingDigitDistribution returns digit -> share over the amounts that have a
// leading digit. The shares sum to 1; no qualifying amounts yields an empty map.
func LeadingDigitDistribution(amounts []float64) map[int]float64 {
	counts := make(map[int]int, 9)
	total := 0
	for _, a := range amounts {
		if d := LeadingDigit(a); d > 0 {
			counts[d]++
			total++
		}
	}
	dist := make(map[int]float64, len(counts))
	for d, c := range counts {
		dist[d] = float64(c) / float64(total)
	}
	return dist
}

// MaxShare returns the largest share in a distribution, 0 when empty.
func MaxShare(dist map[int]float64) float64 {
	var m float64
	for _, v := range dist {
		if v > m {
			m = v
		}
	}
	return m
}

// IsMultipleOf reports whether amount is an exact multiple of base.
// The check runs on the decimal form so 300.00 passes and 299.99 does not.
func IsMultipleOf(amount float64, base int64) bool {
	if base == 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return false
	}
	return decimal.NewFromFloat(amount).Mod(decimal.NewFromInt(base)).IsZero()
}

// Sanitize maps NaN and infinities to 0.
func Sanitize(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

// Round rounds x half away from zero to the given number of decimal places.
func Round(x float64, places int) float64 {
	x = Sanitize(x)
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// Clamp bounds x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
