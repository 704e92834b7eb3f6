package ledger

import "fmt"

// AgeBucketOver20 is the open-ended bucket for accounts older than 20 years.
const AgeBucketOver20 = "> 20"

// AgeYears converts account age in days to years.
func AgeYears(days int) float64 {
	return float64(days) / 365
}

// AgeBucket maps an account age in days to its 2-year bucket label,
// "0 < x < 2" through "18 < x < 20", then "> 20". Bins are right-inclusive and
// age 0 falls in the first bin. Unknown ages (negative days) map to "".
func AgeBucket(days int) string {
	if days < 0 {
		return ""
	}
	years := AgeYears(days)
	if years > 20 {
		return AgeBucketOver20
	}
	for hi := 2; hi <= 20; hi += 2 {
		if years <= float64(hi) {
			return fmt.Sprintf("%d < x < %d", hi-2, hi)
		}
	}
	return AgeBucketOver20
}

// AgeBuckets lists every bucket label in ascending order.
func AgeBuckets() []string {
	out := make([]string, 0, 11)
	for hi := 2; hi <= 20; hi += 2 {
		out = append(out, fmt.Sprintf("%d < x < %d", hi-2, hi))
	}
	return append(out, AgeBucketOver20)
}
