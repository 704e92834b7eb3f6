package analysis

import (
	"fmt"
	"math"

	"github.com/boddenberg/aml-risk-engine/internal/domain"
	"github.com/boddenberg/aml-risk-engine/internal/stats"
)

// Level thresholds. A score equal to a threshold belongs to the higher band.
const (
	thresholdCritical = 80.0
	thresholdHigh     = 60.0
	thresholdMedium   = 30.0
)

// Transaction fusion weights.
const (
	weightAnomaly  = 0.25
	weightPattern  = 0.15
	weightVelocity = 0.40
	weightRanking  = 0.10
	weightContext  = 0.10
)

// Customer fusion weights. Peer deviation dominates; list hits are a small addend.
const (
	weightPeer     = 0.74
	weightSanction = 0.05
	weightKYC      = 0.05
	weightTemporal = 0.25
)

// Reason code prefixes.
const (
	ReasonBenford  = "R_BENFORD"
	ReasonGeo      = "R_GEO"
	ReasonSize     = "R_SIZE"
	ReasonBurst    = "R_BURST"
	ReasonOutlier  = "R_OUTLIER"
	ReasonStruct   = "R_STRUCT"
	ReasonGeneric  = "R_GENERIC"
	ReasonIdentity = "R_IDENTITY"
	ReasonPeer     = "R_PEER"
	ReasonSanction = "R_SANCTION"
	ReasonKYC      = "R_KYC"
	ReasonTiming   = "R_TIMING"
)

// LevelFor maps a score to its risk level.
func LevelFor(score float64) domain.RiskLevel {
	switch {
	case score >= thresholdCritical:
		return domain.RiskLevelCritical
	case score >= thresholdHigh:
		return domain.RiskLevelHigh
	case score >= thresholdMedium:
		return domain.RiskLevelMedium
	default:
		return domain.RiskLevelLow
	}
}

// capped returns min(x, 100) with NaN/Inf treated as 0 except +Inf, which caps.
func capped(x float64) float64 {
	if math.IsInf(x, 1) {
		return 100
	}
	return math.Min(stats.Sanitize(x), 100)
}

func finalScore(weighted float64) float64 {
	return stats.Clamp(stats.Round(weighted, 2), 0, 100)
}

// ============================================================
// Transaction fusion
// ============================================================

// TransactionScore is the fused transaction risk with its sub-scores.
type TransactionScore struct {
	Anomaly  float64
	Round    float64
	Benford  float64
	Pattern  float64
	Velocity float64
	Burst    float64
	Ranking  float64
	Context  float64

	Total   float64
	Level   domain.RiskLevel
	Reasons []string
}

// FuseTransactionRisk combines transaction signals into a bounded score,
// a level and ordered reason codes.
func FuseTransactionRisk(s domain.TransactionSignals) TransactionScore {
	var sc TransactionScore

	zi, zb, zp := math.Abs(stats.Sanitize(s.ZScoreIndividual)), math.Abs(stats.Sanitize(s.ZScoreBranch)), math.Abs(stats.Sanitize(s.ZScorePopulation))
	sc.Anomaly = capped((zi + zb + zp) / 2.0 * 100)

	sc.Round = stats.Sanitize(s.RoundNumberRatio) * 100
	maxShare := stats.MaxShare(s.LeadingDigitDistribution)
	if maxShare > 0.3 {
		sc.Benford = capped((maxShare - 0.3) / 0.5 * 100)
	}
	sc.Pattern = (sc.Round + sc.Benford) / 2

	s1 := capped(float64(s.Frequency1h) / 3 * 100)
	s24 := capped(float64(s.Frequency24h) / 5 * 100)
	s7 := capped(float64(s.Frequency7d) / 7 * 100)
	if s.TimeWindow24h > 0 && s.TimeWindow1h/s.TimeWindow24h > 0.5 && s.TimeWindow1h > 1000 {
		sc.Burst = 100
	}
	sc.Velocity = (s1 + s24 + s7 + sc.Burst) / 2

	sc.Ranking = (stats.Sanitize(s.PercentileBranch) + stats.Sanitize(s.PercentileTransactionType)) / 2

	geo := stats.Sanitize(s.GeographyConcentration) * 100
	sc.Context = (geo + capped(float64(s.TurnoverRatio24h)*100)) / 1.2

	sc.Total = finalScore(sc.Anomaly*weightAnomaly +
		sc.Pattern*weightPattern +
		sc.Velocity*weightVelocity +
		sc.Ranking*weightRanking +
		sc.Context*weightContext)
	sc.Level = LevelFor(sc.Total)

	if sc.Benford > 70 {
		sc.Reasons = append(sc.Reasons, fmt.Sprintf("%s: Unnatural digit distribution detected (max share %.2f)", ReasonBenford, maxShare))
	}
	if geo > 70 {
		sc.Reasons = append(sc.Reasons, fmt.Sprintf("%s: High risk geography (%.2f)", ReasonGeo, s.GeographyConcentration))
	}
	if s.PercentileTransactionType > 90 {
		sc.Reasons = append(sc.Reasons, fmt.Sprintf("%s: Top percentile for transaction type (%.2f%%)", ReasonSize, s.PercentileTransactionType))
	}
	if sc.Velocity > 70 {
		sc.Reasons = append(sc.Reasons, ReasonBurst+": High volume transaction in 1 and 24 hour")
	}
	if zi > 2 {
		sc.Reasons = append(sc.Reasons, fmt.Sprintf("%s: Significant Z-Score deviation (%.2f)", ReasonOutlier, s.ZScoreIndividual))
	}
	if sc.Round > 50 {
		sc.Reasons = append(sc.Reasons, ReasonStruct+": Round number hoarding detected")
	}
	if sc.Level.Elevated() && len(sc.Reasons) == 0 {
		sc.Reasons = append(sc.Reasons, ReasonGeneric+": Cumulative risk factors exceeded threshold")
	}
	if sc.Reasons == nil {
		sc.Reasons = []string{}
	}
	return sc
}

// ============================================================
// Customer fusion
// ============================================================

// CustomerScore is the fused customer risk with its sub-scores.
type CustomerScore struct {
	PeerOccupation float64
	PeerRegion     float64
	PeerAccountAge float64
	Peer           float64

	Sanction float64

	CompletenessPenalty float64
	IdentityMatch       float64
	KYC                 float64

	Temporal float64

	Total   float64
	Level   domain.RiskLevel
	Reasons []string
}

func peerScore(z float64) float64 {
	return capped(z / 1.5 * 100)
}

// temporalScore scores the spread of positive inter-arrival gaps, given in minutes.
func temporalScore(gapMinutes []float64) float64 {
	seconds := make([]float64, 0, len(gapMinutes))
	for _, g := range gapMinutes {
		if g > 0 {
			seconds = append(seconds, g*60)
		}
	}
	if len(seconds) < 2 {
		return 0
	}
	return capped(stats.Std(seconds) / 3600 * 100)
}

// FuseCustomerRisk combines customer signals into a bounded score, a level
// and ordered reason codes.
func FuseCustomerRisk(s domain.CustomerSignals) CustomerScore {
	var sc CustomerScore

	sc.PeerOccupation = peerScore(s.PeerOccupation.ZScore)
	sc.PeerRegion = peerScore(s.PeerRegion.ZScore)
	sc.PeerAccountAge = peerScore(s.PeerAccountAge.ZScore)
	sc.Peer = (sc.PeerOccupation + sc.PeerRegion + sc.PeerAccountAge) / 2

	sc.Sanction = (s.Sanctions.Score + s.Watchlist.Score + s.PEP.Score + s.DemographicsScore) / 2

	sc.CompletenessPenalty = (1 - stats.Clamp(s.KYCCompletenessRatio, 0, 1)) * 100
	identity := math.Max(float64(s.KYCUniqueness.PassportMatches), float64(s.KYCUniqueness.FullNameMatches))
	sc.IdentityMatch = capped(identity / 100000 * 100)
	sc.KYC = sc.CompletenessPenalty*0.4 + sc.IdentityMatch*0.6

	sc.Temporal = temporalScore(s.TimeSeriesGap)

	sc.Total = finalScore(sc.Peer*weightPeer +
		sc.Sanction*weightSanction +
		sc.KYC*weightKYC +
		sc.Temporal*weightTemporal)
	sc.Level = LevelFor(sc.Total)

	sc.Reasons = []string{}
	if sc.IdentityMatch > 70 {
		sc.Reasons = append(sc.Reasons, fmt.Sprintf("%s: Identity shared across many records (%.0f matches)", ReasonIdentity, identity))
	}
	if sc.PeerOccupation > 70 || sc.PeerRegion > 70 || sc.PeerAccountAge > 70 {
		sc.Reasons = append(sc.Reasons, fmt.Sprintf("%s: Amount deviates from peer groups (occupation %.2f, region %.2f, account age %.2f)",
			ReasonPeer, s.PeerOccupation.ZScore, s.PeerRegion.ZScore, s.PeerAccountAge.ZScore))
	}
	if s.Sanctions.Score > 0 || s.Watchlist.Score > 0 || s.PEP.Score > 0 || s.DemographicsScore > 0 {
		sc.Reasons = append(sc.Reasons, ReasonSanction+": Sanctions, watchlist, PEP or high-risk country hit")
	}
	if sc.CompletenessPenalty > 30 {
		sc.Reasons = append(sc.Reasons, fmt.Sprintf("%s: Low KYC completeness (%.2f)", ReasonKYC, s.KYCCompletenessRatio))
	}
	if sc.Temporal > 50 {
		sc.Reasons = append(sc.Reasons, ReasonTiming+": Irregular transaction timing")
	}
	return sc
}
