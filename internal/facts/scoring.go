package facts

import (
	"math"
	"time"
)

// Settings holds the scoring configuration. It is loaded from the
// scoring_settings row and passed explicitly into every scoring call;
// when no row exists, DefaultSettings applies.
type Settings struct {
	SourceTrustWeight int `json:"source_trust_weight"`
	RecencyWeight     int `json:"recency_weight"`
	ConsensusWeight   int `json:"consensus_weight"`

	RecencyTier1Days  int `json:"recency_tier1_days"`
	RecencyTier1Score int `json:"recency_tier1_score"`
	RecencyTier2Days  int `json:"recency_tier2_days"`
	RecencyTier2Score int `json:"recency_tier2_score"`
	RecencyTier3Score int `json:"recency_tier3_score"`

	CredibleThreshold  int `json:"credible_threshold"`
	PromotionThreshold int `json:"promotion_threshold"`
}

// DefaultSettings applies when no scoring_settings row exists.
var DefaultSettings = Settings{
	SourceTrustWeight:  1,
	RecencyWeight:      1,
	ConsensusWeight:    1,
	RecencyTier1Days:   7,
	RecencyTier1Score:  100,
	RecencyTier2Days:   30,
	RecencyTier2Score:  50,
	RecencyTier3Score:  10,
	CredibleThreshold:  80,
	PromotionThreshold: 80,
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged.
type SettingsPatch struct {
	SourceTrustWeight *int `json:"source_trust_weight,omitempty"`
	RecencyWeight     *int `json:"recency_weight,omitempty"`
	ConsensusWeight   *int `json:"consensus_weight,omitempty"`

	RecencyTier1Days  *int `json:"recency_tier1_days,omitempty"`
	RecencyTier1Score *int `json:"recency_tier1_score,omitempty"`
	RecencyTier2Days  *int `json:"recency_tier2_days,omitempty"`
	RecencyTier2Score *int `json:"recency_tier2_score,omitempty"`
	RecencyTier3Score *int `json:"recency_tier3_score,omitempty"`

	CredibleThreshold  *int `json:"credible_threshold,omitempty"`
	PromotionThreshold *int `json:"promotion_threshold,omitempty"`
}

// Apply overwrites the fields of s named by non-nil patch fields.
func (p SettingsPatch) Apply(s *Settings) {
	set := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	set(&s.SourceTrustWeight, p.SourceTrustWeight)
	set(&s.RecencyWeight, p.RecencyWeight)
	set(&s.ConsensusWeight, p.ConsensusWeight)
	set(&s.RecencyTier1Days, p.RecencyTier1Days)
	set(&s.RecencyTier1Score, p.RecencyTier1Score)
	set(&s.RecencyTier2Days, p.RecencyTier2Days)
	set(&s.RecencyTier2Score, p.RecencyTier2Score)
	set(&s.RecencyTier3Score, p.RecencyTier3Score)
	set(&s.CredibleThreshold, p.CredibleThreshold)
	set(&s.PromotionThreshold, p.PromotionThreshold)
}

// ProvisionalConsensus is assigned at ingestion time, before the aggregator
// has seen all sources for a pair. Recalculation replaces it.
const ProvisionalConsensus = 50

// RecencyScore maps the age of a claim to a tiered score. Tier boundaries are
// inclusive: a claim exactly tier1Days old still earns tier1Score.
func RecencyScore(evaluatedAt, now time.Time, s Settings) int {
	daysOld := int(now.Sub(evaluatedAt).Hours() / 24)
	switch {
	case daysOld <= s.RecencyTier1Days:
		return s.RecencyTier1Score
	case daysOld <= s.RecencyTier2Days:
		return s.RecencyTier2Score
	default:
		return s.RecencyTier3Score
	}
}

// CombineScores computes the weighted mean of the three scoring dimensions,
// rounded to the nearest integer. A zero total weight yields 0.
func CombineScores(sourceTrust, recency, consensus int, s Settings) int {
	total := s.SourceTrustWeight + s.RecencyWeight + s.ConsensusWeight
	if total == 0 {
		return 0
	}
	weighted := sourceTrust*s.SourceTrustWeight + recency*s.RecencyWeight + consensus*s.ConsensusWeight
	return int(math.Round(float64(weighted) / float64(total)))
}
