package facts

import (
	"math"
	"strconv"
	"strings"
)

// Consensus is the aggregate numeric agreement across credible sources for
// one (entity, attribute) pair. SourceCount counts every credible
// contributing row, including rows whose value does not parse numerically;
// only the numeric mean and range exclude them.
type Consensus struct {
	Entity      string  `json:"entity"`
	Attribute   string  `json:"attribute"`
	Value       float64 `json:"value"` // arithmetic mean of numeric values
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	SourceCount int     `json:"source_count"`
}

// ComputeConsensus aggregates the evaluation rows for one pair, including
// every time-series point. Only rows whose source trust meets the credible
// threshold contribute; non-credible claims are still scored against the
// result but never shape it. Returns nil when no credible row exists or no
// credible value parses numerically.
func ComputeConsensus(evals []Evaluation, credibleThreshold int) *Consensus {
	if len(evals) == 0 {
		return nil
	}

	var sum float64
	var credible, numeric int
	min := math.Inf(1)
	max := math.Inf(-1)

	for _, e := range evals {
		if e.SourceTrustScore < credibleThreshold {
			continue
		}
		credible++
		v, ok := parseNumeric(e.Value)
		if !ok {
			continue
		}
		sum += v
		numeric++
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	if numeric == 0 {
		return nil
	}

	return &Consensus{
		Entity:      evals[0].Entity,
		Attribute:   evals[0].Attribute,
		Value:       sum / float64(numeric),
		Min:         min,
		Max:         max,
		SourceCount: credible,
	}
}

// AgreementScore maps a single claim's value to a 0-100 consensus component:
// 100 at the consensus mean, falling linearly with relative deviation.
// Non-numeric values keep the provisional score.
func AgreementScore(value string, c *Consensus) int {
	if c == nil {
		return ProvisionalConsensus
	}
	v, ok := parseNumeric(value)
	if !ok {
		return ProvisionalConsensus
	}
	if c.Value == 0 {
		if v == 0 {
			return 100
		}
		return 0
	}
	deviation := math.Abs(v-c.Value) / math.Abs(c.Value)
	score := 100 - int(math.Round(deviation*100))
	if score < 0 {
		score = 0
	}
	return score
}

// parseNumeric parses a stored claim value, tolerating thousands separators.
func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
