package facts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/verifact/internal/source"
)

// Recalculator rescores the whole evaluation set against current source
// trust, current time, and real cross-source consensus. It replaces the
// provisional consensus assigned at ingestion.
type Recalculator struct {
	store   Store
	sources source.Store
	now     func() time.Time
}

// NewRecalculator creates a recalculator.
func NewRecalculator(store Store, sources source.Store) *Recalculator {
	return &Recalculator{store: store, sources: sources, now: time.Now}
}

// WithNow sets a fixed clock for testing.
func (r *Recalculator) WithNow(now func() time.Time) *Recalculator {
	r.now = now
	return r
}

// Run executes one recalculate-all pass. Per-evaluation failures are
// collected and never abort the run.
func (r *Recalculator) Run(ctx context.Context) (*RecalcResult, error) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("component", "recalc"), zap.String("run_id", runID))

	settings, err := LoadSettings(ctx, r.store)
	if err != nil {
		return nil, err
	}

	evals, err := r.store.ListAllEvaluations(ctx)
	if err != nil {
		return nil, err
	}

	// Group by pair so each pair's consensus is computed once, over every
	// row including all time-series points.
	byPair := make(map[Pair][]Evaluation)
	var order []Pair
	for _, e := range evals {
		key := Pair{Entity: e.Entity, Attribute: e.Attribute}
		if _, ok := byPair[key]; !ok {
			order = append(order, key)
		}
		byPair[key] = append(byPair[key], e)
	}

	result := &RecalcResult{RunID: runID, PairsExamined: len(order)}
	now := r.now()

	// Source trust is resolved once per URL; most pairs share a handful of
	// providers.
	trustByURL := make(map[string]int)

	for _, pair := range order {
		group := byPair[pair]

		// Refresh source trust before aggregating so credibility reflects
		// current source quality, not the scores stored at ingestion.
		originals := make([]Evaluation, 0, len(group))
		refreshed := make([]Evaluation, 0, len(group))
		for _, e := range group {
			trust, ok := trustByURL[e.SourceURL]
			if !ok {
				trust, err = source.ResolveTrust(ctx, r.sources, e.SourceURL)
				if err != nil {
					result.Errors = append(result.Errors,
						fmt.Sprintf("%s/%s evaluation %d: %v", e.Entity, e.Attribute, e.ID, err))
					continue
				}
				trustByURL[e.SourceURL] = trust
			}
			originals = append(originals, e)
			n := e
			n.SourceTrustScore = trust
			refreshed = append(refreshed, n)
		}

		consensus := ComputeConsensus(refreshed, settings.CredibleThreshold)

		for i, e := range originals {
			next := refreshed[i]
			next.RecencyScore = RecencyScore(e.EvaluatedAt, now, settings)
			next.ConsensusScore = AgreementScore(e.Value, consensus)
			next.SourceTrustWeight = settings.SourceTrustWeight
			next.RecencyWeight = settings.RecencyWeight
			next.ConsensusWeight = settings.ConsensusWeight
			next.TrustScore = CombineScores(next.SourceTrustScore, next.RecencyScore, next.ConsensusScore, settings)

			if next.SourceTrustScore == e.SourceTrustScore &&
				next.RecencyScore == e.RecencyScore &&
				next.ConsensusScore == e.ConsensusScore &&
				next.SourceTrustWeight == e.SourceTrustWeight &&
				next.RecencyWeight == e.RecencyWeight &&
				next.ConsensusWeight == e.ConsensusWeight &&
				next.TrustScore == e.TrustScore {
				continue
			}

			if err := r.store.UpdateEvaluationScores(ctx, &next); err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("%s/%s evaluation %d: %v", e.Entity, e.Attribute, e.ID, err))
				continue
			}
			result.Updated++
		}
	}

	log.Info("recalculation complete",
		zap.Int("pairs", result.PairsExamined),
		zap.Int("updated", result.Updated),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}
