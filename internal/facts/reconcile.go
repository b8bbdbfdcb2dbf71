package facts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/verifact/internal/provider"
	"github.com/sells-group/verifact/internal/source"
)

// StatusEvaluating marks evaluations awaiting promotion.
const StatusEvaluating = "evaluating"

// Reconciler fills coverage gaps in the evaluation set: for every known
// (entity, attribute) pair it asks each registered provider that is not yet
// represented for its claim, scores it, and inserts it.
type Reconciler struct {
	store    Store
	sources  source.Store
	registry *provider.Registry
	limiter  *rate.Limiter
	now      func() time.Time
}

// NewReconciler creates a reconciler. The limiter paces outbound provider
// calls across all pairs.
func NewReconciler(store Store, sources source.Store, registry *provider.Registry, limiter *rate.Limiter) *Reconciler {
	return &Reconciler{
		store:    store,
		sources:  sources,
		registry: registry,
		limiter:  limiter,
		now:      time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (r *Reconciler) WithNow(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Run executes one reconciliation pass. Provider failures are collected
// per pair and never abort the run.
func (r *Reconciler) Run(ctx context.Context) (*ReconcileResult, error) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("component", "reconcile"), zap.String("run_id", runID))

	settings, err := LoadSettings(ctx, r.store)
	if err != nil {
		return nil, err
	}

	pairs, err := r.store.DistinctPairs(ctx)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{
		RunID: runID,
		Added: make(map[string]int),
	}

	for _, pair := range pairs {
		result.PairsExamined++

		covered, err := r.store.SourcesForPair(ctx, pair.Entity, pair.Attribute)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s/%s: %v", pair.Entity, pair.Attribute, err))
			continue
		}
		seen := make(map[string]bool, len(covered))
		for _, name := range covered {
			seen[name] = true
		}

		for _, p := range r.registry.All() {
			if !p.Supports(pair.Attribute) || seen[p.Name()] {
				continue
			}
			if err := r.fetchOne(ctx, p, pair, settings, runID, result); err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("%s/%s via %s: %v", pair.Entity, pair.Attribute, p.Name(), err))
			}
		}
	}

	log.Info("reconciliation complete",
		zap.Int("pairs", result.PairsExamined),
		zap.Int("added", result.TotalAdded()),
		zap.Int("duplicates_skipped", result.DuplicatesSkipped),
		zap.Int("no_data", result.NoData),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// fetchOne fetches, re-checks, scores, and inserts a single provider claim.
func (r *Reconciler) fetchOne(ctx context.Context, p provider.Provider, pair Pair, settings Settings, runID string, result *ReconcileResult) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	res, err := p.TryFetch(ctx, pair.Entity, pair.Attribute, 0)
	if err != nil {
		return err
	}
	if res == nil {
		result.NoData++
		return nil
	}

	// Mandatory identity re-check directly before insert. Coverage was
	// computed earlier from SourcesForPair and may be stale by now.
	exists, err := r.store.EvaluationExists(ctx, pair.Entity, pair.Attribute, p.Name(), res.AsOfDate)
	if err != nil {
		return err
	}
	if exists {
		result.DuplicatesSkipped++
		return nil
	}

	src, err := r.sources.Ensure(ctx, p.Domain(), p.Name())
	if err != nil {
		return err
	}

	now := r.now()
	eval := &Evaluation{
		Entity:            pair.Entity,
		Attribute:         pair.Attribute,
		Value:             res.Value,
		ValueType:         res.ValueType,
		SourceName:        p.Name(),
		SourceURL:         res.SourceURL,
		AsOfDate:          res.AsOfDate,
		EvaluatedAt:       now,
		SourceTrustScore:  src.TrustScore(),
		RecencyScore:      RecencyScore(now, now, settings),
		ConsensusScore:    ProvisionalConsensus,
		SourceTrustWeight: settings.SourceTrustWeight,
		RecencyWeight:     settings.RecencyWeight,
		ConsensusWeight:   settings.ConsensusWeight,
		Notes:             res.Notes,
		Status:            StatusEvaluating,
	}
	eval.TrustScore = CombineScores(eval.SourceTrustScore, eval.RecencyScore, eval.ConsensusScore, settings)

	if err := r.store.InsertEvaluation(ctx, eval); err != nil {
		// A concurrent run can insert the same identity between the re-check
		// and here; the unique index reports it as a duplicate, not a failure.
		if isUniqueViolation(err) {
			result.DuplicatesSkipped++
			return nil
		}
		return err
	}
	result.Added[p.Name()]++

	if err := r.store.AppendActivity(ctx, ActivityEntry{
		RunID:      runID,
		Action:     "ingested",
		Entity:     pair.Entity,
		Attribute:  pair.Attribute,
		SourceName: p.Name(),
		TrustScore: &eval.TrustScore,
		Detail:     fmt.Sprintf("value %s (trust %d)", eval.Value, eval.TrustScore),
	}); err != nil {
		zap.L().Warn("reconcile: audit log write failed",
			zap.String("entity", pair.Entity), zap.Error(err))
	}
	return nil
}
