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

// Backfiller works the requested-facts backlog: for each entry it asks the
// registered providers in order until one produces a claim. Entries that no
// provider can answer, with no provider erroring, are confirmed absent and
// removed; entries blocked by provider failures stay in the backlog.
type Backfiller struct {
	store    Store
	sources  source.Store
	registry *provider.Registry
	limiter  *rate.Limiter
	now      func() time.Time
}

// NewBackfiller creates a backfiller.
func NewBackfiller(store Store, sources source.Store, registry *provider.Registry, limiter *rate.Limiter) *Backfiller {
	return &Backfiller{
		store:    store,
		sources:  sources,
		registry: registry,
		limiter:  limiter,
		now:      time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (b *Backfiller) WithNow(now func() time.Time) *Backfiller {
	b.now = now
	return b
}

// Run executes one backfill pass over the backlog.
func (b *Backfiller) Run(ctx context.Context) (*BackfillResult, error) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("component", "backfill"), zap.String("run_id", runID))

	settings, err := LoadSettings(ctx, b.store)
	if err != nil {
		return nil, err
	}

	requests, err := b.store.ListRequested(ctx)
	if err != nil {
		return nil, err
	}

	result := &BackfillResult{RunID: runID}

	for _, req := range requests {
		fulfilled, failed, err := b.tryFulfill(ctx, req, settings, runID)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s/%s: %v", req.Entity, req.Attribute, err))
			result.Remaining++
			continue
		}

		switch {
		case fulfilled:
			result.Fulfilled++
		case failed:
			// At least one provider errored; absence is not proven.
			result.Remaining++
		default:
			if err := b.store.RemoveRequested(ctx, req.ID); err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("%s/%s: %v", req.Entity, req.Attribute, err))
				result.Remaining++
				continue
			}
			result.ConfirmedAbsent++
			b.audit(ctx, ActivityEntry{
				RunID:     runID,
				Action:    "confirmed_absent",
				Entity:    req.Entity,
				Attribute: req.Attribute,
				Detail:    "no registered provider has data",
			})
		}
	}

	log.Info("backfill complete",
		zap.Int("fulfilled", result.Fulfilled),
		zap.Int("confirmed_absent", result.ConfirmedAbsent),
		zap.Int("remaining", result.Remaining),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// tryFulfill asks providers in registration order for one backlog entry.
// It reports whether the entry was fulfilled and whether any provider call
// failed along the way.
func (b *Backfiller) tryFulfill(ctx context.Context, req RequestedFact, settings Settings, runID string) (fulfilled, failed bool, err error) {
	for _, p := range b.registry.All() {
		if !p.Supports(req.Attribute) {
			continue
		}

		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return false, true, err
			}
		}

		year := 0
		if req.ClaimedYear != nil {
			year = *req.ClaimedYear
		}
		res, ferr := p.TryFetch(ctx, req.Entity, req.Attribute, year)
		if ferr != nil {
			failed = true
			zap.L().Warn("backfill: provider fetch failed",
				zap.String("provider", p.Name()),
				zap.String("entity", req.Entity),
				zap.String("attribute", req.Attribute),
				zap.Error(ferr))
			continue
		}
		if res == nil {
			continue
		}

		exists, err := b.store.EvaluationExists(ctx, req.Entity, req.Attribute, p.Name(), res.AsOfDate)
		if err != nil {
			return false, true, err
		}
		if !exists {
			if err := b.insertScored(ctx, p, req, res, settings, runID); err != nil {
				return false, true, err
			}
		}

		if err := b.store.RemoveRequested(ctx, req.ID); err != nil {
			return false, true, err
		}
		return true, failed, nil
	}
	return false, failed, nil
}

func (b *Backfiller) insertScored(ctx context.Context, p provider.Provider, req RequestedFact, res *provider.Result, settings Settings, runID string) error {
	src, err := b.sources.Ensure(ctx, p.Domain(), p.Name())
	if err != nil {
		return err
	}

	now := b.now()
	eval := &Evaluation{
		Entity:            req.Entity,
		Attribute:         req.Attribute,
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

	if err := b.store.InsertEvaluation(ctx, eval); err != nil {
		return err
	}

	b.audit(ctx, ActivityEntry{
		RunID:      runID,
		Action:     "backfilled",
		Entity:     req.Entity,
		Attribute:  req.Attribute,
		SourceName: p.Name(),
		TrustScore: &eval.TrustScore,
		Detail:     fmt.Sprintf("value %s (trust %d)", eval.Value, eval.TrustScore),
	})
	return nil
}

func (b *Backfiller) audit(ctx context.Context, e ActivityEntry) {
	if err := b.store.AppendActivity(ctx, e); err != nil {
		zap.L().Warn("backfill: audit log write failed",
			zap.String("run_id", e.RunID), zap.Error(err))
	}
}
