package facts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// attributeCategory maps attributes to the verified-set category facet.
var attributeCategory = map[string]string{
	"population": "demographics",
	"gdp":        "economy",
	"inflation":  "economy",
}

// Promoter moves evaluations at or above the promotion threshold into the
// verified fact set. Promotion is idempotent: re-running it refreshes
// existing rows instead of duplicating them.
type Promoter struct {
	store Store
	now   func() time.Time
}

// NewPromoter creates a promoter.
func NewPromoter(store Store) *Promoter {
	return &Promoter{store: store, now: time.Now}
}

// WithNow sets a fixed clock for testing.
func (p *Promoter) WithNow(now func() time.Time) *Promoter {
	p.now = now
	return p
}

// Run executes one promotion pass.
func (p *Promoter) Run(ctx context.Context) (*PromoteResult, error) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("component", "promote"), zap.String("run_id", runID))

	settings, err := LoadSettings(ctx, p.store)
	if err != nil {
		return nil, err
	}

	candidates, err := p.store.ListPromotable(ctx, settings.PromotionThreshold)
	if err != nil {
		return nil, err
	}

	result := &PromoteResult{RunID: runID}

	// Candidates arrive most authoritative first; keep the first evaluation
	// per identity key and drop the rest.
	seen := make(map[string]bool, len(candidates))
	var winners []Evaluation
	for _, c := range candidates {
		key := c.IdentityKey()
		if seen[key] {
			result.Skipped++
			continue
		}
		seen[key] = true
		winners = append(winners, c)
	}

	if len(winners) == 0 {
		log.Info("promotion complete", zap.Int("promoted", 0))
		return result, nil
	}

	existing, err := p.store.ExistingFactKeys(ctx)
	if err != nil {
		return nil, err
	}

	verifiedAt := p.now()
	rows := make([]Fact, 0, len(winners))
	for _, w := range winners {
		category := attributeCategory[w.Attribute]
		if category == "" {
			category = "general"
		}
		rows = append(rows, Fact{
			Entity:     w.Entity,
			Attribute:  w.Attribute,
			Value:      w.Value,
			ValueType:  w.ValueType,
			SourceName: w.SourceName,
			SourceURL:  w.SourceURL,
			AsOfDate:   w.AsOfDate,
			Category:   category,
			TrustScore: w.TrustScore,
			VerifiedAt: verifiedAt,
		})
		if existing[w.IdentityKey()] {
			result.Updated++
		} else {
			result.Inserted++
		}
	}

	if _, err := p.store.UpsertFacts(ctx, rows); err != nil {
		return nil, err
	}
	result.Promoted = result.Inserted + result.Updated

	if err := p.store.ResyncContributionCounts(ctx); err != nil {
		return nil, err
	}

	for _, w := range winners {
		action := "promoted"
		if existing[w.IdentityKey()] {
			action = "updated"
		}
		if err := p.store.AppendActivity(ctx, ActivityEntry{
			RunID:      runID,
			Action:     action,
			Entity:     w.Entity,
			Attribute:  w.Attribute,
			SourceName: w.SourceName,
			TrustScore: &w.TrustScore,
		}); err != nil {
			zap.L().Warn("promote: audit log write failed",
				zap.String("entity", w.Entity), zap.Error(err))
		}
	}

	log.Info("promotion complete",
		zap.Int("promoted", result.Promoted),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}
