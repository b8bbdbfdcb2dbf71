package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ProbeSet bundles the network identity sub-checks. Each is independently
// runnable and idempotent; swap implementations in tests.
type ProbeSet struct {
	Certificate func(ctx context.Context, domain string) CertResult
	Ownership   func(domain string) OwnershipResult
}

// DefaultProbes builds the production probe set with bounded timeouts.
func DefaultProbes(timeout time.Duration, table []TldScore, now func() time.Time) ProbeSet {
	lookup := DefaultWhoisLookup(timeout)
	return ProbeSet{
		Certificate: func(ctx context.Context, domain string) CertResult {
			return ProbeCertificate(ctx, domain, timeout, now())
		},
		Ownership: func(domain string) OwnershipResult {
			return ProbeOwnership(domain, table, now(), lookup)
		},
	}
}

// IdentityScorer runs the three identity sub-checks against sources and keeps
// source_identity_metrics consistent with the mirrored summary field.
type IdentityScorer struct {
	store       Store
	probes      ProbeSet
	limiter     *rate.Limiter
	concurrency int
}

// NewIdentityScorer creates an identity scorer. The limiter paces outbound
// probes; concurrency bounds parallel sources.
func NewIdentityScorer(store Store, probes ProbeSet, limiter *rate.Limiter, concurrency int) *IdentityScorer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &IdentityScorer{
		store:       store,
		probes:      probes,
		limiter:     limiter,
		concurrency: concurrency,
	}
}

// RescoreSource runs all three sub-checks for one source and persists the
// result. The metrics row is only written when a sub-score changed; the
// recomputed identity score and its mirror stay consistent either way.
func (s *IdentityScorer) RescoreSource(ctx context.Context, src Source) (*IdentityMetrics, error) {
	table, err := s.store.ListTldScores(ctx)
	if err != nil {
		return nil, err
	}

	current, err := s.store.GetIdentityMetrics(ctx, src.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		current = &IdentityMetrics{SourceID: src.ID}
	}

	next := *current

	if entry, ok := MatchTld(src.Domain, table); ok {
		next.URLRepute = entry.Score
	} else {
		next.URLRepute = 0
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "source: rescore: limiter")
		}
	}
	cert := s.probes.Certificate(ctx, src.Domain)
	next.Certificate = cert.Score
	next.CertStatus = cert.Status

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "source: rescore: limiter")
		}
	}
	own := s.probes.Ownership(src.Domain)
	next.Ownership = own.Score
	next.OwnershipStatus = own.Status

	next.Recompute()

	// Skip the write when nothing moved, to keep log volume down. Consistency
	// of the final state is the invariant, not the write count.
	if next.URLRepute == current.URLRepute &&
		next.Certificate == current.Certificate &&
		next.Ownership == current.Ownership &&
		next.IdentityScore == current.IdentityScore &&
		src.IdentityScore == next.IdentityScore {
		return &next, nil
	}

	if err := s.store.SaveIdentityMetrics(ctx, &next); err != nil {
		return nil, err
	}

	if err := s.store.AppendActivity(ctx, ActivityEntry{
		SourceID: src.ID,
		Action:   "rescored",
		Detail: fmt.Sprintf("identity %d (tld %d, cert %d, ownership %d)",
			next.IdentityScore, next.URLRepute, next.Certificate, next.Ownership),
	}); err != nil {
		zap.L().Warn("identity rescore: audit log write failed",
			zap.String("domain", src.Domain), zap.Error(err))
	}

	return &next, nil
}

// RescoreAll rescores every registered source. Per-source failures are
// collected and never abort the batch.
func (s *IdentityScorer) RescoreAll(ctx context.Context) (*RescoreResult, error) {
	log := zap.L().With(zap.String("component", "identity"))

	sources, err := s.store.List(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "source: rescore all: list sources")
	}

	result := &RescoreResult{SourcesExamined: len(sources)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, src := range sources {
		g.Go(func() error {
			before := src.IdentityScore
			m, err := s.RescoreSource(gctx, src)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", src.Domain, err))
				return nil
			}
			if m.IdentityScore != before {
				result.Updated++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	log.Info("identity rescore complete",
		zap.Int("examined", result.SourcesExamined),
		zap.Int("updated", result.Updated),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}
