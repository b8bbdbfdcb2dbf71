package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/verifact/internal/probe"
	"github.com/sells-group/verifact/internal/source"
)

var rescoreDomain string

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Recompute source identity scores",
	Long:  "Runs the TLD, certificate, and WHOIS ownership checks against registered sources and updates their identity scores. Probe outcomes are cached locally.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		scorer, cleanup, err := buildIdentityScorer(ctx, env)
		if err != nil {
			return err
		}
		defer cleanup()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if rescoreDomain != "" {
			src, err := env.sources.GetByDomain(ctx, rescoreDomain)
			if err != nil {
				return err
			}
			if src == nil {
				return eris.Errorf("no source registered for domain %s", rescoreDomain)
			}
			metrics, err := scorer.RescoreSource(ctx, *src)
			if err != nil {
				return err
			}
			return enc.Encode(metrics)
		}

		result, err := scorer.RescoreAll(ctx)
		if err != nil {
			return err
		}
		return enc.Encode(result)
	},
}

// buildIdentityScorer assembles the probe set, cache, and pacing limiter for
// identity rescoring. The returned cleanup releases the probe cache.
func buildIdentityScorer(ctx context.Context, env *env) (*source.IdentityScorer, func(), error) {
	table, err := env.sources.ListTldScores(ctx)
	if err != nil {
		return nil, nil, err
	}

	probes := source.DefaultProbes(cfg.Probes.Timeout(), table, time.Now)
	cleanup := func() {}
	if !cfg.Probes.DisableCache {
		cache, err := probe.OpenCache(cfg.Probes.CachePath, cfg.Probes.CacheTTL())
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { cache.Close() } //nolint:errcheck
		probes = cachedProbes(cache, probes)
	}

	burst := cfg.Probes.RateBurst
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.Probes.RatePerSec), burst)
	return source.NewIdentityScorer(env.sources, probes, limiter, cfg.Probes.Concurrency), cleanup, nil
}

// cachedProbes wraps a probe set with the local result cache. Cache failures
// degrade to a live probe.
func cachedProbes(cache *probe.Cache, probes source.ProbeSet) source.ProbeSet {
	return source.ProbeSet{
		Certificate: func(ctx context.Context, domain string) source.CertResult {
			if entry, ok, err := cache.Get("cert", domain); err == nil && ok {
				return source.CertResult{Score: entry.Score, Status: entry.Status}
			}
			res := probes.Certificate(ctx, domain)
			if err := cache.Put("cert", domain, probe.Entry{Score: res.Score, Status: res.Status}); err != nil {
				zap.L().Warn("probe cache write failed", zap.String("domain", domain), zap.Error(err))
			}
			return res
		},
		Ownership: func(domain string) source.OwnershipResult {
			if entry, ok, err := cache.Get("whois", domain); err == nil && ok {
				return source.OwnershipResult{Score: entry.Score, Status: entry.Status}
			}
			res := probes.Ownership(domain)
			if err := cache.Put("whois", domain, probe.Entry{Score: res.Score, Status: res.Status}); err != nil {
				zap.L().Warn("probe cache write failed", zap.String("domain", domain), zap.Error(err))
			}
			return res
		},
	}
}

func init() {
	rescoreCmd.Flags().StringVar(&rescoreDomain, "domain", "", "rescore a single source by domain")
	rootCmd.AddCommand(rescoreCmd)
}
