package main

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/sells-group/verifact/internal/db"
	"github.com/sells-group/verifact/internal/facts"
	"github.com/sells-group/verifact/internal/provider"
	"github.com/sells-group/verifact/internal/source"
	"github.com/sells-group/verifact/pkg/imf"
	"github.com/sells-group/verifact/pkg/restcountries"
	"github.com/sells-group/verifact/pkg/worldbank"
)

// env bundles the shared runtime dependencies of the pipeline commands.
type env struct {
	pool     *pgxpool.Pool
	facts    *facts.PostgresStore
	sources  *source.PostgresStore
	registry *provider.Registry
	limiter  *rate.Limiter
}

// initEnv connects to the database, applies pending migrations, and builds
// the provider registry. Registration order is consultation order.
func initEnv(ctx context.Context) (*env, error) {
	pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if err := facts.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.Providers.Timeout()}

	registry := provider.NewRegistry()
	registry.Register(provider.NewIMF(imf.NewClient(
		imf.WithBaseURL(cfg.Providers.IMFBaseURL),
		imf.WithHTTPClient(httpClient),
	)))
	registry.Register(provider.NewWorldBank(worldbank.NewClient(
		worldbank.WithBaseURL(cfg.Providers.WorldBankBaseURL),
		worldbank.WithHTTPClient(httpClient),
	)))
	registry.Register(provider.NewRESTCountries(restcountries.NewClient(
		restcountries.WithBaseURL(cfg.Providers.RESTCountriesBaseURL),
		restcountries.WithHTTPClient(httpClient),
	)))

	burst := cfg.Providers.RateBurst
	if burst < 1 {
		burst = 1
	}

	return &env{
		pool:     pool,
		facts:    facts.NewPostgresStore(pool),
		sources:  source.NewPostgresStore(pool),
		registry: registry,
		limiter:  rate.NewLimiter(rate.Limit(cfg.Providers.RatePerSec), burst),
	}, nil
}

// Close releases the database pool.
func (e *env) Close() {
	e.pool.Close()
}
