// Package provider defines the data-provider abstraction for the fact
// pipeline and its adapters for the IMF, World Bank, and REST Countries APIs.
package provider

import (
	"context"
	"time"
)

// Supported fact attributes.
const (
	AttrPopulation = "population"
	AttrGDP        = "gdp"
	AttrInflation  = "inflation"
)

// Result is one claim fetched from a provider, not yet scored.
type Result struct {
	Value     string
	ValueType string
	SourceURL string
	AsOfDate  *time.Time // date the fact is true; nil when the provider gives none
	Notes     string
}

// Provider fetches candidate claims from one upstream data source.
type Provider interface {
	// Name is the provider's display name, stored as source_name.
	Name() string

	// Domain is the registrable domain used for source trust resolution.
	Domain() string

	// Supports reports whether the provider can answer for an attribute.
	Supports(attribute string) bool

	// TryFetch fetches the claim for an entity and attribute. A non-zero
	// year restricts the fetch to that data year; zero asks for the latest.
	// A (nil, nil) return means the provider has no data for the request,
	// which is not an error.
	TryFetch(ctx context.Context, entity, attribute string, year int) (*Result, error)
}

// Registry holds providers in registration order. Order matters: the
// reconciliation and backfill engines consult providers first-registered
// first.
type Registry struct {
	names     []string
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider. Re-registering a name replaces the provider but
// keeps its original position.
func (r *Registry) Register(p Provider) {
	name := p.Name()
	if _, ok := r.providers[name]; !ok {
		r.names = append(r.names, name)
	}
	r.providers[name] = p
}

// Get returns the provider registered under name, or nil.
func (r *Registry) Get(name string) Provider {
	return r.providers[name]
}

// All returns providers in registration order.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.providers[name])
	}
	return out
}

// yearEnd returns Dec 31 of a data year, the as_of_date convention for
// annual indicators.
func yearEnd(year int) *time.Time {
	t := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	return &t
}
