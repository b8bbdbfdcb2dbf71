package provider

import (
	"context"
	"strconv"

	"github.com/sells-group/verifact/pkg/restcountries"
)

// RESTCountriesProvider fetches population figures from the REST Countries
// API. It carries no reference year, so its claims keep a nil as_of_date.
type RESTCountriesProvider struct {
	client *restcountries.Client
}

// NewRESTCountries creates the REST Countries adapter.
func NewRESTCountries(client *restcountries.Client) *RESTCountriesProvider {
	return &RESTCountriesProvider{client: client}
}

func (p *RESTCountriesProvider) Name() string   { return "REST Countries" }
func (p *RESTCountriesProvider) Domain() string { return "restcountries.com" }

func (p *RESTCountriesProvider) Supports(attribute string) bool {
	return attribute == AttrPopulation
}

func (p *RESTCountriesProvider) TryFetch(ctx context.Context, entity, attribute string, year int) (*Result, error) {
	if attribute != AttrPopulation {
		return nil, nil
	}
	// The API serves only an undated current snapshot; a request pinned to a
	// specific year cannot be answered.
	if year != 0 {
		return nil, nil
	}
	code, ok := ResolveCode(entity)
	if !ok {
		return nil, nil
	}

	country, err := p.client.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if country == nil || country.Population == 0 {
		return nil, nil
	}

	return &Result{
		Value:     strconv.FormatInt(country.Population, 10),
		ValueType: "numeric",
		SourceURL: "https://restcountries.com/v3.1/alpha/" + code,
		Notes:     "REST Countries population snapshot, no reference year published",
	}, nil
}
