package provider

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sells-group/verifact/pkg/worldbank"
)

// WorldBankProvider fetches annual indicators from the World Bank
// Indicators API.
type WorldBankProvider struct {
	client *worldbank.Client
}

// NewWorldBank creates the World Bank adapter.
func NewWorldBank(client *worldbank.Client) *WorldBankProvider {
	return &WorldBankProvider{client: client}
}

func (p *WorldBankProvider) Name() string   { return "World Bank" }
func (p *WorldBankProvider) Domain() string { return "data.worldbank.org" }

func (p *WorldBankProvider) Supports(attribute string) bool {
	switch attribute {
	case AttrPopulation, AttrGDP, AttrInflation:
		return true
	}
	return false
}

// TryFetch returns the non-null annual observation for the entity and
// attribute, newest when year is zero. World Bank values are already in
// absolute units.
func (p *WorldBankProvider) TryFetch(ctx context.Context, entity, attribute string, year int) (*Result, error) {
	code, ok := ResolveCode(entity)
	if !ok {
		return nil, nil
	}

	var indicator string
	switch attribute {
	case AttrPopulation:
		indicator = worldbank.IndicatorPopulation
	case AttrGDP:
		indicator = worldbank.IndicatorGDP
	case AttrInflation:
		indicator = worldbank.IndicatorInflation
	default:
		return nil, nil
	}

	var obs *worldbank.Observation
	var err error
	if year != 0 {
		obs, err = p.client.ForYear(ctx, code, indicator, year)
	} else {
		obs, err = p.client.Latest(ctx, code, indicator)
	}
	if err != nil {
		return nil, err
	}
	if obs == nil {
		return nil, nil
	}

	return &Result{
		Value:     strconv.FormatFloat(obs.Value, 'f', -1, 64),
		ValueType: "numeric",
		SourceURL: "https://data.worldbank.org/indicator/" + indicator + "?locations=" + code,
		AsOfDate:  yearEnd(obs.Year),
		Notes:     fmt.Sprintf("World Bank %s, year %d", indicator, obs.Year),
	}, nil
}
