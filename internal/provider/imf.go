package provider

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sells-group/verifact/pkg/imf"
)

// IMFProvider fetches annual indicators from the IMF DataMapper API.
type IMFProvider struct {
	client *imf.Client
}

// NewIMF creates the IMF adapter.
func NewIMF(client *imf.Client) *IMFProvider {
	return &IMFProvider{client: client}
}

func (p *IMFProvider) Name() string   { return "IMF" }
func (p *IMFProvider) Domain() string { return "www.imf.org" }

func (p *IMFProvider) Supports(attribute string) bool {
	switch attribute {
	case AttrPopulation, AttrGDP, AttrInflation:
		return true
	}
	return false
}

// TryFetch returns the annual observation for the entity and attribute,
// newest when year is zero. DataMapper reports population in millions and
// GDP in billions of USD; both are converted to absolute units so values
// compare across providers.
func (p *IMFProvider) TryFetch(ctx context.Context, entity, attribute string, year int) (*Result, error) {
	code, ok := ResolveCode(entity)
	if !ok {
		return nil, nil
	}

	var indicator string
	scale := 1.0
	switch attribute {
	case AttrPopulation:
		indicator = imf.IndicatorPopulation
		scale = 1e6
	case AttrGDP:
		indicator = imf.IndicatorGDP
		scale = 1e9
	case AttrInflation:
		indicator = imf.IndicatorInflation
	default:
		return nil, nil
	}

	var obs *imf.Observation
	var err error
	if year != 0 {
		obs, err = p.client.ForYear(ctx, indicator, code, year)
	} else {
		obs, err = p.client.Latest(ctx, indicator, code)
	}
	if err != nil {
		return nil, err
	}
	if obs == nil {
		return nil, nil
	}

	return &Result{
		Value:     strconv.FormatFloat(obs.Value*scale, 'f', -1, 64),
		ValueType: "numeric",
		SourceURL: "https://www.imf.org/external/datamapper/" + indicator + "/" + code,
		AsOfDate:  yearEnd(obs.Year),
		Notes:     fmt.Sprintf("IMF DataMapper %s, year %d", indicator, obs.Year),
	}, nil
}
