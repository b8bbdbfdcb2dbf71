// Package imf provides a client for the IMF DataMapper API.
package imf

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public DataMapper API endpoint.
const DefaultBaseURL = "https://www.imf.org/external/datamapper/api/v1"

// Well-known DataMapper indicator codes.
const (
	IndicatorInflation  = "PCPIPCH" // inflation, average consumer prices, % change
	IndicatorGDP        = "NGDPD"   // GDP, current prices, billions of USD
	IndicatorPopulation = "LP"      // population, millions of people
)

// Observation is one annual data point for an indicator.
type Observation struct {
	Year  int
	Value float64
}

// Client calls the IMF DataMapper API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// NewClient creates a DataMapper client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(2, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// dataMapperResponse mirrors {"values": {indicator: {iso3: {"2024": 2.9}}}}.
type dataMapperResponse struct {
	Values map[string]map[string]map[string]float64 `json:"values"`
}

// Latest returns the most recent annual observation for an indicator and
// ISO3 country code, or nil when the API has no data for the pair.
func (c *Client) Latest(ctx context.Context, indicator, iso3 string) (*Observation, error) {
	series, err := c.series(ctx, indicator, iso3)
	if err != nil || series == nil {
		return nil, err
	}

	// DataMapper series include projections past the current year; take the
	// newest observation that is not a forecast.
	currentYear := time.Now().Year()
	years := make([]int, 0, len(series))
	for y := range series {
		if y > currentYear {
			continue
		}
		years = append(years, y)
	}
	if len(years) == 0 {
		return nil, nil
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))

	year := years[0]
	return &Observation{Year: year, Value: series[year]}, nil
}

// ForYear returns the observation for one specific data year, or nil when
// the series has no point for it. Forecast years are never served.
func (c *Client) ForYear(ctx context.Context, indicator, iso3 string, year int) (*Observation, error) {
	if year > time.Now().Year() {
		return nil, nil
	}
	series, err := c.series(ctx, indicator, iso3)
	if err != nil || series == nil {
		return nil, err
	}
	v, ok := series[year]
	if !ok {
		return nil, nil
	}
	return &Observation{Year: year, Value: v}, nil
}

// series fetches and parses the full annual series for an indicator and ISO3
// code. A nil map means the API has no data for the pair.
func (c *Client) series(ctx context.Context, indicator, iso3 string) (map[int]float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "imf: rate limit")
	}

	reqURL := c.baseURL + "/" + url.PathEscape(indicator) + "/" + url.PathEscape(iso3)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "imf: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "imf: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("imf: returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "imf: read body")
	}

	var dm dataMapperResponse
	if err := json.Unmarshal(body, &dm); err != nil {
		return nil, eris.Wrap(err, "imf: parse response")
	}

	raw, ok := dm.Values[indicator][iso3]
	if !ok || len(raw) == 0 {
		return nil, nil
	}

	series := make(map[int]float64, len(raw))
	for y, v := range raw {
		year, err := strconv.Atoi(y)
		if err != nil {
			continue
		}
		series[year] = v
	}
	if len(series) == 0 {
		return nil, nil
	}
	return series, nil
}
