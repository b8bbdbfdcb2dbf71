// Package worldbank provides a client for the World Bank Indicators API v2.
package worldbank

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Indicators API endpoint.
const DefaultBaseURL = "https://api.worldbank.org/v2"

// Well-known indicator codes.
const (
	IndicatorPopulation = "SP.POP.TOTL"    // total population
	IndicatorGDP        = "NY.GDP.MKTP.CD" // GDP, current USD
	IndicatorInflation  = "FP.CPI.TOTL.ZG" // inflation, consumer prices, annual %
)

// Observation is one annual data point for an indicator.
type Observation struct {
	Year  int
	Value float64
}

// Client calls the World Bank Indicators API.
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

// NewClient creates an Indicators API client.
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

// indicatorPoint is one element of the data array in the v2 response. The
// response is a two-element array: [metadata, [points]].
type indicatorPoint struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// Latest returns the most recent non-null annual observation for an ISO3
// country code and indicator, or nil when no data exists.
func (c *Client) Latest(ctx context.Context, iso3, indicator string) (*Observation, error) {
	return c.fetch(ctx, iso3, indicator, 0)
}

// ForYear returns the observation for one specific data year, or nil when
// the API reports no value for it.
func (c *Client) ForYear(ctx context.Context, iso3, indicator string, year int) (*Observation, error) {
	return c.fetch(ctx, iso3, indicator, year)
}

// fetch queries the indicator series. A non-zero year narrows the request to
// that data year via the API's date filter.
func (c *Client) fetch(ctx context.Context, iso3, indicator string, year int) (*Observation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "worldbank: rate limit")
	}

	params := url.Values{
		"format":   {"json"},
		"per_page": {"10"},
	}
	if year != 0 {
		params.Set("date", strconv.Itoa(year))
	}
	reqURL := c.baseURL + "/country/" + url.PathEscape(iso3) +
		"/indicator/" + url.PathEscape(indicator) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "worldbank: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "worldbank: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("worldbank: returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "worldbank: read body")
	}

	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, eris.Wrap(err, "worldbank: parse envelope")
	}
	if len(envelope) < 2 {
		// Error responses come back as a one-element array of messages.
		return nil, nil
	}

	var points []indicatorPoint
	if err := json.Unmarshal(envelope[1], &points); err != nil {
		return nil, eris.Wrap(err, "worldbank: parse data")
	}

	// Points arrive newest-first; the newest years are often still null.
	for _, p := range points {
		if p.Value == nil {
			continue
		}
		year, err := strconv.Atoi(p.Date)
		if err != nil {
			continue
		}
		return &Observation{Year: year, Value: *p.Value}, nil
	}
	return nil, nil
}
