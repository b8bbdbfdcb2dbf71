// Package restcountries provides a client for the REST Countries API.
package restcountries

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public REST Countries v3.1 endpoint.
const DefaultBaseURL = "https://restcountries.com/v3.1"

// Country is the subset of the country record this client requests.
type Country struct {
	Name       string
	Population int64
}

// Client calls the REST Countries API.
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

// NewClient creates a REST Countries client.
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

type countryRecord struct {
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	Population int64 `json:"population"`
}

// Lookup returns the country record for an ISO3 code, or nil when unknown.
func (c *Client) Lookup(ctx context.Context, iso3 string) (*Country, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "restcountries: rate limit")
	}

	reqURL := c.baseURL + "/alpha/" + url.PathEscape(iso3) + "?fields=name,population"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "restcountries: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "restcountries: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("restcountries: returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "restcountries: read body")
	}

	// The alpha endpoint answers with a bare object, but some deployments
	// wrap it in a one-element array.
	var rec countryRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		var recs []countryRecord
		if err2 := json.Unmarshal(body, &recs); err2 != nil || len(recs) == 0 {
			return nil, eris.Wrap(err, "restcountries: parse response")
		}
		rec = recs[0]
	}

	if rec.Population == 0 && rec.Name.Common == "" {
		return nil, nil
	}
	return &Country{Name: rec.Name.Common, Population: rec.Population}, nil
}
