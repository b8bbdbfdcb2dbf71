package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/verifact/pkg/imf"
)

func imfProviderFor(t *testing.T, handler http.HandlerFunc) *IMFProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewIMF(imf.NewClient(imf.WithBaseURL(srv.URL), imf.WithRateLimit(1000)))
}

func TestIMFProvider_PopulationScaledToPersons(t *testing.T) {
	p := imfProviderFor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/LP/DEU", r.URL.Path)
		fmt.Fprint(w, `{"values":{"LP":{"DEU":{"2024":83.28}}}}`)
	})

	res, err := p.TryFetch(context.Background(), "Germany", AttrPopulation, 0)
	require.NoError(t, err)
	require.NotNil(t, res)

	// 83.28 million -> 83,280,000 persons.
	assert.Equal(t, "83280000", res.Value)
	assert.Equal(t, "numeric", res.ValueType)

	require.NotNil(t, res.AsOfDate)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), *res.AsOfDate)
}

func TestIMFProvider_GDPScaledToUSD(t *testing.T) {
	p := imfProviderFor(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"values":{"NGDPD":{"DEU":{"2024":4526.7}}}}`)
	})

	res, err := p.TryFetch(context.Background(), "DEU", AttrGDP, 0)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "4526700000000", res.Value)
}

func TestIMFProvider_FetchesRequestedYear(t *testing.T) {
	p := imfProviderFor(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"values":{"PCPIPCH":{"DEU":{"2019":1.4,"2024":2.4}}}}`)
	})

	res, err := p.TryFetch(context.Background(), "Germany", AttrInflation, 2019)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "1.4", res.Value)
	require.NotNil(t, res.AsOfDate)
	assert.Equal(t, time.Date(2019, 12, 31, 0, 0, 0, 0, time.UTC), *res.AsOfDate)

	// A year the series lacks is no data, not an error.
	res, err = p.TryFetch(context.Background(), "Germany", AttrInflation, 1800)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestIMFProvider_UnknownEntityIsNoData(t *testing.T) {
	p := NewIMF(imf.NewClient())
	res, err := p.TryFetch(context.Background(), "Atlantis", AttrGDP, 0)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestIMFProvider_Supports(t *testing.T) {
	p := NewIMF(imf.NewClient())
	assert.True(t, p.Supports(AttrPopulation))
	assert.True(t, p.Supports(AttrGDP))
	assert.True(t, p.Supports(AttrInflation))
	assert.False(t, p.Supports("area"))
}
