package restcountries

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_BareObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/alpha/DEU", r.URL.Path)
		fmt.Fprint(w, `{"name":{"common":"Germany"},"population":83240525}`)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	country, err := client.Lookup(context.Background(), "DEU")
	require.NoError(t, err)
	require.NotNil(t, country)

	assert.Equal(t, "Germany", country.Name)
	assert.Equal(t, int64(83240525), country.Population)
}

func TestLookup_ArrayWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name":{"common":"Japan"},"population":124000000}]`)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	country, err := client.Lookup(context.Background(), "JPN")
	require.NoError(t, err)
	require.NotNil(t, country)
	assert.Equal(t, "Japan", country.Name)
}

func TestLookup_UnknownCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	country, err := client.Lookup(context.Background(), "XXX")
	require.NoError(t, err)
	assert.Nil(t, country)
}
