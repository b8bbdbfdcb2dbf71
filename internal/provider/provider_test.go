package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedProvider struct{ name string }

func (p namedProvider) Name() string                   { return p.name }
func (p namedProvider) Domain() string                 { return p.name + ".example.org" }
func (p namedProvider) Supports(attribute string) bool { return true }
func (p namedProvider) TryFetch(ctx context.Context, entity, attribute string, year int) (*Result, error) {
	return nil, nil
}

func TestRegistry_PreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(namedProvider{"imf"})
	r.Register(namedProvider{"worldbank"})
	r.Register(namedProvider{"restcountries"})

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "imf", all[0].Name())
	assert.Equal(t, "worldbank", all[1].Name())
	assert.Equal(t, "restcountries", all[2].Name())
}

func TestRegistry_ReRegisterKeepsPosition(t *testing.T) {
	r := NewRegistry()
	r.Register(namedProvider{"imf"})
	r.Register(namedProvider{"worldbank"})
	r.Register(namedProvider{"imf"})

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "imf", all[0].Name())
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	r.Register(namedProvider{"imf"})

	assert.NotNil(t, r.Get("imf"))
	assert.Nil(t, r.Get("missing"))
}
