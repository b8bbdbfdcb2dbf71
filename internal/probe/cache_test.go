package probe

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	cache, err := OpenCache(filepath.Join(t.TempDir(), "probes.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() }) //nolint:errcheck
	return cache
}

func TestCache_PutGetRoundTrip(t *testing.T) {
	cache := openTestCache(t, time.Hour)

	require.NoError(t, cache.Put("cert", "example.org", Entry{Score: 100, Status: "valid"}))

	entry, ok, err := cache.Get("cert", "example.org")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 100, entry.Score)
	assert.Equal(t, "valid", entry.Status)
}

func TestCache_MissOnUnknownDomain(t *testing.T) {
	cache := openTestCache(t, time.Hour)

	entry, ok, err := cache.Get("cert", "nowhere.example")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, entry)
}

func TestCache_KindsDoNotCollide(t *testing.T) {
	cache := openTestCache(t, time.Hour)

	require.NoError(t, cache.Put("cert", "example.org", Entry{Score: 100}))
	require.NoError(t, cache.Put("whois", "example.org", Entry{Score: 70}))

	cert, ok, err := cache.Get("cert", "example.org")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 100, cert.Score)

	whois, ok, err := cache.Get("whois", "example.org")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 70, whois.Score)
}

func TestCache_ExpiredEntryIsMiss(t *testing.T) {
	cache := openTestCache(t, 24*time.Hour)

	written := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cache.WithNow(func() time.Time { return written })
	require.NoError(t, cache.Put("whois", "example.org", Entry{Score: 70, Status: "ok"}))

	// Still fresh just inside the TTL.
	cache.WithNow(func() time.Time { return written.Add(23 * time.Hour) })
	_, ok, err := cache.Get("whois", "example.org")
	require.NoError(t, err)
	assert.True(t, ok)

	// Stale once the TTL has elapsed.
	cache.WithNow(func() time.Time { return written.Add(25 * time.Hour) })
	_, ok, err = cache.Get("whois", "example.org")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_PutReplacesPreviousEntry(t *testing.T) {
	cache := openTestCache(t, time.Hour)

	require.NoError(t, cache.Put("cert", "example.org", Entry{Score: 0, Status: "expired"}))
	require.NoError(t, cache.Put("cert", "example.org", Entry{Score: 100, Status: "valid"}))

	entry, ok, err := cache.Get("cert", "example.org")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 100, entry.Score)
	assert.Equal(t, "valid", entry.Status)
}
