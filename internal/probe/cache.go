// Package probe provides a local cache for slow, rate-limited network probes
// (TLS handshakes, WHOIS lookups). Entries expire by TTL; deleting the cache
// file is always safe.
package probe

import (
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Cache is a sqlite-backed key/value store with per-entry expiry.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// OpenCache opens (or creates) the cache database at path.
func OpenCache(path string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "probe: open cache")
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS probe_results (
		kind       TEXT NOT NULL,
		domain     TEXT NOT NULL,
		score      INTEGER NOT NULL,
		status     TEXT NOT NULL DEFAULT '',
		fetched_at INTEGER NOT NULL,
		PRIMARY KEY (kind, domain)
	)`)
	if err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "probe: init cache schema")
	}

	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

// WithNow sets a fixed clock for testing.
func (c *Cache) WithNow(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Entry is one cached probe outcome.
type Entry struct {
	Score  int
	Status string
}

// Get returns the cached entry for (kind, domain) if present and fresh.
func (c *Cache) Get(kind, domain string) (*Entry, bool, error) {
	var e Entry
	var fetchedAt int64
	err := c.db.QueryRow(
		`SELECT score, status, fetched_at FROM probe_results WHERE kind = ? AND domain = ?`,
		kind, domain,
	).Scan(&e.Score, &e.Status, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "probe: cache get")
	}

	if c.now().Sub(time.Unix(fetchedAt, 0)) > c.ttl {
		return nil, false, nil
	}
	return &e, true, nil
}

// Put stores a probe outcome, replacing any previous entry.
func (c *Cache) Put(kind, domain string, e Entry) error {
	_, err := c.db.Exec(
		`INSERT INTO probe_results (kind, domain, score, status, fetched_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (kind, domain) DO UPDATE SET
			score = excluded.score, status = excluded.status, fetched_at = excluded.fetched_at`,
		kind, domain, e.Score, e.Status, c.now().Unix(),
	)
	if err != nil {
		return eris.Wrap(err, "probe: cache put")
	}
	return nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}
