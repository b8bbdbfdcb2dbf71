package source

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/verifact/internal/db"
)

// Store defines persistence operations for sources, identity metrics, and
// the TLD reputation table.
type Store interface {
	GetByDomain(ctx context.Context, domain string) (*Source, error)
	Ensure(ctx context.Context, domain, name string) (*Source, error)
	List(ctx context.Context) ([]Source, error)
	UpdateStatus(ctx context.Context, id int64, status string, promotedAt *time.Time) error
	Delete(ctx context.Context, id int64) error
	GetIdentityMetrics(ctx context.Context, sourceID int64) (*IdentityMetrics, error)
	SaveIdentityMetrics(ctx context.Context, m *IdentityMetrics) error
	ListTldScores(ctx context.Context) ([]TldScore, error)
	SetTldScore(ctx context.Context, tld string, score int) error
	ImportTldScores(ctx context.Context, entries []TldScore) (int64, error)
	AppendActivity(ctx context.Context, e ActivityEntry) error
	RecentActivity(ctx context.Context, limit int) ([]ActivityEntry, error)
}

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const sourceColumns = `id, domain, name, identity_score, legitimacy, data_quality,
	data_accuracy, transparency, status, promoted_at, facts_contributed, created_at`

// GetByDomain returns the source registered for a domain, or nil.
func (s *PostgresStore) GetByDomain(ctx context.Context, domain string) (*Source, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE domain = $1`,
		normalizeDomain(domain),
	)
	src, err := scanSource(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "source: get by domain %s", domain)
	}
	return src, nil
}

// Ensure returns the source for a domain, registering it in pending_review
// with neutral quality dimensions on first reference.
func (s *PostgresStore) Ensure(ctx context.Context, domain, name string) (*Source, error) {
	domain = normalizeDomain(domain)

	existing, err := s.GetByDomain(ctx, domain)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO sources (domain, name, identity_score, legitimacy, data_quality, data_accuracy, transparency, status)
		 VALUES ($1, $2, 50, 50, 50, 50, 50, $3)
		 ON CONFLICT (domain) DO UPDATE SET name = sources.name
		 RETURNING `+sourceColumns,
		domain, name, StatusPendingReview,
	)
	src, err := scanSource(row)
	if err != nil {
		return nil, eris.Wrapf(err, "source: ensure %s", domain)
	}
	return src, nil
}

// List returns all sources ordered by domain.
func (s *PostgresStore) List(ctx context.Context) ([]Source, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sourceColumns+` FROM sources ORDER BY domain`)
	if err != nil {
		return nil, eris.Wrap(err, "source: list")
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, eris.Wrap(err, "source: scan")
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

// UpdateStatus transitions a source's lifecycle status.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id int64, status string, promotedAt *time.Time) error {
	switch status {
	case StatusPendingReview, StatusTrusted, StatusRejected:
	default:
		return eris.Errorf("source: invalid status %q", status)
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE sources SET status = $2, promoted_at = $3 WHERE id = $1`,
		id, status, promotedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "source: update status for %d", id)
	}
	return nil
}

// Delete removes a source. Explicit admin action only.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "source: delete %d", id)
	}
	return nil
}

// GetIdentityMetrics returns the identity sub-scores for a source, or nil.
func (s *PostgresStore) GetIdentityMetrics(ctx context.Context, sourceID int64) (*IdentityMetrics, error) {
	var m IdentityMetrics
	err := s.pool.QueryRow(ctx,
		`SELECT source_id, url_repute, certificate, cert_status, ownership, ownership_status, identity_score, updated_at
		 FROM source_identity_metrics WHERE source_id = $1`,
		sourceID,
	).Scan(&m.SourceID, &m.URLRepute, &m.Certificate, &m.CertStatus,
		&m.Ownership, &m.OwnershipStatus, &m.IdentityScore, &m.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "source: get identity metrics for %d", sourceID)
	}
	return &m, nil
}

// SaveIdentityMetrics upserts the metrics row and mirrors the recomputed
// identity score onto the source, in one transaction. The identity score is
// recomputed here so the row can never go stale relative to its sub-scores.
func (s *PostgresStore) SaveIdentityMetrics(ctx context.Context, m *IdentityMetrics) error {
	m.Recompute()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "source: save metrics: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO source_identity_metrics
			(source_id, url_repute, certificate, cert_status, ownership, ownership_status, identity_score, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 ON CONFLICT (source_id) DO UPDATE SET
			url_repute = EXCLUDED.url_repute,
			certificate = EXCLUDED.certificate,
			cert_status = EXCLUDED.cert_status,
			ownership = EXCLUDED.ownership,
			ownership_status = EXCLUDED.ownership_status,
			identity_score = EXCLUDED.identity_score,
			updated_at = now()`,
		m.SourceID, m.URLRepute, m.Certificate, m.CertStatus,
		m.Ownership, m.OwnershipStatus, m.IdentityScore,
	)
	if err != nil {
		return eris.Wrapf(err, "source: upsert identity metrics for %d", m.SourceID)
	}

	_, err = tx.Exec(ctx,
		`UPDATE sources SET identity_score = $2 WHERE id = $1`,
		m.SourceID, m.IdentityScore,
	)
	if err != nil {
		return eris.Wrapf(err, "source: mirror identity score for %d", m.SourceID)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "source: save metrics: commit tx")
	}
	return nil
}

// ListTldScores returns the full TLD reputation table.
func (s *PostgresStore) ListTldScores(ctx context.Context) ([]TldScore, error) {
	rows, err := s.pool.Query(ctx, `SELECT tld, score FROM tld_scores ORDER BY tld`)
	if err != nil {
		return nil, eris.Wrap(err, "source: list tld scores")
	}
	defer rows.Close()

	var entries []TldScore
	for rows.Next() {
		var e TldScore
		if err := rows.Scan(&e.TLD, &e.Score); err != nil {
			return nil, eris.Wrap(err, "source: scan tld score")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SetTldScore upserts one TLD reputation entry.
func (s *PostgresStore) SetTldScore(ctx context.Context, tld string, score int) error {
	if score < 0 || score > 100 {
		return eris.Errorf("source: tld score %d out of range", score)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tld_scores (tld, score) VALUES ($1, $2)
		 ON CONFLICT (tld) DO UPDATE SET score = EXCLUDED.score`,
		tld, score,
	)
	if err != nil {
		return eris.Wrapf(err, "source: set tld score %s", tld)
	}
	return nil
}

// ImportTldScores bulk-upserts the TLD table from a curated import.
func (s *PostgresStore) ImportTldScores(ctx context.Context, entries []TldScore) (int64, error) {
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{e.TLD, e.Score}
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "tld_scores",
		Columns:      []string{"tld", "score"},
		ConflictKeys: []string{"tld"},
	}, rows)
}

// AppendActivity writes one audit entry to sources_activity_log.
func (s *PostgresStore) AppendActivity(ctx context.Context, e ActivityEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sources_activity_log (source_id, action, detail) VALUES ($1, $2, $3)`,
		e.SourceID, e.Action, e.Detail,
	)
	if err != nil {
		return eris.Wrap(err, "source: append activity")
	}
	return nil
}

// RecentActivity returns the newest audit entries, for display only.
func (s *PostgresStore) RecentActivity(ctx context.Context, limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, source_id, action, detail, created_at
		 FROM sources_activity_log ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "source: recent activity")
	}
	defer rows.Close()

	var entries []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		if err := rows.Scan(&e.ID, &e.SourceID, &e.Action, &e.Detail, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "source: scan activity")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanSource(row pgx.Row) (*Source, error) {
	var src Source
	err := row.Scan(
		&src.ID, &src.Domain, &src.Name, &src.IdentityScore, &src.Legitimacy,
		&src.DataQuality, &src.DataAccuracy, &src.Transparency, &src.Status,
		&src.PromotedAt, &src.FactsContributed, &src.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &src, nil
}
