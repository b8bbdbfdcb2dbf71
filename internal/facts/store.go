package facts

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/verifact/internal/db"
)

// isUniqueViolation reports whether err is a Postgres unique-index violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Store defines persistence operations for the fact pipeline.
type Store interface {
	DistinctPairs(ctx context.Context) ([]Pair, error)
	SourcesForPair(ctx context.Context, entity, attribute string) ([]string, error)
	EvaluationExists(ctx context.Context, entity, attribute, sourceName string, asOf *time.Time) (bool, error)
	InsertEvaluation(ctx context.Context, e *Evaluation) error
	ListEvaluations(ctx context.Context, entity, attribute string) ([]Evaluation, error)
	ListAllEvaluations(ctx context.Context) ([]Evaluation, error)
	ListPromotable(ctx context.Context, threshold int) ([]Evaluation, error)
	UpdateEvaluationScores(ctx context.Context, e *Evaluation) error
	ExistingFactKeys(ctx context.Context) (map[string]bool, error)
	ListFacts(ctx context.Context, entity, attribute string) ([]Fact, error)
	UpsertFacts(ctx context.Context, rows []Fact) (int64, error)
	ResyncContributionCounts(ctx context.Context) error
	GetSettings(ctx context.Context) (*Settings, error)
	UpdateSettings(ctx context.Context, patch SettingsPatch) (*Settings, error)
	ListRequested(ctx context.Context) ([]RequestedFact, error)
	RequestFact(ctx context.Context, entity, attribute string, claimedValue *string, claimedYear *int) error
	RemoveRequested(ctx context.Context, id int64) error
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

const evaluationColumns = `id, entity, attribute, value, value_type, source_name, source_url,
	as_of_date, evaluated_at, source_trust_score, recency_score, consensus_score,
	source_trust_weight, recency_weight, consensus_weight, trust_score, notes, status, created_at`

// DistinctPairs enumerates every (entity, attribute) combination present in
// the evaluation set.
func (s *PostgresStore) DistinctPairs(ctx context.Context) ([]Pair, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT entity, attribute FROM facts_evaluation ORDER BY entity, attribute`)
	if err != nil {
		return nil, eris.Wrap(err, "facts: distinct pairs")
	}
	defer rows.Close()

	var pairs []Pair
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.Entity, &p.Attribute); err != nil {
			return nil, eris.Wrap(err, "facts: scan pair")
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// SourcesForPair returns the source names already represented for a pair.
func (s *PostgresStore) SourcesForPair(ctx context.Context, entity, attribute string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT source_name FROM facts_evaluation WHERE entity = $1 AND attribute = $2`,
		entity, attribute)
	if err != nil {
		return nil, eris.Wrapf(err, "facts: sources for %s/%s", entity, attribute)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, eris.Wrap(err, "facts: scan source name")
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// EvaluationExists re-checks for a row with the same identity before insert.
// A nil as_of_date matches rows where the date is null.
func (s *PostgresStore) EvaluationExists(ctx context.Context, entity, attribute, sourceName string, asOf *time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM facts_evaluation
			WHERE entity = $1 AND attribute = $2 AND source_name = $3
			  AND as_of_date IS NOT DISTINCT FROM $4)`,
		entity, attribute, sourceName, asOf,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "facts: evaluation exists %s/%s", entity, attribute)
	}
	return exists, nil
}

// InsertEvaluation inserts one scored claim and fills in its ID.
func (s *PostgresStore) InsertEvaluation(ctx context.Context, e *Evaluation) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO facts_evaluation
			(entity, attribute, value, value_type, source_name, source_url, as_of_date,
			 evaluated_at, source_trust_score, recency_score, consensus_score,
			 source_trust_weight, recency_weight, consensus_weight, trust_score, notes, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 RETURNING id`,
		e.Entity, e.Attribute, e.Value, e.ValueType, e.SourceName, e.SourceURL, e.AsOfDate,
		e.EvaluatedAt, e.SourceTrustScore, e.RecencyScore, e.ConsensusScore,
		e.SourceTrustWeight, e.RecencyWeight, e.ConsensusWeight, e.TrustScore, e.Notes, e.Status,
	).Scan(&e.ID)
	if err != nil {
		return eris.Wrapf(err, "facts: insert evaluation %s/%s", e.Entity, e.Attribute)
	}
	return nil
}

// ListEvaluations returns every evaluation for a pair, including all
// time-series points.
func (s *PostgresStore) ListEvaluations(ctx context.Context, entity, attribute string) ([]Evaluation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+evaluationColumns+` FROM facts_evaluation
		 WHERE entity = $1 AND attribute = $2 ORDER BY id`,
		entity, attribute)
	if err != nil {
		return nil, eris.Wrapf(err, "facts: list evaluations %s/%s", entity, attribute)
	}
	defer rows.Close()
	return scanEvaluations(rows)
}

// ListAllEvaluations returns the full evaluation set, for recalculation.
func (s *PostgresStore) ListAllEvaluations(ctx context.Context) ([]Evaluation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+evaluationColumns+` FROM facts_evaluation ORDER BY entity, attribute, id`)
	if err != nil {
		return nil, eris.Wrap(err, "facts: list all evaluations")
	}
	defer rows.Close()
	return scanEvaluations(rows)
}

// ListPromotable returns evaluations at or above the trust threshold, ordered
// most authoritative first: as_of_date desc (nulls last), then evaluated_at
// desc. The promotion engine's dedup keeps the first row per identity key.
func (s *PostgresStore) ListPromotable(ctx context.Context, threshold int) ([]Evaluation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+evaluationColumns+` FROM facts_evaluation
		 WHERE trust_score >= $1
		 ORDER BY as_of_date DESC NULLS LAST, evaluated_at DESC, id DESC`,
		threshold)
	if err != nil {
		return nil, eris.Wrap(err, "facts: list promotable")
	}
	defer rows.Close()
	return scanEvaluations(rows)
}

// UpdateEvaluationScores rewrites the component scores, weights, and combined
// trust score of one evaluation.
func (s *PostgresStore) UpdateEvaluationScores(ctx context.Context, e *Evaluation) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE facts_evaluation SET
			source_trust_score = $2, recency_score = $3, consensus_score = $4,
			source_trust_weight = $5, recency_weight = $6, consensus_weight = $7,
			trust_score = $8
		 WHERE id = $1`,
		e.ID, e.SourceTrustScore, e.RecencyScore, e.ConsensusScore,
		e.SourceTrustWeight, e.RecencyWeight, e.ConsensusWeight, e.TrustScore,
	)
	if err != nil {
		return eris.Wrapf(err, "facts: update scores for evaluation %d", e.ID)
	}
	return nil
}

// ExistingFactKeys returns the identity keys already present in the verified
// set, for partitioning promotions into inserts and updates.
func (s *PostgresStore) ExistingFactKeys(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entity, attribute, source_name, as_of_date FROM facts`)
	if err != nil {
		return nil, eris.Wrap(err, "facts: existing fact keys")
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		var entity, attribute, sourceName string
		var asOf *time.Time
		if err := rows.Scan(&entity, &attribute, &sourceName, &asOf); err != nil {
			return nil, eris.Wrap(err, "facts: scan fact key")
		}
		keys[KeyString(entity, attribute, sourceName, asOf)] = true
	}
	return keys, rows.Err()
}

// ListFacts returns verified facts for a pair, newest as_of_date first.
func (s *PostgresStore) ListFacts(ctx context.Context, entity, attribute string) ([]Fact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, entity, attribute, value, value_type, source_name, source_url,
			as_of_date, category, trust_score, verified_at, created_at
		 FROM facts WHERE entity = $1 AND attribute = $2
		 ORDER BY as_of_date DESC NULLS LAST, id`,
		entity, attribute)
	if err != nil {
		return nil, eris.Wrapf(err, "facts: list facts %s/%s", entity, attribute)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.ID, &f.Entity, &f.Attribute, &f.Value, &f.ValueType,
			&f.SourceName, &f.SourceURL, &f.AsOfDate, &f.Category, &f.TrustScore,
			&f.VerifiedAt, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "facts: scan fact")
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// factsIdentityExpr is the conflict target backing the verified-set identity
// invariant: at most one row per (entity, attribute, source, as_of_date).
// The COALESCE sentinel exists only inside the unique index; a null
// as_of_date is never rewritten in data.
const factsIdentityExpr = `entity, attribute, source_name, COALESCE(as_of_date, DATE '0001-01-01')`

// UpsertFacts inserts or refreshes verified facts in one parameterized bulk
// operation keyed by the identity tuple.
func (s *PostgresStore) UpsertFacts(ctx context.Context, facts []Fact) (int64, error) {
	rows := make([][]any, len(facts))
	for i, f := range facts {
		rows[i] = []any{
			f.Entity, f.Attribute, f.Value, f.ValueType, f.SourceName, f.SourceURL,
			f.AsOfDate, f.Category, f.TrustScore, f.VerifiedAt,
		}
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "facts",
		Columns: []string{
			"entity", "attribute", "value", "value_type", "source_name", "source_url",
			"as_of_date", "category", "trust_score", "verified_at",
		},
		ConflictExpr: factsIdentityExpr,
		UpdateCols:   []string{"value", "value_type", "source_url", "category", "trust_score", "verified_at"},
	}, rows)
}

// ResyncContributionCounts rewrites each source's verified-fact counter from
// an authoritative count over the verified set. Deliberate reconciliation to
// correct drift from incremental updates elsewhere.
func (s *PostgresStore) ResyncContributionCounts(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sources SET facts_contributed = COALESCE(c.n, 0)
		 FROM sources s2
		 LEFT JOIN (
			SELECT source_name, COUNT(*) AS n FROM facts GROUP BY source_name
		 ) c ON c.source_name = s2.name
		 WHERE sources.id = s2.id`)
	if err != nil {
		return eris.Wrap(err, "facts: resync contribution counts")
	}
	return nil
}

// GetSettings returns the scoring settings row, or nil when absent.
func (s *PostgresStore) GetSettings(ctx context.Context) (*Settings, error) {
	var st Settings
	err := s.pool.QueryRow(ctx,
		`SELECT source_trust_weight, recency_weight, consensus_weight,
			recency_tier1_days, recency_tier1_score, recency_tier2_days,
			recency_tier2_score, recency_tier3_score,
			credible_threshold, promotion_threshold
		 FROM scoring_settings LIMIT 1`,
	).Scan(&st.SourceTrustWeight, &st.RecencyWeight, &st.ConsensusWeight,
		&st.RecencyTier1Days, &st.RecencyTier1Score, &st.RecencyTier2Days,
		&st.RecencyTier2Score, &st.RecencyTier3Score,
		&st.CredibleThreshold, &st.PromotionThreshold)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "facts: get settings")
	}
	return &st, nil
}

// LoadSettings returns the stored settings, or DefaultSettings when no row
// exists. Missing configuration is not an error.
func LoadSettings(ctx context.Context, store Store) (Settings, error) {
	st, err := store.GetSettings(ctx)
	if err != nil {
		return Settings{}, err
	}
	if st == nil {
		return DefaultSettings, nil
	}
	return *st, nil
}

// UpdateSettings applies a partial patch to the settings row, creating it
// from defaults first if absent, and returns the result.
func (s *PostgresStore) UpdateSettings(ctx context.Context, patch SettingsPatch) (*Settings, error) {
	current, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	next := DefaultSettings
	if current != nil {
		next = *current
	}
	patch.Apply(&next)

	_, err = s.pool.Exec(ctx,
		`INSERT INTO scoring_settings
			(id, source_trust_weight, recency_weight, consensus_weight,
			 recency_tier1_days, recency_tier1_score, recency_tier2_days,
			 recency_tier2_score, recency_tier3_score,
			 credible_threshold, promotion_threshold)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
			source_trust_weight = EXCLUDED.source_trust_weight,
			recency_weight = EXCLUDED.recency_weight,
			consensus_weight = EXCLUDED.consensus_weight,
			recency_tier1_days = EXCLUDED.recency_tier1_days,
			recency_tier1_score = EXCLUDED.recency_tier1_score,
			recency_tier2_days = EXCLUDED.recency_tier2_days,
			recency_tier2_score = EXCLUDED.recency_tier2_score,
			recency_tier3_score = EXCLUDED.recency_tier3_score,
			credible_threshold = EXCLUDED.credible_threshold,
			promotion_threshold = EXCLUDED.promotion_threshold`,
		next.SourceTrustWeight, next.RecencyWeight, next.ConsensusWeight,
		next.RecencyTier1Days, next.RecencyTier1Score, next.RecencyTier2Days,
		next.RecencyTier2Score, next.RecencyTier3Score,
		next.CredibleThreshold, next.PromotionThreshold,
	)
	if err != nil {
		return nil, eris.Wrap(err, "facts: update settings")
	}
	return &next, nil
}

// ListRequested returns the unmet-demand backlog, most requested first.
func (s *PostgresStore) ListRequested(ctx context.Context) ([]RequestedFact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, entity, attribute, claimed_value, claimed_year, request_count, created_at
		 FROM requested_facts ORDER BY request_count DESC, id`)
	if err != nil {
		return nil, eris.Wrap(err, "facts: list requested")
	}
	defer rows.Close()

	var reqs []RequestedFact
	for rows.Next() {
		var r RequestedFact
		if err := rows.Scan(&r.ID, &r.Entity, &r.Attribute, &r.ClaimedValue,
			&r.ClaimedYear, &r.RequestCount, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "facts: scan requested")
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

// RequestFact records unmet demand, incrementing the counter on repeats.
func (s *PostgresStore) RequestFact(ctx context.Context, entity, attribute string, claimedValue *string, claimedYear *int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO requested_facts (entity, attribute, claimed_value, claimed_year, request_count)
		 VALUES ($1, $2, $3, $4, 1)
		 ON CONFLICT (entity, attribute) DO UPDATE SET
			request_count = requested_facts.request_count + 1`,
		entity, attribute, claimedValue, claimedYear,
	)
	if err != nil {
		return eris.Wrapf(err, "facts: request fact %s/%s", entity, attribute)
	}
	return nil
}

// RemoveRequested deletes a fulfilled (or confirmed absent) backlog entry.
func (s *PostgresStore) RemoveRequested(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM requested_facts WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "facts: remove requested %d", id)
	}
	return nil
}

// AppendActivity writes one audit entry to facts_activity_log.
func (s *PostgresStore) AppendActivity(ctx context.Context, e ActivityEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO facts_activity_log (run_id, action, entity, attribute, source_name, trust_score, detail)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.RunID, e.Action, e.Entity, e.Attribute, e.SourceName, e.TrustScore, e.Detail,
	)
	if err != nil {
		return eris.Wrap(err, "facts: append activity")
	}
	return nil
}

// RecentActivity returns the newest audit entries, for display only.
func (s *PostgresStore) RecentActivity(ctx context.Context, limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, action, entity, attribute, source_name, trust_score, detail, created_at
		 FROM facts_activity_log ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "facts: recent activity")
	}
	defer rows.Close()

	var entries []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		if err := rows.Scan(&e.ID, &e.RunID, &e.Action, &e.Entity, &e.Attribute,
			&e.SourceName, &e.TrustScore, &e.Detail, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "facts: scan activity")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEvaluations(rows pgx.Rows) ([]Evaluation, error) {
	var evals []Evaluation
	for rows.Next() {
		var e Evaluation
		if err := rows.Scan(
			&e.ID, &e.Entity, &e.Attribute, &e.Value, &e.ValueType, &e.SourceName, &e.SourceURL,
			&e.AsOfDate, &e.EvaluatedAt, &e.SourceTrustScore, &e.RecencyScore, &e.ConsensusScore,
			&e.SourceTrustWeight, &e.RecencyWeight, &e.ConsensusWeight, &e.TrustScore,
			&e.Notes, &e.Status, &e.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "facts: scan evaluation")
		}
		evals = append(evals, e)
	}
	return evals, rows.Err()
}
