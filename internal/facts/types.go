// Package facts implements the fact evaluation, trust-scoring, and promotion
// pipeline: multi-provider ingestion of numeric claims about countries,
// composite trust scoring, consensus aggregation, and idempotent promotion of
// high-confidence claims into the verified fact set.
package facts

import (
	"fmt"
	"time"
)

// Evaluation is a single scored claim awaiting possible promotion.
type Evaluation struct {
	ID         int64      `json:"id"`
	Entity     string     `json:"entity"`
	Attribute  string     `json:"attribute"`
	Value      string     `json:"value"`
	ValueType  string     `json:"value_type"`
	SourceName string     `json:"source_name"`
	SourceURL  string     `json:"source_url"`
	AsOfDate   *time.Time `json:"as_of_date,omitempty"` // when the fact is true; nil when unknown, never fabricated
	EvaluatedAt time.Time `json:"evaluated_at"`         // when the claim was fetched and scored

	SourceTrustScore  int `json:"source_trust_score"`
	RecencyScore      int `json:"recency_score"`
	ConsensusScore    int `json:"consensus_score"`
	SourceTrustWeight int `json:"source_trust_weight"`
	RecencyWeight     int `json:"recency_weight"`
	ConsensusWeight   int `json:"consensus_weight"`
	TrustScore        int `json:"trust_score"`

	Notes     string    `json:"notes,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// IdentityKey returns the deduplication key for this evaluation:
// (entity, attribute, source, as_of_date). A nil as_of_date is a distinct
// key value of its own.
func (e Evaluation) IdentityKey() string {
	return KeyString(e.Entity, e.Attribute, e.SourceName, e.AsOfDate)
}

// KeyString builds the canonical identity key for a fact instance.
func KeyString(entity, attribute, sourceName string, asOf *time.Time) string {
	date := ""
	if asOf != nil {
		date = asOf.Format("2006-01-02")
	}
	return fmt.Sprintf("%s|%s|%s|%s", entity, attribute, sourceName, date)
}

// Fact is a promoted, authoritative claim record. At most one row exists per
// (entity, attribute, source, as_of_date); re-promotion refreshes value, URL,
// and timestamp but never duplicates.
type Fact struct {
	ID         int64      `json:"id"`
	Entity     string     `json:"entity"`
	Attribute  string     `json:"attribute"`
	Value      string     `json:"value"`
	ValueType  string     `json:"value_type"`
	SourceName string     `json:"source_name"`
	SourceURL  string     `json:"source_url"`
	AsOfDate   *time.Time `json:"as_of_date,omitempty"`
	Category   string     `json:"category"`
	TrustScore int        `json:"trust_score"`
	VerifiedAt time.Time  `json:"verified_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IdentityKey returns the verified-set deduplication key.
func (f Fact) IdentityKey() string {
	return KeyString(f.Entity, f.Attribute, f.SourceName, f.AsOfDate)
}

// RequestedFact is a backlog entry representing unmet user demand for a fact.
type RequestedFact struct {
	ID           int64     `json:"id"`
	Entity       string    `json:"entity"`
	Attribute    string    `json:"attribute"`
	ClaimedValue *string   `json:"claimed_value,omitempty"`
	ClaimedYear  *int      `json:"claimed_year,omitempty"`
	RequestCount int       `json:"request_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// ActivityEntry is one append-only audit row in facts_activity_log.
type ActivityEntry struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id,omitempty"`
	Action     string    `json:"action"` // ingested | promoted | updated | requested | backfilled
	Entity     string    `json:"entity"`
	Attribute  string    `json:"attribute"`
	SourceName string    `json:"source_name,omitempty"`
	TrustScore *int      `json:"trust_score,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Pair is a distinct (entity, attribute) combination in the evaluation set.
type Pair struct {
	Entity    string `json:"entity"`
	Attribute string `json:"attribute"`
}

// ReconcileResult reports the outcome of a cross-source reconciliation run.
// Per-provider failures are collected in Errors; the run itself never aborts.
type ReconcileResult struct {
	RunID             string         `json:"run_id"`
	PairsExamined     int            `json:"pairs_examined"`
	Added             map[string]int `json:"added"` // provider name -> evaluations inserted
	DuplicatesSkipped int            `json:"duplicates_skipped"`
	NoData            int            `json:"no_data"`
	Errors            []string       `json:"errors"`
}

// TotalAdded sums per-provider additions.
func (r *ReconcileResult) TotalAdded() int {
	total := 0
	for _, n := range r.Added {
		total += n
	}
	return total
}

// PromoteResult reports the outcome of a promotion run.
// Promoted counts every candidate carried into the verified set, whether it
// landed as a fresh insert or refreshed an existing row.
type PromoteResult struct {
	RunID    string `json:"run_id"`
	Promoted int    `json:"promoted"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
	Skipped  int    `json:"skipped"` // duplicate identity keys dropped before upsert
}

// RecalcResult reports the outcome of a recalculate-all run.
type RecalcResult struct {
	RunID         string   `json:"run_id"`
	PairsExamined int      `json:"pairs_examined"`
	Updated       int      `json:"updated"`
	Errors        []string `json:"errors"`
}

// BackfillResult reports the outcome of a requested-facts backfill run.
type BackfillResult struct {
	RunID           string   `json:"run_id"`
	Fulfilled       int      `json:"fulfilled"`
	ConfirmedAbsent int      `json:"confirmed_absent"`
	Remaining       int      `json:"remaining"`
	Errors          []string `json:"errors"`
}
