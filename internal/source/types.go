// Package source manages data-provider registration, quality dimensions,
// lifecycle status, and the three-signal identity scoring (TLD reputation,
// certificate validity, WHOIS ownership).
package source

import (
	"math"
	"time"
)

// Lifecycle statuses for a source.
const (
	StatusPendingReview = "pending_review"
	StatusTrusted       = "trusted"
	StatusRejected      = "rejected"
)

// Source is a data provider identified by domain, carrying five 0-100
// quality dimensions. Created on first reference by an adapter.
type Source struct {
	ID     int64  `json:"id"`
	Domain string `json:"domain"`
	Name   string `json:"name"`

	IdentityScore int `json:"identity_score"` // mirrored from identity metrics
	Legitimacy    int `json:"legitimacy"`
	DataQuality   int `json:"data_quality"`
	DataAccuracy  int `json:"data_accuracy"`
	Transparency  int `json:"transparency"`

	Status           string     `json:"status"`
	PromotedAt       *time.Time `json:"promoted_at,omitempty"`
	FactsContributed int        `json:"facts_contributed"`
	CreatedAt        time.Time  `json:"created_at"`
}

// TrustScore is the arithmetic mean of the five quality dimensions, rounded.
func (s Source) TrustScore() int {
	sum := s.IdentityScore + s.Legitimacy + s.DataQuality + s.DataAccuracy + s.Transparency
	return int(math.Round(float64(sum) / 5))
}

// IdentityMetrics holds the three identity sub-scores for a source.
// Invariant: IdentityScore is always round(mean(URLRepute, Certificate,
// Ownership)) and matches the Source's mirrored field.
type IdentityMetrics struct {
	SourceID        int64     `json:"source_id"`
	URLRepute       int       `json:"url_repute"`
	Certificate     int       `json:"certificate"`
	CertStatus      string    `json:"cert_status,omitempty"`
	Ownership       int       `json:"ownership"`
	OwnershipStatus string    `json:"ownership_status,omitempty"`
	IdentityScore   int       `json:"identity_score"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Recompute derives IdentityScore from the current sub-scores.
func (m *IdentityMetrics) Recompute() {
	sum := m.URLRepute + m.Certificate + m.Ownership
	m.IdentityScore = int(math.Round(float64(sum) / 3))
}

// TldScore maps a top-level (or multi-segment) domain suffix to a 0-100
// reputation score. Lookup is by longest-suffix match.
type TldScore struct {
	TLD   string `json:"tld"` // leading dot, e.g. ".gov", ".co.uk"
	Score int    `json:"score"`
}

// ActivityEntry is one append-only audit row in sources_activity_log.
type ActivityEntry struct {
	ID        int64     `json:"id"`
	SourceID  int64     `json:"source_id"`
	Action    string    `json:"action"` // registered | promoted | rejected | rescored | deleted
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RescoreResult reports the outcome of an identity rescoring run.
type RescoreResult struct {
	SourcesExamined int      `json:"sources_examined"`
	Updated         int      `json:"updated"`
	Errors          []string `json:"errors"`
}
