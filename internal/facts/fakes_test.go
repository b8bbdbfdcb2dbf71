package facts

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/verifact/internal/provider"
	"github.com/sells-group/verifact/internal/source"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// memStore is an in-memory Store for engine tests.
type memStore struct {
	settings  *Settings
	evals     []Evaluation
	facts     map[string]Fact
	requested []RequestedFact
	activity  []ActivityEntry
	resyncs   int
	nextID    int64

	// existsOverride forces EvaluationExists, to exercise the pre-insert
	// re-check independently of coverage.
	existsOverride *bool

	// insertErr makes InsertEvaluation fail, to exercise race handling.
	insertErr error
}

func newMemStore() *memStore {
	return &memStore{facts: make(map[string]Fact)}
}

func (m *memStore) DistinctPairs(ctx context.Context) ([]Pair, error) {
	seen := make(map[Pair]bool)
	var pairs []Pair
	for _, e := range m.evals {
		p := Pair{Entity: e.Entity, Attribute: e.Attribute}
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}
	return pairs, nil
}

func (m *memStore) SourcesForPair(ctx context.Context, entity, attribute string) ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	for _, e := range m.evals {
		if e.Entity == entity && e.Attribute == attribute && !seen[e.SourceName] {
			seen[e.SourceName] = true
			names = append(names, e.SourceName)
		}
	}
	return names, nil
}

func (m *memStore) EvaluationExists(ctx context.Context, entity, attribute, sourceName string, asOf *time.Time) (bool, error) {
	if m.existsOverride != nil {
		return *m.existsOverride, nil
	}
	key := KeyString(entity, attribute, sourceName, asOf)
	for _, e := range m.evals {
		if e.IdentityKey() == key {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) InsertEvaluation(ctx context.Context, e *Evaluation) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.nextID++
	e.ID = m.nextID
	m.evals = append(m.evals, *e)
	return nil
}

func (m *memStore) ListEvaluations(ctx context.Context, entity, attribute string) ([]Evaluation, error) {
	var out []Evaluation
	for _, e := range m.evals {
		if e.Entity == entity && e.Attribute == attribute {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) ListAllEvaluations(ctx context.Context) ([]Evaluation, error) {
	return append([]Evaluation(nil), m.evals...), nil
}

func (m *memStore) ListPromotable(ctx context.Context, threshold int) ([]Evaluation, error) {
	var out []Evaluation
	for _, e := range m.evals {
		if e.TrustScore >= threshold {
			out = append(out, e)
		}
	}
	// as_of_date desc nulls last, then evaluated_at desc.
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].AsOfDate, out[j].AsOfDate
		switch {
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		}
		return out[i].EvaluatedAt.After(out[j].EvaluatedAt)
	})
	return out, nil
}

func (m *memStore) UpdateEvaluationScores(ctx context.Context, e *Evaluation) error {
	for i := range m.evals {
		if m.evals[i].ID == e.ID {
			m.evals[i].SourceTrustScore = e.SourceTrustScore
			m.evals[i].RecencyScore = e.RecencyScore
			m.evals[i].ConsensusScore = e.ConsensusScore
			m.evals[i].SourceTrustWeight = e.SourceTrustWeight
			m.evals[i].RecencyWeight = e.RecencyWeight
			m.evals[i].ConsensusWeight = e.ConsensusWeight
			m.evals[i].TrustScore = e.TrustScore
			return nil
		}
	}
	return nil
}

func (m *memStore) ExistingFactKeys(ctx context.Context) (map[string]bool, error) {
	keys := make(map[string]bool, len(m.facts))
	for k := range m.facts {
		keys[k] = true
	}
	return keys, nil
}

func (m *memStore) ListFacts(ctx context.Context, entity, attribute string) ([]Fact, error) {
	var out []Fact
	for _, f := range m.facts {
		if f.Entity == entity && f.Attribute == attribute {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memStore) UpsertFacts(ctx context.Context, rows []Fact) (int64, error) {
	for _, f := range rows {
		m.facts[f.IdentityKey()] = f
	}
	return int64(len(rows)), nil
}

func (m *memStore) ResyncContributionCounts(ctx context.Context) error {
	m.resyncs++
	return nil
}

func (m *memStore) GetSettings(ctx context.Context) (*Settings, error) {
	return m.settings, nil
}

func (m *memStore) UpdateSettings(ctx context.Context, patch SettingsPatch) (*Settings, error) {
	next := DefaultSettings
	if m.settings != nil {
		next = *m.settings
	}
	patch.Apply(&next)
	m.settings = &next
	return &next, nil
}

func (m *memStore) ListRequested(ctx context.Context) ([]RequestedFact, error) {
	return append([]RequestedFact(nil), m.requested...), nil
}

func (m *memStore) RequestFact(ctx context.Context, entity, attribute string, claimedValue *string, claimedYear *int) error {
	for i := range m.requested {
		if m.requested[i].Entity == entity && m.requested[i].Attribute == attribute {
			m.requested[i].RequestCount++
			return nil
		}
	}
	m.nextID++
	m.requested = append(m.requested, RequestedFact{
		ID:           m.nextID,
		Entity:       entity,
		Attribute:    attribute,
		ClaimedValue: claimedValue,
		ClaimedYear:  claimedYear,
		RequestCount: 1,
	})
	return nil
}

func (m *memStore) RemoveRequested(ctx context.Context, id int64) error {
	for i := range m.requested {
		if m.requested[i].ID == id {
			m.requested = append(m.requested[:i], m.requested[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memStore) AppendActivity(ctx context.Context, e ActivityEntry) error {
	m.activity = append(m.activity, e)
	return nil
}

func (m *memStore) RecentActivity(ctx context.Context, limit int) ([]ActivityEntry, error) {
	return append([]ActivityEntry(nil), m.activity...), nil
}

// stubProvider is a canned provider.Provider for engine tests. Results are
// keyed "entity|attribute" for latest fetches and "entity|attribute|year"
// for year-pinned ones.
type stubProvider struct {
	name    string
	domain  string
	attrs   map[string]bool
	results map[string]*provider.Result
	err     error
	calls   int
	years   []int
}

func (p *stubProvider) Name() string   { return p.name }
func (p *stubProvider) Domain() string { return p.domain }

func (p *stubProvider) Supports(attribute string) bool { return p.attrs[attribute] }

func (p *stubProvider) TryFetch(ctx context.Context, entity, attribute string, year int) (*provider.Result, error) {
	p.calls++
	p.years = append(p.years, year)
	if p.err != nil {
		return nil, p.err
	}
	if year != 0 {
		return p.results[fmt.Sprintf("%s|%s|%d", entity, attribute, year)], nil
	}
	return p.results[entity+"|"+attribute], nil
}

// memSources is a minimal source.Store that registers everything with fixed
// quality dimensions.
type memSources struct {
	trust   int
	ensured []string
}

func newMemSources(trust int) *memSources {
	return &memSources{trust: trust}
}

func (m *memSources) mkSource(domain, name string) *source.Source {
	return &source.Source{
		ID:            1,
		Domain:        domain,
		Name:          name,
		IdentityScore: m.trust,
		Legitimacy:    m.trust,
		DataQuality:   m.trust,
		DataAccuracy:  m.trust,
		Transparency:  m.trust,
		Status:        source.StatusPendingReview,
	}
}

func (m *memSources) GetByDomain(ctx context.Context, domain string) (*source.Source, error) {
	return m.mkSource(domain, domain), nil
}

func (m *memSources) Ensure(ctx context.Context, domain, name string) (*source.Source, error) {
	m.ensured = append(m.ensured, domain)
	return m.mkSource(domain, name), nil
}

func (m *memSources) List(ctx context.Context) ([]source.Source, error) { return nil, nil }

func (m *memSources) UpdateStatus(ctx context.Context, id int64, status string, promotedAt *time.Time) error {
	return nil
}

func (m *memSources) Delete(ctx context.Context, id int64) error { return nil }

func (m *memSources) GetIdentityMetrics(ctx context.Context, sourceID int64) (*source.IdentityMetrics, error) {
	return nil, nil
}

func (m *memSources) SaveIdentityMetrics(ctx context.Context, metrics *source.IdentityMetrics) error {
	return nil
}

func (m *memSources) ListTldScores(ctx context.Context) ([]source.TldScore, error) { return nil, nil }

func (m *memSources) SetTldScore(ctx context.Context, tld string, score int) error { return nil }

func (m *memSources) ImportTldScores(ctx context.Context, entries []source.TldScore) (int64, error) {
	return 0, nil
}

func (m *memSources) AppendActivity(ctx context.Context, e source.ActivityEntry) error { return nil }

func (m *memSources) RecentActivity(ctx context.Context, limit int) ([]source.ActivityEntry, error) {
	return nil, nil
}
