package source

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// memSourceStore is an in-memory Store for identity-scorer tests. The mutex
// matters: RescoreAll probes sources concurrently.
type memSourceStore struct {
	mu        sync.Mutex
	sources   []Source
	metrics   map[int64]*IdentityMetrics
	tlds      []TldScore
	activity  []ActivityEntry
	saveCalls int
}

func newMemSourceStore(tlds []TldScore, sources ...Source) *memSourceStore {
	return &memSourceStore{
		sources: sources,
		metrics: make(map[int64]*IdentityMetrics),
		tlds:    tlds,
	}
}

func (m *memSourceStore) GetByDomain(ctx context.Context, domain string) (*Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sources {
		if m.sources[i].Domain == domain {
			return &m.sources[i], nil
		}
	}
	return nil, nil
}

func (m *memSourceStore) Ensure(ctx context.Context, domain, name string) (*Source, error) {
	if src, _ := m.GetByDomain(ctx, domain); src != nil {
		return src, nil
	}
	src := Source{ID: int64(len(m.sources) + 1), Domain: domain, Name: name, Status: StatusPendingReview}
	m.sources = append(m.sources, src)
	return &src, nil
}

func (m *memSourceStore) List(ctx context.Context) ([]Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Source(nil), m.sources...), nil
}

func (m *memSourceStore) UpdateStatus(ctx context.Context, id int64, status string, promotedAt *time.Time) error {
	return nil
}

func (m *memSourceStore) Delete(ctx context.Context, id int64) error { return nil }

func (m *memSourceStore) GetIdentityMetrics(ctx context.Context, sourceID int64) (*IdentityMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if metrics, ok := m.metrics[sourceID]; ok {
		copied := *metrics
		return &copied, nil
	}
	return nil, nil
}

func (m *memSourceStore) SaveIdentityMetrics(ctx context.Context, metrics *IdentityMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	metrics.Recompute()
	copied := *metrics
	m.metrics[metrics.SourceID] = &copied
	for i := range m.sources {
		if m.sources[i].ID == metrics.SourceID {
			m.sources[i].IdentityScore = metrics.IdentityScore
		}
	}
	return nil
}

func (m *memSourceStore) ListTldScores(ctx context.Context) ([]TldScore, error) {
	return m.tlds, nil
}

func (m *memSourceStore) SetTldScore(ctx context.Context, tld string, score int) error { return nil }

func (m *memSourceStore) ImportTldScores(ctx context.Context, entries []TldScore) (int64, error) {
	return 0, nil
}

func (m *memSourceStore) AppendActivity(ctx context.Context, e ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, e)
	return nil
}

func (m *memSourceStore) RecentActivity(ctx context.Context, limit int) ([]ActivityEntry, error) {
	return nil, nil
}

func fixedProbes(cert CertResult, own OwnershipResult) ProbeSet {
	return ProbeSet{
		Certificate: func(ctx context.Context, domain string) CertResult { return cert },
		Ownership:   func(domain string) OwnershipResult { return own },
	}
}

func TestRescoreSource_ComputesAndPersists(t *testing.T) {
	store := newMemSourceStore(
		[]TldScore{{TLD: ".org", Score: 70}},
		Source{ID: 1, Domain: "www.imf.org", Name: "IMF"},
	)
	probes := fixedProbes(
		CertResult{Score: 100, Status: CertValid},
		OwnershipResult{Score: 100, Status: OwnershipKnownOrg},
	)

	scorer := NewIdentityScorer(store, probes, nil, 1)
	metrics, err := scorer.RescoreSource(context.Background(), store.sources[0])
	require.NoError(t, err)

	assert.Equal(t, 70, metrics.URLRepute)
	assert.Equal(t, 100, metrics.Certificate)
	assert.Equal(t, 100, metrics.Ownership)
	// round((70 + 100 + 100) / 3) = 90
	assert.Equal(t, 90, metrics.IdentityScore)

	assert.Equal(t, 1, store.saveCalls)
	assert.Equal(t, 90, store.sources[0].IdentityScore)

	require.Len(t, store.activity, 1)
	assert.Equal(t, "rescored", store.activity[0].Action)
}

func TestRescoreSource_SkipsWriteWhenUnchanged(t *testing.T) {
	store := newMemSourceStore(
		[]TldScore{{TLD: ".org", Score: 70}},
		Source{ID: 1, Domain: "www.imf.org", Name: "IMF"},
	)
	probes := fixedProbes(
		CertResult{Score: 100, Status: CertValid},
		OwnershipResult{Score: 100, Status: OwnershipKnownOrg},
	)
	scorer := NewIdentityScorer(store, probes, nil, 1)

	_, err := scorer.RescoreSource(context.Background(), store.sources[0])
	require.NoError(t, err)
	require.Equal(t, 1, store.saveCalls)

	// Same probe outcomes: the final state is already right, no new write.
	_, err = scorer.RescoreSource(context.Background(), store.sources[0])
	require.NoError(t, err)
	assert.Equal(t, 1, store.saveCalls)
	assert.Len(t, store.activity, 1)
}

func TestRescoreSource_UnknownTldScoresZero(t *testing.T) {
	store := newMemSourceStore(nil, Source{ID: 1, Domain: "stats.example.xyz"})
	probes := fixedProbes(
		CertResult{Score: 0, Status: CertHandshake},
		OwnershipResult{Score: 50, Status: OwnershipHasRegistrar},
	)

	metrics, err := NewIdentityScorer(store, probes, nil, 1).
		RescoreSource(context.Background(), store.sources[0])
	require.NoError(t, err)

	assert.Equal(t, 0, metrics.URLRepute)
	// round(50 / 3) = 17
	assert.Equal(t, 17, metrics.IdentityScore)
}

func TestRescoreAll_CountsUpdates(t *testing.T) {
	store := newMemSourceStore(
		[]TldScore{{TLD: ".org", Score: 70}},
		Source{ID: 1, Domain: "www.imf.org"},
		Source{ID: 2, Domain: "data.worldbank.org"},
	)
	probes := fixedProbes(
		CertResult{Score: 100, Status: CertValid},
		OwnershipResult{Score: 100, Status: OwnershipKnownOrg},
	)

	result, err := NewIdentityScorer(store, probes, nil, 2).RescoreAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.SourcesExamined)
	assert.Equal(t, 2, result.Updated)
	assert.Empty(t, result.Errors)
}
