package facts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func promotable(entity, sourceName string, asOf *time.Time, evaluatedAt time.Time, trust int) Evaluation {
	return Evaluation{
		Entity:      entity,
		Attribute:   "population",
		Value:       "83200000",
		ValueType:   "numeric",
		SourceName:  sourceName,
		AsOfDate:    asOf,
		EvaluatedAt: evaluatedAt,
		TrustScore:  trust,
	}
}

func TestPromoter_ThresholdAndIdempotence(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	asOf := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	for _, e := range []Evaluation{
		promotable("Germany", "IMF", &asOf, base, 85),
		promotable("Germany", "World Bank", &asOf, base, 80), // exactly at threshold
		promotable("France", "IMF", &asOf, base, 79),         // below threshold
	} {
		eval := e
		require.NoError(t, store.InsertEvaluation(ctx, &eval))
	}

	p := NewPromoter(store).WithNow(func() time.Time { return base })

	first, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Promoted)
	assert.Equal(t, 2, first.Inserted)
	assert.Equal(t, 0, first.Updated)
	assert.Len(t, store.facts, 2)
	assert.Equal(t, 1, store.resyncs)

	// Re-running promotes the same claims again without duplicating them.
	second, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Promoted)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Updated)
	assert.Len(t, store.facts, 2)
}

func TestPromoter_DedupKeepsMostAuthoritative(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	older := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	// Same source contributes two time-series points: distinct identity keys,
	// both promoted.
	e1 := promotable("Germany", "IMF", &older, base, 90)
	e1.Value = "83000000"
	e2 := promotable("Germany", "IMF", &newer, base, 90)
	require.NoError(t, store.InsertEvaluation(ctx, &e1))
	require.NoError(t, store.InsertEvaluation(ctx, &e2))

	// A colliding identity key: same key as e2, older evaluated_at. The
	// fresher evaluation wins; this one is skipped.
	e3 := promotable("Germany", "IMF", &newer, base.Add(-time.Hour), 95)
	e3.Value = "83199999"
	require.NoError(t, store.InsertEvaluation(ctx, &e3))

	result, err := NewPromoter(store).WithNow(func() time.Time { return base }).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Promoted)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, store.facts, 2)

	winner := store.facts[KeyString("Germany", "population", "IMF", &newer)]
	assert.Equal(t, "83200000", winner.Value)
	assert.Equal(t, base, winner.VerifiedAt)
	assert.Equal(t, "demographics", winner.Category)
}

func TestPromoter_NilAsOfDateIsDistinctKey(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	asOf := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	dated := promotable("Germany", "REST Countries", &asOf, base, 85)
	undated := promotable("Germany", "REST Countries", nil, base, 85)
	require.NoError(t, store.InsertEvaluation(ctx, &dated))
	require.NoError(t, store.InsertEvaluation(ctx, &undated))

	result, err := NewPromoter(store).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Promoted)
	assert.Equal(t, 0, result.Skipped)

	// The undated fact keeps its nil as_of_date.
	f := store.facts[KeyString("Germany", "population", "REST Countries", nil)]
	assert.Nil(t, f.AsOfDate)
}

func TestPromoter_NothingToPromote(t *testing.T) {
	store := newMemStore()

	result, err := NewPromoter(store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Promoted)
	assert.Equal(t, 0, store.resyncs)
	assert.Empty(t, store.facts)
}
