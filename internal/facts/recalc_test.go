package facts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecalculator_ReplacesProvisionalConsensus(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	evaluatedAt := now.AddDate(0, 0, -100) // recency tier 3

	for _, v := range []string{"90", "100", "95", "unknown"} {
		eval := Evaluation{
			Entity:            "Germany",
			Attribute:         "inflation",
			Value:             v,
			ValueType:         "numeric",
			SourceName:        "IMF",
			SourceURL:         "https://www.imf.org/x",
			EvaluatedAt:       evaluatedAt,
			ConsensusScore:    ProvisionalConsensus,
			SourceTrustWeight: 1,
			RecencyWeight:     1,
			ConsensusWeight:   1,
		}
		require.NoError(t, store.InsertEvaluation(ctx, &eval))
	}

	r := NewRecalculator(store, newMemSources(80)).WithNow(func() time.Time { return now })

	result, err := r.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.PairsExamined)
	assert.Equal(t, 4, result.Updated)
	assert.Empty(t, result.Errors)

	evals, err := store.ListAllEvaluations(ctx)
	require.NoError(t, err)
	require.Len(t, evals, 4)

	// Mean of 90, 100, 95 is 95. Deviations map to 95, 95, 100; the
	// non-numeric row keeps the provisional score.
	assert.Equal(t, 95, evals[0].ConsensusScore)
	assert.Equal(t, 95, evals[1].ConsensusScore)
	assert.Equal(t, 100, evals[2].ConsensusScore)
	assert.Equal(t, ProvisionalConsensus, evals[3].ConsensusScore)

	for _, e := range evals {
		assert.Equal(t, 80, e.SourceTrustScore)
		assert.Equal(t, 10, e.RecencyScore)
	}

	// round((80 + 10 + 100) / 3) for the exact-mean row.
	assert.Equal(t, 63, evals[2].TrustScore)
}

func TestRecalculator_NoChangesNoWrites(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	// Already consistent with what recalculation would produce: one numeric
	// row is its own consensus (deviation zero).
	eval := Evaluation{
		Entity:            "France",
		Attribute:         "gdp",
		Value:             "3000000000000",
		ValueType:         "numeric",
		SourceName:        "IMF",
		SourceURL:         "https://www.imf.org/x",
		EvaluatedAt:       now,
		SourceTrustScore:  80,
		RecencyScore:      100,
		ConsensusScore:    100,
		SourceTrustWeight: 1,
		RecencyWeight:     1,
		ConsensusWeight:   1,
		TrustScore:        93,
	}
	require.NoError(t, store.InsertEvaluation(ctx, &eval))

	r := NewRecalculator(store, newMemSources(80)).WithNow(func() time.Time { return now })

	result, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Updated)
}
