package rescore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/match-cli/internal/confidence"
	"github.com/sells-group/match-cli/internal/config"
	"github.com/sells-group/match-cli/internal/model"
	"github.com/sells-group/match-cli/internal/scorer"
	"github.com/sells-group/match-cli/internal/semantic"
	"github.com/sells-group/match-cli/internal/store"
)

func newTestAggregator(t *testing.T) *scorer.Aggregator {
	t.Helper()
	rules := config.DefaultRules()
	calc := confidence.NewCalculator(rules.Confidence)
	sem := semantic.NewAdapter(nil, rules.Similarity, time.Second)
	sc := scorer.NewScorer(calc, sem, rules.Scoring, rules.Merge)
	agg, err := scorer.NewAggregator(sc, rules.Aggregation)
	require.NoError(t, err)
	return agg
}

func seedProfiles(t *testing.T, st *memStore, n int, now time.Time) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("profile-%02d", i)
		require.NoError(t, st.EnsureProfile(ctx, id))
		require.NoError(t, st.UpsertField(ctx, id, model.Field{
			Kind:  model.FieldContactChannel,
			Value: id + "@example.test",
			Provenance: model.FieldProvenance{
				Source:     model.SourceVerifiedAPI,
				ObservedAt: now.AddDate(0, 0, -i),
			},
		}))
		require.NoError(t, st.UpsertField(ctx, id, model.Field{
			Kind:  model.FieldOfferingText,
			Value: fmt.Sprintf("service bundle number %d", i),
			Provenance: model.FieldProvenance{
				Source:     model.SourceScraped,
				ObservedAt: now.AddDate(0, 0, -i*10),
			},
		}))
	}
}

func TestPairAt_EnumeratesEveryPairOnce(t *testing.T) {
	const n = int64(7)
	total := n * (n - 1) / 2

	seen := make(map[[2]int64]bool)
	for idx := int64(0); idx < total; idx++ {
		i, j := pairAt(idx, n)
		require.Less(t, i, j, "idx %d", idx)
		require.Less(t, j, n, "idx %d", idx)
		require.False(t, seen[[2]int64{i, j}], "pair (%d,%d) repeated", i, j)
		seen[[2]int64{i, j}] = true
	}
	assert.Len(t, seen, int(total))
}

func TestPairAt_RowOrder(t *testing.T) {
	// n=4: (0,1) (0,2) (0,3) (1,2) (1,3) (2,3)
	wants := [][2]int64{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}
	for idx, want := range wants {
		i, j := pairAt(int64(idx), 4)
		assert.Equal(t, want[0], i, "idx %d", idx)
		assert.Equal(t, want[1], j, "idx %d", idx)
	}
}

func TestRun_ScoresAllPairs(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	st := newMemStore()
	seedProfiles(t, st, 6, now)

	r := NewRunner(st, newTestAggregator(t), 4, 2)
	sum, err := r.Run(context.Background(), "run-1", now)
	require.NoError(t, err)

	assert.True(t, sum.Completed)
	assert.Equal(t, int64(15), sum.TotalPairs)
	assert.Equal(t, int64(15), sum.Scored)
	assert.False(t, sum.Resumed)
	assert.Len(t, st.matches, 15)

	// Checkpoint cleaned up on completion.
	_, err = st.GetCheckpoint(context.Background(), "run-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRun_InterruptedThenResumedMatchesUninterrupted(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	reference := newMemStore()
	seedProfiles(t, reference, 6, now)
	_, err := NewRunner(reference, newTestAggregator(t), 4, 2).Run(context.Background(), "ref", now)
	require.NoError(t, err)

	interrupted := newMemStore()
	seedProfiles(t, interrupted, 6, now)
	r := NewRunner(interrupted, newTestAggregator(t), 4, 2)

	// A cancelled context stops the run after each chunk's checkpoint is
	// durable, so repeated cancelled runs advance one chunk at a time.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	var steps int
	for {
		sum, err := r.Run(cancelled, "run-2", now)
		require.NoError(t, err)
		if sum.Completed {
			break
		}
		steps++
		require.Less(t, steps, 20, "run never completed")

		cp, err := interrupted.GetCheckpoint(context.Background(), "run-2")
		require.NoError(t, err)
		assert.Equal(t, int64(15), cp.TotalPairs)
		if steps > 1 {
			assert.True(t, sum.Resumed)
		}
	}

	// Same pairs, same scores as the uninterrupted run.
	require.Len(t, interrupted.matches, len(reference.matches))
	for pairID, want := range reference.matches {
		got, ok := interrupted.matches[pairID]
		require.True(t, ok, pairID)
		assert.Equal(t, want.Combined, got.Combined, pairID)
		assert.Equal(t, want.ScoreAB, got.ScoreAB, pairID)
		assert.Equal(t, want.ScoreBA, got.ScoreBA, pairID)
	}
}

func TestRun_CheckpointCorpusMismatch(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	st := newMemStore()
	seedProfiles(t, st, 6, now)

	require.NoError(t, st.SaveCheckpoint(context.Background(), store.Checkpoint{
		RunID:         "run-3",
		LastPairIndex: 3,
		TotalPairs:    10, // corpus had 5 profiles when this run started
	}))

	_, err := NewRunner(st, newTestAggregator(t), 4, 2).Run(context.Background(), "run-3", now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use a new run id")
}

func TestRun_EmptyCorpus(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	st := newMemStore()

	sum, err := NewRunner(st, newTestAggregator(t), 4, 2).Run(context.Background(), "run-4", now)
	require.NoError(t, err)
	assert.True(t, sum.Completed)
	assert.Zero(t, sum.TotalPairs)
}
