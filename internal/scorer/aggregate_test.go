package scorer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/match-cli/internal/config"
	"github.com/sells-group/match-cli/internal/model"
)

func TestHarmonicMean(t *testing.T) {
	tests := []struct {
		name string
		ab   float64
		ba   float64
		want float64
	}{
		{"equal", 80, 80, 80},
		{"one sided", 90, 30, 45},
		{"zero dominates", 95, 0, 0},
		{"both zero", 0, 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, HarmonicMean(tc.ab, tc.ba), 1e-9)
		})
	}
}

func TestHarmonicMean_PunishesImbalanceMoreThanAverage(t *testing.T) {
	// Same arithmetic mean, different balance: harmonic must prefer the
	// balanced pair.
	assert.Greater(t, HarmonicMean(60, 60), HarmonicMean(100, 20))
	assert.Less(t, HarmonicMean(100, 20), WeightedAverage(100, 20))
}

func TestGeometricMean(t *testing.T) {
	assert.InDelta(t, 60, GeometricMean(60, 60), 1e-9)
	assert.InDelta(t, 44.72, GeometricMean(100, 20), 0.01)
	assert.Equal(t, 0.0, GeometricMean(80, 0))
}

func TestStrategyByName(t *testing.T) {
	for _, name := range []string{"harmonic", "geometric", "weighted_average"} {
		st, err := StrategyByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, st)
	}

	_, err := StrategyByName("median")
	assert.Error(t, err)
}

func TestNewAggregator_UnknownStrategy(t *testing.T) {
	rules := config.DefaultRules()
	_, err := NewAggregator(newTestScorer(), config.AggregationRules{
		Strategy: "alchemy",
		Tiers:    rules.Aggregation.Tiers,
	})
	assert.Error(t, err)
}

func TestAggregator_TierLabels(t *testing.T) {
	agg, err := NewAggregator(newTestScorer(), config.DefaultRules().Aggregation)
	require.NoError(t, err)

	tests := []struct {
		combined float64
		want     string
	}{
		{85, "strong"},
		{70, "strong"},
		{69.9, "fair"},
		{50, "fair"},
		{12, "weak"},
		{0, "weak"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, agg.tierLabel(tc.combined), "combined %.1f", tc.combined)
	}
}

func TestScorePair_CombinesBothDirections(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	agg, err := NewAggregator(newTestScorer(), config.DefaultRules().Aggregation)
	require.NoError(t, err)

	pa := fullProfile("alpha", model.SourceVerifiedAPI, now.AddDate(0, 0, -5))
	pb := fullProfile("beta", model.SourceVerifiedAPI, now.AddDate(0, 0, -5))

	match, err := agg.ScorePair(context.Background(), pa, pb, now)
	require.NoError(t, err)

	assert.Equal(t, "alpha|beta", match.PairID)
	assert.Equal(t, "harmonic", match.Strategy)
	assert.Equal(t, "alpha", match.AB.SourceID)
	assert.Equal(t, "beta", match.AB.TargetID)
	assert.Equal(t, "beta", match.BA.SourceID)
	assert.InDelta(t, HarmonicMean(match.ScoreAB, match.ScoreBA), match.Combined, 0.01)
	assert.NotEmpty(t, match.Tier)
}

func TestScorePair_OrderIndependentPairID(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	agg, err := NewAggregator(newTestScorer(), config.DefaultRules().Aggregation)
	require.NoError(t, err)

	pa := fullProfile("alpha", model.SourceVerifiedAPI, now)
	pb := fullProfile("beta", model.SourceVerifiedAPI, now)

	first, err := agg.ScorePair(context.Background(), pa, pb, now)
	require.NoError(t, err)
	second, err := agg.ScorePair(context.Background(), pb, pa, now)
	require.NoError(t, err)

	assert.Equal(t, first.PairID, second.PairID)
	assert.InDelta(t, first.Combined, second.Combined, 0.01)
}
