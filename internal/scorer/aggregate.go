package scorer

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/match-cli/internal/config"
	"github.com/sells-group/match-cli/internal/model"
)

// Strategy combines two directional scores into one. It is a named,
// swappable function rather than inlined arithmetic: harmonic mean is
// known to over-punish a single systematically low dimension, and the
// choice is still being evaluated against outcome data.
type Strategy func(ab, ba float64) float64

// HarmonicMean suppresses one-sided matches: a weak score in either
// direction dominates. Either direction at 0 yields exactly 0.
func HarmonicMean(ab, ba float64) float64 {
	if ab <= 0 || ba <= 0 {
		return 0
	}
	return 2 * ab * ba / (ab + ba)
}

// GeometricMean is a softer alternative under evaluation.
func GeometricMean(ab, ba float64) float64 {
	if ab <= 0 || ba <= 0 {
		return 0
	}
	return math.Sqrt(ab * ba)
}

// WeightedAverage is the plain arithmetic mean of both directions.
func WeightedAverage(ab, ba float64) float64 {
	return (ab + ba) / 2
}

var strategies = map[string]Strategy{
	"harmonic":         HarmonicMean,
	"geometric":        GeometricMean,
	"weighted_average": WeightedAverage,
}

// StrategyByName resolves a configured strategy name.
func StrategyByName(name string) (Strategy, error) {
	st, ok := strategies[name]
	if !ok {
		return nil, eris.Errorf("scorer: unknown aggregation strategy %q", name)
	}
	return st, nil
}

// Aggregator runs the directional scorer in both directions and combines
// the results.
type Aggregator struct {
	scorer   *Scorer
	strategy Strategy
	name     string
	tiers    []config.TierRule
}

// NewAggregator creates an aggregator with the configured strategy and
// tier thresholds.
func NewAggregator(s *Scorer, rules config.AggregationRules) (*Aggregator, error) {
	st, err := StrategyByName(rules.Strategy)
	if err != nil {
		return nil, err
	}

	tiers := make([]config.TierRule, len(rules.Tiers))
	copy(tiers, rules.Tiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Min > tiers[j].Min })

	return &Aggregator{
		scorer:   s,
		strategy: st,
		name:     rules.Strategy,
		tiers:    tiers,
	}, nil
}

// ScorePair computes both directions fully (Intent and Synergy
// sub-factors are not symmetric) and combines them. Both breakdowns are
// retained in the result.
func (a *Aggregator) ScorePair(ctx context.Context, pa, pb *model.Profile, now time.Time) (*model.BidirectionalMatch, error) {
	var ab, ba model.DirectionalResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ab, err = a.scorer.ScoreDirection(gctx, pa, pb, now)
		return err
	})
	g.Go(func() error {
		var err error
		ba, err = a.scorer.ScoreDirection(gctx, pb, pa, now)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	combined := round2(a.strategy(ab.Total, ba.Total))

	return &model.BidirectionalMatch{
		PairID:     model.PairID(pa.ID, pb.ID),
		ProfileA:   pa.ID,
		ProfileB:   pb.ID,
		ScoreAB:    ab.Total,
		ScoreBA:    ba.Total,
		Combined:   combined,
		Strategy:   a.name,
		Tier:       a.tierLabel(combined),
		AB:         ab,
		BA:         ba,
		ComputedAt: now,
	}, nil
}

func (a *Aggregator) tierLabel(combined float64) string {
	for _, t := range a.tiers {
		if combined >= t.Min {
			return t.Label
		}
	}
	return "weak"
}
