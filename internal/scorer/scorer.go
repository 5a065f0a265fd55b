// Package scorer computes directional Intent/Synergy/Momentum/Context
// partnership scores between business profiles and combines the two
// directions of a pair into one explainable match result.
package scorer

import (
	"context"
	"time"

	"github.com/sells-group/match-cli/internal/confidence"
	"github.com/sells-group/match-cli/internal/config"
	"github.com/sells-group/match-cli/internal/model"
	"github.com/sells-group/match-cli/internal/semantic"
)

// Scorer computes a 0-100 score from one profile's viewpoint toward
// another. Stateless given inputs and now; safe to run concurrently
// across pairs.
type Scorer struct {
	calc     *confidence.Calculator
	sem      *semantic.Adapter
	rules    config.ScoringRules
	tierRank map[model.SourceKind]int
	numTiers int
}

// NewScorer creates a directional scorer. The merge rules supply the
// source-priority order that the Context component grades consumed fields
// against.
func NewScorer(calc *confidence.Calculator, sem *semantic.Adapter, rules config.ScoringRules, mergeRules config.MergeRules) *Scorer {
	rank := make(map[model.SourceKind]int, len(mergeRules.SourcePriority))
	for i, s := range mergeRules.SourcePriority {
		rank[model.SourceKind(s)] = i
	}
	return &Scorer{
		calc:     calc,
		sem:      sem,
		rules:    rules,
		tierRank: rank,
		numTiers: len(mergeRules.SourcePriority),
	}
}

// ScoreDirection computes the score from source's viewpoint toward target.
// Data-quality problems never fail the computation; every missing field or
// adapter degradation lands in a sub-factor detail and, through the Context
// component, discounts the total. Only configuration errors (unknown
// source or field kinds) propagate.
func (s *Scorer) ScoreDirection(ctx context.Context, source, target *model.Profile, now time.Time) (model.DirectionalResult, error) {
	tr := newTracker()

	intent := s.scoreIntent(ctx, target, tr)
	synergy := s.scoreSynergy(ctx, source, target, tr)
	momentum := s.scoreMomentum(target, now, tr)

	// Context grades the evidence the other three components just used, so
	// it must be computed last.
	contextScore, err := s.scoreContext(tr, now)
	if err != nil {
		return model.DirectionalResult{}, err
	}

	components := []model.ComponentScore{intent, synergy, momentum, contextScore}

	var total float64
	for i := range components {
		components[i].Weight = s.weight(components[i].Name)
		total += components[i].Weight * components[i].Value / 10
	}

	return model.DirectionalResult{
		SourceID:   source.ID,
		TargetID:   target.ID,
		Components: components,
		Total:      round2(total * 100),
		Warnings:   tr.warnings,
		ComputedAt: now,
	}, nil
}

func (s *Scorer) weight(component string) float64 {
	if w, ok := s.rules.Weights[component]; ok {
		return w
	}
	return 0
}

// componentValue aggregates sub-factors to a 0-10 component value by
// weighted mean.
func componentValue(name string, subs []model.SubFactor) model.ComponentScore {
	var sum, wsum float64
	for _, sf := range subs {
		sum += sf.Raw * sf.Weight
		wsum += sf.Weight
	}
	value := 0.0
	if wsum > 0 {
		value = round2(10 * sum / wsum)
	}
	return model.ComponentScore{
		Name:       name,
		SubFactors: subs,
		Value:      value,
	}
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

// consumedField records one field read made while scoring a direction.
type consumedField struct {
	profile *model.Profile
	kind    model.FieldKind
	present bool
}

// tracker accumulates the exact fields a directional computation consumed,
// so the Context component can discount the score by the quality of that
// specific evidence rather than by how complete the profile looks overall.
type tracker struct {
	consumed []consumedField
	warnings []string
}

func newTracker() *tracker {
	return &tracker{}
}

func (t *tracker) text(p *model.Profile, kind model.FieldKind) (string, bool) {
	v, ok := p.Text(kind)
	t.record(p, kind, ok)
	return v, ok
}

func (t *tracker) intVal(p *model.Profile, kind model.FieldKind) (int64, bool) {
	v, ok := p.Int(kind)
	t.record(p, kind, ok)
	return v, ok
}

func (t *tracker) timeVal(p *model.Profile, kind model.FieldKind) (time.Time, bool) {
	v, ok := p.Time(kind)
	t.record(p, kind, ok)
	return v, ok
}

func (t *tracker) record(p *model.Profile, kind model.FieldKind, present bool) {
	t.consumed = append(t.consumed, consumedField{profile: p, kind: kind, present: present})
}

func (t *tracker) warn(msg string) {
	t.warnings = append(t.warnings, msg)
}
