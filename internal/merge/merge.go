// Package merge reconciles conflicting enrichment candidates for a single
// profile field into one final value plus provenance. Source-priority tiers
// are compared first; numeric confidence only breaks ties within a tier, so
// a scraped value can never displace a client-confirmed one no matter how
// fresh it looks.
package merge

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/match-cli/internal/confidence"
	"github.com/sells-group/match-cli/internal/config"
	"github.com/sells-group/match-cli/internal/model"
)

// AmbiguousMergeError reports a same-tier conflict with no usable recency
// signal. The caller keeps the existing value and surfaces a review flag;
// guessing between equally credible sources is never acceptable.
type AmbiguousMergeError struct {
	Field  model.FieldKind
	Tier   model.SourceKind
	Values []string
}

func (e *AmbiguousMergeError) Error() string {
	return fmt.Sprintf("merge: ambiguous %s candidates for %s at tier %s", e.Field, strings.Join(e.Values, " vs "), e.Tier)
}

// Outcome is the result of merging candidates into a field. Previous
// retains what the profile believed before, so callers can keep history.
type Outcome struct {
	Field        model.Field
	Previous     *model.Field
	Changed      bool
	Corroborated bool
}

// Merger applies the consolidation rules. Stateless; safe for concurrent use.
type Merger struct {
	calc     *confidence.Calculator
	priority map[model.SourceKind]int
	folder   cases.Caser
}

// NewMerger creates a merger with the configured source-priority order.
func NewMerger(calc *confidence.Calculator, rules config.MergeRules) *Merger {
	prio := make(map[model.SourceKind]int, len(rules.SourcePriority))
	for i, s := range rules.SourcePriority {
		prio[model.SourceKind(s)] = i
	}
	return &Merger{
		calc:     calc,
		priority: prio,
		folder:   cases.Fold(),
	}
}

// TierRank returns the priority rank for a source kind, lower is more
// trusted. Unlisted kinds rank below everything configured.
func (m *Merger) TierRank(s model.SourceKind) int {
	if r, ok := m.priority[s]; ok {
		return r
	}
	return len(m.priority)
}

// Merge picks the winning candidate for one field. An empty candidate list
// is a no-op returning the existing field unchanged. The winner is chosen
// by source tier, then effective confidence, then recency; a winner whose
// value corroborates the existing lower-tier value bumps the stored
// cross-validation count instead of overwriting.
func (m *Merger) Merge(field model.FieldKind, candidates []model.Candidate, existing *model.Field, now time.Time) (Outcome, error) {
	usable := candidates[:0:0]
	for _, c := range candidates {
		if strings.TrimSpace(c.Value) != "" {
			usable = append(usable, c)
		}
	}
	if len(usable) == 0 {
		out := Outcome{}
		if existing != nil {
			out.Field = *existing
		}
		return out, nil
	}

	winner, err := m.pickWinner(field, usable, now)
	if err != nil {
		return Outcome{}, err
	}

	merged := model.Field{
		Kind:  field,
		Value: winner.Value,
		Provenance: model.FieldProvenance{
			Source:     winner.Source,
			ObservedAt: winner.ObservedAt,
		},
	}

	if existing == nil || strings.TrimSpace(existing.Value) == "" {
		return Outcome{Field: merged, Changed: true}, nil
	}

	prev := *existing

	// Same value from an independent source is corroboration, not a
	// conflict: keep the stored value and strengthen its evidence.
	if m.normalEqual(existing.Value, winner.Value) {
		corroborated := prev
		if winner.Source != existing.Provenance.Source {
			corroborated.Provenance.CrossValidationCount++
		}
		// A higher-tier restatement of the same value also upgrades the
		// recorded source so later merges rank it correctly.
		if m.TierRank(winner.Source) < m.TierRank(existing.Provenance.Source) {
			corroborated.Provenance.Source = winner.Source
			corroborated.Provenance.ObservedAt = winner.ObservedAt
		}
		return Outcome{Field: corroborated, Previous: &prev, Corroborated: true}, nil
	}

	// A lower-tier candidate never overrides a higher-tier stored value.
	if m.TierRank(winner.Source) > m.TierRank(existing.Provenance.Source) {
		return Outcome{Field: prev}, nil
	}

	return Outcome{Field: merged, Previous: &prev, Changed: true}, nil
}

// pickWinner selects the best candidate: highest non-empty source tier,
// then greatest effective confidence, ties broken by most recent
// observed_at.
func (m *Merger) pickWinner(field model.FieldKind, candidates []model.Candidate, now time.Time) (model.Candidate, error) {
	bestTier := len(m.priority) + 1
	for _, c := range candidates {
		if r := m.TierRank(c.Source); r < bestTier {
			bestTier = r
		}
	}

	var best *model.Candidate
	var bestConf float64
	ambiguous := false

	for i := range candidates {
		c := &candidates[i]
		if m.TierRank(c.Source) != bestTier {
			continue
		}

		conf, err := m.calc.Effective(model.FieldProvenance{Source: c.Source, ObservedAt: c.ObservedAt}, field, now)
		if err != nil {
			return model.Candidate{}, err
		}

		switch {
		case best == nil:
			best, bestConf = c, conf
		case conf > bestConf:
			best, bestConf, ambiguous = c, conf, false
		case conf == bestConf && !m.normalEqual(best.Value, c.Value):
			if c.ObservedAt.After(best.ObservedAt) {
				best, ambiguous = c, false
			} else if c.ObservedAt.Equal(best.ObservedAt) {
				ambiguous = true
			}
		}
	}

	if ambiguous {
		return model.Candidate{}, &AmbiguousMergeError{
			Field:  field,
			Tier:   best.Source,
			Values: candidateValues(candidates, m, bestTier),
		}
	}
	return *best, nil
}

func candidateValues(candidates []model.Candidate, m *Merger, tier int) []string {
	var vals []string
	for _, c := range candidates {
		if m.TierRank(c.Source) == tier {
			vals = append(vals, c.Value)
		}
	}
	return vals
}

// normalEqual compares values after Unicode NFKC normalization, case
// folding, and whitespace collapsing.
func (m *Merger) normalEqual(a, b string) bool {
	return m.normalize(a) == m.normalize(b)
}

func (m *Merger) normalize(s string) string {
	s = norm.NFKC.String(s)
	s = m.folder.String(s)
	return strings.Join(strings.Fields(s), " ")
}
