// Package enrich consumes raw enrichment feed records and applies them to
// stored profiles through the merger. It is the only writer of profile
// fields.
package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/match-cli/internal/merge"
	"github.com/sells-group/match-cli/internal/model"
	"github.com/sells-group/match-cli/internal/store"
)

// ReviewFlag marks a field whose candidates conflicted without a usable
// recency signal. The stored value was kept; a human gets to decide.
type ReviewFlag struct {
	ProfileID string `json:"profile_id"`
	Field     string `json:"field"`
	Reason    string `json:"reason"`
}

// Summary reports what one feed ingest did.
type Summary struct {
	Candidates   int          `json:"candidates"`
	Updated      int          `json:"updated"`
	Corroborated int          `json:"corroborated"`
	Unchanged    int          `json:"unchanged"`
	Skipped      int          `json:"skipped"`
	ReviewFlags  []ReviewFlag `json:"review_flags,omitempty"`
}

// Ingestor routes feed candidates through the merger and persists the
// outcomes plus superseded-value history.
type Ingestor struct {
	store  store.Store
	merger *merge.Merger
}

// NewIngestor creates an ingestor.
func NewIngestor(st store.Store, merger *merge.Merger) *Ingestor {
	return &Ingestor{store: st, merger: merger}
}

// Apply merges a batch of feed candidates into stored profiles. Records
// with unknown profile fields or source kinds are counted and skipped;
// ambiguous same-tier conflicts keep the prior value and surface a review
// flag. Re-applying the same batch at the same logical time is idempotent
// beyond the documented corroboration bookkeeping.
func (in *Ingestor) Apply(ctx context.Context, candidates []model.Candidate, now time.Time) (*Summary, error) {
	sum := &Summary{Candidates: len(candidates)}

	grouped := groupCandidates(candidates, sum)

	for key, group := range grouped {
		if err := in.store.EnsureProfile(ctx, key.profileID); err != nil {
			return sum, err
		}

		profile, err := in.store.GetProfile(ctx, key.profileID)
		if err != nil {
			return sum, err
		}

		var existing *model.Field
		if f, ok := profile.Get(key.field); ok {
			existing = &f
		}

		outcome, err := in.merger.Merge(key.field, group, existing, now)
		if err != nil {
			var ambiguous *merge.AmbiguousMergeError
			if errors.As(err, &ambiguous) {
				sum.ReviewFlags = append(sum.ReviewFlags, ReviewFlag{
					ProfileID: key.profileID,
					Field:     string(key.field),
					Reason:    ambiguous.Error(),
				})
				zap.L().Warn("enrich: ambiguous merge, keeping prior value",
					zap.String("profile", key.profileID),
					zap.String("field", string(key.field)),
				)
				continue
			}
			return sum, eris.Wrapf(err, "enrich: merge %s/%s", key.profileID, key.field)
		}

		switch {
		case outcome.Changed:
			sum.Updated++
			if outcome.Previous != nil {
				if err := in.store.AppendHistory(ctx, model.FieldHistory{
					ProfileID:  key.profileID,
					Field:      key.field,
					Value:      outcome.Previous.Value,
					Provenance: outcome.Previous.Provenance,
					ReplacedAt: now,
					Reason:     "superseded by " + string(outcome.Field.Provenance.Source),
				}); err != nil {
					return sum, err
				}
			}
			if err := in.store.UpsertField(ctx, key.profileID, outcome.Field); err != nil {
				return sum, err
			}
		case outcome.Corroborated:
			sum.Corroborated++
			if err := in.store.UpsertField(ctx, key.profileID, outcome.Field); err != nil {
				return sum, err
			}
		default:
			sum.Unchanged++
		}
	}

	zap.L().Info("enrich: feed applied",
		zap.Int("candidates", sum.Candidates),
		zap.Int("updated", sum.Updated),
		zap.Int("corroborated", sum.Corroborated),
		zap.Int("unchanged", sum.Unchanged),
		zap.Int("skipped", sum.Skipped),
		zap.Int("review_flags", len(sum.ReviewFlags)),
	)
	return sum, nil
}

type fieldKey struct {
	profileID string
	field     model.FieldKind
}

// groupCandidates buckets candidates by (profile, field), dropping records
// the engine cannot place.
func groupCandidates(candidates []model.Candidate, sum *Summary) map[fieldKey][]model.Candidate {
	grouped := make(map[fieldKey][]model.Candidate)
	for _, c := range candidates {
		if c.ProfileID == "" {
			sum.Skipped++
			continue
		}
		kind, ok := model.ParseFieldKind(string(c.Field))
		if !ok {
			sum.Skipped++
			zap.L().Warn("enrich: unknown field kind, skipping",
				zap.String("profile", c.ProfileID),
				zap.String("field", string(c.Field)),
			)
			continue
		}
		if _, ok := model.ParseSourceKind(string(c.Source)); !ok {
			sum.Skipped++
			zap.L().Warn("enrich: unknown source kind, skipping",
				zap.String("profile", c.ProfileID),
				zap.String("source", string(c.Source)),
			)
			continue
		}
		c.Field = kind
		key := fieldKey{profileID: c.ProfileID, field: kind}
		grouped[key] = append(grouped[key], c)
	}
	return grouped
}
