package scorer

import (
	"context"
	"fmt"

	"github.com/sells-group/match-cli/internal/model"
)

// scoreSynergy estimates whether needs and offerings complement each
// other in the source → target direction.
func (s *Scorer) scoreSynergy(ctx context.Context, source, target *model.Profile, tr *tracker) model.ComponentScore {
	subs := []model.SubFactor{
		s.textPairFactor(ctx, "need_offering_fit", 0.40,
			source, model.FieldNeedText, target, model.FieldOfferingText, tr),
		s.textPairFactor(ctx, "audience_alignment", 0.25,
			source, model.FieldAudienceText, target, model.FieldAudienceText, tr),
		s.scaleFactor(source, target, tr),
		s.categoryFactor(source, target, tr),
	}
	return componentValue(model.ComponentSynergy, subs)
}

// textPairFactor scores the calibrated similarity between one text field
// on each side of the pair.
func (s *Scorer) textPairFactor(ctx context.Context, name string, weight float64, a *model.Profile, aKind model.FieldKind, b *model.Profile, bKind model.FieldKind, tr *tracker) model.SubFactor {
	sf := model.SubFactor{Name: name, Weight: weight}

	textA, okA := tr.text(a, aKind)
	textB, okB := tr.text(b, bKind)
	if !okA || !okB {
		missing := string(aKind)
		if okA {
			missing = string(bKind)
		}
		sf.Raw = s.rules.NeutralDefault
		sf.Detail = fmt.Sprintf("%s missing, neutral default %.2f", missing, s.rules.NeutralDefault)
		tr.warn("synergy: " + missing + " missing")
		return sf
	}

	res := s.sem.Similarity(ctx, textA, textB)
	sf.Raw = res.Score
	sf.Detail = fmt.Sprintf("similarity %.2f (%s)", res.Score, res.Method)
	return sf
}

// scaleFactor penalizes ordinal distance between declared size tiers,
// except when the gap falls inside the configured growth/mentorship band
// where a larger partner lifting a smaller one is the point.
func (s *Scorer) scaleFactor(source, target *model.Profile, tr *tracker) model.SubFactor {
	sf := model.SubFactor{Name: "scale_compatibility", Weight: 0.20}

	srcTier, okA := tr.intVal(source, model.FieldSizeTier)
	tgtTier, okB := tr.intVal(target, model.FieldSizeTier)
	if !okA || !okB {
		sf.Raw = s.rules.NeutralDefault
		sf.Detail = fmt.Sprintf("size_tier missing, neutral default %.2f", s.rules.NeutralDefault)
		tr.warn("synergy: size_tier missing")
		return sf
	}

	dist := int(srcTier - tgtTier)
	if dist < 0 {
		dist = -dist
	}

	switch {
	case dist == 0:
		sf.Raw = 1
		sf.Detail = "same size tier"
	case dist >= s.rules.GrowthBandMinTiers && dist <= s.rules.GrowthBandMaxTiers:
		sf.Raw = 0.8
		sf.Detail = fmt.Sprintf("tier gap %d inside growth/mentorship band", dist)
	default:
		raw := 1 - float64(dist)*0.25
		if raw < 0 {
			raw = 0
		}
		sf.Raw = raw
		sf.Detail = fmt.Sprintf("tier gap %d", dist)
	}
	return sf
}

// categoryFactor scores declared category overlap as Jaccard similarity.
func (s *Scorer) categoryFactor(source, target *model.Profile, tr *tracker) model.SubFactor {
	sf := model.SubFactor{Name: "category_overlap", Weight: 0.15}

	catsA, okA := source.Categories()
	tr.record(source, model.FieldCategories, okA)
	catsB, okB := target.Categories()
	tr.record(target, model.FieldCategories, okB)

	if !okA || !okB {
		sf.Raw = s.rules.NeutralDefault
		sf.Detail = fmt.Sprintf("categories missing, neutral default %.2f", s.rules.NeutralDefault)
		tr.warn("synergy: categories missing")
		return sf
	}

	setA := make(map[string]struct{}, len(catsA))
	for _, c := range catsA {
		setA[c] = struct{}{}
	}
	var shared, union int
	union = len(setA)
	seen := make(map[string]struct{}, len(catsB))
	for _, c := range catsB {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		if _, ok := setA[c]; ok {
			shared++
		} else {
			union++
		}
	}

	if union == 0 {
		sf.Raw = 0
		sf.Detail = "no categories declared"
		return sf
	}
	sf.Raw = float64(shared) / float64(union)
	sf.Detail = fmt.Sprintf("%d shared of %d categories", shared, union)
	return sf
}
