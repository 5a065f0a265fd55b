package scorer

import (
	"fmt"
	"time"

	"github.com/sells-group/match-cli/internal/model"
)

// scoreContext grades how much the other three components should be
// trusted. It is deliberately not "does the profile look complete": the
// inputs are the exact field reads the Intent, Synergy, and Momentum
// computations just made, so a score assembled from stale guesses is
// discounted even when it looks identical to one built on fresh, verified
// data.
func (s *Scorer) scoreContext(tr *tracker, now time.Time) (model.ComponentScore, error) {
	var consumed, present int
	var confSum, tierSum float64

	for _, cf := range tr.consumed {
		consumed++
		if !cf.present {
			continue
		}
		present++

		field, ok := cf.profile.Get(cf.kind)
		if !ok {
			continue
		}

		eff, err := s.calc.Effective(field.Provenance, cf.kind, now)
		if err != nil {
			return model.ComponentScore{}, err
		}
		confSum += eff
		tierSum += s.tierScore(field.Provenance.Source)
	}

	completeness := model.SubFactor{Name: "data_completeness", Weight: 0.35}
	if consumed > 0 {
		completeness.Raw = float64(present) / float64(consumed)
		completeness.Detail = fmt.Sprintf("%d of %d consumed fields populated", present, consumed)
	} else {
		completeness.Detail = "no fields consumed"
	}

	sourceQuality := model.SubFactor{Name: "source_quality", Weight: 0.25}
	blended := model.SubFactor{Name: "effective_confidence", Weight: 0.40}
	if present > 0 {
		sourceQuality.Raw = tierSum / float64(present)
		sourceQuality.Detail = fmt.Sprintf("mean source tier score over %d fields", present)
		blended.Raw = confSum / float64(present)
		blended.Detail = fmt.Sprintf("blended effective confidence %.2f as of %s", blended.Raw, now.Format("2006-01-02"))
	} else {
		sourceQuality.Detail = "no populated fields consumed"
		blended.Detail = "no populated fields consumed"
	}

	return componentValue(model.ComponentContext, []model.SubFactor{completeness, sourceQuality, blended}), nil
}

// tierScore maps a source kind onto [0,1], most trusted tier scoring 1.
func (s *Scorer) tierScore(source model.SourceKind) float64 {
	if s.numTiers <= 1 {
		return 1
	}
	rank, ok := s.tierRank[source]
	if !ok {
		rank = s.numTiers - 1
	}
	return 1 - float64(rank)/float64(s.numTiers-1)
}
