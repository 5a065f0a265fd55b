package scorer

import (
	"fmt"
	"math"
	"time"

	"github.com/sells-group/match-cli/internal/model"
)

// scoreMomentum estimates whether the target is active right now, making
// the timing of an approach favorable. When every momentum field is absent
// the component resolves to the configured neutral floor: missing data is
// not evidence of low momentum.
func (s *Scorer) scoreMomentum(target *model.Profile, now time.Time, tr *tracker) model.ComponentScore {
	lastActive, hasActivity := tr.timeVal(target, model.FieldLastActivity)
	reach, hasReach := tr.intVal(target, model.FieldReach)
	projects, hasProjects := tr.intVal(target, model.FieldVisibleProjects)

	if !hasActivity && !hasReach && !hasProjects {
		tr.warn("momentum: no momentum fields populated")
		return model.ComponentScore{
			Name:  model.ComponentMomentum,
			Value: s.rules.MomentumFloor,
			SubFactors: []model.SubFactor{{
				Name:   "insufficient_data",
				Raw:    s.rules.MomentumFloor / 10,
				Weight: 1,
				Detail: fmt.Sprintf("no momentum fields populated, neutral floor %.1f applied", s.rules.MomentumFloor),
			}},
		}
	}

	subs := make([]model.SubFactor, 0, 3)

	recency := model.SubFactor{Name: "activity_recency", Weight: 0.45}
	if hasActivity {
		ageDays := now.Sub(lastActive).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		halfLife := s.rules.RecencyHalfLifeDays
		if halfLife <= 0 {
			halfLife = 30
		}
		// Activity staleness bites much faster than fact staleness, so this
		// curve is deliberately separate from confidence decay.
		recency.Raw = math.Pow(2, -ageDays/halfLife)
		recency.Detail = fmt.Sprintf("last active %.0f days ago", ageDays)
	} else {
		recency.Raw = s.rules.NeutralDefault
		recency.Detail = fmt.Sprintf("last_activity missing, neutral default %.2f", s.rules.NeutralDefault)
		tr.warn("momentum: last_activity missing")
	}
	subs = append(subs, recency)

	reachSF := model.SubFactor{Name: "declared_reach", Weight: 0.30}
	if hasReach {
		if reach < 0 {
			reach = 0
		}
		fullScale := s.rules.ReachFullScale
		if fullScale <= 0 {
			fullScale = 100_000
		}
		reachSF.Raw = math.Min(1, math.Log1p(float64(reach))/math.Log1p(fullScale))
		reachSF.Detail = fmt.Sprintf("declared reach %d", reach)
	} else {
		reachSF.Raw = s.rules.NeutralDefault
		reachSF.Detail = fmt.Sprintf("reach missing, neutral default %.2f", s.rules.NeutralDefault)
		tr.warn("momentum: reach missing")
	}
	subs = append(subs, reachSF)

	projectsSF := model.SubFactor{Name: "visible_projects", Weight: 0.25}
	switch {
	case hasProjects && projects > 0:
		projectsSF.Raw = 1
		projectsSF.Detail = fmt.Sprintf("%d visible projects", projects)
	case hasProjects:
		projectsSF.Detail = "no currently visible projects"
	default:
		projectsSF.Raw = s.rules.NeutralDefault
		projectsSF.Detail = fmt.Sprintf("visible_projects missing, neutral default %.2f", s.rules.NeutralDefault)
		tr.warn("momentum: visible_projects missing")
	}
	subs = append(subs, projectsSF)

	return componentValue(model.ComponentMomentum, subs)
}
