package scorer

import (
	"context"
	"fmt"
	"math"

	"github.com/sells-group/match-cli/internal/model"
)

// scoreIntent estimates whether the target is reachable and receptive to a
// partnership approach.
func (s *Scorer) scoreIntent(ctx context.Context, target *model.Profile, tr *tracker) model.ComponentScore {
	subs := make([]model.SubFactor, 0, 4)

	// Reachability is the signal itself here: a missing contact channel is
	// genuinely "not reachable", not missing data to paper over.
	contact, hasContact := tr.text(target, model.FieldContactChannel)
	subs = append(subs, presenceFactor("verified_contact_channel", 0.30, hasContact, contact))

	booking, hasBooking := tr.text(target, model.FieldBookingLink)
	subs = append(subs, presenceFactor("booking_link", 0.20, hasBooking, booking))

	subs = append(subs, s.seekingFactor(ctx, target, tr))
	subs = append(subs, s.collabFactor(target, tr))

	return componentValue(model.ComponentIntent, subs)
}

func presenceFactor(name string, weight float64, present bool, value string) model.SubFactor {
	sf := model.SubFactor{Name: name, Weight: weight}
	if present {
		sf.Raw = 1
		sf.Detail = value
	} else {
		sf.Detail = "not present"
	}
	return sf
}

// seekingFactor semantically matches the target's stated "what I seek"
// text against canonical partnership-seeking phrases, taking the best
// match.
func (s *Scorer) seekingFactor(ctx context.Context, target *model.Profile, tr *tracker) model.SubFactor {
	sf := model.SubFactor{Name: "partnership_seeking", Weight: 0.30}

	seeking, ok := tr.text(target, model.FieldSeekingText)
	if !ok {
		sf.Raw = s.rules.NeutralDefault
		sf.Detail = fmt.Sprintf("seeking_text missing, neutral default %.2f", s.rules.NeutralDefault)
		tr.warn("intent: seeking_text missing")
		return sf
	}

	var best float64
	var bestPhrase, method string
	for _, phrase := range s.rules.SeekingPhrases {
		res := s.sem.Similarity(ctx, seeking, phrase)
		if res.Score >= best {
			best = res.Score
			bestPhrase = phrase
			method = res.Method
		}
	}

	sf.Raw = best
	sf.Detail = fmt.Sprintf("best match %q (%.2f, %s)", bestPhrase, best, method)
	return sf
}

// collabFactor log-scales the declared historical collaboration count:
// more priors imply higher prior willingness, with diminishing returns.
func (s *Scorer) collabFactor(target *model.Profile, tr *tracker) model.SubFactor {
	sf := model.SubFactor{Name: "collaboration_history", Weight: 0.20}

	count, ok := tr.intVal(target, model.FieldCollabCount)
	if !ok {
		sf.Raw = s.rules.NeutralDefault
		sf.Detail = fmt.Sprintf("collab_count missing, neutral default %.2f", s.rules.NeutralDefault)
		tr.warn("intent: collab_count missing")
		return sf
	}
	if count < 0 {
		count = 0
	}

	scale := s.rules.CollabCountScale
	if scale <= 0 {
		scale = 10
	}
	sf.Raw = math.Min(1, math.Log1p(float64(count))/math.Log1p(scale))
	sf.Detail = fmt.Sprintf("%d prior collaborations", count)
	return sf
}
