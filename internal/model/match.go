package model

import (
	"strings"
	"time"
)

// Component names for the four directional score dimensions.
const (
	ComponentIntent   = "intent"
	ComponentSynergy  = "synergy"
	ComponentMomentum = "momentum"
	ComponentContext  = "context"
)

// SubFactor is one explainable input to a component score. Raw is the
// sub-factor's own 0-1 signal; Detail says where it came from, including
// any neutral default applied for missing data.
type SubFactor struct {
	Name   string  `json:"name"`
	Raw    float64 `json:"raw"`
	Weight float64 `json:"weight"`
	Detail string  `json:"detail"`
}

// ComponentScore is one of the four weighted dimensions of a directional
// score, aggregated to a 0-10 value.
type ComponentScore struct {
	Name       string      `json:"name"`
	Weight     float64     `json:"weight"`
	SubFactors []SubFactor `json:"sub_factors"`
	Value      float64     `json:"value"`
}

// DirectionalResult is a 0-100 match score computed from SourceID's
// viewpoint toward TargetID. The reverse direction is a separate
// computation and is not assumed equal.
type DirectionalResult struct {
	SourceID   string           `json:"source_id"`
	TargetID   string           `json:"target_id"`
	Components []ComponentScore `json:"components"`
	Total      float64          `json:"total"`
	Warnings   []string         `json:"warnings,omitempty"`
	ComputedAt time.Time        `json:"computed_at"`
}

// Component returns the named component score, if present.
func (r *DirectionalResult) Component(name string) (ComponentScore, bool) {
	for _, c := range r.Components {
		if c.Name == name {
			return c, true
		}
	}
	return ComponentScore{}, false
}

// BidirectionalMatch combines both directional scores for an unordered
// profile pair. Both breakdowns are retained for display; the combined
// value comes from the named aggregation strategy.
type BidirectionalMatch struct {
	PairID     string            `json:"pair_id"`
	ProfileA   string            `json:"profile_a"`
	ProfileB   string            `json:"profile_b"`
	ScoreAB    float64           `json:"score_ab"`
	ScoreBA    float64           `json:"score_ba"`
	Combined   float64           `json:"combined"`
	Strategy   string            `json:"strategy"`
	Tier       string            `json:"tier"`
	AB         DirectionalResult `json:"ab"`
	BA         DirectionalResult `json:"ba"`
	ComputedAt time.Time         `json:"computed_at"`
}

// PairID builds the canonical unordered pair key for two profile ids.
func PairID(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}
