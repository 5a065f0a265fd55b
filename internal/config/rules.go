package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/match-cli/internal/model"
)

// Rules is the externally editable half of the engine: decay tables,
// source priorities, component weights, calibration reference points, and
// tier thresholds. All of these get revised against observed outcome data,
// so none of them are code.
type Rules struct {
	Confidence  ConfidenceRules  `yaml:"confidence"`
	Merge       MergeRules       `yaml:"merge"`
	Similarity  SimilarityRules  `yaml:"similarity"`
	Scoring     ScoringRules     `yaml:"scoring"`
	Aggregation AggregationRules `yaml:"aggregation"`
}

// ConfidenceRules parameterizes effective-confidence decay.
type ConfidenceRules struct {
	BaseConfidence          map[string]float64 `yaml:"base_confidence"`
	HalfLifeDays            map[string]float64 `yaml:"half_life_days"`
	DefaultHalfLifeDays     float64            `yaml:"default_half_life_days"`
	VerificationBoostCap    float64            `yaml:"verification_boost_cap"`
	VerificationBoostStep   float64            `yaml:"verification_boost_step"`
	CrossValidationBoostCap float64            `yaml:"cross_validation_boost_cap"`
	CrossValidationStep     float64            `yaml:"cross_validation_boost_step"`
}

// MergeRules fixes the total source-priority order, most trusted first.
type MergeRules struct {
	SourcePriority []string `yaml:"source_priority"`
}

// SimilarityRules holds the embedding-calibration reference points. Both
// are sample-specific: re-derive them from labeled synonym/non-synonym
// pairs for the deployment corpus, do not copy them between installs.
type SimilarityRules struct {
	NoiseFloor  float64 `yaml:"noise_floor"`
	SynonymMean float64 `yaml:"synonym_mean"`
	MinTokenLen int     `yaml:"min_token_len"`
}

// ScoringRules parameterizes the four ISMC components.
type ScoringRules struct {
	Weights             map[string]float64 `yaml:"weights"`
	NeutralDefault      float64            `yaml:"neutral_default"`
	SeekingPhrases      []string           `yaml:"seeking_phrases"`
	CollabCountScale    float64            `yaml:"collab_count_scale"`
	GrowthBandMinTiers  int                `yaml:"growth_band_min_tiers"`
	GrowthBandMaxTiers  int                `yaml:"growth_band_max_tiers"`
	RecencyHalfLifeDays float64            `yaml:"recency_half_life_days"`
	ReachFullScale      float64            `yaml:"reach_full_scale"`
	MomentumFloor       float64            `yaml:"momentum_floor"`
}

// AggregationRules selects the bidirectional combination strategy and the
// discrete tier thresholds applied to the combined score.
type AggregationRules struct {
	Strategy string     `yaml:"strategy"`
	Tiers    []TierRule `yaml:"tiers"`
}

// TierRule labels combined scores at or above Min.
type TierRule struct {
	Label string  `yaml:"label"`
	Min   float64 `yaml:"min"`
}

// DefaultRules returns the shipped rule set. Every value here is a starting
// point, expected to be recalibrated from validation data.
func DefaultRules() *Rules {
	return &Rules{
		Confidence: ConfidenceRules{
			BaseConfidence: map[string]float64{
				string(model.SourceClientConfirmed): 1.00,
				string(model.SourceManualEdit):      0.95,
				string(model.SourceVerifiedAPI):     0.90,
				string(model.SourceAutoClassified):  0.75,
				string(model.SourceScraped):         0.70,
				string(model.SourceInferredGuess):   0.50,
				string(model.SourceUnknown):         0.30,
			},
			HalfLifeDays: map[string]float64{
				string(model.FieldName):            720,
				string(model.FieldWebsite):         540,
				string(model.FieldLocation):        540,
				string(model.FieldNeedText):        120,
				string(model.FieldOfferingText):    180,
				string(model.FieldAudienceText):    240,
				string(model.FieldSeekingText):     90,
				string(model.FieldContactChannel):  270,
				string(model.FieldBookingLink):     180,
				string(model.FieldCollabCount):     365,
				string(model.FieldSizeTier):        365,
				string(model.FieldCategories):      365,
				string(model.FieldLastActivity):    60,
				string(model.FieldReach):           120,
				string(model.FieldVisibleProjects): 90,
			},
			DefaultHalfLifeDays:     180,
			VerificationBoostCap:    0.15,
			VerificationBoostStep:   0.05,
			CrossValidationBoostCap: 0.20,
			CrossValidationStep:     0.05,
		},
		Merge: MergeRules{
			SourcePriority: func() []string {
				out := make([]string, len(model.AllSourceKinds))
				for i, k := range model.AllSourceKinds {
					out[i] = string(k)
				}
				return out
			}(),
		},
		Similarity: SimilarityRules{
			NoiseFloor:  0.58,
			SynonymMean: 0.86,
			MinTokenLen: 3,
		},
		Scoring: ScoringRules{
			Weights: map[string]float64{
				model.ComponentIntent:   0.45,
				model.ComponentSynergy:  0.25,
				model.ComponentMomentum: 0.20,
				model.ComponentContext:  0.10,
			},
			NeutralDefault: 0.5,
			SeekingPhrases: []string{
				"looking for partnership opportunities",
				"open to collaborations",
				"seeking strategic partners",
				"interested in joint ventures",
				"open to cross promotion",
			},
			CollabCountScale:    10,
			GrowthBandMinTiers:  2,
			GrowthBandMaxTiers:  3,
			RecencyHalfLifeDays: 30,
			ReachFullScale:      100_000,
			MomentumFloor:       4.0,
		},
		Aggregation: AggregationRules{
			Strategy: "harmonic",
			Tiers: []TierRule{
				{Label: "strong", Min: 70},
				{Label: "fair", Min: 50},
				{Label: "weak", Min: 0},
			},
		},
	}
}

// LoadRules reads the match rules from a YAML file, filling omitted
// sections from defaults. A missing file returns the defaults untouched.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return rules, nil
		}
		return nil, eris.Wrapf(err, "rules: read %s", path)
	}

	// The YAML has a top-level "match" key.
	var wrapper struct {
		Match Rules `yaml:"match"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "rules: parse")
	}

	merged := wrapper.Match
	if len(merged.Confidence.BaseConfidence) == 0 {
		merged.Confidence.BaseConfidence = rules.Confidence.BaseConfidence
	}
	if len(merged.Confidence.HalfLifeDays) == 0 {
		merged.Confidence.HalfLifeDays = rules.Confidence.HalfLifeDays
	}
	if merged.Confidence.DefaultHalfLifeDays <= 0 {
		merged.Confidence.DefaultHalfLifeDays = rules.Confidence.DefaultHalfLifeDays
	}
	if merged.Confidence.VerificationBoostCap <= 0 {
		merged.Confidence.VerificationBoostCap = rules.Confidence.VerificationBoostCap
	}
	if merged.Confidence.VerificationBoostStep <= 0 {
		merged.Confidence.VerificationBoostStep = rules.Confidence.VerificationBoostStep
	}
	if merged.Confidence.CrossValidationBoostCap <= 0 {
		merged.Confidence.CrossValidationBoostCap = rules.Confidence.CrossValidationBoostCap
	}
	if merged.Confidence.CrossValidationStep <= 0 {
		merged.Confidence.CrossValidationStep = rules.Confidence.CrossValidationStep
	}
	if len(merged.Merge.SourcePriority) == 0 {
		merged.Merge.SourcePriority = rules.Merge.SourcePriority
	}
	if merged.Similarity.NoiseFloor <= 0 {
		merged.Similarity.NoiseFloor = rules.Similarity.NoiseFloor
	}
	if merged.Similarity.SynonymMean <= 0 {
		merged.Similarity.SynonymMean = rules.Similarity.SynonymMean
	}
	if merged.Similarity.MinTokenLen <= 0 {
		merged.Similarity.MinTokenLen = rules.Similarity.MinTokenLen
	}
	if len(merged.Scoring.Weights) == 0 {
		merged.Scoring.Weights = rules.Scoring.Weights
	}
	if merged.Scoring.NeutralDefault <= 0 {
		merged.Scoring.NeutralDefault = rules.Scoring.NeutralDefault
	}
	if len(merged.Scoring.SeekingPhrases) == 0 {
		merged.Scoring.SeekingPhrases = rules.Scoring.SeekingPhrases
	}
	if merged.Scoring.CollabCountScale <= 0 {
		merged.Scoring.CollabCountScale = rules.Scoring.CollabCountScale
	}
	if merged.Scoring.GrowthBandMinTiers <= 0 {
		merged.Scoring.GrowthBandMinTiers = rules.Scoring.GrowthBandMinTiers
	}
	if merged.Scoring.GrowthBandMaxTiers <= 0 {
		merged.Scoring.GrowthBandMaxTiers = rules.Scoring.GrowthBandMaxTiers
	}
	if merged.Scoring.RecencyHalfLifeDays <= 0 {
		merged.Scoring.RecencyHalfLifeDays = rules.Scoring.RecencyHalfLifeDays
	}
	if merged.Scoring.ReachFullScale <= 0 {
		merged.Scoring.ReachFullScale = rules.Scoring.ReachFullScale
	}
	if merged.Scoring.MomentumFloor <= 0 {
		merged.Scoring.MomentumFloor = rules.Scoring.MomentumFloor
	}
	if merged.Aggregation.Strategy == "" {
		merged.Aggregation.Strategy = rules.Aggregation.Strategy
	}
	if len(merged.Aggregation.Tiers) == 0 {
		merged.Aggregation.Tiers = rules.Aggregation.Tiers
	}

	return &merged, nil
}
