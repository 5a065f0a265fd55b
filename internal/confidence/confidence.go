// Package confidence turns field provenance plus the current time into an
// effective trust value in [0,1]. The value is recomputed on every read; it
// is never stored, because it decays continuously.
package confidence

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/match-cli/internal/config"
	"github.com/sells-group/match-cli/internal/model"
)

// ConfigurationError reports an unrecognized source or field kind. It is
// fatal: silently assigning a guessed trust level to an unknown source is
// exactly the failure this package exists to prevent.
type ConfigurationError struct {
	Kind  string // "source_kind" or "field_kind"
	Value string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("confidence: unknown %s %q", e.Kind, e.Value)
}

// Calculator computes effective confidence from provenance. Pure given its
// rules; safe for concurrent use.
type Calculator struct {
	rules config.ConfidenceRules
}

// NewCalculator creates a calculator from the loaded decay rules.
func NewCalculator(rules config.ConfidenceRules) *Calculator {
	return &Calculator{rules: rules}
}

// Effective computes the trust value for a field value as of now.
// Formula: base[source] * e^(-ageDays/halfLife[field]), plus capped
// verification and cross-validation boosts, clamped to [0,1].
func (c *Calculator) Effective(prov model.FieldProvenance, field model.FieldKind, now time.Time) (float64, error) {
	base, ok := c.rules.BaseConfidence[string(prov.Source)]
	if !ok {
		return 0, &ConfigurationError{Kind: "source_kind", Value: string(prov.Source)}
	}

	halfLife := c.rules.HalfLifeDays[string(field)]
	if halfLife <= 0 {
		if _, known := model.ParseFieldKind(string(field)); !known {
			return 0, &ConfigurationError{Kind: "field_kind", Value: string(field)}
		}
		halfLife = c.rules.DefaultHalfLifeDays
	}

	ageDays := now.Sub(prov.ObservedAt).Hours() / 24
	if ageDays < 0 {
		// Clock skew between sources happens; a future observation is an
		// anomaly worth logging, not an error.
		zap.L().Warn("confidence: observed_at is in the future, clamping age to 0",
			zap.String("source", string(prov.Source)),
			zap.String("field", string(field)),
			zap.Time("observed_at", prov.ObservedAt),
		)
		ageDays = 0
	}

	decayed := base * math.Exp(-ageDays/halfLife)

	boosted := decayed +
		cappedBoost(prov.VerificationCount, c.rules.VerificationBoostStep, c.rules.VerificationBoostCap) +
		cappedBoost(prov.CrossValidationCount, c.rules.CrossValidationStep, c.rules.CrossValidationBoostCap)

	return clamp01(boosted), nil
}

// cappedBoost is monotonic in the event count and saturates at limit.
func cappedBoost(count int, step, limit float64) float64 {
	if count <= 0 || step <= 0 {
		return 0
	}
	boost := float64(count) * step
	if boost > limit {
		return limit
	}
	return boost
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
