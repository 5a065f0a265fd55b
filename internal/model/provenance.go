package model

import (
	"strings"
	"time"
)

// SourceKind classifies where a field value came from. The coarse trust
// ranking between kinds lives in configuration (rules.yaml), not here.
type SourceKind string

const (
	SourceClientConfirmed SourceKind = "client_confirmed"
	SourceManualEdit      SourceKind = "manual_edit"
	SourceVerifiedAPI     SourceKind = "verified_api"
	SourceAutoClassified  SourceKind = "automated_classification"
	SourceScraped         SourceKind = "scraped"
	SourceInferredGuess   SourceKind = "inferred_guess"
	SourceUnknown         SourceKind = "unknown"
)

// AllSourceKinds lists every known source kind in default priority order,
// most trusted first.
var AllSourceKinds = []SourceKind{
	SourceClientConfirmed,
	SourceManualEdit,
	SourceVerifiedAPI,
	SourceAutoClassified,
	SourceScraped,
	SourceInferredGuess,
	SourceUnknown,
}

var sourceKindSet = func() map[SourceKind]struct{} {
	m := make(map[SourceKind]struct{}, len(AllSourceKinds))
	for _, k := range AllSourceKinds {
		m[k] = struct{}{}
	}
	return m
}()

// ParseSourceKind validates a raw source name against the known kinds.
func ParseSourceKind(s string) (SourceKind, bool) {
	k := SourceKind(strings.ToLower(strings.TrimSpace(s)))
	_, ok := sourceKindSet[k]
	return k, ok
}

// FieldProvenance records where a field value came from and what evidence
// has accumulated for it since. Effective confidence is never stored; it is
// recomputed from this record at read time because it decays continuously.
type FieldProvenance struct {
	Source               SourceKind `json:"source"`
	ObservedAt           time.Time  `json:"observed_at"`
	VerificationCount    int        `json:"verification_count"`
	CrossValidationCount int        `json:"cross_validation_count"`
}

// Candidate is one raw enrichment feed record: a proposed value for a
// profile field from a single source. How it was obtained is the producer's
// business; the merger only cares about source kind and observation time.
type Candidate struct {
	ProfileID  string     `json:"profile_id"`
	Field      FieldKind  `json:"field"`
	Value      string     `json:"value"`
	Source     SourceKind `json:"source"`
	ObservedAt time.Time  `json:"observed_at"`
}

// FieldHistory is one superseded value, retained so "what we used to
// believe" stays auditable after a merge overwrites a field.
type FieldHistory struct {
	ProfileID  string          `json:"profile_id"`
	Field      FieldKind       `json:"field"`
	Value      string          `json:"value"`
	Provenance FieldProvenance `json:"provenance"`
	ReplacedAt time.Time       `json:"replaced_at"`
	Reason     string          `json:"reason"`
}
