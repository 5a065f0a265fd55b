package model

import (
	"strconv"
	"strings"
	"time"
)

// FieldKind identifies one of the closed set of profile fields the engine
// understands. Access goes through the typed accessors below so that missing
// data is an explicit branch, not a failed map lookup.
type FieldKind string

const (
	FieldName            FieldKind = "name"
	FieldWebsite         FieldKind = "website"
	FieldLocation        FieldKind = "location"
	FieldNeedText        FieldKind = "need_text"
	FieldOfferingText    FieldKind = "offering_text"
	FieldAudienceText    FieldKind = "audience_text"
	FieldSeekingText     FieldKind = "seeking_text"
	FieldContactChannel  FieldKind = "contact_channel"
	FieldBookingLink     FieldKind = "booking_link"
	FieldCollabCount     FieldKind = "collab_count"
	FieldSizeTier        FieldKind = "size_tier"
	FieldCategories      FieldKind = "categories"
	FieldLastActivity    FieldKind = "last_activity"
	FieldReach           FieldKind = "reach"
	FieldVisibleProjects FieldKind = "visible_projects"
)

// AllFieldKinds lists every known field kind, in display order.
var AllFieldKinds = []FieldKind{
	FieldName,
	FieldWebsite,
	FieldLocation,
	FieldNeedText,
	FieldOfferingText,
	FieldAudienceText,
	FieldSeekingText,
	FieldContactChannel,
	FieldBookingLink,
	FieldCollabCount,
	FieldSizeTier,
	FieldCategories,
	FieldLastActivity,
	FieldReach,
	FieldVisibleProjects,
}

var fieldKindSet = func() map[FieldKind]struct{} {
	m := make(map[FieldKind]struct{}, len(AllFieldKinds))
	for _, k := range AllFieldKinds {
		m[k] = struct{}{}
	}
	return m
}()

// ParseFieldKind validates a raw field name against the closed set.
func ParseFieldKind(s string) (FieldKind, bool) {
	k := FieldKind(strings.ToLower(strings.TrimSpace(s)))
	_, ok := fieldKindSet[k]
	return k, ok
}

// Field is a single profile value plus the provenance that backs it.
type Field struct {
	Kind       FieldKind       `json:"kind"`
	Value      string          `json:"value"`
	Provenance FieldProvenance `json:"provenance"`
}

// Profile is a business profile assembled from enrichment sources.
type Profile struct {
	ID     string              `json:"id"`
	Fields map[FieldKind]Field `json:"fields"`
}

// NewProfile creates an empty profile with an initialized field map.
func NewProfile(id string) *Profile {
	return &Profile{ID: id, Fields: make(map[FieldKind]Field)}
}

// Get returns the field for the given kind, if populated with a non-empty value.
func (p *Profile) Get(kind FieldKind) (Field, bool) {
	f, ok := p.Fields[kind]
	if !ok || strings.TrimSpace(f.Value) == "" {
		return Field{}, false
	}
	return f, true
}

// Set stores a field, replacing any prior value for the same kind.
func (p *Profile) Set(f Field) {
	if p.Fields == nil {
		p.Fields = make(map[FieldKind]Field)
	}
	p.Fields[f.Kind] = f
}

// Text returns a free-text field value.
func (p *Profile) Text(kind FieldKind) (string, bool) {
	f, ok := p.Get(kind)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(f.Value), true
}

// Int returns an integer field value. Stored values with commas
// ("12,500") parse as plain integers.
func (p *Profile) Int(kind FieldKind) (int64, bool) {
	f, ok := p.Get(kind)
	if !ok {
		return 0, false
	}
	cleaned := strings.ReplaceAll(strings.TrimSpace(f.Value), ",", "")
	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Time returns a timestamp field value, accepting RFC 3339 or date-only form.
func (p *Profile) Time(kind FieldKind) (time.Time, bool) {
	f, ok := p.Get(kind)
	if !ok {
		return time.Time{}, false
	}
	v := strings.TrimSpace(f.Value)
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Categories returns the declared category list, split on commas and lowercased.
func (p *Profile) Categories() ([]string, bool) {
	v, ok := p.Text(FieldCategories)
	if !ok {
		return nil, false
	}
	var cats []string
	for _, c := range strings.Split(v, ",") {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			cats = append(cats, c)
		}
	}
	if len(cats) == 0 {
		return nil, false
	}
	return cats, true
}

// SizeTier returns the declared size tier ordinal (1 = smallest).
func (p *Profile) SizeTier() (int, bool) {
	n, ok := p.Int(FieldSizeTier)
	if !ok || n < 1 {
		return 0, false
	}
	return int(n), true
}

// Completeness returns the fraction of known field kinds that carry a value.
func (p *Profile) Completeness() float64 {
	if len(AllFieldKinds) == 0 {
		return 0
	}
	var populated int
	for _, k := range AllFieldKinds {
		if _, ok := p.Get(k); ok {
			populated++
		}
	}
	return float64(populated) / float64(len(AllFieldKinds))
}
