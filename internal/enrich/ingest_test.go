package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/match-cli/internal/confidence"
	"github.com/sells-group/match-cli/internal/config"
	"github.com/sells-group/match-cli/internal/merge"
	"github.com/sells-group/match-cli/internal/model"
)

func newTestIngestor(st *memStore) *Ingestor {
	rules := config.DefaultRules()
	calc := confidence.NewCalculator(rules.Confidence)
	return NewIngestor(st, merge.NewMerger(calc, rules.Merge))
}

func TestApply_CreatesProfileAndFields(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	st := newMemStore()
	in := newTestIngestor(st)

	sum, err := in.Apply(context.Background(), []model.Candidate{
		{ProfileID: "acme", Field: model.FieldWebsite, Value: "https://acme.test", Source: model.SourceScraped, ObservedAt: now},
		{ProfileID: "acme", Field: model.FieldNeedText, Value: "need distribution", Source: model.SourceScraped, ObservedAt: now},
	}, now)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Candidates)
	assert.Equal(t, 2, sum.Updated)
	assert.Zero(t, sum.Skipped)

	p, err := st.GetProfile(context.Background(), "acme")
	require.NoError(t, err)
	website, ok := p.Get(model.FieldWebsite)
	require.True(t, ok)
	assert.Equal(t, "https://acme.test", website.Value)
	assert.Equal(t, model.SourceScraped, website.Provenance.Source)
}

func TestApply_SkipsUnknownKinds(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	st := newMemStore()
	in := newTestIngestor(st)

	sum, err := in.Apply(context.Background(), []model.Candidate{
		{ProfileID: "acme", Field: "shoe_size", Value: "42", Source: model.SourceScraped, ObservedAt: now},
		{ProfileID: "acme", Field: model.FieldWebsite, Value: "x", Source: "ouija_board", ObservedAt: now},
		{ProfileID: "", Field: model.FieldWebsite, Value: "x", Source: model.SourceScraped, ObservedAt: now},
	}, now)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Skipped)
	assert.Zero(t, sum.Updated)
}

func TestApply_SupersededValueGoesToHistory(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	st := newMemStore()
	in := newTestIngestor(st)

	_, err := in.Apply(context.Background(), []model.Candidate{
		{ProfileID: "acme", Field: model.FieldLocation, Value: "Dallas, TX", Source: model.SourceScraped, ObservedAt: now.AddDate(0, -1, 0)},
	}, now.AddDate(0, -1, 0))
	require.NoError(t, err)

	sum, err := in.Apply(context.Background(), []model.Candidate{
		{ProfileID: "acme", Field: model.FieldLocation, Value: "Austin, TX", Source: model.SourceClientConfirmed, ObservedAt: now},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Updated)

	hist, err := st.ListHistory(context.Background(), "acme", model.FieldLocation)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "Dallas, TX", hist[0].Value)
	assert.Equal(t, model.SourceScraped, hist[0].Provenance.Source)
	assert.Equal(t, "superseded by client_confirmed", hist[0].Reason)

	p, err := st.GetProfile(context.Background(), "acme")
	require.NoError(t, err)
	loc, _ := p.Get(model.FieldLocation)
	assert.Equal(t, "Austin, TX", loc.Value)
}

func TestApply_CorroborationPersistsBump(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	st := newMemStore()
	in := newTestIngestor(st)

	_, err := in.Apply(context.Background(), []model.Candidate{
		{ProfileID: "acme", Field: model.FieldWebsite, Value: "https://acme.test", Source: model.SourceScraped, ObservedAt: now},
	}, now)
	require.NoError(t, err)

	sum, err := in.Apply(context.Background(), []model.Candidate{
		{ProfileID: "acme", Field: model.FieldWebsite, Value: "https://acme.test", Source: model.SourceVerifiedAPI, ObservedAt: now},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Corroborated)

	p, err := st.GetProfile(context.Background(), "acme")
	require.NoError(t, err)
	website, _ := p.Get(model.FieldWebsite)
	assert.Equal(t, 1, website.Provenance.CrossValidationCount)
}

func TestApply_AmbiguousConflictFlagsForReview(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	st := newMemStore()
	in := newTestIngestor(st)

	_, err := in.Apply(context.Background(), []model.Candidate{
		{ProfileID: "acme", Field: model.FieldLocation, Value: "Austin, TX", Source: model.SourceManualEdit, ObservedAt: now.AddDate(0, -1, 0)},
	}, now.AddDate(0, -1, 0))
	require.NoError(t, err)

	observed := now.AddDate(0, 0, -3)
	sum, err := in.Apply(context.Background(), []model.Candidate{
		{ProfileID: "acme", Field: model.FieldLocation, Value: "Portland, OR", Source: model.SourceScraped, ObservedAt: observed},
		{ProfileID: "acme", Field: model.FieldLocation, Value: "Seattle, WA", Source: model.SourceScraped, ObservedAt: observed},
	}, now)
	require.NoError(t, err)

	require.Len(t, sum.ReviewFlags, 1)
	assert.Equal(t, "acme", sum.ReviewFlags[0].ProfileID)
	assert.Equal(t, "location", sum.ReviewFlags[0].Field)

	// Prior value untouched.
	p, err := st.GetProfile(context.Background(), "acme")
	require.NoError(t, err)
	loc, _ := p.Get(model.FieldLocation)
	assert.Equal(t, "Austin, TX", loc.Value)
}

func TestApply_Idempotent(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	st := newMemStore()
	in := newTestIngestor(st)

	batch := []model.Candidate{
		{ProfileID: "acme", Field: model.FieldWebsite, Value: "https://acme.test", Source: model.SourceScraped, ObservedAt: now},
	}

	first, err := in.Apply(context.Background(), batch, now)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Updated)

	second, err := in.Apply(context.Background(), batch, now)
	require.NoError(t, err)
	assert.Zero(t, second.Updated)
	assert.Equal(t, 1, second.Corroborated)

	// Same source restating itself cannot inflate cross-validation.
	p, err := st.GetProfile(context.Background(), "acme")
	require.NoError(t, err)
	website, _ := p.Get(model.FieldWebsite)
	assert.Zero(t, website.Provenance.CrossValidationCount)
}
