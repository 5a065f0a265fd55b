package semantic

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/match-cli/internal/config"
)

// fakeEmbedder returns canned vectors keyed by normalized text and counts
// calls, so cache behavior is observable.
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
	fail    bool
	down    bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.fail {
		return nil, eris.New("embed backend down")
	}
	v, ok := f.vectors[text]
	if !ok {
		return nil, eris.Errorf("no fixture vector for %q", text)
	}
	return v, nil
}

func (f *fakeEmbedder) ModelID() string { return "fake-embeddings-v1" }

func (f *fakeEmbedder) Available(ctx context.Context) bool { return !f.down }

func testRules() config.SimilarityRules {
	return config.DefaultRules().Similarity
}

func TestSimilarity_CalibratedEmbedding(t *testing.T) {
	// Nearly parallel vectors: raw cosine well above the synonym mean.
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"gym management software":     {1, 0.1, 0},
		"fitness studio saas":         {1, 0.12, 0.01},
		"commercial roofing services": {0, 0.1, 1},
	}}
	a := NewAdapter(emb, testRules(), time.Second)

	res := a.Similarity(context.Background(), "Gym Management Software", "Fitness Studio SaaS")
	assert.Equal(t, MethodEmbedding, res.Method)
	assert.Greater(t, res.Score, 0.6)

	// Unrelated vectors: raw cosine near the noise floor calibrates to ~0.
	res = a.Similarity(context.Background(), "gym management software", "commercial roofing services")
	assert.Equal(t, MethodEmbedding, res.Method)
	assert.Less(t, res.Score, 0.1)
}

func TestSimilarity_ParaphraseBeatsLexicalFallback(t *testing.T) {
	// Paraphrased offers share almost no content words; the embedding path
	// must score them well above what lexical overlap can see.
	need := "business growth coaching for online coaches"
	offering := "company scaling advisory for coaches"
	emb := &fakeEmbedder{vectors: map[string][]float32{
		need:     {0.9, 0.42, 0.1},
		offering: {0.88, 0.46, 0.08},
	}}
	a := NewAdapter(emb, testRules(), time.Second)

	semantic := a.Similarity(context.Background(), need, offering)
	require.Equal(t, MethodEmbedding, semantic.Method)

	lexical := lexicalOverlap(normalizeText(need), normalizeText(offering), testRules().MinTokenLen)
	assert.Greater(t, semantic.Score, 0.6)
	assert.Greater(t, semantic.Score, lexical)
	assert.LessOrEqual(t, lexical, 0.25)
}

func TestSimilarity_SelfSimilarityIsOne(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"yoga teacher training": {0.3, 0.7, 0.2},
	}}
	a := NewAdapter(emb, testRules(), time.Second)

	res := a.Similarity(context.Background(), "yoga teacher training", "Yoga Teacher  Training")
	assert.Equal(t, 1.0, res.Score)
}

func TestSimilarity_NilEmbedderUsesLexical(t *testing.T) {
	a := NewAdapter(nil, testRules(), time.Second)

	res := a.Similarity(context.Background(), "strategic partner outreach", "partner outreach tooling")
	assert.Equal(t, MethodLexical, res.Method)
	assert.Greater(t, res.Score, 0.0)
}

func TestSimilarity_UnavailableEmbedderFallsBack(t *testing.T) {
	emb := &fakeEmbedder{down: true}
	a := NewAdapter(emb, testRules(), time.Second)

	res := a.Similarity(context.Background(), "some need", "some offering")
	assert.Equal(t, MethodLexical, res.Method)
	assert.Zero(t, emb.calls)
}

func TestSimilarity_EmbedErrorFallsBack(t *testing.T) {
	emb := &fakeEmbedder{fail: true}
	a := NewAdapter(emb, testRules(), time.Second)

	res := a.Similarity(context.Background(), "wellness retreats", "retreats for wellness")
	assert.Equal(t, MethodLexical, res.Method)
	assert.GreaterOrEqual(t, res.Score, 0.0)
	assert.LessOrEqual(t, res.Score, 1.0)
}

func TestSimilarity_EmptyInput(t *testing.T) {
	emb := &fakeEmbedder{}
	a := NewAdapter(emb, testRules(), time.Second)

	res := a.Similarity(context.Background(), "", "anything at all")
	assert.Equal(t, MethodLexical, res.Method)
	assert.Equal(t, 0.0, res.Score)
	assert.Zero(t, emb.calls, "empty input must not hit the embedder")
}

func TestSimilarity_VectorsAreCached(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"personal training":  {1, 0, 0},
		"nutrition coaching": {0.8, 0.6, 0},
	}}
	a := NewAdapter(emb, testRules(), time.Second)

	a.Similarity(context.Background(), "personal training", "nutrition coaching")
	require.Equal(t, 2, emb.calls)
	assert.Equal(t, 2, a.CachedVectors())

	// Same texts again: served entirely from cache.
	a.Similarity(context.Background(), "Personal Training", "nutrition  coaching")
	assert.Equal(t, 2, emb.calls)
}

func TestCalibrate(t *testing.T) {
	a := NewAdapter(nil, config.SimilarityRules{NoiseFloor: 0.58, SynonymMean: 0.86, MinTokenLen: 3}, time.Second)

	tests := []struct {
		raw  float64
		want float64
	}{
		{0.20, 0},
		{0.58, 0},
		{0.72, 0.5},
		{0.86, 1},
		{0.99, 1},
	}
	for _, tc := range tests {
		assert.InDelta(t, tc.want, a.calibrate(tc.raw), 1e-9, "raw %.2f", tc.raw)
	}
}

func TestCalibrate_DegenerateConfigPassesThrough(t *testing.T) {
	a := NewAdapter(nil, config.SimilarityRules{NoiseFloor: 0.9, SynonymMean: 0.9}, time.Second)
	assert.InDelta(t, 0.75, a.calibrate(0.75), 1e-9)
}

func TestLexicalOverlap(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{"identical", "gym management software", "gym management software", 1},
		{"disjoint", "gym management software", "commercial roofing repair", 0},
		{"stop words ignored", "the and of with", "looking for partners", 0},
		{"partial", "seeking strategic partners", "strategic partners wanted", 2.0 / 3.0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, lexicalOverlap(tc.a, tc.b, 3), 1e-9)
		})
	}
}
