package semantic

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/match-cli/internal/config"
)

// Similarity methods recorded in Result for explainability.
const (
	MethodEmbedding = "embedding"
	MethodLexical   = "lexical"
)

// Result is a similarity score plus how it was obtained.
type Result struct {
	Score  float64 `json:"score"`
	Method string  `json:"method"`
	Detail string  `json:"detail,omitempty"`
}

// Adapter computes calibrated semantic similarity between two texts.
// Embedding failures, timeouts, and empty inputs all degrade to the
// lexical fallback; Similarity never returns an error.
type Adapter struct {
	embedder Embedder
	rules    config.SimilarityRules
	timeout  time.Duration
	cache    *vectorCache

	logFallback sync.Once
}

// NewAdapter wraps an embedding capability with calibration, caching, and
// the lexical fallback. A nil embedder is allowed and forces the fallback.
func NewAdapter(embedder Embedder, rules config.SimilarityRules, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Adapter{
		embedder: embedder,
		rules:    rules,
		timeout:  timeout,
		cache:    newVectorCache(),
	}
}

// Available reports whether the embedding capability can be reached.
func (a *Adapter) Available(ctx context.Context) bool {
	return a.embedder != nil && a.embedder.Available(ctx)
}

// CachedVectors returns the number of memoized embedding vectors.
func (a *Adapter) CachedVectors() int {
	return a.cache.len()
}

// Similarity scores two texts in [0,1]. Raw cosine is calibrated against
// the configured noise floor and synonym reference point: unrelated short
// business text still scores well above 0 in raw cosine, so uncalibrated
// values overstate similarity.
func (a *Adapter) Similarity(ctx context.Context, textA, textB string) Result {
	normA := normalizeText(textA)
	normB := normalizeText(textB)

	if normA == "" || normB == "" {
		return Result{
			Score:  lexicalOverlap(normA, normB, a.rules.MinTokenLen),
			Method: MethodLexical,
			Detail: "empty input",
		}
	}

	if a.embedder == nil || !a.embedder.Available(ctx) {
		a.noteFallback("embedder unavailable")
		return a.lexical(normA, normB, "embedder unavailable")
	}

	vecA, err := a.vector(ctx, normA)
	if err == nil {
		var vecB []float32
		vecB, err = a.vector(ctx, normB)
		if err == nil {
			raw := cosine(vecA, vecB)
			return Result{
				Score:  a.calibrate(raw),
				Method: MethodEmbedding,
				Detail: a.embedder.ModelID(),
			}
		}
	}

	a.noteFallback(err.Error())
	return a.lexical(normA, normB, "embed failed")
}

func (a *Adapter) lexical(normA, normB, detail string) Result {
	return Result{
		Score:  lexicalOverlap(normA, normB, a.rules.MinTokenLen),
		Method: MethodLexical,
		Detail: detail,
	}
}

// vector returns the embedding for normalized text, memoized by content
// hash under the current model id and bounded by the adapter timeout.
func (a *Adapter) vector(ctx context.Context, normalized string) ([]float32, error) {
	key := cacheKey(a.embedder.ModelID(), normalized)
	if v, ok := a.cache.get(key); ok {
		return v, nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	v, err := a.embedder.Embed(ctx, normalized)
	if err != nil {
		return nil, err
	}
	a.cache.put(key, v)
	return v, nil
}

// calibrate maps raw cosine onto [0,1]: at or below the noise floor is 0,
// at or above the synonym mean is 1, linear in between.
func (a *Adapter) calibrate(raw float64) float64 {
	floor, ceil := a.rules.NoiseFloor, a.rules.SynonymMean
	if ceil <= floor {
		// Degenerate calibration config; pass raw through clamped rather
		// than divide by zero.
		return clamp01(raw)
	}
	return clamp01((raw - floor) / (ceil - floor))
}

// noteFallback logs the degradation once per adapter lifetime, not per
// pair: a batch over thousands of pairs should not emit thousands of
// identical warnings.
func (a *Adapter) noteFallback(reason string) {
	a.logFallback.Do(func() {
		zap.L().Warn("semantic: falling back to lexical overlap",
			zap.String("reason", reason),
		)
	})
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
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
