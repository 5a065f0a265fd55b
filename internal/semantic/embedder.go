// Package semantic computes calibrated text similarity on top of a
// pluggable embedding capability, with a lexical-overlap fallback so a
// similarity lookup never fails.
package semantic

import "context"

// Embedder is the injected embedding capability. Implementations may be
// remote inference APIs or local models; the adapter only needs a vector,
// the model identity, and an availability probe.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelID() string
	Available(ctx context.Context) bool
}
