package semantic

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// vectorCache memoizes embedding vectors by (model id, content hash of the
// normalized text). Keying on the content hash makes staleness structural:
// if the text changes the key changes, so a stale vector can never be
// served. Entries are immutable once written, which keeps concurrent batch
// workers safe with a plain RWMutex.
type vectorCache struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

func newVectorCache() *vectorCache {
	return &vectorCache{vectors: make(map[string][]float32)}
}

func cacheKey(modelID, normalizedText string) string {
	h := sha256.Sum256([]byte(normalizedText))
	return modelID + ":" + hex.EncodeToString(h[:])
}

func (c *vectorCache) get(key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vectors[key]
	return v, ok
}

func (c *vectorCache) put(key string, v []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.vectors[key]; exists {
		return
	}
	c.vectors[key] = v
}

func (c *vectorCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}
