package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/aman-cerp/kbcore/internal/cache"
)

// DefaultEmbeddingCacheSize is the default number of embeddings kept in
// memory by CachedEmbedder.
const DefaultEmbeddingCacheSize = 1000

// CachedEmbedder wraps an Embedder with an LRU cache keyed on
// sha256(text + model name), so repeated ingest/query text for the same
// model never re-invokes the inner embedder.
type CachedEmbedder struct {
	inner Embedder
	cache *cache.LRU[string, []float32]
}

// NewCachedEmbedder wraps inner with a cache of the given capacity.
func NewCachedEmbedder(inner Embedder, capacity int) *CachedEmbedder {
	if capacity <= 0 {
		capacity = DefaultEmbeddingCacheSize
	}
	return &CachedEmbedder{inner: inner, cache: cache.New[string, []float32](capacity)}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	combined := text + "\x00" + c.inner.ModelName()
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}

// Embed returns the cached vector for text if present, otherwise computes,
// caches, and returns it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch embeds texts, serving cached entries directly and batching
// only the cache misses through the inner embedder.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missText := make([]string, 0, len(texts))

	for i, text := range texts {
		key := c.cacheKey(text)
		if vec, ok := c.cache.Get(key); ok {
			results[i] = vec
		} else {
			missIdx = append(missIdx, i)
			missText = append(missText, text)
		}
	}

	if len(missText) == 0 {
		return results, nil
	}

	embedded, err := c.inner.EmbedBatch(ctx, missText)
	if err != nil {
		return nil, err
	}

	for j, idx := range missIdx {
		results[idx] = embedded[j]
		c.cache.Add(c.cacheKey(texts[idx]), embedded[j])
	}

	return results, nil
}

func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }
func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }
func (c *CachedEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }
func (c *CachedEmbedder) Close() error { return c.inner.Close() }

// Inner returns the wrapped embedder.
func (c *CachedEmbedder) Inner() Embedder { return c.inner }

// Stats returns the cache's current hit/miss/size statistics.
func (c *CachedEmbedder) Stats() cache.Stats { return c.cache.Stats() }

// Cache returns the underlying LRU, so callers (e.g. the project manager's
// get_project_cache) can inspect or clear it directly.
func (c *CachedEmbedder) Cache() *cache.LRU[string, []float32] { return c.cache }
