// Package embed defines the embedding-model boundary and the caching
// decorator and deterministic test double built on top of it.
package embed

import (
	"context"
	"math"
)

// DefaultDimensions is the embedding dimension used when a caller doesn't
// override it via config.
const DefaultDimensions = 768

// DeterministicDimensions is the embedding dimension produced by the
// deterministic embedder used in tests and as a dependency-free fallback.
const DeterministicDimensions = 256

// Embedder generates vector embeddings for text. Implementations are
// supplied by the host application; this package only consumes the
// interface and decorates it (caching) or stands in for it in tests
// (DeterministicEmbedder).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

// normalizeVector scales v to unit length, returning it unchanged if it is
// the zero vector.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
