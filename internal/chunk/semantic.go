package chunk

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// SemanticChunker groups sentences by embedding similarity: a boundary is
// placed between two adjacent sentences when their cosine similarity
// drops below SimilarityThreshold, subject to MinChunkSentences and
// MaxChunkSentences.
type SemanticChunker struct{}

func NewSemanticChunker() *SemanticChunker { return &SemanticChunker{} }

func (c *SemanticChunker) Strategy() string { return "semantic" }

var sentenceSplitRE = regexp.MustCompile(`(?:[.!?]+\s+|\n+)`)

func (c *SemanticChunker) Chunk(ctx context.Context, parentDocID string, text string, opts Options) ([]Chunk, error) {
	if opts.Embed == nil {
		return nil, fmt.Errorf("semantic chunker requires an Embed function")
	}
	minSentences := opts.MinChunkSentences
	if minSentences <= 0 {
		minSentences = 1
	}
	maxSentences := opts.MaxChunkSentences
	if maxSentences <= 0 {
		maxSentences = 20
	}
	threshold := opts.SimilarityThreshold
	if threshold <= 0 {
		threshold = 0.5
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, len(sentences))
	for i, s := range sentences {
		vec, err := opts.Embed(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("embed sentence %d: %w", i, err)
		}
		embeddings[i] = vec
	}

	var groups [][]string
	current := []string{sentences[0]}
	for i := 1; i < len(sentences); i++ {
		sim := cosine(embeddings[i-1], embeddings[i])
		boundary := sim < threshold || len(current) >= maxSentences
		if boundary {
			groups = append(groups, current)
			current = []string{sentences[i]}
		} else {
			current = append(current, sentences[i])
		}
	}
	groups = append(groups, current)

	// Merge a trailing fragment smaller than minSentences into the
	// previous group, per spec.md §4.3.4.
	if len(groups) > 1 && len(groups[len(groups)-1]) < minSentences {
		last := groups[len(groups)-1]
		groups = groups[:len(groups)-1]
		groups[len(groups)-1] = append(groups[len(groups)-1], last...)
	}

	chunks := make([]Chunk, 0, len(groups))
	for i, g := range groups {
		body := strings.Join(g, " ")
		chunks = append(chunks, newChunk(parentDocID, i, 0, body, c.Strategy(), ChunkTypeText))
	}
	return finalizeIndices(chunks), nil
}

func splitSentences(text string) []string {
	parts := sentenceSplitRE.Split(text, -1)
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
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
