package embed

import (
	"context"
	"testing"
)

type countingEmbedder struct {
	*DeterministicEmbedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.DeterministicEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls += len(texts)
	return c.DeterministicEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedderHitsCache(t *testing.T) {
	inner := &countingEmbedder{DeterministicEmbedder: NewDeterministicEmbedder()}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	if _, err := cached.Embed(ctx, "hello"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if _, err := cached.Embed(ctx, "hello"); err != nil {
		t.Fatalf("embed: %v", err)
	}

	if inner.calls != 1 {
		t.Fatalf("expected inner embedder called once, got %d", inner.calls)
	}
	if cached.Stats().Hits != 1 {
		t.Fatalf("expected 1 cache hit, got %d", cached.Stats().Hits)
	}
}

func TestCachedEmbedderBatchMixesHitsAndMisses(t *testing.T) {
	inner := &countingEmbedder{DeterministicEmbedder: NewDeterministicEmbedder()}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	if _, err := cached.Embed(ctx, "a"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	inner.calls = 0

	results, err := cached.EmbedBatch(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("embed batch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if inner.calls != 2 {
		t.Fatalf("expected only 2 uncached texts sent to inner embedder, got %d", inner.calls)
	}
}
