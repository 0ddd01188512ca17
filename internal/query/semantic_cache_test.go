package query

import (
	"testing"
	"time"
)

func TestSemanticCacheExactMatch(t *testing.T) {
	c := NewSemanticCache(10, time.Minute, 0.9)
	c.Put("cats", []float32{1, 0, 0}, "cat-results")

	result, sim, ok := c.Get("cats", []float32{1, 0, 0})
	if !ok {
		t.Fatalf("expected exact-match hit")
	}
	if sim != 1.0 {
		t.Fatalf("expected similarity 1.0 for exact match, got %v", sim)
	}
	if result != "cat-results" {
		t.Fatalf("unexpected result: %v", result)
	}
}

func TestSemanticCacheSimilarityMatch(t *testing.T) {
	c := NewSemanticCache(10, time.Minute, 0.9)
	c.Put("cats are great", []float32{1, 0, 0}, "cat-results")

	_, sim, ok := c.Get("cats are awesome", []float32{0.99, 0.01, 0})
	if !ok {
		t.Fatalf("expected similarity hit above threshold")
	}
	if sim < 0.9 {
		t.Fatalf("expected similarity >= 0.9, got %v", sim)
	}
}

func TestSemanticCacheBelowThresholdMisses(t *testing.T) {
	c := NewSemanticCache(10, time.Minute, 0.9)
	c.Put("cats", []float32{1, 0, 0}, "cat-results")

	_, _, ok := c.Get("rockets", []float32{0, 0, 1})
	if ok {
		t.Fatalf("expected miss for dissimilar query")
	}
}

func TestSemanticCacheEvictsLRUOnOverflow(t *testing.T) {
	c := NewSemanticCache(2, time.Minute, 0.99)
	c.Put("a", []float32{1, 0, 0}, "a-result")
	c.Put("b", []float32{0, 1, 0}, "b-result")
	c.Put("c", []float32{0, 0, 1}, "c-result")

	if c.Len() != 2 {
		t.Fatalf("expected capacity-bounded length 2, got %d", c.Len())
	}
	if _, _, ok := c.Get("a", []float32{1, 0, 0}); ok {
		t.Fatalf("expected least-recently-used entry 'a' to have been evicted")
	}
}

func TestSemanticCacheTTLExpiry(t *testing.T) {
	c := NewSemanticCache(10, time.Millisecond, 0.9)
	c.Put("a", []float32{1, 0, 0}, "a-result")
	time.Sleep(5 * time.Millisecond)

	if _, _, ok := c.Get("a", []float32{1, 0, 0}); ok {
		t.Fatalf("expected entry to expire after ttl")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry to be lazily evicted, len=%d", c.Len())
	}
}

func TestSemanticCacheWarmBatchPopulates(t *testing.T) {
	c := NewSemanticCache(10, time.Minute, 0.9)
	c.Warm([]Entry{
		{QueryText: "a", Embedding: []float32{1, 0, 0}, Result: "a-result"},
		{QueryText: "b", Embedding: []float32{0, 1, 0}, Result: "b-result"},
	})
	if c.Len() != 2 {
		t.Fatalf("expected 2 warmed entries, got %d", c.Len())
	}
	if _, _, ok := c.Get("a", []float32{1, 0, 0}); !ok {
		t.Fatalf("expected warmed entry to be retrievable")
	}
}
