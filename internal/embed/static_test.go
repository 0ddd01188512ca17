package embed

import (
	"context"
	"math"
	"testing"
)

func TestDeterministicEmbedderIsStable(t *testing.T) {
	e := NewDeterministicEmbedder()
	ctx := context.Background()

	v1, err := e.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	v2, err := e.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	if len(v1) != DeterministicDimensions {
		t.Fatalf("expected %d dims, got %d", DeterministicDimensions, len(v1))
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("expected identical vectors for identical input at index %d", i)
		}
	}
}

func TestDeterministicEmbedderEmptyInput(t *testing.T) {
	e := NewDeterministicEmbedder()
	v, err := e.Embed(context.Background(), "   ")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for _, val := range v {
		if val != 0 {
			t.Fatalf("expected zero vector for blank input")
		}
	}
}

func TestDeterministicEmbedderNormalized(t *testing.T) {
	e := NewDeterministicEmbedder()
	v, err := e.Embed(context.Background(), "retrieval augmented generation")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	mag := math.Sqrt(sumSquares)
	if math.Abs(mag-1.0) > 1e-5 {
		t.Fatalf("expected unit vector, got magnitude %f", mag)
	}
}

func TestDeterministicEmbedderClosed(t *testing.T) {
	e := NewDeterministicEmbedder()
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if e.Available(context.Background()) {
		t.Fatalf("expected unavailable after close")
	}
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Fatalf("expected error embedding after close")
	}
}
