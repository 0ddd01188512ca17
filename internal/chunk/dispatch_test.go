package chunk

import (
	"context"
	"testing"
)

func TestAutoChunkerDispatchesCodeByExtension(t *testing.T) {
	c := NewAutoChunker()
	src := "package main\n\nfunc A() {}\n\nfunc B() {}\n"
	chunks, err := c.Chunk(context.Background(), "doc1", src, Options{ChunkSize: 1000, LanguageHint: ".go"})
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	for _, ch := range chunks {
		if ch.Metadata.ChunkingStrategy != "code" {
			t.Fatalf("expected code strategy, got %s", ch.Metadata.ChunkingStrategy)
		}
	}
}

func TestAutoChunkerDispatchesMarkdownByExtension(t *testing.T) {
	c := NewAutoChunker()
	text := "# Title\n\nSome body text.\n"
	chunks, err := c.Chunk(context.Background(), "doc1", text, Options{ChunkSize: 1000, LanguageHint: ".md"})
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	for _, ch := range chunks {
		if ch.Metadata.ChunkingStrategy != "markdown" {
			t.Fatalf("expected markdown strategy, got %s", ch.Metadata.ChunkingStrategy)
		}
	}
}

func TestAutoChunkerFallsBackToRecursive(t *testing.T) {
	c := NewAutoChunker()
	text := "short plain text"
	chunks, err := c.Chunk(context.Background(), "doc1", text, Options{ChunkSize: 1000, LanguageHint: ".txt"})
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	for _, ch := range chunks {
		if ch.Metadata.ChunkingStrategy != "recursive" {
			t.Fatalf("expected recursive strategy, got %s", ch.Metadata.ChunkingStrategy)
		}
	}
}

func TestAutoChunkerDispatchesSemanticForProse(t *testing.T) {
	c := NewAutoChunker()
	text := "Cats are great pets. Dogs are loyal too. Rockets fly to space. Birds can sing. Fish swim well."
	opts := Options{ChunkSize: 1000, LanguageHint: ".txt", Embed: fakeEmbed, SimilarityThreshold: 0.5, MinChunkSentences: 1, MaxChunkSentences: 20}
	chunks, err := c.Chunk(context.Background(), "doc1", text, opts)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	for _, ch := range chunks {
		if ch.Metadata.ChunkingStrategy != "semantic" {
			t.Fatalf("expected semantic strategy, got %s", ch.Metadata.ChunkingStrategy)
		}
	}
}
