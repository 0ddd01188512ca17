package chunk

import (
	"context"
	"strings"
	"testing"
)

func TestMarkdownChunkerSplitsAtHeaders(t *testing.T) {
	text := "# Title\n\nIntro text.\n\n## Section A\n\nBody A.\n\n## Section B\n\nBody B.\n"

	c := NewMarkdownChunker()
	chunks, err := c.Chunk(context.Background(), "doc1", text, DefaultOptions())
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}

	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks (title+2 sections), got %d", len(chunks))
	}

	foundA := false
	for _, ch := range chunks {
		if strings.Contains(ch.Text, "Body A.") {
			foundA = true
			if len(ch.Metadata.HeaderPath) == 0 || ch.Metadata.HeaderPath[len(ch.Metadata.HeaderPath)-1] != "Section A" {
				t.Fatalf("expected header path ending in Section A, got %v", ch.Metadata.HeaderPath)
			}
		}
	}
	if !foundA {
		t.Fatalf("expected a chunk containing Body A.")
	}
}

func TestMarkdownChunkerKeepsFenceIntact(t *testing.T) {
	text := "# Title\n\n```go\nfunc main() {}\n```\n"
	c := NewMarkdownChunker()
	chunks, err := c.Chunk(context.Background(), "doc1", text, DefaultOptions())
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	joined := ""
	for _, ch := range chunks {
		joined += ch.Text
	}
	if !strings.Contains(joined, "```go\nfunc main() {}\n```") {
		t.Fatalf("expected fenced block to survive intact, got %q", joined)
	}
}
