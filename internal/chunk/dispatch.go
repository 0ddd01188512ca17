package chunk

import (
	"context"
	"strings"
)

var codeExtensions = map[string]bool{
	".go": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".py": true,
	".java": true, ".c": true, ".cc": true, ".cpp": true, ".h": true, ".hpp": true,
	".rb": true, ".rs": true, ".cs": true, ".php": true, ".swift": true, ".kt": true,
}

const sentenceTerminatorThreshold = 5

// AutoChunker picks a strategy from the source extension and text shape:
// a recognized code extension dispatches to the code chunker, .md/.markdown
// to the markdown chunker, prose with several sentence terminators and no
// fenced code blocks to the semantic chunker when an Embed function is
// supplied, and everything else to the recursive character chunker.
type AutoChunker struct {
	code      *CodeChunker
	markdown  *MarkdownChunker
	semantic  *SemanticChunker
	recursive *RecursiveChunker
}

func NewAutoChunker() *AutoChunker {
	return &AutoChunker{
		code:      NewCodeChunker(),
		markdown:  NewMarkdownChunker(),
		semantic:  NewSemanticChunker(),
		recursive: NewRecursiveChunker(),
	}
}

func (c *AutoChunker) Strategy() string { return "auto" }

func (c *AutoChunker) Chunk(ctx context.Context, parentDocID string, text string, opts Options) ([]Chunk, error) {
	delegate, forcedOpts := c.selectStrategy(opts, text)
	return delegate.Chunk(ctx, parentDocID, text, forcedOpts)
}

func (c *AutoChunker) selectStrategy(opts Options, text string) (Chunker, Options) {
	ext := strings.ToLower(opts.LanguageHint)

	if codeExtensions[ext] {
		return c.code, opts
	}
	if ext == ".md" || ext == ".markdown" {
		return c.markdown, opts
	}
	if opts.Embed != nil && looksLikeProse(text) {
		return c.semantic, opts
	}
	return c.recursive, opts
}

func looksLikeProse(text string) bool {
	if strings.Contains(text, "```") {
		return false
	}
	terminators := strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?")
	return terminators >= sentenceTerminatorThreshold
}
