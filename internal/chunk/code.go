package chunk

import (
	"context"
	"strconv"
	"strings"
)

// CodeChunker splits source text at top-level function/class boundaries.
// When a tree-sitter grammar is registered for the detected language it is
// used to find symbol boundaries; otherwise a heuristic blank-line/brace
// based splitter is used, matching the fallback the registry itself
// exercises for unregistered languages. Every output chunk is tagged
// chunk_type=code, and prepended with the detected import/prelude block
// when PreserveImports is set.
type CodeChunker struct {
	parser    *Parser
	registry  *LanguageRegistry
	recursive *RecursiveChunker
}

func NewCodeChunker() *CodeChunker {
	return &CodeChunker{
		parser:    NewParser(),
		registry:  DefaultRegistry(),
		recursive: NewRecursiveChunker(),
	}
}

func (c *CodeChunker) Strategy() string { return "code" }

func (c *CodeChunker) Chunk(ctx context.Context, parentDocID string, text string, opts Options) ([]Chunk, error) {
	if opts.ChunkSize <= 0 {
		opts = DefaultOptions()
	}
	maxLines := opts.MaxChunkSize
	if maxLines <= 0 {
		maxLines = 200
	}

	lang, ok := c.languageFor(opts.LanguageHint)
	prelude := detectPrelude(text, lang)

	var bodies []string
	if ok {
		tree, err := c.parser.Parse(ctx, []byte(text), lang.Name)
		if err == nil {
			bodies = splitByTopLevelNodes(tree, lang)
		}
	}
	if bodies == nil {
		bodies = splitHeuristic(text)
	}

	var chunks []Chunk
	idx := 0
	for _, body := range bodies {
		body = strings.TrimRight(body, "\n")
		if strings.TrimSpace(body) == "" {
			continue
		}

		full := body
		if opts.PreserveImports && prelude != "" && !strings.Contains(body, prelude) {
			full = prelude + "\n\n" + body
		}

		if countLines(body) <= maxLines {
			chunks = append(chunks, newChunk(parentDocID, idx, 0, full, c.Strategy(), ChunkTypeCode))
			idx++
			continue
		}

		sub, err := c.recursive.Chunk(ctx, parentDocID, full, Options{ChunkSize: opts.ChunkSize, ChunkOverlap: opts.ChunkOverlap})
		if err != nil {
			return nil, err
		}
		for _, s := range sub {
			s.Metadata.ChunkIndex = idx
			s.Metadata.ChunkType = ChunkTypeCode
			s.Metadata.ChunkingStrategy = c.Strategy()
			s.ID = parentDocID + "_chunk" + strconv.Itoa(idx)
			chunks = append(chunks, s)
			idx++
		}
	}

	return finalizeIndices(chunks), nil
}

func (c *CodeChunker) languageFor(hint string) (*LanguageConfig, bool) {
	if hint == "" {
		return nil, false
	}
	return c.registry.GetByExtension(hint)
}

// splitByTopLevelNodes returns the source text of every top-level
// function/method/class/type declaration, in document order.
func splitByTopLevelNodes(tree *Tree, lang *LanguageConfig) []string {
	wanted := map[string]bool{}
	for _, t := range lang.FunctionTypes {
		wanted[t] = true
	}
	for _, t := range lang.MethodTypes {
		wanted[t] = true
	}
	for _, t := range lang.ClassTypes {
		wanted[t] = true
	}
	for _, t := range lang.TypeDefTypes {
		wanted[t] = true
	}
	for _, t := range lang.InterfaceTypes {
		wanted[t] = true
	}

	var bodies []string
	for _, child := range tree.Root.Children {
		if wanted[child.Type] {
			bodies = append(bodies, child.GetContent(tree.Source))
		}
	}
	return bodies
}

// splitHeuristic splits on blank-line-separated top-level blocks, used for
// languages without a registered grammar.
func splitHeuristic(text string) []string {
	lines := strings.Split(text, "\n")
	var blocks []string
	var current []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" && len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, strings.Join(current, "\n"))
	}
	return blocks
}

// detectPrelude returns a best-effort import/prelude block: the leading
// contiguous run of import/package/include-style lines.
func detectPrelude(text string, lang *LanguageConfig) string {
	lines := strings.Split(text, "\n")
	var prelude []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(prelude) > 0 {
				continue
			}
			continue
		}
		if isPreludeLine(trimmed) {
			prelude = append(prelude, line)
			continue
		}
		break
	}
	return strings.TrimSpace(strings.Join(prelude, "\n"))
}

func isPreludeLine(line string) bool {
	prefixes := []string{"package ", "import ", "from ", "#include", "require(", "using "}
	for _, p := range prefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return line == ")" || line == "("
}

func countLines(s string) int {
	return strings.Count(s, "\n") + 1
}
