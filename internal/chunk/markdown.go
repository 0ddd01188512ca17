package chunk

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// MarkdownChunker splits primarily at header boundaries, tagging each
// chunk with the path of ancestor headers. Fenced code blocks are never
// split internally; an oversized section falls back to the recursive
// chunker. Tables get no special handling, so an oversized section that
// contains a table may be cut inside it.
type MarkdownChunker struct {
	recursive *RecursiveChunker
}

func NewMarkdownChunker() *MarkdownChunker {
	return &MarkdownChunker{recursive: NewRecursiveChunker()}
}

func (c *MarkdownChunker) Strategy() string { return "markdown" }

var headerRE = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

type mdSection struct {
	headerPath []string
	body       string
}

func (c *MarkdownChunker) Chunk(ctx context.Context, parentDocID string, text string, opts Options) ([]Chunk, error) {
	if opts.ChunkSize <= 0 {
		opts = DefaultOptions()
	}
	maxSize := opts.MaxChunkSize
	if maxSize <= 0 {
		maxSize = opts.ChunkSize * 2
	}

	sections := parseSections(text)

	var chunks []Chunk
	idx := 0
	for _, sec := range sections {
		body := strings.TrimSpace(sec.body)
		if body == "" {
			continue
		}
		if len(body) <= maxSize {
			ch := newChunk(parentDocID, idx, 0, body, c.Strategy(), chunkTypeForSection(sec))
			ch.Metadata.HeaderPath = sec.headerPath
			chunks = append(chunks, ch)
			idx++
			continue
		}

		sub, err := c.recursive.Chunk(ctx, parentDocID, body, Options{ChunkSize: opts.ChunkSize, ChunkOverlap: opts.ChunkOverlap})
		if err != nil {
			return nil, err
		}
		for _, s := range sub {
			s.Metadata.ChunkIndex = idx
			s.Metadata.ChunkType = chunkTypeForSection(sec)
			s.Metadata.ChunkingStrategy = c.Strategy()
			s.Metadata.HeaderPath = sec.headerPath
			s.ID = parentDocID + "_chunk" + strconv.Itoa(idx)
			chunks = append(chunks, s)
			idx++
		}
	}

	return finalizeIndices(chunks), nil
}

func chunkTypeForSection(sec mdSection) ChunkType {
	if len(sec.headerPath) > 0 {
		return ChunkTypeHeader
	}
	return ChunkTypeText
}

// parseSections walks the document building a header-hierarchy stack, so
// every section inherits the titles of its ancestor headers.
func parseSections(text string) []mdSection {
	protected, blocks := protectAtomicBlocks(text)

	matches := headerRE.FindAllStringSubmatchIndex(protected, -1)
	if len(matches) == 0 {
		return []mdSection{{body: restoreAtomicBlocks(protected, blocks)}}
	}

	var sections []mdSection
	var stack []string // current header path, indexed by level-1

	prevEnd := 0
	for i, m := range matches {
		headerLevel := m[3] - m[2]
		headerText := protected[m[4]:m[5]]

		if m[0] > prevEnd {
			pre := protected[prevEnd:m[0]]
			if strings.TrimSpace(pre) != "" {
				sections = append(sections, mdSection{headerPath: append([]string{}, stack...), body: restoreAtomicBlocks(pre, blocks)})
			}
		}

		if headerLevel > len(stack) {
			for len(stack) < headerLevel-1 {
				stack = append(stack, "")
			}
			stack = append(stack, headerText)
		} else {
			stack = stack[:headerLevel-1]
			stack = append(stack, headerText)
		}

		end := len(protected)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := protected[m[1]:end]
		sections = append(sections, mdSection{headerPath: append([]string{}, stack...), body: restoreAtomicBlocks(body, blocks)})
		prevEnd = end
	}

	return sections
}

var atomicPlaceholderRE = regexp.MustCompile(`\x00ATOMIC(\d+)\x00`)

// protectAtomicBlocks replaces fenced code blocks with opaque placeholders
// so header-boundary scanning never looks inside them. It returns the
// rewritten text and the blocks it pulled out, which restoreAtomicBlocks
// needs to put them back.
func protectAtomicBlocks(text string) (string, []string) {
	var blocks []string
	text = fenceSpanRE.ReplaceAllStringFunc(text, func(match string) string {
		blocks = append(blocks, match)
		return "\x00ATOMIC" + strconv.Itoa(len(blocks)-1) + "\x00"
	})
	return text, blocks
}

func restoreAtomicBlocks(text string, blocks []string) string {
	return atomicPlaceholderRE.ReplaceAllStringFunc(text, func(match string) string {
		sub := atomicPlaceholderRE.FindStringSubmatch(match)
		idx := atoiSafe(sub[1])
		if idx < 0 || idx >= len(blocks) {
			return match
		}
		return blocks[idx]
	})
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return -1
		}
		n = n*10 + int(r-'0')
	}
	return n
}
