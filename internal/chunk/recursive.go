package chunk

import (
	"context"
	"regexp"
)

// RecursiveChunker splits text into windows of ChunkSize characters with
// exactly ChunkOverlap characters of suffix/prefix shared between
// consecutive windows. Within a window, the cut point prefers a paragraph
// boundary, then a sentence boundary, then a word boundary, before falling
// back to a fixed-width cut. Fenced code blocks (```...```) are never cut
// inside; a window is extended to swallow a fence whole if it would
// otherwise be split.
type RecursiveChunker struct{}

func NewRecursiveChunker() *RecursiveChunker { return &RecursiveChunker{} }

func (c *RecursiveChunker) Strategy() string { return "recursive" }

var fenceSpanRE = regexp.MustCompile("(?s)```.*?```")

func (c *RecursiveChunker) Chunk(ctx context.Context, parentDocID string, text string, opts Options) ([]Chunk, error) {
	if opts.ChunkSize <= 0 {
		opts = DefaultOptions()
	}
	if opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = opts.ChunkSize / 5
	}

	runes := []rune(text)
	fences := fenceRanges(runes)

	windows := windowize(runes, opts.ChunkSize, opts.ChunkOverlap, fences)

	overlapRatio := 0.0
	if opts.ChunkSize > 0 {
		overlapRatio = float64(opts.ChunkOverlap) / float64(opts.ChunkSize)
	}

	chunks := make([]Chunk, 0, len(windows))
	for i, w := range windows {
		ch := newChunk(parentDocID, i, 0, w, c.Strategy(), ChunkTypeText)
		ch.Metadata.OverlapRatio = overlapRatio
		chunks = append(chunks, ch)
	}
	return finalizeIndices(chunks), nil
}

// runeRange is a [start,end) span measured in runes.
type runeRange struct{ start, end int }

func fenceRanges(runes []rune) []runeRange {
	byteToRune := make(map[int]int, len(runes))
	pos := 0
	s := string(runes)
	for i := range runes {
		byteToRune[pos] = i
		pos += len(string(runes[i]))
	}
	byteToRune[pos] = len(runes)

	var ranges []runeRange
	for _, loc := range fenceSpanRE.FindAllStringIndex(s, -1) {
		ranges = append(ranges, runeRange{start: byteToRune[loc[0]], end: byteToRune[loc[1]]})
	}
	return ranges
}

// extendForFence pushes end forward if [start,end) would cut through a
// fence, so the fence is always kept whole inside the window.
func extendForFence(start, end int, fences []runeRange) int {
	for _, f := range fences {
		if f.start < end && f.end > end && f.start >= start {
			if f.end > end {
				end = f.end
			}
		}
	}
	return end
}

// findCut returns the preferred cut position within (start, limit], scanning
// backward for a paragraph, then sentence, then word boundary; falls back
// to limit itself. Never returns a position inside a fence.
func findCut(runes []rune, start, limit int, fences []runeRange) int {
	insideFence := func(pos int) bool {
		for _, f := range fences {
			if pos > f.start && pos < f.end {
				return true
			}
		}
		return false
	}

	tryBoundary := func(pred func(i int) bool) int {
		for i := limit; i > start; i-- {
			if insideFence(i) {
				continue
			}
			if pred(i) {
				return i
			}
		}
		return -1
	}

	if cut := tryBoundary(func(i int) bool {
		return i >= 2 && runes[i-1] == '\n' && runes[i-2] == '\n'
	}); cut > start {
		return cut
	}
	if cut := tryBoundary(func(i int) bool {
		if i < 1 || i >= len(runes) {
			return false
		}
		r := runes[i-1]
		return (r == '.' || r == '!' || r == '?') && (i < len(runes) && runes[i] == ' ')
	}); cut > start {
		return cut
	}
	if cut := tryBoundary(func(i int) bool {
		return i < len(runes) && runes[i] == ' '
	}); cut > start {
		return cut
	}

	end := limit
	for insideFence(end) && end < len(runes) {
		end++
	}
	return end
}

func windowize(runes []rune, chunkSize, overlap int, fences []runeRange) []string {
	n := len(runes)
	if n == 0 {
		return nil
	}
	if n <= chunkSize {
		return []string{string(runes)}
	}

	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}

	var windows []string
	pos := 0
	for pos < n {
		limit := pos + chunkSize
		if limit >= n {
			windows = append(windows, string(runes[pos:n]))
			break
		}
		limit = extendForFence(pos, limit, fences)
		cut := findCut(runes, pos, limit, fences)
		if cut <= pos {
			cut = limit
		}
		windows = append(windows, string(runes[pos:cut]))

		next := cut - overlap
		if next <= pos {
			next = cut
		}
		for _, f := range fences {
			if f.start < next && next < f.end {
				next = cut
				break
			}
		}
		pos = next
	}
	return windows
}
