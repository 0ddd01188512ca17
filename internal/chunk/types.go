// Package chunk implements the five chunking strategies: recursive,
// markdown-aware, code-aware, semantic, and an auto-dispatcher that picks
// among them.
package chunk

import (
	"context"
	"strconv"
)

// ChunkType classifies the structural origin of a chunk's text.
type ChunkType string

const (
	ChunkTypeText   ChunkType = "text"
	ChunkTypeCode   ChunkType = "code"
	ChunkTypeHeader ChunkType = "header"
	ChunkTypeList   ChunkType = "list"
)

// Metadata carries the descriptive fields spec.md's data model requires on
// every chunk.
type Metadata struct {
	ChunkIndex       int       `json:"chunk_index"`
	TotalChunks      int       `json:"total_chunks"`
	ChunkType        ChunkType `json:"chunk_type"`
	ParentDocID      string    `json:"parent_doc_id"`
	ChunkingStrategy string    `json:"chunking_strategy"`
	CharCount        int       `json:"char_count"`
	WordCount        int       `json:"word_count"`
	OverlapRatio     float64   `json:"overlap_ratio,omitempty"`
	LineStart        *int      `json:"line_start,omitempty"`
	LineEnd          *int      `json:"line_end,omitempty"`
	HeaderPath       []string  `json:"header_path,omitempty"` // markdown chunker only
}

// Chunk is an immutable, retrievable unit of content produced by a
// chunker. ID is parent_doc_id + "_chunk" + index.
type Chunk struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Options bundles every chunker's parameters behind one typed record, per
// the "no kwargs bags" design rule: unused fields for a given strategy are
// simply ignored.
type Options struct {
	// Recursive / markdown-fallback / code-fallback.
	ChunkSize    int // characters
	ChunkOverlap int // characters, < ChunkSize

	// Markdown / code: size at which a section/function is split further.
	MaxChunkSize int // characters for markdown, lines for code

	// Code chunker.
	LanguageHint    string // extension hint, e.g. ".go"; heuristic used if unknown
	PreserveImports bool

	// Semantic chunker.
	SimilarityThreshold float64
	MinChunkSentences   int
	MaxChunkSentences   int
	Embed               func(ctx context.Context, text string) ([]float32, error)
}

// DefaultOptions returns reasonable defaults matching the scenarios in
// spec.md §8.
func DefaultOptions() Options {
	return Options{
		ChunkSize:           1000,
		ChunkOverlap:        200,
		MaxChunkSize:        2000,
		PreserveImports:     true,
		SimilarityThreshold: 0.5,
		MinChunkSentences:   1,
		MaxChunkSentences:   20,
	}
}

// Chunker splits a document's text into an ordered list of Chunks.
type Chunker interface {
	Chunk(ctx context.Context, parentDocID string, text string, opts Options) ([]Chunk, error)
	Strategy() string
}

// Tree represents a parsed AST, used by the code chunker.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node represents a node in a parsed AST.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point is a row/column position in source text.
type Point struct {
	Row    uint32
	Column uint32
}

// LanguageConfig describes how to recognize top-level symbols for one
// tree-sitter grammar.
type LanguageConfig struct {
	Name           string
	Extensions     []string
	FunctionTypes  []string
	ClassTypes     []string
	InterfaceTypes []string
	MethodTypes    []string
	TypeDefTypes   []string
	ConstantTypes  []string
	VariableTypes  []string
	NameField      string
}

// newChunk fills in the id and shared metadata accounting fields.
func newChunk(parentDocID string, index, total int, text, strategy string, chunkType ChunkType) Chunk {
	words := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}

	return Chunk{
		ID:   parentDocID + "_chunk" + strconv.Itoa(index),
		Text: text,
		Metadata: Metadata{
			ChunkIndex:       index,
			TotalChunks:      total,
			ChunkType:        chunkType,
			ParentDocID:      parentDocID,
			ChunkingStrategy: strategy,
			CharCount:        len([]rune(text)),
			WordCount:        words,
		},
	}
}

// finalizeIndices stamps TotalChunks across a finished slice.
func finalizeIndices(chunks []Chunk) []Chunk {
	total := len(chunks)
	for i := range chunks {
		chunks[i].Metadata.TotalChunks = total
	}
	return chunks
}
