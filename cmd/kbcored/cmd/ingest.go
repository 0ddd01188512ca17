package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aman-cerp/kbcore/internal/chunk"
	"github.com/aman-cerp/kbcore/internal/docrepo"
	"github.com/aman-cerp/kbcore/internal/ratelimit"
	"github.com/aman-cerp/kbcore/internal/store"
)

func newIngestCmd() *cobra.Command {
	var strategy string
	var chunkSize, chunkOverlap int

	cmd := &cobra.Command{
		Use:   "ingest <project-id> <file>",
		Short: "Chunk, embed, and index a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args[0], args[1], strategy, chunkSize, chunkOverlap)
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "", "Chunking strategy override: auto, recursive, markdown, code, semantic")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Chunk size in characters (default from config)")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "Chunk overlap in characters (default from config)")
	return cmd
}

func runIngest(cmd *cobra.Command, projectID, path, strategy string, chunkSize, chunkOverlap int) error {
	app := currentApp
	if err := app.limiter.Allow(ratelimit.OpIngest, projectID); err != nil {
		return err
	}

	proj, ok := app.manager.GetProject(projectID)
	if !ok {
		return fmt.Errorf("project %q not found", projectID)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		app.registry.RecordIngest(projectID, "error")
		app.registry.RecordError(projectID, "read_document")
		return fmt.Errorf("read document: %w", err)
	}

	opts := chunk.DefaultOptions()
	if chunkSize > 0 {
		opts.ChunkSize = chunkSize
	}
	if chunkOverlap > 0 {
		opts.ChunkOverlap = chunkOverlap
	}
	opts.LanguageHint = filepath.Ext(path)

	chunker := resolveChunker(strategy)
	docID := generateDocID(projectID, path)

	ctx := cmd.Context()
	chunkStart := time.Now()
	chunks, err := chunker.Chunk(ctx, docID, string(content), opts)
	if err != nil {
		app.registry.RecordIngest(projectID, "error")
		app.registry.RecordError(projectID, "chunk_document")
		return fmt.Errorf("chunk document: %w", err)
	}
	sizes := make([]int, len(chunks))
	for i, c := range chunks {
		sizes[i] = len(c.Text)
	}
	app.registry.RecordChunking(chunker.Strategy(), time.Since(chunkStart), sizes)

	embedder, err := app.manager.GetProjectEmbedder(projectID)
	if err != nil {
		return err
	}
	backend, err := app.manager.GetProjectBackend(projectID)
	if err != nil {
		return err
	}
	docs, err := app.manager.GetProjectDocRepo(projectID)
	if err != nil {
		return err
	}

	resumed := 0
	for _, c := range chunks {
		if docs.IsChunkEmbedded(c.ID) {
			resumed++
			continue
		}

		vector, err := embedder.Embed(ctx, c.Text)
		if err != nil {
			app.registry.RecordIngest(projectID, "error")
			app.registry.RecordError(projectID, "embed_chunks")
			return fmt.Errorf("embed chunk %s: %w", c.ID, err)
		}
		if err := app.manager.CheckEmbeddingDimensions(projectID, vector); err != nil {
			app.registry.RecordIngest(projectID, "error")
			return err
		}

		record := store.Record{ID: c.ID, Vector: vector, Text: c.Text, Metadata: chunkMetadataMap(c)}
		if err := backend.AddDocuments(ctx, []store.Record{record}); err != nil {
			app.registry.RecordIngest(projectID, "error")
			app.registry.RecordError(projectID, "add_documents")
			return fmt.Errorf("add document chunk %s: %w", c.ID, err)
		}
		docs.MarkChunkEmbedded(c.ID)
	}
	if resumed > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "resumed ingest: skipped %d already-embedded chunks\n", resumed)
	}

	doc := docrepo.Document{
		DocID:      docID,
		Content:    string(content),
		SourcePath: path,
		IngestedAt: time.Now(),
	}
	if err := docs.AddDocument(doc, chunks); err != nil {
		app.registry.RecordIngest(projectID, "error")
		return fmt.Errorf("record document: %w", err)
	}
	docs.ClearCheckpoint(docID)

	app.registry.RecordIngest(projectID, "ok")
	app.registry.SetDocumentCount(projectID, docs.Len())

	fmt.Fprintf(cmd.OutOrStdout(), "ingested %s into %q as document %s (%d chunks)\n", path, proj.Name, docID, len(chunks))
	return nil
}

// generateDocID derives a stable document id from the owning project and
// source path, so retrying a crashed ingest of the same file reuses the
// same chunk ids and can resume from Repository's embed checkpoint instead
// of starting over.
func generateDocID(projectID, path string) string {
	sum := sha256.Sum256([]byte(projectID + ":" + path))
	return hex.EncodeToString(sum[:])[:16]
}

func resolveChunker(strategy string) chunk.Chunker {
	switch strategy {
	case "recursive":
		return chunk.NewRecursiveChunker()
	case "markdown":
		return chunk.NewMarkdownChunker()
	case "code":
		return chunk.NewCodeChunker()
	case "semantic":
		return chunk.NewSemanticChunker()
	default:
		return chunk.NewAutoChunker()
	}
}

// chunkMetadataMap flattens a chunk's structured metadata into the flat
// string map a store.Record carries.
func chunkMetadataMap(c chunk.Chunk) map[string]string {
	m := map[string]string{
		"parent_doc_id":     c.Metadata.ParentDocID,
		"chunk_index":       strconv.Itoa(c.Metadata.ChunkIndex),
		"total_chunks":      strconv.Itoa(c.Metadata.TotalChunks),
		"chunk_type":        string(c.Metadata.ChunkType),
		"chunking_strategy": c.Metadata.ChunkingStrategy,
	}
	if len(c.Metadata.HeaderPath) > 0 {
		m["header_path"] = strings.Join(c.Metadata.HeaderPath, "/")
	}
	return m
}
