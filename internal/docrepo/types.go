// Package docrepo owns a single project's documents and chunks: in-memory
// storage with snapshot reads, a best-effort term index for keyword
// fallback, and atomic JSON persistence to a cache file.
package docrepo

import (
	"time"

	"github.com/aman-cerp/kbcore/internal/chunk"
)

// Document is one ingested unit of content, owned by a project's
// Repository. One document produces N chunks.
type Document struct {
	DocID      string            `json:"doc_id"`
	Content    string            `json:"content"`
	SourcePath string            `json:"source_path,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	IngestedAt time.Time         `json:"ingested_at"`
}

// clone returns a deep copy so callers can't mutate repository internals
// through a returned Document.
func (d Document) clone() Document {
	out := d
	if d.Metadata != nil {
		out.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

func cloneChunks(chunks []chunk.Chunk) []chunk.Chunk {
	out := make([]chunk.Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = c
		if c.Metadata.HeaderPath != nil {
			out[i].Metadata.HeaderPath = append([]string(nil), c.Metadata.HeaderPath...)
		}
	}
	return out
}
