package docrepo

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/aman-cerp/kbcore/internal/chunk"
	"github.com/aman-cerp/kbcore/internal/kberrors"
)

// persistedState is the strict-JSON-only on-disk shape. Field names are
// part of the cache-file format; don't rename without a migration.
type persistedState struct {
	Documents      map[string]Document     `json:"documents"`
	Chunks         map[string][]chunk.Chunk `json:"chunks"`
	EmbeddedChunks []string                 `json:"embedded_chunks"`
}

// Persist serializes the repository to path using an atomic write: the
// full JSON payload is written to a temp file in the same directory, then
// renamed over path, so a crash mid-write never corrupts an existing cache
// file.
func (r *Repository) Persist(path string) error {
	r.mu.RLock()
	state := persistedState{
		Documents:      make(map[string]Document, len(r.documents)),
		Chunks:         make(map[string][]chunk.Chunk, len(r.chunks)),
		EmbeddedChunks: make([]string, 0, len(r.embeddedChunks)),
	}
	for id, doc := range r.documents {
		state.Documents[id] = doc.clone()
	}
	for id, cs := range r.chunks {
		state.Chunks[id] = cloneChunks(cs)
	}
	for id := range r.embeddedChunks {
		state.EmbeddedChunks = append(state.EmbeddedChunks, id)
	}
	r.mu.RUnlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return kberrors.New(kberrors.Internal, "marshal repository state", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return kberrors.New(kberrors.Internal, "create cache directory", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return kberrors.New(kberrors.Internal, "write cache temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return kberrors.New(kberrors.Internal, "rename cache temp file", err)
	}
	return nil
}

// Load replaces the repository's contents with the strict-JSON state
// stored at path. It refuses anything that doesn't parse as the expected
// JSON structure (no pickled/binary blobs, no partial schemas silently
// accepted).
func (r *Repository) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return kberrors.New(kberrors.Internal, "read cache file", err)
	}

	var state persistedState
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&state); err != nil {
		return kberrors.New(kberrors.InvalidArgument, "cache file is not valid repository JSON", err)
	}

	for docID, chunks := range state.Chunks {
		for _, c := range chunks {
			if c.Metadata.ParentDocID != docID {
				return kberrors.New(kberrors.InvalidArgument, "cache file chunk parent_doc_id mismatch", nil).
					WithDetail("doc_id", docID).WithDetail("chunk_id", c.ID)
			}
		}
	}

	documents := make(map[string]Document, len(state.Documents))
	for id, doc := range state.Documents {
		documents[id] = doc.clone()
	}
	chunksCopy := make(map[string][]chunk.Chunk, len(state.Chunks))
	for id, cs := range state.Chunks {
		chunksCopy[id] = cloneChunks(cs)
	}
	embedded := make(map[string]struct{}, len(state.EmbeddedChunks))
	for _, id := range state.EmbeddedChunks {
		embedded[id] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents = documents
	r.chunks = chunksCopy
	r.embeddedChunks = embedded
	r.index = make(map[string]map[string]struct{})
	for docID, doc := range r.documents {
		r.indexTermsLocked(docID, doc.Content)
	}
	for docID, cs := range r.chunks {
		for _, c := range cs {
			r.indexTermsLocked(docID, c.Text)
		}
	}
	return nil
}
