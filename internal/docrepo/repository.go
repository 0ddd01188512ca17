package docrepo

import (
	"regexp"
	"strings"
	"sync"

	"github.com/aman-cerp/kbcore/internal/chunk"
	"github.com/aman-cerp/kbcore/internal/kberrors"
)

var termPattern = regexp.MustCompile(`\S+`)

// tokenize lowercases and splits text on whitespace into index terms. Only used to build
// the keyword-fallback term index; backends with their own full-text index
// don't need it.
func tokenize(text string) []string {
	matches := termPattern.FindAllString(strings.ToLower(text), -1)
	return matches
}

// Repository holds one project's documents and chunks in memory, with a
// term → doc-id index kept for keyword fallback when a project's backend
// has none of its own. All reads return deep copies; writes go through
// AddDocument, ReplaceIndex, or Delete.
type Repository struct {
	mu sync.RWMutex

	documents map[string]Document
	chunks    map[string][]chunk.Chunk // keyed by parent doc id
	index     map[string]map[string]struct{}

	// embeddedChunks tracks chunk ids already embedded and written to the
	// backend during an in-progress ingest, so a crashed or retried batch
	// does not re-embed work it already paid for.
	embeddedChunks map[string]struct{}
}

// New returns an empty Repository.
func New() *Repository {
	return &Repository{
		documents:      make(map[string]Document),
		chunks:         make(map[string][]chunk.Chunk),
		index:          make(map[string]map[string]struct{}),
		embeddedChunks: make(map[string]struct{}),
	}
}

// AddDocument stores doc and its chunks, indexing doc.Content and every
// chunk's text for keyword fallback. Every chunk must reference doc.DocID
// as its ParentDocID.
func (r *Repository) AddDocument(doc Document, chunks []chunk.Chunk) error {
	if strings.TrimSpace(doc.DocID) == "" {
		return kberrors.New(kberrors.InvalidArgument, "document id is empty", nil)
	}
	for _, c := range chunks {
		if c.Metadata.ParentDocID != doc.DocID {
			return kberrors.New(kberrors.InvalidArgument, "chunk parent_doc_id does not match document id", nil).
				WithDetail("doc_id", doc.DocID).WithDetail("chunk_id", c.ID)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.documents[doc.DocID] = doc.clone()
	r.chunks[doc.DocID] = cloneChunks(chunks)

	r.indexTermsLocked(doc.DocID, doc.Content)
	for _, c := range chunks {
		r.indexTermsLocked(doc.DocID, c.Text)
	}
	return nil
}

func (r *Repository) indexTermsLocked(docID, text string) {
	for _, term := range tokenize(text) {
		ids, ok := r.index[term]
		if !ok {
			ids = make(map[string]struct{})
			r.index[term] = ids
		}
		ids[docID] = struct{}{}
	}
}

// ReplaceIndex atomically swaps the entire document set, chunk set, and
// term index, e.g. after a bulk reindex. newChunks is keyed by parent doc
// id, mirroring the internal storage shape.
func (r *Repository) ReplaceIndex(newDocs map[string]Document, newChunks map[string][]chunk.Chunk) {
	documents := make(map[string]Document, len(newDocs))
	for id, d := range newDocs {
		documents[id] = d.clone()
	}
	chunksCopy := make(map[string][]chunk.Chunk, len(newChunks))
	index := make(map[string]map[string]struct{})
	for id, cs := range newChunks {
		chunksCopy[id] = cloneChunks(cs)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents = documents
	r.chunks = chunksCopy
	r.index = index
	for docID, doc := range r.documents {
		r.indexTermsLocked(docID, doc.Content)
	}
	for docID, cs := range r.chunks {
		for _, c := range cs {
			r.indexTermsLocked(docID, c.Text)
		}
	}
}

// Delete removes a document, its chunks, and its term-index entries.
// Returns kberrors.NotFound if docID is unknown.
func (r *Repository) Delete(docID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.documents[docID]; !ok {
		return kberrors.New(kberrors.NotFound, "document not found", nil).WithDetail("doc_id", docID)
	}
	delete(r.documents, docID)
	delete(r.chunks, docID)
	for term, ids := range r.index {
		delete(ids, docID)
		if len(ids) == 0 {
			delete(r.index, term)
		}
	}
	for chunkID := range r.embeddedChunks {
		if strings.HasPrefix(chunkID, docID+"_chunk") {
			delete(r.embeddedChunks, chunkID)
		}
	}
	return nil
}

// GetDocument returns a deep copy of docID's Document, or ok=false if it
// does not exist.
func (r *Repository) GetDocument(docID string) (Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.documents[docID]
	if !ok {
		return Document{}, false
	}
	return doc.clone(), true
}

// GetChunks returns a deep copy of docID's chunks, or ok=false if the
// document does not exist.
func (r *Repository) GetChunks(docID string) ([]chunk.Chunk, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chunks, ok := r.chunks[docID]
	if !ok {
		return nil, false
	}
	return cloneChunks(chunks), true
}

// ListDocuments returns deep copies of every stored document.
func (r *Repository) ListDocuments() []Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Document, 0, len(r.documents))
	for _, doc := range r.documents {
		out = append(out, doc.clone())
	}
	return out
}

// Len returns the number of stored documents.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.documents)
}

// Snapshot returns a shallow copy of the term → doc-id lists for exactly
// the requested terms; terms absent from the index are simply omitted.
// This is the keyword-fallback read path for a backend with no full-text
// index of its own.
func (r *Repository) Snapshot(terms []string) map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]string, len(terms))
	for _, term := range terms {
		ids, ok := r.index[strings.ToLower(term)]
		if !ok {
			continue
		}
		list := make([]string, 0, len(ids))
		for id := range ids {
			list = append(list, id)
		}
		out[term] = list
	}
	return out
}

// MarkChunkEmbedded records that chunkID has been embedded and written to
// the backend, so a resumed ingest batch can skip it.
func (r *Repository) MarkChunkEmbedded(chunkID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddedChunks[chunkID] = struct{}{}
}

// IsChunkEmbedded reports whether chunkID was already embedded in a prior
// (possibly interrupted) ingest of the same document.
func (r *Repository) IsChunkEmbedded(chunkID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.embeddedChunks[chunkID]
	return ok
}

// ClearCheckpoint forgets ingest-progress markers for docID's chunks,
// e.g. once a full ingest has committed successfully.
func (r *Repository) ClearCheckpoint(docID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for chunkID := range r.embeddedChunks {
		if strings.HasPrefix(chunkID, docID+"_chunk") {
			delete(r.embeddedChunks, chunkID)
		}
	}
}
