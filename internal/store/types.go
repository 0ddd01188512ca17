// Package store defines the Backend contract a knowledge base
// collection is built on, and ships two reference implementations: an
// embedded, single-process backend (coder/hnsw + bleve) and a relational
// backend (SQLite FTS5 with blob-stored vectors).
package store

import (
	"context"
	"errors"
	"time"
)

// Record is a unit of content to be indexed: its embedding, its text, and
// whatever metadata the caller wants returned alongside it on a hit.
type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// Result is a single hit from any of the query operations. VecScore and
// BM25Score are populated by the methods that produced them and left at
// their zero value otherwise.
type Result struct {
	ID           string
	Text         string
	Metadata     map[string]string
	VecScore     float64
	BM25Score    float64
	MatchedTerms []string
}

// Statistics summarizes a backend's current content for health/monitoring.
type Statistics struct {
	VectorCount    int
	KeywordCount   int
	Dimensions     int
	CollectionName string
}

// Health reports backend liveness for the heartbeat worker.
type Health struct {
	Healthy   bool
	Detail    string
	CheckedAt time.Time
}

// ErrHybridUnsupported is returned by QueryHybrid when a backend has no
// native fused query path; callers fall back to running QueryVector and
// QueryKeyword separately and fusing client-side.
var ErrHybridUnsupported = errors.New("store: backend does not support native hybrid query")

// ErrNotInitialized is returned by EmbeddedBackend's add, query, delete
// and statistics operations when Initialize has not been called.
// RelationalBackend does not return it.
var ErrNotInitialized = errors.New("store: backend not initialized")

// ErrClosed is returned by any operation performed after Close.
var ErrClosed = errors.New("store: backend closed")

// Backend is the contract every vector/keyword storage implementation
// fulfills. A project owns exactly one Backend instance per collection.
type Backend interface {
	// Initialize prepares the backend for a collection with the given
	// embedding dimensionality. Calling Initialize more than once with the
	// same collection name and dimensions is a no-op.
	Initialize(ctx context.Context, collectionName string, dimensions int) error

	// AddDocuments upserts records into both the vector and keyword
	// indices. Re-adding an existing ID replaces it.
	AddDocuments(ctx context.Context, records []Record) error

	// QueryVector returns the topK nearest records to embedding by cosine
	// similarity, highest similarity first.
	QueryVector(ctx context.Context, embedding []float32, topK int) ([]Result, error)

	// QueryKeyword returns the topK best BM25 matches for query text.
	QueryKeyword(ctx context.Context, queryText string, topK int) ([]Result, error)

	// QueryHybrid returns a backend-native fused ranking, if one exists.
	// Returns ErrHybridUnsupported when it does not, so callers can fall
	// back to RRF fusion over QueryVector/QueryKeyword results.
	QueryHybrid(ctx context.Context, embedding []float32, queryText string, topK int) ([]Result, error)

	// DeleteDocuments removes records by ID from both indices.
	DeleteDocuments(ctx context.Context, ids []string) error

	// GetStatistics reports current index sizes.
	GetStatistics(ctx context.Context) (Statistics, error)

	// GetHealth reports backend liveness.
	GetHealth(ctx context.Context) (Health, error)

	// Close releases backend resources. Safe to call multiple times.
	Close() error
}
