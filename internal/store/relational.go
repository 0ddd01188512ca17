package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// RelationalBackend stores records in SQLite: text and metadata in an
// FTS5 virtual table for BM25 keyword search, embeddings as packed
// little-endian float32 blobs in a companion table. There is no vector
// index extension available in pure Go, so QueryVector does a brute-force
// in-process cosine scan over the blob column; this is the documented
// stand-in for a real HNSW/IVF vector extension (e.g. sqlite-vec) a
// production relational deployment would install instead.
type RelationalBackend struct {
	mu         sync.RWMutex
	db         *sql.DB
	collection string
	dimensions int
	closed     bool
}

func NewRelationalBackend(path string) (*RelationalBackend, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &RelationalBackend{db: db}, nil
}

func (b *RelationalBackend) Initialize(ctx context.Context, collectionName string, dimensions int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	stmts := []string{
		`CREATE VIRTUAL TABLE IF NOT EXISTS kb_fts USING fts5(id UNINDEXED, text, metadata UNINDEXED)`,
		`CREATE TABLE IF NOT EXISTS kb_vectors (id TEXT PRIMARY KEY, embedding BLOB NOT NULL)`,
	}
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
	}

	b.collection = collectionName
	b.dimensions = dimensions
	return nil
}

func (b *RelationalBackend) AddDocuments(ctx context.Context, recs []Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, r := range recs {
		if len(r.Vector) != b.dimensions {
			return fmt.Errorf("store: vector has %d dimensions, collection expects %d", len(r.Vector), b.dimensions)
		}

		metaJSON, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM kb_fts WHERE id = ?`, r.ID); err != nil {
			return fmt.Errorf("delete stale fts row: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO kb_fts (id, text, metadata) VALUES (?, ?, ?)`, r.ID, r.Text, string(metaJSON)); err != nil {
			return fmt.Errorf("insert fts row: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO kb_vectors (id, embedding) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET embedding = excluded.embedding`, r.ID, encodeVector(r.Vector)); err != nil {
			return fmt.Errorf("upsert vector: %w", err)
		}
	}

	return tx.Commit()
}

func (b *RelationalBackend) QueryVector(ctx context.Context, embedding []float32, topK int) ([]Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	if len(embedding) != b.dimensions {
		return nil, fmt.Errorf("store: query vector has %d dimensions, collection expects %d", len(embedding), b.dimensions)
	}

	rows, err := b.db.QueryContext(ctx, `SELECT v.id, v.embedding, f.text, f.metadata FROM kb_vectors v JOIN kb_fts f ON f.id = v.id`)
	if err != nil {
		return nil, fmt.Errorf("scan vectors: %w", err)
	}
	defer rows.Close()

	type scored struct {
		result Result
		score  float64
	}
	var candidates []scored
	for rows.Next() {
		var id, text, metaJSON string
		var blob []byte
		if err := rows.Scan(&id, &blob, &text, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		vec := decodeVector(blob)
		sim := cosineSim(embedding, vec)
		candidates = append(candidates, scored{
			result: Result{ID: id, Text: text, Metadata: decodeMetadata(metaJSON), VecScore: sim},
			score:  sim,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = c.result
	}
	return results, nil
}

func (b *RelationalBackend) QueryKeyword(ctx context.Context, queryText string, topK int) ([]Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	if strings.TrimSpace(queryText) == "" {
		return nil, nil
	}

	rows, err := b.db.QueryContext(ctx,
		`SELECT id, text, metadata, bm25(kb_fts) AS rank FROM kb_fts WHERE kb_fts MATCH ? ORDER BY rank LIMIT ?`,
		ftsQuery(queryText), topK)
	if err != nil {
		return nil, fmt.Errorf("fts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var id, text, metaJSON string
		var rank float64
		if err := rows.Scan(&id, &text, &metaJSON, &rank); err != nil {
			return nil, fmt.Errorf("scan fts row: %w", err)
		}
		// sqlite's bm25() is smaller-is-better; invert so higher is better,
		// matching the embedded backend's score convention.
		results = append(results, Result{ID: id, Text: text, Metadata: decodeMetadata(metaJSON), BM25Score: -rank})
	}
	return results, rows.Err()
}

// QueryHybrid always returns ErrHybridUnsupported: FTS5 and the blob vector
// scan are independent query paths with no shared ranking function.
func (b *RelationalBackend) QueryHybrid(ctx context.Context, embedding []float32, queryText string, topK int) ([]Result, error) {
	return nil, ErrHybridUnsupported
}

func (b *RelationalBackend) DeleteDocuments(ctx context.Context, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kb_fts WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete fts row: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM kb_vectors WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete vector row: %w", err)
		}
	}
	return tx.Commit()
}

func (b *RelationalBackend) GetStatistics(ctx context.Context) (Statistics, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return Statistics{}, ErrClosed
	}

	var vectorCount, keywordCount int
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kb_vectors`).Scan(&vectorCount); err != nil {
		return Statistics{}, fmt.Errorf("count vectors: %w", err)
	}
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kb_fts`).Scan(&keywordCount); err != nil {
		return Statistics{}, fmt.Errorf("count fts rows: %w", err)
	}

	return Statistics{
		VectorCount:    vectorCount,
		KeywordCount:   keywordCount,
		Dimensions:     b.dimensions,
		CollectionName: b.collection,
	}, nil
}

func (b *RelationalBackend) GetHealth(ctx context.Context) (Health, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return Health{Healthy: false, Detail: "backend closed"}, nil
	}
	if err := b.db.PingContext(ctx); err != nil {
		return Health{Healthy: false, Detail: err.Error()}, nil
	}
	return Health{Healthy: true}, nil
}

func (b *RelationalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(len(v) * 4)
	for _, f := range v {
		binary.Write(buf, binary.LittleEndian, f)
	}
	return buf.Bytes()
}

func decodeVector(blob []byte) []float32 {
	n := len(blob) / 4
	v := make([]float32, n)
	reader := bytes.NewReader(blob)
	for i := 0; i < n; i++ {
		binary.Read(reader, binary.LittleEndian, &v[i])
	}
	return v
}

func decodeMetadata(metaJSON string) map[string]string {
	var m map[string]string
	_ = json.Unmarshal([]byte(metaJSON), &m)
	return m
}

// ftsQuery escapes a free-text query for FTS5's MATCH operator by quoting
// each token, so punctuation in user queries doesn't break the query parser.
func ftsQuery(queryText string) string {
	fields := strings.Fields(queryText)
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

func cosineSim(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

var _ Backend = (*RelationalBackend)(nil)
