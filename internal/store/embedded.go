package store

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/coder/hnsw"
)

// bleveDoc is the document shape indexed into bleve's full-text index.
type bleveDoc struct {
	Text string `json:"text"`
}

// EmbeddedBackend is a single-process Backend combining a pure-Go HNSW
// graph (github.com/coder/hnsw) for vector search with a bleve full-text
// index for BM25 keyword search. It has no native hybrid query path;
// QueryHybrid always returns ErrHybridUnsupported.
type EmbeddedBackend struct {
	mu sync.RWMutex

	collection string
	dimensions int

	graph  *hnsw.Graph[uint64]
	idMap  map[string]uint64
	keyMap map[uint64]string
	nextID uint64

	keyword bleve.Index
	records map[string]Record

	closed bool
}

func NewEmbeddedBackend() *EmbeddedBackend {
	return &EmbeddedBackend{
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		records: make(map[string]Record),
	}
}

func (b *EmbeddedBackend) Initialize(ctx context.Context, collectionName string, dimensions int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.graph != nil {
		return nil
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return fmt.Errorf("create keyword index: %w", err)
	}

	b.collection = collectionName
	b.dimensions = dimensions
	b.graph = graph
	b.keyword = idx
	return nil
}

func (b *EmbeddedBackend) AddDocuments(ctx context.Context, recs []Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.graph == nil {
		return ErrNotInitialized
	}
	if b.closed {
		return ErrClosed
	}

	batch := b.keyword.NewBatch()
	for _, r := range recs {
		if len(r.Vector) != b.dimensions {
			return fmt.Errorf("store: vector has %d dimensions, collection expects %d", len(r.Vector), b.dimensions)
		}

		if existingKey, ok := b.idMap[r.ID]; ok {
			delete(b.keyMap, existingKey)
			delete(b.idMap, r.ID)
		}

		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		normalizeInPlace(vec)

		key := b.nextID
		b.nextID++
		b.graph.Add(hnsw.MakeNode(key, vec))
		b.idMap[r.ID] = key
		b.keyMap[key] = r.ID
		b.records[r.ID] = r

		if err := batch.Index(r.ID, bleveDoc{Text: r.Text}); err != nil {
			return fmt.Errorf("index %s for keyword search: %w", r.ID, err)
		}
	}

	if err := b.keyword.Batch(batch); err != nil {
		return fmt.Errorf("keyword batch: %w", err)
	}
	return nil
}

func (b *EmbeddedBackend) QueryVector(ctx context.Context, embedding []float32, topK int) ([]Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.graph == nil {
		return nil, ErrNotInitialized
	}
	if b.closed {
		return nil, ErrClosed
	}
	if len(embedding) != b.dimensions {
		return nil, fmt.Errorf("store: query vector has %d dimensions, collection expects %d", len(embedding), b.dimensions)
	}
	if b.graph.Len() == 0 {
		return nil, nil
	}

	q := make([]float32, len(embedding))
	copy(q, embedding)
	normalizeInPlace(q)

	nodes := b.graph.Search(q, topK)
	results := make([]Result, 0, len(nodes))
	for _, node := range nodes {
		id, ok := b.keyMap[node.Key]
		if !ok {
			continue
		}
		distance := b.graph.Distance(q, node.Value)
		rec := b.records[id]
		results = append(results, Result{
			ID:       id,
			Text:     rec.Text,
			Metadata: rec.Metadata,
			VecScore: 1 - distance,
		})
	}
	return results, nil
}

func (b *EmbeddedBackend) QueryKeyword(ctx context.Context, queryText string, topK int) ([]Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.graph == nil {
		return nil, ErrNotInitialized
	}
	if b.closed {
		return nil, ErrClosed
	}
	if strings.TrimSpace(queryText) == "" {
		return nil, nil
	}

	match := bleve.NewMatchQuery(queryText)
	match.SetField("text")
	req := bleve.NewSearchRequest(match)
	req.Size = topK
	req.IncludeLocations = true

	searchResult, err := b.keyword.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	results := make([]Result, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		rec := b.records[hit.ID]
		results = append(results, Result{
			ID:           hit.ID,
			Text:         rec.Text,
			Metadata:     rec.Metadata,
			BM25Score:    hit.Score,
			MatchedTerms: matchedTerms(hit),
		})
	}
	return results, nil
}

// QueryHybrid always returns ErrHybridUnsupported: the embedded backend has
// no fused index, so the retrieval engine falls back to RRF over
// QueryVector and QueryKeyword.
func (b *EmbeddedBackend) QueryHybrid(ctx context.Context, embedding []float32, queryText string, topK int) ([]Result, error) {
	return nil, ErrHybridUnsupported
}

func (b *EmbeddedBackend) DeleteDocuments(ctx context.Context, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.graph == nil {
		return ErrNotInitialized
	}
	if b.closed {
		return ErrClosed
	}

	batch := b.keyword.NewBatch()
	for _, id := range ids {
		if key, ok := b.idMap[id]; ok {
			delete(b.keyMap, key)
			delete(b.idMap, id)
			delete(b.records, id)
		}
		batch.Delete(id)
	}
	return b.keyword.Batch(batch)
}

func (b *EmbeddedBackend) GetStatistics(ctx context.Context) (Statistics, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.graph == nil {
		return Statistics{}, ErrNotInitialized
	}

	docCount, _ := b.keyword.DocCount()
	return Statistics{
		VectorCount:    len(b.idMap),
		KeywordCount:   int(docCount),
		Dimensions:     b.dimensions,
		CollectionName: b.collection,
	}, nil
}

func (b *EmbeddedBackend) GetHealth(ctx context.Context) (Health, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return Health{Healthy: false, Detail: "backend closed"}, nil
	}
	if b.graph == nil {
		return Health{Healthy: false, Detail: "backend not initialized"}, nil
	}
	return Health{Healthy: true}, nil
}

func (b *EmbeddedBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.keyword != nil {
		return b.keyword.Close()
	}
	return nil
}

func matchedTerms(hit *search.DocumentMatch) []string {
	seen := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field != "text" {
			continue
		}
		for term := range locations {
			seen[term] = struct{}{}
		}
	}
	terms := make([]string, 0, len(seen))
	for t := range seen {
		terms = append(terms, t)
	}
	return terms
}

func normalizeInPlace(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
}

var _ Backend = (*EmbeddedBackend)(nil)
