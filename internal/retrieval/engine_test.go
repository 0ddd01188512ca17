package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/aman-cerp/kbcore/internal/kberrors"
	"github.com/aman-cerp/kbcore/internal/store"
)

// fakeBackend is an in-memory store.Backend double for engine tests. It
// never touches the filesystem or a real index.
type fakeBackend struct {
	vecResults     []store.Result
	keywordResults []store.Result
	hybridResults  []store.Result
	hybridErr      error
	vecErr         error
	keywordErr     error
}

func (f *fakeBackend) Initialize(ctx context.Context, collectionName string, dimensions int) error {
	return nil
}

func (f *fakeBackend) AddDocuments(ctx context.Context, records []store.Record) error { return nil }

func (f *fakeBackend) QueryVector(ctx context.Context, embedding []float32, topK int) ([]store.Result, error) {
	if f.vecErr != nil {
		return nil, f.vecErr
	}
	return f.vecResults, nil
}

func (f *fakeBackend) QueryKeyword(ctx context.Context, queryText string, topK int) ([]store.Result, error) {
	if f.keywordErr != nil {
		return nil, f.keywordErr
	}
	return f.keywordResults, nil
}

func (f *fakeBackend) QueryHybrid(ctx context.Context, embedding []float32, queryText string, topK int) ([]store.Result, error) {
	if f.hybridErr != nil {
		return nil, f.hybridErr
	}
	return f.hybridResults, nil
}

func (f *fakeBackend) DeleteDocuments(ctx context.Context, ids []string) error { return nil }

func (f *fakeBackend) GetStatistics(ctx context.Context) (store.Statistics, error) {
	return store.Statistics{}, nil
}

func (f *fakeBackend) GetHealth(ctx context.Context) (store.Health, error) {
	return store.Health{Healthy: true}, nil
}

func (f *fakeBackend) Close() error { return nil }

var _ store.Backend = (*fakeBackend)(nil)

// fakeEmbedder returns a fixed-length vector keyed off the text's first
// byte, so distinct inputs get distinct (but deterministic) vectors.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, 4)
	for i, b := range []byte(text) {
		v[i%4] += float32(b)
	}
	return v, nil
}

func (e fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func (fakeEmbedder) Dimensions() int                { return 4 }
func (fakeEmbedder) ModelName() string              { return "fake" }
func (fakeEmbedder) Available(context.Context) bool { return true }
func (fakeEmbedder) Close() error                   { return nil }

func TestEngineSearchVectorRejectsEmptyQuery(t *testing.T) {
	e := NewEngine(&fakeBackend{}, fakeEmbedder{}, DefaultConfig())
	_, err := e.SearchVector(context.Background(), "   ", 5)
	if kberrors.GetKind(err) != kberrors.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestEngineSearchVectorRequiresBackend(t *testing.T) {
	e := NewEngine(nil, fakeEmbedder{}, DefaultConfig())
	_, err := e.SearchVector(context.Background(), "hello", 5)
	if kberrors.GetKind(err) != kberrors.NotReady {
		t.Fatalf("expected NotReady, got %v", err)
	}
}

func TestEngineSearchVectorReturnsBackendResults(t *testing.T) {
	backend := &fakeBackend{vecResults: []store.Result{{ID: "a"}, {ID: "b"}}}
	e := NewEngine(backend, fakeEmbedder{}, DefaultConfig())
	results, err := e.SearchVector(context.Background(), "hello", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 || results[0].ID != "a" {
		t.Fatalf("expected backend results passed through, got %v", results)
	}
}

func TestEngineSearchKeywordReturnsBackendResults(t *testing.T) {
	backend := &fakeBackend{keywordResults: []store.Result{{ID: "x"}}}
	e := NewEngine(backend, fakeEmbedder{}, DefaultConfig())
	results, err := e.SearchKeyword(context.Background(), "hello", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].ID != "x" {
		t.Fatalf("expected keyword results passed through, got %v", results)
	}
}

func TestEngineSearchHybridPrefersNativeHybrid(t *testing.T) {
	backend := &fakeBackend{
		hybridResults: []store.Result{{ID: "native"}},
		vecResults:    []store.Result{{ID: "should-not-be-used"}},
	}
	e := NewEngine(backend, fakeEmbedder{}, DefaultConfig())
	results, err := e.SearchHybrid(context.Background(), "hello", 5, DefaultWeights())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].ID != "native" {
		t.Fatalf("expected native hybrid path used, got %v", results)
	}
}

func TestEngineSearchHybridFallsBackToRRFOnUnsupported(t *testing.T) {
	backend := &fakeBackend{
		hybridErr:      store.ErrHybridUnsupported,
		vecResults:     []store.Result{{ID: "a"}, {ID: "b"}},
		keywordResults: []store.Result{{ID: "b"}, {ID: "a"}},
	}
	e := NewEngine(backend, fakeEmbedder{}, DefaultConfig())
	results, err := e.SearchHybrid(context.Background(), "hello", 5, DefaultWeights())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected both candidates fused, got %v", results)
	}
	for _, r := range results {
		if !r.InBoth {
			t.Fatalf("expected every fused result to be marked InBoth, got %+v", r)
		}
	}
}

func TestEngineSearchHybridSurfacesGenuineBackendError(t *testing.T) {
	backend := &fakeBackend{
		hybridErr: store.ErrHybridUnsupported,
		vecErr:    kberrors.New(kberrors.Internal, "boom", nil),
	}
	e := NewEngine(backend, fakeEmbedder{}, DefaultConfig())
	_, err := e.SearchHybrid(context.Background(), "hello", 5, DefaultWeights())
	if err == nil {
		t.Fatal("expected error from fan-out vector query failure")
	}
}

func TestEngineSearchWithMMRDiversifiesHybridCandidates(t *testing.T) {
	backend := &fakeBackend{
		hybridErr: store.ErrHybridUnsupported,
		vecResults: []store.Result{
			{ID: "a", Text: "aaaa"},
			{ID: "b", Text: "aaaa"}, // same text as a: near-duplicate embedding
			{ID: "c", Text: "zz"},
		},
		keywordResults: []store.Result{
			{ID: "a", Text: "aaaa"},
			{ID: "b", Text: "aaaa"},
			{ID: "c", Text: "zz"},
		},
	}
	e := NewEngine(backend, fakeEmbedder{}, DefaultConfig())
	results, err := e.SearchWithMMR(context.Background(), "hello", 2, 3, 0.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 diversified results, got %d", len(results))
	}
	seen := map[string]bool{}
	for _, r := range results {
		seen[r.ID] = true
	}
	if !seen["c"] {
		t.Fatalf("expected the distinct candidate c to be favored for diversity, got %v", results)
	}
}

func TestEngineSearchWithMMREmptyResultIsNotAnError(t *testing.T) {
	backend := &fakeBackend{hybridErr: store.ErrHybridUnsupported}
	e := NewEngine(backend, fakeEmbedder{}, DefaultConfig())
	results, err := e.SearchWithMMR(context.Background(), "hello", 2, 3, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %v", results)
	}
}

func TestNormalizeQueryTrimsWhitespace(t *testing.T) {
	out, err := normalizeQuery("  hello world  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello world" {
		t.Fatalf("expected trimmed query, got %q", out)
	}
	if strings.TrimSpace(out) != out {
		t.Fatalf("normalizeQuery should fully trim: %q", out)
	}
}
