package project

import (
	"context"
	"testing"

	"github.com/aman-cerp/kbcore/internal/apikey"
	"github.com/aman-cerp/kbcore/internal/docrepo"
	"github.com/aman-cerp/kbcore/internal/embed"
	"github.com/aman-cerp/kbcore/internal/kberrors"
	"github.com/aman-cerp/kbcore/internal/store"
)

// fakeBackend is the minimal store.Backend double needed for manager
// tests: it records added records and answers keyword queries by exact
// substring match, enough to prove cross-project isolation.
type fakeBackend struct {
	records []store.Record
}

func (f *fakeBackend) Initialize(ctx context.Context, collection string, dimensions int) error {
	return nil
}

func (f *fakeBackend) AddDocuments(ctx context.Context, records []store.Record) error {
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeBackend) QueryVector(ctx context.Context, vector []float32, topK int) ([]store.Result, error) {
	return nil, nil
}

func (f *fakeBackend) QueryKeyword(ctx context.Context, query string, topK int) ([]store.Result, error) {
	var out []store.Result
	for _, r := range f.records {
		if contains(r.Text, query) {
			out = append(out, store.Result{ID: r.ID, Text: r.Text, BM25Score: 1})
		}
	}
	return out, nil
}

func (f *fakeBackend) QueryHybrid(ctx context.Context, vector []float32, query string, topK int) ([]store.Result, error) {
	return nil, store.ErrHybridUnsupported
}

func (f *fakeBackend) DeleteDocuments(ctx context.Context, ids []string) error { return nil }

func (f *fakeBackend) GetStatistics(ctx context.Context) (store.Statistics, error) {
	return store.Statistics{VectorCount: len(f.records), KeywordCount: len(f.records)}, nil
}

func (f *fakeBackend) GetHealth(ctx context.Context) (store.Health, error) {
	return store.Health{Healthy: true}, nil
}

func (f *fakeBackend) Close() error { return nil }

var _ store.Backend = (*fakeBackend)(nil)

func contains(haystack, needle string) bool {
	return len(needle) == 0 || (len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0)
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, f.dims)
	for i := range vec {
		vec[i] = float32(len(text))
	}
	return vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := f.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int                  { return f.dims }
func (f *fakeEmbedder) ModelName() string                { return "fake" }
func (f *fakeEmbedder) Available(ctx context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                     { return nil }

var _ embed.Embedder = (*fakeEmbedder)(nil)

func testManager() *Manager {
	backendFactory := func(ctx context.Context, collectionName string, dimensions int) (store.Backend, error) {
		return &fakeBackend{}, nil
	}
	embedderFactory := func(modelName string) (embed.Embedder, error) {
		return &fakeEmbedder{dims: 4}, nil
	}
	return NewManager(backendFactory, embedderFactory, 10, QueryConfig{SemanticCacheSize: 100, SemanticCacheThreshold: 0.9})
}

func TestCreateProjectRejectsDuplicateName(t *testing.T) {
	m := testManager()
	ctx := context.Background()

	if _, err := m.CreateProject(ctx, "docs", "", "fake-model", 4, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.CreateProject(ctx, "docs", "", "fake-model", 4, nil); kberrors.GetKind(err) != kberrors.DuplicateName {
		t.Fatalf("expected DuplicateName, got %v", err)
	}
}

func TestCreateProjectDerivesCollectionName(t *testing.T) {
	m := testManager()
	proj, err := m.CreateProject(context.Background(), "docs", "", "fake-model", 4, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proj.CollectionName != "kb_"+proj.ID {
		t.Fatalf("expected derived collection name, got %q", proj.CollectionName)
	}
}

func TestUpdateProjectRejectsEmbeddingModelChangeWithDocuments(t *testing.T) {
	m := testManager()
	proj, err := m.CreateProject(context.Background(), "docs", "", "fake-model", 4, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	repo, err := m.GetProjectDocRepo(proj.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.AddDocument(docrepo.Document{DocID: "d1", Content: "hello world"}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	newModel := "other-model"
	_, err = m.UpdateProject(proj.ID, Patch{EmbeddingModel: &newModel})
	if kberrors.GetKind(err) != kberrors.Conflict {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func TestUpdateProjectAllowsEmbeddingModelChangeWithoutDocuments(t *testing.T) {
	m := testManager()
	proj, err := m.CreateProject(context.Background(), "docs", "", "fake-model", 4, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	newModel := "other-model"
	updated, err := m.UpdateProject(proj.ID, Patch{EmbeddingModel: &newModel})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.EmbeddingModel != newModel {
		t.Fatalf("expected embedding model updated, got %q", updated.EmbeddingModel)
	}
}

func TestDeleteProjectIsIdempotent(t *testing.T) {
	m := testManager()
	proj, _ := m.CreateProject(context.Background(), "docs", "", "fake-model", 4, nil)

	if err := m.DeleteProject(proj.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.DeleteProject(proj.ID); err != nil {
		t.Fatalf("expected idempotent delete, got %v", err)
	}
	if _, ok := m.GetProject(proj.ID); ok {
		t.Fatalf("expected project to be gone")
	}
}

func TestDeleteProjectFreesNameForReuse(t *testing.T) {
	m := testManager()
	proj, _ := m.CreateProject(context.Background(), "docs", "", "fake-model", 4, nil)
	if err := m.DeleteProject(proj.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.CreateProject(context.Background(), "docs", "", "fake-model", 4, nil); err != nil {
		t.Fatalf("expected name to be reusable after delete: %v", err)
	}
}

func TestCrossProjectDocumentsAreUnreachable(t *testing.T) {
	m := testManager()
	ctx := context.Background()
	p1, _ := m.CreateProject(ctx, "p1", "", "fake-model", 4, nil)
	p2, _ := m.CreateProject(ctx, "p2", "", "fake-model", 4, nil)

	b1, err := m.GetProjectBackend(p1.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	const sentinel = "zzz-unique-sentinel-zzz"
	if err := b1.AddDocuments(ctx, []store.Record{{ID: "d1", Text: sentinel}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b2, err := m.GetProjectBackend(p2.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	results, err := b2.QueryKeyword(ctx, sentinel, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected zero cross-project results, got %d", len(results))
	}

	results, err = b1.QueryKeyword(ctx, sentinel, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected the originating project to find its own document")
	}
}

func TestProjectCachesAreDisjoint(t *testing.T) {
	m := testManager()
	ctx := context.Background()
	p1, _ := m.CreateProject(ctx, "p1", "", "fake-model", 4, nil)
	p2, _ := m.CreateProject(ctx, "p2", "", "fake-model", 4, nil)

	c1, err := m.GetProjectCache(p1.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c2, err := m.GetProjectCache(p2.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c1 == c2 {
		t.Fatalf("expected distinct caches per project")
	}
}

func TestAPIKeysDoNotCrossValidateAcrossProjects(t *testing.T) {
	m := testManager()
	ctx := context.Background()
	p1, _ := m.CreateProject(ctx, "p1", "", "fake-model", 4, nil)
	p2, _ := m.CreateProject(ctx, "p2", "", "fake-model", 4, nil)

	raw, _, err := m.CreateAPIKey(p1.ID, "ci", []apikey.Scope{apikey.ScopeRead}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	projectID, _, err := m.ValidateAPIKey(raw, apikey.ScopeRead)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if projectID != p1.ID {
		t.Fatalf("expected key to validate against its own project, got %q", projectID)
	}

	keys, err := m.ListAPIKeys(p2.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected project 2 to have no keys of its own")
	}
}

func TestValidateAPIKeyRejectsUnrecognizedRaw(t *testing.T) {
	m := testManager()
	if _, _, err := m.ValidateAPIKey("kb_not-a-real-key", apikey.ScopeRead); kberrors.GetKind(err) != kberrors.Unauthorized {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func TestCheckEmbeddingDimensionsRejectsMismatch(t *testing.T) {
	m := testManager()
	proj, _ := m.CreateProject(context.Background(), "docs", "", "fake-model", 4, nil)

	if err := m.CheckEmbeddingDimensions(proj.ID, make([]float32, 4)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.CheckEmbeddingDimensions(proj.ID, make([]float32, 8)); kberrors.GetKind(err) != kberrors.InvalidArgument {
		t.Fatalf("expected InvalidArgument for dimension mismatch, got %v", err)
	}
}

func TestGetProjectEngineReturnsWorkingEngine(t *testing.T) {
	m := testManager()
	proj, _ := m.CreateProject(context.Background(), "docs", "", "fake-model", 4, nil)
	engine, err := m.GetProjectEngine(proj.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine == nil {
		t.Fatalf("expected non-nil engine")
	}
}

func TestListProjectsReturnsIndependentCopies(t *testing.T) {
	m := testManager()
	ctx := context.Background()
	_, _ = m.CreateProject(ctx, "p1", "", "fake-model", 4, nil)
	_, _ = m.CreateProject(ctx, "p2", "", "fake-model", 4, nil)

	projects := m.ListProjects()
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(projects))
	}

	projects[0].Name = "mutated"
	if got, _ := m.GetProject(projects[0].ID); got.Name == "mutated" {
		t.Fatalf("expected ListProjects to return copies, registry entry was mutated")
	}
}
