package project

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aman-cerp/kbcore/internal/apikey"
	"github.com/aman-cerp/kbcore/internal/cache"
	"github.com/aman-cerp/kbcore/internal/docrepo"
	"github.com/aman-cerp/kbcore/internal/embed"
	"github.com/aman-cerp/kbcore/internal/kberrors"
	"github.com/aman-cerp/kbcore/internal/query"
	"github.com/aman-cerp/kbcore/internal/retrieval"
	"github.com/aman-cerp/kbcore/internal/store"
)

// QueryConfig bundles the per-project query expansion and semantic cache
// settings every entry is built with. Lexicon may be nil: the built-in
// acronym map still applies (see query.Expander).
type QueryConfig struct {
	Lexicon                query.SynonymLexicon
	SemanticCacheSize      int
	SemanticCacheTTL       time.Duration
	SemanticCacheThreshold float64
}

// EmbedderFactory returns a fresh Embedder for the named model, invoked
// once per project at creation time.
type EmbedderFactory func(modelName string) (embed.Embedder, error)

// entry is everything the manager owns for one live project. Components
// reference each other only by project id; the manager is the single
// place that holds real pointers, so deletion is one map removal away
// from releasing every resource (§9's "arena of id->resource maps").
type entry struct {
	project       Project
	backend       store.Backend
	embedder      *embed.CachedEmbedder
	docs          *docrepo.Repository
	keys          *apikey.Store
	engine        *retrieval.Engine
	expander      *query.Expander
	semanticCache *query.SemanticCache
}

// Manager is the process-wide project registry: one RWMutex guards
// project/name bookkeeping; each entry's own components (cache, docrepo,
// key store) carry their own finer-grained locks.
type Manager struct {
	mu              sync.RWMutex
	entries         map[string]*entry
	names           map[string]string // name -> id, enforces uniqueness
	backendFactory  BackendFactory
	embedderFactory EmbedderFactory
	cacheCapacity   int
	queryConfig     QueryConfig
}

// NewManager returns an empty registry. backendFactory opens a project's
// vector/keyword store; embedderFactory resolves a project's named
// embedding model to a concrete Embedder. cacheCapacity sizes each
// project's embedding cache (embed.DefaultEmbeddingCacheSize if <= 0).
// queryConfig sizes each project's query expander/semantic cache.
func NewManager(backendFactory BackendFactory, embedderFactory EmbedderFactory, cacheCapacity int, queryConfig QueryConfig) *Manager {
	return &Manager{
		entries:         make(map[string]*entry),
		names:           make(map[string]string),
		backendFactory:  backendFactory,
		embedderFactory: embedderFactory,
		cacheCapacity:   cacheCapacity,
		queryConfig:     queryConfig,
	}
}

// CreateProject validates name uniqueness, opens the project's backend
// collection, and registers a fully wired entry. On any failure after the
// name check, no partial entry is left in the registry.
func (m *Manager) CreateProject(ctx context.Context, name, description, embeddingModel string, dimensions int, metadata map[string]string) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, kberrors.New(kberrors.InvalidArgument, "project name is empty", nil)
	}
	if dimensions <= 0 {
		return Project{}, kberrors.New(kberrors.InvalidArgument, "project dimensions must be positive", nil)
	}

	m.mu.Lock()
	if _, exists := m.names[name]; exists {
		m.mu.Unlock()
		return Project{}, kberrors.New(kberrors.DuplicateName, "project name already exists", nil).WithDetail("name", name)
	}
	// Reserve the name immediately so concurrent CreateProject calls for
	// the same name can't both pass the uniqueness check.
	m.names[name] = ""
	m.mu.Unlock()

	id := uuid.NewString()
	collectionName := "kb_" + id

	embedder, err := m.embedderFactory(embeddingModel)
	if err != nil {
		m.abortReservation(name)
		return Project{}, kberrors.New(kberrors.Internal, "create embedder", err)
	}

	backend, err := m.backendFactory(ctx, collectionName, dimensions)
	if err != nil {
		m.abortReservation(name)
		return Project{}, kberrors.New(kberrors.BackendUnavailable, "open project backend", err)
	}
	if err := backend.Initialize(ctx, collectionName, dimensions); err != nil {
		_ = backend.Close()
		m.abortReservation(name)
		return Project{}, kberrors.New(kberrors.BackendUnavailable, "initialize project backend", err)
	}

	now := time.Now()
	proj := Project{
		ID:             id,
		Name:           name,
		Description:    description,
		EmbeddingModel: embeddingModel,
		Dimensions:     dimensions,
		CollectionName: collectionName,
		CreatedAt:      now,
		UpdatedAt:      now,
		Metadata:       metadata,
	}

	cacheCap := m.cacheCapacity
	if cacheCap <= 0 {
		cacheCap = embed.DefaultEmbeddingCacheSize
	}
	cachedEmbedder := embed.NewCachedEmbedder(embedder, cacheCap)

	e := &entry{
		project:  proj.clone(),
		backend:  backend,
		embedder: cachedEmbedder,
		docs:     docrepo.New(),
		keys:     apikey.NewStore(),
		engine:   retrieval.NewEngine(backend, cachedEmbedder, retrieval.DefaultConfig(), retrieval.WithClassifier(retrieval.NewPatternClassifier())),
		expander: query.NewExpander(m.queryConfig.Lexicon),
		semanticCache: query.NewSemanticCache(
			m.queryConfig.SemanticCacheSize,
			m.queryConfig.SemanticCacheTTL,
			m.queryConfig.SemanticCacheThreshold,
		),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = e
	m.names[name] = id
	return proj.clone(), nil
}

func (m *Manager) abortReservation(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.names[name] == "" {
		delete(m.names, name)
	}
}

// GetProject returns a copy of the project with the given id.
func (m *Manager) GetProject(id string) (Project, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return Project{}, false
	}
	return e.project.clone(), true
}

// ListProjects returns copies of every live project.
func (m *Manager) ListProjects() []Project {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Project, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.project.clone())
	}
	return out
}

// UpdateProject mutates the allowed fields (name, description, metadata).
// An EmbeddingModel change is rejected with Conflict when the project
// already has at least one document.
func (m *Manager) UpdateProject(id string, patch Patch) (Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return Project{}, kberrors.New(kberrors.NotFound, "project not found", nil).WithDetail("project_id", id)
	}

	if patch.Name != nil && *patch.Name != e.project.Name {
		newName := strings.TrimSpace(*patch.Name)
		if newName == "" {
			return Project{}, kberrors.New(kberrors.InvalidArgument, "project name is empty", nil)
		}
		if existingID, exists := m.names[newName]; exists && existingID != id {
			return Project{}, kberrors.New(kberrors.DuplicateName, "project name already exists", nil).WithDetail("name", newName)
		}
		delete(m.names, e.project.Name)
		m.names[newName] = id
		e.project.Name = newName
	}
	if patch.Description != nil {
		e.project.Description = *patch.Description
	}
	if patch.EmbeddingModel != nil && *patch.EmbeddingModel != e.project.EmbeddingModel {
		if e.docs.Len() > 0 {
			return Project{}, kberrors.New(kberrors.Conflict, "cannot change embedding model on a project with documents", nil).
				WithDetail("project_id", id)
		}
		e.project.EmbeddingModel = *patch.EmbeddingModel
	}
	if patch.Metadata != nil {
		merged := make(map[string]string, len(patch.Metadata))
		for k, v := range patch.Metadata {
			merged[k] = v
		}
		e.project.Metadata = merged
	}
	e.project.UpdatedAt = time.Now()
	return e.project.clone(), nil
}

// DeleteProject removes a project's registry entry, closes its backend,
// and discards its cache/docrepo/key store. Idempotent: deleting an
// already-absent id is not an error.
func (m *Manager) DeleteProject(id string) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.entries, id)
	if m.names[e.project.Name] == id {
		delete(m.names, e.project.Name)
	}
	m.mu.Unlock()

	return e.backend.Close()
}

// GetProjectCache returns the embedding-cache LRU for a project, so
// callers can inspect stats or clear it directly.
func (m *Manager) GetProjectCache(id string) (*cache.LRU[string, []float32], error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.embedder.Cache(), nil
}

// GetProjectEngine returns the retrieval engine serving a project's
// vector/keyword/hybrid queries.
func (m *Manager) GetProjectEngine(id string) (*retrieval.Engine, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.engine, nil
}

// GetProjectDocRepo returns the document repository backing a project's
// ingest bookkeeping and keyword-fallback term index.
func (m *Manager) GetProjectDocRepo(id string) (*docrepo.Repository, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.docs, nil
}

// GetProjectBackend returns the raw store.Backend for a project, e.g. for
// AddDocuments calls during ingest.
func (m *Manager) GetProjectBackend(id string) (store.Backend, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.backend, nil
}

// GetProjectEmbedder returns the cached embedder backing a project's
// retrieval engine, so a caller can embed query text itself (e.g. to key
// a semantic cache lookup before running a search).
func (m *Manager) GetProjectEmbedder(id string) (embed.Embedder, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.embedder, nil
}

// GetProjectExpander returns the query expander in front of a project's
// retrieval engine.
func (m *Manager) GetProjectExpander(id string) (*query.Expander, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.expander, nil
}

// GetProjectSemanticCache returns the semantic result cache in front of a
// project's retrieval engine.
func (m *Manager) GetProjectSemanticCache(id string) (*query.SemanticCache, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.semanticCache, nil
}

// CheckEmbeddingDimensions rejects a vector whose length does not match
// the project's configured Dimensions, so a stray cross-model embedding
// (or a provider change) can never reach the backend silently mismatched.
func (m *Manager) CheckEmbeddingDimensions(id string, vector []float32) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	if len(vector) != e.project.Dimensions {
		return kberrors.New(kberrors.InvalidArgument, "embedding dimensions do not match project configuration", nil).
			WithDetail("project_id", id).
			WithDetail("expected_dimensions", strconv.Itoa(e.project.Dimensions)).
			WithDetail("actual_dimensions", strconv.Itoa(len(vector)))
	}
	return nil
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, kberrors.New(kberrors.NotFound, "project not found", nil).WithDetail("project_id", id)
	}
	return e, nil
}

// CreateAPIKey issues a new key scoped to projectID.
func (m *Manager) CreateAPIKey(projectID, name string, scopes []apikey.Scope, expiresAt *time.Time) (string, apikey.Key, error) {
	e, err := m.lookup(projectID)
	if err != nil {
		return "", apikey.Key{}, err
	}
	return e.keys.CreateKey(projectID, name, scopes, expiresAt)
}

// ListAPIKeys returns every key (including revoked ones) for projectID,
// never including raw key material.
func (m *Manager) ListAPIKeys(projectID string) ([]apikey.Key, error) {
	e, err := m.lookup(projectID)
	if err != nil {
		return nil, err
	}
	return e.keys.List(), nil
}

// RevokeAPIKey revokes keyID within projectID.
func (m *Manager) RevokeAPIKey(projectID, keyID string) error {
	e, err := m.lookup(projectID)
	if err != nil {
		return err
	}
	return e.keys.Revoke(keyID)
}

// ValidateAPIKey scans every live project's key store for raw, returning
// the owning project id and key id on success. Distinct projects' keys
// never cross-validate: each store only matches hashes it itself holds.
func (m *Manager) ValidateAPIKey(raw string, required apikey.Scope) (projectID string, keyID string, err error) {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	for _, e := range entries {
		key, verr := e.keys.Validate(raw, required)
		if verr == nil {
			return key.ProjectID, key.KeyID, nil
		}
	}
	return "", "", kberrors.New(kberrors.Unauthorized, "api key not recognized", nil)
}

// persistedProjects is the on-disk shape of the project metadata file:
// every project in one JSON document, per §6.2 (written atomically).
type persistedProjects struct {
	Projects []Project `json:"projects"`
}

// Persist writes every project's metadata to path as a single atomic
// JSON file (write to temp file, then rename). API keys and documents
// persist independently (apikey.Store / docrepo.Repository).
func (m *Manager) Persist(path string) error {
	m.mu.RLock()
	state := persistedProjects{Projects: make([]Project, 0, len(m.entries))}
	for _, e := range m.entries {
		state.Projects = append(state.Projects, e.project.clone())
	}
	m.mu.RUnlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return kberrors.New(kberrors.Internal, "marshal project metadata", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return kberrors.New(kberrors.Internal, "create project metadata directory", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return kberrors.New(kberrors.Internal, "write project metadata temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return kberrors.New(kberrors.Internal, "rename project metadata temp file", err)
	}
	return nil
}

// LoadMetadata reads a metadata file written by Persist and returns the
// projects it describes, without re-opening any backend/cache/key store.
// Callers use this to drive CreateProject-equivalent re-registration (or
// a dedicated restore path) rather than mutating live entries directly.
func (m *Manager) LoadMetadata(path string) ([]Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, kberrors.New(kberrors.Internal, "read project metadata file", err)
	}
	var state persistedProjects
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&state); err != nil {
		return nil, kberrors.New(kberrors.InvalidArgument, "project metadata file is not valid JSON", err)
	}
	return state.Projects, nil
}
