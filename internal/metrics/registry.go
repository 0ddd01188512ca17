// Package metrics is the in-process counters/gauges/histograms registry,
// labeled by project id and other dimensions. There is no exporter here;
// callers read Snapshot() to publish however they like (a future HTTP
// surface, a log line, a test assertion). No third-party metrics client
// is used; every family is a mutex-guarded map hand-rolled on sync.
package metrics

import (
	"strings"
	"sync"
)

const labelSep = "\x1f"

func joinLabels(labels ...string) string {
	return strings.Join(labels, labelSep)
}

func firstLabel(key string) string {
	if idx := strings.IndexByte(key, labelSep[0]); idx >= 0 {
		return key[:idx]
	}
	return key
}

// counterFamily is a monotonically increasing value per label tuple.
type counterFamily struct {
	mu     sync.Mutex
	values map[string]float64
}

func newCounterFamily() *counterFamily {
	return &counterFamily{values: make(map[string]float64)}
}

func (f *counterFamily) Inc(labels ...string) { f.Add(1, labels...) }

func (f *counterFamily) Add(delta float64, labels ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[joinLabels(labels...)] += delta
}

func (f *counterFamily) Value(labels ...string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[joinLabels(labels...)]
}

func (f *counterFamily) snapshot() map[string]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]float64, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

func (f *counterFamily) purge(projectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.values {
		if firstLabel(k) == projectID {
			delete(f.values, k)
		}
	}
}

// gaugeFamily is a set-able value per label tuple.
type gaugeFamily struct {
	mu     sync.Mutex
	values map[string]float64
}

func newGaugeFamily() *gaugeFamily {
	return &gaugeFamily{values: make(map[string]float64)}
}

func (f *gaugeFamily) Set(value float64, labels ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[joinLabels(labels...)] = value
}

func (f *gaugeFamily) Value(labels ...string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[joinLabels(labels...)]
}

func (f *gaugeFamily) snapshot() map[string]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]float64, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

func (f *gaugeFamily) purge(projectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.values {
		if firstLabel(k) == projectID {
			delete(f.values, k)
		}
	}
}

// defaultBuckets are seconds-scale histogram boundaries, matching the
// usual latency-histogram convention (5ms to 10s).
var defaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// HistogramSnapshot is a read-only view of one label tuple's observations.
type HistogramSnapshot struct {
	Count        uint64
	Sum          float64
	BucketBounds []float64
	BucketCounts []uint64
}

type histogramData struct {
	count        uint64
	sum          float64
	bucketCounts []uint64
}

type histogramFamily struct {
	mu     sync.Mutex
	bounds []float64
	data   map[string]*histogramData
}

func newHistogramFamily(bounds []float64) *histogramFamily {
	return &histogramFamily{bounds: bounds, data: make(map[string]*histogramData)}
}

func (f *histogramFamily) Observe(value float64, labels ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := joinLabels(labels...)
	d, ok := f.data[key]
	if !ok {
		d = &histogramData{bucketCounts: make([]uint64, len(f.bounds)+1)}
		f.data[key] = d
	}
	d.count++
	d.sum += value
	for i, bound := range f.bounds {
		if value <= bound {
			d.bucketCounts[i]++
		}
	}
	d.bucketCounts[len(f.bounds)]++
}

func (f *histogramFamily) snapshot(labels ...string) HistogramSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.data[joinLabels(labels...)]
	if !ok {
		return HistogramSnapshot{BucketBounds: append([]float64(nil), f.bounds...)}
	}
	return HistogramSnapshot{
		Count:        d.count,
		Sum:          d.sum,
		BucketBounds: append([]float64(nil), f.bounds...),
		BucketCounts: append([]uint64(nil), d.bucketCounts...),
	}
}

func (f *histogramFamily) snapshotAll() map[string]HistogramSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]HistogramSnapshot, len(f.data))
	for k, d := range f.data {
		out[k] = HistogramSnapshot{
			Count:        d.count,
			Sum:          d.sum,
			BucketBounds: append([]float64(nil), f.bounds...),
			BucketCounts: append([]uint64(nil), d.bucketCounts...),
		}
	}
	return out
}

func (f *histogramFamily) purge(projectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.data {
		if firstLabel(k) == projectID {
			delete(f.data, k)
		}
	}
}

// Registry holds every metric family named in the spec's metrics section.
// All methods are safe for concurrent use.
type Registry struct {
	ProjectQueriesTotal           *counterFamily   // (project_id, status)
	ProjectQueryDurationSeconds   *histogramFamily // (project_id)
	ProjectCacheHitsTotal         *counterFamily   // (project_id)
	ProjectCacheMissesTotal       *counterFamily   // (project_id)
	ProjectIngestsTotal           *counterFamily   // (project_id, status)
	ProjectErrorsTotal            *counterFamily   // (project_id, error_type)
	ProjectDocumentsTotal         *gaugeFamily     // (project_id)
	ProjectAPIKeyValidationsTotal *counterFamily   // (project_id, result)
	ProjectAPIKeysActive          *gaugeFamily     // (project_id)
	ProjectCreationsTotal         *counterFamily   // ()
	ProjectUpdatesTotal           *counterFamily   // ()
	ProjectDeletionsTotal         *counterFamily   // ()
	ChunkingDurationSeconds       *histogramFamily // (strategy)
	ChunksCreatedTotal            *counterFamily   // (strategy)
	ChunkSizeBytes                *histogramFamily // (strategy)
	QueryExpansionDurationSeconds *histogramFamily // ()
	QueryExpansionsTotal          *counterFamily   // ()
	SemanticCacheHitsTotal        *counterFamily   // (project_id)
	SemanticCacheMissesTotal      *counterFamily   // (project_id)
	SemanticCacheSimilarityScores *histogramFamily // (project_id)
}

// New returns an empty registry with every family initialized.
func New() *Registry {
	sizeBuckets := []float64{64, 128, 256, 512, 1024, 2048, 4096, 8192}
	similarityBuckets := []float64{0.5, 0.6, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 0.99}
	return &Registry{
		ProjectQueriesTotal:           newCounterFamily(),
		ProjectQueryDurationSeconds:   newHistogramFamily(defaultBuckets),
		ProjectCacheHitsTotal:         newCounterFamily(),
		ProjectCacheMissesTotal:       newCounterFamily(),
		ProjectIngestsTotal:           newCounterFamily(),
		ProjectErrorsTotal:            newCounterFamily(),
		ProjectDocumentsTotal:         newGaugeFamily(),
		ProjectAPIKeyValidationsTotal: newCounterFamily(),
		ProjectAPIKeysActive:          newGaugeFamily(),
		ProjectCreationsTotal:         newCounterFamily(),
		ProjectUpdatesTotal:           newCounterFamily(),
		ProjectDeletionsTotal:         newCounterFamily(),
		ChunkingDurationSeconds:       newHistogramFamily(defaultBuckets),
		ChunksCreatedTotal:            newCounterFamily(),
		ChunkSizeBytes:                newHistogramFamily(sizeBuckets),
		QueryExpansionDurationSeconds: newHistogramFamily(defaultBuckets),
		QueryExpansionsTotal:          newCounterFamily(),
		SemanticCacheHitsTotal:        newCounterFamily(),
		SemanticCacheMissesTotal:      newCounterFamily(),
		SemanticCacheSimilarityScores: newHistogramFamily(similarityBuckets),
	}
}

// RegistrySnapshot is a point-in-time, named view of every family in the
// registry. Label-tuple keys are the joined form produced by joinLabels;
// opaque to callers beyond display and equality checks.
type RegistrySnapshot struct {
	Counters   map[string]map[string]float64
	Gauges     map[string]map[string]float64
	Histograms map[string]map[string]HistogramSnapshot
}

// Snapshot returns a copy of every metric family, for a caller to publish
// however it likes (a log line, a CLI dump, a future HTTP exporter).
func (r *Registry) Snapshot() RegistrySnapshot {
	return RegistrySnapshot{
		Counters: map[string]map[string]float64{
			"project_queries_total":             r.ProjectQueriesTotal.snapshot(),
			"project_cache_hits_total":          r.ProjectCacheHitsTotal.snapshot(),
			"project_cache_misses_total":        r.ProjectCacheMissesTotal.snapshot(),
			"project_ingests_total":             r.ProjectIngestsTotal.snapshot(),
			"project_errors_total":              r.ProjectErrorsTotal.snapshot(),
			"project_api_key_validations_total": r.ProjectAPIKeyValidationsTotal.snapshot(),
			"project_creations_total":           r.ProjectCreationsTotal.snapshot(),
			"project_updates_total":             r.ProjectUpdatesTotal.snapshot(),
			"project_deletions_total":           r.ProjectDeletionsTotal.snapshot(),
			"chunks_created_total":              r.ChunksCreatedTotal.snapshot(),
			"query_expansions_total":            r.QueryExpansionsTotal.snapshot(),
			"semantic_cache_hits_total":         r.SemanticCacheHitsTotal.snapshot(),
			"semantic_cache_misses_total":       r.SemanticCacheMissesTotal.snapshot(),
		},
		Gauges: map[string]map[string]float64{
			"project_documents_total":  r.ProjectDocumentsTotal.snapshot(),
			"project_api_keys_active": r.ProjectAPIKeysActive.snapshot(),
		},
		Histograms: map[string]map[string]HistogramSnapshot{
			"project_query_duration_seconds":    r.ProjectQueryDurationSeconds.snapshotAll(),
			"chunking_duration_seconds":         r.ChunkingDurationSeconds.snapshotAll(),
			"chunk_size_bytes":                  r.ChunkSizeBytes.snapshotAll(),
			"query_expansion_duration_seconds":  r.QueryExpansionDurationSeconds.snapshotAll(),
			"semantic_cache_similarity_scores":  r.SemanticCacheSimilarityScores.snapshotAll(),
		},
	}
}

// ForgetProject purges every per-project label row across every family,
// bounding project_id cardinality to the set of currently live projects.
func (r *Registry) ForgetProject(projectID string) {
	r.ProjectQueriesTotal.purge(projectID)
	r.ProjectQueryDurationSeconds.purge(projectID)
	r.ProjectCacheHitsTotal.purge(projectID)
	r.ProjectCacheMissesTotal.purge(projectID)
	r.ProjectIngestsTotal.purge(projectID)
	r.ProjectErrorsTotal.purge(projectID)
	r.ProjectDocumentsTotal.purge(projectID)
	r.ProjectAPIKeyValidationsTotal.purge(projectID)
	r.ProjectAPIKeysActive.purge(projectID)
	r.SemanticCacheHitsTotal.purge(projectID)
	r.SemanticCacheMissesTotal.purge(projectID)
	r.SemanticCacheSimilarityScores.purge(projectID)
}
