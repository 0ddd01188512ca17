package metrics

import "time"

// RecordQuery records one query's outcome and latency for a project.
func (r *Registry) RecordQuery(projectID, status string, duration time.Duration) {
	r.ProjectQueriesTotal.Inc(projectID, status)
	r.ProjectQueryDurationSeconds.Observe(duration.Seconds(), projectID)
}

// RecordCacheHit and RecordCacheMiss track a project's embedding/semantic
// cache effectiveness.
func (r *Registry) RecordCacheHit(projectID string)  { r.ProjectCacheHitsTotal.Inc(projectID) }
func (r *Registry) RecordCacheMiss(projectID string) { r.ProjectCacheMissesTotal.Inc(projectID) }

// RecordIngest records one ingest batch's outcome for a project.
func (r *Registry) RecordIngest(projectID, status string) {
	r.ProjectIngestsTotal.Inc(projectID, status)
}

// RecordError records one error of the given kind for a project.
func (r *Registry) RecordError(projectID, errorType string) {
	r.ProjectErrorsTotal.Inc(projectID, errorType)
}

// SetDocumentCount updates the live document gauge for a project.
func (r *Registry) SetDocumentCount(projectID string, count int) {
	r.ProjectDocumentsTotal.Set(float64(count), projectID)
}

// RecordAPIKeyValidation records one api-key validation attempt's result
// ("ok", "revoked", "expired", "insufficient_scope", "not_recognized").
func (r *Registry) RecordAPIKeyValidation(projectID, result string) {
	r.ProjectAPIKeyValidationsTotal.Inc(projectID, result)
}

// SetActiveAPIKeys updates the active-key gauge for a project.
func (r *Registry) SetActiveAPIKeys(projectID string, count int) {
	r.ProjectAPIKeysActive.Set(float64(count), projectID)
}

// RecordProjectCreated, RecordProjectUpdated, RecordProjectDeleted track
// project lifecycle events process-wide (unlabeled).
func (r *Registry) RecordProjectCreated() { r.ProjectCreationsTotal.Inc() }
func (r *Registry) RecordProjectUpdated() { r.ProjectUpdatesTotal.Inc() }
func (r *Registry) RecordProjectDeleted() { r.ProjectDeletionsTotal.Inc() }

// RecordChunking records one chunking run's duration, chunk count, and
// per-chunk byte sizes for the given strategy name.
func (r *Registry) RecordChunking(strategy string, duration time.Duration, chunkSizes []int) {
	r.ChunkingDurationSeconds.Observe(duration.Seconds(), strategy)
	r.ChunksCreatedTotal.Add(float64(len(chunkSizes)), strategy)
	for _, size := range chunkSizes {
		r.ChunkSizeBytes.Observe(float64(size), strategy)
	}
}

// RecordQueryExpansion records one query-expansion call's latency.
func (r *Registry) RecordQueryExpansion(duration time.Duration) {
	r.QueryExpansionDurationSeconds.Observe(duration.Seconds())
	r.QueryExpansionsTotal.Inc()
}

// RecordSemanticCacheHit and RecordSemanticCacheMiss track the semantic
// cache's effectiveness for a project; a hit also records the similarity
// score that triggered it.
func (r *Registry) RecordSemanticCacheHit(projectID string, similarity float64) {
	r.SemanticCacheHitsTotal.Inc(projectID)
	r.SemanticCacheSimilarityScores.Observe(similarity, projectID)
}

func (r *Registry) RecordSemanticCacheMiss(projectID string) {
	r.SemanticCacheMissesTotal.Inc(projectID)
}
