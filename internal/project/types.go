// Package project implements the process-wide Project Manager: project
// CRUD, per-project backend/cache/document-repository/API-key ownership,
// and the isolation guarantees between tenants.
package project

import (
	"context"
	"time"

	"github.com/aman-cerp/kbcore/internal/store"
)

// Project is a tenant: an isolated collection of documents, embeddings,
// caches, and API keys. ID and CollectionName never change after creation.
type Project struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	EmbeddingModel string            `json:"embedding_model"`
	Dimensions     int               `json:"dimensions"`
	CollectionName string            `json:"collection_name"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

func (p Project) clone() Project {
	out := p
	if p.Metadata != nil {
		out.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Patch describes an update_project mutation; nil fields are left
// unchanged. EmbeddingModel changes are rejected when the project already
// has documents (§4.8's embedding-model-change policy).
type Patch struct {
	Name           *string
	Description    *string
	EmbeddingModel *string
	Metadata       map[string]string
}

// BackendFactory opens a fresh, initialized store.Backend for a newly
// created project's collection.
type BackendFactory func(ctx context.Context, collectionName string, dimensions int) (store.Backend, error)
