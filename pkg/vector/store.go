package vector

import (
	"context"

	"ai-rag-be/pkg/store"
)

// Filter is a minimal keyword-equality filter pushed down to the vector
// store. Nil or empty means no filtering.
type Filter map[string]string

// Store defines the contract for the vector search backend
type Store interface {
	// Search runs a similarity query against one collection and returns
	// scored documents, best first.
	Search(ctx context.Context, collection string, vector []float32, limit int, filter Filter) ([]store.Document, error)

	// ListCollections returns the names of all known collections.
	ListCollections(ctx context.Context) ([]string, error)
}
