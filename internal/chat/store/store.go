package store

import (
	"context"

	"github.com/kart-io/codequery/internal/model"
)

// CollectionConfig describes a code-chunk collection.
type CollectionConfig struct {
	// Name is the collection name.
	Name string
	// Description is a human-readable description.
	Description string
	// Dimension is the embedding vector dimension.
	Dimension int
}

// VectorStore is the similarity-query collaborator. Implementations return
// candidates ordered by raw similarity; the caller treats the raw score as
// an opaque float to blend with its own signals.
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, config *CollectionConfig) error

	// HasCollection reports whether a collection exists.
	HasCollection(ctx context.Context, collection string) (bool, error)

	// Insert writes embedded chunks into a collection.
	Insert(ctx context.Context, collection string, chunks []model.Chunk, embeddings [][]float32) error

	// Search returns up to limit chunks nearest to the query embedding.
	Search(ctx context.Context, collection string, embedding []float32, limit int) ([]model.Chunk, error)

	// Stats returns the number of entities in a collection.
	Stats(ctx context.Context, collection string) (int64, error)

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
