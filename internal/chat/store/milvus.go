package store

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/codequery/internal/model"
	"github.com/kart-io/codequery/pkg/component/milvus"
)

// Field layout of a code-chunk collection. The external indexer writes the
// same fields; the chat pipeline only reads them.
var chunkOutputFields = []string{
	"chunk_id", "file_path", "chunk_type", "chunk_name",
	"start_line", "end_line", "language", "content",
}

// MilvusStore implements VectorStore on top of the Milvus client wrapper.
type MilvusStore struct {
	client *milvus.Client
}

// NewMilvusStore creates a Milvus-backed vector store.
func NewMilvusStore(client *milvus.Client) *MilvusStore {
	return &MilvusStore{client: client}
}

// EnsureCollection creates the code-chunk collection if it does not exist.
func (s *MilvusStore) EnsureCollection(ctx context.Context, config *CollectionConfig) error {
	schema := &milvus.CollectionSchema{
		Name:        config.Name,
		Description: config.Description,
		Dimension:   config.Dimension,
		MetaFields: []milvus.MetaField{
			{Name: "chunk_id", DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: "file_path", DataType: entity.FieldTypeVarChar, MaxLen: 512},
			{Name: "chunk_type", DataType: entity.FieldTypeVarChar, MaxLen: 32},
			{Name: "chunk_name", DataType: entity.FieldTypeVarChar, MaxLen: 255},
			{Name: "start_line", DataType: entity.FieldTypeInt64},
			{Name: "end_line", DataType: entity.FieldTypeInt64},
			{Name: "language", DataType: entity.FieldTypeVarChar, MaxLen: 32},
			{Name: "content", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
		},
	}
	return s.client.CreateCollection(ctx, schema)
}

// HasCollection reports whether a collection exists.
func (s *MilvusStore) HasCollection(ctx context.Context, collection string) (bool, error) {
	return s.client.HasCollection(ctx, collection)
}

// Insert writes embedded chunks into the collection. Chunks and embeddings
// must be aligned by index.
func (s *MilvusStore) Insert(ctx context.Context, collection string, chunks []model.Chunk, embeddings [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d != %d", len(chunks), len(embeddings))
	}

	metadata := map[string][]any{
		"chunk_id":   make([]any, len(chunks)),
		"file_path":  make([]any, len(chunks)),
		"chunk_type": make([]any, len(chunks)),
		"chunk_name": make([]any, len(chunks)),
		"start_line": make([]any, len(chunks)),
		"end_line":   make([]any, len(chunks)),
		"language":   make([]any, len(chunks)),
		"content":    make([]any, len(chunks)),
	}
	for i, chunk := range chunks {
		metadata["chunk_id"][i] = chunk.ID
		metadata["file_path"][i] = chunk.FilePath
		metadata["chunk_type"][i] = string(chunk.Type)
		metadata["chunk_name"][i] = chunk.Name
		metadata["start_line"][i] = int64(chunk.StartLine)
		metadata["end_line"][i] = int64(chunk.EndLine)
		metadata["language"][i] = chunk.Language
		metadata["content"][i] = chunk.Content
	}

	data := &milvus.InsertData{
		Embeddings: embeddings,
		Metadata:   metadata,
	}
	if _, err := s.client.Insert(ctx, collection, data); err != nil {
		return fmt.Errorf("failed to insert into milvus: %w", err)
	}
	return nil
}

// Search returns up to limit chunks nearest to the query embedding, ordered
// by raw similarity. The raw score is carried on Chunk.Score.
func (s *MilvusStore) Search(ctx context.Context, collection string, embedding []float32, limit int) ([]model.Chunk, error) {
	results, err := s.client.Search(ctx, collection, embedding, limit, chunkOutputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to search milvus: %w", err)
	}

	chunks := make([]model.Chunk, 0, len(results))
	for _, r := range results {
		chunk := model.Chunk{
			Score: float64(r.Score),
		}
		if v, ok := r.Metadata["chunk_id"].(string); ok {
			chunk.ID = v
		}
		if v, ok := r.Metadata["file_path"].(string); ok {
			chunk.FilePath = v
		}
		if v, ok := r.Metadata["chunk_type"].(string); ok {
			chunk.Type = model.ChunkType(v)
		}
		if v, ok := r.Metadata["chunk_name"].(string); ok {
			chunk.Name = v
		}
		if v, ok := r.Metadata["start_line"].(int64); ok {
			chunk.StartLine = int(v)
		}
		if v, ok := r.Metadata["end_line"].(int64); ok {
			chunk.EndLine = int(v)
		}
		if v, ok := r.Metadata["language"].(string); ok {
			chunk.Language = v
		}
		if v, ok := r.Metadata["content"].(string); ok {
			chunk.Content = v
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// Stats returns the number of entities in a collection.
func (s *MilvusStore) Stats(ctx context.Context, collection string) (int64, error) {
	return s.client.GetCollectionStats(ctx, collection)
}

// Close closes the Milvus connection.
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

var _ VectorStore = (*MilvusStore)(nil)
