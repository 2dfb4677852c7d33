// Package store provides the vector storage layer for the chat service.
//
// It abstracts the similarity-query collaborator behind the VectorStore
// interface and ships a Milvus-backed implementation over code-chunk
// collections.
package store
