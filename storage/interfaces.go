package storage

import (
	"context"

	"github.com/poiesic/docqa/core"
)

// StatusUpdate carries the optional fields of a document status transition.
type StatusUpdate struct {
	ChunkCount   int
	ErrorMessage string
}

// StatusOption configures a status transition.
type StatusOption func(*StatusUpdate)

// WithChunkCount records the final chunk count alongside the transition.
// Used when a document moves to StatusCompleted.
func WithChunkCount(count int) StatusOption {
	return func(u *StatusUpdate) {
		u.ChunkCount = count
	}
}

// WithErrorMessage records a failure reason alongside the transition.
// Used when a document moves to StatusFailed.
func WithErrorMessage(message string) StatusOption {
	return func(u *StatusUpdate) {
		u.ErrorMessage = message
	}
}

// DocumentRepository provides operations for managing document records.
// Implementations must be thread-safe and support concurrent access.
type DocumentRepository interface {
	// CreateDocument persists a new document. For documents with ID=0,
	// generates a new ID from sequence and sets CreatedAt.
	// Returns the document with ID and timestamp populated.
	CreateDocument(ctx context.Context, document *core.Document) (*core.Document, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocumentsByUser retrieves all documents owned by a user,
	// ordered by creation time descending (most recent first).
	GetDocumentsByUser(ctx context.Context, userId string) ([]*core.Document, error)

	// UpdateStatus transitions a document's status. StatusCompleted sets
	// ProcessedAt and the chunk count; StatusFailed sets ProcessedAt and
	// the error message. Returns ErrNotFound if the document doesn't exist.
	UpdateStatus(ctx context.Context, id core.ID, status core.DocumentStatus, opts ...StatusOption) error

	// DeleteDocument removes a document record by ID.
	// Chunk cleanup is the VectorRepository's concern.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id core.ID) error

	// Close releases resources held by the repository.
	Close() error
}

// SearchFilter narrows a similarity search.
type SearchFilter struct {
	UserId     string  // Empty means any user
	DocumentId core.ID // Zero means any document
}

// SearchOption configures a similarity search.
type SearchOption func(*SearchFilter)

// ForUser restricts search results to chunks of documents owned by userId.
func ForUser(userId string) SearchOption {
	return func(f *SearchFilter) {
		f.UserId = userId
	}
}

// ForDocument restricts search results to chunks of a single document.
func ForDocument(id core.ID) SearchOption {
	return func(f *SearchFilter) {
		f.DocumentId = id
	}
}

// VectorRepository provides operations for managing embedded chunks.
// Implementations must be thread-safe and support concurrent access.
type VectorRepository interface {
	// InsertChunks persists chunks as a single atomic batch: either every
	// chunk becomes visible or none does. Sets CreatedAt on each chunk.
	InsertChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// FindSimilar finds chunks similar to the given vector.
	// Returns chunks with similarity >= minSimilarity, up to limit results,
	// ordered by similarity score descending. Ties keep store order.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int, opts ...SearchOption) ([]*core.SearchResult, error)

	// GetChunksByDocument retrieves all chunks of a document ordered by index.
	GetChunksByDocument(ctx context.Context, documentId core.ID) ([]*core.Chunk, error)

	// UpdateChunkVectors rewrites the embedding vectors of existing chunks.
	// Content and indices are untouched. Returns ErrNotFound if any chunk
	// doesn't exist.
	UpdateChunkVectors(ctx context.Context, chunks ...*core.Chunk) error

	// DeleteChunksByDocument removes every chunk belonging to a document.
	// Deleting a document with no chunks is not an error.
	DeleteChunksByDocument(ctx context.Context, documentId core.ID) error

	// Close releases resources held by the repository.
	Close() error
}
