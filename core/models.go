package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Document IDs come from database sequences; chunk IDs are derived
// deterministically from their content.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// Identical content always produces the identical ID.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DocumentStatus tracks a document through its ingestion lifecycle.
type DocumentStatus int

const (
	// StatusPending means the document is uploaded but not yet picked up by a worker.
	StatusPending DocumentStatus = iota + 1
	// StatusProcessing means a worker is currently ingesting the document.
	StatusProcessing
	// StatusCompleted means all chunks are embedded and persisted.
	StatusCompleted
	// StatusFailed means ingestion failed; ErrorMessage holds the reason.
	StatusFailed
)

// String returns the lowercase name of the status.
func (s DocumentStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Document represents an uploaded file and its ingestion state.
// Created at upload time with StatusPending; mutated only by the worker
// that processes its ingestion job.
type Document struct {
	Id           ID
	UserId       string
	Filename     string
	ContentType  string
	SizeBytes    int64
	ChunkCount   int
	Status       DocumentStatus
	ErrorMessage string
	CreatedAt    time.Time
	ProcessedAt  time.Time // Zero until ingestion completes or fails
}

// Chunk is a bounded span of a document's extracted text, embedded as one
// vector. Immutable once created; deleted only via cascading document deletion.
type Chunk struct {
	Id         ID
	DocumentId ID
	Content    string
	Vector     []float32 // Embedding vector for semantic search
	Index      int       // Zero-based position within the document
	TokenCount int       // Estimated, not exact
	CreatedAt  time.Time
}

// ChunkID derives the deterministic ID for a chunk from its owning document,
// its position, and its content.
func ChunkID(documentId ID, index int, content string) ID {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf, uint64(documentId))
	binary.LittleEndian.PutUint64(buf[8:], uint64(index))
	return IDFromContent(string(buf) + content)
}

// SearchResult is a chunk match from vector similarity search.
// Produced fresh per query, never stored.
type SearchResult struct {
	ChunkId    ID
	DocumentId ID
	Content    string
	Score      float32
	Filename   string // Owning document's filename, for citation
}
