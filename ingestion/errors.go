package ingestion

import "errors"

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrVectorRepositoryRequired is returned when a vector repository is not provided.
	ErrVectorRepositoryRequired = errors.New("vector repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrExtractorRequired is returned when a text extractor is not provided.
	ErrExtractorRequired = errors.New("extractor required")

	// ErrUnsupportedContentType is returned when an upload's content type
	// has no extractor.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrFileTooLarge is returned when an upload exceeds the size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size")

	// ErrEmptyExtraction is returned when extraction yields no text.
	ErrEmptyExtraction = errors.New("no text content could be extracted")

	// ErrNoChunks is returned when chunking yields no chunks.
	ErrNoChunks = errors.New("document produced no chunks")

	// ErrEmbeddingMismatch is returned when the embedder returns a different
	// number of vectors than texts submitted.
	ErrEmbeddingMismatch = errors.New("embedding count does not match chunk count")

	// ErrPipelineRequired is returned when a worker is built without a pipeline.
	ErrPipelineRequired = errors.New("pipeline required")

	// ErrQueueClosed is returned when enqueueing to a closed queue.
	ErrQueueClosed = errors.New("ingestion queue closed")
)
