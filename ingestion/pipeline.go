// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/chunk"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/extract"
	"github.com/poiesic/docqa/storage"
)

// DefaultMaxFileSize is the largest upload accepted, in bytes, unless
// overridden with WithMaxFileSize.
const DefaultMaxFileSize = 10 << 20

// allowedContentTypes lists the upload types with an extractor.
var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"text/plain":      true,
	"text/markdown":   true,
}

// Pipeline orchestrates the ingestion of uploaded documents: staging,
// queueing, extraction, chunking, embedding and persistence.
type Pipeline struct {
	documents   storage.DocumentRepository
	vectors     storage.VectorRepository
	embedder    ai.Embedder
	extractor   *extract.Extractor
	chunker     *chunk.Chunker
	queue       *Queue
	stagingDir  string
	maxFileSize int64
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithStagingDir sets the directory where uploads are staged before
// processing. Default is the system temp directory.
func WithStagingDir(dir string) Option {
	return func(p *Pipeline) error {
		if dir == "" {
			return nil
		}
		p.stagingDir = dir
		return nil
	}
}

// WithMaxFileSize sets the upload size limit in bytes.
// Default is DefaultMaxFileSize.
func WithMaxFileSize(limit int64) Option {
	return func(p *Pipeline) error {
		if limit > 0 {
			p.maxFileSize = limit
		}
		return nil
	}
}

// WithChunker replaces the default chunker.
func WithChunker(chunker *chunk.Chunker) Option {
	return func(p *Pipeline) error {
		if chunker != nil {
			p.chunker = chunker
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	documents storage.DocumentRepository,
	vectors storage.VectorRepository,
	provider ai.Provider,
	extractor *extract.Extractor,
	queue *Queue,
	opts ...Option,
) (*Pipeline, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if vectors == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if queue == nil {
		queue = NewQueue(DefaultQueueCapacity)
	}

	p := &Pipeline{
		documents:   documents,
		vectors:     vectors,
		embedder:    provider.Embedder(),
		extractor:   extractor,
		chunker:     chunk.New(),
		queue:       queue,
		stagingDir:  os.TempDir(),
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Queue returns the queue feeding the pipeline's worker.
func (p *Pipeline) Queue() *Queue {
	return p.queue
}

// MaxFileSize returns the upload size limit in bytes.
func (p *Pipeline) MaxFileSize() int64 {
	return p.maxFileSize
}

// QueueDocument validates and stages an upload, records it as Pending, and
// enqueues it for processing. The returned document carries the ID the
// caller uses to poll status.
//
// Enqueue blocks when the queue is full; cancel ctx to give up.
func (p *Pipeline) QueueDocument(ctx context.Context, userId, filename, contentType string, size int64, content io.Reader) (*core.Document, error) {
	if !allowedContentTypes[contentType] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}
	if size > p.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, size)
	}

	staged, written, err := p.stage(content)
	if err != nil {
		return nil, err
	}
	// The declared size can lie; the staged byte count is authoritative.
	if written > p.maxFileSize {
		os.Remove(staged)
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, written)
	}

	document, err := p.documents.CreateDocument(ctx, &core.Document{
		UserId:      userId,
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   written,
		Status:      core.StatusPending,
	})
	if err != nil {
		os.Remove(staged)
		return nil, err
	}

	job := Job{
		DocumentId:  document.Id,
		UserId:      userId,
		FilePath:    staged,
		ContentType: contentType,
	}
	if err := p.queue.Enqueue(ctx, job); err != nil {
		os.Remove(staged)
		return nil, err
	}

	p.logger.Info("document queued",
		"document_id", document.Id,
		"user_id", userId,
		"filename", filename,
		"size", written)
	return document, nil
}

// stage copies the upload to a uniquely named file in the staging
// directory, capping the copy just past the size limit.
func (p *Pipeline) stage(content io.Reader) (string, int64, error) {
	path := filepath.Join(p.stagingDir, "docqa-upload-"+uuid.NewString())

	f, err := os.Create(path)
	if err != nil {
		return "", 0, err
	}

	written, err := io.Copy(f, io.LimitReader(content, p.maxFileSize+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, err
	}
	return path, written, nil
}

// ProcessDocument runs the full extraction, chunking and embedding flow for
// one queued job. The staged file is removed regardless of outcome, and any
// failure is recorded on the document before being returned.
func (p *Pipeline) ProcessDocument(ctx context.Context, job Job) error {
	defer os.Remove(job.FilePath)

	if err := p.documents.UpdateStatus(ctx, job.DocumentId, core.StatusProcessing); err != nil {
		return err
	}

	err := p.process(ctx, job)
	if err != nil {
		p.logger.Error("document processing failed",
			"document_id", job.DocumentId,
			"err", err)
		if statusErr := p.documents.UpdateStatus(ctx, job.DocumentId, core.StatusFailed,
			storage.WithErrorMessage(err.Error())); statusErr != nil {
			p.logger.Error("failed to record failure status",
				"document_id", job.DocumentId,
				"err", statusErr)
		}
		return err
	}
	return nil
}

func (p *Pipeline) process(ctx context.Context, job Job) error {
	text, err := p.extractor.Extract(ctx, job.FilePath, job.ContentType)
	if err != nil {
		return err
	}
	if len(text) == 0 {
		return ErrEmptyExtraction
	}

	pieces := p.chunker.Chunk(text)
	if len(pieces) == 0 {
		return ErrNoChunks
	}

	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Content
	}

	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(pieces) {
		return fmt.Errorf("%w: %d vectors for %d chunks",
			ErrEmbeddingMismatch, len(vectors), len(pieces))
	}

	chunks := make([]*core.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &core.Chunk{
			DocumentId: job.DocumentId,
			Content:    piece.Content,
			Vector:     vectors[i],
			Index:      piece.Index,
			TokenCount: piece.TokenEstimate,
		}
	}

	if _, err := p.vectors.InsertChunks(ctx, chunks...); err != nil {
		return err
	}

	if err := p.documents.UpdateStatus(ctx, job.DocumentId, core.StatusCompleted,
		storage.WithChunkCount(len(chunks))); err != nil {
		return err
	}

	p.logger.Info("document processed",
		"document_id", job.DocumentId,
		"chunks", len(chunks))
	return nil
}
