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


// Package docqa wires the storage, AI and pipeline components into one
// system handle for embedding in applications and the CLI.
package docqa

import (
	"context"
	"io"
	"log/slog"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/ai/openai"
	"github.com/poiesic/docqa/chunk"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/extract"
	"github.com/poiesic/docqa/ingestion"
	"github.com/poiesic/docqa/rag"
	"github.com/poiesic/docqa/reembed"
	"github.com/poiesic/docqa/storage"
	"github.com/poiesic/docqa/storage/badger"
)

// System aggregates the repositories and AI provider behind one handle.
type System struct {
	backend      *badger.Backend
	documentRepo storage.DocumentRepository
	vectorRepo   storage.VectorRepository
	provider     ai.Provider
	logger       *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	aiConfig *ai.Config
	provider ai.Provider
	inMemory bool
}

// WithAIConfig sets the AI service configuration.
func WithAIConfig(config *ai.Config) SystemOption {
	return func(o *systemOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithProvider injects a pre-built AI provider, bypassing the OpenAI one.
// Used by tests.
func WithProvider(provider ai.Provider) SystemOption {
	return func(o *systemOptions) {
		o.provider = provider
	}
}

// WithInMemoryStorage keeps all data in memory. Used by tests.
func WithInMemoryStorage() SystemOption {
	return func(o *systemOptions) {
		o.inMemory = true
	}
}

// NewSystem opens the database at filePath and builds the service stack.
func NewSystem(filePath string, opts ...SystemOption) (*System, error) {
	// Apply options
	options := &systemOptions{
		aiConfig: ai.DefaultConfig(), // Default if not provided
	}
	for _, opt := range opts {
		opt(options)
	}

	// Open backend
	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	// Create document repository
	documentRepo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	// Create vector repository
	vectorRepo, err := badger.NewVectorRepository(backend)
	if err != nil {
		documentRepo.Close()
		backend.Close()
		return nil, err
	}

	// Create AI provider with configured settings
	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			vectorRepo.Close()
			documentRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	return &System{
		backend:      backend,
		documentRepo: documentRepo,
		vectorRepo:   vectorRepo,
		provider:     provider,
		logger:       slog.Default(),
	}, nil
}

// Close releases the AI provider, repositories and backend.
func (s *System) Close() error {
	// Close AI provider first
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}

	// Close repositories
	if err := s.vectorRepo.Close(); err != nil {
		s.logger.Error("error closing vector repository", "err", err)
		return err
	}
	if err := s.documentRepo.Close(); err != nil {
		s.logger.Error("error closing document repository", "err", err)
		return err
	}

	// Close backend
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (s *System) DocumentRepository() storage.DocumentRepository {
	return s.documentRepo
}

func (s *System) VectorRepository() storage.VectorRepository {
	return s.vectorRepo
}

func (s *System) Provider() ai.Provider {
	return s.provider
}

// NewIngestionPipeline builds an ingestion pipeline over this system's
// repositories. The chunker and extractor are constructed here so every
// entry point chunks identically.
func (s *System) NewIngestionPipeline(chunker *chunk.Chunker, queue *ingestion.Queue, opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	opts = append([]ingestion.Option{ingestion.WithChunker(chunker)}, opts...)
	return ingestion.NewPipeline(s.documentRepo, s.vectorRepo, s.provider,
		extract.New(), queue, opts...)
}

// NewAnswerService builds the question answering service.
func (s *System) NewAnswerService(opts ...rag.Option) (*rag.Service, error) {
	return rag.NewService(s.vectorRepo, s.provider, opts...)
}

// NewReembedder builds a chunk reembedder writing progress to the given
// writer.
func (s *System) NewReembedder(config *reembed.Config, progress io.Writer) *reembed.Reembedder {
	return reembed.NewReembedder(s.documentRepo, s.vectorRepo, s.provider.Embedder(), config, progress)
}

// WarnStuckDocuments logs a user's documents that were queued but never
// processed, typically left behind by an unclean shutdown. The queue is not
// rebuilt from storage; the staged files are gone, so these stay visible
// until deleted.
func (s *System) WarnStuckDocuments(ctx context.Context, userId string) {
	documents, err := s.documentRepo.GetDocumentsByUser(ctx, userId)
	if err != nil {
		s.logger.Warn("failed to scan for stuck documents", "user_id", userId, "err", err)
		return
	}
	for _, document := range documents {
		if document.Status == core.StatusPending || document.Status == core.StatusProcessing {
			s.logger.Warn("document stuck from previous run",
				"document_id", document.Id,
				"user_id", document.UserId,
				"filename", document.Filename,
				"status", document.Status.String())
		}
	}
}
