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


// Package rag answers questions about a user's documents by retrieving
// similar chunks and generating a grounded response.
package rag

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

// Retrieval and pricing defaults.
const (
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.7

	// Cost per 1000 tokens, in dollars.
	defaultInputRate  = 0.00015
	defaultOutputRate = 0.0006
)

var (
	// ErrEmptyQuestion is returned when the question is blank.
	ErrEmptyQuestion = errors.New("question must not be empty")

	// ErrVectorRepositoryRequired is returned when a vector repository is not provided.
	ErrVectorRepositoryRequired = errors.New("vector repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")
)

// Source cites one retrieved chunk that grounded the answer.
type Source struct {
	ChunkId    core.ID `json:"chunkId"`
	DocumentId core.ID `json:"documentId"`
	Filename   string  `json:"filename"`
	Preview    string  `json:"preview"`
	Score      float32 `json:"score"`
}

// Usage reports the token consumption and estimated cost of one answer.
type Usage struct {
	InputTokens   int     `json:"inputTokens"`
	OutputTokens  int     `json:"outputTokens"`
	EstimatedCost float64 `json:"estimatedCost"`
}

// Answer is the result of one question.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Usage   Usage    `json:"usage"`
}

// Service runs the retrieval-augmented answer flow.
type Service struct {
	vectors       storage.VectorRepository
	embedder      ai.Embedder
	chat          ai.ChatModel
	topK          int
	minSimilarity float32
	inputRate     float64
	outputRate    float64
	logger        *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTopK sets how many chunks are retrieved per question.
// Default is DefaultTopK.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithMinSimilarity sets the similarity floor for retrieved chunks.
// Default is DefaultMinSimilarity.
func WithMinSimilarity(min float32) Option {
	return func(s *Service) {
		s.minSimilarity = min
	}
}

// WithCostRates sets the per-1000-token dollar rates used for cost
// estimates.
func WithCostRates(inputRate, outputRate float64) Option {
	return func(s *Service) {
		s.inputRate = inputRate
		s.outputRate = outputRate
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a RAG answer service.
func NewService(vectors storage.VectorRepository, provider ai.Provider, opts ...Option) (*Service, error) {
	if vectors == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Service{
		vectors:       vectors,
		embedder:      provider.Embedder(),
		chat:          provider.ChatModel(),
		topK:          DefaultTopK,
		minSimilarity: DefaultMinSimilarity,
		inputRate:     defaultInputRate,
		outputRate:    defaultOutputRate,
		logger:        slog.Default().With("component", "rag"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AskOption narrows or resizes the retrieval of a single question.
type AskOption func(*retrieval)

type retrieval struct {
	topK       int
	documentId core.ID
}

// Limit overrides the configured top-K for this question.
func Limit(k int) AskOption {
	return func(r *retrieval) {
		if k > 0 {
			r.topK = k
		}
	}
}

// ScopedToDocument restricts retrieval to a single document.
// The user scope still applies.
func ScopedToDocument(id core.ID) AskOption {
	return func(r *retrieval) {
		r.documentId = id
	}
}

// Ask answers a question in one blocking call.
// Retrieval is scoped to the user's own documents.
func (s *Service) Ask(ctx context.Context, userId, question string, opts ...AskOption) (*Answer, error) {
	prompt, sources, err := s.prepare(ctx, userId, question, opts)
	if err != nil {
		return nil, err
	}

	response, err := s.chat.Complete(ctx, prompt, question)
	if err != nil {
		return nil, err
	}

	answer := &Answer{
		Answer:  response.Content,
		Sources: sources,
		Usage: Usage{
			InputTokens:   response.InputTokens,
			OutputTokens:  response.OutputTokens,
			EstimatedCost: s.estimateCost(response.InputTokens, response.OutputTokens),
		},
	}

	s.logger.Info("question answered",
		"user_id", userId,
		"sources", len(sources),
		"input_tokens", response.InputTokens,
		"output_tokens", response.OutputTokens)
	return answer, nil
}

// SourcesFunc receives the retrieved sources before generation starts.
type SourcesFunc func(ctx context.Context, sources []Source) error

// AskStream answers a question, forwarding each token fragment to fn as it
// is generated. onSources, if non-nil, is called with the retrieved sources
// before the first token. The returned Answer carries the sources and
// accumulated text; streamed responses report no token usage.
func (s *Service) AskStream(ctx context.Context, userId, question string, onSources SourcesFunc, fn ai.StreamFunc, opts ...AskOption) (*Answer, error) {
	prompt, sources, err := s.prepare(ctx, userId, question, opts)
	if err != nil {
		return nil, err
	}

	if onSources != nil {
		if err := onSources(ctx, sources); err != nil {
			return nil, err
		}
	}

	var full strings.Builder
	err = s.chat.Stream(ctx, prompt, question, func(ctx context.Context, chunk string) error {
		full.WriteString(chunk)
		return fn(ctx, chunk)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("question answered (streaming)",
		"user_id", userId,
		"sources", len(sources))
	return &Answer{
		Answer:  full.String(),
		Sources: sources,
	}, nil
}

// prepare embeds the question, retrieves similar chunks for the user and
// builds the grounding prompt plus source citations.
func (s *Service) prepare(ctx context.Context, userId, question string, opts []AskOption) (string, []Source, error) {
	if strings.TrimSpace(question) == "" {
		return "", nil, ErrEmptyQuestion
	}

	query := retrieval{topK: s.topK}
	for _, opt := range opts {
		opt(&query)
	}

	vector, err := s.embedder.EmbedText(ctx, question)
	if err != nil {
		return "", nil, err
	}

	scope := []storage.SearchOption{storage.ForUser(userId)}
	if query.documentId != 0 {
		scope = append(scope, storage.ForDocument(query.documentId))
	}
	results, err := s.vectors.FindSimilar(ctx, vector, s.minSimilarity, query.topK, scope...)
	if err != nil {
		return "", nil, err
	}

	sources := make([]Source, len(results))
	for i, result := range results {
		sources[i] = Source{
			ChunkId:    result.ChunkId,
			DocumentId: result.DocumentId,
			Filename:   result.Filename,
			Preview:    truncateContent(result.Content),
			Score:      result.Score,
		}
	}

	return buildSystemPrompt(buildContext(results)), sources, nil
}

// estimateCost converts token counts into a dollar estimate.
func (s *Service) estimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*s.inputRate/1000 + float64(outputTokens)*s.outputRate/1000
}
