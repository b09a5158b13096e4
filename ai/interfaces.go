package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// StreamFunc receives one generated token fragment at a time during a
// streaming completion. Returning an error aborts the stream.
type StreamFunc func(ctx context.Context, chunk string) error

// ChatModel generates answers from a system prompt and a user message.
// Implementations must be thread-safe for concurrent use.
type ChatModel interface {
	// Complete generates a full answer in one call and reports the token
	// usage of the exchange.
	Complete(ctx context.Context, systemPrompt, userMessage string) (*ChatResponse, error)

	// Stream generates an answer incrementally, invoking fn for each token
	// fragment as it arrives. Stream returns once generation finishes or
	// fn returns an error.
	Stream(ctx context.Context, systemPrompt, userMessage string, fn StreamFunc) error
}

// ChatResponse is the result of a blocking chat completion.
type ChatResponse struct {
	// Content is the full generated answer.
	Content string

	// InputTokens is the prompt token count reported by the model, zero if
	// the provider did not report usage.
	InputTokens int

	// OutputTokens is the completion token count reported by the model.
	OutputTokens int
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and ChatModel instances,
// ensuring they share configuration and resources appropriately.
type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// ChatModel returns the answer generation service.
	// The returned ChatModel is safe for concurrent use.
	ChatModel() ChatModel

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
