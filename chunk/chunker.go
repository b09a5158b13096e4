// Package chunk splits extracted document text into ordered, overlapping
// chunks sized by an estimated token budget. Chunks never split a sentence:
// a single sentence larger than the budget becomes a chunk of its own.
package chunk

import (
	"regexp"
	"strings"
)

const (
	// DefaultChunkSize is the chunk budget in estimated tokens.
	DefaultChunkSize = 500
	// DefaultChunkOverlap is the overlap budget in estimated tokens.
	DefaultChunkOverlap = 50
)

// Sentence boundaries: ., ! or ? followed by whitespace.
var sentenceBoundary = regexp.MustCompile(`([.!?])\s+`)

// Result is one chunk of input text.
type Result struct {
	Content       string
	Index         int // Zero-based, contiguous
	TokenEstimate int
}

// Chunker splits text into sentence-preserving chunks with overlap.
// The zero value is not usable; construct with New.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk budget in estimated tokens.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithChunkOverlap sets the overlap budget in estimated tokens.
// An overlap of 0 disables overlap entirely.
func WithChunkOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.chunkOverlap = overlap
		}
	}
}

// New creates a Chunker with the default budgets, applying the provided options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk splits text into ordered overlapping chunks. Empty or whitespace-only
// input yields no chunks. Input without sentence punctuation yields exactly
// one chunk.
func (c *Chunker) Chunk(text string) []Result {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sentences := splitSentences(text)

	var chunks []Result
	var current strings.Builder
	var overlap []string
	index := 0

	for _, sentence := range sentences {
		sentenceTokens := EstimateTokens(sentence)
		currentTokens := EstimateTokens(current.String())

		if currentTokens+sentenceTokens > c.chunkSize && current.Len() > 0 {
			content := strings.TrimSpace(current.String())
			chunks = append(chunks, Result{
				Content:       content,
				Index:         index,
				TokenEstimate: EstimateTokens(content),
			})
			index++

			// Reseed the next chunk from the overlap window.
			current.Reset()
			for _, held := range overlap {
				current.WriteString(held)
				current.WriteByte(' ')
			}
		}

		current.WriteString(sentence)
		current.WriteByte(' ')

		// Maintain the overlap window: hold the most recent sentences whose
		// combined estimate fits the overlap budget, never shrinking below one.
		overlap = append(overlap, sentence)
		for EstimateTokens(strings.Join(overlap, " ")) > c.chunkOverlap && len(overlap) > 1 {
			overlap = overlap[1:]
		}
	}

	if current.Len() > 0 {
		content := strings.TrimSpace(current.String())
		chunks = append(chunks, Result{
			Content:       content,
			Index:         index,
			TokenEstimate: EstimateTokens(content),
		})
	}

	return chunks
}

// EstimateTokens approximates the token count of text as ceil(len/4).
// A coarse proxy for English, not a real tokenizer; callers must tolerate
// miscalibration.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// splitSentences splits text at boundaries following ., ! or ? plus
// whitespace, dropping empty and whitespace-only pieces.
func splitSentences(text string) []string {
	marked := sentenceBoundary.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")

	sentences := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			sentences = append(sentences, part)
		}
	}
	return sentences
}
