package mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/docqa/ai"
)

// MockChatModel is a test double for ai.ChatModel.
// It allows custom behavior injection via function fields.
type MockChatModel struct {
	// CompleteFunc is called by Complete if set.
	// If nil, uses default deterministic behavior.
	CompleteFunc func(ctx context.Context, systemPrompt, userMessage string) (*ai.ChatResponse, error)

	// StreamFunc is called by Stream if set.
	// If nil, the default answer is forwarded word by word.
	StreamFunc func(ctx context.Context, systemPrompt, userMessage string, fn ai.StreamFunc) error

	callCount int
}

// NewMockChatModel creates a mock chat model with default deterministic behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockChatModel() *MockChatModel {
	return &MockChatModel{}
}

// Complete returns a deterministic answer echoing the question.
func (m *MockChatModel) Complete(ctx context.Context, systemPrompt, userMessage string) (*ai.ChatResponse, error) {
	m.callCount++

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, systemPrompt, userMessage)
	}

	return &ai.ChatResponse{
		Content:      fmt.Sprintf("Answer to: %s", userMessage),
		InputTokens:  (len(systemPrompt) + len(userMessage) + 3) / 4,
		OutputTokens: 12,
	}, nil
}

// Stream forwards the default answer to fn one word at a time.
func (m *MockChatModel) Stream(ctx context.Context, systemPrompt, userMessage string, fn ai.StreamFunc) error {
	m.callCount++

	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, systemPrompt, userMessage, fn)
	}

	answer := fmt.Sprintf("Answer to: %s", userMessage)
	for _, word := range strings.SplitAfter(answer, " ") {
		if err := fn(ctx, word); err != nil {
			return err
		}
	}
	return nil
}

// CallCount returns the number of times any method was called.
func (m *MockChatModel) CallCount() int {
	return m.callCount
}

// Reset clears the call count and injected behavior.
func (m *MockChatModel) Reset() {
	m.callCount = 0
	m.CompleteFunc = nil
	m.StreamFunc = nil
}
