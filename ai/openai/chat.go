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


package openai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/docqa/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ChatModel implements ai.ChatModel using OpenAI-compatible chat APIs.
type ChatModel struct {
	client llms.Model
	logger *slog.Logger
}

// newChatModel is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newChatModel(config *ai.Config) (*ChatModel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return &ChatModel{
		client: client,
		logger: slog.Default().With("component", "openai-chat"),
	}, nil
}

// NewChatModel creates a new chat model using the provided configuration.
//
// Returns ai.ChatModel interface to enforce abstraction.
func NewChatModel(config *ai.Config) (ai.ChatModel, error) {
	return newChatModel(config)
}

// Complete generates a full answer for the given prompts in one call.
func (m *ChatModel) Complete(ctx context.Context, systemPrompt, userMessage string) (*ai.ChatResponse, error) {
	m.logger.Debug("generating completion", "prompt_length", len(userMessage))

	response, err := m.client.GenerateContent(ctx, buildMessages(systemPrompt, userMessage),
		llms.WithTemperature(0.0))
	if err != nil {
		m.logger.Error("failed to generate completion", "err", err)
		return nil, err
	}

	if len(response.Choices) < 1 {
		m.logger.Warn("no choices returned from model")
		return nil, errors.New("chat model returned no choices")
	}

	choice := response.Choices[0]
	return &ai.ChatResponse{
		Content:      choice.Content,
		InputTokens:  usageTokens(choice.GenerationInfo, "PromptTokens"),
		OutputTokens: usageTokens(choice.GenerationInfo, "CompletionTokens"),
	}, nil
}

// Stream generates an answer incrementally, forwarding each token fragment
// to fn as it arrives.
func (m *ChatModel) Stream(ctx context.Context, systemPrompt, userMessage string, fn ai.StreamFunc) error {
	m.logger.Debug("generating streaming completion", "prompt_length", len(userMessage))

	_, err := m.client.GenerateContent(ctx, buildMessages(systemPrompt, userMessage),
		llms.WithTemperature(0.0),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			return fn(ctx, string(chunk))
		}))
	if err != nil {
		m.logger.Error("failed to stream completion", "err", err)
	}
	return err
}

// buildMessages assembles the two-message prompt layout used by every call.
func buildMessages(systemPrompt, userMessage string) []llms.MessageContent {
	return []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(systemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(userMessage),
			},
		},
	}
}

// usageTokens extracts a token count from GenerationInfo. Providers differ
// on the numeric type they report, so every plausible one is handled.
func usageTokens(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
