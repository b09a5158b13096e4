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


package rag

import (
	"fmt"
	"strings"

	"github.com/poiesic/docqa/core"
)

// previewLimit caps how much chunk text is returned in source citations.
const previewLimit = 200

const systemPromptTemplate = `You are a helpful assistant that answers questions based on the provided context.

Context from the user's documents:
%s

Instructions:
- Answer using only the information in the context above.
- If the context does not contain enough information to answer, say "I don't have enough information in the provided documents to answer that question."
- Cite sources by their [Source N] labels when they support your answer.
- Be concise and factual.`

// buildContext renders retrieved chunks as the context block handed to the
// chat model. Blocks are numbered to match the returned source list.
func buildContext(results []*core.SearchResult) string {
	if len(results) == 0 {
		return "No relevant context found."
	}

	blocks := make([]string, len(results))
	for i, result := range results {
		blocks[i] = fmt.Sprintf("[Source %d] (Relevance: %.0f%%)\n%s",
			i+1, result.Score*100, result.Content)
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// buildSystemPrompt embeds the context block into the grounding prompt.
func buildSystemPrompt(contextBlock string) string {
	return fmt.Sprintf(systemPromptTemplate, contextBlock)
}

// truncateContent shortens chunk text for source previews.
func truncateContent(content string) string {
	if len(content) <= previewLimit {
		return content
	}
	return content[:previewLimit-3] + "..."
}
