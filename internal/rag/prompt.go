// internal/rag/prompt.go
package rag

import (
	"fmt"
	"strings"
)

// promptTemplate fixes the policy for answering: the model is told to rely
// on the retrieved context and to admit when it does not know. An empty
// context section still produces a complete prompt.
const promptTemplate = `Answer the question based only on the following context.
If you don't know the answer, just say that you don't know.

Context:
%s

Question:
%s
`

// BuildPrompt combines the formatted context and the user question into a
// generation-ready prompt.
func BuildPrompt(contextText, question string) string {
	return fmt.Sprintf(promptTemplate, contextText, question)
}

// FormatContext builds the context block from retrieved chunks and returns
// the text, its token count, and the number of distinct source documents.
// maxTokens of zero means no budget.
func FormatContext(chunks []RetrievedChunk, maxTokens int) (string, int, int) {
	if len(chunks) == 0 {
		return "", 0, 0
	}
	if maxTokens < 0 {
		maxTokens = 0
	}

	var b strings.Builder
	contextTokens := 0
	remaining := maxTokens
	sourceSet := make(map[string]struct{})

	for _, chunk := range chunks {
		text := strings.TrimSpace(chunk.Entry.Text)
		if text == "" {
			continue
		}
		doc := chunk.Entry.Doc

		if maxTokens > 0 {
			if remaining <= 0 {
				break
			}
			if tokens := estimateTokens(text); tokens > remaining {
				text = truncateToTokens(text, remaining)
			}
		}

		usedTokens := estimateTokens(text)
		if usedTokens == 0 {
			continue
		}

		b.WriteString(fmt.Sprintf("[doc:%s] %s\n", doc, text))
		contextTokens += usedTokens
		if maxTokens > 0 {
			remaining -= usedTokens
		}
		sourceSet[doc] = struct{}{}
	}

	return strings.TrimRight(b.String(), "\n"), contextTokens, len(sourceSet)
}

func estimateTokens(text string) int {
	return len(strings.Fields(text))
}

func truncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	parts := strings.Fields(text)
	if len(parts) <= maxTokens {
		return text
	}
	return strings.Join(parts[:maxTokens], " ")
}
