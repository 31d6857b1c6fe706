package session

import (
	"context"
	"fmt"
	"strings"

	"parley/internal/artifact"
	"parley/internal/llm"
)

// summaryMaxInput caps how much raw text is sent for summarization.
// Larger artifacts are truncated; the raw text stays intact in the store.
const summaryMaxInput = 32 * 1024

const summarizerSystemPrompt = `You summarize documents for an interviewer's working notes.
Produce a compact summary (at most 8 sentences) capturing the facts, names,
dates, and claims the document contains. Do not editorialize. Do not add
information that is not in the document.`

// LLMSummarizer produces artifact summaries through the configured model.
type LLMSummarizer struct {
	client llm.Client
}

// NewLLMSummarizer creates a summarizer backed by the given client.
func NewLLMSummarizer(client llm.Client) *LLMSummarizer {
	return &LLMSummarizer{client: client}
}

// Summarize implements artifact.Summarizer.
func (s *LLMSummarizer) Summarize(ctx context.Context, a artifact.Artifact) (string, error) {
	text := a.RawText
	if len(text) > summaryMaxInput {
		text = text[:summaryMaxInput]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Document %q (source: %s):\n\n%s", a.Filename, a.SourceType, text)

	resp, err := s.client.Complete(ctx, llm.Request{
		System: summarizerSystemPrompt,
		Turns:  []llm.Turn{{Role: llm.RoleUser, Content: b.String()}},
	})
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", a.ID, err)
	}
	summary := strings.TrimSpace(resp.Text)
	if summary == "" {
		return "", fmt.Errorf("summarize %s: model returned no text", a.ID)
	}
	return summary, nil
}
