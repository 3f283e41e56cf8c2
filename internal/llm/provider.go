// Package llm abstracts the chat-completion API behind a capability
// interface so tests can substitute deterministic stand-ins.
package llm

import "context"

// CompletionRequest is a single-shot prompt. MaxTokens bounds the reply;
// Temperature should stay low when determinism matters.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature float64
}

// CompletionProvider produces one text completion per request.
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
