// File: internal/services/ai/interface.go
package ai

import (
	"context"

	"github.com/iyunix/go-chatrelay/internal/domain"
)

// Logger defines the logging interface used across AI services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// CompletionRequest is one chat completion call. Messages[0] is the system prompt.
type CompletionRequest struct {
	Model       string
	Messages    []domain.ChatMessage
	Temperature float32
}

// ChatStream is a lazy, finite, non-restartable sequence of text fragments.
// Recv returns io.EOF once the upstream is exhausted. Fragments may be empty.
type ChatStream interface {
	Recv() (string, error)
	Close() error
}

// CompletionProvider handles chat completions
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Stream(ctx context.Context, req CompletionRequest) (ChatStream, error)
}

// Pricing is the provider's per-token price, kept as the decimal strings it reports.
type Pricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// Model is one catalog entry.
type Model struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	ContextLength       int     `json:"context_length"`
	MaxCompletionTokens int     `json:"max_completion_tokens"`
	Pricing             Pricing `json:"pricing"`
}

// ModelLister fetches the provider's model list.
type ModelLister interface {
	ListModels(ctx context.Context) ([]Model, error)
}
