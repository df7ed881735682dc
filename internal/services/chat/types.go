// File: internal/services/chat/types.go
package chat

import (
	"context"

	"github.com/iyunix/go-chatrelay/internal/domain"
	"github.com/iyunix/go-chatrelay/internal/services/ai"
)

// Logger defines the logging interface used across chat services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// ModelCatalog is the part of ai.Catalog the relay depends on.
type ModelCatalog interface {
	Models(ctx context.Context) []ai.Model
	Resolve(ctx context.Context, requested string) (string, bool)
	DefaultModel() string
}

// TurnInput is the user's side of a turn. An empty Model keeps the conversation's model.
type TurnInput struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

// TurnResult is a completed synchronous turn.
type TurnResult struct {
	Conversation     *domain.Conversation `json:"conversation,omitempty"`
	UserMessage      *domain.Message      `json:"userMessage"`
	AssistantMessage *domain.Message      `json:"assistantMessage"`
}
