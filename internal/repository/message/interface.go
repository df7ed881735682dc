// File: internal/repository/message/interface.go
package message

import (
	"context"

	"github.com/iyunix/go-chatrelay/internal/domain"
)

// MessageRepository persists conversation messages. Messages are append-only.
type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) (*domain.Message, error)
	// FindByConversationID returns every message in creation order.
	FindByConversationID(ctx context.Context, conversationID uint) ([]domain.Message, error)
	// FindRecentByConversationID returns the newest limit messages, still in creation order.
	FindRecentByConversationID(ctx context.Context, conversationID uint, limit int) ([]domain.Message, error)
	FindLatestByRole(ctx context.Context, conversationID uint, role string) (*domain.Message, error)
	CountByConversationIDAndRole(ctx context.Context, conversationID uint, role string) (int64, error)
}
