// File: internal/services/chat/history.go
package chat

import (
	"context"

	"github.com/iyunix/go-chatrelay/internal/domain"
	"github.com/iyunix/go-chatrelay/internal/repository/message"
)

// HistoryPolicy decides which stored messages accompany a turn.
type HistoryPolicy interface {
	Load(ctx context.Context, messages message.MessageRepository, conversationID uint) ([]domain.Message, error)
}

// FullHistory sends every message. Context grows without bound on long conversations.
type FullHistory struct{}

func (FullHistory) Load(ctx context.Context, messages message.MessageRepository, conversationID uint) ([]domain.Message, error) {
	return messages.FindByConversationID(ctx, conversationID)
}

// RecentHistory sends only the newest Max messages.
type RecentHistory struct {
	Max int
}

func (h RecentHistory) Load(ctx context.Context, messages message.MessageRepository, conversationID uint) ([]domain.Message, error) {
	return messages.FindRecentByConversationID(ctx, conversationID, h.Max)
}

// HistoryPolicyFor maps a configured limit to a policy. Zero or less means full history.
func HistoryPolicyFor(limit int) HistoryPolicy {
	if limit > 0 {
		return RecentHistory{Max: limit}
	}
	return FullHistory{}
}
