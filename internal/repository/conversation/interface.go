// File: internal/repository/conversation/interface.go
package conversation

import (
	"context"
	"time"

	"github.com/iyunix/go-chatrelay/internal/domain"
)

// Changes lists the mutable conversation fields. Nil fields are left untouched.
type Changes struct {
	Title          *string
	Model          *string
	LastActivityAt *time.Time
	IsFavorite     *bool
}

// ConversationRepository handles conversation data operations.
type ConversationRepository interface {
	Create(ctx context.Context, conversation *domain.Conversation) (*domain.Conversation, error)
	FindByID(ctx context.Context, id uint) (*domain.Conversation, error)
	// FindByUserID returns the owner's conversations, favorites first, then by
	// most recent activity. A positive limit caps the result.
	FindByUserID(ctx context.Context, userID uint, limit int) ([]domain.Conversation, error)
	Update(ctx context.Context, id uint, changes Changes) error
	Delete(ctx context.Context, id, userID uint) error
	// DeleteMultipleByUserID deletes all ids or none. It fails with
	// ErrUnauthorizedAccess when any id is not owned by userID.
	DeleteMultipleByUserID(ctx context.Context, ids []uint, userID uint) (int64, error)
}
