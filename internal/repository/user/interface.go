// File: internal/repository/user/interface.go
package user

import (
	"context"

	"github.com/iyunix/go-chatrelay/internal/domain"
)

// Instructions is the user-editable part of the system prompt.
type Instructions struct {
	AboutYou          string
	AssistantBehavior string
	CustomCommands    []domain.CustomCommand
}

// UserRepository handles user data operations.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id uint) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdatePreferredModel(ctx context.Context, id uint, model string) error
	UpdateInstructions(ctx context.Context, id uint, instructions Instructions) error
}
