// File: internal/services/chat/title.go
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/iyunix/go-chatrelay/internal/domain"
	"github.com/iyunix/go-chatrelay/internal/repository/conversation"
	"github.com/iyunix/go-chatrelay/internal/repository/message"
	"github.com/iyunix/go-chatrelay/internal/services/ai"
)

const titlePromptFormat = "Generate a short, concise title (5 words maximum) for this conversation. " +
	"Reply with the title only, without quotation marks.\n\nUser message: %s\n\nAssistant reply: %s"

// RegenerateTitle retitles the conversation from userMessage and the latest assistant reply.
// It fails only when the request is invalid or no reply exists yet; provider trouble
// leaves the previous title in place.
func (s *Service) RegenerateTitle(ctx context.Context, userID, conversationID uint, userMessage string) (*domain.Conversation, error) {
	userMessage = strings.TrimSpace(userMessage)
	if err := validation.Validate(userMessage, validation.Required.Error("The message field is required.")); err != nil {
		return nil, NewValidationError("regenerate_title", "invalid message", map[string]string{"message": err.Error()})
	}
	conv, err := s.ownedConversation(ctx, "regenerate_title", userID, conversationID)
	if err != nil {
		return nil, err
	}
	acting, err := s.actingUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	reply, err := s.messages.FindLatestByRole(ctx, conv.ID, domain.RoleAssistant)
	if err != nil {
		if errors.Is(err, message.ErrMessageNotFound) {
			return nil, NewValidationError("regenerate_title", "No assistant reply to build a title from yet.",
				map[string]string{"conversation": "has no assistant reply"})
		}
		return nil, NewPersistenceError("regenerate_title", "could not load assistant reply", err)
	}

	s.generateTitle(ctx, acting, conv, userMessage, reply.Content)
	return conv, nil
}

// generateTitle never fails its caller. On success conv.Title is updated in place.
func (s *Service) generateTitle(ctx context.Context, acting *domain.User, conv *domain.Conversation, userText, assistantText string) {
	model, _ := s.catalog.Resolve(ctx, conv.Model)

	system, err := s.prompts.SystemMessage(acting)
	if err != nil {
		s.logger.Warn("title generation skipped", "conversation_id", conv.ID, "error", err)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.TitleTimeout)
	defer cancel()
	raw, err := s.provider.Complete(callCtx, ai.CompletionRequest{
		Model: model,
		Messages: []domain.ChatMessage{
			system,
			{Role: domain.RoleUser, Content: fmt.Sprintf(titlePromptFormat, userText, assistantText)},
		},
		Temperature: s.config.Temperature,
	})
	if err != nil {
		s.logger.Warn("title generation failed", "conversation_id", conv.ID, "model", model, "error", err)
		return
	}

	title := domain.Truncate(strings.TrimSpace(raw), domain.MaxTitleLength)
	if title == "" {
		s.logger.Warn("title generation returned nothing", "conversation_id", conv.ID, "model", model)
		return
	}

	if err := s.conversations.Update(ctx, conv.ID, conversation.Changes{Title: &title}); err != nil {
		s.logger.Warn("could not store generated title", "conversation_id", conv.ID, "error", err)
		return
	}
	conv.Title = title
}
