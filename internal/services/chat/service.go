// File: internal/services/chat/service.go
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/iyunix/go-chatrelay/internal/domain"
	"github.com/iyunix/go-chatrelay/internal/repository/conversation"
	"github.com/iyunix/go-chatrelay/internal/repository/message"
	"github.com/iyunix/go-chatrelay/internal/repository/user"
	"github.com/iyunix/go-chatrelay/internal/services/ai"
)

// Service is the chat relay: conversation lifecycle plus synchronous and streaming turns.
type Service struct {
	config        *Config
	conversations conversation.ConversationRepository
	messages      message.MessageRepository
	users         user.UserRepository
	provider      ai.CompletionProvider
	catalog       ModelCatalog
	prompts       *PromptComposer
	history       HistoryPolicy
	tokens        ai.TokenCounter
	locks         *conversationLocks
	logger        Logger
	now           func() time.Time
}

func NewService(
	config *Config,
	conversations conversation.ConversationRepository,
	messages message.MessageRepository,
	users user.UserRepository,
	provider ai.CompletionProvider,
	catalog ModelCatalog,
	prompts *PromptComposer,
	logger Logger,
) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if prompts == nil {
		prompts = NewPromptComposer(time.Local)
	}
	return &Service{
		config:        config,
		conversations: conversations,
		messages:      messages,
		users:         users,
		provider:      provider,
		catalog:       catalog,
		prompts:       prompts,
		history:       HistoryPolicyFor(config.HistoryLimit),
		locks:         newConversationLocks(),
		logger:        logger,
		now:           time.Now,
	}, nil
}

// SetTokenCounter enables per-message token estimates.
func (s *Service) SetTokenCounter(counter ai.TokenCounter) {
	s.tokens = counter
}

// CreateConversation starts a conversation with its first turn and titles it.
func (s *Service) CreateConversation(ctx context.Context, userID uint, in TurnInput) (*TurnResult, error) {
	in, err := validateTurn("create_conversation", in)
	if err != nil {
		return nil, err
	}
	acting, err := s.actingUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	requested := in.Model
	if requested == "" {
		requested = acting.PreferredModel
	}
	effective, _ := s.catalog.Resolve(ctx, requested)

	conv, err := s.conversations.Create(ctx, &domain.Conversation{
		UserID:         userID,
		Title:          domain.InitialTitle(in.Message),
		Model:          effective,
		LastActivityAt: s.now(),
	})
	if err != nil {
		return nil, NewPersistenceError("create_conversation", "could not create conversation", err)
	}
	s.logger.Info("conversation created", "conversation_id", conv.ID, "user_id", userID, "model", effective)

	return s.completeTurn(ctx, acting, conv, in)
}

// CreateEmptyConversation creates a titled placeholder with no messages.
func (s *Service) CreateEmptyConversation(ctx context.Context, userID uint, model string) (*domain.Conversation, error) {
	acting, err := s.actingUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	requested := strings.TrimSpace(model)
	if requested == "" {
		requested = acting.PreferredModel
	}
	effective, _ := s.catalog.Resolve(ctx, requested)

	conv, err := s.conversations.Create(ctx, &domain.Conversation{
		UserID:         userID,
		Title:          domain.DefaultConversationTitle,
		Model:          effective,
		LastActivityAt: s.now(),
	})
	if err != nil {
		return nil, NewPersistenceError("create_empty_conversation", "could not create conversation", err)
	}
	return conv, nil
}

func (s *Service) GetConversation(ctx context.Context, userID, conversationID uint) (*domain.Conversation, []domain.Message, error) {
	conv, err := s.ownedConversation(ctx, "get_conversation", userID, conversationID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.messages.FindByConversationID(ctx, conv.ID)
	if err != nil {
		return nil, nil, NewPersistenceError("get_conversation", "could not load messages", err)
	}
	return conv, msgs, nil
}

// ListConversations returns favorites first, then most recently active. limit <= 0 lists all.
func (s *Service) ListConversations(ctx context.Context, userID uint, limit int) ([]domain.Conversation, error) {
	convs, err := s.conversations.FindByUserID(ctx, userID, limit)
	if err != nil {
		return nil, NewPersistenceError("list_conversations", "could not list conversations", err)
	}
	return convs, nil
}

// SendMessage runs one synchronous turn on an existing conversation.
func (s *Service) SendMessage(ctx context.Context, userID, conversationID uint, in TurnInput) (*TurnResult, error) {
	in, err := validateTurn("send_message", in)
	if err != nil {
		return nil, err
	}
	conv, err := s.ownedConversation(ctx, "send_message", userID, conversationID)
	if err != nil {
		return nil, err
	}
	acting, err := s.actingUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.completeTurn(ctx, acting, conv, in)
}

// UpdateModel rebinds the conversation when the catalog knows the model and returns the effective id.
func (s *Service) UpdateModel(ctx context.Context, userID, conversationID uint, model string) (string, error) {
	model = strings.TrimSpace(model)
	if err := validation.Validate(model, validation.Required.Error("The model field is required.")); err != nil {
		return "", NewValidationError("update_model", "invalid model", map[string]string{"model": err.Error()})
	}
	conv, err := s.ownedConversation(ctx, "update_model", userID, conversationID)
	if err != nil {
		return "", err
	}

	effective, valid := s.catalog.Resolve(ctx, model)
	if !valid {
		return conv.Model, nil
	}
	if err := s.conversations.Update(ctx, conv.ID, conversation.Changes{Model: &effective}); err != nil {
		return "", NewPersistenceError("update_model", "could not update conversation model", err)
	}
	s.rememberPreferredModel(ctx, userID, effective)
	return effective, nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (s *Service) ToggleFavorite(ctx context.Context, userID, conversationID uint) (bool, error) {
	conv, err := s.ownedConversation(ctx, "toggle_favorite", userID, conversationID)
	if err != nil {
		return false, err
	}
	favorite := !conv.IsFavorite
	if err := s.conversations.Update(ctx, conv.ID, conversation.Changes{IsFavorite: &favorite}); err != nil {
		return false, NewPersistenceError("toggle_favorite", "could not update favorite", err)
	}
	return favorite, nil
}

// DeleteConversation waits for any in-flight turn on the conversation before deleting it.
func (s *Service) DeleteConversation(ctx context.Context, userID, conversationID uint) error {
	conv, err := s.ownedConversation(ctx, "delete_conversation", userID, conversationID)
	if err != nil {
		return err
	}
	release, err := s.locks.Lock(ctx, conv.ID)
	if err != nil {
		return NewBusyError(conv.ID, err)
	}
	defer release()

	if err := s.conversations.Delete(ctx, conv.ID, userID); err != nil {
		if errors.Is(err, conversation.ErrUnauthorizedAccess) {
			return NewUnauthorizedError(userID, conv.ID)
		}
		return NewPersistenceError("delete_conversation", "could not delete conversation", err)
	}
	return nil
}

// DeleteConversations deletes every id or none.
func (s *Service) DeleteConversations(ctx context.Context, userID uint, ids []uint) (int64, error) {
	if err := validation.Validate(ids, validation.Required.Error("The conversation_ids field is required.")); err != nil {
		return 0, NewValidationError("delete_conversations", "invalid conversation ids", map[string]string{"conversation_ids": err.Error()})
	}

	deleted, err := s.conversations.DeleteMultipleByUserID(ctx, ids, userID)
	if err != nil {
		if errors.Is(err, conversation.ErrUnauthorizedAccess) {
			return 0, NewUnauthorizedError(userID, 0)
		}
		return 0, NewPersistenceError("delete_conversations", "could not delete conversations", err)
	}
	return deleted, nil
}

// Ask is a one-shot completion that is never stored. userID 0 asks as a guest.
func (s *Service) Ask(ctx context.Context, userID uint, in TurnInput) (string, string, error) {
	in, err := validateTurn("ask", in)
	if err != nil {
		return "", "", err
	}

	var acting *domain.User
	if userID != 0 {
		if acting, err = s.actingUser(ctx, userID); err != nil {
			return "", "", err
		}
	}

	effective, valid := s.catalog.Resolve(ctx, in.Model)
	if valid && acting != nil {
		s.rememberPreferredModel(ctx, acting.ID, effective)
	}

	system, err := s.prompts.SystemMessage(acting)
	if err != nil {
		return "", "", NewPersistenceError("ask", "could not compose system prompt", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.ProviderTimeout)
	defer cancel()
	reply, err := s.provider.Complete(callCtx, ai.CompletionRequest{
		Model:       effective,
		Messages:    []domain.ChatMessage{system, {Role: domain.RoleUser, Content: in.Message}},
		Temperature: s.config.Temperature,
	})
	if err != nil {
		s.logger.Error("ask completion failed", "user_id", userID, "model", effective, "error", err)
		return "", effective, NewProviderError("ask", "the assistant could not answer", err)
	}
	return reply, effective, nil
}

// AvailableModels lists the catalog and the model preselected for the user.
func (s *Service) AvailableModels(ctx context.Context, userID uint) ([]ai.Model, string, error) {
	models := s.catalog.Models(ctx)
	selected := s.catalog.DefaultModel()
	if userID != 0 {
		acting, err := s.actingUser(ctx, userID)
		if err != nil {
			return nil, "", err
		}
		if acting.PreferredModel != "" {
			for _, m := range models {
				if m.ID == acting.PreferredModel {
					selected = m.ID
					break
				}
			}
		}
	}
	return models, selected, nil
}

// completeTurn runs the synchronous provider call for a prepared turn.
func (s *Service) completeTurn(ctx context.Context, acting *domain.User, conv *domain.Conversation, in TurnInput) (*TurnResult, error) {
	t, err := s.prepareTurn(ctx, acting, conv, in)
	if err != nil {
		return nil, err
	}
	defer t.release()

	callCtx, cancel := context.WithTimeout(ctx, s.config.ProviderTimeout)
	defer cancel()
	reply, err := s.provider.Complete(callCtx, t.request)
	if err != nil {
		s.logger.Error("completion failed, user message kept",
			"conversation_id", conv.ID, "model", t.request.Model, "error", err)
		return nil, NewProviderError("complete_turn", "the assistant could not answer", err)
	}

	assistant, err := s.saveMessage(ctx, conv.ID, domain.RoleAssistant, reply)
	if err != nil {
		return nil, NewPersistenceError("complete_turn", "could not store assistant reply", err)
	}
	t.release()

	if t.firstReply {
		s.generateTitle(ctx, acting, conv, in.Message, reply)
	}

	msgs, err := s.messages.FindByConversationID(ctx, conv.ID)
	if err != nil {
		s.logger.Warn("could not load messages for turn result", "conversation_id", conv.ID, "error", err)
	} else {
		conv.Messages = msgs
	}

	return &TurnResult{Conversation: conv, UserMessage: t.userMessage, AssistantMessage: assistant}, nil
}

// preparedTurn holds the conversation lock until release is called.
type preparedTurn struct {
	userMessage *domain.Message
	request     ai.CompletionRequest
	firstReply  bool
	release     func()
}

// prepareTurn persists the user message, rebinds the model and builds the provider request.
func (s *Service) prepareTurn(ctx context.Context, acting *domain.User, conv *domain.Conversation, in TurnInput) (*preparedTurn, error) {
	release, err := s.locks.Lock(ctx, conv.ID)
	if err != nil {
		return nil, NewBusyError(conv.ID, err)
	}
	ok := false
	defer func() {
		if !ok {
			release()
		}
	}()

	replies, err := s.messages.CountByConversationIDAndRole(ctx, conv.ID, domain.RoleAssistant)
	if err != nil {
		return nil, NewPersistenceError("prepare_turn", "could not inspect conversation", err)
	}

	userMessage, err := s.saveMessage(ctx, conv.ID, domain.RoleUser, in.Message)
	if err != nil {
		return nil, NewPersistenceError("prepare_turn", "could not store user message", err)
	}

	requested := in.Model
	if requested == "" {
		requested = conv.Model
	}
	effective, valid := s.catalog.Resolve(ctx, requested)

	activity := s.now()
	changes := conversation.Changes{LastActivityAt: &activity}
	if in.Model != "" && valid {
		changes.Model = &effective
	}
	if err := s.conversations.Update(ctx, conv.ID, changes); err != nil {
		return nil, NewPersistenceError("prepare_turn", "could not update conversation", err)
	}
	conv.LastActivityAt = activity
	if changes.Model != nil {
		conv.Model = effective
		s.rememberPreferredModel(ctx, acting.ID, effective)
	}

	history, err := s.history.Load(ctx, s.messages, conv.ID)
	if err != nil {
		return nil, NewPersistenceError("prepare_turn", "could not load history", err)
	}
	system, err := s.prompts.SystemMessage(acting)
	if err != nil {
		return nil, NewPersistenceError("prepare_turn", "could not compose system prompt", err)
	}

	messages := make([]domain.ChatMessage, 0, len(history)+1)
	messages = append(messages, system)
	messages = append(messages, domain.ToChatMessages(history)...)

	ok = true
	return &preparedTurn{
		userMessage: userMessage,
		request: ai.CompletionRequest{
			Model:       effective,
			Messages:    messages,
			Temperature: s.config.Temperature,
		},
		firstReply: replies == 0,
		release:    release,
	}, nil
}

func (s *Service) saveMessage(ctx context.Context, conversationID uint, role, content string) (*domain.Message, error) {
	msg := &domain.Message{ConversationID: conversationID, Role: role, Content: content}
	if s.tokens != nil {
		if n, ok := s.tokens.CountTokens(content); ok {
			msg.Tokens = &n
		}
	}
	return s.messages.Create(ctx, msg)
}

func (s *Service) ownedConversation(ctx context.Context, operation string, userID, conversationID uint) (*domain.Conversation, error) {
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, conversation.ErrConversationNotFound) {
			return nil, NewNotFoundError(operation, conversationID)
		}
		return nil, NewPersistenceError(operation, "could not load conversation", err)
	}
	if !conv.OwnedBy(userID) {
		s.logger.Warn("conversation access denied", "operation", operation, "user_id", userID, "conversation_id", conversationID)
		return nil, NewUnauthorizedError(userID, conversationID)
	}
	return conv, nil
}

func (s *Service) actingUser(ctx context.Context, userID uint) (*domain.User, error) {
	acting, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, &ChatError{Type: ErrTypeUnauthorized, Operation: "authorization", Message: "unknown user", UserID: userID}
		}
		return nil, NewPersistenceError("authorization", "could not load user", err)
	}
	return acting, nil
}

func (s *Service) rememberPreferredModel(ctx context.Context, userID uint, model string) {
	if err := s.users.UpdatePreferredModel(ctx, userID, model); err != nil {
		s.logger.Warn("could not store preferred model", "user_id", userID, "model", model, "error", err)
	}
}

func validateTurn(operation string, in TurnInput) (TurnInput, error) {
	in.Message = strings.TrimSpace(in.Message)
	in.Model = strings.TrimSpace(in.Model)
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Message, validation.Required.Error("The message field is required.")),
		validation.Field(&in.Model, validation.Length(0, 255)),
	)
	if err != nil {
		return in, NewValidationError(operation, "invalid message", fieldErrors(err))
	}
	return in, nil
}

// fieldErrors flattens ozzo validation errors into field -> message.
func fieldErrors(err error) map[string]string {
	fields := map[string]string{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			fields[field] = ferr.Error()
		}
		return fields
	}
	fields["_"] = err.Error()
	return fields
}
