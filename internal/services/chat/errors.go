// File: internal/services/chat/errors.go
package chat

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrTypeValidation   ErrorType = "VALIDATION"
	ErrTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrTypeNotFound     ErrorType = "NOT_FOUND"
	ErrTypeProvider     ErrorType = "PROVIDER"
	ErrTypePersistence  ErrorType = "PERSISTENCE"
	ErrTypeBusy         ErrorType = "BUSY"
)

type ChatError struct {
	Type           ErrorType
	Operation      string
	Message        string
	Fields         map[string]string
	ConversationID uint
	UserID         uint
	Cause          error
}

func (e *ChatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Chat %s error in %s: %s (caused by: %v)",
			e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("Chat %s error in %s: %s", e.Type, e.Operation, e.Message)
}

func (e *ChatError) Unwrap() error { return e.Cause }

func NewValidationError(operation, msg string, fields map[string]string) *ChatError {
	return &ChatError{Type: ErrTypeValidation, Operation: operation, Message: msg, Fields: fields}
}

func NewUnauthorizedError(userID, conversationID uint) *ChatError {
	return &ChatError{
		Type:           ErrTypeUnauthorized,
		Operation:      "authorization",
		Message:        "conversation not owned by requester",
		UserID:         userID,
		ConversationID: conversationID,
	}
}

func NewNotFoundError(operation string, conversationID uint) *ChatError {
	return &ChatError{
		Type:           ErrTypeNotFound,
		Operation:      operation,
		Message:        "conversation not found",
		ConversationID: conversationID,
	}
}

func NewProviderError(operation, msg string, cause error) *ChatError {
	return &ChatError{Type: ErrTypeProvider, Operation: operation, Message: msg, Cause: cause}
}

func NewPersistenceError(operation, msg string, cause error) *ChatError {
	return &ChatError{Type: ErrTypePersistence, Operation: operation, Message: msg, Cause: cause}
}

func NewBusyError(conversationID uint, cause error) *ChatError {
	return &ChatError{
		Type:           ErrTypeBusy,
		Operation:      "lock",
		Message:        "conversation is busy with another turn",
		ConversationID: conversationID,
		Cause:          cause,
	}
}

func IsValidation(err error) bool   { return hasType(err, ErrTypeValidation) }
func IsUnauthorized(err error) bool { return hasType(err, ErrTypeUnauthorized) }
func IsNotFound(err error) bool     { return hasType(err, ErrTypeNotFound) }
func IsProvider(err error) bool     { return hasType(err, ErrTypeProvider) }
func IsBusy(err error) bool         { return hasType(err, ErrTypeBusy) }

func hasType(err error, t ErrorType) bool {
	var chatErr *ChatError
	return errors.As(err, &chatErr) && chatErr.Type == t
}
