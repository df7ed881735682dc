// File: internal/services/ai/errors.go
package ai

import (
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

type ErrorType string

const (
	ErrTypeConfig     ErrorType = "CONFIG"
	ErrTypeNetwork    ErrorType = "NETWORK"
	ErrTypeProvider   ErrorType = "PROVIDER"
	ErrTypeRateLimit  ErrorType = "RATE_LIMIT"
	ErrTypeModel      ErrorType = "MODEL"
	ErrTypeValidation ErrorType = "VALIDATION"
)

type AIError struct {
	Type      ErrorType
	Code      int
	Message   string
	Model     string
	Operation string
	Cause     error
}

func (e *AIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("AI %s error in %s: %s (caused by: %v)",
			e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("AI %s error in %s: %s", e.Type, e.Operation, e.Message)
}

func (e *AIError) Unwrap() error { return e.Cause }

func NewConfigError(msg string) *AIError {
	return &AIError{Type: ErrTypeConfig, Message: msg, Operation: "config"}
}

// NewProviderError classifies a failed provider call, keeping the upstream HTTP status when known.
func NewProviderError(operation, msg string, cause error) *AIError {
	e := &AIError{Type: ErrTypeProvider, Operation: operation, Message: msg, Cause: cause}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(cause, &apiErr):
		e.Code = apiErr.HTTPStatusCode
	case errors.As(cause, &reqErr):
		e.Code = reqErr.HTTPStatusCode
	}
	if e.Code == http.StatusTooManyRequests {
		e.Type = ErrTypeRateLimit
	}
	return e
}

// IsAIError reports whether err carries an *AIError.
func IsAIError(err error) bool {
	var aiErr *AIError
	return errors.As(err, &aiErr)
}
