// File: internal/services/user_services/types.go
package user_services

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Logger interface for all user services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("an account with this email already exists")
)

// ValidationError lists the offending fields of a rejected request.
type ValidationError struct {
	Operation string
	Fields    map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed in %s: %v", e.Operation, e.Fields)
}

func newValidationError(operation string, err error) *ValidationError {
	fields := map[string]string{}
	flattenErrors("", err, fields)
	return &ValidationError{Operation: operation, Fields: fields}
}

// flattenErrors turns nested ozzo errors into dotted keys such as "custom_commands.0.command".
func flattenErrors(prefix string, err error, out map[string]string) {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		key := prefix
		if key == "" {
			key = "_"
		}
		out[key] = err.Error()
		return
	}
	for field, ferr := range verrs {
		key := field
		if prefix != "" {
			key = prefix + "." + field
		}
		flattenErrors(key, ferr, out)
	}
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
