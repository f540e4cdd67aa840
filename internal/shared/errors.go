package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied indicates the actor may not perform the operation.
	ErrAccessDenied = errors.New("access denied")
	// ErrUnknownEntityKind indicates an entity kind that has no registered provider.
	ErrUnknownEntityKind = errors.New("unknown entity kind")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// InvalidInputError reports a bad or missing caller supplied field.
type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InvalidInput builds an InvalidInputError for field.
func InvalidInput(field, message string) error {
	return &InvalidInputError{Field: field, Message: message}
}

// ConfigurationError reports a server-side configuration that prevents the operation.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// Misconfigured builds a ConfigurationError.
func Misconfigured(message string) error {
	return &ConfigurationError{Message: message}
}

// UserSafeMessage returns a message suitable for showing in a form.
func UserSafeMessage(err error) string {
	var invalid *InvalidInputError
	var config *ConfigurationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &invalid):
		return invalid.Message
	case errors.As(err, &config):
		return config.Message
	case errors.Is(err, ErrAccessDenied):
		return "You do not have permission to do that."
	case errors.Is(err, ErrNotFound):
		return "The requested item could not be found."
	case errors.Is(err, ErrUnknownEntityKind):
		return "Permissions requested with an invalid entity."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid user name or password."
	default:
		return "Something went wrong, please try again."
	}
}
