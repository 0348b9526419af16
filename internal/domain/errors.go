package domain

import "fmt"

// ValidationError reports malformed input on a single field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InvalidStateError reports an operation against a cart or order in the wrong
// lifecycle state
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string {
	return e.Message
}

func NewInvalidStateError(format string, args ...interface{}) *InvalidStateError {
	return &InvalidStateError{Message: fmt.Sprintf(format, args...)}
}

// EmptyCartError reports a checkout attempt on a cart without items
type EmptyCartError struct{}

func (e *EmptyCartError) Error() string {
	return "cart is empty"
}

// AuthorizationError reports a caller lacking privilege or ownership
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

func NewAuthorizationError(message string) *AuthorizationError {
	return &AuthorizationError{Message: message}
}

// MethodNotAllowedError reports a verb that is never permitted on a resource
type MethodNotAllowedError struct {
	Message string
}

func (e *MethodNotAllowedError) Error() string {
	return e.Message
}

// NotFoundError reports a resource that does not exist or is not visible to
// the caller
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

// ConflictError reports a uniqueness violation on create or update
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}
