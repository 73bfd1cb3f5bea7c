package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a conversation or folder is absent from the store
	NotFoundError struct {
		Resource string // "conversation" or "folder"
		ID       string
	}

	// ValidationError indicates invalid input (empty names, unknown enum values, bad moves)
	ValidationError struct {
		Message string
		Err     error
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// ForbiddenError indicates authorization failure
	ForbiddenError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UnauthorizedError) Error() string { return e.Message }
func (e *ForbiddenError) Error() string    { return e.Message }

func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *ForbiddenError) StatusCode() int    { return http.StatusForbidden }

// Is lets errors.Is match the typed errors against their sentinels
func (e *NotFoundError) Is(target error) bool     { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool   { return target == ErrValidation }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }
func (e *ForbiddenError) Is(target error) bool    { return target == ErrForbidden }

// Unwrap exposes the cause of a validation failure (e.g. the NotFound behind a bad move)
func (e *ValidationError) Unwrap() error { return e.Err }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrPersistence  = errors.New("persistence failure")
	ErrStructural   = errors.New("structural violation")
)

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (conversation, folder)
	ResourceID   string // ID of the existing/conflicting resource
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// PersistenceError wraps a failure of the storage collaborator.
// Op names the collaborator call that failed (e.g. "save conversation").
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func (e *PersistenceError) StatusCode() int { return http.StatusServiceUnavailable }

// StructuralError reports a violation of the acyclic folder forest
// (cycle in stored data, self-drop, or drop into a descendant).
type StructuralError struct {
	FolderID string
	Message  string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("folder %s: %s", e.FolderID, e.Message)
}

func (e *StructuralError) Is(target error) bool { return target == ErrStructural }

func (e *StructuralError) StatusCode() int { return http.StatusUnprocessableEntity }

// NewNotFound builds a NotFoundError for the given resource kind
func NewNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// NewValidation builds a ValidationError with an optional cause
func NewValidation(message string, cause error) error {
	return &ValidationError{Message: message, Err: cause}
}

// WrapPersistence wraps err as a PersistenceError unless it already carries
// a domain meaning (not found, conflict, validation) that callers branch on.
func WrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrValidation) || errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// StatusCode resolves the HTTP status for any error, defaulting to 500
func StatusCode(err error) int {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode()
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrStructural):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrPersistence):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
