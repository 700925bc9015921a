package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Machine-readable error kinds. API responses carry one of these so
// clients can distinguish not-found from forbidden from conflict
// without parsing message text.
const (
	KindConflict      = "conflict"
	KindExternalState = "external_state"
	KindForbidden     = "forbidden"
	KindInternal      = "internal"
	KindNotFound      = "not_found"
	KindValidation    = "validation"
)

// ValidationError reports one or more missing or invalid fields.
// Messages are keyed by field name.
type ValidationError struct {
	Errors map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	e := &ValidationError{Errors: make(map[string]string)}
	e.Add(field, message)
	return e
}

// Add records a field-level message. It's safe to call on an error
// built up across several checks.
func (e *ValidationError) Add(field, message string) {
	if e.Errors == nil {
		e.Errors = make(map[string]string)
	}
	e.Errors[field] = message
}

// IsEmpty returns true if no field errors have been recorded.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Errors[field]))
	}
	return strings.Join(parts, "; ")
}

// NotFoundError means no record exists for the lookup key. Callers
// depend on this being distinct from ForbiddenError: for polling
// workers, absence of a WorkItem means ingestion has not started,
// which is not an authorization problem.
type NotFoundError struct {
	Type string
	Key  string
}

func NewNotFoundError(entityType, key string) *NotFoundError {
	return &NotFoundError{Type: entityType, Key: key}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Type, e.Key)
}

// ForbiddenError means the caller is authenticated but not permitted.
type ForbiddenError struct {
	Message string
}

func NewForbiddenError(message string) *ForbiddenError {
	if message == "" {
		message = "You are not authorized to perform this action"
	}
	return &ForbiddenError{Message: message}
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

// ConflictError means a requested operation is blocked by an in-flight
// WorkItem. BlockingAction names the action holding the item up, so
// the caller can tell a pending Ingest from a pending Restore.
type ConflictError struct {
	BlockingAction string
}

func NewConflictError(blockingAction string) *ConflictError {
	return &ConflictError{BlockingAction: blockingAction}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("Operation is blocked by a pending %s request", e.BlockingAction)
}

// ExternalStateError means an allow-list field holds a value outside
// its fixed set of permitted values.
type ExternalStateError struct {
	Field   string
	Value   string
	Allowed []string
}

func NewExternalStateError(field, value string, allowed []string) *ExternalStateError {
	return &ExternalStateError{Field: field, Value: value, Allowed: allowed}
}

func (e *ExternalStateError) Error() string {
	return fmt.Sprintf("%s '%s' is not one of the allowed values (%s)",
		e.Field, e.Value, strings.Join(e.Allowed, ", "))
}

// Kind returns the machine-readable kind for err. Unrecognized errors
// are KindInternal.
func Kind(err error) string {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		forbidden  *ForbiddenError
		conflict   *ConflictError
		extState   *ExternalStateError
	)
	switch {
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &forbidden):
		return KindForbidden
	case errors.As(err, &conflict):
		return KindConflict
	case errors.As(err, &extState):
		return KindExternalState
	default:
		return KindInternal
	}
}
