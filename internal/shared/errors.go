package shared

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates a referenced entity is absent.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates invalid or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateKey indicates a unique constraint violation.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrContention indicates a write that could not be serialised after retries.
	ErrContention = errors.New("concurrent write conflict")
	// ErrInvalidTransition indicates a status change not allowed by the document state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInternal wraps unexpected failures.
	ErrInternal = errors.New("internal error")
)

var kinds = []error{ErrNotFound, ErrValidation, ErrDuplicateKey, ErrContention, ErrInvalidTransition, ErrInternal}

// ValidationErrors maps field names to messages.
type ValidationErrors map[string]string

// Add records a message for field, keeping the first one.
func (v ValidationErrors) Add(field, message string) {
	if _, exists := v[field]; exists {
		return
	}
	v[field] = message
}

// Err returns nil when no field failed.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+" "+v[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match ErrValidation.
func (v ValidationErrors) Unwrap() error { return ErrValidation }

// Invalid builds a validation error with a formatted message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound builds a not-found error for the named entity.
func NotFound(entity string, id any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, entity, id)
}

// Kind returns the error kind err belongs to, or ErrInternal.
func Kind(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}

// Internal classifies err for callers: known kinds and context errors pass through,
// anything else is wrapped as ErrInternal.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrInternal, err)
}
