package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrNotPresent         = errors.New("not present")
	ErrForbidden          = errors.New("you do not have permission to perform this action")
	ErrInvalidCredentials = errors.New("unable to log in with provided credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrShortLinkExhausted = errors.New("could not allocate a unique short link")
)

// RelationError is a conflict or missing-precondition error on a toggle.
// It unwraps to ErrAlreadyExists or ErrNotPresent.
type RelationError struct {
	Kind    error
	Message string
}

func (e *RelationError) Error() string { return e.Message }

func (e *RelationError) Unwrap() error { return e.Kind }

func conflict(msg string) error {
	return &RelationError{Kind: ErrAlreadyExists, Message: msg}
}

func notPresent(msg string) error {
	return &RelationError{Kind: ErrNotPresent, Message: msg}
}

// ErrSelfFollow is a conflict raised before any existence check.
var ErrSelfFollow = conflict("you cannot subscribe to yourself")

// ValidationError collects field-level messages.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

func (e *ValidationError) Add(field, msg string) {
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Err returns nil when no messages were collected.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func fieldError(field, msg string) error {
	v := NewValidationError()
	v.Add(field, msg)
	return v
}

// isUniqueViolation matches translated and raw driver unique-constraint errors.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}
