package services

import (
	"errors"
	"strings"
)

var (
	// ErrValidation is wrapped by every ValidationError
	ErrValidation = errors.New("invalid input")

	// ErrNotFound covers unknown, expired, exhausted and raced-away pastes
	// alike. Callers must not be able to tell the causes apart.
	ErrNotFound = errors.New("paste not found or no longer available")

	// ErrStorageUnavailable wraps any failure of the storage backend
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ValidationError lists every problem found in a create request
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + strings.Join(e.Details, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
