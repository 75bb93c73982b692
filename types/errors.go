package types

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when no document matches the id.
	ErrNotFound = errors.New("document not found")

	// ErrEmbeddingFailed marks a job that must not be retried.
	ErrEmbeddingFailed = errors.New("embedding failed")
)

// ValidationError is a caller mistake: bad encoding, blank query.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// StoreError wraps a persistence or connection failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
