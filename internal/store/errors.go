package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyLinked is returned when a submission is already linked to a
	// different identity.
	ErrAlreadyLinked = errors.New("submission already linked to another contact")
)

// StorageError is a failed query or write against the Record Store.
// It is retryable: the caller may repeat the operation unchanged.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the operation may succeed. A
// cancelled context is final.
func (e *StorageError) Retryable() bool {
	return !errors.Is(e.Err, context.Canceled)
}

// IsRetryable reports whether err carries a retryable failure anywhere in
// its chain.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
