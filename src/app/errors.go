package app

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is and never look at backend
// error codes.
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrStorage            = errors.New("storage error")
)

// StorageError carries a backend failure translated into one of the error
// kinds. The message is the backend's own, passed through unchanged.
type StorageError struct {
	Kind error
	Op   string
	Key  string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == e.Kind
}

// Detail is used for log lines, where the operation and key matter.
func (e *StorageError) Detail() string {
	return fmt.Sprintf("%s %q: %s (%v)", e.Op, e.Key, e.Error(), e.Kind)
}

func newStorageError(kind error, op, key string, err error) *StorageError {
	return &StorageError{Kind: kind, Op: op, Key: key, Err: err}
}

// ValidationError is a client-fixable rejection of a single uploaded file.
type ValidationError struct {
	Filename string
	Reason   string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
