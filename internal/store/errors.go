package store

import (
	"errors"
)

var (
	ErrInvalidKey       = errors.New("invalid key")
	ErrInvalidValue     = errors.New("invalid value")
	ErrNotFound         = errors.New("item not found")
	ErrEmbeddingFailure = errors.New("embedding failed")
	ErrRevisionConflict = errors.New("revision conflict")
)

// IsRetryable reports whether the operation may succeed if repeated unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEmbeddingFailure) || errors.Is(err, ErrRevisionConflict)
}
