package docstore

import "errors"

var (
	// ErrNotFound is returned when no document exists for the given key.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicateKey is returned when a write would violate a unique
	// index. Callers use this to distinguish uniqueness conflicts from
	// other write failures.
	ErrDuplicateKey = errors.New("duplicate key")
)
