package repository

import "errors"

var (
	// ErrInvalidID is returned when an identifier is not well-formed for
	// the store's id type.
	ErrInvalidID = errors.New("invalid identifier")

	// ErrInvalidArgument is returned when a payload or filter carries a
	// disallowed field, such as the identifier key.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAlreadyExists is returned on a uniqueness conflict, whether it
	// was caught by the pre-check or by the store's duplicate-key signal.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound is returned when a relation id cannot be resolved to a
	// live entity. Plain lookups report absence as a nil result instead.
	ErrNotFound = errors.New("not found")
)
