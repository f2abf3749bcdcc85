package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a thread does not exist or belongs to
	// another tenant.
	ErrNotFound = errors.New("thread not found")

	// ErrConflict is returned when an item with the given ID already exists
	// in the thread.
	ErrConflict = errors.New("item already exists")

	// ErrInvalidCursor is returned when a pagination cursor cannot be decoded.
	ErrInvalidCursor = errors.New("invalid cursor")
)
