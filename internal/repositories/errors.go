package repositories

import "errors"

var (
	// ErrNotFound is returned (wrapped) when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned (wrapped) when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate key")
)
