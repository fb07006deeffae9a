package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a compare-and-set write lost to a concurrent
	// change, or a unique key is already taken.
	ErrConflict = errors.New("entity was modified concurrently")
)
