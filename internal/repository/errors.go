package repository

import "errors"

var (
	// ErrNotFound is returned when no snapshot exists for a key
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when a key or payload is unusable
	ErrInvalidInput = errors.New("invalid input")
)
