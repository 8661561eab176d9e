package types

import "errors"

// Domain errors shared across packages
var (
	// ErrOutsideRoot is returned when a requested path escapes the project root
	ErrOutsideRoot = errors.New("path is outside the project root")
	// ErrInvalidScope is returned when a scope path does not name a directory
	ErrInvalidScope = errors.New("scope must be an existing directory")
	// ErrNotBuilt is returned when an index has never been built
	ErrNotBuilt = errors.New("index not built")
	// ErrEmptyQuery is returned when a required query string is empty
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrInvalidChunking is returned for a non-positive window or negative overlap
	ErrInvalidChunking = errors.New("invalid chunk parameters")
	// ErrEmptyContent is returned when a memory item has no content
	ErrEmptyContent = errors.New("memory content cannot be empty")

	// Record validation errors
	ErrInvalidLineRange = errors.New("line numbers must be positive and ordered")
	ErrMissingPath      = errors.New("path is required")
	ErrMissingName      = errors.New("name is required")
)
