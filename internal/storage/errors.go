package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// Offset converts a zero-based page into a row offset. Negative pages are treated as 0.
func Offset(page, limit int) int {
	if page < 0 {
		page = 0
	}
	return page * limit
}
