// ABOUTME: Shared errors and helpers for partforge persistence
// ABOUTME: All entity store methods hang off SQLiteStore in this package

package store

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned on unique-key violations or when deleting an
// entity that still has dependents.
var ErrConflict = errors.New("conflict")

// isConstraintViolation checks if the error is a SQLite constraint violation.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "FOREIGN KEY constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// nullString returns nil for empty strings so they land as SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullPtr converts a *string to a driver value, NULL when nil.
func nullPtr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
