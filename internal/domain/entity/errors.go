package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a delivery record or recipient id does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput marks caller mistakes: an unusable notification, an
	// empty recipient target or malformed contact data.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError names the notification or recipient field that was
// rejected. It matches ErrInvalidInput under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is reports ErrInvalidInput as a match so callers need a single check.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
