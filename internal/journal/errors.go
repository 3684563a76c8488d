package journal

import "errors"

var (
	// ErrNotFound is returned when no entry matches.
	ErrNotFound = errors.New("journal entry not found")

	// ErrInvalidStatus is returned for a status outside the lifecycle.
	ErrInvalidStatus = errors.New("invalid journal status")

	// ErrInvalidEntry is returned when required fields are missing.
	ErrInvalidEntry = errors.New("invalid journal entry")
)
