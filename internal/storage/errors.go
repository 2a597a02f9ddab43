package storage

import "errors"

// Shared error kinds for the storage services. Callers match with
// errors.Is; the HTTP layer maps them to status codes.
var (
	// ErrValidation marks malformed input. No mutation is attempted.
	ErrValidation = errors.New("invalid input")
	// ErrNotFound marks an operation referencing a nonexistent row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey marks a username collision on creation.
	ErrDuplicateKey = errors.New("already exists")
	// ErrUnauthorized marks a credential mismatch. It deliberately does not
	// distinguish an unknown username from a wrong password.
	ErrUnauthorized = errors.New("invalid credentials")
)
