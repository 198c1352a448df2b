// Package common defines sentinel errors and small helpers shared across
// filegate components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")

	// Service-level errors (generic flow control).
	ErrInternal       = errors.New("internal error")
	ErrValidation     = errors.New("validation error")
	ErrTransientStore = errors.New("storage temporarily unavailable")

	// Authentication errors. ErrHwidMismatch is deliberately distinct from
	// ErrAuthFailed so callers can show a different message for a device
	// conflict versus a bad password.
	ErrAuthFailed      = errors.New("invalid credentials")
	ErrHwidMismatch    = errors.New("hardware fingerprint mismatch")
	ErrUnauthenticated = errors.New("authentication required")

	// Authorization errors.
	ErrPermissionDenied = errors.New("permission denied")

	// Grant-specific errors.
	ErrInvalidDuration = errors.New("invalid duration code")
)
