package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrStatusChanged means the booking was cancelled by a concurrent request.
	ErrStatusChanged = errors.New("booking status changed concurrently")

	ErrDatesTaken = errors.New("requested dates overlap an existing booking")
)
