package errors

import "errors"

var (
	ErrNotFound = errors.New("service item not found")

	ErrInvalidID = errors.New("invalid service item ID format")

	ErrStatusChanged = errors.New("service item status changed concurrently")
)
