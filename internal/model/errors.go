package model

import "errors"

var (
	// ErrNotFound is returned when a user, notification or pet does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPreconditionMissing is returned when required scoped config is absent.
	ErrPreconditionMissing = errors.New("precondition missing")
)
