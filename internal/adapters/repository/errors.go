package repository

import "errors"

// Sentinel errors returned by every store implementation.
var (
	ErrNotFound         = errors.New("student not found")
	ErrDuplicatePending = errors.New("student already has a pending intervention")
	ErrUnknownDriver    = errors.New("unknown database driver")
)
