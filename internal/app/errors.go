package service

import "errors"

// Sentinel errors returned by the service.
var (
	// ErrInvalidArgument marks caller input outside the accepted range.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDataUnavailable marks a collaborator failure on a call that has no
	// neutral default to fall back to.
	ErrDataUnavailable = errors.New("data unavailable")
)
