package demodata

import "errors"

var (
	// ErrInvalidConfig is returned for an unusable population shape.
	ErrInvalidConfig = errors.New("invalid demo config")
	// ErrVerification is returned when the running service disagrees with itself.
	ErrVerification = errors.New("verification failed")
)
