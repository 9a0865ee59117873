package jobs

import "errors"

var (
	// ErrJobNotFound is returned for operations on an unknown job id.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobTerminal is returned when a mutation targets a job that has
	// already reached a terminal status.
	ErrJobTerminal = errors.New("job already in terminal status")
	// ErrInvalidStatus is returned when a finish call passes a
	// non-terminal status.
	ErrInvalidStatus = errors.New("invalid terminal status")
)
