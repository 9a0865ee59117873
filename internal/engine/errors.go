package engine

import "errors"

var (
	// ErrUnknownKind is returned when a launch names a kind that was never
	// registered.
	ErrUnknownKind = errors.New("engine: unknown job kind")
	// ErrEngineUnavailable is returned when the engine is closed or at its
	// concurrency limit.
	ErrEngineUnavailable = errors.New("engine: unavailable")
	// ErrKindAlreadyRegistered is returned on a duplicate Register call.
	ErrKindAlreadyRegistered = errors.New("engine: kind already registered")
)
