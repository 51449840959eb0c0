package statestore

import "errors"

var (
	// ErrKeyNotFound indicates that a requested key has no value.
	ErrKeyNotFound = errors.New("key not found")

	// ErrBackendClosed indicates an operation on a closed backend.
	ErrBackendClosed = errors.New("backend is closed")

	// ErrBackendOpen indicates an Open call on an already-open backend.
	ErrBackendOpen = errors.New("backend already open")

	// ErrUnknownBackend indicates an unregistered backend name.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrCorrupt indicates a value that failed frame or compression checks.
	ErrCorrupt = errors.New("corrupt stored value")

	// ErrInvalidConfig indicates unusable backend configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// IsNotFound reports whether err represents a missing key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}
