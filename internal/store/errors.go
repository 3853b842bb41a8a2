package store

import "errors"

var (
	// ErrNotFound is returned when a scout or an execution does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotRunning is returned when updating an execution that already reached a terminal state.
	ErrNotRunning = errors.New("execution is not running")

	// ErrUnsupportedDriver is returned for drivers other than sqlite and postgres.
	ErrUnsupportedDriver = errors.New("unsupported store driver")
)
