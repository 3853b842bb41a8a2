package runlock

import "errors"

var (
	// ErrLocked is returned when another run of the scout holds the lock.
	ErrLocked = errors.New("scout is already running")

	// ErrNotHeld is returned when releasing a lock that expired or was taken over.
	ErrNotHeld = errors.New("run lock is no longer held")
)
