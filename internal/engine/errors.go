package engine

import "errors"

var (
	// ErrScoutDisabled is returned when running a disabled scout. No execution record is created.
	ErrScoutDisabled = errors.New("scout is disabled")

	// ErrFetcherUnavailable is the failure reason of a run whose every fetch
	// failed because the content fetcher was unavailable.
	ErrFetcherUnavailable = errors.New("content fetcher unavailable for every critical url")

	// ErrStoreRejectedWrites is the failure reason of a run whose every
	// record write failed.
	ErrStoreRejectedWrites = errors.New("store rejected every write")
)
