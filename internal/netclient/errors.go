package netclient

import "errors"

var (
	// ErrInvalidProxyAddress is returned when the proxy address format is invalid.
	// Expected format is "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrTooManyRedirects is returned when a request exceeds the redirect limit.
	// It is conclusive: the request is not retried.
	ErrTooManyRedirects = errors.New("too many redirects")
)
