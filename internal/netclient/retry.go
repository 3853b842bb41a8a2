package netclient

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"
)

// transientPatterns are substrings of error messages from libraries that do
// not expose typed errors (SOCKS dialer, some API clients).
var transientPatterns = []string{
	"timeout",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"broken pipe",
	"temporary failure",
	"network is unreachable",
	"server closed idle connection",
}

// IsTransient reports whether err is a network error worth retrying:
// timeouts, refused or reset connections, truncated responses and temporary
// DNS failures. Cancellation, redirect loops and HTTP status errors are conclusive.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrTooManyRedirects) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Retry calls fn once, then up to retries more times while it fails with a
// transient error. Each attempt gets its own context bounded by attemptTimeout
// (zero means no per-attempt bound). Retry stops early when ctx is done.
// It returns the error of the last attempt and the number of attempts made.
func Retry(ctx context.Context, retries int, attemptTimeout time.Duration, fn func(ctx context.Context) error) (int, error) {
	var err error
	attempts := 0
	for attempts <= retries {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			return attempts, err
		}

		attempts++
		err = runAttempt(ctx, attemptTimeout, fn)
		if err == nil || !IsTransient(err) {
			return attempts, err
		}
	}
	return attempts, err
}

func runAttempt(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}
