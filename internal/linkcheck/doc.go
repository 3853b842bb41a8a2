// Package linkcheck validates the reachability of URLs.
//
// A URL is broken when the request fails, times out, or answers with a
// status >= 400. Each URL gets a bounded timeout and at most one retry on a
// transient network error; HTTP error statuses are conclusive and never
// retried. Validation never fails: every URL yields a result.
package linkcheck
