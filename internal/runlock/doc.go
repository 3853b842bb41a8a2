// Package runlock provides mutual exclusion between runs of the same scout.
//
// Two implementations exist: Redis, for several driftwatch processes sharing
// one database, and Local, for a single process. A lock is keyed by scout
// name and expires on its own after a TTL so that a crashed process cannot
// block a scout forever.
package runlock
