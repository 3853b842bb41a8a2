// Package store persists scouts, executions and everything an execution
// produces: link validations, page snapshots, URL and semantic deltas, and alerts.
//
// SQLite (via modernc.org/sqlite) is the default backend: a single CGO-free
// file under the XDG data directory. PostgreSQL (via lib/pq) is used when a
// postgres:// DSN is configured. Both share the same queries through sqlx.
//
// Snapshots and deltas are append-only. An execution can only be updated
// while it is running.
package store
