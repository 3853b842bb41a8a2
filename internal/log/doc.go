// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// The SecureHandler masks:
//   - HTTP headers (Authorization, Cookie, X-Api-Key)
//   - Collaborator credentials (Firecrawl, OpenRouter, Anthropic, Mailgun keys)
//   - Passwords embedded in URLs such as PostgreSQL DSNs
//
// Even in verbose mode, sensitive values are masked so that logs attached to
// alert tickets never leak credentials.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Info("store opened", "dsn", "postgres://app:pw@db/driftwatch")
//	// dsn=postgres://app:***REDACTED***@db/driftwatch
//
// NewFanoutLogger additionally writes a JSON copy of every record to a file.
package log
