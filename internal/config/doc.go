// Package config provides configuration structures and utilities for driftwatch.
// It defines the engine settings (concurrency, timeouts, rate limits), the
// collaborator selection (fetcher, analyzer, notifier, store), the scout
// configuration file format, and secret loading from the environment.
package config
