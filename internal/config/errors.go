package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and ValidateScout() so that
// callers can use errors.Is() while still getting a human-readable message.
var (
	// ErrInvalidWorkers is returned when the worker count is outside 1..MaxWorkers.
	ErrInvalidWorkers = errors.New("invalid workers: must be between 1 and 16")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRetries is returned when the retry count is negative.
	ErrInvalidRetries = errors.New("invalid retries: must be non-negative")

	// ErrInvalidRedirects is returned when the redirect limit is negative.
	ErrInvalidRedirects = errors.New("invalid max redirects: must be non-negative")

	// ErrInvalidMaxLinks is returned when the discovered-link cap is negative.
	ErrInvalidMaxLinks = errors.New("invalid max links per page: must be non-negative")

	// ErrInvalidRateLimit is returned when the rate limit or burst is not positive.
	ErrInvalidRateLimit = errors.New("invalid rate limit: rate and burst must be positive")

	// ErrInvalidRunBudget is returned when the run budget is not positive.
	ErrInvalidRunBudget = errors.New("invalid run budget: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidNotifySeverity is returned when the minimum notify severity is unknown.
	ErrInvalidNotifySeverity = errors.New("invalid notify severity: must be info, minor, relevant or critical")

	// ErrUnknownFetcher is returned when the fetcher kind is not supported.
	ErrUnknownFetcher = errors.New("unknown fetcher: must be direct or firecrawl")

	// ErrMissingFirecrawlKey is returned when the Firecrawl fetcher has no API key.
	ErrMissingFirecrawlKey = errors.New("firecrawl fetcher requires FIRECRAWL_API_KEY")

	// ErrUnknownAnalyzer is returned when the analyzer provider is not supported.
	ErrUnknownAnalyzer = errors.New("unknown analyzer: must be none, openrouter, openai, anthropic or ollama")

	// ErrMissingAnalyzerKey is returned when the analyzer provider needs an API key.
	ErrMissingAnalyzerKey = errors.New("analyzer provider requires an API key")

	// ErrUnknownNotifier is returned when a notifier kind is not supported.
	ErrUnknownNotifier = errors.New("unknown notifier: must be log, mailgun or webhook")

	// ErrMissingMailgunConfig is returned when Mailgun is enabled without credentials.
	ErrMissingMailgunConfig = errors.New("mailgun notifier requires MAILGUN_API_KEY, MAILGUN_DOMAIN and MAILGUN_FROM")

	// ErrMissingWebhookURL is returned when the webhook notifier has no URL.
	ErrMissingWebhookURL = errors.New("webhook notifier requires a URL")

	// ErrInvalidIngestURL is returned when the run summary endpoint is not an http(s) URL.
	ErrInvalidIngestURL = errors.New("ingest URL must be an absolute http or https URL")

	// ErrUnknownStoreDriver is returned when the store driver is not supported.
	ErrUnknownStoreDriver = errors.New("unknown store driver: must be sqlite or postgres")

	// ErrMissingDSN is returned when the postgres driver has no DSN.
	ErrMissingDSN = errors.New("postgres store requires DRIFTWATCH_DSN")

	// ErrMissingDBDir is returned when the sqlite driver has no directory.
	ErrMissingDBDir = errors.New("sqlite store requires a database directory")

	// ErrInvalidScout is the parent of every scout validation error.
	ErrInvalidScout = errors.New("invalid scout")

	// ErrScoutNotFound is returned when a named scout is not in the configuration file.
	ErrScoutNotFound = errors.New("scout not found in configuration")
)
