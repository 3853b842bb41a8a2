package config

import (
	"net/url"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/driftwatch/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "driftwatch"

	// DefaultWorkers is the number of critical URLs processed concurrently in one run.
	DefaultWorkers = 4

	// MaxWorkers bounds the worker pool. Monitored sites are production shops;
	// more parallelism than this looks like an attack.
	MaxWorkers = 16

	// DefaultLinkTimeout is the per-request timeout of the link validator.
	DefaultLinkTimeout = 5 * time.Second

	// DefaultLinkRetries is how many times a link check is retried on a transient network error.
	DefaultLinkRetries = 1

	// DefaultMaxRedirects is the number of redirects followed before a link counts as broken.
	DefaultMaxRedirects = 3

	// DefaultMaxLinksPerPage caps how many discovered internal links are validated per page.
	DefaultMaxLinksPerPage = 25

	// DefaultRateLimit is the number of outbound requests per second per run.
	DefaultRateLimit = 5.0

	// DefaultRateBurst is the burst size of the outbound rate limiter.
	DefaultRateBurst = 5

	// DefaultRunBudget is the wall-clock budget of a run. URLs not started
	// when it expires are skipped.
	DefaultRunBudget = 10 * time.Minute

	// DefaultFetchTimeout is the timeout of a single content fetch.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultAnalyzeTimeout is the timeout of a single content analysis call.
	DefaultAnalyzeTimeout = 45 * time.Second

	// DefaultSpecVersion is the version of the validation rules recorded on executions.
	DefaultSpecVersion = "v1.0.0"

	// DefaultUserAgent identifies driftwatch in HTTP requests.
	DefaultUserAgent = "driftwatch/1.0 (+https://github.com/nao1215/driftwatch)"

	// DefaultMaxBodySize limits the response body size read by the direct fetcher.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultMinNotifySeverity is the lowest alert severity sent to the notifier.
	DefaultMinNotifySeverity = "relevant"

	// DefaultDBFile is the SQLite database file name inside DBDir.
	DefaultDBFile = "driftwatch.db"

	// DefaultLockTTL is how long a run lock is held before it expires on its own.
	DefaultLockTTL = 30 * time.Minute

	// DefaultFirecrawlBaseURL is the Firecrawl API endpoint.
	DefaultFirecrawlBaseURL = "https://api.firecrawl.dev"

	// DefaultOpenRouterBaseURL is the OpenAI-compatible OpenRouter endpoint.
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

	// DefaultAnalyzerModel is the model used with OpenRouter.
	DefaultAnalyzerModel = "qwen/qwen-2.5-72b-instruct"

	// DefaultMailgunBaseURL is the Mailgun API endpoint.
	DefaultMailgunBaseURL = "https://api.mailgun.net"
)

// Fetcher kinds.
const (
	FetcherDirect    = "direct"
	FetcherFirecrawl = "firecrawl"
)

// Analyzer providers.
const (
	AnalyzerNone       = "none"
	AnalyzerOpenRouter = "openrouter"
	AnalyzerOpenAI     = "openai"
	AnalyzerAnthropic  = "anthropic"
	AnalyzerOllama     = "ollama"
)

// Notifier kinds.
const (
	NotifierLog     = "log"
	NotifierMailgun = "mailgun"
	NotifierWebhook = "webhook"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all configuration options for driftwatch.
// It is populated from defaults, the environment and CLI flags, and passed
// through the application via dependency injection rather than global state.
type Config struct {
	// Workers is the number of critical URLs processed concurrently.
	Workers int

	// LinkTimeout is the timeout of each link check attempt.
	LinkTimeout time.Duration

	// LinkRetries is the number of retries of a link check on transient network errors.
	LinkRetries int

	// MaxRedirects is the number of redirects a link check follows.
	MaxRedirects int

	// MaxLinksPerPage caps the discovered internal links validated per page.
	// Zero disables validation of discovered links.
	MaxLinksPerPage int

	// RateLimit is the outbound request rate in requests per second.
	RateLimit float64

	// RateBurst is the burst size of the outbound rate limiter.
	RateBurst int

	// RunBudget is the wall-clock budget of a run.
	RunBudget time.Duration

	// FetchTimeout is the timeout of a single content fetch.
	FetchTimeout time.Duration

	// AnalyzeTimeout is the timeout of a single content analysis call.
	AnalyzeTimeout time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes read by the direct fetcher.
	MaxBodySize int64

	// ProxyAddress is an optional SOCKS5 proxy ("host:port") for all outbound requests.
	ProxyAddress string

	// SpecVersion is recorded on every execution.
	SpecVersion string

	// MinNotifySeverity is the lowest alert severity handed to the notifier.
	MinNotifySeverity string

	// Fetcher selects the content fetcher: "direct" or "firecrawl".
	Fetcher string

	// FirecrawlAPIKey authenticates against Firecrawl. Read from FIRECRAWL_API_KEY.
	FirecrawlAPIKey string

	// FirecrawlBaseURL is the Firecrawl API endpoint.
	FirecrawlBaseURL string

	// AnalyzerProvider selects the content analyzer backend.
	AnalyzerProvider string

	// AnalyzerModel is the model name passed to the analyzer backend.
	AnalyzerModel string

	// AnalyzerBaseURL overrides the analyzer endpoint (OpenAI-compatible providers).
	AnalyzerBaseURL string

	// OpenAIAPIKey authenticates against OpenRouter or OpenAI.
	// Read from OPENROUTER_API_KEY or OPENAI_API_KEY.
	OpenAIAPIKey string

	// AnthropicAPIKey authenticates against Anthropic. Read from ANTHROPIC_API_KEY.
	AnthropicAPIKey string

	// OllamaHost is the Ollama server URL.
	OllamaHost string

	// Notifiers lists the notification channels alerts are sent to.
	Notifiers []string

	// MailgunAPIKey, MailgunDomain and MailgunFrom configure the Mailgun notifier.
	MailgunAPIKey  string
	MailgunDomain  string
	MailgunFrom    string
	MailgunBaseURL string

	// WebhookURL is the endpoint of the webhook notifier.
	WebhookURL string

	// IngestURL receives a summary of every finished run when set.
	// Read from DRIFTWATCH_INGEST_URL.
	IngestURL string

	// TenantID identifies this installation in run summaries.
	TenantID string

	// StoreDriver selects the database: "sqlite" or "postgres".
	StoreDriver string

	// DSN is the PostgreSQL connection string. Read from DRIFTWATCH_DSN.
	DSN string

	// DBDir is the directory of the SQLite database.
	// Defaults to XDG data directory (~/.local/share/driftwatch on Linux).
	DBDir string

	// RedisAddr enables the distributed run lock when set. Read from DRIFTWATCH_REDIS_ADDR.
	RedisAddr string

	// LockTTL is the expiry of a run lock.
	LockTTL time.Duration

	// MetricsFile is where Prometheus metrics are written after a run, in textfile format.
	MetricsFile string

	// LogFile receives a JSON copy of the logs when set.
	LogFile string

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool

	// ConfigFilePath is the path to the scout configuration file.
	ConfigFilePath string

	// Scouts holds the scout definitions loaded from the configuration file.
	Scouts *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Workers:           DefaultWorkers,
		LinkTimeout:       DefaultLinkTimeout,
		LinkRetries:       DefaultLinkRetries,
		MaxRedirects:      DefaultMaxRedirects,
		MaxLinksPerPage:   DefaultMaxLinksPerPage,
		RateLimit:         DefaultRateLimit,
		RateBurst:         DefaultRateBurst,
		RunBudget:         DefaultRunBudget,
		FetchTimeout:      DefaultFetchTimeout,
		AnalyzeTimeout:    DefaultAnalyzeTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		SpecVersion:       DefaultSpecVersion,
		MinNotifySeverity: DefaultMinNotifySeverity,
		Fetcher:           FetcherDirect,
		FirecrawlBaseURL:  DefaultFirecrawlBaseURL,
		AnalyzerProvider:  AnalyzerNone,
		AnalyzerModel:     DefaultAnalyzerModel,
		Notifiers:         []string{NotifierLog},
		MailgunBaseURL:    DefaultMailgunBaseURL,
		StoreDriver:       DriverSQLite,
		DBDir:             XDGDataDir(),
		LockTTL:           DefaultLockTTL,
	}
}

// XDGDataDir returns the XDG data directory for driftwatch.
// On Linux: ~/.local/share/driftwatch
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for driftwatch.
// On Linux: ~/.config/driftwatch
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DBPath returns the SQLite database path.
func (c *Config) DBPath() string {
	return filepath.Join(c.DBDir, DefaultDBFile)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
func (c *Config) Validate() error {
	if c.Workers <= 0 || c.Workers > MaxWorkers {
		return ErrInvalidWorkers
	}
	if c.LinkTimeout <= 0 || c.FetchTimeout <= 0 || c.AnalyzeTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.LinkRetries < 0 {
		return ErrInvalidRetries
	}
	if c.MaxRedirects < 0 {
		return ErrInvalidRedirects
	}
	if c.MaxLinksPerPage < 0 {
		return ErrInvalidMaxLinks
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return ErrInvalidRateLimit
	}
	if c.RunBudget <= 0 {
		return ErrInvalidRunBudget
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if _, err := model.ParseSeverity(c.MinNotifySeverity); err != nil {
		return ErrInvalidNotifySeverity
	}

	switch c.Fetcher {
	case FetcherDirect:
	case FetcherFirecrawl:
		if c.FirecrawlAPIKey == "" {
			return ErrMissingFirecrawlKey
		}
	default:
		return ErrUnknownFetcher
	}

	switch c.AnalyzerProvider {
	case AnalyzerNone, AnalyzerOllama:
	case AnalyzerOpenRouter, AnalyzerOpenAI:
		if c.OpenAIAPIKey == "" {
			return ErrMissingAnalyzerKey
		}
	case AnalyzerAnthropic:
		if c.AnthropicAPIKey == "" {
			return ErrMissingAnalyzerKey
		}
	default:
		return ErrUnknownAnalyzer
	}

	for _, n := range c.Notifiers {
		switch n {
		case NotifierLog:
		case NotifierMailgun:
			if c.MailgunAPIKey == "" || c.MailgunDomain == "" || c.MailgunFrom == "" {
				return ErrMissingMailgunConfig
			}
		case NotifierWebhook:
			if c.WebhookURL == "" {
				return ErrMissingWebhookURL
			}
		default:
			return ErrUnknownNotifier
		}
	}

	if c.IngestURL != "" {
		u, err := url.Parse(c.IngestURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ErrInvalidIngestURL
		}
	}

	switch c.StoreDriver {
	case DriverSQLite:
		if c.DBDir == "" {
			return ErrMissingDBDir
		}
	case DriverPostgres:
		if c.DSN == "" {
			return ErrMissingDSN
		}
	default:
		return ErrUnknownStoreDriver
	}

	return nil
}

// HasNotifier reports whether the named notifier is enabled.
func (c *Config) HasNotifier(name string) bool {
	return slices.Contains(c.Notifiers, name)
}

// MinSeverity returns MinNotifySeverity as a model.Severity.
// Unparseable values fall back to the default.
func (c *Config) MinSeverity() model.Severity {
	s, err := model.ParseSeverity(c.MinNotifySeverity)
	if err != nil {
		return model.SeverityRelevant
	}
	return s
}
