package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
// Secrets are only ever read from the environment, never from the configuration file.
const (
	EnvFirecrawlAPIKey  = "FIRECRAWL_API_KEY"
	EnvOpenRouterAPIKey = "OPENROUTER_API_KEY"
	EnvOpenAIAPIKey     = "OPENAI_API_KEY"
	EnvAnthropicAPIKey  = "ANTHROPIC_API_KEY"
	EnvOllamaHost       = "OLLAMA_HOST"
	EnvMailgunAPIKey    = "MAILGUN_API_KEY"
	EnvMailgunDomain    = "MAILGUN_DOMAIN"
	EnvMailgunFrom      = "MAILGUN_FROM"
	EnvWebhookURL       = "DRIFTWATCH_WEBHOOK_URL"
	EnvIngestURL        = "DRIFTWATCH_INGEST_URL"
	EnvTenantID         = "DRIFTWATCH_TENANT_ID"
	EnvDSN              = "DRIFTWATCH_DSN"
	EnvRedisAddr        = "DRIFTWATCH_REDIS_ADDR"
	EnvWorkers          = "DRIFTWATCH_WORKERS"
)

// LoadEnvFile loads variables from a .env file into the process environment.
// Variables already set in the environment win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv fills secrets and connection settings from the process environment.
func (c *Config) ApplyEnv() {
	c.applyEnv(os.Getenv)
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}

	set(&c.FirecrawlAPIKey, EnvFirecrawlAPIKey)
	set(&c.OpenAIAPIKey, EnvOpenRouterAPIKey, EnvOpenAIAPIKey)
	set(&c.AnthropicAPIKey, EnvAnthropicAPIKey)
	set(&c.OllamaHost, EnvOllamaHost)
	set(&c.MailgunAPIKey, EnvMailgunAPIKey)
	set(&c.MailgunDomain, EnvMailgunDomain)
	set(&c.MailgunFrom, EnvMailgunFrom)
	set(&c.WebhookURL, EnvWebhookURL)
	set(&c.IngestURL, EnvIngestURL)
	set(&c.TenantID, EnvTenantID)
	set(&c.DSN, EnvDSN)
	set(&c.RedisAddr, EnvRedisAddr)

	if v := getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if c.DSN != "" && c.StoreDriver == DriverSQLite && isPostgresDSN(c.DSN) {
		c.StoreDriver = DriverPostgres
	}
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
