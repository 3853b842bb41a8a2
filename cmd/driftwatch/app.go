package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/nao1215/driftwatch/internal/alert"
	"github.com/nao1215/driftwatch/internal/analyzer"
	"github.com/nao1215/driftwatch/internal/config"
	"github.com/nao1215/driftwatch/internal/engine"
	"github.com/nao1215/driftwatch/internal/fetcher"
	"github.com/nao1215/driftwatch/internal/linkcheck"
	"github.com/nao1215/driftwatch/internal/log"
	"github.com/nao1215/driftwatch/internal/metrics"
	"github.com/nao1215/driftwatch/internal/model"
	"github.com/nao1215/driftwatch/internal/netclient"
	"github.com/nao1215/driftwatch/internal/notify"
	"github.com/nao1215/driftwatch/internal/report"
	"github.com/nao1215/driftwatch/internal/runlock"
	"github.com/nao1215/driftwatch/internal/store"
)

// app holds what every command needs: configuration, logger and store.
// Commands that run scouts or send alerts build the rest on demand.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   store.Store
	metrics *metrics.Metrics

	closers []func() error
}

// loadConfig builds the configuration from defaults, the environment and
// the global flags, and loads the scout file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	envFile, err := flags.GetString("env-file")
	if err != nil {
		return nil, err
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg := config.NewConfig()
	cfg.ApplyEnv()

	if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
		return nil, err
	}
	if cfg.LogFile, err = flags.GetString("log-file"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	// An explicitly named file must exist. Without one, no scouts are configured.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		if cfg.Scouts, err = config.LoadConfigFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.Scouts = &config.File{Scouts: map[string]config.ScoutConfig{}}
	}
	return cfg, nil
}

// newApp validates cfg, sets up logging and opens the store.
func newApp(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	a := &app{cfg: cfg, metrics: metrics.New()}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		a.closers = append(a.closers, f.Close)
		a.logger = log.NewFanoutLogger(cmd.ErrOrStderr(), f, cfg.Verbose)
	} else {
		a.logger = log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		_ = a.Close() //nolint:errcheck // the open error is more useful
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, st.Close)
	a.logger.Debug("store opened", "driver", cfg.StoreDriver)
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store.SQLStore, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return store.OpenPostgres(ctx, cfg.DSN)
	default:
		return store.Open(ctx, cfg.DBDir, store.DefaultOptions())
	}
}

// Close releases everything the app opened, in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// httpClient returns the shared outbound HTTP client factory.
func (a *app) httpClient() (*netclient.Client, error) {
	c, err := netclient.NewClient(
		netclient.WithProxy(a.cfg.ProxyAddress),
		netclient.WithTimeout(a.cfg.LinkTimeout),
		netclient.WithMaxRedirects(a.cfg.MaxRedirects),
		netclient.WithUserAgent(a.cfg.UserAgent),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return c, nil
}

// newDispatcher wires the configured notifiers behind an alert dispatcher.
func (a *app) newDispatcher(client *http.Client) *alert.Dispatcher {
	return alert.NewDispatcher(a.store, a.newNotifier(client),
		alert.WithMinSeverity(a.cfg.MinSeverity()),
		alert.WithLogger(a.logger),
		alert.WithRecorder(a.metrics),
	)
}

func (a *app) newNotifier(client *http.Client) notify.Notifier {
	var notifiers notify.Multi
	for _, name := range a.cfg.Notifiers {
		switch name {
		case config.NotifierLog:
			notifiers = append(notifiers, notify.NewLog(a.logger))
		case config.NotifierMailgun:
			notifiers = append(notifiers, notify.NewMailgun(
				a.cfg.MailgunDomain, a.cfg.MailgunAPIKey, a.cfg.MailgunFrom,
				newScoutRecipients(a.store),
				notify.WithMailgunBaseURL(a.cfg.MailgunBaseURL),
				notify.WithHTTPClient(client),
			))
		case config.NotifierWebhook:
			notifiers = append(notifiers, notify.NewWebhook(client, a.cfg.WebhookURL))
		}
	}
	if len(notifiers) == 1 {
		return notifiers[0]
	}
	return notifiers
}

// newEngine wires the fetcher, link validator, analyzer and dispatcher.
// The fetcher and the validator share one rate limiter.
func (a *app) newEngine() (*engine.Engine, error) {
	client, err := a.httpClient()
	if err != nil {
		return nil, err
	}
	limiter := rate.NewLimiter(rate.Limit(a.cfg.RateLimit), a.cfg.RateBurst)

	var f fetcher.Fetcher
	switch a.cfg.Fetcher {
	case config.FetcherFirecrawl:
		f = fetcher.NewFirecrawl(client.HTTPClientWithTimeout(a.cfg.FetchTimeout), a.cfg.FirecrawlAPIKey,
			fetcher.WithFirecrawlBaseURL(a.cfg.FirecrawlBaseURL),
			fetcher.WithPageTimeout(a.cfg.FetchTimeout),
		)
	default:
		f = fetcher.NewDirect(client.HTTPClientWithTimeout(a.cfg.FetchTimeout),
			fetcher.WithMaxBodySize(a.cfg.MaxBodySize),
			fetcher.WithDirectLogger(a.logger),
		)
	}
	f = fetcher.NewRateLimited(f, limiter)

	validator := linkcheck.NewValidator(client.HTTPClient(),
		linkcheck.WithTimeout(a.cfg.LinkTimeout),
		linkcheck.WithRetries(a.cfg.LinkRetries),
		linkcheck.WithConcurrency(a.cfg.Workers),
		linkcheck.WithRateLimiter(limiter),
		linkcheck.WithLogger(a.logger),
	)

	an, err := analyzer.New(a.cfg, analyzer.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}

	return engine.NewFromConfig(a.cfg, a.store, f, validator, a.newDispatcher(client.HTTPClient()),
		engine.WithAnalyzer(an),
		engine.WithLogger(a.logger),
		engine.WithRecorder(a.metrics),
	), nil
}

// newIngestPublisher returns the run summary publisher, or nil when no
// ingest endpoint is configured.
func (a *app) newIngestPublisher() (*report.IngestPublisher, error) {
	if a.cfg.IngestURL == "" {
		return nil, nil
	}
	client, err := a.httpClient()
	if err != nil {
		return nil, err
	}
	return report.NewIngestPublisher(client.HTTPClient(), a.cfg.IngestURL,
		report.WithTenantID(a.cfg.TenantID),
	), nil
}

// newLocker returns the Redis run lock when Redis is configured and an
// in-process lock otherwise.
func (a *app) newLocker() runlock.Locker {
	if a.cfg.RedisAddr == "" {
		return runlock.NewLocal(a.cfg.LockTTL)
	}
	client := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
	a.closers = append(a.closers, client.Close)
	return runlock.NewRedis(client, a.cfg.LockTTL)
}

// writeMetrics exports the collected metrics when a metrics file is configured.
func (a *app) writeMetrics() {
	if a.cfg.MetricsFile == "" {
		return
	}
	if err := a.metrics.WriteToTextfile(a.cfg.MetricsFile); err != nil {
		a.logger.Warn("failed to write metrics", "path", a.cfg.MetricsFile, "error", err)
	}
}

// scoutRecipients resolves the recipients of an alert from the scout that
// produced its execution.
type scoutRecipients struct {
	store store.Store

	mu    sync.Mutex
	cache map[string][]string
}

func newScoutRecipients(st store.Store) *scoutRecipients {
	return &scoutRecipients{store: st, cache: make(map[string][]string)}
}

// Recipients implements notify.RecipientResolver.
func (r *scoutRecipients) Recipients(ctx context.Context, a model.Alert) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if to, ok := r.cache[a.ExecutionID]; ok {
		return to, nil
	}

	exec, err := r.store.GetExecution(ctx, a.ExecutionID)
	if err != nil {
		return nil, err
	}
	scouts, err := r.store.ListScouts(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range scouts {
		if s.ID == exec.ScoutID {
			r.cache[a.ExecutionID] = s.NotifyTo
			return s.NotifyTo, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown scout %s", notify.ErrNoRecipients, exec.ScoutID)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
