package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/driftwatch/internal/config"
	"github.com/nao1215/driftwatch/internal/engine"
	"github.com/nao1215/driftwatch/internal/model"
	"github.com/nao1215/driftwatch/internal/report"
	"github.com/nao1215/driftwatch/internal/runlock"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [scout...]",
		Short: "Run scouts once and report drift",
		Long: `Run executes each named scout once: it fetches every critical URL, validates
the links found on it, compares it with the previous run, and raises alerts.

The scout definition from the configuration file is synced to the database
before the run. A scout disabled with "driftwatch scouts disable" is not run.
Only one run per scout can be active at a time; set DRIFTWATCH_REDIS_ADDR to
share that lock between hosts.

Examples:
  # Run one scout
  driftwatch run example-shop

  # Run every configured scout, skipping disabled ones
  driftwatch run --all

  # Write a Markdown report and export Prometheus metrics
  driftwatch run --all --markdown -o report.md --metrics-file /var/lib/node_exporter/driftwatch.prom`,
		Args: cobra.ArbitraryArgs,
		RunE: runRunCmd,
	}

	cmd.Flags().BoolP("all", "a", false, "Run every configured scout")

	// Run behavior flags
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		fmt.Sprintf("Number of critical URLs processed concurrently (1-%d)", config.MaxWorkers))
	cmd.Flags().Duration("budget", config.DefaultRunBudget,
		"Wall-clock budget of a run; URLs not started in time are skipped")
	cmd.Flags().DurationP("timeout", "t", config.DefaultLinkTimeout, "Timeout of each link check")
	cmd.Flags().Duration("fetch-timeout", config.DefaultFetchTimeout, "Timeout of each content fetch")
	cmd.Flags().Int("max-links", config.DefaultMaxLinksPerPage,
		"Maximum discovered internal links validated per page (0 disables)")
	cmd.Flags().String("proxy", "", "SOCKS5 proxy address for outbound requests (host:port)")

	// Collaborator flags
	cmd.Flags().String("fetcher", config.FetcherDirect, "Content fetcher: direct or firecrawl")
	cmd.Flags().String("analyzer", config.AnalyzerNone,
		"Content analyzer: none, openrouter, openai, anthropic or ollama")
	cmd.Flags().String("model", config.DefaultAnalyzerModel, "Model used by the content analyzer")
	cmd.Flags().StringSlice("notifier", []string{config.NotifierLog},
		"Alert notifiers: log, mailgun, webhook (repeatable)")
	cmd.Flags().String("min-severity", config.DefaultMinNotifySeverity,
		"Lowest alert severity that is notified: info, minor, relevant or critical")

	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this file after the run")
	cmd.Flags().String("ingest-url", "", "Post a summary of each run to this endpoint (overrides DRIFTWATCH_INGEST_URL)")
	addReportFlags(cmd)

	return cmd
}

// applyRunFlags copies the run flags the user set over cfg.
// Unset flags leave values from the environment in place.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("workers") {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return err
		}
	}
	if cfg.RunBudget, err = flags.GetDuration("budget"); err != nil {
		return err
	}
	if cfg.LinkTimeout, err = flags.GetDuration("timeout"); err != nil {
		return err
	}
	if cfg.FetchTimeout, err = flags.GetDuration("fetch-timeout"); err != nil {
		return err
	}
	if cfg.MaxLinksPerPage, err = flags.GetInt("max-links"); err != nil {
		return err
	}
	if flags.Changed("proxy") {
		if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
			return err
		}
	}
	if cfg.Fetcher, err = flags.GetString("fetcher"); err != nil {
		return err
	}
	if cfg.AnalyzerProvider, err = flags.GetString("analyzer"); err != nil {
		return err
	}
	if cfg.AnalyzerModel, err = flags.GetString("model"); err != nil {
		return err
	}
	if err := applyNotifyFlags(cmd, cfg); err != nil {
		return err
	}
	if flags.Changed("ingest-url") {
		if cfg.IngestURL, err = flags.GetString("ingest-url"); err != nil {
			return err
		}
	}
	cfg.MetricsFile, err = flags.GetString("metrics-file")
	return err
}

// applyNotifyFlags copies the notifier flags shared by run and notify.
func applyNotifyFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.Notifiers, err = cmd.Flags().GetStringSlice("notifier"); err != nil {
		return err
	}
	cfg.MinNotifySeverity, err = cmd.Flags().GetString("min-severity")
	return err
}

// selectScouts returns the scout names to run.
func selectScouts(file *config.File, args []string, all bool) ([]string, error) {
	if all {
		if len(args) > 0 {
			return nil, errors.New("--all cannot be combined with scout names")
		}
		names := file.ScoutNames()
		if len(names) == 0 {
			return nil, errors.New("no scouts configured (run 'driftwatch init' to create a configuration file)")
		}
		return names, nil
	}
	if len(args) == 0 {
		return nil, errors.New("no scouts provided (specify scout names or use --all)")
	}
	for _, name := range args {
		if _, ok := file.Scouts[name]; !ok {
			return nil, fmt.Errorf("%w: %s", config.ErrScoutNotFound, name)
		}
	}
	return args, nil
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}
	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}
	names, err := selectScouts(cfg.Scouts, args, all)
	if err != nil {
		return err
	}
	opts, err := getReportOptions(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cmd, cfg)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // nothing useful to do on close failure

	ctx, cancel := signalContext(cmd.Context(), a.logger)
	defer cancel()

	eng, err := a.newEngine()
	if err != nil {
		return err
	}
	locker := a.newLocker()
	ingest, err := a.newIngestPublisher()
	if err != nil {
		return err
	}

	w, closeReport, err := openReportWriter(cmd, opts)
	if err != nil {
		return err
	}
	defer closeReport() //nolint:errcheck // written data is already flushed by the writers

	var failures []string
	for _, name := range names {
		if ctx.Err() != nil {
			failures = append(failures, name+": interrupted")
			continue
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "Running scout %s...\n", name)
		start := time.Now()

		res, err := runScout(ctx, a, eng, locker, name)
		if errors.Is(err, engine.ErrScoutDisabled) && all {
			a.logger.Info("skipping disabled scout", "scout", name)
			continue
		}
		if err != nil {
			a.logger.Error("run failed", "scout", name, "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Scout %s %s in %s\n", name, res.Status, time.Since(start).Round(time.Millisecond))

		// The report is written even when the run was interrupted.
		rep, err := report.Load(context.WithoutCancel(ctx), a.store, res.ExecutionID)
		if err != nil {
			a.logger.Error("failed to load report", "scout", name, "error", err)
		} else {
			if _, err := w.Write(rep); err != nil {
				a.logger.Error("failed to write report", "scout", name, "error", err)
			}
			if ingest != nil {
				if err := ingest.Publish(context.WithoutCancel(ctx), rep); err != nil {
					a.logger.Warn("failed to publish run summary", "scout", name, "error", err)
				}
			}
		}

		if res.Status == model.StatusFailed {
			failures = append(failures, fmt.Sprintf("%s: %s", name, res.Error))
		}
	}

	a.writeMetrics()

	if len(failures) > 0 {
		return fmt.Errorf("%d of %d scout run(s) failed:\n  %s",
			len(failures), len(names), strings.Join(failures, "\n  "))
	}
	return nil
}

// runScout syncs the scout into the store and runs it under its run lock.
func runScout(ctx context.Context, a *app, eng *engine.Engine, locker runlock.Locker, name string) (*model.ExecutionResult, error) {
	scout, err := syncScout(ctx, a, name)
	if err != nil {
		return nil, err
	}

	lock, err := locker.Acquire(ctx, scout.ID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("failed to release run lock", "scout", name, "error", err)
		}
	}()

	return eng.RunExecution(ctx, scout)
}

// syncScout writes the configured scout to the store and returns the stored
// version, which carries the enabled flag and the last execution.
func syncScout(ctx context.Context, a *app, name string) (*model.Scout, error) {
	scout, err := a.cfg.Scouts.GetScout(name)
	if err != nil {
		return nil, err
	}
	if err := a.store.UpsertScout(ctx, scout); err != nil {
		return nil, err
	}
	return a.store.GetScout(ctx, name)
}
