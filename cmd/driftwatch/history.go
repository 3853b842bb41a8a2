package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/driftwatch/internal/report"
	"github.com/nao1215/driftwatch/internal/store"
)

// defaultHistoryLimit is the number of executions listed by history.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [scout-or-domain]",
		Short: "List past executions",
		Long: `History lists recorded executions, most recent first.

The argument is a scout name or a domain. Without it, executions of every
domain are listed.

Examples:
  # Last 20 executions of every domain
  driftwatch history

  # Executions of one scout
  driftwatch history example-shop

  # JSON output for scripts
  driftwatch history --json -n 100 https://shop.example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Maximum number of executions (0 for all)")
	addReportFlags(cmd)

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	opts, err := getReportOptions(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cmd, cfg)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // read-only command

	ctx := cmd.Context()
	var domain string
	if len(args) == 1 {
		domain = args[0]
		scout, err := a.store.GetScout(ctx, args[0])
		switch {
		case err == nil:
			domain = scout.Domain
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
	}

	execs, err := a.store.ListExecutions(ctx, domain, limit)
	if err != nil {
		return err
	}

	w, closeReport, err := openReportWriter(cmd, opts)
	if err != nil {
		return err
	}
	defer closeReport() //nolint:errcheck // written data is already flushed by the writers

	if _, err := w.WriteHistory(execs); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// NewShowCmd creates the show command.
func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <execution-id>",
		Short: "Show the details of an execution",
		Long: `Show prints an execution with its link validations, URL changes, content
changes and alerts. Use "driftwatch history" to find execution ids.

Examples:
  driftwatch show 3f2b8c1e-6d1a-4c4e-9a57-1b2f0e7d9c10
  driftwatch show --markdown -o run.md 3f2b8c1e-6d1a-4c4e-9a57-1b2f0e7d9c10`,
		Args: cobra.ExactArgs(1),
		RunE: runShowCmd,
	}
	addReportFlags(cmd)
	return cmd
}

func runShowCmd(cmd *cobra.Command, args []string) error {
	opts, err := getReportOptions(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cmd, cfg)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // read-only command

	rep, err := report.Load(cmd.Context(), a.store, args[0])
	if err != nil {
		return err
	}

	w, closeReport, err := openReportWriter(cmd, opts)
	if err != nil {
		return err
	}
	defer closeReport() //nolint:errcheck // written data is already flushed by the writers

	_, err = w.Write(rep)
	return err
}
