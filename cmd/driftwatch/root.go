package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for driftwatch.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "driftwatch",
		Short: "Monitor web domains for structural and content drift",
		Long: `driftwatch validates the critical URLs of monitored domains, detects new,
removed and broken links, detects meaningful content changes, and raises
severity-classified alerts.

Scouts are defined in driftwatch.yaml (see "driftwatch init"). Secrets such as
API keys are read from the environment or from a .env file.

driftwatch has no scheduler: run it from cron or a CI job.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-file", "", "Also write JSON logs to this file")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: driftwatch.yaml in current or XDG config directory)")
	cmd.PersistentFlags().String("env-file", ".env", "File with environment variables to load")
	cmd.PersistentFlags().String("db-dir", "", "Directory of the SQLite database (default: XDG data directory)")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewShowCmd())
	cmd.AddCommand(NewScoutsCmd())
	cmd.AddCommand(NewNotifyCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
