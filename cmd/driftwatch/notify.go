package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/driftwatch/internal/config"
)

// defaultSweepLimit is the number of pending alerts retried per notify run.
const defaultSweepLimit = 100

// NewNotifyCmd creates the notify command.
func NewNotifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Retry delivery of alerts that were not notified",
		Long: `Notify sends stored alerts that are still pending, for instance because the
mail provider was down during the run. Alerts below --min-severity are left
untouched. Schedule it next to "driftwatch run".

Examples:
  driftwatch notify --notifier mailgun
  driftwatch notify --min-severity critical --limit 20`,
		Args: cobra.NoArgs,
		RunE: runNotifyCmd,
	}

	cmd.Flags().Int("limit", defaultSweepLimit, "Maximum number of alerts to retry")
	cmd.Flags().StringSlice("notifier", []string{config.NotifierLog},
		"Alert notifiers: log, mailgun, webhook (repeatable)")
	cmd.Flags().String("min-severity", config.DefaultMinNotifySeverity,
		"Lowest alert severity that is notified: info, minor, relevant or critical")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this file after the sweep")

	return cmd
}

func runNotifyCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyNotifyFlags(cmd, cfg); err != nil {
		return err
	}
	if cfg.MetricsFile, err = cmd.Flags().GetString("metrics-file"); err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cmd, cfg)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // nothing useful to do on close failure

	ctx, cancel := signalContext(cmd.Context(), a.logger)
	defer cancel()

	client, err := a.httpClient()
	if err != nil {
		return err
	}
	res, err := a.newDispatcher(client.HTTPClient()).Sweep(ctx, limit)
	if err != nil {
		return err
	}
	a.writeMetrics()

	fmt.Fprintf(cmd.OutOrStdout(), "Delivered %d of %d pending alert(s)\n", res.Delivered, res.Attempted)
	if res.Failed > 0 {
		return fmt.Errorf("%d alert(s) could not be delivered", res.Failed)
	}
	return nil
}
