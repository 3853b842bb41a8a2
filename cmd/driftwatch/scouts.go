package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/driftwatch/internal/config"
)

// NewScoutsCmd creates the scouts command and its subcommands.
func NewScoutsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scouts",
		Short: "Manage monitored scouts",
		Long: `Scouts lists and manages the scouts stored in the database.

Scouts are defined in the configuration file and copied to the database by
"scouts sync" or by every "run". The enabled flag lives in the database, so
enabling or disabling a scout survives later syncs.`,
	}

	cmd.AddCommand(newScoutsListCmd())
	cmd.AddCommand(newScoutsSyncCmd())
	cmd.AddCommand(newScoutsToggleCmd("enable", "Enable a stored scout", true))
	cmd.AddCommand(newScoutsToggleCmd("disable", "Disable a stored scout; runs of it are refused", false))

	return cmd
}

func newScoutsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored scouts with their next due run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // read-only command

			scouts, err := a.store.ListScouts(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(scouts) == 0 {
				fmt.Fprintln(out, "No scouts stored.")
				fmt.Fprintln(out, "\nUse 'driftwatch scouts sync' to load scouts from the configuration file.")
				return nil
			}

			now := time.Now()
			fmt.Fprintf(out, "  %-20s  %-32s  %-8s  %-12s  %-16s  %s\n",
				"Name", "Domain", "Enabled", "Frequency", "Next Due", "Last Execution")
			for _, s := range scouts {
				next := "-"
				if s.Enabled {
					if t, err := config.NextRun(s.Frequency, now); err == nil {
						next = t.Local().Format("2006-01-02 15:04")
					} else {
						next = "invalid"
					}
				}
				last := s.LastExecutionID
				if last == "" {
					last = "-"
				}
				fmt.Fprintf(out, "  %-20s  %-32s  %-8t  %-12s  %-16s  %s\n",
					s.Name, s.Domain, s.Enabled, s.Frequency, next, last)
			}
			return nil
		},
	}
}

func newScoutsSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Copy scouts from the configuration file to the database",
		Long: `Sync validates every scout of the configuration file and stores it.
Invalid scouts are reported and skipped. Existing scouts keep their enabled flag.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // nothing useful to do on close failure

			scouts, err := cfg.Scouts.AllScouts()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var synced, invalid int
			for _, s := range scouts {
				if err := config.ValidateScout(s); err != nil {
					fmt.Fprintf(out, "  [skip] %s: %v\n", s.Name, err)
					invalid++
					continue
				}
				if err := a.store.UpsertScout(cmd.Context(), s); err != nil {
					return err
				}
				fmt.Fprintf(out, "  [ok]   %s (%s)\n", s.Name, s.Domain)
				synced++
			}
			fmt.Fprintf(out, "\nSynced %d scout(s)", synced)
			if invalid > 0 {
				fmt.Fprintf(out, ", skipped %d invalid", invalid)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

func newScoutsToggleCmd(verb, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <scout>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // nothing useful to do on close failure

			if err := a.store.SetScoutEnabled(cmd.Context(), args[0], enabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scout %s %sd\n", args[0], verb)
			return nil
		},
	}
}
