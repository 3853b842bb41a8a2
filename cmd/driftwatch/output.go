package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/driftwatch/internal/report"
	"github.com/spf13/cobra"
)

// addReportFlags registers the report format flags shared by run, show and history.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")
}

// reportOptions are the parsed report format flags.
type reportOptions struct {
	json     bool
	markdown bool
	path     string
	verbose  bool
}

func getReportOptions(cmd *cobra.Command) (reportOptions, error) {
	var (
		opts reportOptions
		err  error
	)
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.path, err = cmd.Flags().GetString("output"); err != nil {
		return opts, err
	}
	if opts.verbose, err = cmd.Flags().GetBool("verbose"); err != nil {
		return opts, err
	}
	return opts, nil
}

// newReportWriter returns the writer for the requested format.
func newReportWriter(out io.Writer, opts reportOptions) report.Writer {
	switch {
	case opts.json:
		return report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint())
	case opts.markdown:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(opts.verbose))
	}
}

// openReportWriter opens the report destination and returns its writer.
// The returned close function must be called when writing is done.
func openReportWriter(cmd *cobra.Command, opts reportOptions) (report.Writer, func() error, error) {
	if opts.path == "" {
		return newReportWriter(cmd.OutOrStdout(), opts), func() error { return nil }, nil
	}

	if dir := filepath.Dir(opts.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	// Reports can contain customer URLs and prices, so only the owner may read them.
	f, err := os.OpenFile(opts.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return newReportWriter(f, opts), f.Close, nil
}
