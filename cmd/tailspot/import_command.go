package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tailspot/internal/config"
	"tailspot/internal/importer"
	"tailspot/internal/logging"
	"tailspot/internal/notifications"
	"tailspot/internal/store"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var formatFlag string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a flight-log export and queue new registrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var format importer.Format
			if strings.TrimSpace(formatFlag) != "" {
				format, err = importer.ParseFormat(formatFlag)
				if err != nil {
					return err
				}
			}

			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve import path: %w", err)
			}

			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			svc := importer.NewService(st, cfg, notifications.NewService(cfg), logging.NewNop())
			report, err := svc.ImportFile(cmd.Context(), path, format, dryRun)
			if err != nil {
				return err
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, importReportPayload(report))
			}
			printImportReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVar(&formatFlag, "format", "", "Export format (fr24 or airtrail); inferred from the extension when omitted")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and resolve without writing flights or jobs")
	return cmd
}

func printImportReport(out io.Writer, report *importer.Report) {
	if report.DryRun {
		fmt.Fprintf(out, "Dry run: %d of %d rows would import (%s)\n", report.Imported, report.Rows, report.Format)
	} else {
		fmt.Fprintf(out, "Imported %d of %d rows (%s)\n", report.Imported, report.Rows, report.Format)
	}
	if report.Skipped > 0 {
		fmt.Fprintf(out, "  Skipped %d rows already on file\n", report.Skipped)
	}
	if len(report.Registrations) > 0 {
		fmt.Fprintf(out, "  New registrations: %s\n", strings.Join(report.Registrations, ", "))
	}
	if !report.DryRun {
		fmt.Fprintf(out, "  Scrape jobs queued: %d\n", report.JobsCreated)
	}
	if report.Failed > 0 {
		fmt.Fprintf(out, "  Rejected %d rows:\n", report.Failed)
		for _, failure := range report.Failures {
			fmt.Fprintf(out, "    row %d: %s\n", failure.Row, failure.Reason)
		}
	}
}

func importReportPayload(report *importer.Report) any {
	type rowFailure struct {
		Row    int    `json:"row"`
		Reason string `json:"reason"`
	}
	failures := make([]rowFailure, 0, len(report.Failures))
	for _, failure := range report.Failures {
		failures = append(failures, rowFailure{Row: failure.Row, Reason: failure.Reason})
	}
	return struct {
		BatchID       string       `json:"batch_id"`
		Format        string       `json:"format"`
		DryRun        bool         `json:"dry_run"`
		Rows          int          `json:"rows"`
		Imported      int          `json:"imported"`
		Skipped       int          `json:"skipped"`
		Failed        int          `json:"failed"`
		Registrations []string     `json:"registrations"`
		JobsCreated   int          `json:"jobs_created"`
		Failures      []rowFailure `json:"failures,omitempty"`
	}{
		BatchID:       report.BatchID,
		Format:        string(report.Format),
		DryRun:        report.DryRun,
		Rows:          report.Rows,
		Imported:      report.Imported,
		Skipped:       report.Skipped,
		Failed:        report.Failed,
		Registrations: report.Registrations,
		JobsCreated:   report.JobsCreated,
		Failures:      failures,
	}
}
