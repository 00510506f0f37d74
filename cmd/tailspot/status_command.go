package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tailspot/internal/api"
	"tailspot/internal/monitor"
	"tailspot/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(client *apiClient, st *store.Store) error {
				running := client != nil

				var resp *api.StatusResponse
				if client != nil {
					var err error
					resp, err = client.Status(cmd.Context())
					if err != nil {
						return err
					}
				} else {
					snapshot, err := monitor.New(st, ctx.configValue()).Snapshot(cmd.Context())
					if err != nil {
						return err
					}
					flights, err := st.FlightCount(cmd.Context())
					if err != nil {
						return err
					}
					status := api.FromSnapshot(snapshot, flights, st.Path(), 0)
					resp = &status
				}

				if ctx.JSONMode() {
					return writeJSON(cmd, struct {
						DaemonRunning bool                `json:"daemon_running"`
						Status        *api.StatusResponse `json:"status"`
					}{DaemonRunning: running, Status: resp})
				}
				printStatus(cmd.OutOrStdout(), resp, running)
				return nil
			})
		},
	}
}

func printStatus(out io.Writer, status *api.StatusResponse, running bool) {
	colorize := shouldColorize(out)

	fmt.Fprintln(out, sectionHeader("Daemon", colorize))
	if running {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize))
		if status.Paused {
			fmt.Fprintln(out, renderStatusLine("Scraping", statusWarn, "paused", colorize))
		} else {
			fmt.Fprintln(out, renderStatusLine("Scraping", statusOK, "active", colorize))
		}
		fmt.Fprintln(out, renderStatusLine("Workers", statusInfo,
			fmt.Sprintf("%d in flight (limit %d)", status.InFlight, status.Concurrency), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running (start it with `tailspot serve`)", colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	fmt.Fprintln(out)

	fmt.Fprintln(out, sectionHeader("Queue", colorize))
	rows := buildJobStatusRows(status.Jobs)
	if len(rows) == 0 {
		fmt.Fprintln(out, "Queue is empty")
	} else {
		table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
		fmt.Fprintln(out, table)
		if status.ETASeconds > 0 {
			fmt.Fprintf(out, "Backlog ETA: %s (avg run %s)\n",
				formatSeconds(status.ETASeconds), formatSeconds(status.AvgRunSeconds))
		}
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, sectionHeader("Collection", colorize))
	fmt.Fprintln(out, renderStatusLine("Flights", statusInfo, fmt.Sprintf("%d imported", status.Flights), colorize))
	if status.PendingReview > 0 {
		fmt.Fprintln(out, renderStatusLine("Review", statusWarn,
			fmt.Sprintf("%d photos awaiting decision", status.PendingReview), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Review", statusOK, "nothing pending", colorize))
	}
}
