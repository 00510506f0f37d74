package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tailspot/internal/api"
	"tailspot/internal/flightlog"
	"tailspot/internal/store"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and steer the scrape queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRunsCommand(ctx))
	queueCmd.AddCommand(newQueuePauseCommand(ctx))
	queueCmd.AddCommand(newQueueResumeCommand(ctx))
	queueCmd.AddCommand(newQueueConcurrencyCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRescanCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var states []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scrape jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(client *apiClient, st *store.Store) error {
				var resp *api.QueueResponse
				if client != nil {
					var err error
					resp, err = client.Queue(cmd.Context(), states)
					if err != nil {
						return err
					}
				} else {
					var filter store.JobFilter
					for _, value := range states {
						status, err := store.ParseJobStatus(value)
						if err != nil {
							return err
						}
						filter.Statuses = append(filter.Statuses, status)
					}
					jobs, err := st.ListJobs(cmd.Context(), filter)
					if err != nil {
						return err
					}
					resp = &api.QueueResponse{Jobs: api.FromJobs(jobs)}
				}

				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				table := renderTable(jobHeaders, buildJobRows(resp.Jobs), jobAligns)
				fmt.Fprint(out, table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&states, "state", "s", nil, "Filter by job state (repeatable)")
	return cmd
}

func newQueueRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent scrape runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(client *apiClient, st *store.Store) error {
				var resp *api.RunsResponse
				if client != nil {
					var err error
					resp, err = client.Runs(cmd.Context(), limit)
					if err != nil {
						return err
					}
				} else {
					runs, err := st.RecentRuns(cmd.Context(), limit)
					if err != nil {
						return err
					}
					resp = &api.RunsResponse{Runs: api.FromRuns(runs)}
				}

				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				table := renderTable(runHeaders, buildRunRows(resp.Runs), runAligns)
				fmt.Fprint(out, table)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}

func newQueuePauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause job dispatch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				resp, err := client.Pause(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Scraping paused; running jobs finish their current attempt")
				return nil
			})
		},
	}
}

func newQueueResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume job dispatch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				resp, err := client.Resume(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Scraping resumed")
				return nil
			})
		},
	}
}

func newQueueConcurrencyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "concurrency <n>",
		Short: "Set the worker limit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid concurrency %q", args[0])
			}
			return ctx.withClient(func(client *apiClient) error {
				resp, err := client.SetConcurrency(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if resp.Concurrency != limit {
					fmt.Fprintf(out, "Concurrency set to %d (%d is outside the allowed range)\n", resp.Concurrency, limit)
					return nil
				}
				fmt.Fprintf(out, "Concurrency set to %d\n", resp.Concurrency)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	var registration string

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Requeue failed jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := flightlog.CanonicalRegistration(registration)
			return ctx.withServices(func(client *apiClient, st *store.Store) error {
				var count int64
				if client != nil {
					resp, err := client.Retry(cmd.Context(), reg)
					if err != nil {
						return err
					}
					count = resp.Count
				} else {
					var err error
					count, err = requeueFailedJobs(cmd.Context(), st, reg)
					if err != nil {
						return err
					}
				}

				if ctx.JSONMode() {
					return writeJSON(cmd, api.CountResponse{Count: count})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d failed jobs\n", count)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&registration, "registration", "r", "", "Only this aircraft's jobs")
	return cmd
}

// requeueFailedJobs mirrors the daemon's retry endpoint for store-only use.
func requeueFailedJobs(ctx context.Context, st *store.Store, registration string) (int64, error) {
	if registration == "" {
		return st.RequeueJobs(ctx, nil)
	}
	jobs, err := st.ListJobs(ctx, store.JobFilter{
		Statuses:     []store.JobStatus{store.JobFailed},
		Registration: registration,
	})
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}
	ids := make([]int64, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}
	return st.RequeueJobs(ctx, ids)
}

func newQueueRescanCommand(ctx *commandContext) *cobra.Command {
	var registration string

	cmd := &cobra.Command{
		Use:   "rescan",
		Short: "Start a fresh scan for finished jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := flightlog.CanonicalRegistration(registration)
			return ctx.withServices(func(client *apiClient, st *store.Store) error {
				var count int64
				if client != nil {
					resp, err := client.Rescan(cmd.Context(), reg)
					if err != nil {
						return err
					}
					count = resp.Count
				} else {
					var err error
					count, err = st.RequeueTerminal(cmd.Context(), reg)
					if err != nil {
						return err
					}
				}

				if ctx.JSONMode() {
					return writeJSON(cmd, api.CountResponse{Count: count})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %d jobs for rescan\n", count)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&registration, "registration", "r", "", "Only this aircraft's jobs")
	return cmd
}
