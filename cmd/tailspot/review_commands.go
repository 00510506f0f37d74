package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tailspot/internal/api"
	"tailspot/internal/logging"
	"tailspot/internal/review"
	"tailspot/internal/store"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	var lowConfidence bool

	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "List photos awaiting a decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(client *apiClient, st *store.Store) error {
				var resp *api.ReviewResponse
				if client != nil {
					var err error
					resp, err = client.Review(cmd.Context(), lowConfidence)
					if err != nil {
						return err
					}
				} else {
					svc := review.NewService(st, ctx.configValue(), logging.NewNop())
					items, err := svc.Queue(cmd.Context(), review.Options{LowConfidence: lowConfidence})
					if err != nil {
						return err
					}
					resp = &api.ReviewResponse{Total: len(items), Items: api.FromReviewItems(items)}
				}

				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Items) == 0 {
					fmt.Fprintln(out, "Review queue is empty")
					return nil
				}
				table := renderTable(reviewHeaders, buildReviewRows(resp.Items), reviewAligns)
				fmt.Fprint(out, table)
				return nil
			})
		},
	}

	reviewCmd.Flags().BoolVar(&lowConfidence, "low-confidence", false, "Include photos scoring below the review threshold")

	reviewCmd.AddCommand(newReviewApproveCommand(ctx))
	reviewCmd.AddCommand(newReviewRejectCommand(ctx))

	return reviewCmd
}

func newReviewApproveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a photo into the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReviewDecision(ctx, cmd, args[0], true)
		},
	}
}

func newReviewRejectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReviewDecision(ctx, cmd, args[0], false)
		},
	}
}

func runReviewDecision(ctx *commandContext, cmd *cobra.Command, arg string, approve bool) error {
	id, err := parseID("photo", arg)
	if err != nil {
		return err
	}
	return ctx.withServices(func(client *apiClient, st *store.Store) error {
		var view *api.CandidateView
		if client != nil {
			var err error
			if approve {
				view, err = client.Approve(cmd.Context(), id)
			} else {
				view, err = client.Reject(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
		} else {
			svc := review.NewService(st, ctx.configValue(), logging.NewNop())
			var photo *store.CandidatePhoto
			var err error
			if approve {
				photo, err = svc.Approve(cmd.Context(), id)
			} else {
				photo, err = svc.Reject(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			converted := api.FromCandidate(photo)
			view = &converted
		}

		if ctx.JSONMode() {
			return writeJSON(cmd, view)
		}
		verdict := "rejected"
		if approve {
			verdict = "approved"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Photo %d %s (%s %s)\n", view.ID, verdict, view.Registration, view.Source)
		return nil
	})
}
