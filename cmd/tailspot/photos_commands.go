package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tailspot/internal/logging"
	"tailspot/internal/review"
	"tailspot/internal/store"
)

func newPhotosCommand(ctx *commandContext) *cobra.Command {
	photosCmd := &cobra.Command{
		Use:   "photos",
		Short: "Manage scraped photos",
	}

	photosCmd.AddCommand(newPhotosDeleteCommand(ctx))

	return photosCmd
}

func newPhotosDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a photo regardless of review state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("photo", args[0])
			if err != nil {
				return err
			}
			return ctx.withServices(func(client *apiClient, st *store.Store) error {
				var deleted bool
				if client != nil {
					var err error
					deleted, err = client.DeletePhoto(cmd.Context(), id)
					if err != nil {
						return err
					}
				} else {
					svc := review.NewService(st, ctx.configValue(), logging.NewNop())
					var err error
					deleted, err = svc.Delete(cmd.Context(), id)
					if err != nil {
						return err
					}
				}

				if ctx.JSONMode() {
					return writeJSON(cmd, struct {
						ID      int64 `json:"id"`
						Deleted bool  `json:"deleted"`
					}{ID: id, Deleted: deleted})
				}
				out := cmd.OutOrStdout()
				if !deleted {
					fmt.Fprintf(out, "Photo %d not found\n", id)
					return nil
				}
				fmt.Fprintf(out, "Photo %d deleted\n", id)
				return nil
			})
		},
	}
}
