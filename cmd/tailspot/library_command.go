package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tailspot/internal/api"
	"tailspot/internal/flightlog"
	"tailspot/internal/logging"
	"tailspot/internal/review"
	"tailspot/internal/store"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	var registration string
	var year int
	var route string

	cmd := &cobra.Command{
		Use:   "library",
		Short: "List approved photos grouped by registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := flightlog.CanonicalRegistration(registration)
			routeFilter := strings.ToUpper(strings.TrimSpace(route))
			return ctx.withServices(func(client *apiClient, st *store.Store) error {
				var resp *api.LibraryResponse
				if client != nil {
					var err error
					resp, err = client.Library(cmd.Context(), reg, year, routeFilter)
					if err != nil {
						return err
					}
				} else {
					svc := review.NewService(st, ctx.configValue(), logging.NewNop())
					groups, err := svc.Library(cmd.Context(), store.LibraryFilter{
						Registration: reg,
						Year:         year,
						Route:        routeFilter,
					})
					if err != nil {
						return err
					}
					resp = &api.LibraryResponse{Groups: api.FromLibraryGroups(groups)}
				}

				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				rows := buildLibraryRows(resp.Groups)
				if len(rows) == 0 {
					fmt.Fprintln(out, "Library is empty; approve photos with `tailspot review approve`")
					return nil
				}
				table := renderTable(libraryHeaders, rows, libraryAligns)
				fmt.Fprintln(out, table)
				registrations, photos := libraryCounts(resp.Groups)
				fmt.Fprintf(out, "%d photos across %d registrations\n", photos, registrations)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&registration, "registration", "r", "", "Only this aircraft")
	cmd.Flags().IntVar(&year, "year", 0, "Filter by matched flight year")
	cmd.Flags().StringVar(&route, "route", "", "Filter by matched flight route (XXX-YYY)")

	return cmd
}
