package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tailspot/internal/api"
	"tailspot/internal/flightlog"
	"tailspot/internal/store"
)

func newFlightsCommand(ctx *commandContext) *cobra.Command {
	var registration string
	var year int

	flightsCmd := &cobra.Command{
		Use:   "flights",
		Short: "List imported flights",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := flightlog.CanonicalRegistration(registration)
			return ctx.withServices(func(client *apiClient, st *store.Store) error {
				var resp *api.FlightsResponse
				if client != nil {
					var err error
					resp, err = client.Flights(cmd.Context(), reg, year)
					if err != nil {
						return err
					}
				} else {
					flights, err := st.ListFlights(cmd.Context(), store.FlightFilter{Registration: reg, Year: year})
					if err != nil {
						return err
					}
					resp = &api.FlightsResponse{Flights: api.FromFlights(flights)}
				}

				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Flights) == 0 {
					fmt.Fprintln(out, "No flights on file")
					return nil
				}
				table := renderTable(flightHeaders, buildFlightRows(resp.Flights), flightAligns)
				fmt.Fprint(out, table)
				return nil
			})
		},
	}

	flightsCmd.Flags().StringVarP(&registration, "registration", "r", "", "Filter by aircraft registration")
	flightsCmd.Flags().IntVar(&year, "year", 0, "Filter by departure year")

	flightsCmd.AddCommand(newFlightsDeleteCommand(ctx))
	flightsCmd.AddCommand(newFlightsResetCommand(ctx))

	return flightsCmd
}

func newFlightsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one imported flight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("flight", args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			deleted, err := st.DeleteFlight(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !deleted {
				fmt.Fprintf(out, "Flight %d not found\n", id)
				return nil
			}
			fmt.Fprintf(out, "Flight %d deleted\n", id)
			return nil
		},
	}
}

func newFlightsResetCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every flight, photo, and scrape job",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return errors.New("reset removes all flights, photos, and jobs; pass --force to confirm")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			if err := st.ResetAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All flights, photos, and jobs removed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation")
	return cmd
}
