package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/dharmasatrya/airsearch/internal/models"
)

type searchFlags struct {
	origin      string
	destination string
	date        string
	returnDate  string
	adults      int
	children    int
	infants     int
	cabin       string
	mode        string
	sortBy      string
	sortOrder   string
	timeout     time.Duration
}

func newSearchCmd() *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run one search and print the merged result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
			defer cancel()

			a, err := build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			req := models.SearchRequest{
				Origin:        f.origin,
				Destination:   f.destination,
				DepartureDate: f.date,
				Passengers:    models.Passengers{Adults: f.adults, Children: f.children, Infants: f.infants},
				CabinClass:    f.cabin,
				Mode:          f.mode,
				SortBy:        f.sortBy,
				SortOrder:     f.sortOrder,
			}
			if f.returnDate != "" {
				req.ReturnDate = &f.returnDate
			}
			q, err := req.Query()
			if err != nil {
				return err
			}
			mode, err := req.SearchMode()
			if err != nil {
				return err
			}
			key, dir, err := req.Sort()
			if err != nil {
				return err
			}

			set, _, err := a.engine.Search(ctx, q, mode)
			if err != nil {
				return err
			}
			set = a.engine.Sort(set, key, dir)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(set)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.origin, "origin", "", "origin IATA airport code")
	flags.StringVar(&f.destination, "destination", "", "destination IATA airport code")
	flags.StringVar(&f.date, "date", "", "departure date (YYYY-MM-DD)")
	flags.StringVar(&f.returnDate, "return", "", "return date for a round trip (YYYY-MM-DD)")
	flags.IntVar(&f.adults, "adults", 1, "adult passengers")
	flags.IntVar(&f.children, "children", 0, "child passengers")
	flags.IntVar(&f.infants, "infants", 0, "lap infants")
	flags.StringVar(&f.cabin, "cabin", "economy", "cabin: economy, premium_economy, business or first")
	flags.StringVar(&f.mode, "mode", "", "supplier mode: local, external or hybrid (default from config)")
	flags.StringVar(&f.sortBy, "sort", "", "sort key: price, duration, departure or best_value")
	flags.StringVar(&f.sortOrder, "order", "", "sort direction: asc or desc")
	flags.DurationVar(&f.timeout, "timeout", 30*time.Second, "overall time limit")
	_ = cmd.MarkFlagRequired("origin")
	_ = cmd.MarkFlagRequired("destination")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
