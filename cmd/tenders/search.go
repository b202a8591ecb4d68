package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/tenders/internal/app"
	"github.com/MrSnakeDoc/tenders/internal/clock"
	"github.com/MrSnakeDoc/tenders/internal/domain"
	"github.com/MrSnakeDoc/tenders/internal/sources/gosplan"
)

var searchFlags struct {
	limit        int
	region       string
	minPrice     string
	maxPrice     string
	deadlineFrom string
	deadlineTo   string
	basic        bool
}

// searchCmd queries upstream without touching storage.
var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Query the upstream API for a keyword and print normalized tenders",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := loadRuntime()
		defer func() { _ = log.Sync() }()

		opts, err := searchOptions()
		if err != nil {
			return err
		}

		client := app.NewUpstreamClient(cfg, clock.Real(), log)
		keyword := strings.Join(args, " ")

		var found []*domain.Tender
		if searchFlags.basic {
			found, err = client.SearchBasic(cmd.Context(), keyword, nil)
		} else {
			found, err = client.Search(cmd.Context(), keyword, nil, opts)
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(found)
	},
}

func searchOptions() (gosplan.SearchOptions, error) {
	opts := gosplan.SearchOptions{Limit: searchFlags.limit, Region: searchFlags.region}

	for _, p := range []struct {
		name string
		raw  string
		dst  **decimal.Decimal
	}{
		{"min-price", searchFlags.minPrice, &opts.MinPrice},
		{"max-price", searchFlags.maxPrice, &opts.MaxPrice},
	} {
		if p.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(p.raw)
		if err != nil {
			return opts, fmt.Errorf("--%s: %w", p.name, err)
		}
		*p.dst = &d
	}

	for _, p := range []struct {
		name string
		raw  string
		dst  **time.Time
	}{
		{"deadline-from", searchFlags.deadlineFrom, &opts.DeadlineFrom},
		{"deadline-to", searchFlags.deadlineTo, &opts.DeadlineTo},
	} {
		if p.raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", p.raw)
		if err != nil {
			return opts, fmt.Errorf("--%s: expected YYYY-MM-DD: %w", p.name, err)
		}
		*p.dst = &t
	}

	return opts, nil
}

func init() {
	rootCmd.AddCommand(searchCmd)

	f := searchCmd.Flags()
	f.IntVar(&searchFlags.limit, "limit", gosplan.DefaultLimit, "maximum results per regime")
	f.StringVar(&searchFlags.region, "region", "", "region code filter")
	f.StringVar(&searchFlags.minPrice, "min-price", "", "minimum starting price")
	f.StringVar(&searchFlags.maxPrice, "max-price", "", "maximum starting price")
	f.StringVar(&searchFlags.deadlineFrom, "deadline-from", "", "earliest application deadline (YYYY-MM-DD)")
	f.StringVar(&searchFlags.deadlineTo, "deadline-to", "", "latest application deadline (YYYY-MM-DD)")
	f.BoolVar(&searchFlags.basic, "basic", false, "use the unfiltered basic search")
}
