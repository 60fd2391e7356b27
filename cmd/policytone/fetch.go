package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/policytone/internal/ecos"
	"github.com/rewired-gh/policytone/internal/lexicon"
	"github.com/rewired-gh/policytone/internal/logger"
	"github.com/rewired-gh/policytone/internal/models"
	"github.com/rewired-gh/policytone/internal/newsfeed"
	"github.com/rewired-gh/policytone/internal/storage"
	"github.com/rewired-gh/policytone/internal/taylor"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Pull ECOS series and news feed signals into storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		start, end, err := dateRange(cmd)
		if err != nil {
			return err
		}
		store, err := openStorage()
		if err != nil {
			return err
		}
		defer closeStorage(store)

		skipECOS, _ := cmd.Flags().GetBool("skip-ecos")
		if !skipECOS {
			names, _ := cmd.Flags().GetStringSlice("series")
			client := ecos.NewClient(cfg.ECOS.BaseURL, cfg.ECOS.APIKey, ecos.Options{
				Timeout:   cfg.ECOS.Timeout,
				Retries:   cfg.ECOS.Retries,
				RateLimit: cfg.ECOS.RateLimit,
			})

			fetched := make(map[string][]models.Observation)
			for _, name := range names {
				spec, err := ecos.Lookup(name)
				if err != nil {
					return err
				}
				from := start
				switch spec.Cycle {
				case ecos.Monthly:
					from = start.AddDate(-1, 0, 0) // base year for year-over-year changes
				case ecos.Quarterly:
					from = start.AddDate(-10, 0, 0) // filter history for the output gap
				}
				obs, err := client.FetchSeries(ctx, spec, from, end)
				if err != nil {
					logger.Error("Failed to fetch series %s: %v", name, err)
					continue
				}
				fetched[name] = obs
			}
			if err := storeSeries(store, fetched); err != nil {
				return err
			}
		}

		if len(cfg.NewsFeed.URLs) > 0 {
			params, err := activeParameters(store)
			if err != nil {
				return err
			}
			lex, err := loadLexicon(store, params.Scoring)
			if err != nil {
				return err
			}
			if err := fetchNews(ctx, store, lex); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	addRangeFlags(fetchCmd)
	fetchCmd.Flags().StringSlice("series", ecos.Names(), "ECOS series to fetch")
	fetchCmd.Flags().Bool("skip-ecos", false, "only fetch news feeds")
}

// storeSeries writes fetched series plus the term spread and CPI inflation
// derived from them.
func storeSeries(store *storage.Storage, fetched map[string][]models.Observation) error {
	var all []models.Observation
	for _, obs := range fetched {
		all = append(all, obs...)
	}
	short, okShort := fetched["ktb_3y"]
	long, okLong := fetched["ktb_10y"]
	if okShort && okLong {
		all = append(all, ecos.TermSpread(short, long)...)
	}
	if cpi, ok := fetched["cpi"]; ok {
		all = append(all, ecos.YearOverYear("inflation", cpi)...)
	}
	if err := store.UpsertObservations(all); err != nil {
		return err
	}
	logger.Info("Stored %d observations across %d fetched series", len(all), len(fetched))

	fsi, err := deriveStress(store, cfg.Decompose.MinPoints)
	if err != nil {
		logger.Warn("Financial stress index not derived: %v", err)
		return nil
	}
	if err := store.UpsertObservations(fsi); err != nil {
		return err
	}
	logger.Info("Stored %d months of the financial stress index", len(fsi))
	return nil
}

// deriveStress rebuilds the monthly "fsi" series from the full stored
// history of its inputs.
func deriveStress(store *storage.Storage, minPoints int) ([]models.Observation, error) {
	obs, err := store.Observations(time.Time{}, time.Time{}, "household_credit", "gdp", "usd_krw", "term_spread")
	if err != nil {
		return nil, err
	}
	var in taylor.StressInputs
	for _, o := range obs {
		switch o.Series {
		case "household_credit":
			in.Credit = append(in.Credit, o)
		case "gdp":
			in.GDP = append(in.GDP, o)
		case "usd_krw":
			in.FX = append(in.FX, o)
		case "term_spread":
			in.Spread = append(in.Spread, o)
		}
	}
	points, err := taylor.FinancialStress(in, minPoints)
	if err != nil {
		return nil, err
	}
	return taylor.StressObservations(points), nil
}

func fetchNews(ctx context.Context, store *storage.Storage, lex *lexicon.Lexicon) error {
	fetcher := newsfeed.NewFetcher(lex, cfg.NewsFeed.Timeout)
	signals, failures := fetcher.FetchAll(ctx, cfg.NewsFeed.URLs)
	if err := store.UpsertSignals(signals); err != nil {
		return err
	}
	logger.Info("Stored %d news signals from %d feeds (%d failed)",
		len(signals), len(cfg.NewsFeed.URLs)-len(failures), len(failures))
	return nil
}
