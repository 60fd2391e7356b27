package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/policytone/internal/backtest"
	"github.com/rewired-gh/policytone/internal/curve"
	"github.com/rewired-gh/policytone/internal/decompose"
	"github.com/rewired-gh/policytone/internal/lag"
	"github.com/rewired-gh/policytone/internal/logger"
	"github.com/rewired-gh/policytone/internal/models"
	"github.com/rewired-gh/policytone/internal/report"
	"github.com/rewired-gh/policytone/internal/storage"
	"github.com/rewired-gh/policytone/internal/taylor"
)

// toneSeries exposes the adjusted tone of a parameter set as observations.
func toneSeries(store *storage.Storage, params models.ModelParameters) ([]models.Observation, error) {
	series, err := store.AdjustedToneSeries(params.Version)
	if err != nil {
		return nil, err
	}
	obs := make([]models.Observation, 0, len(series))
	for _, idx := range series {
		obs = append(obs, models.Observation{Series: "tone", Date: idx.EventDate, Value: idx.Value})
	}
	return obs, nil
}

// outputGap filters an activity series into a percent gap. The one-sided
// filter only uses data up to each date.
func outputGap(obs []models.Observation, twoSided bool) ([]models.Observation, error) {
	if len(obs) == 0 {
		return nil, nil
	}
	y := make([]float64, len(obs))
	for i, o := range obs {
		y[i] = o.Value
	}
	f := decompose.NewFilter(cfg.Decompose.Lambda, cfg.Decompose.MinPoints)
	var gap []float64
	if twoSided {
		res, err := f.Decompose(obs[0].Series, y)
		if err != nil {
			return nil, err
		}
		gap = res.OutputGap
	} else {
		var err error
		if gap, err = f.OneSided(obs[0].Series, y); err != nil {
			return nil, err
		}
	}
	out := make([]models.Observation, 0, len(obs))
	for i, o := range obs {
		if math.IsNaN(gap[i]) {
			continue
		}
		out = append(out, models.Observation{Series: "output_gap", Date: o.Date, Value: gap[i]})
	}
	return out, nil
}

var rateCmd = &cobra.Command{
	Use:   "rate",
	Short: "Print the structural rate series and optionally score it against the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := dateRange(cmd)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		variant, _ := flags.GetString("variant")
		activity, _ := flags.GetString("activity")
		fsiName, _ := flags.GetString("fsi")
		twoSided, _ := flags.GetBool("two-sided")
		evaluate, _ := flags.GetBool("evaluate")
		compare, _ := flags.GetBool("compare")

		store, err := openStorage()
		if err != nil {
			return err
		}
		defer closeStorage(store)

		params, err := activeParameters(store)
		if err != nil {
			return err
		}
		inflation, err := store.Observations(time.Time{}, end, "inflation")
		if err != nil {
			return err
		}
		act, err := store.Observations(time.Time{}, end, activity)
		if err != nil {
			return err
		}
		gap, err := outputGap(act, twoSided)
		if err != nil {
			return err
		}
		set := taylor.SeriesSet{Inflation: inflation, OutputGap: gap}
		if set.PolicyRate, err = store.Observations(time.Time{}, end, "base_rate"); err != nil {
			return err
		}
		if fsiName != "" {
			if set.FSI, err = store.Observations(time.Time{}, end, fsiName); err != nil {
				return err
			}
		}
		if compare || taylor.Variant(variant) == taylor.Augmented {
			if set.Tone, err = toneSeries(store, params); err != nil {
				return err
			}
		}
		points := taylor.Join(set)
		rule := taylor.NewRule(params.Taylor)

		if compare {
			ledger, err := store.Ledger(time.Time{})
			if err != nil {
				return err
			}
			evals, err := backtest.CompareRules(rule, points, taylor.Variants, ledger, start, end)
			if err != nil {
				return err
			}
			for _, e := range evals {
				fmt.Printf("%-10s  meetings=%d rmse=%.3f mae=%.3f r2=%.3f directional=%.3f\n",
					e.Variant, e.Observations, e.RMSE, e.MAE, e.RSquared, e.DirectionalAccuracy)
			}
			return nil
		}

		if taylor.Variant(variant) == taylor.Augmented {
			s := rule.FitSensitivity(points)
			logger.Info("Tone sensitivity %.3f (intercept %.3f, r2 %.3f, %d meetings)", s.Value, s.Intercept, s.RSquared, s.Rows)
			rule = rule.WithSensitivity(s.Value)
		}
		estimates, failures := rule.Series(taylor.Variant(variant), points)
		logger.Info("Structural rule %s: %d estimates, %d dates with missing inputs", variant, len(estimates), len(failures))

		for _, e := range estimates {
			if e.Date.Before(start) {
				continue
			}
			fmt.Printf("%s  target=%.3f  rate=%.3f\n", e.Date.Format(time.DateOnly), e.Target, e.Rate)
		}

		if !evaluate {
			return nil
		}
		ledger, err := store.Ledger(time.Time{})
		if err != nil {
			return err
		}
		eval, err := backtest.EvaluateRule(estimates, ledger, start, end)
		if err != nil {
			return err
		}
		fmt.Printf("meetings=%d rmse=%.3f mae=%.3f r2=%.3f directional=%.3f\n",
			eval.Observations, eval.RMSE, eval.MAE, eval.RSquared, eval.DirectionalAccuracy)
		if eval.GrangerPValue != nil {
			fmt.Printf("granger p(implied -> policy rate)=%.4f\n", *eval.GrangerPValue)
		}
		return nil
	},
}

func init() {
	addRangeFlags(rateCmd)
	rateCmd.Flags().String("variant", string(taylor.Standard), "rule variant: standard, extended, augmented")
	rateCmd.Flags().String("activity", "gdp", "activity series filtered into the output gap")
	rateCmd.Flags().String("fsi", "fsi", "financial stress series (extended and augmented variants)")
	rateCmd.Flags().Bool("two-sided", false, "use the two-sided filter for the output gap")
	rateCmd.Flags().Bool("evaluate", false, "compare the implied rate with the ledger")
	rateCmd.Flags().Bool("compare", false, "evaluate every variant against the ledger, best RMSE first")
}

var curveCmd = &cobra.Command{
	Use:   "curve",
	Short: "Decompose the 10y yield and compare curve-implied expectations with decisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := dateRange(cmd)
		if err != nil {
			return err
		}
		store, err := openStorage()
		if err != nil {
			return err
		}
		defer closeStorage(store)

		base, err := store.Observations(time.Time{}, end, "base_rate")
		if err != nil {
			return err
		}
		short, err := store.Observations(time.Time{}, end, "ktb_3y")
		if err != nil {
			return err
		}
		long, err := store.Observations(time.Time{}, end, "ktb_10y")
		if err != nil {
			return err
		}

		premium, err := curve.TermPremium(base, short, long)
		if err != nil {
			return err
		}
		latest := premium[len(premium)-1]
		fmt.Printf("%s  3y=%.3f 10y=%.3f spread=%.3f expected=%.3f term_premium=%.3f (%s)\n",
			latest.Month.Format("2006-01"), latest.KTB3Y, latest.KTB10Y, latest.Spread,
			latest.ExpectedShortRate, latest.TermPremium, curve.Regime(latest.TermPremium))

		params, err := activeParameters(store)
		if err != nil {
			return err
		}
		toneObs, err := toneSeries(store, params)
		if err != nil {
			return err
		}
		points := curve.Divergence(curve.ImpliedPolicyRate(base, short, long), clip(toneObs, start, end))
		if len(points) == 0 {
			logger.Warn("No scored meeting between %s and %s has curve data", models.DateKey(start), models.DateKey(end))
			return nil
		}
		matches := 0
		for _, p := range points {
			if p.DirectionMatch {
				matches++
			}
		}
		last := points[len(points)-1]
		fmt.Printf("meetings=%d cumulative_divergence=%.3f direction_match=%.3f\n",
			len(points), last.Cumulative, float64(matches)/float64(len(points)))

		for _, sp := range curve.Surprises(points) {
			kind := "dovish"
			if sp.Hawkish {
				kind = "hawkish"
			}
			fmt.Printf("%s  %-7s  expected=%.3f actual=%.3f divergence=%+.3f\n",
				sp.Date.Format(time.DateOnly), kind, sp.Expected, sp.Actual, sp.Divergence)
		}
		return nil
	},
}

func init() {
	addRangeFlags(curveCmd)
}

var lagCmd = &cobra.Command{
	Use:   "lag [series...]",
	Short: "Estimate whether tone leads or lags stored series",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := dateRange(cmd)
		if err != nil {
			return err
		}
		grangerLags, _ := cmd.Flags().GetInt("granger")

		store, err := openStorage()
		if err != nil {
			return err
		}
		defer closeStorage(store)

		params, err := activeParameters(store)
		if err != nil {
			return err
		}
		toneObs, err := toneSeries(store, params)
		if err != nil {
			return err
		}
		toneObs = clip(toneObs, start, end)

		for _, name := range args {
			ref, err := store.Observations(start, end, name)
			if err != nil {
				return err
			}
			_, x, y := lag.AlignDaily(toneObs, ref)
			res, err := lag.Analyze(name, x, y, cfg.Lag)
			if err != nil {
				logger.Warn("Lag analysis of %s failed: %v", name, err)
				fmt.Printf("%-14s  %v\n", name, err)
				continue
			}
			fmt.Printf("%-14s  best_lag=%+d  r=%+.3f  %s  (%d lags excluded)\n",
				name, res.BestLag, res.Correlation, res.Classification, len(res.Excluded))

			if grangerLags > 0 {
				g, err := lag.Granger(name, x, y, grangerLags)
				if err != nil {
					fmt.Printf("%-14s  granger: %v\n", "", err)
					continue
				}
				fmt.Printf("%-14s  granger(tone -> %s, p=%d): F=%.3f p=%.4f n=%d\n", "", name, g.Lags, g.F, g.PValue, g.Rows)
			}
		}
		return nil
	},
}

func init() {
	addRangeFlags(lagCmd)
	lagCmd.Flags().Int("granger", 0, "also run a Granger test with this many lags")
}

func clip(obs []models.Observation, start, end time.Time) []models.Observation {
	var out []models.Observation
	for _, o := range obs {
		if o.Date.Before(start) || o.Date.After(end) {
			continue
		}
		out = append(out, o)
	}
	return out
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the walk-forward backtest and export a report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		start, end, err := dateRange(cmd)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		notify, _ := cmd.Flags().GetBool("notify")

		store, err := openStorage()
		if err != nil {
			return err
		}
		defer closeStorage(store)

		if list, _ := cmd.Flags().GetBool("list"); list {
			runs, err := store.ListBacktestRuns(20)
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Printf("%s  %s  %s  events=%d accuracy=%.3f\n", r.ID,
					time.Unix(0, r.CreatedAt).UTC().Format(time.DateTime), r.ParameterVersion, r.Observations, r.Accuracy)
			}
			return nil
		}

		var run *models.BacktestRun
		if id, _ := cmd.Flags().GetString("run"); id != "" {
			// re-export a stored run
			if run, err = store.GetBacktestRun(id); err != nil {
				return err
			}
		} else {
			computedAt, err := asOf(cmd)
			if err != nil {
				return err
			}
			run, err = runBacktest(ctx, store, start, end, computedAt)
			if err != nil {
				if notify {
					notifyError(err)
				}
				return err
			}
			if err := store.SaveBacktestRun(run); err != nil {
				return err
			}
		}

		fmt.Printf("run %s: %d events, accuracy %.3f, %d excluded, %d failed\n",
			run.ID, run.Metrics.Observations, run.Metrics.Accuracy, len(run.Excluded), len(run.Failures))
		if out != "" {
			if err := export(run, out); err != nil {
				return err
			}
			logger.Info("Wrote backtest report to %s", out)
		}

		if notify {
			client, err := newNotifier()
			if err != nil {
				return err
			}
			if client != nil {
				if err := client.SendBacktest(run); err != nil {
					logger.Error("Failed to send notification: %v", err)
				}
			}
		}
		return nil
	},
}

func init() {
	addRangeFlags(backtestCmd)
	backtestCmd.Flags().String("out", "", "report path (.xlsx, .csv or .json)")
	backtestCmd.Flags().Bool("notify", false, "send the summary to Telegram")
	backtestCmd.Flags().Bool("list", false, "list recent stored runs")
	backtestCmd.Flags().String("run", "", "load a stored run by id instead of replaying")
	backtestCmd.Flags().String("as-of", "", "timestamp of the run (RFC 3339 or YYYY-MM-DD, default now)")
}

func runBacktest(ctx context.Context, store *storage.Storage, start, end, computedAt time.Time) (*models.BacktestRun, error) {
	params, err := activeParameters(store)
	if err != nil {
		return nil, err
	}
	lex, err := loadLexicon(store, params.Scoring)
	if err != nil {
		return nil, err
	}
	scorer, err := newScorer(lex, params)
	if err != nil {
		return nil, err
	}
	engine, err := backtest.NewEngine(scorer, params)
	if err != nil {
		return nil, err
	}

	docs, err := store.ListDocuments(time.Time{}, end)
	if err != nil {
		return nil, err
	}
	obs, err := store.Observations(time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	news, err := store.Signals(time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	ledger, err := store.Ledger(time.Time{})
	if err != nil {
		return nil, err
	}
	exclusions, err := store.Exclusions()
	if err != nil {
		return nil, err
	}

	history := backtest.NewHistory(docs, obs, news, ledger, exclusions)
	return engine.Run(ctx, history, start, end, computedAt)
}

func export(run *models.BacktestRun, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return report.WriteXLSX(run, path)
	case ".csv":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := report.WriteCSV(run, f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	case ".json":
		data, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	}
	return models.NewError(models.KindInputValidation, "report", path, "unsupported report format")
}
