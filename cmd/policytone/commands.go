package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/policytone/internal/logger"
	"github.com/rewired-gh/policytone/internal/pipeline"
	"github.com/rewired-gh/policytone/internal/storage"
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Apply the configured parameter set and print its version",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStorage()
		if err != nil {
			return err
		}
		defer closeStorage(store)

		if list, _ := cmd.Flags().GetBool("list"); list {
			sets, err := store.ListParameters()
			if err != nil {
				return err
			}
			active, _ := store.ActiveParameters()
			for _, p := range sets {
				marker := " "
				if active != nil && active.Version == p.Version {
					marker = "*"
				}
				fmt.Printf("%s %s  %-12s weights=%s classifier=%s\n",
					marker, p.Version, p.Name, p.Weights.ID(), p.Classifier.Method)
			}
			return nil
		}

		p := cfg.Parameters()
		p.CreatedAt = time.Now().UTC()
		if err := store.SaveParameters(&p); err != nil {
			return err
		}
		if err := store.Activate(p.Version); err != nil {
			return err
		}
		logger.Info("Activated parameter set %s (%s)", p.Version, p.Name)
		fmt.Println(p.Version)
		return nil
	},
}

func init() {
	paramsCmd.Flags().Bool("list", false, "list stored parameter sets")
}

var auditCmd = &cobra.Command{
	Use:   "audit [weight-set]",
	Short: "List every stored adjusted tone computed under a weight set",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStorage()
		if err != nil {
			return err
		}
		defer closeStorage(store)

		weightSet := ""
		if len(args) == 1 {
			weightSet = args[0]
		} else {
			params, err := activeParameters(store)
			if err != nil {
				return err
			}
			weightSet = params.Weights.ID()
		}
		records, err := store.AdjustedToneByWeightSet(weightSet)
		if err != nil {
			return err
		}
		for _, r := range records {
			fmt.Printf("%s  %-24s %s %s  value=%+.4f partial=%t computed=%s\n",
				r.EventDate.Format(time.DateOnly), r.DocumentID, r.ParameterVersion, r.LexiconVersion,
				r.Value, r.PartialComposite, r.ComputedAt.Format(time.RFC3339))
		}
		return nil
	},
}

func newPipeline(store *storage.Storage, notify bool) (*pipeline.Pipeline, error) {
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

	var notifier pipeline.Notifier
	if notify {
		client, err := newNotifier()
		if err != nil {
			return nil, err
		}
		if client != nil {
			notifier = client
		}
	}
	return pipeline.New(store, scorer, params, notifier)
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score documents into tone and adjusted tone records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		from, to, err := optionalRange(cmd)
		if err != nil {
			return err
		}
		store, err := openStorage()
		if err != nil {
			return err
		}
		defer closeStorage(store)

		withPredict, _ := cmd.Flags().GetBool("predict")
		p, err := newPipeline(store, withPredict)
		if err != nil {
			return err
		}

		now, err := asOf(cmd)
		if err != nil {
			return err
		}
		if withPredict {
			report, err := p.Run(ctx, from, to, now)
			if err != nil {
				notifyError(err)
				return err
			}
			fmt.Printf("scored %d, predicted %d\n", report.Score.Scored, len(report.Predict.Predictions))
			return nil
		}
		report, err := p.Score(ctx, from, to, now)
		if err != nil {
			return err
		}
		fmt.Printf("scored %d/%d documents, %d partial, %d failed\n",
			report.Scored, report.Documents, report.Partial, len(report.Failures))
		return nil
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict rate decisions for scored documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		from, to, err := optionalRange(cmd)
		if err != nil {
			return err
		}
		store, err := openStorage()
		if err != nil {
			return err
		}
		defer closeStorage(store)

		p, err := newPipeline(store, false)
		if err != nil {
			return err
		}
		report, err := p.Predict(ctx, from, to)
		if err != nil {
			return err
		}

		preds := report.Predictions
		if latest, _ := cmd.Flags().GetBool("latest"); latest && len(preds) > 0 {
			preds = preds[len(preds)-1:]
		}
		for _, pr := range preds {
			fmt.Printf("%s  %-24s %-4s  hike=%.3f hold=%.3f cut=%.3f  (%s)\n",
				pr.EventDate.Format(time.DateOnly), pr.DocumentID, pr.Predicted,
				pr.Probabilities.Hike, pr.Probabilities.Hold, pr.Probabilities.Cut, pr.Method)
		}

		if notify, _ := cmd.Flags().GetBool("notify"); notify && len(preds) > 0 {
			client, err := newNotifier()
			if err != nil {
				return err
			}
			if client != nil {
				if err := client.SendPredictions(preds); err != nil {
					logger.Error("Failed to send notification: %v", err)
				}
			}
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{scoreCmd, predictCmd} {
		c.Flags().String("from", "", "first document date (YYYY-MM-DD, default all)")
		c.Flags().String("to", "", "last document date (YYYY-MM-DD, default all)")
	}
	scoreCmd.Flags().Bool("predict", false, "also predict and notify")
	scoreCmd.Flags().String("as-of", "", "computed-at timestamp of the records (RFC 3339 or YYYY-MM-DD, default now)")
	predictCmd.Flags().Bool("latest", false, "only print the most recent prediction")
	predictCmd.Flags().Bool("notify", false, "send the printed predictions to Telegram")
}

// optionalRange reads --from/--to; an absent bound is open.
func optionalRange(cmd *cobra.Command) (time.Time, time.Time, error) {
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	from, err := parseDate(fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDate(toStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}
