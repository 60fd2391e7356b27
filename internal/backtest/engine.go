package backtest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/policytone/internal/classifier"
	"github.com/rewired-gh/policytone/internal/logger"
	"github.com/rewired-gh/policytone/internal/models"
	"github.com/rewired-gh/policytone/internal/tone"
)

// Engine replays a history under one parameter set.
type Engine struct {
	scorer *tone.Scorer
	params models.ModelParameters
}

// NewEngine rejects invalid parameter sets before any replay runs.
func NewEngine(scorer *tone.Scorer, params models.ModelParameters) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{scorer: scorer, params: params}, nil
}

// featureSet is the features derived for one ledger date from its own as-of view.
type featureSet struct {
	docID    string
	features models.Features
	err      error
}

// Run replays ledger events dated within [start, end] in chronological order.
// Excluded dates are skipped and listed on the run; events without a usable
// document are recorded as failures.
func (e *Engine) Run(ctx context.Context, h *History, start, end, computedAt time.Time) (*models.BacktestRun, error) {
	events := h.Events(start, end)
	if len(events) == 0 {
		return nil, models.NewError(models.KindEmptyHistory, "backtest", "",
			"no ledger events between %s and %s", models.DateKey(start), models.DateKey(end))
	}

	run := &models.BacktestRun{
		ID:               uuid.NewString(),
		ParameterVersion: e.params.Version,
		Start:            start,
		End:              end,
		CreatedAt:        computedAt,
	}

	// Features for a ledger date depend only on AsOf(date), so they can be
	// reused by every later decision point.
	cache := make(map[string]featureSet)
	featuresAt := func(t time.Time) featureSet {
		key := models.DateKey(t)
		if fs, ok := cache[key]; ok {
			return fs
		}
		fs := e.featuresAsOf(h.AsOf(t), computedAt)
		cache[key] = fs
		return fs
	}

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if h.Excluded(ev.Date) {
			run.Excluded = append(run.Excluded, ev.Date)
			logger.Debug("backtest: skipping excluded date %s", models.DateKey(ev.Date))
			continue
		}

		view := h.AsOf(ev.Date)
		target := featuresAt(ev.Date)
		if target.err != nil {
			run.Failures = append(run.Failures, models.NewFailure(models.DateKey(ev.Date), target.err))
			continue
		}

		var samples []classifier.Sample
		for _, label := range view.Labels() {
			fs := featuresAt(label.Date)
			if fs.err != nil {
				continue
			}
			samples = append(samples, classifier.Sample{
				Date:     models.DateKey(label.Date),
				Features: fs.features,
				Label:    label.Decision,
			})
		}

		strategy, err := classifier.Select(e.params.Classifier, samples)
		if err != nil {
			return nil, err
		}
		pred, err := strategy.Predict(target.features)
		if err != nil {
			run.Failures = append(run.Failures, models.NewFailure(models.DateKey(ev.Date), err))
			continue
		}

		run.Rows = append(run.Rows, models.BacktestRow{
			Date:          ev.Date,
			DocumentID:    target.docID,
			Predicted:     pred.Predicted,
			Actual:        ev.Decision,
			Correct:       pred.Predicted == ev.Decision,
			Method:        pred.Method,
			Probabilities: pred.Probabilities,
			TrainingSize:  len(samples),
		})
	}

	run.Metrics = ComputeMetrics(run.Rows)
	logger.Info("backtest %s: %d events, %d excluded, %d failed, accuracy %.3f",
		run.ID, len(run.Rows), len(run.Excluded), len(run.Failures), run.Metrics.Accuracy)
	return run, nil
}

func (e *Engine) featuresAsOf(view AsOf, computedAt time.Time) featureSet {
	doc, ok := view.LatestDocument()
	if !ok {
		return featureSet{err: models.NewError(models.KindMissingInput, "backtest", models.DateKey(view.Time()),
			"no document on or before the decision date")}
	}
	scored, err := e.scorer.ScoreOne(doc, view.Feed(), computedAt)
	if err != nil {
		return featureSet{docID: doc.ID, err: err}
	}
	return featureSet{docID: doc.ID, features: models.FeaturesFrom(scored.Index)}
}
