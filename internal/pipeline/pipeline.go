// Package pipeline runs a scoring and prediction cycle against storage.
package pipeline

import (
	"context"
	"time"

	"github.com/rewired-gh/policytone/internal/classifier"
	"github.com/rewired-gh/policytone/internal/logger"
	"github.com/rewired-gh/policytone/internal/models"
	"github.com/rewired-gh/policytone/internal/storage"
	"github.com/rewired-gh/policytone/internal/tone"
)

// Notifier receives the predictions of a completed cycle.
type Notifier interface {
	SendPredictions(preds []models.PredictionResult) error
}

// ScoreReport summarizes a scoring pass.
type ScoreReport struct {
	Documents int
	Scored    int
	Partial   int
	Failures  []models.Failure
}

// PredictReport summarizes a prediction pass.
type PredictReport struct {
	TrainingSize int
	Method       models.Method
	Predictions  []models.PredictionResult
	Failures     []models.Failure
}

// Report is the outcome of one full cycle.
type Report struct {
	Score   ScoreReport
	Predict PredictReport
}

type Pipeline struct {
	storage  *storage.Storage
	scorer   *tone.Scorer
	params   models.ModelParameters
	notifier Notifier
}

// New builds a pipeline for one validated parameter set. notifier may be nil.
func New(s *storage.Storage, scorer *tone.Scorer, params models.ModelParameters, notifier Notifier) (*Pipeline, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{storage: s, scorer: scorer, params: params, notifier: notifier}, nil
}

// Score computes tone scores and adjusted tone for documents dated within
// [from, to] and stores them. Rerunning it overwrites the same records.
func (p *Pipeline) Score(ctx context.Context, from, to, computedAt time.Time) (ScoreReport, error) {
	docs, err := p.storage.ListDocuments(from, to)
	if err != nil {
		return ScoreReport{}, err
	}
	obs, err := p.storage.Observations(time.Time{}, time.Time{})
	if err != nil {
		return ScoreReport{}, err
	}
	news, err := p.storage.Signals(time.Time{}, time.Time{})
	if err != nil {
		return ScoreReport{}, err
	}

	res, err := p.scorer.ScoreBatch(ctx, docs, tone.NewFeed(obs, news), computedAt)
	if err != nil {
		return ScoreReport{}, err
	}

	report := ScoreReport{Documents: len(docs), Failures: res.Failures}
	for _, item := range res.Items {
		if err := p.storage.SaveToneScore(&item.Score); err != nil {
			report.Failures = append(report.Failures, models.NewFailure(item.Score.DocumentID, err))
			continue
		}
		if err := p.storage.SaveAdjustedTone(&item.Index); err != nil {
			report.Failures = append(report.Failures, models.NewFailure(item.Index.DocumentID, err))
			continue
		}
		if item.Index.PartialComposite {
			report.Partial++
		}
		report.Scored++
	}

	for _, f := range report.Failures {
		logger.Warn("Failed to score document %s: %s", f.RecordID, f.Message)
	}
	logger.Info("Scored %d/%d documents (%d partial composites)", report.Scored, report.Documents, report.Partial)
	return report, nil
}

// Predict trains the configured strategy on the ledger and predicts the
// decision for every stored adjusted tone dated within [from, to].
func (p *Pipeline) Predict(ctx context.Context, from, to time.Time) (PredictReport, error) {
	series, err := p.storage.AdjustedToneSeries(p.params.Version)
	if err != nil {
		return PredictReport{}, err
	}
	ledger, err := p.storage.Ledger(time.Time{})
	if err != nil {
		return PredictReport{}, err
	}
	exclusions, err := p.storage.Exclusions()
	if err != nil {
		return PredictReport{}, err
	}

	samples := TrainingSamples(series, ledger, exclusions)
	strategy, err := classifier.Select(p.params.Classifier, samples)
	if err != nil {
		return PredictReport{}, err
	}

	report := PredictReport{TrainingSize: len(samples), Method: strategy.Method()}
	for _, idx := range series {
		if err := ctx.Err(); err != nil {
			return PredictReport{}, err
		}
		if !within(idx.EventDate, from, to) {
			continue
		}
		features := models.FeaturesFrom(idx)
		pred, err := strategy.Predict(features)
		if err != nil {
			report.Failures = append(report.Failures, models.NewFailure(idx.DocumentID, err))
			continue
		}
		report.Predictions = append(report.Predictions, models.PredictionResult{
			DocumentID:       idx.DocumentID,
			EventDate:        idx.EventDate,
			ParameterVersion: p.params.Version,
			LexiconVersion:   idx.LexiconVersion,
			Probabilities:    pred.Probabilities,
			Predicted:        pred.Predicted,
			Method:           pred.Method,
			Features:         features,
		})
	}

	if err := p.storage.SavePredictions(report.Predictions); err != nil {
		return PredictReport{}, err
	}
	logger.Info("Predicted %d documents with %s (%d training samples, %d failed)",
		len(report.Predictions), report.Method, report.TrainingSize, len(report.Failures))
	return report, nil
}

// Run scores, predicts and notifies. A notification failure is logged and
// does not fail the cycle.
func (p *Pipeline) Run(ctx context.Context, from, to, computedAt time.Time) (Report, error) {
	score, err := p.Score(ctx, from, to, computedAt)
	if err != nil {
		return Report{}, err
	}
	pred, err := p.Predict(ctx, from, to)
	if err != nil {
		return Report{Score: score}, err
	}

	if p.notifier != nil && len(pred.Predictions) > 0 {
		if err := p.notifier.SendPredictions(pred.Predictions); err != nil {
			logger.Error("Failed to send notification: %v", err)
		}
	}
	return Report{Score: score, Predict: pred}, nil
}

// TrainingSamples labels each non-excluded ledger event with the latest
// adjusted tone dated on or before it. Events with no such record are skipped.
func TrainingSamples(series []models.AdjustedToneIndex, ledger []models.RateDecisionEvent, exclusions []models.ExclusionEntry) []classifier.Sample {
	excluded := make(map[string]bool, len(exclusions))
	for _, e := range exclusions {
		excluded[models.DateKey(e.Date)] = true
	}

	var samples []classifier.Sample
	i := 0
	var latest *models.AdjustedToneIndex
	for _, ev := range ledger {
		key := models.DateKey(ev.Date)
		for i < len(series) && models.DateKey(series[i].EventDate) <= key {
			latest = &series[i]
			i++
		}
		if excluded[key] || latest == nil {
			continue
		}
		samples = append(samples, classifier.Sample{
			Date:     key,
			Features: models.FeaturesFrom(*latest),
			Label:    ev.Decision,
		})
	}
	return samples
}

func within(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}
