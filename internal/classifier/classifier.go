// Package classifier predicts hike/hold/cut probabilities from tone features.
//
// Two strategies implement the same interface: a multinomial logistic model
// fitted on labelled history, and a deterministic threshold rule used when no
// model can be fitted or when the rule is configured directly.
package classifier

import (
	"fmt"

	"github.com/rewired-gh/policytone/internal/models"
)

// Strategy turns a feature vector into class probabilities.
type Strategy interface {
	Predict(f models.Features) (models.Prediction, error)
	Method() models.Method
}

// Sample is one labelled training example.
type Sample struct {
	Date     string
	Features models.Features
	Label    models.Decision
}

// Select picks the strategy for a parameter set. Method "heuristic" always
// returns the rule. Method "logistic" fits on samples and falls back to the
// rule when the samples cannot support a fit.
func Select(p models.ClassifierParams, samples []Sample) (Strategy, error) {
	rule := Heuristic{Threshold: p.Threshold}
	switch p.Method {
	case "heuristic":
		return rule, nil
	case "logistic", "":
		model, err := Fit(samples, p)
		if err != nil {
			if models.KindOf(err) == models.KindInsufficientLabels {
				return rule, nil
			}
			return nil, err
		}
		return model, nil
	}
	return nil, models.NewError(models.KindInputValidation, "classifier", "", "unknown method %q", p.Method)
}

// countLabels tallies samples per class in Decisions order.
func countLabels(samples []Sample) ([3]int, error) {
	var counts [3]int
	for _, s := range samples {
		i := s.Label.Index()
		if i < 0 {
			return counts, models.NewError(models.KindInputValidation, "classifier", s.Date, "unknown label %q", s.Label)
		}
		counts[i]++
	}
	return counts, nil
}

func formatCounts(c [3]int) string {
	return fmt.Sprintf("hike=%d hold=%d cut=%d", c[0], c[1], c[2])
}
