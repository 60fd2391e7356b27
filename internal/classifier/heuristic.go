package classifier

import (
	"math"

	"github.com/rewired-gh/policytone/internal/models"
)

// Heuristic classifies by thresholding the adjusted tone: above +Threshold is a
// hike, below -Threshold a cut, otherwise hold.
type Heuristic struct {
	Threshold float64
}

func (h Heuristic) Method() models.Method { return models.MethodHeuristic }

func (h Heuristic) Predict(f models.Features) (models.Prediction, error) {
	t := f.AdjustedTone
	if math.IsNaN(t) {
		return models.Prediction{}, models.NewError(models.KindInputValidation, "classifier", "", "adjusted tone is NaN")
	}

	var raw [3]float64
	var predicted models.Decision
	switch {
	case t > h.Threshold:
		a := math.Abs(t)
		raw = [3]float64{0.6 + 0.3*a, 0.3 - 0.1*a, 0.1 - 0.05*a}
		predicted = models.Hike
	case t < -h.Threshold:
		a := math.Abs(t)
		raw = [3]float64{0.1 - 0.05*a, 0.3 - 0.1*a, 0.6 + 0.3*a}
		predicted = models.Cut
	default:
		raw = [3]float64{0.15 + 0.2*t, 0.7, 0.15 - 0.2*t}
		predicted = models.Hold
	}

	var sum float64
	for i := range raw {
		raw[i] = math.Max(raw[i], 0)
		sum += raw[i]
	}
	for i := range raw {
		raw[i] /= sum
	}
	return models.Prediction{
		Probabilities: models.ProbabilitiesFrom(raw),
		Predicted:     predicted,
		Method:        models.MethodHeuristic,
	}, nil
}
