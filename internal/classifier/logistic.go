package classifier

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/rewired-gh/policytone/internal/models"
	"github.com/rewired-gh/policytone/internal/stats"
)

const numFeatures = 4

// Logistic is a fitted multinomial logistic regression. The last coefficient
// of each row is the intercept.
type Logistic struct {
	Scaler  stats.Scaler                `json:"scaler"`
	Coef    [3][numFeatures + 1]float64 `json:"coef"`
	Samples int                         `json:"samples"`
}

// Fit trains with batch gradient descent from zero weights, so the result is a
// deterministic function of the samples and parameters.
func Fit(samples []Sample, p models.ClassifierParams) (*Logistic, error) {
	counts, err := countLabels(samples)
	if err != nil {
		return nil, err
	}
	minPer := p.MinPerClass
	if minPer < 1 {
		minPer = 2
	}
	for _, c := range counts {
		if c < minPer {
			return nil, models.NewError(models.KindInsufficientLabels, "classifier", "",
				"need %d samples per class, have %s", minPer, formatCounts(counts))
		}
	}

	raw := make([][]float64, len(samples))
	for i, s := range samples {
		raw[i] = s.Features.Vector()
	}
	scaler := stats.FitScaler(raw)
	xs := make([][]float64, len(samples))
	ys := make([]int, len(samples))
	for i, s := range samples {
		xs[i] = append(scaler.Transform(raw[i]), 1)
		ys[i] = s.Label.Index()
	}

	m := &Logistic{Scaler: scaler, Samples: len(samples)}
	n := float64(len(samples))
	var grad [3][numFeatures + 1]float64
	for iter := 0; iter < p.Iterations; iter++ {
		grad = [3][numFeatures + 1]float64{}
		for i, x := range xs {
			probs := m.softmax(x)
			for k := range probs {
				diff := probs[k]
				if ys[i] == k {
					diff -= 1
				}
				floats.AddScaled(grad[k][:], diff, x)
			}
		}
		for k := range m.Coef {
			for j := range m.Coef[k] {
				g := grad[k][j] / n
				if j < numFeatures {
					g += p.L2 * m.Coef[k][j]
				}
				m.Coef[k][j] -= p.LearningRate * g
			}
		}
	}
	return m, nil
}

func (m *Logistic) Method() models.Method { return models.MethodClassifier }

func (m *Logistic) Predict(f models.Features) (models.Prediction, error) {
	v := f.Vector()
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return models.Prediction{}, models.NewError(models.KindInputValidation, "classifier", "", "non-finite feature in %v", v)
		}
	}
	pr := models.ProbabilitiesFrom(m.softmax(append(m.Scaler.Transform(v), 1)))
	return models.Prediction{
		Probabilities: pr,
		Predicted:     pr.Argmax(),
		Method:        models.MethodClassifier,
	}, nil
}

func (m *Logistic) softmax(x []float64) [3]float64 {
	var z [3]float64
	for k := range z {
		z[k] = floats.Dot(m.Coef[k][:], x)
	}
	hi := math.Max(z[0], math.Max(z[1], z[2]))
	var sum float64
	for k := range z {
		z[k] = math.Exp(z[k] - hi)
		sum += z[k]
	}
	for k := range z {
		z[k] /= sum
	}
	return z
}
