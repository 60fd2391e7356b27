// Package decompose splits macro series into trend and cycle.
package decompose

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/rewired-gh/policytone/internal/models"
)

const (
	// DefaultLambda is the conventional smoothing parameter for quarterly data.
	DefaultLambda = 1600.0
	// MinPoints is the shortest series the filter accepts.
	MinPoints = 8
)

// Result holds the decomposition of a series.
type Result struct {
	Trend     []float64 `json:"trend"`
	Cycle     []float64 `json:"cycle"`
	OutputGap []float64 `json:"output_gap"`
}

// Filter configures the Hodrick-Prescott filter.
type Filter struct {
	Lambda    float64
	MinPoints int
}

// NewFilter fills defaults for zero values.
func NewFilter(lambda float64, minPoints int) Filter {
	if lambda <= 0 {
		lambda = DefaultLambda
	}
	if minPoints < 3 {
		minPoints = MinPoints
	}
	return Filter{Lambda: lambda, MinPoints: minPoints}
}

// Decompose runs the two-sided filter. The output gap is cycle/trend in
// percent.
func (f Filter) Decompose(series string, y []float64) (Result, error) {
	if err := f.check(series, y); err != nil {
		return Result{}, err
	}
	trend, err := f.trend(series, y)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Trend:     trend,
		Cycle:     make([]float64, len(y)),
		OutputGap: make([]float64, len(y)),
	}
	for i := range y {
		res.Cycle[i] = y[i] - trend[i]
		if trend[i] == 0 {
			return Result{}, models.NewError(models.KindInputValidation, "decompose", series,
				"trend is zero at index %d, output gap undefined", i)
		}
		res.OutputGap[i] = res.Cycle[i] / trend[i] * 100
	}
	return res, nil
}

// OneSided computes the gap at each t from a two-sided filter over y[0..t]
// only. Points before MinPoints are NaN.
func (f Filter) OneSided(series string, y []float64) ([]float64, error) {
	trends, err := f.oneSidedTrend(series, y)
	if err != nil {
		return nil, err
	}
	gaps := make([]float64, len(y))
	for t, tr := range trends {
		switch {
		case math.IsNaN(tr):
			gaps[t] = math.NaN()
		case tr == 0:
			return nil, models.NewError(models.KindInputValidation, "decompose", series,
				"trend is zero at index %d, output gap undefined", t)
		default:
			gaps[t] = (y[t] - tr) / tr * 100
		}
	}
	return gaps, nil
}

// OneSidedCycle is OneSided in the units of y: the cycle y[t] - trend[t]
// rather than a percentage of trend.
func (f Filter) OneSidedCycle(series string, y []float64) ([]float64, error) {
	trends, err := f.oneSidedTrend(series, y)
	if err != nil {
		return nil, err
	}
	cycles := make([]float64, len(y))
	for t, tr := range trends {
		cycles[t] = y[t] - tr
	}
	return cycles, nil
}

// oneSidedTrend returns the end point of the trend fitted to each prefix.
func (f Filter) oneSidedTrend(series string, y []float64) ([]float64, error) {
	if err := f.check(series, y); err != nil {
		return nil, err
	}
	out := make([]float64, len(y))
	for t := range y {
		if t+1 < f.MinPoints {
			out[t] = math.NaN()
			continue
		}
		trend, err := f.trend(series, y[:t+1])
		if err != nil {
			return nil, err
		}
		out[t] = trend[t]
	}
	return out, nil
}

func (f Filter) check(series string, y []float64) error {
	if len(y) < f.MinPoints {
		return models.NewError(models.KindInsufficientData, "decompose", series,
			"need at least %d observations, got %d", f.MinPoints, len(y))
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.NewError(models.KindInputValidation, "decompose", series,
				"non-finite value at index %d", i)
		}
	}
	return nil
}

// trend solves (I + lambda*K'K) tau = y, K being the second-difference
// operator. The system is pentadiagonal, so it is stored as a symmetric band
// matrix with bandwidth 2 and solved in O(n).
func (f Filter) trend(series string, y []float64) ([]float64, error) {
	n := len(y)
	a := mat.NewSymBandDense(n, 2, nil)
	for i := 0; i < n; i++ {
		a.SetSymBand(i, i, 1)
	}
	coef := [3]float64{1, -2, 1}
	for r := 0; r < n-2; r++ {
		for p := 0; p < 3; p++ {
			for q := p; q < 3; q++ {
				i, j := r+p, r+q
				a.SetSymBand(i, j, a.At(i, j)+f.Lambda*coef[p]*coef[q])
			}
		}
	}

	var chol mat.BandCholesky
	if ok := chol.Factorize(a); !ok {
		return nil, models.NewError(models.KindInsufficientData, "decompose", series,
			"filter system is not positive definite")
	}
	var tau mat.VecDense
	if err := chol.SolveVecTo(&tau, mat.NewVecDense(n, append([]float64(nil), y...))); err != nil {
		return nil, models.WrapError(models.KindInsufficientData, "decompose", series, err, "failed to solve filter system")
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = tau.AtVec(i)
	}
	return out, nil
}
