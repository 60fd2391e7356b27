package decompose

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/rewired-gh/policytone/internal/models"
)

func gdpSeries() []float64 {
	y := make([]float64, 40)
	for i := range y {
		y[i] = 100 + 0.8*float64(i) + 2*math.Sin(float64(i)/3)
	}
	return y
}

func TestLinearSeriesHasNoCycle(t *testing.T) {
	y := make([]float64, 20)
	for i := range y {
		y[i] = 50 + 1.5*float64(i)
	}
	res, err := NewFilter(0, 0).Decompose("linear", y)
	require.NoError(t, err)
	for i := range y {
		assert.InDelta(t, y[i], res.Trend[i], 1e-6)
		assert.InDelta(t, 0, res.OutputGap[i], 1e-6)
	}
}

func TestCycleSumsToZero(t *testing.T) {
	res, err := NewFilter(DefaultLambda, MinPoints).Decompose("gdp", gdpSeries())
	require.NoError(t, err)
	sum := 0.0
	for _, c := range res.Cycle {
		sum += c
	}
	assert.InDelta(t, 0, sum, 1e-6)
}

func TestOutputGapIsPercentOfTrend(t *testing.T) {
	y := gdpSeries()
	res, err := NewFilter(DefaultLambda, MinPoints).Decompose("gdp", y)
	require.NoError(t, err)
	for i := range y {
		assert.InDelta(t, y[i], res.Trend[i]+res.Cycle[i], 1e-9)
		assert.InDelta(t, res.Cycle[i]/res.Trend[i]*100, res.OutputGap[i], 1e-12)
	}
}

func TestSmallLambdaTracksSeries(t *testing.T) {
	y := gdpSeries()
	res, err := NewFilter(1e-9, MinPoints).Decompose("gdp", y)
	require.NoError(t, err)
	for i := range y {
		assert.InDelta(t, y[i], res.Trend[i], 1e-5)
	}
}

func TestInsufficientData(t *testing.T) {
	_, err := NewFilter(0, 0).Decompose("short", []float64{1, 2, 3, 4, 5, 6, 7})
	assert.ErrorIs(t, err, models.ErrInsufficientData)
	assert.Contains(t, err.Error(), "short")

	_, err = NewFilter(0, 0).OneSided("short", []float64{1, 2})
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestInvalidInput(t *testing.T) {
	y := gdpSeries()
	y[5] = math.NaN()
	_, err := NewFilter(0, 0).Decompose("gdp", y)
	assert.ErrorIs(t, err, models.ErrInputValidation)

	_, err = NewFilter(0, 0).Decompose("zeros", make([]float64, 10))
	assert.ErrorIs(t, err, models.ErrInputValidation)
}

func TestOneSidedUsesOnlyPastData(t *testing.T) {
	f := NewFilter(DefaultLambda, MinPoints)
	y := gdpSeries()
	gaps, err := f.OneSided("gdp", y)
	require.NoError(t, err)

	for i := 0; i < MinPoints-1; i++ {
		assert.True(t, math.IsNaN(gaps[i]))
	}

	altered := append([]float64(nil), y...)
	for i := 25; i < len(altered); i++ {
		altered[i] *= 1.5
	}
	altGaps, err := f.OneSided("gdp", altered)
	require.NoError(t, err)
	for i := MinPoints - 1; i < 25; i++ {
		assert.Equal(t, gaps[i], altGaps[i], "gap at %d must not depend on later points", i)
	}

	prefix, err := f.Decompose("gdp", y[:20])
	require.NoError(t, err)
	assert.InDelta(t, prefix.OutputGap[19], gaps[19], 1e-12)
}

// denseTrend solves the same system with a full matrix.
func denseTrend(t *testing.T, lambda float64, y []float64) []float64 {
	t.Helper()
	n := len(y)
	a := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		a.SetSym(i, i, 1)
	}
	coef := [3]float64{1, -2, 1}
	for r := 0; r < n-2; r++ {
		for p := 0; p < 3; p++ {
			for q := p; q < 3; q++ {
				a.SetSym(r+p, r+q, a.At(r+p, r+q)+lambda*coef[p]*coef[q])
			}
		}
	}
	var chol mat.Cholesky
	require.True(t, chol.Factorize(a))
	var tau mat.VecDense
	require.NoError(t, chol.SolveVecTo(&tau, mat.NewVecDense(n, append([]float64(nil), y...))))
	return tau.RawVector().Data
}

func TestBandSolveMatchesDenseSolve(t *testing.T) {
	y := gdpSeries()
	res, err := NewFilter(DefaultLambda, MinPoints).Decompose("gdp", y)
	require.NoError(t, err)
	want := denseTrend(t, DefaultLambda, y)
	for i := range y {
		assert.InDelta(t, want[i], res.Trend[i], 1e-8)
	}
}

func TestLongDailySeries(t *testing.T) {
	y := make([]float64, 20000)
	for i := range y {
		y[i] = 1300 + 0.01*float64(i) + 15*math.Sin(float64(i)/90)
	}
	res, err := NewFilter(400000, MinPoints).Decompose("usd_krw", y)
	require.NoError(t, err)
	for i := range y {
		assert.InDelta(t, y[i], res.Trend[i]+res.Cycle[i], 1e-6)
	}

	gaps, err := NewFilter(400000, MinPoints).OneSided("usd_krw", y[:1500])
	require.NoError(t, err)
	assert.False(t, math.IsNaN(gaps[1499]))
}

func TestOneSidedCycleMatchesGap(t *testing.T) {
	f := NewFilter(DefaultLambda, MinPoints)
	y := gdpSeries()
	gaps, err := f.OneSided("gdp", y)
	require.NoError(t, err)
	cycles, err := f.OneSidedCycle("gdp", y)
	require.NoError(t, err)
	for i := range y {
		if i < MinPoints-1 {
			assert.True(t, math.IsNaN(cycles[i]))
			continue
		}
		trend := y[i] - cycles[i]
		assert.InDelta(t, cycles[i]/trend*100, gaps[i], 1e-9)
	}
}
