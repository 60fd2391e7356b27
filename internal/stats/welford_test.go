package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunningMatchesDirectComputation(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	var r Running
	for _, x := range xs {
		r.Add(x)
	}
	assert.Equal(t, 8, r.Count)
	assert.InDelta(t, 5.0, r.Mean, 1e-12)
	assert.InDelta(t, 2.0, r.PopulationStdDev(), 1e-12)
	assert.InDelta(t, math.Sqrt(32.0/7.0), r.SampleStdDev(), 1e-12)
}

func TestRunningEmpty(t *testing.T) {
	var r Running
	assert.Zero(t, r.PopulationStdDev())
	assert.Zero(t, r.SampleStdDev())
}

func TestScalerConstantColumn(t *testing.T) {
	s := FitScaler([][]float64{{1, 3}, {3, 3}, {5, 3}})
	assert.Equal(t, []float64{3, 3}, s.Mean)
	assert.Equal(t, 1.0, s.Scale[1])

	got := s.Transform([]float64{5, 3})
	assert.InDelta(t, 2/math.Sqrt(8.0/3.0), got[0], 1e-12)
	assert.Zero(t, got[1])
}

func TestClip(t *testing.T) {
	assert.Equal(t, 1.0, Clip(1.5, -1, 1))
	assert.Equal(t, -1.0, Clip(-3, -1, 1))
	assert.Equal(t, 0.25, Clip(0.25, -1, 1))
}
