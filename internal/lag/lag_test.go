package lag

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/policytone/internal/models"
)

func noise(n int, seed uint64) []float64 {
	r := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]float64, n)
	for i := range out {
		out[i] = r.NormFloat64()
	}
	return out
}

func shifted(x []float64, by int, eps []float64, scale float64) []float64 {
	out := make([]float64, len(x))
	for t := range out {
		out[t] = math.NaN()
		if s := t - by; s >= 0 && s < len(x) {
			out[t] = x[s] + scale*eps[t]
		}
	}
	return out
}

func TestAnalyzeRecoversLeadingLag(t *testing.T) {
	tone := noise(200, 7)
	ref := shifted(tone, 5, noise(200, 99), 0.3)

	res, err := Analyze("cpi", tone, ref, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 5, res.BestLag)
	assert.Equal(t, Leading, res.Classification)
	assert.Equal(t, 1, res.Sign)
	assert.Greater(t, res.Correlation, 0.8)
	assert.Len(t, res.Profile, 61)
}

func TestAnalyzeRecoversLaggingLag(t *testing.T) {
	ref := noise(150, 3)
	tone := shifted(ref, 4, noise(150, 4), 0.2)
	for i := range tone {
		tone[i] = -tone[i]
	}

	res, err := Analyze("ktb_3y", tone, ref, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, -4, res.BestLag)
	assert.Equal(t, Lagging, res.Classification)
	assert.Equal(t, -1, res.Sign)
}

func TestAnalyzeTolerance(t *testing.T) {
	tone := noise(120, 11)
	ref := shifted(tone, 1, noise(120, 12), 0.1)
	cfg := DefaultConfig()
	cfg.Tolerance = 1
	res, err := Analyze("x", tone, ref, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, res.BestLag)
	assert.Equal(t, Coincident, res.Classification)
}

func TestAnalyzeExcludesShortOverlap(t *testing.T) {
	tone := noise(25, 5)
	ref := shifted(tone, 2, noise(25, 6), 0.1)

	res, err := Analyze("x", tone, ref, Config{MaxLag: 20, MinOverlap: 10})
	require.NoError(t, err)
	assert.Contains(t, res.Excluded, 20)
	assert.Contains(t, res.Excluded, -20)
	for _, p := range res.Profile {
		assert.GreaterOrEqual(t, p.Overlap, 10)
		assert.NotContains(t, res.Excluded, p.Lag)
	}

	_, err = Analyze("x", tone[:8], ref[:8], DefaultConfig())
	assert.ErrorIs(t, err, models.ErrInsufficientOverlap)
}

func TestAnalyzeLengthMismatch(t *testing.T) {
	_, err := Analyze("x", make([]float64, 3), make([]float64, 4), DefaultConfig())
	assert.ErrorIs(t, err, models.ErrInputValidation)
}

func TestPickBestTieBreak(t *testing.T) {
	byLag := map[int]Point{
		-3: {Lag: -3, Correlation: 0.9},
		3:  {Lag: 3, Correlation: -0.9},
		5:  {Lag: 5, Correlation: 0.5},
	}
	assert.Equal(t, -3, pickBest(byLag, 5).Lag)

	byLag[2] = Point{Lag: 2, Correlation: 0.9}
	assert.Equal(t, 2, pickBest(byLag, 5).Lag)

	byLag[0] = Point{Lag: 0, Correlation: -0.9}
	assert.Equal(t, 0, pickBest(byLag, 5).Lag)
}

func TestAlignDaily(t *testing.T) {
	d := func(n int) time.Time { return time.Date(2024, 1, n, 9, 0, 0, 0, time.UTC) }
	dates, x, y := AlignDaily(
		[]models.Observation{{Date: d(3), Value: 1}, {Date: d(1), Value: 2}},
		[]models.Observation{{Date: d(2), Value: 5}, {Date: d(4), Value: 6}},
	)
	require.Len(t, dates, 4)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), dates[0])
	assert.Equal(t, 2.0, x[0])
	assert.True(t, math.IsNaN(x[1]))
	assert.Equal(t, 1.0, x[2])
	assert.True(t, math.IsNaN(y[0]))
	assert.Equal(t, 6.0, y[3])
}

func TestGranger(t *testing.T) {
	n := 300
	x := noise(n, 21)
	eps := noise(n, 22)
	y := make([]float64, n)
	for i := 1; i < n; i++ {
		y[i] = 0.8*x[i-1] + 0.3*eps[i]
	}

	xy, err := Granger("t", x, y, 2)
	require.NoError(t, err)
	assert.Less(t, xy.PValue, 1e-6)
	assert.Equal(t, 2, xy.DF1)
	assert.Equal(t, xy.Rows-5, xy.DF2)

	yx, err := Granger("t", y, x, 2)
	require.NoError(t, err)
	assert.Greater(t, xy.F, yx.F)

	_, err = Granger("t", x[:6], y[:6], 2)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}
