package taylor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/policytone/internal/models"
)

func f(v float64) *float64 { return &v }

var refParams = models.TaylorParams{RStar: 2.0, PiStar: 2.0, AlphaPi: 0.5, AlphaY: 0.5, Gamma: 0.3, Rho: 0.8, Delta: 0.5}

func TestImpliedRateReferenceCase(t *testing.T) {
	r := NewRule(refParams)
	got, err := r.ImpliedRate(time.Now(), Inputs{Inflation: f(3.0), OutputGap: f(0.0)})
	require.NoError(t, err)
	// 2.0 + 3.0 + 0.5*(3.0-2.0) + 0.5*0.0
	assert.InDelta(t, 5.5, got, 1e-12)
}

func TestImpliedRateTable(t *testing.T) {
	r := NewRule(refParams)
	tests := []struct {
		pi, gap, want float64
	}{
		{2.0, 0.0, 4.0},
		{2.0, -2.0, 3.0},
		{1.0, 1.0, 3.0},
		{5.0, 1.5, 9.25},
	}
	for _, tt := range tests {
		got, err := r.ImpliedRate(time.Now(), Inputs{Inflation: f(tt.pi), OutputGap: f(tt.gap)})
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-12, "pi=%v gap=%v", tt.pi, tt.gap)
	}
}

func TestMissingInputs(t *testing.T) {
	r := NewRule(refParams)
	date := time.Date(2023, 5, 25, 0, 0, 0, 0, time.UTC)

	_, err := r.ImpliedRate(date, Inputs{OutputGap: f(0)})
	assert.ErrorIs(t, err, models.ErrMissingInput)
	assert.Contains(t, err.Error(), "2023-05-25")

	_, err = r.ImpliedRate(date, Inputs{Inflation: f(2)})
	assert.ErrorIs(t, err, models.ErrMissingInput)

	_, err = r.Target(Extended, date, Inputs{Inflation: f(2), OutputGap: f(0)})
	assert.ErrorIs(t, err, models.ErrMissingInput)

	_, err = r.Target(Augmented, date, Inputs{Inflation: f(2), OutputGap: f(0)})
	assert.ErrorIs(t, err, models.ErrMissingInput)

	_, err = r.Target("quadratic", date, Inputs{Inflation: f(2), OutputGap: f(0)})
	assert.ErrorIs(t, err, models.ErrInputValidation)
}

func TestVariants(t *testing.T) {
	r := NewRule(refParams)
	in := Inputs{Inflation: f(3), OutputGap: f(1), FSI: f(2), Tone: f(-0.4)}

	ext, err := r.Target(Extended, time.Now(), in)
	require.NoError(t, err)
	assert.InDelta(t, 6.0+0.3*2, ext, 1e-12)

	_, err = r.Target(Augmented, time.Now(), in)
	assert.ErrorIs(t, err, models.ErrInputValidation, "augmented needs a sensitivity")

	aug, err := r.WithSensitivity(1.5).Target(Augmented, time.Now(), in)
	require.NoError(t, err)
	assert.InDelta(t, 6.0+0.3*2+0.5*1.5*-0.4, aug, 1e-12)
}

func TestSeriesSmoothingAndFailures(t *testing.T) {
	r := NewRule(refParams)
	d := func(m int) time.Time { return time.Date(2024, time.Month(m), 1, 0, 0, 0, 0, time.UTC) }

	points := []Point{
		{Date: d(3), Inputs: Inputs{Inflation: f(3), OutputGap: f(0), FSI: f(0)}},
		{Date: d(1), Inputs: Inputs{Inflation: f(2), OutputGap: f(0), FSI: f(0)}},
		{Date: d(2), Inputs: Inputs{Inflation: f(2), FSI: f(0)}},
	}
	est, failures := r.Series(Extended, points)
	require.Len(t, est, 2)
	require.Len(t, failures, 1)
	assert.Equal(t, "2024-02-01", failures[0].RecordID)

	assert.Equal(t, d(1), est[0].Date)
	assert.InDelta(t, 4.0, est[0].Rate, 1e-12, "first rate is its own target")
	assert.InDelta(t, 5.5, est[1].Target, 1e-12)
	assert.InDelta(t, 0.8*4.0+0.2*5.5, est[1].Rate, 1e-12)

	std, failures := r.Series(Standard, points)
	assert.Len(t, failures, 1)
	assert.InDelta(t, std[1].Target, std[1].Rate, 1e-12)
}

func TestAugmentedSeriesIsSmoothed(t *testing.T) {
	r := NewRule(refParams).WithSensitivity(1)
	d := func(m int) time.Time { return time.Date(2024, time.Month(m), 1, 0, 0, 0, 0, time.UTC) }
	points := []Point{
		{Date: d(1), Inputs: Inputs{Inflation: f(2), OutputGap: f(0), FSI: f(0), Tone: f(0.4)}},
		{Date: d(2), Inputs: Inputs{Inflation: f(3), OutputGap: f(0), FSI: f(1)}},
	}
	est, failures := r.Series(Augmented, points)
	require.Empty(t, failures)
	require.Len(t, est, 2)
	assert.InDelta(t, 4.0+0.5*0.4, est[0].Rate, 1e-12)
	// missing tone reads as neutral
	assert.InDelta(t, 5.5+0.3, est[1].Target, 1e-12)
	assert.InDelta(t, 0.8*est[0].Rate+0.2*est[1].Target, est[1].Rate, 1e-12)
}

func residualPoints(n int, slope float64) []Point {
	points := make([]Point, n)
	for i := range points {
		tone := float64(i%7)/3 - 1
		// standard rule is 4.0 at pi=2, gap=0
		points[i] = Point{
			Date:   time.Date(2020, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC),
			Inputs: Inputs{Inflation: f(2), OutputGap: f(0), FSI: f(0), Tone: f(tone), PolicyRate: f(4 + 0.3 + slope*tone)},
		}
	}
	return points
}

func TestFitSensitivity(t *testing.T) {
	r := NewRule(refParams)

	s := r.FitSensitivity(residualPoints(24, 0.8))
	assert.Equal(t, 24, s.Rows)
	assert.InDelta(t, 0.8, s.Value, 1e-9)
	assert.InDelta(t, 0.3, s.Intercept, 1e-9)
	assert.InDelta(t, 1.0, s.RSquared, 1e-9)

	assert.Equal(t, MaxSensitivity, r.FitSensitivity(residualPoints(24, 5)).Value)
	assert.Equal(t, -MaxSensitivity, r.FitSensitivity(residualPoints(24, -5)).Value)

	few := r.FitSensitivity(residualPoints(MinSensitivityRows-1, 0.8))
	assert.Zero(t, few.Value)
	assert.Equal(t, MinSensitivityRows-1, few.Rows)

	fitted, _ := r.Series(Augmented, residualPoints(24, 0.8))
	fixed, _ := r.WithSensitivity(0.8).Series(Augmented, residualPoints(24, 0.8))
	require.Len(t, fitted, 24)
	for i := range fitted {
		assert.InDelta(t, fixed[i].Rate, fitted[i].Rate, 1e-9)
	}
}

func TestJoin(t *testing.T) {
	d := func(m, day int) time.Time { return time.Date(2024, time.Month(m), day, 0, 0, 0, 0, time.UTC) }
	points := Join(SeriesSet{
		Inflation:  []models.Observation{{Date: d(2, 1), Value: 2.1}, {Date: d(1, 1), Value: 2.0}, {Date: d(4, 1), Value: 2.3}, {Date: d(3, 1), Value: 2.2}},
		OutputGap:  []models.Observation{{Date: d(1, 1), Value: -0.5}, {Date: d(4, 1), Value: 0.25}},
		PolicyRate: []models.Observation{{Date: d(1, 15), Value: 3.5}, {Date: d(3, 3), Value: 3.25}},
		Tone: []models.Observation{
			{Date: d(1, 11), Value: 0.2},
			{Date: d(2, 22), Value: 0.5},
			{Date: d(2, 22), Value: 0.3},
			{Date: d(3, 10), Value: -0.1},
		},
	})
	require.Len(t, points, 4)
	assert.Equal(t, d(1, 1), points[0].Date)
	assert.Equal(t, 2.0, *points[0].Inputs.Inflation)
	assert.Equal(t, -0.5, *points[0].Inputs.OutputGap)
	assert.Nil(t, points[0].Inputs.PolicyRate)
	assert.Nil(t, points[0].Inputs.FSI)

	assert.Equal(t, -0.5, *points[2].Inputs.OutputGap, "quarterly gap is carried forward")
	assert.Equal(t, 0.25, *points[3].Inputs.OutputGap)
	assert.Equal(t, 3.5, *points[1].Inputs.PolicyRate)
	assert.Equal(t, 3.25, *points[3].Inputs.PolicyRate)

	// tone lags one meeting
	assert.Nil(t, points[0].Inputs.Tone)
	assert.Nil(t, points[1].Inputs.Tone)
	assert.InDelta(t, 0.2, *points[2].Inputs.Tone, 1e-12)
	assert.InDelta(t, 0.4, *points[3].Inputs.Tone, 1e-12, "same-day documents are one meeting")
}
