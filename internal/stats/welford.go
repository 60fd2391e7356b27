// Package stats holds small numeric helpers shared by the analytics packages.
package stats

import "math"

// Epsilon guards divisions by near-zero spreads.
const Epsilon = 1e-9

// Running accumulates mean and variance in one pass (Welford).
type Running struct {
	Count int
	Mean  float64
	M2    float64
}

// Add folds x into the accumulator.
func (r *Running) Add(x float64) {
	r.Count++
	delta := x - r.Mean
	r.Mean += delta / float64(r.Count)
	delta2 := x - r.Mean
	r.M2 += delta * delta2
}

// PopulationStdDev is the standard deviation with n in the denominator.
func (r *Running) PopulationStdDev() float64 {
	if r.Count < 1 {
		return 0
	}
	return math.Sqrt(r.M2 / float64(r.Count))
}

// SampleStdDev is the standard deviation with n-1 in the denominator.
func (r *Running) SampleStdDev() float64 {
	if r.Count < 2 {
		return 0
	}
	return math.Sqrt(r.M2 / float64(r.Count-1))
}

// Scaler standardizes feature columns to zero mean and unit variance.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler computes per-column mean and population std. Constant columns get
// scale 1 so they map to zero.
func FitScaler(rows [][]float64) Scaler {
	if len(rows) == 0 {
		return Scaler{}
	}
	cols := len(rows[0])
	acc := make([]Running, cols)
	for _, row := range rows {
		for j, x := range row {
			acc[j].Add(x)
		}
	}
	s := Scaler{Mean: make([]float64, cols), Scale: make([]float64, cols)}
	for j := range acc {
		s.Mean[j] = acc[j].Mean
		sd := acc[j].PopulationStdDev()
		if sd < Epsilon {
			sd = 1
		}
		s.Scale[j] = sd
	}
	return s
}

// Transform returns a standardized copy of x.
func (s Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out
}

// Clip bounds x to [lo, hi].
func Clip(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
