// Package taylor estimates a model-implied policy rate.
package taylor

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/policytone/internal/models"
)

// Variant selects the rule specification.
type Variant string

const (
	// Standard is r* + pi + a_pi(pi - pi*) + a_y*gap.
	Standard Variant = "standard"
	// Extended adds gamma*FSI and partial adjustment with rho.
	Extended Variant = "extended"
	// Augmented adds delta*s*tone to the extended target, tone lagged one
	// meeting and s fitted on the standard-rule residual, with the same
	// partial adjustment.
	Augmented Variant = "augmented"
)

// Variants lists every rule variant.
var Variants = []Variant{Standard, Extended, Augmented}

// Sensitivity bounds and the fewest residual pairs a fit needs.
const (
	MaxSensitivity     = 2.0
	MinSensitivityRows = 11
)

// Inputs are the observations available for one date. Nil means absent.
// PolicyRate only enters the sensitivity fit.
type Inputs struct {
	Inflation  *float64
	OutputGap  *float64
	FSI        *float64
	Tone       *float64
	PolicyRate *float64
}

// Point is a dated set of inputs.
type Point struct {
	Date   time.Time
	Inputs Inputs
}

// Estimate is an implied rate for one date.
type Estimate struct {
	Date   time.Time `json:"date"`
	Target float64   `json:"target"`
	Rate   float64   `json:"rate"`
}

// Sensitivity is the OLS slope of (policy rate - standard rule) on lagged
// tone, clipped to +-MaxSensitivity.
type Sensitivity struct {
	Value     float64 `json:"value"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
	Rows      int     `json:"rows"`
}

// Rule evaluates the structural rate for a parameter set.
type Rule struct {
	p           models.TaylorParams
	sensitivity *float64
}

func NewRule(p models.TaylorParams) Rule {
	return Rule{p: p}
}

// WithSensitivity fixes the tone sensitivity instead of fitting it.
func (r Rule) WithSensitivity(s float64) Rule {
	r.sensitivity = &s
	return r
}

// ImpliedRate is the standard rule for one date.
func (r Rule) ImpliedRate(date time.Time, in Inputs) (float64, error) {
	return r.Target(Standard, date, in)
}

// Target evaluates the unsmoothed target of a variant. Augmented needs a
// sensitivity set through WithSensitivity and treats in.Tone as already lagged.
func (r Rule) Target(v Variant, date time.Time, in Inputs) (float64, error) {
	id := models.DateKey(date)
	if in.Inflation == nil {
		return 0, models.NewError(models.KindMissingInput, "taylor", id, "inflation is absent")
	}
	if in.OutputGap == nil {
		return 0, models.NewError(models.KindMissingInput, "taylor", id, "output gap is absent")
	}
	pi, gap := *in.Inflation, *in.OutputGap
	target := r.p.RStar + pi + r.p.AlphaPi*(pi-r.p.PiStar) + r.p.AlphaY*gap

	switch v {
	case Standard:
	case Extended, Augmented:
		if in.FSI == nil {
			return 0, models.NewError(models.KindMissingInput, "taylor", id, "financial stress index is absent")
		}
		target += r.p.Gamma * *in.FSI
		if v == Extended {
			break
		}
		if in.Tone == nil {
			return 0, models.NewError(models.KindMissingInput, "taylor", id, "tone is absent")
		}
		if r.sensitivity == nil {
			return 0, models.NewError(models.KindInputValidation, "taylor", id, "tone sensitivity is not set")
		}
		target += r.p.Delta * *r.sensitivity * *in.Tone
	default:
		return 0, models.NewError(models.KindInputValidation, "taylor", id, "unknown variant %q", v)
	}
	return target, nil
}

// FitSensitivity regresses the standard-rule residual on the tone of points
// that carry a policy rate. With fewer than MinSensitivityRows pairs, or no
// tone variation, the sensitivity is zero.
func (r Rule) FitSensitivity(points []Point) Sensitivity {
	var x, y []float64
	for _, pt := range points {
		in := pt.Inputs
		if in.PolicyRate == nil || in.Tone == nil {
			continue
		}
		std, err := r.Target(Standard, pt.Date, in)
		if err != nil {
			continue
		}
		x = append(x, *in.Tone)
		y = append(y, *in.PolicyRate-std)
	}
	res := Sensitivity{Rows: len(x)}
	if len(x) < MinSensitivityRows {
		return res
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return res
	}
	res.Intercept = alpha
	res.Value = math.Max(-MaxSensitivity, math.Min(MaxSensitivity, beta))
	if rsq := stat.RSquared(x, y, nil, alpha, beta); !math.IsNaN(rsq) {
		res.RSquared = rsq
	}
	return res
}

// Series evaluates a variant over points in date order. Dates with missing
// inputs are reported as failures and skipped; under Extended and Augmented
// the partial adjustment carries the last valid rate across them. Augmented
// reads a missing tone as neutral and fits the sensitivity on the points
// unless one was set.
func (r Rule) Series(v Variant, points []Point) ([]Estimate, []models.Failure) {
	sorted := append([]Point(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	if v == Augmented {
		for i := range sorted {
			if sorted[i].Inputs.Tone == nil {
				neutral := 0.0
				sorted[i].Inputs.Tone = &neutral
			}
		}
		if r.sensitivity == nil {
			r = r.WithSensitivity(r.FitSensitivity(sorted).Value)
		}
	}

	var out []Estimate
	var failures []models.Failure
	var prev *float64
	for _, pt := range sorted {
		target, err := r.Target(v, pt.Date, pt.Inputs)
		if err != nil {
			failures = append(failures, models.NewFailure(models.DateKey(pt.Date), err))
			continue
		}
		rate := target
		if v != Standard && prev != nil {
			rate = r.p.Rho**prev + (1-r.p.Rho)*target
		}
		prev = &rate
		out = append(out, Estimate{Date: pt.Date, Target: target, Rate: rate})
	}
	return out, failures
}

// SeriesSet holds the dated inputs of the rule.
type SeriesSet struct {
	Inflation  []models.Observation
	OutputGap  []models.Observation
	FSI        []models.Observation
	Tone       []models.Observation
	PolicyRate []models.Observation
}

// Join builds one point per inflation date. Every other input takes its
// latest observation on or before that date, so quarterly gaps, monthly
// stress and daily rates line up with monthly inflation. Tone is lagged one
// meeting: a point sees the tone of the meeting before the latest one, where
// documents sharing a date count as one meeting with their mean tone.
func Join(s SeriesSet) []Point {
	infl := sortedObs(s.Inflation)
	carry := []struct {
		obs []models.Observation
		lag int
		set func(*Inputs, *float64)
	}{
		{sortedObs(s.OutputGap), 0, func(in *Inputs, v *float64) { in.OutputGap = v }},
		{sortedObs(s.FSI), 0, func(in *Inputs, v *float64) { in.FSI = v }},
		{dailyMean(s.Tone), 1, func(in *Inputs, v *float64) { in.Tone = v }},
		{sortedObs(s.PolicyRate), 0, func(in *Inputs, v *float64) { in.PolicyRate = v }},
	}
	idx := make([]int, len(carry))
	for i := range idx {
		idx[i] = -1
	}

	var points []Point
	for k, o := range infl {
		if k > 0 && models.DateKey(infl[k-1].Date) == models.DateKey(o.Date) {
			points = points[:len(points)-1]
		}
		pi := o.Value
		pt := Point{Date: o.Date, Inputs: Inputs{Inflation: &pi}}
		key := models.DateKey(o.Date)
		for c, src := range carry {
			for idx[c]+1 < len(src.obs) && models.DateKey(src.obs[idx[c]+1].Date) <= key {
				idx[c]++
			}
			if j := idx[c] - src.lag; j >= 0 {
				v := src.obs[j].Value
				src.set(&pt.Inputs, &v)
			}
		}
		points = append(points, pt)
	}
	return points
}

func dailyMean(obs []models.Observation) []models.Observation {
	var out []models.Observation
	n := 0
	for _, o := range sortedObs(obs) {
		if last := len(out) - 1; last >= 0 && models.DateKey(out[last].Date) == models.DateKey(o.Date) {
			n++
			out[last].Value += (o.Value - out[last].Value) / float64(n)
			continue
		}
		out = append(out, o)
		n = 1
	}
	return out
}
