package curve

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/policytone/internal/models"
)

const (
	// SpreadDiscount maps the curve slope onto the 3y yield.
	SpreadDiscount = 0.25
	// ImpliedSpan is the trailing window, in trading days, of the smoothed
	// implied rate.
	ImpliedSpan = 20
	// ToneScale converts tone into percentage points of expected rate.
	ToneScale = 0.25

	// MinSurprise and SurpriseStdDevs set the surprise threshold.
	MinSurprise     = 0.25
	SurpriseStdDevs = 1.25
)

// ImpliedPoint is the policy rate the curve implies on one trading day.
type ImpliedPoint struct {
	Date     time.Time `json:"date"`
	BaseRate float64   `json:"base_rate"`
	KTB3Y    float64   `json:"ktb_3y"`
	KTB10Y   float64   `json:"ktb_10y"`
	Spread   float64   `json:"spread"`
	Implied  float64   `json:"implied"`
	Smoothed float64   `json:"smoothed"`
}

// DivergencePoint compares the tone-adjusted market expectation with the
// policy rate in force at one meeting.
type DivergencePoint struct {
	Date              time.Time `json:"date"`
	Tone              float64   `json:"tone"`
	Expected          float64   `json:"expected"`
	Actual            float64   `json:"actual"`
	Divergence        float64   `json:"divergence"`
	Cumulative        float64   `json:"cumulative"`
	ExpectedDirection int       `json:"expected_direction"`
	ActualDirection   int       `json:"actual_direction"`
	DirectionMatch    bool      `json:"direction_match"`
}

// Surprise is a meeting whose divergence clears the threshold.
type Surprise struct {
	DivergencePoint
	Magnitude float64 `json:"magnitude"`
	Hawkish   bool    `json:"hawkish"`
}

// ImpliedPolicyRate discounts the 3y yield by a quarter of the 10y-3y spread
// on days both yields print. The base rate is carried forward; days before
// the first base rate are dropped.
func ImpliedPolicyRate(base, ktb3y, ktb10y []models.Observation) []ImpliedPoint {
	short := byDay(ktb3y)
	long := byDay(ktb10y)
	rates := byDay(base)

	var out []ImpliedPoint
	var raw []float64
	j := -1
	for _, s := range short {
		key := models.DateKey(s.Date)
		l, ok := findDay(long, key)
		if !ok {
			continue
		}
		for j+1 < len(rates) && models.DateKey(rates[j+1].Date) <= key {
			j++
		}
		if j < 0 {
			continue
		}
		spread := l.Value - s.Value
		pt := ImpliedPoint{
			Date:     s.Date,
			BaseRate: rates[j].Value,
			KTB3Y:    s.Value,
			KTB10Y:   l.Value,
			Spread:   spread,
			Implied:  s.Value - SpreadDiscount*spread,
		}
		raw = append(raw, pt.Implied)
		out = append(out, pt)
	}
	for i, v := range trailingMean(raw, ImpliedSpan) {
		out[i].Smoothed = v
	}
	return out
}

// Divergence pairs each meeting with the latest implied point on or before
// it. Documents sharing a date count as one meeting with their mean tone;
// meetings before the first implied point are dropped. Directions compare each
// meeting with the previous one, and the first meeting has none.
func Divergence(implied []ImpliedPoint, tone []models.Observation) []DivergencePoint {
	meetings := byDay(tone)
	var out []DivergencePoint
	var cum float64
	j := -1
	for _, m := range meetings {
		key := models.DateKey(m.Date)
		for j+1 < len(implied) && models.DateKey(implied[j+1].Date) <= key {
			j++
		}
		if j < 0 {
			continue
		}
		ip := implied[j]
		pt := DivergencePoint{
			Date:     m.Date,
			Tone:     m.Value,
			Expected: ip.Smoothed + ToneScale*m.Value,
			Actual:   ip.BaseRate,
		}
		pt.Divergence = pt.Expected - pt.Actual
		cum += pt.Divergence
		pt.Cumulative = cum
		if n := len(out); n > 0 {
			pt.ExpectedDirection = sign(pt.Expected - out[n-1].Expected)
			pt.ActualDirection = sign(pt.Actual - out[n-1].Actual)
		}
		pt.DirectionMatch = pt.ExpectedDirection == pt.ActualDirection
		out = append(out, pt)
	}
	return out
}

// Surprises returns the meetings whose absolute divergence reaches the larger
// of MinSurprise and SurpriseStdDevs population deviations, largest first.
func Surprises(points []DivergencePoint) []Surprise {
	if len(points) == 0 {
		return nil
	}
	div := make([]float64, len(points))
	for i, p := range points {
		div[i] = p.Divergence
	}
	_, sd := stat.PopMeanStdDev(div, nil)
	threshold := math.Max(MinSurprise, SurpriseStdDevs*sd)

	var out []Surprise
	for _, p := range points {
		if mag := math.Abs(p.Divergence); mag >= threshold {
			out = append(out, Surprise{DivergencePoint: p, Magnitude: mag, Hawkish: p.Divergence > 0})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Magnitude > out[j].Magnitude })
	return out
}

// byDay sorts observations and merges those sharing a date into their mean.
func byDay(obs []models.Observation) []models.Observation {
	sorted := append([]models.Observation(nil), obs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	var out []models.Observation
	n := 0
	for _, o := range sorted {
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

func findDay(sorted []models.Observation, key string) (models.Observation, bool) {
	i := sort.Search(len(sorted), func(i int) bool { return models.DateKey(sorted[i].Date) >= key })
	if i < len(sorted) && models.DateKey(sorted[i].Date) == key {
		return sorted[i], true
	}
	return models.Observation{}, false
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
