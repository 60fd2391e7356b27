// Package curve reads policy expectations off the government bond curve.
package curve

import (
	"sort"
	"time"

	"github.com/rewired-gh/policytone/internal/models"
)

// Expected short rate blend and smoothing.
const (
	MarketWeight    = 0.6
	PolicyWeight    = 0.4
	ExpectationSpan = 6
)

// Term premium regimes.
const (
	Positive = "positive"
	Negative = "negative"
	Neutral  = "neutral"

	positiveAbove = 0.5
	negativeBelow = -0.25
)

// PremiumPoint is one month of the 10y decomposition into an expected short
// rate and a term premium.
type PremiumPoint struct {
	Month             time.Time `json:"month"`
	BaseRate          float64   `json:"base_rate"`
	KTB3Y             float64   `json:"ktb_3y"`
	KTB10Y            float64   `json:"ktb_10y"`
	Spread            float64   `json:"spread"`
	ExpectedShortRate float64   `json:"expected_short_rate"`
	TermPremium       float64   `json:"term_premium"`
}

// TermPremium takes the last observation of each month of the three series,
// keeps the months all of them cover, and splits the 10y yield into the
// expected short rate (a trailing mean of the 3y/base blend) and the rest.
func TermPremium(base, ktb3y, ktb10y []models.Observation) ([]PremiumPoint, error) {
	b, s, l := monthlyLast(base), monthlyLast(ktb3y), monthlyLast(ktb10y)
	var months []time.Time
	for m := range l {
		if _, ok := s[m]; !ok {
			continue
		}
		if _, ok := b[m]; !ok {
			continue
		}
		months = append(months, m)
	}
	if len(months) == 0 {
		return nil, models.NewError(models.KindInsufficientData, "curve", "term_premium",
			"base rate and bond yields share no month")
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	blend := make([]float64, len(months))
	for i, m := range months {
		blend[i] = MarketWeight*s[m] + PolicyWeight*b[m]
	}
	expected := trailingMean(blend, ExpectationSpan)

	out := make([]PremiumPoint, len(months))
	for i, m := range months {
		out[i] = PremiumPoint{
			Month:             m,
			BaseRate:          b[m],
			KTB3Y:             s[m],
			KTB10Y:            l[m],
			Spread:            l[m] - s[m],
			ExpectedShortRate: expected[i],
			TermPremium:       l[m] - expected[i],
		}
	}
	return out, nil
}

// Regime classifies a term premium in percentage points.
func Regime(premium float64) string {
	switch {
	case premium > positiveAbove:
		return Positive
	case premium < negativeBelow:
		return Negative
	}
	return Neutral
}

func monthlyLast(obs []models.Observation) map[time.Time]float64 {
	sorted := append([]models.Observation(nil), obs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	out := make(map[time.Time]float64)
	for _, o := range sorted {
		u := o.Date.UTC()
		out[time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)] = o.Value
	}
	return out
}

// trailingMean averages up to n values ending at each index.
func trailingMean(x []float64, n int) []float64 {
	out := make([]float64, len(x))
	var sum float64
	for i, v := range x {
		sum += v
		if i >= n {
			sum -= x[i-n]
		}
		out[i] = sum / float64(min(i+1, n))
	}
	return out
}
