// Package lag measures lead/lag structure between the tone index and a
// reference series.
package lag

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/policytone/internal/models"
)

// Classification labels the best lag.
type Classification string

const (
	Leading    Classification = "leading"
	Lagging    Classification = "lagging"
	Coincident Classification = "coincident"
)

// Config bounds the lag search. Lags are in the series' native unit.
type Config struct {
	MaxLag     int `mapstructure:"max_lag" validate:"gte=0"`
	MinOverlap int `mapstructure:"min_overlap" validate:"gte=3"`
	Tolerance  int `mapstructure:"tolerance" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{MaxLag: 30, MinOverlap: 10, Tolerance: 0}
}

// Point is the correlation measured at one lag.
type Point struct {
	Lag         int     `json:"lag"`
	Correlation float64 `json:"correlation"`
	Overlap     int     `json:"overlap"`
}

// Result is the lead/lag summary for one series pair.
type Result struct {
	Series         string         `json:"series"`
	BestLag        int            `json:"best_lag"`
	Correlation    float64        `json:"correlation"`
	Sign           int            `json:"sign"`
	Classification Classification `json:"classification"`
	Profile        []Point        `json:"profile"`
	Excluded       []int          `json:"excluded_lags,omitempty"`
}

// Analyze correlates tone[t] with ref[t+lag] for every lag in
// [-MaxLag, MaxLag]. NaN marks a missing point; pairs with a missing side are
// skipped. Lags with fewer than MinOverlap valid pairs, or with a constant
// side, are excluded from the search.
func Analyze(series string, tone, ref []float64, cfg Config) (Result, error) {
	if len(tone) != len(ref) {
		return Result{}, models.NewError(models.KindInputValidation, "lag", series,
			"series length mismatch: %d vs %d", len(tone), len(ref))
	}
	res := Result{Series: series}

	byLag := make(map[int]Point)
	for k := -cfg.MaxLag; k <= cfg.MaxLag; k++ {
		x, y := pairs(tone, ref, k)
		if len(x) < cfg.MinOverlap {
			res.Excluded = append(res.Excluded, k)
			continue
		}
		c := stat.Correlation(x, y, nil)
		if math.IsNaN(c) {
			res.Excluded = append(res.Excluded, k)
			continue
		}
		p := Point{Lag: k, Correlation: c, Overlap: len(x)}
		byLag[k] = p
		res.Profile = append(res.Profile, p)
	}
	if len(res.Profile) == 0 {
		return res, models.NewError(models.KindInsufficientOverlap, "lag", series,
			"no lag in [-%d, %d] has %d overlapping points", cfg.MaxLag, cfg.MaxLag, cfg.MinOverlap)
	}

	best := pickBest(byLag, cfg.MaxLag)
	res.BestLag = best.Lag
	res.Correlation = best.Correlation
	switch {
	case best.Correlation > 0:
		res.Sign = 1
	case best.Correlation < 0:
		res.Sign = -1
	}
	res.Classification = classify(best.Lag, cfg.Tolerance)
	return res, nil
}

// pickBest visits 0, -1, +1, -2, +2 ... so strict improvement keeps the
// smallest |lag| and then the negative lag on ties.
func pickBest(byLag map[int]Point, maxLag int) Point {
	var best *Point
	visit := func(k int) {
		p, ok := byLag[k]
		if ok && (best == nil || math.Abs(p.Correlation) > math.Abs(best.Correlation)) {
			best = &p
		}
	}
	visit(0)
	for d := 1; d <= maxLag; d++ {
		visit(-d)
		visit(d)
	}
	return *best
}

func classify(lag, tolerance int) Classification {
	switch {
	case lag >= -tolerance && lag <= tolerance:
		return Coincident
	case lag > 0:
		return Leading
	}
	return Lagging
}

func pairs(tone, ref []float64, k int) ([]float64, []float64) {
	var x, y []float64
	for i := range tone {
		j := i + k
		if j < 0 || j >= len(ref) {
			continue
		}
		if math.IsNaN(tone[i]) || math.IsNaN(ref[j]) {
			continue
		}
		x = append(x, tone[i])
		y = append(y, ref[j])
	}
	return x, y
}

// AlignDaily places two dated series on a shared daily grid spanning both.
// Days without an observation hold NaN; repeated days keep the last value.
func AlignDaily(tone, ref []models.Observation) ([]time.Time, []float64, []float64) {
	if len(tone) == 0 && len(ref) == 0 {
		return nil, nil, nil
	}
	var first, last time.Time
	for i, o := range append(append([]models.Observation(nil), tone...), ref...) {
		d := day(o.Date)
		if i == 0 || d.Before(first) {
			first = d
		}
		if i == 0 || d.After(last) {
			last = d
		}
	}

	n := int(last.Sub(first).Hours()/24) + 1
	dates := make([]time.Time, n)
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range dates {
		dates[i] = first.AddDate(0, 0, i)
		x[i] = math.NaN()
		y[i] = math.NaN()
	}
	place := func(obs []models.Observation, dst []float64) {
		sorted := append([]models.Observation(nil), obs...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
		for _, o := range sorted {
			dst[int(day(o.Date).Sub(first).Hours()/24)] = o.Value
		}
	}
	place(tone, x)
	place(ref, y)
	return dates, x, y
}

func day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
