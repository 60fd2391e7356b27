package taylor

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/policytone/internal/decompose"
	"github.com/rewired-gh/policytone/internal/models"
)

// Financial stress index settings.
const (
	// CreditLambda is the smoothing parameter for the credit-to-GDP gap.
	CreditLambda = 400000.0

	fxTrendWindow     = 200
	fxTrendMinPeriods = 60
	fxVolWindow       = 60
	fxVolMinPeriods   = 20
	tradingDays       = 252.0
)

// Component weights of the index.
const (
	CreditWeight       = 0.35
	FXDeviationWeight  = 0.25
	FXVolatilityWeight = 0.15
	SpreadWeight       = 0.25
)

// StressInputs are the raw series behind the financial stress index. Credit
// and GDP are quarterly, FX is daily USD/KRW, Spread is the 10y-3y term
// spread.
type StressInputs struct {
	Credit []models.Observation
	GDP    []models.Observation
	FX     []models.Observation
	Spread []models.Observation
}

// StressPoint is one month of the index with its raw and normalized parts.
type StressPoint struct {
	Date         time.Time `json:"date"`
	CreditGap    float64   `json:"credit_gap"`
	FXDeviation  float64   `json:"fx_deviation"`
	FXVolatility float64   `json:"fx_volatility"`
	SpreadRisk   float64   `json:"spread_risk"`

	CreditComponent       float64 `json:"credit_component"`
	FXComponent           float64 `json:"fx_component"`
	FXVolatilityComponent float64 `json:"fx_volatility_component"`
	SpreadComponent       float64 `json:"spread_component"`

	FSI float64 `json:"fsi"`
}

// FinancialStress builds the monthly index. Each raw part is tanh-normalized
// by its population standard deviation over the common months and the parts
// are combined with the component weights. Months are dated on their first
// day so that they align with monthly inflation.
func FinancialStress(in StressInputs, minPoints int) ([]StressPoint, error) {
	credit, err := creditGap(in.Credit, in.GDP, minPoints)
	if err != nil {
		return nil, err
	}
	dev, vol := fxStress(in.FX)
	spread := make([]monthValue, 0, len(in.Spread))
	for _, o := range sortedObs(in.Spread) {
		spread = append(spread, monthValue{month: monthOf(o.Date), value: -o.Value})
	}

	parts := [][]monthValue{credit, monthlyMean(dev), monthlyMean(vol), monthlyMean(spread)}
	months := commonMonths(parts)
	if len(months) == 0 {
		return nil, models.NewError(models.KindInsufficientData, "taylor", "fsi",
			"credit, exchange rate and spread series do not overlap")
	}

	raw := make([][]float64, len(parts))
	for i, p := range parts {
		raw[i] = forwardFill(p, months)
	}
	norm := make([][]float64, len(parts))
	for i, r := range raw {
		norm[i] = normalizeTanh(r)
	}

	out := make([]StressPoint, len(months))
	for k, m := range months {
		pt := StressPoint{
			Date:                  m,
			CreditGap:             raw[0][k],
			FXDeviation:           raw[1][k],
			FXVolatility:          raw[2][k],
			SpreadRisk:            raw[3][k],
			CreditComponent:       norm[0][k],
			FXComponent:           norm[1][k],
			FXVolatilityComponent: norm[2][k],
			SpreadComponent:       norm[3][k],
		}
		pt.FSI = CreditWeight*pt.CreditComponent + FXDeviationWeight*pt.FXComponent +
			FXVolatilityWeight*pt.FXVolatilityComponent + SpreadWeight*pt.SpreadComponent
		out[k] = pt
	}
	return out, nil
}

// StressObservations exposes the index as the "fsi" series.
func StressObservations(points []StressPoint) []models.Observation {
	out := make([]models.Observation, len(points))
	for i, p := range points {
		out[i] = models.Observation{Series: "fsi", Date: p.Date, Value: p.FSI}
	}
	return out
}

type monthValue struct {
	month time.Time
	value float64
}

// creditGap is the one-sided cycle of credit/GDP in percentage points.
func creditGap(credit, gdp []models.Observation, minPoints int) ([]monthValue, error) {
	byDay := make(map[string]float64, len(gdp))
	for _, o := range gdp {
		byDay[models.DateKey(o.Date)] = o.Value
	}
	var dates []time.Time
	var ratio []float64
	for _, o := range sortedObs(credit) {
		g, ok := byDay[models.DateKey(o.Date)]
		if !ok || g == 0 {
			continue
		}
		dates = append(dates, o.Date)
		ratio = append(ratio, o.Value/g*100)
	}
	cycles, err := decompose.NewFilter(CreditLambda, minPoints).OneSidedCycle("credit_to_gdp", ratio)
	if err != nil {
		return nil, err
	}
	out := make([]monthValue, 0, len(cycles))
	for i, c := range cycles {
		if math.IsNaN(c) {
			continue
		}
		out = append(out, monthValue{month: monthOf(dates[i]), value: c})
	}
	return out, nil
}

// fxStress returns the daily deviation from the 200-day average in percent and
// the annualized 60-day volatility of log returns.
func fxStress(fx []models.Observation) (dev, vol []monthValue) {
	obs := sortedObs(fx)
	levels := make([]float64, len(obs))
	for i, o := range obs {
		levels[i] = o.Value
	}
	returns := make([]float64, len(obs))
	for i := range obs {
		returns[i] = math.NaN()
		if i > 0 && levels[i-1] > 0 && levels[i] > 0 {
			returns[i] = math.Log(levels[i] / levels[i-1])
		}
	}

	for i, o := range obs {
		m := monthOf(o.Date)
		if w := window(levels, i, fxTrendWindow); len(w) >= fxTrendMinPeriods {
			if ma := stat.Mean(w, nil); ma != 0 {
				dev = append(dev, monthValue{month: m, value: (levels[i]/ma - 1) * 100})
			}
		}
		if w := window(returns, i, fxVolWindow); len(w) >= fxVolMinPeriods {
			_, sd := stat.PopMeanStdDev(w, nil)
			vol = append(vol, monthValue{month: m, value: sd * math.Sqrt(tradingDays)})
		}
	}
	return dev, vol
}

// window returns the finite values among the n points ending at i.
func window(x []float64, i, n int) []float64 {
	lo := i - n + 1
	if lo < 0 {
		lo = 0
	}
	out := make([]float64, 0, i-lo+1)
	for _, v := range x[lo : i+1] {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func monthlyMean(values []monthValue) []monthValue {
	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	for _, v := range values {
		sums[v.month] += v.value
		counts[v.month]++
	}
	out := make([]monthValue, 0, len(sums))
	for m, s := range sums {
		out = append(out, monthValue{month: m, value: s / float64(counts[m])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].month.Before(out[j].month) })
	return out
}

// commonMonths spans from the latest first month to the earliest last month
// of the parts.
func commonMonths(parts [][]monthValue) []time.Time {
	var start, end time.Time
	for i, p := range parts {
		if len(p) == 0 {
			return nil
		}
		first, last := p[0].month, p[len(p)-1].month
		if i == 0 || first.After(start) {
			start = first
		}
		if i == 0 || last.Before(end) {
			end = last
		}
	}
	var months []time.Time
	for m := start; !m.After(end); m = m.AddDate(0, 1, 0) {
		months = append(months, m)
	}
	return months
}

// forwardFill carries the latest value on or before each month.
func forwardFill(values []monthValue, months []time.Time) []float64 {
	out := make([]float64, len(months))
	j := -1
	for k, m := range months {
		for j+1 < len(values) && !values[j+1].month.After(m) {
			j++
		}
		out[k] = values[j].value
	}
	return out
}

func normalizeTanh(x []float64) []float64 {
	_, sd := stat.PopMeanStdDev(x, nil)
	out := make([]float64, len(x))
	if sd == 0 || math.IsNaN(sd) {
		return out
	}
	for i, v := range x {
		out[i] = math.Tanh(v / sd)
	}
	return out
}

func monthOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func sortedObs(obs []models.Observation) []models.Observation {
	out := append([]models.Observation(nil), obs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
