// Package ecos fetches macro and market series from the Bank of Korea ECOS
// StatisticSearch API.
package ecos

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rewired-gh/policytone/internal/models"
)

// Cycle is the ECOS sampling frequency.
type Cycle string

const (
	Daily     Cycle = "D"
	Monthly   Cycle = "M"
	Quarterly Cycle = "Q"
	Annual    Cycle = "A"
)

// SeriesSpec addresses one ECOS series and names it locally.
type SeriesSpec struct {
	Name     string
	StatCode string
	Cycle    Cycle
	Items    []string
}

// Known series used by the market reaction and the structural rule.
var Known = map[string]SeriesSpec{
	"base_rate": {Name: "base_rate", StatCode: "722Y001", Cycle: Daily, Items: []string{"0101000"}},
	"ktb_3y":    {Name: "ktb_3y", StatCode: "817Y002", Cycle: Daily, Items: []string{"010200000"}},
	"ktb_10y":   {Name: "ktb_10y", StatCode: "817Y002", Cycle: Daily, Items: []string{"010200001"}},
	"usd_krw":   {Name: "usd_krw", StatCode: "731Y003", Cycle: Daily, Items: []string{"0000001"}},
	"kospi":     {Name: "kospi", StatCode: "802Y001", Cycle: Daily, Items: []string{"0001000"}},
	"cpi":       {Name: "cpi", StatCode: "901Y009", Cycle: Monthly, Items: []string{"0"}},
	"csi":       {Name: "csi", StatCode: "511Y002", Cycle: Monthly, Items: []string{"FME"}},
	"gdp":       {Name: "gdp", StatCode: "200Y104", Cycle: Quarterly, Items: []string{"1400"}},

	"household_credit": {Name: "household_credit", StatCode: "151Y001", Cycle: Quarterly, Items: []string{"1000000"}},
}

// Lookup returns the spec of a known series.
func Lookup(name string) (SeriesSpec, error) {
	spec, ok := Known[name]
	if !ok {
		return SeriesSpec{}, models.NewError(models.KindInputValidation, "ecos", name, "unknown series")
	}
	return spec, nil
}

// Names lists the known series in sorted order.
func Names() []string {
	names := make([]string, 0, len(Known))
	for name := range Known {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FormatPeriod renders t in the ECOS period syntax for the cycle.
func FormatPeriod(c Cycle, t time.Time) (string, error) {
	t = t.UTC()
	switch c {
	case Daily:
		return t.Format("20060102"), nil
	case Monthly:
		return t.Format("200601"), nil
	case Quarterly:
		return fmt.Sprintf("%dQ%d", t.Year(), (int(t.Month())-1)/3+1), nil
	case Annual:
		return strconv.Itoa(t.Year()), nil
	}
	return "", models.NewError(models.KindInputValidation, "ecos", string(c), "unknown cycle")
}

// ParsePeriod parses an ECOS TIME value. Periods map to their first day.
func ParsePeriod(c Cycle, s string) (time.Time, error) {
	switch c {
	case Daily:
		return time.Parse("20060102", s)
	case Monthly:
		return time.Parse("200601", s)
	case Quarterly:
		if len(s) != 6 || s[4] != 'Q' {
			return time.Time{}, fmt.Errorf("bad quarter %q", s)
		}
		year, err := strconv.Atoi(s[:4])
		if err != nil {
			return time.Time{}, err
		}
		q := int(s[5] - '0')
		if q < 1 || q > 4 {
			return time.Time{}, fmt.Errorf("bad quarter %q", s)
		}
		return time.Date(year, time.Month(3*(q-1)+1), 1, 0, 0, 0, 0, time.UTC), nil
	case Annual:
		return time.Parse("2006", s)
	}
	return time.Time{}, fmt.Errorf("unknown cycle %q", c)
}

// TermSpread derives long minus short on dates present in both series.
func TermSpread(short, long []models.Observation) []models.Observation {
	byDate := make(map[string]float64, len(short))
	for _, o := range short {
		byDate[models.DateKey(o.Date)] = o.Value
	}
	var out []models.Observation
	for _, o := range long {
		if s, ok := byDate[models.DateKey(o.Date)]; ok {
			out = append(out, models.Observation{Series: "term_spread", Date: o.Date, Value: o.Value - s})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// YearOverYear turns a monthly index into percent change against the same
// month one year earlier. Months without a base are dropped.
func YearOverYear(series string, monthly []models.Observation) []models.Observation {
	byMonth := make(map[string]float64, len(monthly))
	for _, o := range monthly {
		byMonth[o.Date.UTC().Format("200601")] = o.Value
	}
	var out []models.Observation
	for _, o := range monthly {
		base, ok := byMonth[o.Date.UTC().AddDate(-1, 0, 0).Format("200601")]
		if !ok || base == 0 {
			continue
		}
		out = append(out, models.Observation{Series: series, Date: o.Date, Value: (o.Value/base - 1) * 100})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
