package backtest

import (
	"math"
	"sort"
	"time"

	"github.com/rewired-gh/policytone/internal/lag"
	"github.com/rewired-gh/policytone/internal/logger"
	"github.com/rewired-gh/policytone/internal/models"
	"github.com/rewired-gh/policytone/internal/taylor"
)

// RuleRow compares the implied rate with the policy rate at one meeting.
type RuleRow struct {
	Date              time.Time `json:"date"`
	Actual            float64   `json:"actual"`
	Implied           float64   `json:"implied"`
	Gap               float64   `json:"gap"`
	ExpectedDirection int       `json:"expected_direction"`
	ActualDirection   int       `json:"actual_direction"`
	DirectionMatch    bool      `json:"direction_match"`
}

// RuleEvaluation summarizes a structural-rule replay.
type RuleEvaluation struct {
	Variant             taylor.Variant  `json:"variant,omitempty"`
	Rows                []RuleRow       `json:"rows"`
	Observations        int             `json:"observations"`
	RMSE                float64         `json:"rmse"`
	MAE                 float64         `json:"mae"`
	RSquared            float64         `json:"r_squared"`
	DirectionalAccuracy float64         `json:"directional_accuracy"`
	HitRatioByYear      map[int]float64 `json:"hit_ratio_by_year"`
	GrangerPValue       *float64        `json:"granger_p_value,omitempty"`
}

// grangerMinRows is the row count below which the rule/rate Granger test is
// not attempted.
const grangerMinRows = 12

// EvaluateRule pairs each ledger event in [start, end] with the latest
// estimate dated on or before it and scores the implied rate against the
// policy rate. The expected direction is the sign of implied minus the previous
// policy rate; the first meeting compares against its own rate.
func EvaluateRule(estimates []taylor.Estimate, ledger []models.RateDecisionEvent, start, end time.Time) (RuleEvaluation, error) {
	est := append([]taylor.Estimate(nil), estimates...)
	sort.SliceStable(est, func(i, j int) bool { return est[i].Date.Before(est[j].Date) })
	events := NewHistory(nil, nil, nil, ledger, nil).Events(start, end)

	var rows []RuleRow
	var prev *float64
	for _, ev := range events {
		key := models.DateKey(ev.Date)
		i := sort.Search(len(est), func(i int) bool { return models.DateKey(est[i].Date) > key })
		if i == 0 {
			continue
		}
		actual := ev.Rate.InexactFloat64()
		base := actual
		if prev != nil {
			base = *prev
		}
		implied := est[i-1].Rate
		row := RuleRow{
			Date:              ev.Date,
			Actual:            actual,
			Implied:           implied,
			Gap:               implied - actual,
			ExpectedDirection: sign(implied - base),
			ActualDirection:   sign(actual - base),
		}
		row.DirectionMatch = row.ExpectedDirection == row.ActualDirection
		rows = append(rows, row)
		prev = &actual
	}
	if len(rows) == 0 {
		return RuleEvaluation{}, models.NewError(models.KindEmptyHistory, "backtest", "",
			"no ledger event between %s and %s has an estimate", models.DateKey(start), models.DateKey(end))
	}

	res := RuleEvaluation{Rows: rows, Observations: len(rows), HitRatioByYear: make(map[int]float64)}
	var sse, sae, mean float64
	matches := 0
	hits, totals := make(map[int]int), make(map[int]int)
	for _, r := range rows {
		d := r.Implied - r.Actual
		sse += d * d
		sae += math.Abs(d)
		mean += r.Actual
		totals[r.Date.Year()]++
		if r.DirectionMatch {
			matches++
			hits[r.Date.Year()]++
		}
	}
	n := float64(len(rows))
	mean /= n
	var sst float64
	for _, r := range rows {
		sst += (r.Actual - mean) * (r.Actual - mean)
	}
	res.RMSE = math.Sqrt(sse / n)
	res.MAE = sae / n
	if sst != 0 {
		res.RSquared = 1 - sse/sst
	}
	res.DirectionalAccuracy = float64(matches) / n
	for y, c := range totals {
		res.HitRatioByYear[y] = float64(hits[y]) / float64(c)
	}

	if len(rows) >= grangerMinRows {
		implied := make([]float64, len(rows))
		actual := make([]float64, len(rows))
		for i, r := range rows {
			implied[i], actual[i] = r.Implied, r.Actual
		}
		if g, err := lag.Granger("rule", implied, actual, 2); err == nil && !math.IsNaN(g.PValue) {
			p := g.PValue
			res.GrangerPValue = &p
		}
	}
	return res, nil
}

// CompareRules replays each variant over the same points and ledger and
// returns the evaluations ordered by RMSE, best first. A variant whose inputs
// are missing at every date, or which matches no meeting, is left out.
func CompareRules(rule taylor.Rule, points []taylor.Point, variants []taylor.Variant, ledger []models.RateDecisionEvent, start, end time.Time) ([]RuleEvaluation, error) {
	out := make([]RuleEvaluation, 0, len(variants))
	for _, v := range variants {
		estimates, failures := rule.Series(v, points)
		eval, err := EvaluateRule(estimates, ledger, start, end)
		if err != nil {
			logger.Warn("rule %s not compared (%d dates with missing inputs): %v", v, len(failures), err)
			continue
		}
		eval.Variant = v
		out = append(out, eval)
	}
	if len(out) == 0 {
		return nil, models.NewError(models.KindEmptyHistory, "backtest", "",
			"no rule variant could be evaluated between %s and %s", models.DateKey(start), models.DateKey(end))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RMSE < out[j].RMSE })
	return out, nil
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
