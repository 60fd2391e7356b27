package backtest

import (
	"github.com/rewired-gh/policytone/internal/models"
)

// ComputeMetrics aggregates accuracy, one-vs-rest precision and recall, the
// confusion matrix and the per-year hit ratio over replayed rows.
func ComputeMetrics(rows []models.BacktestRow) models.BacktestMetrics {
	m := models.BacktestMetrics{
		Observations:   len(rows),
		PerClass:       make(map[models.Decision]models.ClassMetrics, len(models.Decisions)),
		HitRatioByYear: make(map[int]float64),
	}
	if len(rows) == 0 {
		return m
	}

	correct := 0
	hits := make(map[int]int)
	totals := make(map[int]int)
	for _, r := range rows {
		a, p := r.Actual.Index(), r.Predicted.Index()
		if a >= 0 && p >= 0 {
			m.Confusion[a][p]++
		}
		y := r.Date.Year()
		totals[y]++
		if r.Correct {
			correct++
			hits[y]++
		}
	}
	m.Accuracy = float64(correct) / float64(len(rows))
	for y, n := range totals {
		m.HitRatioByYear[y] = float64(hits[y]) / float64(n)
	}

	for i, d := range models.Decisions {
		tp := m.Confusion[i][i]
		var predicted, support int
		for j := range models.Decisions {
			predicted += m.Confusion[j][i]
			support += m.Confusion[i][j]
		}
		cm := models.ClassMetrics{Support: support}
		if predicted > 0 {
			cm.Precision = float64(tp) / float64(predicted)
		}
		if support > 0 {
			cm.Recall = float64(tp) / float64(support)
		}
		m.PerClass[d] = cm
	}
	return m
}
