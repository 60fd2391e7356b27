package models

import "time"

// BacktestRow is one replayed event.
type BacktestRow struct {
	Date          time.Time     `json:"date"`
	DocumentID    string        `json:"document_id"`
	Predicted     Decision      `json:"predicted"`
	Actual        Decision      `json:"actual"`
	Correct       bool          `json:"correct"`
	Method        Method        `json:"method"`
	Probabilities Probabilities `json:"probabilities"`
	TrainingSize  int           `json:"training_size"`
}

// ClassMetrics are one-vs-rest precision and recall for a class.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	Support   int     `json:"support"`
}

// BacktestMetrics aggregates a run. Confusion is indexed [actual][predicted]
// in Decisions order.
type BacktestMetrics struct {
	Observations   int                       `json:"observations"`
	Accuracy       float64                   `json:"accuracy"`
	PerClass       map[Decision]ClassMetrics `json:"per_class"`
	Confusion      [3][3]int                 `json:"confusion"`
	HitRatioByYear map[int]float64           `json:"hit_ratio_by_year"`
}

// BacktestRun is the result of a walk-forward replay.
type BacktestRun struct {
	ID               string          `json:"id"`
	ParameterVersion string          `json:"parameter_version"`
	Start            time.Time       `json:"start"`
	End              time.Time       `json:"end"`
	Rows             []BacktestRow   `json:"rows"`
	Metrics          BacktestMetrics `json:"metrics"`
	Excluded         []time.Time     `json:"excluded"`
	Failures         []Failure       `json:"failures"`
	CreatedAt        time.Time       `json:"created_at"`
}
