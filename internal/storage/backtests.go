package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rewired-gh/policytone/internal/models"
)

// SaveBacktestRun stores a run and its rows in one transaction.
func (s *Storage) SaveBacktestRun(run *models.BacktestRun) error {
	metrics, err := json.Marshal(run.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	excluded, err := json.Marshal(run.Excluded)
	if err != nil {
		return fmt.Errorf("failed to marshal exclusions: %w", err)
	}
	failures, err := json.Marshal(run.Failures)
	if err != nil {
		return fmt.Errorf("failed to marshal failures: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`
		INSERT INTO backtest_runs
			(id, parameter_version, start_date, end_date, accuracy, metrics, excluded, failures, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		run.ID, run.ParameterVersion, run.Start.UnixNano(), run.End.UnixNano(), run.Metrics.Accuracy,
		string(metrics), string(excluded), string(failures), run.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to insert backtest run: %w", err)
	}
	for i, r := range run.Rows {
		probs, err := json.Marshal(r.Probabilities)
		if err != nil {
			return fmt.Errorf("failed to marshal probabilities: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO backtest_rows
				(run_id, seq, event_date, document_id, predicted, actual, correct, method, probabilities, training_size)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			run.ID, i, r.Date.UnixNano(), r.DocumentID, string(r.Predicted), string(r.Actual),
			boolToInt(r.Correct), string(r.Method), string(probs), r.TrainingSize,
		); err != nil {
			return fmt.Errorf("failed to insert backtest row: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Storage) GetBacktestRun(id string) (*models.BacktestRun, error) {
	var run models.BacktestRun
	var startNano, endNano, createdNano int64
	var accuracy float64
	var metrics, excluded, failures string
	err := s.db.QueryRow(`
		SELECT id, parameter_version, start_date, end_date, accuracy, metrics, excluded, failures, created_at
		FROM backtest_runs WHERE id = ?`, id).Scan(
		&run.ID, &run.ParameterVersion, &startNano, &endNano, &accuracy, &metrics, &excluded, &failures, &createdNano,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("backtest run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backtest run: %w", err)
	}
	run.Start, run.End, run.CreatedAt = fromNano(startNano), fromNano(endNano), fromNano(createdNano)
	if err := json.Unmarshal([]byte(metrics), &run.Metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(excluded), &run.Excluded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal exclusions: %w", err)
	}
	if err := json.Unmarshal([]byte(failures), &run.Failures); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failures: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT event_date, document_id, predicted, actual, correct, method, probabilities, training_size
		FROM backtest_rows WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest rows: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r models.BacktestRow
		var dateNano int64
		var predicted, actual, method, probs string
		var correct int
		if err := rows.Scan(&dateNano, &r.DocumentID, &predicted, &actual, &correct, &method, &probs, &r.TrainingSize); err != nil {
			return nil, fmt.Errorf("failed to scan backtest row: %w", err)
		}
		if err := json.Unmarshal([]byte(probs), &r.Probabilities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal probabilities: %w", err)
		}
		r.Date = fromNano(dateNano)
		r.Predicted, r.Actual = models.Decision(predicted), models.Decision(actual)
		r.Method = models.Method(method)
		r.Correct = correct != 0
		run.Rows = append(run.Rows, r)
	}
	return &run, rows.Err()
}

// BacktestSummary is a run header for listings.
type BacktestSummary struct {
	ID               string
	ParameterVersion string
	Accuracy         float64
	Observations     int
	CreatedAt        int64
}

// ListBacktestRuns returns run headers, newest first.
func (s *Storage) ListBacktestRuns(limit int) ([]BacktestSummary, error) {
	rows, err := s.db.Query(`
		SELECT r.id, r.parameter_version, r.accuracy, COUNT(b.seq), r.created_at
		FROM backtest_runs r LEFT JOIN backtest_rows b ON b.run_id = r.id
		GROUP BY r.id ORDER BY r.created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest runs: %w", err)
	}
	defer rows.Close()

	var out []BacktestSummary
	for rows.Next() {
		var b BacktestSummary
		if err := rows.Scan(&b.ID, &b.ParameterVersion, &b.Accuracy, &b.Observations, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan backtest run: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
