package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rewired-gh/policytone/internal/models"
)

// SaveToneScore stores the lexicon score of a document, replacing the score
// computed under any earlier lexicon version.
func (s *Storage) SaveToneScore(score *models.DocumentToneScore) error {
	payload, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("failed to marshal tone score: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO tone_scores
			(document_id, lexicon_version, tone, hawkish_count, dovish_count, payload)
		VALUES (?,?,?,?,?,?)`,
		score.DocumentID, score.LexiconVersion, score.Tone, score.HawkishCount, score.DovishCount, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save tone score: %w", err)
	}
	return nil
}

func (s *Storage) GetToneScore(documentID string) (*models.DocumentToneScore, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM tone_scores WHERE document_id = ?`, documentID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tone score %s: %w", documentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tone score: %w", err)
	}
	var score models.DocumentToneScore
	if err := json.Unmarshal([]byte(payload), &score); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tone score: %w", err)
	}
	return &score, nil
}

// SaveAdjustedTone replaces the index for (document, parameter version) in a
// single statement, so readers see either the old or the new record. Indices of
// other parameter sets stay addressable.
func (s *Storage) SaveAdjustedTone(idx *models.AdjustedToneIndex) error {
	payload, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("failed to marshal adjusted tone: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO adjusted_tone
			(document_id, parameter_version, weight_set_id, lexicon_version, event_date, value, partial, payload, computed_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		idx.DocumentID, idx.ParameterVersion, idx.WeightSetID, idx.LexiconVersion, idx.EventDate.UnixNano(), idx.Value,
		boolToInt(idx.PartialComposite), string(payload), idx.ComputedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save adjusted tone: %w", err)
	}
	return nil
}

func (s *Storage) GetAdjustedTone(documentID, parameterVersion string) (*models.AdjustedToneIndex, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM adjusted_tone WHERE document_id = ? AND parameter_version = ?`,
		documentID, parameterVersion).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("adjusted tone %s@%s: %w", documentID, parameterVersion, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get adjusted tone: %w", err)
	}
	var idx models.AdjustedToneIndex
	if err := json.Unmarshal([]byte(payload), &idx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal adjusted tone: %w", err)
	}
	return &idx, nil
}

// AdjustedToneSeries returns the indices of one parameter set ordered by event date.
func (s *Storage) AdjustedToneSeries(parameterVersion string) ([]models.AdjustedToneIndex, error) {
	rows, err := s.db.Query(`SELECT payload FROM adjusted_tone WHERE parameter_version = ?
		ORDER BY event_date, document_id`, parameterVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjusted tone: %w", err)
	}
	return scanAdjustedTone(rows)
}

// AdjustedToneByWeightSet returns every stored index computed under a weight
// set, across parameter versions, ordered by event date then computation time.
func (s *Storage) AdjustedToneByWeightSet(weightSetID string) ([]models.AdjustedToneIndex, error) {
	rows, err := s.db.Query(`SELECT payload FROM adjusted_tone WHERE weight_set_id = ?
		ORDER BY event_date, document_id, computed_at`, weightSetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjusted tone: %w", err)
	}
	return scanAdjustedTone(rows)
}

func scanAdjustedTone(rows *sql.Rows) ([]models.AdjustedToneIndex, error) {
	defer rows.Close()

	var out []models.AdjustedToneIndex
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan adjusted tone: %w", err)
		}
		var idx models.AdjustedToneIndex
		if err := json.Unmarshal([]byte(payload), &idx); err != nil {
			return nil, fmt.Errorf("failed to unmarshal adjusted tone: %w", err)
		}
		out = append(out, idx)
	}
	return out, rows.Err()
}

// SavePredictions replaces predictions in one transaction.
func (s *Storage) SavePredictions(preds []models.PredictionResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range preds {
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal prediction: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO predictions
				(document_id, parameter_version, event_date, predicted, method, payload)
			VALUES (?,?,?,?,?,?)`,
			p.DocumentID, p.ParameterVersion, p.EventDate.UnixNano(), string(p.Predicted), string(p.Method), string(payload),
		); err != nil {
			return fmt.Errorf("failed to save prediction %s: %w", p.DocumentID, err)
		}
	}
	return tx.Commit()
}

// Predictions returns the predictions of one parameter version by event date.
func (s *Storage) Predictions(parameterVersion string) ([]models.PredictionResult, error) {
	rows, err := s.db.Query(`SELECT payload FROM predictions WHERE parameter_version = ?
		ORDER BY event_date, document_id`, parameterVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var out []models.PredictionResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		var p models.PredictionResult
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal prediction: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
