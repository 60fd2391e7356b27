package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rewired-gh/policytone/internal/models"
)

const activeParamsKey = "active_parameter_version"

// SaveParameters validates and stores a parameter set under its content
// version. Invalid weights are rejected here, before anything is computed
// with them. Saving the same content again is a no-op.
func (s *Storage) SaveParameters(p *models.ModelParameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.Version = p.ComputeVersion()
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO parameter_sets (version, name, payload, created_at) VALUES (?,?,?,?)`,
		p.Version, p.Name, string(payload), p.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save parameters: %w", err)
	}
	return nil
}

func (s *Storage) GetParameters(version string) (*models.ModelParameters, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM parameter_sets WHERE version = ?`, version).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("parameter set %s: %w", version, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get parameters: %w", err)
	}
	var p models.ModelParameters
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
	}
	return &p, nil
}

// ListParameters returns stored parameter sets, oldest first.
func (s *Storage) ListParameters() ([]models.ModelParameters, error) {
	rows, err := s.db.Query(`SELECT payload FROM parameter_sets ORDER BY created_at, version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameters: %w", err)
	}
	defer rows.Close()

	var out []models.ModelParameters
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan parameters: %w", err)
		}
		var p models.ModelParameters
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Activate points the active parameter set at a stored version.
func (s *Storage) Activate(version string) error {
	if _, err := s.GetParameters(version); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, activeParamsKey, version)
	if err != nil {
		return fmt.Errorf("failed to activate parameters: %w", err)
	}
	return nil
}

// ActiveParameters returns the active parameter set.
func (s *Storage) ActiveParameters() (*models.ModelParameters, error) {
	var version string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, activeParamsKey).Scan(&version)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("active parameter set: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read active parameters: %w", err)
	}
	return s.GetParameters(version)
}
