package storage

import (
	"fmt"
	"time"

	"github.com/rewired-gh/policytone/internal/models"
)

// UpsertObservations writes series points; a point on an existing
// (series, date) replaces the stored value.
func (s *Storage) UpsertObservations(obs []models.Observation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, o := range obs {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO observations (series, date, value) VALUES (?,?,?)`,
			o.Series, o.Date.UnixNano(), o.Value); err != nil {
			return fmt.Errorf("failed to upsert observation %s@%s: %w", o.Series, models.DateKey(o.Date), err)
		}
	}
	return tx.Commit()
}

// Observations returns the points of the named series (all series when none
// are named) within [from, to], ordered by series and date.
func (s *Storage) Observations(from, to time.Time, series ...string) ([]models.Observation, error) {
	lo, hi := bounds(from, to)
	want := make(map[string]bool, len(series))
	for _, name := range series {
		want[name] = true
	}

	rows, err := s.db.Query(`SELECT series, date, value FROM observations
		WHERE date >= ? AND date <= ? ORDER BY series, date`, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var out []models.Observation
	for rows.Next() {
		var o models.Observation
		var dateNano int64
		if err := rows.Scan(&o.Series, &dateNano, &o.Value); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		if len(want) > 0 && !want[o.Series] {
			continue
		}
		o.Date = fromNano(dateNano)
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpsertSignals writes news signals keyed by (date, source).
func (s *Storage) UpsertSignals(signals []models.Signal) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, sig := range signals {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO signals (date, source, magnitude) VALUES (?,?,?)`,
			sig.Date.UnixNano(), sig.Source, sig.Magnitude); err != nil {
			return fmt.Errorf("failed to upsert signal: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Storage) Signals(from, to time.Time) ([]models.Signal, error) {
	lo, hi := bounds(from, to)
	rows, err := s.db.Query(`SELECT date, source, magnitude FROM signals
		WHERE date >= ? AND date <= ? ORDER BY date, source`, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var out []models.Signal
	for rows.Next() {
		var sig models.Signal
		var dateNano int64
		if err := rows.Scan(&dateNano, &sig.Source, &sig.Magnitude); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		sig.Date = fromNano(dateNano)
		out = append(out, sig)
	}
	return out, rows.Err()
}
