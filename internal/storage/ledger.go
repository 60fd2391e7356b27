package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/policytone/internal/models"
)

// AppendLedger adds events to the append-only ledger in one transaction. An
// event already present with identical content is skipped; a conflicting one
// aborts the whole append. It returns the number of new events.
func (s *Storage) AppendLedger(events []models.RateDecisionEvent) (int, error) {
	for i := range events {
		if err := events[i].Validate(); err != nil {
			return 0, err
		}
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	added := 0
	for _, e := range events {
		key := models.DateKey(e.Date)
		var decision, rate string
		var bp int64
		err := tx.QueryRow(`SELECT decision, magnitude_bp, rate FROM ledger WHERE date = ?`, key).Scan(&decision, &bp, &rate)
		if err != nil && err != sql.ErrNoRows {
			return 0, fmt.Errorf("failed to look up ledger event %s: %w", key, err)
		}
		if err == nil {
			existing, perr := decimal.NewFromString(rate)
			if perr != nil {
				return 0, fmt.Errorf("failed to parse stored rate for %s: %w", key, perr)
			}
			if decision != string(e.Decision) || bp != e.MagnitudeBP || !existing.Equal(e.Rate) {
				return 0, models.NewError(models.KindInputValidation, "ledger", key,
					"conflicts with recorded %s %+dbp at %s", decision, bp, existing)
			}
			continue
		}
		if _, err := tx.Exec(`
			INSERT INTO ledger (date, event_date, decision, magnitude_bp, rate, ingested_at)
			VALUES (?,?,?,?,?,?)`,
			key, e.Date.UnixNano(), string(e.Decision), e.MagnitudeBP, e.Rate.String(), e.IngestedAt.UnixNano(),
		); err != nil {
			return 0, fmt.Errorf("failed to append ledger event %s: %w", key, err)
		}
		added++
	}
	return added, tx.Commit()
}

// Ledger returns all events in date order. When asOf is non-zero, only events
// ingested on or before it are returned.
func (s *Storage) Ledger(asOf time.Time) ([]models.RateDecisionEvent, error) {
	_, hi := bounds(time.Time{}, asOf)
	rows, err := s.db.Query(`
		SELECT event_date, decision, magnitude_bp, rate, ingested_at
		FROM ledger WHERE ingested_at <= ? ORDER BY date`, hi)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var out []models.RateDecisionEvent
	for rows.Next() {
		var e models.RateDecisionEvent
		var eventNano, ingestedNano int64
		var decision, rate string
		if err := rows.Scan(&eventNano, &decision, &e.MagnitudeBP, &rate, &ingestedNano); err != nil {
			return nil, fmt.Errorf("failed to scan ledger event: %w", err)
		}
		if e.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("failed to parse rate %q: %w", rate, err)
		}
		e.Date = fromNano(eventNano)
		e.Decision = models.Decision(decision)
		e.IngestedAt = fromNano(ingestedNano)
		out = append(out, e)
	}
	return out, rows.Err()
}

// AddExclusion records an auditable exclusion of a ledger date.
func (s *Storage) AddExclusion(e models.ExclusionEntry) error {
	if e.Date.IsZero() {
		return models.NewError(models.KindInputValidation, "exclusions", "", "date is required")
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO exclusions (date, reason, added_by, added_at) VALUES (?,?,?,?)`,
		models.DateKey(e.Date), e.Reason, e.AddedBy, e.AddedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to add exclusion: %w", err)
	}
	return nil
}

func (s *Storage) RemoveExclusion(date time.Time) error {
	res, err := s.db.Exec(`DELETE FROM exclusions WHERE date = ?`, models.DateKey(date))
	if err != nil {
		return fmt.Errorf("failed to remove exclusion: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("exclusion %s: %w", models.DateKey(date), ErrNotFound)
	}
	return nil
}

func (s *Storage) Exclusions() ([]models.ExclusionEntry, error) {
	rows, err := s.db.Query(`SELECT date, reason, added_by, added_at FROM exclusions ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("failed to query exclusions: %w", err)
	}
	defer rows.Close()

	var out []models.ExclusionEntry
	for rows.Next() {
		var e models.ExclusionEntry
		var key string
		var addedNano int64
		if err := rows.Scan(&key, &e.Reason, &e.AddedBy, &addedNano); err != nil {
			return nil, fmt.Errorf("failed to scan exclusion: %w", err)
		}
		d, err := time.Parse(time.DateOnly, key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse exclusion date %q: %w", key, err)
		}
		e.Date = d
		e.AddedAt = fromNano(addedNano)
		out = append(out, e)
	}
	return out, rows.Err()
}
