// Package storage provides SQLite-backed persistence for documents, the
// lexicon, tone artifacts, the rate-decision ledger, parameter sets,
// predictions and backtest runs.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("not found")

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/policytone/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "policytone", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id          TEXT PRIMARY KEY,
			event_date  INTEGER NOT NULL,
			category    TEXT NOT NULL,
			text        TEXT NOT NULL,
			tokens      TEXT NOT NULL DEFAULT '[]',
			ingested_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_event_date ON documents(event_date)`,
		`CREATE TABLE IF NOT EXISTS lexicon_entries (
			term       TEXT PRIMARY KEY,
			polarity   TEXT NOT NULL,
			weight     REAL NOT NULL,
			domain     TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tone_scores (
			document_id     TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
			lexicon_version TEXT NOT NULL,
			tone            REAL NOT NULL,
			hawkish_count   INTEGER NOT NULL,
			dovish_count    INTEGER NOT NULL,
			payload         TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS adjusted_tone (
			document_id       TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			parameter_version TEXT NOT NULL,
			weight_set_id     TEXT NOT NULL,
			lexicon_version   TEXT NOT NULL,
			event_date        INTEGER NOT NULL,
			value             REAL NOT NULL,
			partial           INTEGER NOT NULL DEFAULT 0,
			payload           TEXT NOT NULL,
			computed_at       INTEGER NOT NULL,
			PRIMARY KEY (document_id, parameter_version)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_adjusted_tone_weight_set ON adjusted_tone(weight_set_id)`,
		`CREATE TABLE IF NOT EXISTS ledger (
			date         TEXT PRIMARY KEY,
			event_date   INTEGER NOT NULL,
			decision     TEXT NOT NULL,
			magnitude_bp INTEGER NOT NULL,
			rate         TEXT NOT NULL,
			ingested_at  INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS exclusions (
			date     TEXT PRIMARY KEY,
			reason   TEXT NOT NULL DEFAULT '',
			added_by TEXT NOT NULL DEFAULT '',
			added_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS parameter_sets (
			version    TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			payload    TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			document_id       TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			parameter_version TEXT NOT NULL,
			event_date        INTEGER NOT NULL,
			predicted         TEXT NOT NULL,
			method            TEXT NOT NULL,
			payload           TEXT NOT NULL,
			PRIMARY KEY (document_id, parameter_version)
		)`,
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id                TEXT PRIMARY KEY,
			parameter_version TEXT NOT NULL,
			start_date        INTEGER NOT NULL,
			end_date          INTEGER NOT NULL,
			accuracy          REAL NOT NULL,
			metrics           TEXT NOT NULL,
			excluded          TEXT NOT NULL DEFAULT '[]',
			failures          TEXT NOT NULL DEFAULT '[]',
			created_at        INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS backtest_rows (
			run_id        TEXT NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
			seq           INTEGER NOT NULL,
			event_date    INTEGER NOT NULL,
			document_id   TEXT NOT NULL,
			predicted     TEXT NOT NULL,
			actual        TEXT NOT NULL,
			correct       INTEGER NOT NULL,
			method        TEXT NOT NULL,
			probabilities TEXT NOT NULL,
			training_size INTEGER NOT NULL,
			PRIMARY KEY (run_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS observations (
			series TEXT NOT NULL,
			date   INTEGER NOT NULL,
			value  REAL NOT NULL,
			PRIMARY KEY (series, date)
		)`,
		`CREATE TABLE IF NOT EXISTS signals (
			date      INTEGER NOT NULL,
			source    TEXT NOT NULL DEFAULT '',
			magnitude REAL NOT NULL,
			PRIMARY KEY (date, source)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func fromNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
