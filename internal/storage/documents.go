package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/rewired-gh/policytone/internal/models"
)

// AddDocument ingests a document. Documents are immutable: re-adding an
// identical document is a no-op, re-adding a different one under the same id
// is an input validation error.
func (s *Storage) AddDocument(doc *models.Document, ingestedAt time.Time) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	tokens, err := json.Marshal(doc.Tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO documents (id, event_date, category, text, tokens, ingested_at)
		VALUES (?,?,?,?,?,?)`,
		doc.ID, doc.EventDate.UnixNano(), string(doc.Category), doc.Text, string(tokens), ingestedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	existing, err := s.GetDocument(doc.ID)
	if err != nil {
		return err
	}
	if !existing.EventDate.Equal(doc.EventDate) || existing.Category != doc.Category ||
		existing.Text != doc.Text || !slices.Equal(existing.Tokens, doc.Tokens) {
		return models.NewError(models.KindInputValidation, "storage", doc.ID, "document already ingested with different content")
	}
	return nil
}

func (s *Storage) GetDocument(id string) (*models.Document, error) {
	row := s.db.QueryRow(`SELECT `+documentCols+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return d, nil
}

// ListDocuments returns documents with event dates in [from, to] ordered by
// date. Zero bounds are open.
func (s *Storage) ListDocuments(from, to time.Time) ([]models.Document, error) {
	lo, hi := bounds(from, to)
	rows, err := s.db.Query(`SELECT `+documentCols+` FROM documents
		WHERE event_date >= ? AND event_date <= ? ORDER BY event_date, id`, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

const documentCols = `id, event_date, category, text, tokens`

func scanDocument(scan func(...any) error) (*models.Document, error) {
	var d models.Document
	var eventNano int64
	var category, tokens string
	if err := scan(&d.ID, &eventNano, &category, &d.Text, &tokens); err != nil {
		return nil, err
	}
	d.EventDate = fromNano(eventNano)
	d.Category = models.DocumentCategory(category)
	if err := json.Unmarshal([]byte(tokens), &d.Tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tokens: %w", err)
	}
	return &d, nil
}

// UpsertLexiconEntries validates and writes entries in one transaction.
func (s *Storage) UpsertLexiconEntries(entries []models.LexiconEntry, updatedAt time.Time) error {
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return err
		}
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, e := range entries {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO lexicon_entries (term, polarity, weight, domain, updated_at)
			VALUES (?,?,?,?,?)`,
			e.Term, string(e.Polarity), e.Weight, string(e.Domain), updatedAt.UnixNano(),
		); err != nil {
			return fmt.Errorf("failed to upsert lexicon entry %q: %w", e.Term, err)
		}
	}
	return tx.Commit()
}

// LexiconEntries returns all stored entries ordered by term.
func (s *Storage) LexiconEntries() ([]models.LexiconEntry, error) {
	rows, err := s.db.Query(`SELECT term, polarity, weight, domain FROM lexicon_entries ORDER BY term`)
	if err != nil {
		return nil, fmt.Errorf("failed to query lexicon: %w", err)
	}
	defer rows.Close()

	var entries []models.LexiconEntry
	for rows.Next() {
		var e models.LexiconEntry
		var polarity, domain string
		if err := rows.Scan(&e.Term, &polarity, &e.Weight, &domain); err != nil {
			return nil, fmt.Errorf("failed to scan lexicon entry: %w", err)
		}
		e.Polarity = models.Polarity(polarity)
		e.Domain = models.Domain(domain)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// bounds maps open time bounds onto the full int64 range.
func bounds(from, to time.Time) (int64, int64) {
	lo, hi := int64(-1<<63), int64(1<<63-1)
	if !from.IsZero() {
		lo = from.UnixNano()
	}
	if !to.IsZero() {
		hi = to.UnixNano()
	}
	return lo, hi
}
