package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/policytone/internal/lexicon"
	"github.com/rewired-gh/policytone/internal/logger"
	"github.com/rewired-gh/policytone/internal/models"
	"github.com/rewired-gh/policytone/internal/storage"
)

// File records use YYYY-MM-DD dates.
type documentRecord struct {
	ID        string   `json:"id"`
	EventDate string   `json:"event_date"`
	Category  string   `json:"category"`
	Text      string   `json:"text"`
	Tokens    []string `json:"tokens,omitempty"`
}

type ledgerRecord struct {
	Date        string          `json:"date"`
	Decision    string          `json:"decision,omitempty"` // derived from the rate change when empty
	MagnitudeBP *int64          `json:"magnitude_bp,omitempty"`
	Rate        decimal.Decimal `json:"rate"`
}

type exclusionRecord struct {
	Date    string `json:"date"`
	Reason  string `json:"reason"`
	AddedBy string `json:"added_by"`
}

type observationRecord struct {
	Series string  `json:"series"`
	Date   string  `json:"date"`
	Value  float64 `json:"value"`
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load documents, ledger, exclusions, observations and lexicon entries from files",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStorage()
		if err != nil {
			return err
		}
		defer closeStorage(store)

		now := time.Now().UTC()
		flags := cmd.Flags()
		if path, _ := flags.GetString("lexicon"); path != "" {
			if err := ingestLexicon(store, path, now); err != nil {
				return err
			}
		}
		if path, _ := flags.GetString("documents"); path != "" {
			if err := ingestDocuments(store, path, now); err != nil {
				return err
			}
		}
		if path, _ := flags.GetString("ledger"); path != "" {
			if err := ingestLedger(store, path, now); err != nil {
				return err
			}
		}
		if path, _ := flags.GetString("exclusions"); path != "" {
			if err := ingestExclusions(store, path, now); err != nil {
				return err
			}
		}
		if path, _ := flags.GetString("observations"); path != "" {
			if err := ingestObservations(store, path); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("documents", "", "JSON array of documents")
	ingestCmd.Flags().String("ledger", "", "JSON array of rate decisions")
	ingestCmd.Flags().String("exclusions", "", "JSON array of excluded dates")
	ingestCmd.Flags().String("observations", "", "JSON array of series observations")
	ingestCmd.Flags().String("lexicon", "", "YAML lexicon file to store")
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func ingestLexicon(store *storage.Storage, path string, now time.Time) error {
	lex, err := lexicon.LoadFile(path)
	if err != nil {
		return err
	}
	if err := store.UpsertLexiconEntries(lex.Entries(), now); err != nil {
		return err
	}
	logger.Info("Stored lexicon %s with %d entries", lex.Version(), lex.Len())
	return nil
}

func ingestDocuments(store *storage.Storage, path string, now time.Time) error {
	var records []documentRecord
	if err := readJSON(path, &records); err != nil {
		return err
	}
	var failures []models.Failure
	added := 0
	for _, r := range records {
		date, err := parseDate(r.EventDate)
		if err != nil {
			failures = append(failures, models.NewFailure(r.ID, err))
			continue
		}
		doc := models.Document{
			ID:        r.ID,
			EventDate: date,
			Category:  models.DocumentCategory(r.Category),
			Text:      r.Text,
			Tokens:    r.Tokens,
		}
		if err := store.AddDocument(&doc, now); err != nil {
			failures = append(failures, models.NewFailure(r.ID, err))
			continue
		}
		added++
	}
	for _, f := range failures {
		logger.Warn("Rejected document %s: %s", f.RecordID, f.Message)
	}
	logger.Info("Ingested %d/%d documents", added, len(records))
	return nil
}

// ingestLedger appends all records or none. A missing decision or magnitude
// is derived from the change against the previous record's rate.
func ingestLedger(store *storage.Storage, path string, now time.Time) error {
	var records []ledgerRecord
	if err := readJSON(path, &records); err != nil {
		return err
	}
	events := make([]models.RateDecisionEvent, 0, len(records))
	var prev *decimal.Decimal
	for i, r := range records {
		date, err := parseDate(r.Date)
		if err != nil {
			return err
		}
		ev := models.RateDecisionEvent{Date: date, Rate: r.Rate, IngestedAt: now}
		base := r.Rate
		if prev != nil {
			base = *prev
		}
		derived, bp := models.DecisionFromRates(base, r.Rate)
		ev.Decision, ev.MagnitudeBP = derived, bp
		if r.Decision != "" {
			if ev.Decision, err = models.ParseDecision(r.Decision); err != nil {
				return err
			}
		}
		if r.MagnitudeBP != nil {
			ev.MagnitudeBP = *r.MagnitudeBP
		}
		events = append(events, ev)
		prev = &records[i].Rate
	}
	added, err := store.AppendLedger(events)
	if err != nil {
		return err
	}
	logger.Info("Appended %d new ledger events (%d already recorded)", added, len(events)-added)
	return nil
}

func ingestExclusions(store *storage.Storage, path string, now time.Time) error {
	var records []exclusionRecord
	if err := readJSON(path, &records); err != nil {
		return err
	}
	for _, r := range records {
		date, err := parseDate(r.Date)
		if err != nil {
			return err
		}
		if err := store.AddExclusion(models.ExclusionEntry{Date: date, Reason: r.Reason, AddedBy: r.AddedBy, AddedAt: now}); err != nil {
			return err
		}
	}
	logger.Info("Recorded %d exclusions", len(records))
	return nil
}

func ingestObservations(store *storage.Storage, path string) error {
	var records []observationRecord
	if err := readJSON(path, &records); err != nil {
		return err
	}
	obs := make([]models.Observation, 0, len(records))
	for _, r := range records {
		date, err := parseDate(r.Date)
		if err != nil {
			return err
		}
		obs = append(obs, models.Observation{Series: r.Series, Date: date, Value: r.Value})
	}
	if err := store.UpsertObservations(obs); err != nil {
		return err
	}
	logger.Info("Stored %d observations", len(obs))
	return nil
}

var exclusionsCmd = &cobra.Command{
	Use:   "exclusions",
	Short: "List excluded event dates or remove one",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStorage()
		if err != nil {
			return err
		}
		defer closeStorage(store)

		if s, _ := cmd.Flags().GetString("remove"); s != "" {
			date, err := parseDate(s)
			if err != nil {
				return err
			}
			if err := store.RemoveExclusion(date); err != nil {
				return err
			}
			logger.Info("Removed exclusion %s", models.DateKey(date))
			return nil
		}

		entries, err := store.Exclusions()
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %-10s %s\n", models.DateKey(e.Date), e.AddedBy, e.Reason)
		}
		return nil
	},
}

func init() {
	exclusionsCmd.Flags().String("remove", "", "date (YYYY-MM-DD) to remove from the exclusion list")
}
