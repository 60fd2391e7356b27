// Command policytone scores central-bank policy documents, predicts rate
// decisions and evaluates them against the decision ledger.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/policytone/internal/config"
	"github.com/rewired-gh/policytone/internal/lexicon"
	"github.com/rewired-gh/policytone/internal/logger"
	"github.com/rewired-gh/policytone/internal/models"
	"github.com/rewired-gh/policytone/internal/storage"
	"github.com/rewired-gh/policytone/internal/telegram"
	"github.com/rewired-gh/policytone/internal/tone"
)

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "policytone",
	Short:         "Policy tone analytics for rate-decision forecasting",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
			configPath = ""
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logger.Init(cfg.Logging.Level, cfg.Logging.Format)
		if configPath != "" {
			logger.Debug("Configuration loaded from %s", configPath)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "configs/config.yaml", "path to configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(ingestCmd, exclusionsCmd, fetchCmd, paramsCmd, auditCmd, scoreCmd, predictCmd, rateCmd, curveCmd, lagCmd, backtestCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func openStorage() (*storage.Storage, error) {
	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

func closeStorage(store *storage.Storage) {
	if err := store.Close(); err != nil {
		logger.Error("Failed to close storage: %v", err)
	}
}

// activeParameters returns the stored active parameter set, or the configured
// one when none has been applied.
func activeParameters(store *storage.Storage) (models.ModelParameters, error) {
	p, err := store.ActiveParameters()
	if errors.Is(err, storage.ErrNotFound) {
		logger.Debug("No active parameter set stored, using configuration")
		return cfg.Parameters(), nil
	}
	if err != nil {
		return models.ModelParameters{}, err
	}
	return *p, nil
}

// loadLexicon prefers stored entries, then the configured file, then the
// embedded dictionary. Matching and normalization follow the parameter set.
func loadLexicon(store *storage.Storage, scoring models.ScoringParams) (*lexicon.Lexicon, error) {
	mode := lexicon.MatchMode(scoring.MatchMode)

	entries, err := store.LexiconEntries()
	if err != nil {
		return nil, err
	}
	var lex *lexicon.Lexicon
	switch {
	case len(entries) > 0:
		lex, err = lexicon.New(entries, mode)
	case cfg.Engine.LexiconPath != "":
		lex, err = lexicon.LoadFile(cfg.Engine.LexiconPath)
	default:
		lex, err = lexicon.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lexicon: %w", err)
	}
	if lex.Mode() != mode {
		if lex, err = lexicon.New(lex.Entries(), mode); err != nil {
			return nil, err
		}
	}
	if scoring.Normalize {
		if lex, err = lex.Normalized(); err != nil {
			return nil, err
		}
	}
	logger.Debug("Lexicon %s: %d entries, %s matching", lex.Version(), lex.Len(), lex.Mode())
	return lex, nil
}

func newScorer(lex *lexicon.Lexicon, params models.ModelParameters) (*tone.Scorer, error) {
	combiner, err := tone.NewCombiner(params)
	if err != nil {
		return nil, err
	}
	return tone.NewScorer(lex, combiner, tone.ConfigFor(params.Scoring, cfg.Engine.Workers)), nil
}

// newNotifier returns nil when notifications are disabled.
func newNotifier() (*telegram.Client, error) {
	if !cfg.Telegram.Enabled {
		logger.Debug("Telegram notifications disabled")
		return nil, nil
	}
	client, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram client: %w", err)
	}
	logger.Info("Telegram client initialized successfully")
	return client, nil
}

// notifyError reports a failed run when notifications are enabled.
func notifyError(runErr error) {
	client, err := newNotifier()
	if err != nil || client == nil {
		return
	}
	if err := client.SendError(runErr); err != nil {
		logger.Warn("Failed to send error notification: %v", err)
	}
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, models.NewError(models.KindInputValidation, "cli", s, "dates use YYYY-MM-DD")
	}
	return t, nil
}

// parseAsOf reads a computed-at timestamp given as RFC 3339 or YYYY-MM-DD.
// Empty means now.
func parseAsOf(s string, now func() time.Time) (time.Time, error) {
	if s == "" {
		return now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, models.NewError(models.KindInputValidation, "cli", s, "--as-of uses RFC 3339 or YYYY-MM-DD")
	}
	return t, nil
}

func asOf(cmd *cobra.Command) (time.Time, error) {
	s, _ := cmd.Flags().GetString("as-of")
	return parseAsOf(s, time.Now)
}

// dateRange reads --from/--to, falling back to the configured backtest range.
func dateRange(cmd *cobra.Command) (time.Time, time.Time, error) {
	start, end := cfg.BacktestRange()
	if s, _ := cmd.Flags().GetString("from"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}
	if s, _ := cmd.Flags().GetString("to"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, models.NewError(models.KindInputValidation, "cli", "",
			"--to %s is before --from %s", models.DateKey(end), models.DateKey(start))
	}
	return start, end, nil
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "first date (YYYY-MM-DD, default backtest.start)")
	cmd.Flags().String("to", "", "last date (YYYY-MM-DD, default backtest.end)")
}
