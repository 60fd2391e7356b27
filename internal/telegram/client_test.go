package telegram

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/policytone/internal/models"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"Hello_World", "Hello\\_World"},
		{"Test*bold*", "Test\\*bold\\*"},
		{"Price: $100.50", "Price: $100\\.50"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"~strikethrough~", "\\~strikethrough\\~"},
		{"`code`", "\\`code\\`"},
		{">blockquote", "\\>blockquote"},
		{"#header", "\\#header"},
		{"+plus-minus", "\\+plus\\-minus"},
		{"=equal|pipe", "\\=equal\\|pipe"},
		{"{brace}", "\\{brace\\}"},
		{"end!", "end\\!"},
		{"", ""},
		{"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeMarkdownV2(tt.input)
			if result != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	// The chat ID is parsed before the bot token is checked over the network.
	_, err := NewClient("", "not-a-number", 3, time.Second)
	if err == nil {
		t.Error("Expected error for invalid chat ID, got nil")
	}
}

func TestFormatPredictions(t *testing.T) {
	preds := []models.PredictionResult{{
		DocumentID:    "ds-2024-10-11",
		EventDate:     time.Date(2024, 10, 11, 0, 0, 0, 0, time.UTC),
		Probabilities: models.Probabilities{Hike: 0.1, Hold: 0.3, Cut: 0.6},
		Predicted:     models.Cut,
		Method:        models.MethodClassifier,
		Features:      models.Features{AdjustedTone: -0.42},
	}}
	msg := formatPredictions(preds)

	for _, want := range []string{
		"2024\\-10\\-11",
		"*CUT*",
		"hike 10% / hold 30% / cut 60%",
		"tone \\-0\\.420",
		"`ds\\-2024\\-10\\-11`",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatBacktest(t *testing.T) {
	run := &models.BacktestRun{
		ParameterVersion: "ps-0123456789ab",
		Start:            time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		End:              time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		Excluded:         []time.Time{time.Date(2020, 3, 16, 0, 0, 0, 0, time.UTC)},
		Metrics: models.BacktestMetrics{
			Observations: 8,
			Accuracy:     0.75,
			PerClass: map[models.Decision]models.ClassMetrics{
				models.Hold: {Precision: 0.8, Recall: 1, Support: 4},
			},
		},
	}
	msg := formatBacktest(run)

	for _, want := range []string{
		"2021\\-01\\-01 → 2025\\-12\\-31",
		"`ps\\-0123456789ab`",
		"Events: 8, excluded 1, failed 0",
		"*75\\.0%*",
		"hold: precision 0\\.80, recall 1\\.00, n\\=4",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "hike:") {
		t.Error("classes without metrics should be omitted")
	}
}

func TestEscapeErrorText(t *testing.T) {
	err := errors.New("tone[doc_1]: bad input.")
	got := escapeMarkdownV2(err.Error())
	if got != "tone\\[doc\\_1\\]: bad input\\." {
		t.Errorf("unexpected escape: %q", got)
	}
}
