// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/policytone/internal/models"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a run failure notification.
func (c *Client) SendError(runErr error) error {
	text := fmt.Sprintf("⚠️ *Policy tone run failed*\n`%s`", escapeMarkdownV2(runErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendPrediction sends a single prediction.
func (c *Client) SendPrediction(pred models.PredictionResult) error {
	return c.SendPredictions([]models.PredictionResult{pred})
}

// SendPredictions sends the predictions of a cycle in one message.
func (c *Client) SendPredictions(preds []models.PredictionResult) error {
	return c.sendMarkdownV2(formatPredictions(preds))
}

// SendBacktest sends a backtest summary.
func (c *Client) SendBacktest(run *models.BacktestRun) error {
	return c.sendMarkdownV2(formatBacktest(run))
}

var decisionEmoji = map[models.Decision]string{
	models.Hike: "📈",
	models.Hold: "⏸",
	models.Cut:  "📉",
}

// formatPredictions formats predictions into a Telegram MarkdownV2 message.
func formatPredictions(preds []models.PredictionResult) string {
	var b strings.Builder
	b.WriteString("🏦 *Rate decision outlook*\n\n")

	for i, p := range preds {
		probs := escapeMarkdownV2(fmt.Sprintf("hike %.0f%% / hold %.0f%% / cut %.0f%%",
			p.Probabilities.Hike*100, p.Probabilities.Hold*100, p.Probabilities.Cut*100))
		fmt.Fprintf(&b, "%d\\. %s %s *%s*\n", i+1,
			escapeMarkdownV2(models.DateKey(p.EventDate)), decisionEmoji[p.Predicted],
			escapeMarkdownV2(strings.ToUpper(string(p.Predicted))))
		fmt.Fprintf(&b, "   %s\n", probs)
		fmt.Fprintf(&b, "   tone %s · %s · `%s`\n\n",
			escapeMarkdownV2(fmt.Sprintf("%+.3f", p.Features.AdjustedTone)),
			escapeMarkdownV2(string(p.Method)),
			escapeMarkdownV2(p.DocumentID))
	}
	return b.String()
}

// formatBacktest formats a backtest run summary.
func formatBacktest(run *models.BacktestRun) string {
	var b strings.Builder
	b.WriteString("🧪 *Backtest finished*\n\n")
	fmt.Fprintf(&b, "Range: %s → %s\n",
		escapeMarkdownV2(models.DateKey(run.Start)), escapeMarkdownV2(models.DateKey(run.End)))
	fmt.Fprintf(&b, "Parameters: `%s`\n", escapeMarkdownV2(run.ParameterVersion))
	fmt.Fprintf(&b, "Events: %d, excluded %d, failed %d\n",
		run.Metrics.Observations, len(run.Excluded), len(run.Failures))
	fmt.Fprintf(&b, "Accuracy: *%s*\n", escapeMarkdownV2(fmt.Sprintf("%.1f%%", run.Metrics.Accuracy*100)))

	for _, d := range models.Decisions {
		cm, ok := run.Metrics.PerClass[d]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "   %s %s: %s\n", decisionEmoji[d], escapeMarkdownV2(string(d)),
			escapeMarkdownV2(fmt.Sprintf("precision %.2f, recall %.2f, n=%d", cm.Precision, cm.Recall, cm.Support)))
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
