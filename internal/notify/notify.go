// Package notify dispatches batch risk alerts via the Telegram Bot API.
// Every score that breaches a limit, alert or action, is formatted into a
// human-readable message, contributions included, and delivered with
// retry for transient API failures.
package notify

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arvense/batchsight/internal/models"
)

// Client sends risk alerts to a Telegram chat.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a Telegram alert client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
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

// SendScores sends one message covering the given alert/action scores.
func (c *Client) SendScores(scores []models.RiskScore, thresholdAlert, thresholdAction float64) error {
	if len(scores) == 0 {
		return nil
	}
	return c.send(formatScores(scores, thresholdAlert, thresholdAction))
}

// SendError notifies that the scoring loop failed.
func (c *Client) SendError(err error) error {
	msg := fmt.Sprintf("⚠️ *Scoring loop failure*\n\n%s", escapeMarkdownV2(err.Error()))
	return c.send(msg)
}

func (c *Client) send(message string) error {
	msg := tgbotapi.NewMessage(c.chatID, message)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

func formatScores(scores []models.RiskScore, alert, action float64) string {
	message := "🚨 *Batch risk alerts*\n\n"
	message += fmt.Sprintf("Limits: alert %s, action %s\n\n",
		escapeMarkdownV2(fmt.Sprintf("%.2f", alert)),
		escapeMarkdownV2(fmt.Sprintf("%.2f", action)))

	for i, score := range scores {
		marker := "🟠"
		if score.Classification == models.ClassificationAction {
			marker = "🔴"
		}
		message += fmt.Sprintf("%d\\. %s batch *%s*, score %s \\(%s\\)\n",
			i+1,
			marker,
			escapeMarkdownV2(score.BatchID),
			escapeMarkdownV2(fmt.Sprintf("%.2f", score.Score)),
			escapeMarkdownV2(string(score.Classification)))

		// Largest contributions first so the likely culprit leads.
		type term struct {
			name  string
			value float64
		}
		terms := make([]term, 0, len(score.Contributions))
		for name, value := range score.Contributions {
			terms = append(terms, term{name, value})
		}
		sort.Slice(terms, func(a, b int) bool {
			if terms[a].value != terms[b].value {
				return terms[a].value > terms[b].value
			}
			return terms[a].name < terms[b].name
		})
		for _, t := range terms {
			message += fmt.Sprintf("   %s: %s\n",
				escapeMarkdownV2(t.name),
				escapeMarkdownV2(fmt.Sprintf("%+.3f", t.value)))
		}
		message += "\n"
	}
	return message
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	result := ""
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			result += "\\" + string(char)
		default:
			result += string(char)
		}
	}
	return result
}
