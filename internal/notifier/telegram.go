package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of tgbotapi.BotAPI the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends one summary message and one message per posting.
type Telegram struct {
	api    sender
	chatID int64
	logger *slog.Logger
}

func NewTelegram(token string, chatID int64, logger *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &Telegram{api: api, chatID: chatID, logger: logger}, nil
}

func (t *Telegram) Name() string { return "telegram" }

var markdownEscaper = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(",
	")", "\\)", "~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#",
	"+", "\\+", "-", "\\-", "=", "\\=", "|", "\\|", "{", "\\{",
	"}", "\\}", ".", "\\.", "!", "\\!",
)

func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

// Notify keeps going after a failed posting message and reports every failure.
func (t *Telegram) Notify(ctx context.Context, d Digest) error {
	header := fmt.Sprintf("🎯 *%d new job %s*", d.Total(), plural(d.Total(), "posting", "postings"))
	for _, c := range d.Companies {
		header += fmt.Sprintf("\n🏢 %s: %d", escapeMarkdown(c.Company), len(c.Jobs))
	}
	msg := tgbotapi.NewMessage(t.chatID, header)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send summary: %w", err)
	}

	var errs []error
	for _, c := range d.Companies {
		for _, j := range c.Jobs {
			if err := ctx.Err(); err != nil {
				return errors.Join(append(errs, err)...)
			}
			if err := t.sendJob(c.Company, j.Title, j.Location, j.URL); err != nil {
				t.logger.Warn("⚠️ Failed to send job", "company", c.Company, "title", j.Title, "error", err)
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (t *Telegram) sendJob(company, title, location, link string) error {
	if location == "" {
		location = "N/A"
	}
	text := fmt.Sprintf("🏢 *%s*\n", escapeMarkdown(company))
	text += fmt.Sprintf("💼 %s\n", escapeMarkdown(title))
	text += fmt.Sprintf("📍 %s\n", escapeMarkdown(location))
	text += fmt.Sprintf("🔗 [View Job](%s)\n", link)

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if link != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("🔗 View Job", link)),
		)
	}
	_, err := t.api.Send(msg)
	return err
}

// SendStatus posts a plain status line, e.g. the companies a run could not check.
func (t *Telegram) SendStatus(message string) error {
	_, err := t.api.Send(tgbotapi.NewMessage(t.chatID, "ℹ️ "+message))
	return err
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
