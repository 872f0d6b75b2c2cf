// Package notifier delivers listing notifications and operator alerts.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"market_bot/internal/model"
)

// Sender is the part of the Telegram API used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Target receives per-owner listing notifications.
type Target interface {
	NotifyNew(ctx context.Context, chatID int64, keyword, platform string, l model.Listing) error
	NotifyPriceDrop(ctx context.Context, chatID int64, keyword, platform string, l model.Listing, oldPrice string) error
}

// Telegram sends notifications as Telegram messages, with the listing photo when available.
type Telegram struct {
	api   Sender
	names map[string]string
	pace  time.Duration
	log   *slog.Logger
}

// NewTelegram creates a Telegram notifier. names maps platform keys to display names.
// pace is the pause after each delivery to stay under Telegram rate limits.
func NewTelegram(api Sender, names map[string]string, pace time.Duration, log *slog.Logger) *Telegram {
	return &Telegram{api: api, names: names, pace: pace, log: log}
}

func (t *Telegram) NotifyNew(ctx context.Context, chatID int64, keyword, platform string, l model.Listing) error {
	return t.deliver(ctx, chatID, l.Image, FormatNew(t.name(platform), keyword, l))
}

func (t *Telegram) NotifyPriceDrop(ctx context.Context, chatID int64, keyword, platform string, l model.Listing, oldPrice string) error {
	return t.deliver(ctx, chatID, l.Image, FormatPriceDrop(t.name(platform), keyword, l, oldPrice))
}

func (t *Telegram) name(platform string) string {
	if n, ok := t.names[platform]; ok {
		return n
	}
	return platform
}

func (t *Telegram) deliver(ctx context.Context, chatID int64, image, text string) error {
	defer t.wait(ctx)

	if strings.HasPrefix(image, "http") {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(image))
		photo.Caption = truncate(text, captionLimit)
		_, err := t.api.Send(photo)
		if err == nil {
			return nil
		}
		t.log.Warn("send photo failed, falling back to text", "chat_id", chatID, "error", err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

func (t *Telegram) wait(ctx context.Context) {
	if t.pace <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(t.pace):
	}
}

// Operator sends alerts to the admin chat. A zero chat ID only logs.
type Operator struct {
	api    Sender
	chatID int64
	log    *slog.Logger
}

// NewOperator creates an operator alerter.
func NewOperator(api Sender, chatID int64, log *slog.Logger) *Operator {
	return &Operator{api: api, chatID: chatID, log: log}
}

func (o *Operator) NotifyOperator(_ context.Context, text string) error {
	o.log.Warn("operator alert", "text", text)
	if o.chatID == 0 {
		return nil
	}
	msg := tgbotapi.NewMessage(o.chatID, "[operador] "+text)
	if _, err := o.api.Send(msg); err != nil {
		return fmt.Errorf("send operator alert: %w", err)
	}
	return nil
}

// Multi fans notifications out to several targets. Every target is tried;
// failures are joined.
type Multi []Target

func (m Multi) NotifyNew(ctx context.Context, chatID int64, keyword, platform string, l model.Listing) error {
	var errs []error
	for _, t := range m {
		errs = append(errs, t.NotifyNew(ctx, chatID, keyword, platform, l))
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyPriceDrop(ctx context.Context, chatID int64, keyword, platform string, l model.Listing, oldPrice string) error {
	var errs []error
	for _, t := range m {
		errs = append(errs, t.NotifyPriceDrop(ctx, chatID, keyword, platform, l, oldPrice))
	}
	return errors.Join(errs...)
}
