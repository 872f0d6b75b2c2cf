package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"market_bot/internal/filter"
)

// handleCallback applies a filter toggle from an inline keyboard press and redraws the keyboard.
func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil {
		b.ack(cb.ID, "")
		return
	}
	chatID := cb.Message.Chat.ID

	id, key, value, err := ParseFilterCallback(cb.Data)
	if err != nil {
		b.ack(cb.ID, "")
		return
	}

	b.log.Info("callback", "watch_id", id, "key", key, "value", value, "chat_id", chatID)

	w, err := b.store.GetWatch(ctx, id, chatID)
	if err != nil {
		b.ack(cb.ID, "Monitoramento nao encontrado.")
		return
	}
	adapter, ok := b.registry.Get(w.Platform)
	if !ok {
		b.ack(cb.ID, "Plataforma indisponivel.")
		return
	}

	current, err := filter.Decode(w.Platform, w.Filters)
	if err != nil {
		b.log.Warn("decode stored filters, using defaults", "watch_id", w.ID, "error", err)
	}
	next := adapter.ToggleFilter(current, key, value)
	blob, err := filter.Encode(next)
	if err != nil {
		b.log.Error("encode filters", "watch_id", w.ID, "error", err)
		b.ack(cb.ID, "Erro ao salvar filtros.")
		return
	}
	if blob == w.Filters {
		b.ack(cb.ID, "")
		return
	}
	if err := b.store.SetFilters(ctx, w.ID, blob); err != nil {
		b.log.Error("save filters", "watch_id", w.ID, "error", err)
		b.ack(cb.ID, "Erro ao salvar filtros.")
		return
	}
	w.Filters = blob

	summary := adapter.SummarizeFilters(next)
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, cb.Message.MessageID,
		FormatFilterHeader(w, adapter.Name(), summary), filterKeyboard(w.ID, adapter.FilterView(next)))
	if _, err := b.api.Request(edit); err != nil {
		b.log.Error("edit filter keyboard", "watch_id", w.ID, "error", err)
	}
	b.ack(cb.ID, orDefault(summary, "Sem filtros"))
}

func (b *Bot) ack(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Error("send callback ack", "error", err)
	}
}

func filterKeyboard(watchID int64, view filter.View) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(view.Rows))
	for _, row := range view.Rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, opt := range row {
			label := opt.Label
			if opt.Active {
				label = "✓ " + label
			}
			data := fmt.Sprintf("f:%d:%s:%s", watchID, opt.Key, opt.Value)
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(label, data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
