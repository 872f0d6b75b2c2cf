// Package bot implements the Telegram chat interface: watch management commands and filter keyboards.
package bot

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"market_bot/internal/config"
	"market_bot/internal/model"
	"market_bot/internal/platform"
	"market_bot/internal/storage"
)

// API is the part of the Telegram client the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Cycles runs and reports check cycles.
type Cycles interface {
	RunCycle(ctx context.Context) (model.CycleSummary, error)
	LastSummary() (model.CycleSummary, bool)
}

// Deps are the collaborators of a Bot.
type Deps struct {
	Store    storage.WatchStore
	Registry *platform.Registry
	Cycles   Cycles
}

// Bot is the Telegram bot that handles user commands.
type Bot struct {
	api      API
	store    storage.WatchStore
	registry *platform.Registry
	cycles   Cycles
	cfg      *config.Config
	log      *slog.Logger

	// searching is set while a /buscar cycle is pending.
	searching atomic.Bool
}

// New creates a Bot.
func New(api API, deps Deps, cfg *config.Config, log *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		store:    deps.Store,
		registry: deps.Registry,
		cycles:   deps.Cycles,
		cfg:      cfg,
		log:      log,
	}
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if cb := update.CallbackQuery; cb != nil {
				if cb.From != nil && !b.cfg.IsUserAllowed(cb.From.ID) {
					b.ack(cb.ID, "Acesso negado.")
					continue
				}
				b.handleCallback(ctx, cb)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if update.Message.From == nil || !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Acesso negado.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := strings.ToLower(msg.Command())
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "ajuda", "help":
		b.handleHelp(chatID)
	case "adicionar":
		b.handleAdd(ctx, chatID, args)
	case "remover":
		b.handleRemove(ctx, chatID, args)
	case "listar":
		b.handleList(ctx, chatID)
	case "filtros":
		b.handleFilters(ctx, chatID, args)
	case "preco":
		b.handlePrice(ctx, chatID, args)
	case "pausar":
		b.handlePause(ctx, chatID, true)
	case "retomar":
		b.handlePause(ctx, chatID, false)
	case "buscar":
		b.handleSearchNow(ctx, chatID)
	case "status":
		b.handleStatus(ctx, chatID)
	case "plataformas":
		b.handlePlatforms(chatID)
	default:
		b.reply(chatID, "Comando desconhecido. Use /ajuda para ver os comandos.")
	}
}
