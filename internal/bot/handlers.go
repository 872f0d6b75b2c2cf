package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"market_bot/internal/filter"
	"market_bot/internal/model"
	"market_bot/internal/price"
	"market_bot/internal/storage"
)

const maxKeywordLen = 100

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Ola! Eu monitoro buscas no Enjoei, Mercado Livre e OLX e aviso quando aparece item novo ou quando o preco cai.

Para comecar:
1. /adicionar <palavra> [plataforma] - ex: /adicionar tenis nike olx
2. /filtros <id> - ajuste periodo, tamanho, ordenacao...
3. /preco <id> <valor> - defina um preco maximo

Use /ajuda para ver todos os comandos.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, fmt.Sprintf(`Monitoramentos:
/adicionar <palavra> [plataforma] - monitorar uma busca
/remover <palavra> [plataforma] - parar de monitorar
/listar - ver seus monitoramentos
/filtros <id> - filtros da busca
/preco <id> <valor> - preco maximo (0 remove)

Conta:
/pausar - pausar notificacoes
/retomar - retomar notificacoes
/buscar - buscar agora
/status - ultimo ciclo de busca
/plataformas - plataformas disponiveis

Plataformas: %s (padrao: %s)`, strings.Join(b.registry.Keys(), ", "), b.registry.Default()))
}

func (b *Bot) handleAdd(ctx context.Context, chatID int64, args string) {
	keyword, key, _ := b.registry.ExtractHint(args)
	keyword = model.NormalizeKeyword(keyword)
	if keyword == "" {
		b.reply(chatID, "Uso: /adicionar <palavra> [plataforma]")
		return
	}
	if len([]rune(keyword)) > maxKeywordLen {
		b.reply(chatID, fmt.Sprintf("Palavra-chave muito longa (maximo %d caracteres).", maxKeywordLen))
		return
	}

	count, err := b.store.CountWatches(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Erro: %v", err))
		return
	}
	if limit := b.cfg.MaxWatchesPerUser; limit > 0 && count >= limit {
		b.reply(chatID, fmt.Sprintf("Voce atingiu o limite de %d monitoramentos. Remova algum com /remover.", limit))
		return
	}

	w := &model.Watch{ChatID: chatID, Keyword: keyword, Platform: key}
	created, err := b.store.AddWatch(ctx, w)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Erro ao salvar: %v", err))
		return
	}
	name := b.platformName(key)
	if !created {
		b.reply(chatID, fmt.Sprintf("Voce ja monitora %q no %s (#%d).", keyword, name, w.ID))
		return
	}
	b.reply(chatID, fmt.Sprintf("Monitorando %q no %s (#%d).\nUse /filtros %d para refinar a busca.", keyword, name, w.ID, w.ID))
}

func (b *Bot) handleRemove(ctx context.Context, chatID int64, args string) {
	keyword, key, found := b.registry.ExtractHint(args)
	keyword = model.NormalizeKeyword(keyword)
	if keyword == "" {
		b.reply(chatID, "Uso: /remover <palavra> [plataforma]")
		return
	}
	if !found {
		key = ""
	}

	n, err := b.store.RemoveWatch(ctx, chatID, keyword, key)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Erro: %v", err))
		return
	}
	if n == 0 {
		b.reply(chatID, fmt.Sprintf("Nenhum monitoramento para %q.", keyword))
		return
	}
	if key == "" {
		b.reply(chatID, fmt.Sprintf("Removido %q (%d plataforma(s)).", keyword, n))
		return
	}
	b.reply(chatID, fmt.Sprintf("Removido %q do %s.", keyword, b.platformName(key)))
}

func (b *Bot) handleList(ctx context.Context, chatID int64) {
	watches, err := b.store.ListWatches(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Erro: %v", err))
		return
	}

	entries := make([]WatchEntry, 0, len(watches))
	for _, w := range watches {
		entries = append(entries, WatchEntry{
			Watch:    w,
			Platform: b.platformName(w.Platform),
			Filters:  b.summarize(w),
		})
	}

	paused, err := b.store.IsPaused(ctx, chatID)
	if err != nil {
		b.log.Error("read pause state", "chat_id", chatID, "error", err)
	}
	b.reply(chatID, FormatWatchList(entries, paused))
}

func (b *Bot) handleFilters(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Uso: /filtros <id>")
		return
	}

	w, err := b.store.GetWatch(ctx, id, chatID)
	if err != nil {
		b.replyWatchError(chatID, id, err)
		return
	}
	adapter, ok := b.registry.Get(w.Platform)
	if !ok {
		b.reply(chatID, fmt.Sprintf("Plataforma %q indisponivel.", w.Platform))
		return
	}

	fs, err := filter.Decode(w.Platform, w.Filters)
	if err != nil {
		b.log.Warn("decode stored filters, using defaults", "watch_id", w.ID, "error", err)
	}
	msg := tgbotapi.NewMessage(chatID, FormatFilterHeader(w, adapter.Name(), adapter.SummarizeFilters(fs)))
	msg.ReplyMarkup = filterKeyboard(w.ID, adapter.FilterView(fs))
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send filter keyboard", "watch_id", w.ID, "error", err)
	}
}

func (b *Bot) handlePrice(ctx context.Context, chatID int64, args string) {
	id, maxPrice, err := ParsePriceArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	w, err := b.store.GetWatch(ctx, id, chatID)
	if err != nil {
		b.replyWatchError(chatID, id, err)
		return
	}
	if err := b.store.SetMaxPrice(ctx, w.ID, maxPrice); err != nil {
		b.reply(chatID, fmt.Sprintf("Erro: %v", err))
		return
	}
	if maxPrice == nil {
		b.reply(chatID, fmt.Sprintf("Preco maximo removido de #%d %q.", w.ID, w.Keyword))
		return
	}
	b.reply(chatID, fmt.Sprintf("Preco maximo de #%d %q: %s.", w.ID, w.Keyword, price.Format(*maxPrice)))
}

func (b *Bot) handlePause(ctx context.Context, chatID int64, paused bool) {
	if err := b.store.SetPaused(ctx, chatID, paused); err != nil {
		b.reply(chatID, fmt.Sprintf("Erro: %v", err))
		return
	}
	if paused {
		b.reply(chatID, "Notificacoes pausadas. Use /retomar para voltar a receber.")
		return
	}
	b.reply(chatID, "Notificacoes retomadas.")
}

// handleSearchNow starts a cycle without blocking the update loop. At most one
// requested cycle is pending; it still waits for a scheduled one in progress.
func (b *Bot) handleSearchNow(ctx context.Context, chatID int64) {
	if !b.searching.CompareAndSwap(false, true) {
		b.reply(chatID, "Uma busca ja esta em andamento.")
		return
	}
	b.reply(chatID, "Buscando agora... aviso quando terminar.")
	go func() {
		defer b.searching.Store(false)
		sum, err := b.cycles.RunCycle(ctx)
		if err != nil {
			b.log.Error("manual check cycle", "chat_id", chatID, "error", err)
			b.reply(chatID, "A busca foi interrompida.")
			return
		}
		b.reply(chatID, FormatSummary(sum))
	}()
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	count, err := b.store.CountWatches(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Erro: %v", err))
		return
	}
	paused, err := b.store.IsPaused(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Erro: %v", err))
		return
	}

	var sb strings.Builder
	state := "ativas"
	if paused {
		state = "pausadas"
	}
	fmt.Fprintf(&sb, "Monitoramentos: %d/%d\nNotificacoes: %s\n\n", count, b.cfg.MaxWatchesPerUser, state)
	if sum, ok := b.cycles.LastSummary(); ok {
		sb.WriteString(FormatSummary(sum))
	} else {
		sb.WriteString("Nenhum ciclo de busca rodou ainda.")
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) handlePlatforms(chatID int64) {
	var sb strings.Builder
	sb.WriteString("Plataformas disponiveis:\n")
	for _, key := range b.registry.Keys() {
		marker := ""
		if key == b.registry.Default() {
			marker = " (padrao)"
		}
		fmt.Fprintf(&sb, "\n%s - %s%s", key, b.platformName(key), marker)
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) replyWatchError(chatID, id int64, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, fmt.Sprintf("Monitoramento #%d nao encontrado.", id))
		return
	}
	b.reply(chatID, fmt.Sprintf("Erro: %v", err))
}

func (b *Bot) platformName(key string) string {
	if a, ok := b.registry.Get(key); ok {
		return a.Name()
	}
	return key
}

func (b *Bot) summarize(w model.Watch) string {
	a, ok := b.registry.Get(w.Platform)
	if !ok {
		return ""
	}
	fs, err := filter.Decode(w.Platform, w.Filters)
	if err != nil {
		b.log.Warn("decode stored filters, using defaults", "watch_id", w.ID, "error", err)
	}
	return a.SummarizeFilters(fs)
}
