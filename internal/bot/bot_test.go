package bot

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"

	"market_bot/internal/config"
	"market_bot/internal/model"
	"market_bot/internal/platform"
	"market_bot/internal/storage"
)

// --- mocks ---

type sentMsg struct {
	ChatID   int64
	Text     string
	Keyboard *tgbotapi.InlineKeyboardMarkup
}

type mockAPI struct {
	mu       sync.Mutex
	sent     []sentMsg
	edits    []tgbotapi.EditMessageTextConfig
	acks     []tgbotapi.CallbackConfig
	requests int
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		m.mu.Lock()
		s := sentMsg{ChatID: msg.ChatID, Text: msg.Text}
		if kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
			s.Keyboard = &kb
		}
		m.sent = append(m.sent, s)
		m.mu.Unlock()
	}
	return tgbotapi.Message{}, nil
}

func (m *mockAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	switch v := c.(type) {
	case tgbotapi.EditMessageTextConfig:
		m.edits = append(m.edits, v)
	case tgbotapi.CallbackConfig:
		m.acks = append(m.acks, v)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockAPI) GetUpdatesChan(_ tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(tgbotapi.UpdatesChannel)
}

func (m *mockAPI) StopReceivingUpdates() {}

func (m *mockAPI) lastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Text
}

func (m *mockAPI) last() sentMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMsg{}
	}
	return m.sent[len(m.sent)-1]
}

type fakeCycles struct {
	sum     model.CycleSummary
	hasLast bool
	ran     chan struct{}
}

func (f *fakeCycles) RunCycle(context.Context) (model.CycleSummary, error) {
	if f.ran != nil {
		defer close(f.ran)
	}
	return f.sum, nil
}

func (f *fakeCycles) LastSummary() (model.CycleSummary, bool) {
	return f.sum, f.hasLast
}

// --- helpers ---

func newTestBot(t *testing.T) (*Bot, *mockAPI, *storage.SQLite) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg, err := platform.NewRegistry("enjoei",
		platform.NewEnjoei(nil, platform.Options{}, log),
		platform.NewMercadoLivre(nil, platform.Options{}, log),
		platform.NewOlx(nil, platform.Options{}, log),
	)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	api := &mockAPI{}
	b := New(api, Deps{Store: store, Registry: reg, Cycles: &fakeCycles{}},
		&config.Config{MaxWatchesPerUser: 3}, log)
	return b, api, store
}

func seedWatch(t *testing.T, store *storage.SQLite, chatID int64, keyword, plat string) *model.Watch {
	t.Helper()
	w := &model.Watch{ChatID: chatID, Keyword: keyword, Platform: plat}
	if _, err := store.AddWatch(context.Background(), w); err != nil {
		t.Fatalf("seed watch: %v", err)
	}
	return w
}

func requireContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("reply missing %q, got:\n%s", want, got)
	}
}

func commandMessage(chatID int64, text string) *tgbotapi.Message {
	cmd := strings.Fields(text)[0]
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     &tgbotapi.User{ID: chatID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}
}

// --- handler tests ---

func TestHandleStartAndHelp(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.handleStart(100)
	requireContains(t, api.lastText(), "/adicionar")

	b.handleHelp(100)
	requireContains(t, api.lastText(), "/filtros")
	requireContains(t, api.lastText(), "enjoei, ml, olx")
}

func TestHandleAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("empty args", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleAdd(ctx, 100, "")
		requireContains(t, api.lastText(), "Uso: /adicionar")
	})

	t.Run("default platform", func(t *testing.T) {
		b, api, store := newTestBot(t)
		b.handleAdd(ctx, 100, "Tenis  Nike")
		requireContains(t, api.lastText(), `Monitorando "tenis nike" no Enjoei`)

		watches, _ := store.ListWatches(ctx, 100)
		if diff := cmp.Diff(1, len(watches)); diff != "" {
			t.Fatalf("watch count (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff("enjoei", watches[0].Platform); diff != "" {
			t.Errorf("platform (-want +got):\n%s", diff)
		}
	})

	t.Run("platform hint", func(t *testing.T) {
		b, api, store := newTestBot(t)
		b.handleAdd(ctx, 100, "camisa flamengo mercado livre")
		requireContains(t, api.lastText(), "Mercado Livre")

		watches, _ := store.ListWatches(ctx, 100)
		if len(watches) != 1 || watches[0].Keyword != "camisa flamengo" || watches[0].Platform != "ml" {
			t.Errorf("unexpected watches: %+v", watches)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleAdd(ctx, 100, "nike olx")
		b.handleAdd(ctx, 100, "NIKE olx")
		requireContains(t, api.lastText(), "ja monitora")
	})

	t.Run("quota", func(t *testing.T) {
		b, api, store := newTestBot(t)
		for _, kw := range []string{"a", "b", "c"} {
			seedWatch(t, store, 100, kw, "olx")
		}
		b.handleAdd(ctx, 100, "d")
		requireContains(t, api.lastText(), "limite de 3")
	})
}

func TestHandleRemove(t *testing.T) {
	ctx := context.Background()

	t.Run("one platform", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedWatch(t, store, 100, "nike", "olx")
		seedWatch(t, store, 100, "nike", "enjoei")

		b.handleRemove(ctx, 100, "nike olx")
		requireContains(t, api.lastText(), "Removido \"nike\" do OLX")

		watches, _ := store.ListWatches(ctx, 100)
		if len(watches) != 1 || watches[0].Platform != "enjoei" {
			t.Errorf("unexpected watches: %+v", watches)
		}
	})

	t.Run("every platform", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedWatch(t, store, 100, "nike", "olx")
		seedWatch(t, store, 100, "nike", "enjoei")

		b.handleRemove(ctx, 100, "nike")
		requireContains(t, api.lastText(), "2 plataforma(s)")
	})

	t.Run("not found", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleRemove(ctx, 100, "nike")
		requireContains(t, api.lastText(), "Nenhum monitoramento")
	})
}

func TestHandleList(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleList(ctx, 100)
		requireContains(t, api.lastText(), "nao monitora nada")
	})

	t.Run("with filters and price", func(t *testing.T) {
		b, api, store := newTestBot(t)
		w := seedWatch(t, store, 100, "nike", "enjoei")
		seedWatch(t, store, 100, "bota", "olx")
		if err := store.SetFilters(ctx, w.ID, `{"used":true}`); err != nil {
			t.Fatal(err)
		}
		limit := 200.0
		if err := store.SetMaxPrice(ctx, w.ID, &limit); err != nil {
			t.Fatal(err)
		}

		b.handleList(ctx, 100)
		reply := api.lastText()
		requireContains(t, reply, `#1 "nike" - Enjoei [usado]`)
		requireContains(t, reply, "(ate R$ 200,00)")
		requireContains(t, reply, `#2 "bota" - OLX`)
	})
}

func TestHandleFilters(t *testing.T) {
	ctx := context.Background()

	t.Run("bad args", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleFilters(ctx, 100, "abc")
		requireContains(t, api.lastText(), "Uso: /filtros")
	})

	t.Run("other owner", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedWatch(t, store, 200, "nike", "olx")
		b.handleFilters(ctx, 100, "1")
		requireContains(t, api.lastText(), "nao encontrado")
	})

	t.Run("keyboard", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedWatch(t, store, 100, "nike", "olx")
		b.handleFilters(ctx, 100, "1")

		msg := api.last()
		requireContains(t, msg.Text, "Ativos: nenhum")
		if msg.Keyboard == nil {
			t.Fatal("expected inline keyboard")
		}
		first := msg.Keyboard.InlineKeyboard[0][0]
		if diff := cmp.Diff("✓ Mais recente", first.Text); diff != "" {
			t.Errorf("button label (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff("f:1:sort:date", *first.CallbackData); diff != "" {
			t.Errorf("callback data (-want +got):\n%s", diff)
		}
	})
}

func TestHandleCallbackToggle(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)
	seedWatch(t, store, 100, "nike", "enjoei")

	cb := &tgbotapi.CallbackQuery{
		ID:      "cb1",
		Data:    "f:1:used:t",
		Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: 100}},
	}
	b.handleCallback(ctx, cb)

	w, err := store.GetWatch(ctx, 1, 100)
	if err != nil {
		t.Fatalf("GetWatch: %v", err)
	}
	if diff := cmp.Diff(`{"used":true}`, w.Filters); diff != "" {
		t.Errorf("stored filters (-want +got):\n%s", diff)
	}
	if len(api.edits) != 1 {
		t.Fatalf("edits = %d, want 1", len(api.edits))
	}
	requireContains(t, api.edits[0].Text, "Ativos: [usado]")
	if diff := cmp.Diff(7, api.edits[0].MessageID); diff != "" {
		t.Errorf("edited message (-want +got):\n%s", diff)
	}

	// Same toggle again returns to the defaults.
	b.handleCallback(ctx, cb)
	w, _ = store.GetWatch(ctx, 1, 100)
	if diff := cmp.Diff("", w.Filters); diff != "" {
		t.Errorf("filters after second toggle (-want +got):\n%s", diff)
	}

	// Clearing an already default set edits nothing.
	cb.Data = "f:1:clr:0"
	b.handleCallback(ctx, cb)
	if diff := cmp.Diff(2, len(api.edits)); diff != "" {
		t.Errorf("edits (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(3, len(api.acks)); diff != "" {
		t.Errorf("acks (-want +got):\n%s", diff)
	}
}

func TestHandleCallbackRejects(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)
	seedWatch(t, store, 200, "nike", "enjoei")

	for _, data := range []string{"nocolon", "f:abc:used:t", "f:1:used:t"} {
		b.handleCallback(ctx, &tgbotapi.CallbackQuery{
			ID:      "cb",
			Data:    data,
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 100}},
		})
	}

	if len(api.edits) != 0 {
		t.Errorf("expected no edits, got %d", len(api.edits))
	}
	w, _ := store.GetWatch(ctx, 1, 200)
	if w.Filters != "" {
		t.Errorf("another owner's filters changed: %q", w.Filters)
	}
}

func TestHandlePrice(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)
	seedWatch(t, store, 100, "nike", "olx")

	b.handlePrice(ctx, 100, "1 1.500,00")
	requireContains(t, api.lastText(), "R$ 1.500,00")
	w, _ := store.GetWatch(ctx, 1, 100)
	if w.MaxPrice == nil || *w.MaxPrice != 1500 {
		t.Errorf("max price = %v, want 1500", w.MaxPrice)
	}

	b.handlePrice(ctx, 100, "1 0")
	requireContains(t, api.lastText(), "removido")
	w, _ = store.GetWatch(ctx, 1, 100)
	if w.MaxPrice != nil {
		t.Errorf("max price = %v, want nil", *w.MaxPrice)
	}

	b.handlePrice(ctx, 100, "9 100")
	requireContains(t, api.lastText(), "#9 nao encontrado")
}

func TestHandlePause(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)

	b.handlePause(ctx, 100, true)
	requireContains(t, api.lastText(), "pausadas")
	if paused, _ := store.IsPaused(ctx, 100); !paused {
		t.Error("expected paused")
	}

	b.handlePause(ctx, 100, false)
	requireContains(t, api.lastText(), "retomadas")
	if paused, _ := store.IsPaused(ctx, 100); paused {
		t.Error("expected resumed")
	}
}

func TestHandleStatusAndSearch(t *testing.T) {
	ctx := context.Background()
	b, api, _ := newTestBot(t)

	b.handleStatus(ctx, 100)
	requireContains(t, api.lastText(), "Nenhum ciclo")

	cycles := &fakeCycles{
		sum: model.CycleSummary{
			StartedAt:  time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
			Groups:     2,
			TotalNew:   3,
			ByPlatform: map[string]int{"olx": 1, "enjoei": 2},
		},
		hasLast: true,
		ran:     make(chan struct{}),
	}
	b.cycles = cycles

	b.handleStatus(ctx, 100)
	requireContains(t, api.lastText(), "Itens novos: 3")
	requireContains(t, api.lastText(), "enjoei: 2\n  olx: 1")

	b.handleSearchNow(ctx, 100)
	<-cycles.ran
	deadline := time.Now().Add(5 * time.Second)
	for !strings.HasPrefix(api.lastText(), "Ultimo ciclo") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !strings.HasPrefix(api.lastText(), "Ultimo ciclo") {
		t.Errorf("expected cycle summary reply, got:\n%s", api.lastText())
	}
}

func TestHandleCommandDispatch(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)

	b.handleCommand(ctx, commandMessage(100, "/adicionar nike olx"))
	requireContains(t, api.lastText(), "Monitorando")

	b.handleCommand(ctx, commandMessage(100, "/plataformas"))
	requireContains(t, api.lastText(), "enjoei - Enjoei (padrao)")

	b.handleCommand(ctx, commandMessage(100, "/desconhecido"))
	requireContains(t, api.lastText(), "Comando desconhecido")

	if n, _ := store.CountWatches(ctx, 100); n != 1 {
		t.Errorf("watches = %d, want 1", n)
	}
}

type blockingCycles struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	done    chan struct{}
}

func (c *blockingCycles) RunCycle(context.Context) (model.CycleSummary, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	<-c.release
	defer func() { c.done <- struct{}{} }()
	return model.CycleSummary{}, nil
}

func (c *blockingCycles) LastSummary() (model.CycleSummary, bool) {
	return model.CycleSummary{}, false
}

func (c *blockingCycles) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestSearchNowSinglePending(t *testing.T) {
	ctx := context.Background()
	b, api, _ := newTestBot(t)
	cycles := &blockingCycles{release: make(chan struct{}), done: make(chan struct{}, 1)}
	b.cycles = cycles

	b.handleCommand(ctx, commandMessage(100, "/buscar"))
	b.handleCommand(ctx, commandMessage(100, "/buscar"))
	requireContains(t, api.lastText(), "Uma busca ja esta em andamento.")

	close(cycles.release)
	select {
	case <-cycles.done:
	case <-time.After(5 * time.Second):
		t.Fatal("cycle did not finish")
	}
	if diff := cmp.Diff(1, cycles.count()); diff != "" {
		t.Errorf("cycles run (-want +got):\n%s", diff)
	}

	// Once the pending cycle finished a new request is accepted.
	deadline := time.Now().Add(5 * time.Second)
	for b.searching.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	b.handleCommand(ctx, commandMessage(100, "/buscar"))
	<-cycles.done
	if diff := cmp.Diff(2, cycles.count()); diff != "" {
		t.Errorf("cycles run after completion (-want +got):\n%s", diff)
	}
}
