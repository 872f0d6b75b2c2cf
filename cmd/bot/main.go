package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"market_bot/internal/bot"
	"market_bot/internal/browser"
	"market_bot/internal/checker"
	"market_bot/internal/config"
	"market_bot/internal/events"
	"market_bot/internal/httpapi"
	"market_bot/internal/notifier"
	"market_bot/internal/platform"
	"market_bot/internal/relevance"
	"market_bot/internal/scheduler"
	"market_bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("bot stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create data directory %s: %w", dir, err)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
	}
	defer func() { _ = store.Close() }()

	var seen storage.SeenStore = store
	if cfg.RedisAddr != "" {
		rs, err := storage.NewRedisSeen(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SeenRetention)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() { _ = rs.Close() }()
		seen = rs
		log.Info("seen ledger in redis", "addr", cfg.RedisAddr)
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("create bot api: %w", err)
	}

	session := browser.New(browser.Options{
		MaxAge:  cfg.BrowserMaxAge,
		Timeout: cfg.FetchTimeout,
	}, log.With("component", "browser"))
	defer func() { _ = session.Close() }()

	fetchOpts := platform.Options{Retries: cfg.FetchRetries}
	adapterLog := log.With("component", "platform")
	registry, err := platform.NewRegistry(cfg.DefaultPlatform,
		platform.NewEnjoei(session, fetchOpts, adapterLog),
		platform.NewMercadoLivre(session, fetchOpts, adapterLog),
		platform.NewOlx(session, fetchOpts, adapterLog),
	)
	if err != nil {
		return fmt.Errorf("build platform registry: %w", err)
	}

	refiner, err := newRefiner(ctx, cfg, log)
	if err != nil {
		return err
	}

	names := make(map[string]string)
	for _, key := range registry.Keys() {
		a, _ := registry.Get(key)
		names[key] = a.Name()
	}
	targets := notifier.Multi{notifier.NewTelegram(api, names, 50*time.Millisecond, log.With("component", "notifier"))}
	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log.With("component", "events"))
		defer func() { _ = pub.Close() }()
		targets = append(targets, pub)
		log.Info("publishing listing events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	chk := checker.New(checker.Deps{
		Watches:  store,
		Seen:     seen,
		Adapters: registry,
		Refiner:  refiner,
		Notifier: targets,
		Operator: notifier.NewOperator(api, cfg.AdminChatID, log.With("component", "operator")),
	}, checker.Config{
		Delay:          cfg.ScrapeDelay,
		StaleThreshold: cfg.StaleThreshold,
	}, log.With("component", "checker"))

	b := bot.New(api, bot.Deps{Store: store, Registry: registry, Cycles: chk}, cfg, log.With("component", "bot"))
	sched := scheduler.New(chk, seen, scheduler.Config{
		Interval:  cfg.CheckInterval,
		Retention: cfg.SeenRetention,
	}, log.With("component", "scheduler"))

	log.Info("starting bot", "bot", api.Self.UserName, "platforms", registry.Keys(), "interval", cfg.CheckInterval)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b.Run(gCtx)
		return nil
	})
	g.Go(func() error {
		return sched.Run(gCtx)
	})
	if cfg.HTTPAddr != "" {
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           httpapi.NewRouter(gCtx, chk, log.With("component", "http")),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.Info("http listening", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

func newRefiner(ctx context.Context, cfg *config.Config, log *slog.Logger) (relevance.Refiner, error) {
	switch cfg.RelevanceMode {
	case config.RelevanceKeyword:
		return relevance.Keyword{}, nil
	case config.RelevanceGemini:
		g, err := relevance.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log.With("component", "relevance"))
		if err != nil {
			return nil, fmt.Errorf("create gemini refiner: %w", err)
		}
		return g, nil
	default:
		return relevance.Passthrough{}, nil
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
