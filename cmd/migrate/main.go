package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pressly/goose/v3"

	"market_bot/internal/config"
	"market_bot/internal/storage"
	"market_bot/migrations"
)

const usage = `Usage: migrate [-db path] <command>

Commands:
  up          Apply all pending migrations
  up-one      Apply the next pending migration
  down        Roll back the latest migration
  status      List migrations and whether they are applied
  version     Print the current schema version
  reset       Roll back every migration
  create NAME Write a new SQL migration into ./migrations
`

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	dbPath := flag.String("db", config.DatabasePath(), "path to sqlite database")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, *dbPath, args); err != nil {
		log.Error("migrate failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, dbPath string, args []string) error {
	if args[0] == "create" {
		if len(args) < 2 {
			return errors.New("create: migration name required")
		}
		return goose.Create(nil, "migrations", args[1], "sql")
	}

	db, err := storage.OpenSQLite(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	provider, err := migrations.NewProvider(db.DB)
	if err != nil {
		return err
	}

	switch args[0] {
	case "up":
		results, err := provider.Up(ctx)
		logResults(log, results)
		return err
	case "up-one":
		res, err := provider.UpByOne(ctx)
		return single(log, res, err)
	case "down":
		res, err := provider.Down(ctx)
		return single(log, res, err)
	case "reset":
		results, err := provider.DownTo(ctx, 0)
		logResults(log, results)
		return err
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			log.Info("migration",
				"version", s.Source.Version,
				"file", s.Source.Path,
				"state", s.State,
				"applied_at", s.AppliedAt,
			)
		}
		return nil
	case "version":
		v, err := provider.GetDBVersion(ctx)
		if err != nil {
			return err
		}
		log.Info("schema version", "version", v, "db", dbPath)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func single(log *slog.Logger, res *goose.MigrationResult, err error) error {
	if errors.Is(err, goose.ErrNoNextVersion) {
		log.Info("nothing to do")
		return nil
	}
	if res != nil {
		logResults(log, []*goose.MigrationResult{res})
	}
	return err
}

func logResults(log *slog.Logger, results []*goose.MigrationResult) {
	if len(results) == 0 {
		log.Info("no migrations to apply")
		return
	}
	for _, r := range results {
		log.Info("migration",
			"direction", r.Direction,
			"version", r.Source.Version,
			"file", r.Source.Path,
			"duration", r.Duration,
		)
	}
}
