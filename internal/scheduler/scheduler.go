// Package scheduler runs check cycles and seen-ledger maintenance on a timer.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"market_bot/internal/model"
)

// CycleRunner runs one check cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (model.CycleSummary, error)
}

// Purger drops old entries from the seen ledger.
type Purger interface {
	PurgeSeen(ctx context.Context, olderThan time.Time) (int64, error)
}

// Config controls job timing.
type Config struct {
	Interval  time.Duration
	Retention time.Duration
	// PurgeEvery defaults to 24h.
	PurgeEvery time.Duration
}

// Scheduler runs the check cycle every Interval and purges the seen ledger daily.
type Scheduler struct {
	runner CycleRunner
	purger Purger
	cfg    Config
	log    *slog.Logger
	now    func() time.Time
}

// New creates a Scheduler.
func New(runner CycleRunner, purger Purger, cfg Config, log *slog.Logger) *Scheduler {
	if cfg.PurgeEvery <= 0 {
		cfg.PurgeEvery = 24 * time.Hour
	}
	return &Scheduler{
		runner: runner,
		purger: purger,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// Run starts the jobs and blocks until ctx is cancelled. The first cycle runs immediately.
// Shutdown waits for a running cycle to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	sched, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(slogAdapter{s.log}),
	)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.cfg.Interval),
		gocron.NewTask(func() { s.checkOnce(ctx) }),
		gocron.WithName("check-cycle"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule check cycle: %w", err)
	}

	if s.purger != nil && s.cfg.Retention > 0 {
		_, err = sched.NewJob(
			gocron.DurationJob(s.cfg.PurgeEvery),
			gocron.NewTask(func() { s.purgeOnce(ctx) }),
			gocron.WithName("purge-seen"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("schedule purge: %w", err)
		}
	}

	sched.Start()
	s.log.Info("scheduler started", "interval", s.cfg.Interval, "retention", s.cfg.Retention)

	<-ctx.Done()
	if err := sched.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) checkOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.runner.RunCycle(ctx); err != nil {
		s.log.Error("check cycle", "error", err)
	}
}

func (s *Scheduler) purgeOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	cutoff := s.now().Add(-s.cfg.Retention)
	n, err := s.purger.PurgeSeen(ctx, cutoff)
	if err != nil {
		s.log.Error("purge seen listings", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("purged seen listings", "count", n, "older_than", cutoff.UTC())
	}
}

// slogAdapter implements gocron.Logger.
type slogAdapter struct {
	log *slog.Logger
}

func (a slogAdapter) Debug(msg string, args ...any) { a.log.Debug(msg, args...) }
func (a slogAdapter) Info(msg string, args ...any)  { a.log.Info(msg, args...) }
func (a slogAdapter) Warn(msg string, args ...any)  { a.log.Warn(msg, args...) }
func (a slogAdapter) Error(msg string, args ...any) { a.log.Error(msg, args...) }
