// Package checker runs check cycles: it scrapes every distinct search once,
// fans results out to the owners of matching watches and decides what to notify.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"market_bot/internal/model"
	"market_bot/internal/platform"
	"market_bot/internal/relevance"
	"market_bot/internal/storage"
)

// WatchLister supplies the watches of owners that are not paused.
type WatchLister interface {
	ListActiveWatches(ctx context.Context) ([]model.Watch, error)
}

// AdapterSource resolves a platform key to its adapter.
type AdapterSource interface {
	Get(key string) (platform.Adapter, bool)
}

// Notifier delivers per-owner notifications.
type Notifier interface {
	NotifyNew(ctx context.Context, chatID int64, keyword, platform string, l model.Listing) error
	NotifyPriceDrop(ctx context.Context, chatID int64, keyword, platform string, l model.Listing, oldPrice string) error
}

// OperatorAlerter escalates degraded-health signals to whoever runs the bot.
type OperatorAlerter interface {
	NotifyOperator(ctx context.Context, text string) error
}

// Deps are the collaborators of a Checker. Refiner and Operator are optional.
type Deps struct {
	Watches  WatchLister
	Seen     storage.SeenStore
	Adapters AdapterSource
	Refiner  relevance.Refiner
	Notifier Notifier
	Operator OperatorAlerter
}

// Config tunes a Checker.
type Config struct {
	// Delay is the pause between two consecutive searches.
	Delay time.Duration
	// StaleThreshold is the number of consecutive all-empty cycles that triggers an operator alert.
	StaleThreshold int
}

// Checker runs check cycles. Cycles never overlap: a call to RunCycle while
// another is in progress waits for it to finish.
type Checker struct {
	deps Deps
	cfg  Config
	log  *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	cycleMu     sync.Mutex
	emptyStreak int

	mu      sync.RWMutex
	last    model.CycleSummary
	hasLast bool
}

// New creates a Checker.
func New(deps Deps, cfg Config, log *slog.Logger) *Checker {
	return &Checker{
		deps:  deps,
		cfg:   cfg,
		log:   log,
		sleep: sleepCtx,
		now:   time.Now,
	}
}

// RunCycle performs one full check cycle. Failures of individual searches are
// recorded in the summary; an error is returned only when the watch list cannot
// be read or ctx is cancelled between searches.
func (c *Checker) RunCycle(ctx context.Context) (model.CycleSummary, error) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	start := c.now()
	sum := model.CycleSummary{
		ID:         uuid.NewString(),
		StartedAt:  start.UTC(),
		ByPlatform: make(map[string]int),
	}

	watches, err := c.deps.Watches.ListActiveWatches(ctx)
	if err != nil {
		return sum, fmt.Errorf("list active watches: %w", err)
	}

	groups := groupWatches(watches)
	sum.Groups = len(groups)
	log := c.log.With("cycle", sum.ID)
	log.Info("check cycle started", "watches", len(watches), "groups", len(groups))

	var runErr error
	anyResults := false
	for i, g := range groups {
		if i > 0 {
			if err := c.sleep(ctx, c.cfg.Delay); err != nil {
				runErr = err
				break
			}
		}

		listings, err := c.search(ctx, g)
		if err != nil {
			sum.Failed++
			sum.FailedGroups = append(sum.FailedGroups, g.String())
			if errors.Is(err, context.Canceled) {
				log.Warn("search cancelled", "group", g.String())
				continue
			}
			log.Error("search failed", "group", g.String(), "error", err)
			c.alert(ctx, fmt.Sprintf("Falha ao buscar %q em %s: %v", g.keyword, g.platform, err))
			continue
		}
		if len(listings) > 0 {
			anyResults = true
		}

		listings = c.refine(ctx, g.keyword, listings)
		for _, w := range g.watches {
			newCount, drops := c.processOwner(ctx, g, w, listings)
			sum.TotalNew += newCount
			sum.ByPlatform[g.platform] += newCount
			sum.PriceDrops += drops
		}
	}

	if runErr == nil {
		c.trackStaleness(ctx, len(groups), anyResults)
	}

	sum.Duration = c.now().Sub(start)
	c.mu.Lock()
	c.last, c.hasLast = sum, true
	c.mu.Unlock()

	log.Info("check cycle finished",
		"new", sum.TotalNew,
		"price_drops", sum.PriceDrops,
		"failed", sum.Failed,
		"duration", sum.Duration.Round(time.Millisecond),
	)
	if runErr != nil {
		return sum, fmt.Errorf("check cycle interrupted: %w", runErr)
	}
	return sum, nil
}

// LastSummary returns the summary of the most recent cycle, if any ran.
func (c *Checker) LastSummary() (model.CycleSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last, c.hasLast
}

func (c *Checker) search(ctx context.Context, g group) ([]model.Listing, error) {
	adapter, ok := c.deps.Adapters.Get(g.platform)
	if !ok {
		return nil, fmt.Errorf("%w for platform %q", errNoAdapter, g.platform)
	}
	fs, err := g.filterSet()
	if err != nil {
		return nil, err
	}
	return adapter.Search(ctx, g.keyword, fs)
}

// refine narrows listings once per search; refiner failures keep every listing.
func (c *Checker) refine(ctx context.Context, keyword string, listings []model.Listing) []model.Listing {
	if c.deps.Refiner == nil || len(listings) == 0 {
		return listings
	}
	refined, err := c.deps.Refiner.Refine(ctx, keyword, listings)
	if err != nil {
		c.log.Warn("relevance refiner failed, keeping all listings", "keyword", keyword, "error", err)
		return listings
	}
	return refined
}

func (c *Checker) alert(ctx context.Context, text string) {
	if c.deps.Operator == nil {
		return
	}
	if err := c.deps.Operator.NotifyOperator(ctx, text); err != nil {
		c.log.Error("notify operator", "error", err)
	}
}

func (c *Checker) trackStaleness(ctx context.Context, groups int, anyResults bool) {
	switch {
	case anyResults:
		c.emptyStreak = 0
	case groups > 0:
		c.emptyStreak++
		c.log.Warn("every search came back empty", "streak", c.emptyStreak)
		if c.cfg.StaleThreshold > 0 && c.emptyStreak == c.cfg.StaleThreshold {
			c.alert(ctx, fmt.Sprintf(
				"Alerta: %d ciclos seguidos sem nenhum resultado. A estrutura das paginas pode ter mudado.",
				c.emptyStreak,
			))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var errNoAdapter = errors.New("no adapter")
