package checker

import (
	"context"
	"log/slog"

	"market_bot/internal/model"
	"market_bot/internal/price"
)

// processOwner applies one owner's ceiling to a search result, records unseen
// listings and detects price drops. A listing is marked seen before it is
// announced, so a delivery failure never causes a repeat notification.
func (c *Checker) processOwner(ctx context.Context, g group, w model.Watch, listings []model.Listing) (newCount, drops int) {
	log := c.log.With("chat_id", w.ChatID, "keyword", g.keyword, "platform", g.platform)

	for _, l := range listings {
		if !withinCeiling(l.Price, w.MaxPrice) {
			continue
		}

		key := model.SeenKey{ListingID: l.ID, Keyword: g.keyword, ChatID: w.ChatID, Platform: g.platform}
		seen, err := c.deps.Seen.IsSeen(ctx, key)
		if err != nil {
			log.Error("check seen", "listing", l.ID, "error", err)
			continue
		}

		if !seen {
			rec := model.SeenRecord{SeenKey: key, Title: l.Title, Price: l.Price, URL: l.URL, FirstSeenAt: c.now().UTC()}
			if err := c.deps.Seen.MarkSeen(ctx, rec); err != nil {
				log.Error("mark seen", "listing", l.ID, "error", err)
				continue
			}
			newCount++
			if err := c.deps.Notifier.NotifyNew(ctx, w.ChatID, g.keyword, g.platform, l); err != nil {
				log.Error("notify new listing", "listing", l.ID, "error", err)
			}
			continue
		}

		if c.checkPrice(ctx, log, key, g, w, l) {
			drops++
		}
	}

	if newCount > 0 || drops > 0 {
		log.Info("owner notified", "new", newCount, "price_drops", drops)
	}
	return newCount, drops
}

// checkPrice compares the stored price with the current one and reports whether
// a drop was announced. Increases are stored silently so the next drop is
// measured from the latest price.
func (c *Checker) checkPrice(ctx context.Context, log *slog.Logger, key model.SeenKey, g group, w model.Watch, l model.Listing) bool {
	oldPrice, ok, err := c.deps.Seen.LastPrice(ctx, key)
	if err != nil {
		log.Error("get last price", "listing", l.ID, "error", err)
		return false
	}
	if !ok {
		return false
	}

	oldVal, okOld := price.Parse(oldPrice)
	newVal, okNew := price.Parse(l.Price)
	if !okOld || !okNew || newVal == oldVal {
		return false
	}

	if err := c.deps.Seen.UpdatePrice(ctx, key, l.Price); err != nil {
		log.Error("update price", "listing", l.ID, "error", err)
		return false
	}
	if newVal > oldVal {
		return false
	}

	if err := c.deps.Notifier.NotifyPriceDrop(ctx, w.ChatID, g.keyword, g.platform, l, oldPrice); err != nil {
		log.Error("notify price drop", "listing", l.ID, "error", err)
	}
	return true
}

// withinCeiling reports whether a display price passes an optional maximum.
// Prices that cannot be parsed never pass a ceiling.
func withinCeiling(display string, maxPrice *float64) bool {
	if maxPrice == nil {
		return true
	}
	v, ok := price.Parse(display)
	return ok && v <= *maxPrice
}
