package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"market_bot/internal/model"
	"market_bot/migrations"
)

var ignoreCreated = cmpopts.IgnoreFields(model.Watch{}, "CreatedAt")

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr(v float64) *float64 { return &v }

func TestWatchCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	tests := []struct {
		name  string
		watch model.Watch
	}{
		{
			name:  "plain watch",
			watch: model.Watch{ChatID: 100, Keyword: "nike", Platform: "enjoei"},
		},
		{
			name:  "watch with ceiling and filters",
			watch: model.Watch{ChatID: 100, Keyword: "camisa flamengo", Platform: "ml", MaxPrice: ptr(200), Filters: `{"ship":true}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tt.watch
			created, err := s.AddWatch(ctx, &w)
			if err != nil {
				t.Fatalf("AddWatch: %v", err)
			}
			if !created || w.ID == 0 {
				t.Fatalf("AddWatch created=%v id=%d", created, w.ID)
			}

			got, err := s.GetWatch(ctx, w.ID, w.ChatID)
			if err != nil {
				t.Fatalf("GetWatch: %v", err)
			}
			if diff := cmp.Diff(w, *got, ignoreCreated); diff != "" {
				t.Errorf("GetWatch mismatch (-want +got):\n%s", diff)
			}
			if got.CreatedAt.IsZero() {
				t.Error("CreatedAt not set")
			}
		})
	}

	list, err := s.ListWatches(ctx, 100)
	if err != nil {
		t.Fatalf("ListWatches: %v", err)
	}
	if len(list) != 2 || list[0].Keyword != "nike" {
		t.Errorf("ListWatches = %+v", list)
	}
	n, err := s.CountWatches(ctx, 100)
	if err != nil || n != 2 {
		t.Errorf("CountWatches = %d, %v", n, err)
	}
}

func TestAddWatchDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	first := model.Watch{ChatID: 1, Keyword: "nike", Platform: "enjoei"}
	if _, err := s.AddWatch(ctx, &first); err != nil {
		t.Fatalf("AddWatch: %v", err)
	}

	dup := model.Watch{ChatID: 1, Keyword: "nike", Platform: "enjoei"}
	created, err := s.AddWatch(ctx, &dup)
	if err != nil {
		t.Fatalf("AddWatch dup: %v", err)
	}
	if created {
		t.Error("duplicate reported as created")
	}
	if dup.ID != first.ID {
		t.Errorf("dup ID = %d, want existing %d", dup.ID, first.ID)
	}

	other := model.Watch{ChatID: 1, Keyword: "nike", Platform: "olx"}
	created, err = s.AddWatch(ctx, &other)
	if err != nil || !created {
		t.Errorf("same keyword on another platform: created=%v err=%v", created, err)
	}
}

func TestGetWatchOwnership(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	w := model.Watch{ChatID: 1, Keyword: "nike", Platform: "enjoei"}
	if _, err := s.AddWatch(ctx, &w); err != nil {
		t.Fatalf("AddWatch: %v", err)
	}
	if _, err := s.GetWatch(ctx, w.ID, 2); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetWatch other owner err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetWatch(ctx, 999, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetWatch missing err = %v, want ErrNotFound", err)
	}
}

func TestRemoveWatch(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	for _, p := range []string{"enjoei", "ml", "olx"} {
		w := model.Watch{ChatID: 1, Keyword: "nike", Platform: p}
		if _, err := s.AddWatch(ctx, &w); err != nil {
			t.Fatalf("AddWatch: %v", err)
		}
	}

	n, err := s.RemoveWatch(ctx, 1, "nike", "ml")
	if err != nil || n != 1 {
		t.Fatalf("RemoveWatch(ml) = %d, %v", n, err)
	}
	n, err = s.RemoveWatch(ctx, 1, "nike", "")
	if err != nil || n != 2 {
		t.Fatalf("RemoveWatch(any) = %d, %v", n, err)
	}
	n, err = s.RemoveWatch(ctx, 1, "nike", "")
	if err != nil || n != 0 {
		t.Fatalf("RemoveWatch(none left) = %d, %v", n, err)
	}
}

func TestSetFiltersAndMaxPrice(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	w := model.Watch{ChatID: 1, Keyword: "nike", Platform: "enjoei"}
	if _, err := s.AddWatch(ctx, &w); err != nil {
		t.Fatalf("AddWatch: %v", err)
	}

	if err := s.SetFilters(ctx, w.ID, `{"used":true}`); err != nil {
		t.Fatalf("SetFilters: %v", err)
	}
	if err := s.SetMaxPrice(ctx, w.ID, ptr(150)); err != nil {
		t.Fatalf("SetMaxPrice: %v", err)
	}
	got, err := s.GetWatch(ctx, w.ID, 1)
	if err != nil {
		t.Fatalf("GetWatch: %v", err)
	}
	if got.Filters != `{"used":true}` || got.MaxPrice == nil || *got.MaxPrice != 150 {
		t.Errorf("after update: %+v", got)
	}

	if err := s.SetMaxPrice(ctx, w.ID, nil); err != nil {
		t.Fatalf("SetMaxPrice(nil): %v", err)
	}
	got, _ = s.GetWatch(ctx, w.ID, 1)
	if got.MaxPrice != nil {
		t.Errorf("MaxPrice = %v, want nil", *got.MaxPrice)
	}

	if err := s.SetFilters(ctx, 999, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetFilters missing err = %v, want ErrNotFound", err)
	}
}

func TestPauseExcludesFromActive(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	for _, chat := range []int64{1, 2} {
		w := model.Watch{ChatID: chat, Keyword: "nike", Platform: "enjoei"}
		if _, err := s.AddWatch(ctx, &w); err != nil {
			t.Fatalf("AddWatch: %v", err)
		}
	}

	if err := s.SetPaused(ctx, 2, true); err != nil {
		t.Fatalf("SetPaused: %v", err)
	}
	paused, err := s.IsPaused(ctx, 2)
	if err != nil || !paused {
		t.Fatalf("IsPaused(2) = %v, %v", paused, err)
	}
	if paused, _ := s.IsPaused(ctx, 3); paused {
		t.Error("unknown owner reported paused")
	}

	active, err := s.ListActiveWatches(ctx)
	if err != nil {
		t.Fatalf("ListActiveWatches: %v", err)
	}
	if len(active) != 1 || active[0].ChatID != 1 {
		t.Errorf("active = %+v, want only chat 1", active)
	}

	if err := s.SetPaused(ctx, 2, false); err != nil {
		t.Fatalf("SetPaused(false): %v", err)
	}
	active, _ = s.ListActiveWatches(ctx)
	if len(active) != 2 {
		t.Errorf("after resume active = %d, want 2", len(active))
	}
}

func TestSeenLedger(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	key := model.SeenKey{ListingID: "a", Keyword: "nike", ChatID: 1, Platform: "enjoei"}

	seen, err := s.IsSeen(ctx, key)
	if err != nil || seen {
		t.Fatalf("IsSeen before mark = %v, %v", seen, err)
	}
	if _, ok, err := s.LastPrice(ctx, key); err != nil || ok {
		t.Fatalf("LastPrice before mark ok=%v err=%v", ok, err)
	}

	rec := model.SeenRecord{SeenKey: key, Title: "Tenis", Price: "R$ 150", URL: "https://x/a"}
	if err := s.MarkSeen(ctx, rec); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	rec.Price = "R$ 999"
	if err := s.MarkSeen(ctx, rec); err != nil {
		t.Fatalf("MarkSeen again: %v", err)
	}

	price, ok, err := s.LastPrice(ctx, key)
	if err != nil || !ok || price != "R$ 150" {
		t.Fatalf("LastPrice = %q, %v, %v; want first price kept", price, ok, err)
	}

	if err := s.UpdatePrice(ctx, key, "R$ 120"); err != nil {
		t.Fatalf("UpdatePrice: %v", err)
	}
	price, _, _ = s.LastPrice(ctx, key)
	if price != "R$ 120" {
		t.Errorf("price after update = %q", price)
	}

	// Same listing under another owner is an independent entry.
	other := key
	other.ChatID = 2
	if seen, _ := s.IsSeen(ctx, other); seen {
		t.Error("ledger leaked across owners")
	}
}

func TestPurgeSeen(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	old := model.SeenRecord{SeenKey: model.SeenKey{ListingID: "old", Keyword: "k", ChatID: 1, Platform: "olx"}, FirstSeenAt: now.AddDate(0, 0, -40)}
	fresh := model.SeenRecord{SeenKey: model.SeenKey{ListingID: "new", Keyword: "k", ChatID: 1, Platform: "olx"}, FirstSeenAt: now.AddDate(0, 0, -1)}
	for _, r := range []model.SeenRecord{old, fresh} {
		if err := s.MarkSeen(ctx, r); err != nil {
			t.Fatalf("MarkSeen: %v", err)
		}
	}

	n, err := s.PurgeSeen(ctx, now.AddDate(0, 0, -30))
	if err != nil || n != 1 {
		t.Fatalf("PurgeSeen = %d, %v; want 1", n, err)
	}
	if seen, _ := s.IsSeen(ctx, old.SeenKey); seen {
		t.Error("old entry survived purge")
	}
	if seen, _ := s.IsSeen(ctx, fresh.SeenKey); !seen {
		t.Error("fresh entry purged")
	}
}

func TestOpenSQLiteLeavesSchemaToProvider(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	provider, err := migrations.NewProvider(db.DB)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if v, err := provider.GetDBVersion(ctx); err != nil || v != 0 {
		t.Fatalf("version before up = %d, %v; want 0, nil", v, err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		t.Fatalf("up: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("up applied no migrations")
	}
	v, err := provider.GetDBVersion(ctx)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if want := results[len(results)-1].Source.Version; v != want {
		t.Errorf("version after up = %d, want %d", v, want)
	}

	if _, err := provider.DownTo(ctx, 0); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if v, err := provider.GetDBVersion(ctx); err != nil || v != 0 {
		t.Errorf("version after reset = %d, %v; want 0, nil", v, err)
	}
}
