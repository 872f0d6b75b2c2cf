// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"market_bot/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// WatchStore persists watches and per-user settings.
type WatchStore interface {
	// AddWatch inserts w and fills its ID. It returns false if the owner already
	// watches the same keyword on the same platform; w.ID is then the existing row.
	AddWatch(ctx context.Context, w *model.Watch) (bool, error)
	// RemoveWatch deletes a watch. An empty platform removes the keyword on every platform.
	RemoveWatch(ctx context.Context, chatID int64, keyword, platform string) (int64, error)
	GetWatch(ctx context.Context, id, chatID int64) (*model.Watch, error)
	ListWatches(ctx context.Context, chatID int64) ([]model.Watch, error)
	// ListActiveWatches returns the watches of every owner that is not paused.
	ListActiveWatches(ctx context.Context) ([]model.Watch, error)
	CountWatches(ctx context.Context, chatID int64) (int, error)
	SetFilters(ctx context.Context, id int64, filters string) error
	SetMaxPrice(ctx context.Context, id int64, maxPrice *float64) error

	SetPaused(ctx context.Context, chatID int64, paused bool) error
	IsPaused(ctx context.Context, chatID int64) (bool, error)
}

// SeenStore is the dedup ledger.
type SeenStore interface {
	IsSeen(ctx context.Context, key model.SeenKey) (bool, error)
	// MarkSeen records a listing. Marking an existing key is a no-op.
	MarkSeen(ctx context.Context, rec model.SeenRecord) error
	// LastPrice returns the price recorded for key, and false if the key is unknown.
	LastPrice(ctx context.Context, key model.SeenKey) (string, bool, error)
	UpdatePrice(ctx context.Context, key model.SeenKey, price string) error
	// PurgeSeen drops entries first seen before olderThan and returns how many were removed.
	PurgeSeen(ctx context.Context, olderThan time.Time) (int64, error)
}

// Storage is the interface for all persistence operations.
type Storage interface {
	WatchStore
	SeenStore
	Close() error
}
